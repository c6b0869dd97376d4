package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestKeepLockAlive_RefreshesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 16)
	done := make(chan struct{})

	go func() {
		keepLockAlive(ctx, time.Millisecond, func(context.Context) error {
			select {
			case calls <- struct{}{}:
			default:
			}
			return nil
		})
		close(done)
	}()

	// The loop keeps refreshing while the sweep is running
	<-calls
	<-calls

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh loop did not stop after cancellation")
	}
}

func TestKeepLockAlive_StopsWhenRefreshFails(t *testing.T) {
	done := make(chan struct{})

	go func() {
		keepLockAlive(context.Background(), time.Millisecond, func(context.Context) error {
			return errors.New("lock lost")
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh loop did not stop after a failed refresh")
	}
}
