package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compraflow/compraflow-backend/internal/replenish/repository"
)

func TestSupplierResolver_Cascade(t *testing.T) {
	ctx := context.Background()

	t.Run("preferred supplier wins when active", func(t *testing.T) {
		w := newFakeWorld()
		w.addSupplier("sup-p", "Preferred", repository.SupplierStatusActive)
		w.defaultSupplier = w.addSupplier("sup-d", "Default", repository.SupplierStatusActive)
		item := w.addItem("item-1", "SKU-1", 0, 5, 10, 1000, strPtr("sup-p"))

		r := NewSupplierResolver(w, w)
		res, err := r.Resolve(ctx, item, w.defaultSupplier)
		require.NoError(t, err)

		assert.Equal(t, "sup-p", res.SupplierID)
		assert.Equal(t, "Preferred", res.SupplierName)
		assert.Equal(t, ReasonItemPreferred, res.Reason)
	})

	t.Run("inactive preferred supplier falls through to default", func(t *testing.T) {
		w := newFakeWorld()
		w.addSupplier("sup-p", "Preferred", repository.SupplierStatusInactive)
		w.defaultSupplier = w.addSupplier("sup-d", "Default", repository.SupplierStatusActive)
		item := w.addItem("item-1", "SKU-1", 0, 5, 10, 1000, strPtr("sup-p"))

		r := NewSupplierResolver(w, w)
		res, err := r.Resolve(ctx, item, w.defaultSupplier)
		require.NoError(t, err)

		assert.Equal(t, "sup-d", res.SupplierID)
		assert.Equal(t, ReasonOrgDefault, res.Reason)
	})

	t.Run("missing preferred supplier falls through to default", func(t *testing.T) {
		w := newFakeWorld()
		w.defaultSupplier = w.addSupplier("sup-d", "Default", repository.SupplierStatusActive)
		item := w.addItem("item-1", "SKU-1", 0, 5, 10, 1000, strPtr("sup-gone"))

		r := NewSupplierResolver(w, w)
		res, err := r.Resolve(ctx, item, w.defaultSupplier)
		require.NoError(t, err)

		assert.Equal(t, ReasonOrgDefault, res.Reason)
	})

	t.Run("order history resolves when no preferred and no default", func(t *testing.T) {
		w := newFakeWorld()
		z := w.addSupplier("sup-z", "Historical", repository.SupplierStatusActive)
		item := w.addItem("item-1", "SKU-1", 0, 5, 10, 1000, nil)
		w.historical["SKU-1"] = z

		r := NewSupplierResolver(w, w)
		res, err := r.Resolve(ctx, item, nil)
		require.NoError(t, err)

		assert.Equal(t, "sup-z", res.SupplierID)
		assert.Equal(t, ReasonHistoricalPO, res.Reason)
	})

	t.Run("inactive historical supplier does not resolve", func(t *testing.T) {
		w := newFakeWorld()
		z := w.addSupplier("sup-z", "Historical", repository.SupplierStatusInactive)
		item := w.addItem("item-1", "SKU-1", 0, 5, 10, 1000, nil)
		w.historical["SKU-1"] = z

		r := NewSupplierResolver(w, w)
		res, err := r.Resolve(ctx, item, nil)
		require.NoError(t, err)

		assert.Equal(t, ReasonNoSupplier, res.Reason)
		assert.Empty(t, res.SupplierID)
	})

	t.Run("nothing resolves", func(t *testing.T) {
		w := newFakeWorld()
		item := w.addItem("item-1", "SKU-1", 0, 5, 10, 1000, nil)

		r := NewSupplierResolver(w, w)
		res, err := r.Resolve(ctx, item, nil)
		require.NoError(t, err)

		assert.Equal(t, ReasonNoSupplier, res.Reason)
	})
}
