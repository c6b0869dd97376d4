package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Order events
	EventOrderAutoCreated = "order.auto_created"
	EventOrderAutoUpdated = "order.auto_updated"
)

// Exchange names
const (
	ExchangeOrderEvents = "order.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Order events

// AutoOrderCreatedEvent is published when the replenishment engine creates a
// new draft purchase order.
type AutoOrderCreatedEvent struct {
	OrderID        string `json:"order_id"`
	Code           string `json:"code"`
	OrganizationID string `json:"organization_id"`
	SupplierID     string `json:"supplier_id"`
	SupplierName   string `json:"supplier_name"`
	ItemCount      int    `json:"item_count"`
	TotalCents     int64  `json:"total_cents"`
	NeedsQuote     bool   `json:"needs_quote"`
	DedupeKey      string `json:"dedupe_key"`
	JobID          string `json:"job_id"`
}

// AutoOrderUpdatedEvent is published when the replenishment engine merges new
// or raised lines into an existing draft order.
type AutoOrderUpdatedEvent struct {
	OrderID        string   `json:"order_id"`
	Code           string   `json:"code"`
	OrganizationID string   `json:"organization_id"`
	SupplierID     string   `json:"supplier_id"`
	ItemCount      int      `json:"item_count"`
	TotalCents     int64    `json:"total_cents"`
	NeedsQuote     bool     `json:"needs_quote"`
	AddedSKUs      []string `json:"added_skus,omitempty"`
	RaisedSKUs     []string `json:"raised_skus,omitempty"`
	JobID          string   `json:"job_id"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}
