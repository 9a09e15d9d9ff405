package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Operations carried by ledger events.
const (
	OpProductAdded    = "product_added"
	OpSellerAdded     = "seller_added"
	OpSaleRecorded    = "sale_recorded"
	OpPaymentRecorded = "payment_recorded"
)

// LedgerEvent announces one committed ledger mutation. It carries only
// the entity id and the store version at commit time; consumers fetch
// whatever detail they need from the store.
type LedgerEvent struct {
	EventID   string    `json:"eventId"`
	Op        string    `json:"op"`
	EntityID  string    `json:"entityId"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent stamps a fresh event with a unique id and the current
// time.
func NewLedgerEvent(op, entityID string, version uint64) *LedgerEvent {
	return &LedgerEvent{
		EventID:   uuid.NewString(),
		Op:        op,
		EntityID:  entityID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON parses an event from JSON bytes.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
