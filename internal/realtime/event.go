// Package realtime defines the catalog and lifecycle events published for
// dashboards and the bot.
package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventProductCreated   EventType = "product.created"
	EventProductMerged    EventType = "product.merged"
	EventProductRescanned EventType = "product.rescanned"
	EventStepRecorded     EventType = "step.recorded"
	EventSummaryCreated   EventType = "summary.created"
)

type Event struct {
	Type      EventType       `json:"type"`
	ProductID uuid.UUID       `json:"product_id"`
	UserID    *uuid.UUID      `json:"user_id,omitempty"`
	RunID     string          `json:"run_id,omitempty"`
	At        time.Time       `json:"at"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent stamps At and encodes data. Unencodable data is dropped.
func NewEvent(t EventType, productID uuid.UUID, userID *uuid.UUID, data any) Event {
	ev := Event{Type: t, ProductID: productID, UserID: userID, At: time.Now().UTC()}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			ev.Data = raw
		}
	}
	return ev
}
