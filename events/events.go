/*
Package events publishes audit events for admin writes on monthly records.

PURPOSE:
  Every successful override or reset is announced on the message bus so the
  accounting team's audit log (and anything else that cares) can follow
  admin activity without polling the API.

EVENT TYPES (routing keys):
  record.fields_overridden  An admin set one or more fields of a month
  record.reset              An admin returned a month to calculated values

DELIVERY:
  Best effort. The API publishes after the database write has committed and
  only logs a publish failure; the admin write is never rolled back.

IMPLEMENTATIONS:
  Nop:    Default when AMQP_URL is empty
  Memory: Captures events in process (tests)
  AMQP:   RabbitMQ direct exchange, persistent JSON messages

SEE ALSO:
  - amqp.go: RabbitMQ publisher
  - api/handlers.go: Publishes after UpdateFields / ResetToAutoCalculated
*/
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aneupi/finance-engine/generic"
	"github.com/google/uuid"
)

// Type is the event name, also used as the AMQP routing key.
type Type string

const (
	TypeFieldsOverridden Type = "record.fields_overridden"
	TypeRecordReset      Type = "record.reset"
)

// Event describes one admin write.
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	Kind       generic.KindID `json:"kind"`
	Year       int            `json:"year"`
	Month      int            `json:"month"`
	AdminID    int64          `json:"adminId"`
	Fields     []string       `json:"fields,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// NewFieldsOverridden builds the event for an admin edit of rec.
func NewFieldsOverridden(rec generic.Record, fields []generic.FieldName, admin generic.AdminID) Event {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return newEvent(TypeFieldsOverridden, rec, admin, names)
}

// NewRecordReset builds the event for a reset of rec.
func NewRecordReset(rec generic.Record, admin generic.AdminID) Event {
	return newEvent(TypeRecordReset, rec, admin, nil)
}

func newEvent(t Type, rec generic.Record, admin generic.AdminID, fields []string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		Kind:       rec.Kind,
		Year:       rec.Year,
		Month:      rec.Month,
		AdminID:    int64(admin),
		Fields:     fields,
		OccurredAt: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes an event.
func FromJSON(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

// =============================================================================
// PUBLISHERS
// =============================================================================

// Publisher sends events to the bus.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Memory keeps published events in order.
type Memory struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// NewMemory creates an empty in-process publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// FailWith makes subsequent publishes return err (nil restores success).
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Memory) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *Memory) Close() error { return nil }

// Events returns a copy of what was published.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
