package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event names emitted after each full pass.
const (
	EventValidationError   = "validation.error"
	EventValidationSuccess = "validation.success"
)

// Event is the payload handed to a Notifier after a full pass. The engine
// only builds it; delivery belongs to the notifier.
type Event struct {
	ID        string    `json:"id"`
	PassID    string    `json:"passId"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Details   *Report   `json:"details"`
}

// NewEvent builds the event for a report.
func NewEvent(passID string, report *Report) *Event {
	name := EventValidationSuccess
	if report != nil && report.HasErrors {
		name = EventValidationError
	}
	return &Event{
		ID:        uuid.NewString(),
		PassID:    passID,
		Event:     name,
		Timestamp: time.Now().UTC(),
		Details:   report,
	}
}

// Notifier receives validation events.
type Notifier interface {
	Notify(ctx context.Context, event *Event) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event *Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// MultiNotifier delivers each event to every notifier in order.
type MultiNotifier []Notifier

// Notify delivers to all notifiers and joins their errors.
func (m MultiNotifier) Notify(ctx context.Context, event *Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
