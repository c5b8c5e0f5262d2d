package gadget

import (
	"context"
	"errors"
	"time"
)

// EventType names a lifecycle event.
type EventType string

// Lifecycle events emitted after successful mutations.
const (
	EventCreated               EventType = "gadget.created"
	EventStatusChanged         EventType = "gadget.status_changed"
	EventDecommissioned        EventType = "gadget.decommissioned"
	EventSelfDestructInitiated EventType = "gadget.self_destruct_initiated"
	EventDestroyed             EventType = "gadget.destroyed"
)

// AllEventTypes lists every event type.
var AllEventTypes = []EventType{
	EventCreated,
	EventStatusChanged,
	EventDecommissioned,
	EventSelfDestructInitiated,
	EventDestroyed,
}

// Event describes one lifecycle change.
type Event struct {
	Type      EventType `json:"type"`
	GadgetID  string    `json:"gadgetId"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier receives lifecycle events. Errors are logged by the caller
// and never fail the originating operation.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, ev Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// MultiNotifier fans an event out to every member.
type MultiNotifier []Notifier

// Notify delivers ev to all members and joins their errors.
func (m MultiNotifier) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Event) error { return nil }
