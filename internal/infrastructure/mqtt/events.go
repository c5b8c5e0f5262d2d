package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/imf-phoenix/gadgetd/internal/gadget"
)

// Publisher is the subset of Client used by EventPublisher.
type Publisher interface {
	Publish(ctx context.Context, m Message) error
}

// EventPublisher forwards gadget lifecycle events to MQTT.
// It implements gadget.Notifier.
type EventPublisher struct {
	pub Publisher
	qos byte
}

// NewEventPublisher creates an EventPublisher that publishes at qos.
func NewEventPublisher(pub Publisher, qos byte) *EventPublisher {
	return &EventPublisher{pub: pub, qos: qos}
}

// Notify publishes ev as JSON on its gadget's event topic. Events are not
// retained; a late subscriber reads current state from the HTTP API.
func (p *EventPublisher) Notify(ctx context.Context, ev gadget.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publishing %s: %w", ev.Type, err)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", ev.Type, err)
	}

	topic := Topics{}.GadgetEvent(ev.GadgetID, string(ev.Type))
	if err := p.pub.Publish(ctx, Message{Topic: topic, Payload: payload, QoS: p.qos}); err != nil {
		return fmt.Errorf("publishing %s to %s: %w", ev.Type, topic, err)
	}
	return nil
}
