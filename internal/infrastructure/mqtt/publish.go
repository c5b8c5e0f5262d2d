package mqtt

import (
	"context"
	"fmt"
	"strings"
)

// maxPayloadSize caps a single message at 1 MiB.
const maxPayloadSize = 1 << 20

// Message is one outbound MQTT publication.
type Message struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// Publish sends m and, for QoS above 0, waits for the broker's
// acknowledgement. The wait ends at ctx's deadline or after
// defaultPublishTimeout, whichever is sooner.
func (c *Client) Publish(ctx context.Context, m Message) error {
	if err := m.validate(); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	if err := await(ctx, c.paho.Publish(m.Topic, m.QoS, m.Retained, m.Payload)); err != nil {
		c.failed.Add(1)
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, m.Topic, err)
	}
	c.published.Add(1)
	return nil
}

func (m Message) validate() error {
	if m.Topic == "" || strings.ContainsAny(m.Topic, "+#") {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, m.Topic)
	}
	if m.QoS > maxQoS {
		return fmt.Errorf("%w: got %d", ErrInvalidQoS, m.QoS)
	}
	if len(m.Payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrPublishFailed, len(m.Payload), maxPayloadSize)
	}
	return nil
}
