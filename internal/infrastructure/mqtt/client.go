package mqtt

import (
	"context"
	"fmt"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/imf-phoenix/gadgetd/internal/infrastructure/config"
)

// Logger is the logging surface the client needs. *logging.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any) {}
func (nopLogger) Warn(string, ...any) {}

// Option customises Connect.
type Option func(*Client)

// WithLogger reports connection changes to l.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client publishes gadgetd's outbound MQTT traffic: lifecycle events and
// the retained service status. It never subscribes.
//
// Safe for concurrent use. paho reconnects in the background; while it
// does, Publish fails fast with ErrNotConnected.
type Client struct {
	paho     pahomqtt.Client
	clientID string
	broker   string
	qos      byte
	log      Logger

	online    atomic.Bool
	published atomic.Uint64
	failed    atomic.Uint64
}

// Stats counts publish outcomes since Connect.
type Stats struct {
	Published uint64
	Failed    uint64
}

// Connect dials the broker and waits up to defaultConnectTimeout for the
// session. The broker announces "offline" on gadgetd/system/status (LWT)
// if the process vanishes; "online" is published on every (re)connect.
func Connect(cfg config.MQTTConfig, opts ...Option) (*Client, error) {
	c := &Client{
		clientID: cfg.Broker.ClientID,
		broker:   fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		qos:      byte(cfg.QoS),
		log:      nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}

	po := clientOptions(cfg)
	po.SetOnConnectHandler(func(pahomqtt.Client) { c.connected() })
	po.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.lost(err) })
	po.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.log.Info("mqtt reconnecting", "broker", c.broker)
	})
	c.paho = pahomqtt.NewClient(po)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	if err := await(ctx, c.paho.Connect()); err != nil {
		c.paho.Disconnect(0)
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, c.broker, err)
	}

	// The connect handler runs asynchronously and may not have fired yet.
	c.online.Store(true)
	return c, nil
}

// await waits for a paho token or the context, whichever ends first.
func await(ctx context.Context, tok pahomqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) connected() {
	c.online.Store(true)
	// Not awaited: blocking inside a paho callback stalls its router.
	c.paho.Publish(Topics{}.SystemStatus(), presenceQoS, true, onlinePresence(c.clientID))
	c.log.Info("mqtt connected", "broker", c.broker, "client_id", c.clientID)
}

func (c *Client) lost(err error) {
	c.online.Store(false)
	c.log.Warn("mqtt connection lost", "broker", c.broker, "error", err)
}

// Close announces a graceful offline status and disconnects.
// It is a no-op on a client that never connected.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}

	if c.IsConnected() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultPublishTimeout)
		defer cancel()
		tok := c.paho.Publish(Topics{}.SystemStatus(), presenceQoS, true,
			offlinePresence(c.clientID, reasonShutdown))
		if err := await(ctx, tok); err != nil {
			c.log.Warn("mqtt offline status not delivered", "error", err)
		}
	}

	c.paho.Disconnect(quiesceMillis)
	c.online.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether a broker session is currently up.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.online.Load() && c.paho.IsConnected()
}

// QoS returns the configured delivery level for event messages.
func (c *Client) QoS() byte {
	return c.qos
}

// Stats returns publish counters.
func (c *Client) Stats() Stats {
	return Stats{Published: c.published.Load(), Failed: c.failed.Load()}
}
