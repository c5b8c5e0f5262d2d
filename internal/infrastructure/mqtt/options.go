package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"net"
	"net/url"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/imf-phoenix/gadgetd/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	keepAlive             = 60 * time.Second

	// quiesceMillis lets in-flight publishes drain on Disconnect.
	quiesceMillis = 1000

	maxQoS = 2

	// presenceQoS applies to the retained status message and the will.
	presenceQoS = 1
)

// Reasons carried by offline presence messages.
const (
	reasonUnexpected = "unexpected_disconnect"
	reasonShutdown   = "graceful_shutdown"
)

// presence is the retained body of the system status topic.
type presence struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (p presence) encode() []byte {
	p.Timestamp = time.Now().UTC().Format(time.RFC3339)
	b, _ := json.Marshal(p) //nolint:errcheck // string fields only
	return b
}

func onlinePresence(clientID string) []byte {
	return presence{Status: "online", ClientID: clientID}.encode()
}

func offlinePresence(clientID, reason string) []byte {
	return presence{Status: "offline", ClientID: clientID, Reason: reason}.encode()
}

// brokerURL is ssl://host:port with TLS on, tcp://host:port otherwise.
func brokerURL(b config.MQTTBrokerConfig) *url.URL {
	u := &url.URL{Scheme: "tcp", Host: net.JoinHostPort(b.Host, strconv.Itoa(b.Port))}
	if b.TLS {
		u.Scheme = "ssl"
	}
	return u
}

// clientOptions maps config onto paho options. The session is clean since
// gadgetd never subscribes, reconnects back off between the configured
// bounds, and the broker publishes an offline will if the link drops.
func clientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	id := cfg.Broker.ClientID
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker).String()).
		SetClientID(id).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(keepAlive).
		SetBinaryWill(Topics{}.SystemStatus(), offlinePresence(id, reasonUnexpected), presenceQoS, true)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}
