package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/onap/policy-clamp-acm/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is in milliseconds.
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second
	maxQoS           = 2
	tlsMinVersion    = tls.VersionTLS12
)

// buildClientOptions creates paho MQTT options from the runtime config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID and credentials
//   - Auto-reconnect with backoff between InitialDelay and MaxDelay
//   - TLS 1.2 minimum when enabled
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Participants replay state through status reports, so a persistent
	// broker session is not needed.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetOrderMatters(false)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// configureLWT makes the broker publish a retained offline status for the
// runtime if the connection drops without a clean Close. Participants use it
// to stop waiting on a dead runtime.
func configureLWT(opts *pahomqtt.ClientOptions, runtimeID string) {
	opts.SetWill(Topics{}.RuntimeStatus(runtimeID), buildStatusPayload(runtimeID, "offline", "unexpected_disconnect"), 1, true)
}

// buildStatusPayload creates the JSON presence payload for the runtime.
func buildStatusPayload(runtimeID, status, reason string) string {
	if reason == "" {
		return fmt.Sprintf(`{"status":"%s","runtime_id":"%s","timestamp":"%s"}`,
			status, runtimeID, time.Now().UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf(`{"status":"%s","runtime_id":"%s","reason":"%s","timestamp":"%s"}`,
		status, runtimeID, reason, time.Now().UTC().Format(time.RFC3339))
}
