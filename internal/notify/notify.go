package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"growbox/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Notifier publishes best-effort state-change events. Implementations
// must never block controller logic on a broken transport.
type Notifier interface {
	Emit(event string, payload map[string]any)
	Close()
}

// Nop is the fallback when no broker is configured.
type Nop struct{}

func (Nop) Emit(string, map[string]any) {}
func (Nop) Close()                      {}

const (
	connectTimeout = 5 * time.Second
	publishQoS     = 0
)

// MQTTNotifier publishes events as JSON to <prefix>/<event> topics.
type MQTTNotifier struct {
	client mqtt.Client
	prefix string
	log    *logger.Logger
}

// NewMQTT connects to the broker. A connection failure is returned so
// the caller can decide to fall back to Nop.
func NewMQTT(brokerURL, clientID, prefix string, log *logger.Logger) (*MQTTNotifier, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", brokerURL, err)
	}

	return &MQTTNotifier{client: client, prefix: prefix, log: log}, nil
}

// Emit publishes fire-and-forget. Errors are logged, never propagated.
// The envelope keys go into a copy; the caller's map is never touched.
func (n *MQTTNotifier) Emit(event string, payload map[string]any) {
	msg := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		msg[k] = v
	}
	msg["event"] = event
	msg["ts"] = time.Now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(msg)
	if err != nil {
		n.log.Warnw("notify marshal failed", "event", event, "err", err)
		return
	}

	topic := n.prefix + "/" + event
	token := n.client.Publish(topic, publishQoS, false, body)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			n.log.Debugw("notify publish failed", "topic", topic, "err", err)
		}
	}()
}

func (n *MQTTNotifier) Close() {
	n.client.Disconnect(250)
}
