package transport

import (
	"context"
	"fmt"

	"github.com/onap/policy-clamp-acm/internal/infrastructure/mqtt"
)

// MQTTSubscriber is the subset of the MQTT client used to receive
// participant messages. *mqtt.Client satisfies it.
type MQTTSubscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	QoS() byte
}

// Router subscribes to every participant's status, heartbeat and prime
// topics, decodes the payloads and hands them to the inbound channels.
//
// Handlers block while a channel is full so reports are never silently
// dropped; paho's inflight window provides backpressure to the broker.
type Router struct {
	reports    chan StatusReport
	heartbeats chan Heartbeat
	primeAcks  chan PrimeAck
	logger     Logger
	topics     mqtt.Topics
}

// NewRouter creates a router whose channels each buffer up to size messages.
func NewRouter(size int) *Router {
	if size < 1 {
		size = 1
	}
	return &Router{
		reports:    make(chan StatusReport, size),
		heartbeats: make(chan Heartbeat, size),
		primeAcks:  make(chan PrimeAck, size),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for malformed messages.
func (r *Router) SetLogger(logger Logger) {
	r.logger = logger
}

// Reports returns the inbound status report channel.
func (r *Router) Reports() <-chan StatusReport { return r.reports }

// Heartbeats returns the inbound heartbeat channel.
func (r *Router) Heartbeats() <-chan Heartbeat { return r.heartbeats }

// PrimeAcks returns the inbound prime acknowledgement channel.
func (r *Router) PrimeAcks() <-chan PrimeAck { return r.primeAcks }

// Start subscribes to the participant topics. Handlers stop delivering once
// ctx is done.
func (r *Router) Start(ctx context.Context, client MQTTSubscriber) error {
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{r.topics.AllParticipantStatus(), r.statusHandler(ctx)},
		{r.topics.AllParticipantHeartbeats(), r.heartbeatHandler(ctx)},
		{r.topics.AllParticipantPrimeAcks(), r.primeHandler(ctx)},
	}
	for _, s := range subs {
		if err := client.Subscribe(s.topic, client.QoS(), s.handler); err != nil {
			return fmt.Errorf("subscribing %s: %w", s.topic, err)
		}
	}
	return nil
}

func (r *Router) statusHandler(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		participantID, err := participantOf(topic, "status")
		if err != nil {
			return err
		}
		report, err := DecodeStatusReport(participantID, payload)
		if err != nil {
			return err
		}
		return deliver(ctx, r.reports, report)
	}
}

func (r *Router) heartbeatHandler(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		participantID, err := participantOf(topic, "heartbeat")
		if err != nil {
			return err
		}
		hb, err := DecodeHeartbeat(participantID, payload)
		if err != nil {
			return err
		}
		return deliver(ctx, r.heartbeats, hb)
	}
}

func (r *Router) primeHandler(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		participantID, err := participantOf(topic, "prime")
		if err != nil {
			return err
		}
		ack, err := DecodePrimeAck(participantID, payload)
		if err != nil {
			return err
		}
		return deliver(ctx, r.primeAcks, ack)
	}
}

func participantOf(topic, wantKind string) (string, error) {
	id, kind, ok := mqtt.ParticipantFromTopic(topic)
	if !ok || kind != wantKind {
		return "", fmt.Errorf("%w: unexpected topic %q", ErrInvalidMessage, topic)
	}
	return id, nil
}

func deliver[T any](ctx context.Context, ch chan<- T, msg T) error {
	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
