package transport

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/onap/policy-clamp-acm/internal/infrastructure/metrics"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/mqtt"
)

// MQTTPublisher is the subset of the MQTT client used to send commands.
// *mqtt.Client satisfies it.
type MQTTPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	QoS() byte
}

// Logger is the subset of the runtime logger used by the transport.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher drains a Queue onto participant command topics with a fixed
// pool of workers.
//
// A command that fails to encode or publish is logged and counted; it is
// not retried. The phase deadline in the dispatcher turns a lost command
// into a TIMEOUT.
type Publisher struct {
	client  MQTTPublisher
	queue   *Queue
	workers int
	metrics *metrics.Metrics
	logger  Logger
	topics  mqtt.Topics
}

// NewPublisher creates a publisher. workers below 1 is treated as 1.
// m may be nil.
func NewPublisher(client MQTTPublisher, queue *Queue, workers int, m *metrics.Metrics) *Publisher {
	if workers < 1 {
		workers = 1
	}
	return &Publisher{
		client:  client,
		queue:   queue,
		workers: workers,
		metrics: m,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for publish failures.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// Run publishes until ctx is cancelled or the queue is closed and drained.
func (p *Publisher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			p.work(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (p *Publisher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-p.queue.C():
			p.publish(cmd)
		case <-p.queue.Done():
			p.drain()
			return
		}
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case cmd := <-p.queue.C():
			p.publish(cmd)
		default:
			return
		}
	}
}

func (p *Publisher) publish(cmd Command) {
	payload, err := EncodeCommand(cmd)
	if err != nil {
		p.metrics.PublishFailed()
		p.logger.Error("dropping unencodable command", "message_id", cmd.MessageID, "error", err)
		return
	}

	topic := p.topics.ParticipantCommand(cmd.ParticipantID)
	if err := p.client.Publish(topic, payload, p.client.QoS(), false); err != nil {
		p.metrics.PublishFailed()
		p.logger.Warn("publishing command failed",
			"topic", topic,
			"order", cmd.Order,
			"instance_id", cmd.InstanceID,
			"error", err)
		return
	}

	p.metrics.CommandSent(cmd.Order)
	p.logger.Debug("command published",
		"topic", topic,
		"order", cmd.Order,
		"instance_id", cmd.InstanceID,
		"elements", len(cmd.Elements))
}
