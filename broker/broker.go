// Package broker implements the AMQP 0-9-1 publisher and consumer pocsync
// runs its queues over, using github.com/rabbitmq/amqp091-go. Grounded on
// the teacher's module.KafkaBroker (module/kafka_broker.go): a single
// long-lived connection guarded by a mutex, a healthy/unhealthy flag
// flipped around connect/disconnect, and a consumer loop that acks every
// message regardless of handler outcome. Generalized from Kafka's
// topic/consumer-group model to AMQP's connection/channel/queue model and
// from Sarama's client to amqp091-go's.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one message body and reports whether it was handled
// without error. Its return value is purely informational: the consumer
// acknowledges the broker delivery regardless (on_failure = ack), per
// spec.md §6. Declared as an alias so callers can depend on the plain
// function type without importing this package just for the name.
type Handler = func(ctx context.Context, body []byte) error

// Broker owns a single AMQP connection shared by every Publish call and
// every registered Consume loop, plus one channel shared by every Publish
// call (each Consume loop opens its own channel). Publish calls serialize through
// a mutex; on an observed connection or channel death the broker reopens,
// and publishes fail with an error in the window before recovery
// completes, matching spec.md §5's shared-mutable-resource note on the
// AMQP publisher.
type Broker struct {
	url    string
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	healthy bool
}

// New constructs a Broker that will dial url on Connect.
func New(url string, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{url: url, logger: logger}
}

// Connect dials the broker and opens the shared channel. It declares no
// queues itself; queues are declared lazily by Publish/Consume via
// QueueDeclare, which is idempotent.
func (b *Broker) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectLocked()
}

func (b *Broker) connectLocked() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		b.healthy = false
		return fmt.Errorf("broker: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		b.healthy = false
		return fmt.Errorf("broker: open channel: %w", err)
	}

	b.conn = conn
	b.channel = ch
	b.healthy = true
	b.logger.Info("broker connected", "url", redactURL(b.url))
	return nil
}

// Close tears down the broker's connection and channel.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var lastErr error
	if b.channel != nil {
		if err := b.channel.Close(); err != nil {
			lastErr = err
		}
		b.channel = nil
	}
	if b.conn != nil {
		if err := b.conn.Close(); err != nil {
			lastErr = err
		}
		b.conn = nil
	}
	b.healthy = false
	return lastErr
}

// Healthy reports whether the broker currently holds a live connection.
func (b *Broker) Healthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.healthy
}

// Publish sends body to queue, declaring it first if it does not exist.
// On an observed connection/channel death, Publish reopens the connection
// once before giving up, matching the teacher's reconnect-on-death
// pattern for the Kafka producer.
func (b *Broker) Publish(ctx context.Context, queue string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.channel == nil || b.conn == nil || b.conn.IsClosed() {
		if err := b.connectLocked(); err != nil {
			return fmt.Errorf("broker: publish %q: reconnect failed: %w", queue, err)
		}
	} else if b.channel.IsClosed() {
		ch, err := b.conn.Channel()
		if err != nil {
			b.healthy = false
			return fmt.Errorf("broker: publish %q: reopen channel: %w", queue, err)
		}
		b.channel = ch
		b.healthy = true
	}

	if _, err := b.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		b.healthy = false
		return fmt.Errorf("broker: declare queue %q: %w", queue, err)
	}

	err := b.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		b.healthy = false
		return fmt.Errorf("broker: publish %q: %w", queue, err)
	}
	return nil
}

// Consume starts a dedicated channel consuming queue with the given
// prefetch count, calling handler for every delivery and acknowledging it
// regardless of the handler's outcome (on_failure = ack). It blocks until
// ctx is cancelled or the consume channel closes.
func (b *Broker) Consume(ctx context.Context, queue string, prefetchCount int, handler Handler) error {
	b.mu.Lock()
	if b.conn == nil || b.conn.IsClosed() {
		if err := b.connectLocked(); err != nil {
			b.mu.Unlock()
			return fmt.Errorf("broker: consume %q: connect failed: %w", queue, err)
		}
	}
	conn := b.conn
	b.mu.Unlock()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("broker: consume %q: open channel: %w", queue, err)
	}
	defer ch.Close()

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return fmt.Errorf("broker: consume %q: set qos: %w", queue, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("broker: consume %q: declare queue: %w", queue, err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("broker: consume %q: start consuming: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("broker: consume %q: delivery channel closed", queue)
			}
			if err := handler(ctx, msg.Body); err != nil {
				b.logger.Error("handler failed for message", "queue", queue, "error", err)
			}
			if err := msg.Ack(false); err != nil {
				b.logger.Error("failed to ack message", "queue", queue, "error", err)
			}
		}
	}
}

func redactURL(url string) string {
	at := -1
	for i := 0; i < len(url); i++ {
		if url[i] == '@' {
			at = i
		}
	}
	if at < 0 {
		return url
	}
	scheme := ""
	for i := 0; i < len(url); i++ {
		if url[i] == ':' && i+2 < len(url) && url[i+1] == '/' && url[i+2] == '/' {
			scheme = url[:i+3]
			break
		}
	}
	return scheme + "[REDACTED]" + url[at:]
}
