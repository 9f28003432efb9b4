package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/facasdxf/complexity-engine/internal/pkg/errors"
)

// RabbitConfig holds RabbitMQ connection settings.
type RabbitConfig struct {
	URL     string
	Timeout time.Duration // request/reply timeout (default: 30s)
}

// RabbitBus is a RabbitMQ-based event bus implementation, one durable queue
// per topic, following the same handler-map/consumer-goroutine shape as
// KafkaBus.
type RabbitBus struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	mu       sync.RWMutex
	handlers map[string][]Handler
	pending  map[string]chan Event
	closed   bool

	consumerWg   sync.WaitGroup
	consumerStop chan struct{}
	timeout      time.Duration
}

// NewRabbitBus dials cfg.URL and opens one channel shared across publishes
// and consumers.
func NewRabbitBus(cfg RabbitConfig) (*RabbitBus, error) {
	if cfg.URL == "" {
		return nil, errors.New(errors.CodeValidation, "rabbit url cannot be empty")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(errors.CodeBrokerUnavailable, "failed to connect to rabbitmq", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(errors.CodeBrokerUnavailable, "failed to open rabbitmq channel", err)
	}

	return &RabbitBus{
		conn:         conn,
		ch:           ch,
		handlers:     make(map[string][]Handler),
		pending:      make(map[string]chan Event),
		consumerStop: make(chan struct{}),
		timeout:      cfg.Timeout,
	}, nil
}

// Publish declares topic as a durable queue and publishes event to it.
func (b *RabbitBus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	if _, err := b.ch.QueueDeclare(topic, true, false, false, false, nil); err != nil {
		return errors.Wrap(errors.CodeBrokerUnavailable, "failed to declare queue", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "failed to marshal event", err)
	}

	err = b.ch.PublishWithContext(ctx, "", topic, false, false, amqp.Publishing{
		ContentType:   "application/json",
		Body:          data,
		MessageId:     event.ID,
		CorrelationId: event.CorrelationID,
	})
	if err != nil {
		return errors.Wrap(errors.CodeBrokerUnavailable, "failed to publish to rabbitmq", err)
	}
	return nil
}

// Subscribe registers a handler and starts a consumer goroutine on topic's
// queue if this is the first handler registered for it.
func (b *RabbitBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	if _, err := b.ch.QueueDeclare(topic, true, false, false, false, nil); err != nil {
		return errors.Wrap(errors.CodeBrokerUnavailable, "failed to declare queue", err)
	}

	isNewTopic := len(b.handlers[topic]) == 0
	b.handlers[topic] = append(b.handlers[topic], handler)

	if isNewTopic {
		deliveries, err := b.ch.Consume(topic, "", false, false, false, false, nil)
		if err != nil {
			return errors.Wrap(errors.CodeBrokerUnavailable, "failed to start rabbitmq consumer", err)
		}
		b.consumerWg.Add(1)
		go b.consumeTopic(topic, deliveries)
	}

	return nil
}

func (b *RabbitBus) consumeTopic(topic string, deliveries <-chan amqp.Delivery) {
	defer b.consumerWg.Done()

	for {
		select {
		case <-b.consumerStop:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal(d.Body, &event); err != nil {
				d.Nack(false, false)
				continue
			}

			b.mu.RLock()
			handlers := b.handlers[topic]
			b.mu.RUnlock()

			ok = true
			for _, handler := range handlers {
				if err := handler(context.Background(), event); err != nil {
					ok = false
				}
			}

			if ok {
				d.Ack(false)
			} else {
				d.Nack(false, true)
			}
		}
	}
}

// Request publishes req and waits for a correlated response on topic's
// response queue, mirroring KafkaBus's pending-map request/reply pattern.
func (b *RabbitBus) Request(ctx context.Context, topic string, req Event) (Event, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return Event{}, errors.New(errors.CodeUnavailable, "bus is closed")
	}

	responseChan := make(chan Event, 1)
	b.pending[req.CorrelationID] = responseChan

	responseTopic := topic + ".response"
	if len(b.handlers[responseTopic]) == 0 {
		b.handlers[responseTopic] = []Handler{b.handleResponse}
		if _, err := b.ch.QueueDeclare(responseTopic, true, false, false, false, nil); err == nil {
			if deliveries, err := b.ch.Consume(responseTopic, "", false, false, false, false, nil); err == nil {
				b.consumerWg.Add(1)
				go b.consumeTopic(responseTopic, deliveries)
			}
		}
	}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, req.CorrelationID)
		close(responseChan)
		b.mu.Unlock()
	}()

	if err := b.Publish(ctx, topic, req); err != nil {
		return Event{}, err
	}

	select {
	case <-ctx.Done():
		return Event{}, errors.Wrap(errors.CodeTimeout, "request timeout", ctx.Err())
	case <-time.After(b.timeout):
		return Event{}, errors.New(errors.CodeTimeout, "request timeout")
	case resp := <-responseChan:
		return resp, nil
	}
}

func (b *RabbitBus) handleResponse(ctx context.Context, event Event) error {
	b.mu.RLock()
	ch, ok := b.pending[event.CorrelationID]
	b.mu.RUnlock()

	if !ok {
		return nil
	}

	select {
	case ch <- event:
		return nil
	default:
		return errors.New(errors.CodeInternal, "response channel full")
	}
}

// Close stops all consumers and closes the channel and connection.
func (b *RabbitBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	close(b.consumerStop)
	b.consumerWg.Wait()

	var errs []error
	if err := b.ch.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close channel: %w", err))
	}
	if err := b.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close connection: %w", err))
	}

	if len(errs) > 0 {
		return errors.New(errors.CodeInternal, fmt.Sprintf("errors during close: %v", errs))
	}
	return nil
}
