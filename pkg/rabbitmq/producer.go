/**
 * @description
 * Topic-exchange publisher used for notification fan-out and the email queue.
 * Exchanges are declared lazily on first use. A failed publish reopens the
 * channel once and retries before giving up.
 *
 * @dependencies
 * - github.com/rabbitmq/amqp091-go: RabbitMQ client.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const dialTimeout = 10 * time.Second

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	Close()
}

// EventProducer holds the RabbitMQ connection and channel for publishing messages.
type EventProducer struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	declared map[string]bool
}

// EventProducerFallback is a no-op publisher used when RabbitMQ is unavailable at startup.
type EventProducerFallback struct{}

func (p *EventProducerFallback) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"publish skipped\" exchange=%s routing_key=%s", exchange, routingKey)
	return nil
}

func (p *EventProducerFallback) Close() {}

// SanitizeURL strips quoting and stray prefixes from an AMQP URL and checks its scheme.
func SanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

func dial(amqpURL string) (*amqp.Connection, *amqp.Channel, error) {
	cleanURL, err := SanitizeURL(amqpURL)
	if err != nil {
		return nil, nil, err
	}
	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// NewEventProducer connects to RabbitMQ with a bounded dial timeout.
func NewEventProducer(amqpURL string) (*EventProducer, error) {
	conn, ch, err := dial(amqpURL)
	if err != nil {
		return nil, err
	}
	return &EventProducer{conn: conn, channel: ch, declared: make(map[string]bool)}, nil
}

// Publish marshals body as JSON and sends it to exchange with routingKey.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		log.Printf("level=error component=rabbitmq_producer msg=\"json marshal failed\" exchange=%s routing_key=%s err=%v", exchange, routingKey, err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.publishLocked(ctx, exchange, routingKey, payload)
	if err == nil {
		return nil
	}

	log.Printf("level=warn component=rabbitmq_producer msg=\"publish failed; reopening channel\" exchange=%s routing_key=%s err=%v", exchange, routingKey, err)
	if reopenErr := p.reopenLocked(); reopenErr != nil {
		return reopenErr
	}
	return p.publishLocked(ctx, exchange, routingKey, payload)
}

func (p *EventProducer) publishLocked(ctx context.Context, exchange, routingKey string, payload []byte) error {
	if !p.declared[exchange] {
		if err := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			return err
		}
		p.declared[exchange] = true
	}
	return p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	})
}

func (p *EventProducer) reopenLocked() error {
	if p.conn == nil || p.conn.IsClosed() {
		return amqp.ErrClosed
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	p.channel = ch
	p.declared = make(map[string]bool)
	return nil
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
