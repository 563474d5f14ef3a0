/**
 * @description
 * Kafka producer for the notification stream. Used instead of the RabbitMQ
 * exchange when NOTIFICATION_BROKER=kafka. SASL/PLAIN over TLS is enabled when
 * credentials are supplied.
 *
 * @dependencies
 * - github.com/segmentio/kafka-go: Kafka client.
 */
package kafka

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"log"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

const publishTimeout = 5 * time.Second

type Producer struct {
	writer *kafkago.Writer
}

// NewProducer builds a synchronous writer for topic.
func NewProducer(brokers []string, topic, username, password string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("kafka: topic is required")
	}

	transport := &kafkago.Transport{}
	if username != "" {
		transport.SASL = plain.Mechanism{Username: username, Password: password}
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &Producer{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireAll,
			Transport:              transport,
			WriteTimeout:           10 * time.Second,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// PublishJSON writes value as JSON keyed by key. A nil producer skips the publish.
func (p *Producer) PublishJSON(ctx context.Context, key string, value interface{}) error {
	if p == nil || p.writer == nil {
		log.Printf("level=warn component=kafka_producer msg=\"producer not ready; publish skipped\" key=%s", key)
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
