package rabbitmq

import (
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one delivery. Returning false re-queues the message.
type Handler func(body []byte) bool

type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewConsumer(amqpURL string) (*Consumer, error) {
	conn, ch, err := dial(amqpURL)
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(10, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch}, nil
}

// ConsumeWithBindings declares a durable queue, binds it to exchange for each
// routing key and dispatches deliveries to the matching handler.
func (c *Consumer) ConsumeWithBindings(exchange, queueName string, bindings map[string]Handler) error {
	if len(bindings) == 0 {
		return fmt.Errorf("no bindings provided")
	}

	if err := c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return err
	}

	handlers := make(map[string]Handler, len(bindings))
	for routingKey, handler := range bindings {
		if handler == nil {
			continue
		}
		handlers[routingKey] = handler
		if err := c.ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
			return err
		}
	}

	deliveries, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for d := range deliveries {
			dispatch(handlers, d.RoutingKey, d.Body, d)
		}
		log.Printf("level=warn component=rabbitmq_consumer msg=\"delivery channel closed\" queue=%s", q.Name)
	}()
	return nil
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func dispatch(handlers map[string]Handler, routingKey string, body []byte, ack acknowledger) {
	handler, ok := handlers[routingKey]
	if !ok {
		log.Printf("level=warn component=rabbitmq_consumer msg=\"no handler for routing key; dropping\" routing_key=%s", routingKey)
		_ = ack.Ack(false)
		return
	}
	if handler(body) {
		_ = ack.Ack(false)
		return
	}
	log.Printf("level=warn component=rabbitmq_consumer msg=\"handler failed; re-queuing\" routing_key=%s", routingKey)
	_ = ack.Nack(false, true)
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
