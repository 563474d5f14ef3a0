/**
 * @description
 * Notification sink used by the ledger flows. The dispatcher persists an in-app
 * notification, announces it on the event stream and, when the notice carries
 * an email, hands the email to the configured sender. Every step is best
 * effort: failures are logged and never returned to the caller.
 *
 * @dependencies
 * - internal/store: notification persistence.
 * - pkg/rabbitmq, pkg/kafka: event fan-out backends.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/Zymoclassic/eduplat/pkg/kafka"
	"github.com/Zymoclassic/eduplat/pkg/rabbitmq"
)

const (
	RoutingKeyNotificationCreated = "notification.created"
	RoutingKeyNotificationEmail   = "notification.email"

	notifyTimeout = 5 * time.Second
)

// Notice is one message for one account, optionally mirrored by email.
type Notice struct {
	Recipient domain.AccountRef
	Title     string
	Message   string
	Type      domain.NotificationType
	Metadata  map[string]string
	Email     *domain.EmailMessage
}

// Notifier is the injected notification sink.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// EmailSender delivers an email or reports why it could not.
type EmailSender interface {
	SendEmail(ctx context.Context, msg domain.EmailMessage) error
}

// EventPublisher announces domain events on the notification stream.
type EventPublisher interface {
	PublishEvent(ctx context.Context, routingKey string, payload interface{}) error
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, notification *domain.Notification) error
}

// NotificationDispatcher implements Notifier.
type NotificationDispatcher struct {
	store  NotificationStore
	events EventPublisher
	email  EmailSender
}

func NewNotificationDispatcher(store NotificationStore, events EventPublisher, email EmailSender) *NotificationDispatcher {
	return &NotificationDispatcher{store: store, events: events, email: email}
}

func (d *NotificationDispatcher) Notify(ctx context.Context, notice Notice) {
	// Detach from the request so a client disconnect does not drop the notice.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	notification := &domain.Notification{
		Recipient: notice.Recipient,
		Title:     notice.Title,
		Message:   notice.Message,
		Type:      notice.Type,
		Metadata:  notice.Metadata,
	}
	if notification.Type == "" {
		notification.Type = domain.NotificationTypeInfo
	}

	if d.store != nil {
		if err := d.store.CreateNotification(ctx, notification); err != nil {
			log.Printf("level=warn component=notifier msg=\"failed to persist notification\" recipient=%s err=%v", notice.Recipient, err)
		} else if d.events != nil {
			event := domain.NotificationEvent{
				NotificationID: notification.ID,
				Recipient:      notification.Recipient,
				Title:          notification.Title,
				Message:        notification.Message,
				Type:           notification.Type,
				CreatedAt:      notification.CreatedAt,
			}
			if err := d.events.PublishEvent(ctx, RoutingKeyNotificationCreated, event); err != nil {
				log.Printf("level=warn component=notifier msg=\"failed to publish notification event\" notification_id=%s err=%v", notification.ID, err)
			}
		}
	}

	if notice.Email != nil && notice.Email.To != "" && d.email != nil {
		if err := d.email.SendEmail(ctx, *notice.Email); err != nil {
			log.Printf("level=warn component=notifier msg=\"failed to send notification email\" to=%s err=%v", notice.Email.To, err)
		}
	}
}

// ExchangeEventPublisher publishes to a RabbitMQ topic exchange.
type ExchangeEventPublisher struct {
	producer rabbitmq.Publisher
	exchange string
}

func NewExchangeEventPublisher(producer rabbitmq.Publisher, exchange string) *ExchangeEventPublisher {
	return &ExchangeEventPublisher{producer: producer, exchange: exchange}
}

func (p *ExchangeEventPublisher) PublishEvent(ctx context.Context, routingKey string, payload interface{}) error {
	return p.producer.Publish(ctx, p.exchange, routingKey, payload)
}

// TopicEventPublisher publishes to a Kafka topic keyed by routing key.
type TopicEventPublisher struct {
	producer *kafka.Producer
}

func NewTopicEventPublisher(producer *kafka.Producer) *TopicEventPublisher {
	return &TopicEventPublisher{producer: producer}
}

func (p *TopicEventPublisher) PublishEvent(ctx context.Context, routingKey string, payload interface{}) error {
	return p.producer.PublishJSON(ctx, routingKey, payload)
}

// QueuedEmailSender hands emails to the RabbitMQ email queue for EmailConsumer.
type QueuedEmailSender struct {
	producer rabbitmq.Publisher
	exchange string
}

func NewQueuedEmailSender(producer rabbitmq.Publisher, exchange string) *QueuedEmailSender {
	return &QueuedEmailSender{producer: producer, exchange: exchange}
}

func (s *QueuedEmailSender) SendEmail(ctx context.Context, msg domain.EmailMessage) error {
	return s.producer.Publish(ctx, s.exchange, RoutingKeyNotificationEmail, msg)
}

// Mailer is the SMTP delivery contract satisfied by pkg/mailer.
type Mailer interface {
	Send(ctx context.Context, to, subject, templateName string, data map[string]string) error
}

// DirectEmailSender sends through SMTP synchronously.
type DirectEmailSender struct {
	mailer Mailer
}

func NewDirectEmailSender(mailer Mailer) *DirectEmailSender {
	return &DirectEmailSender{mailer: mailer}
}

func (s *DirectEmailSender) SendEmail(ctx context.Context, msg domain.EmailMessage) error {
	if s.mailer == nil {
		return errors.New("no mailer configured")
	}
	return s.mailer.Send(ctx, msg.To, msg.Subject, msg.Template, msg.Data)
}
