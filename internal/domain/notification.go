package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeAlert   NotificationType = "alert"
	NotificationTypeMessage NotificationType = "message"
)

// Notification is an in-app message addressed to an account.
type Notification struct {
	ID        uuid.UUID         `json:"id"`
	Recipient AccountRef        `json:"recipient"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Type      NotificationType  `json:"type"`
	IsRead    bool              `json:"is_read"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NotificationEvent is published for real-time fan-out.
type NotificationEvent struct {
	NotificationID uuid.UUID        `json:"notification_id"`
	Recipient      AccountRef       `json:"recipient"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	Type           NotificationType `json:"type"`
	CreatedAt      time.Time        `json:"created_at"`
}

// EmailMessage is a rendered-on-delivery email request.
type EmailMessage struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`
}
