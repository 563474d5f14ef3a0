package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/Zymoclassic/eduplat/pkg/mailer"
)

// EmailConsumer drains the email queue into SMTP.
type EmailConsumer struct {
	mailer Mailer
}

func NewEmailConsumer(m Mailer) *EmailConsumer {
	return &EmailConsumer{mailer: m}
}

// HandleMessage returns false only for failures worth retrying.
func (c *EmailConsumer) HandleMessage(body []byte) bool {
	var msg domain.EmailMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Printf("level=warn component=email_consumer msg=\"failed to unmarshal payload\" err=%v", err)
		return true
	}
	if strings.TrimSpace(msg.To) == "" {
		log.Printf("level=warn component=email_consumer msg=\"email without recipient dropped\" template=%s", msg.Template)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.mailer.Send(ctx, msg.To, msg.Subject, msg.Template, msg.Data); err != nil {
		if errors.Is(err, mailer.ErrNotConfigured) {
			log.Printf("level=warn component=email_consumer msg=\"smtp not configured; email dropped\" to=%s", msg.To)
			return true
		}
		log.Printf("level=error component=email_consumer msg=\"delivery failed\" to=%s err=%v", msg.To, err)
		return false
	}
	return true
}
