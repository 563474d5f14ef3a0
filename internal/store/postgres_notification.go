package store

import (
	"context"
	"encoding/json"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/google/uuid"
)

const defaultNotificationLimit = 50

func (r *PostgresRepository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Type == "" {
		n.Type = domain.NotificationTypeInfo
	}
	metadata := n.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO notifications (id, recipient_kind, recipient_id, title, message, type, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, n.ID, n.Recipient.Kind, n.Recipient.ID, n.Title, n.Message, n.Type, payload).Scan(&n.CreatedAt)
}

// ListNotifications returns the newest notifications first.
func (r *PostgresRepository) ListNotifications(ctx context.Context, recipient domain.AccountRef, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultNotificationLimit
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, title, message, type, is_read, read_at, metadata, created_at
		FROM notifications
		WHERE recipient_kind = $1 AND recipient_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, recipient.Kind, recipient.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.Notification{}
	for rows.Next() {
		n := domain.Notification{Recipient: recipient}
		var metadata []byte
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.ReadAt, &metadata, &n.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &n.Metadata)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, recipient domain.AccountRef, notificationID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND recipient_kind = $2 AND recipient_id = $3
	`, notificationID, recipient.Kind, recipient.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *PostgresRepository) MarkAllNotificationsRead(ctx context.Context, recipient domain.AccountRef) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = NOW()
		WHERE recipient_kind = $1 AND recipient_id = $2 AND is_read = FALSE
	`, recipient.Kind, recipient.ID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
