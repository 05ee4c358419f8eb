package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pokeayman/pokeayman/internal/model"
)

type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

const notificationCols = `id, recipient_id, title, message, kind, created_at`

func (s *NotificationStore) Insert(recipientID int64, title, message, kind string) (*model.Notification, error) {
	result, err := s.db.Exec(
		`INSERT INTO notifications (recipient_id, title, message, kind) VALUES (?, ?, ?, ?)`,
		recipientID, title, message, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	var n model.Notification
	err = s.db.QueryRow(`SELECT `+notificationCols+` FROM notifications WHERE id = ?`, id).
		Scan(&n.ID, &n.RecipientID, &n.Title, &n.Message, &n.Kind, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &n, nil
}

// SentSince reports whether an identical notification was already recorded
// for the recipient after the given time.
func (s *NotificationStore) SentSince(recipientID int64, title, message, kind string, since time.Time) (bool, error) {
	var count int
	// created_at comes from CURRENT_TIMESTAMP, so compare in the same
	// text format.
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM notifications
		 WHERE recipient_id = ? AND title = ? AND message = ? AND kind = ? AND created_at > ?`,
		recipientID, title, message, kind, since.UTC().Format("2006-01-02 15:04:05"),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count recent notifications: %w", err)
	}
	return count > 0, nil
}

func (s *NotificationStore) ListByRecipient(recipientID int64, limit int) ([]model.Notification, error) {
	rows, err := s.db.Query(
		`SELECT `+notificationCols+` FROM notifications
		 WHERE recipient_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		recipientID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Message, &n.Kind, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
