// Package notify delivers informational messages to students after reward
// operations. Delivery is best effort: failures are logged and never reach
// the operation that triggered them.
package notify

import (
	"log/slog"
	"time"

	"github.com/pokeayman/pokeayman/internal/model"
	"github.com/pokeayman/pokeayman/internal/push"
	"github.com/pokeayman/pokeayman/internal/store"
)

// dedupWindow suppresses identical notifications sent in quick succession,
// e.g. from a retried operation.
const dedupWindow = 5 * time.Minute

type Service struct {
	notifications *store.NotificationStore
	subscriptions *store.PushStore
	push          *push.Service // nil when web push is not configured
	logger        *slog.Logger
}

func NewService(notifications *store.NotificationStore, subscriptions *store.PushStore, pushSvc *push.Service, logger *slog.Logger) *Service {
	return &Service{
		notifications: notifications,
		subscriptions: subscriptions,
		push:          pushSvc,
		logger:        logger,
	}
}

// Send records a notification for the student and pushes it to any
// registered devices. An identical (recipient, title, message, kind)
// notification within the dedup window is suppressed. Send never returns an
// error; the caller's operation already succeeded and stays successful.
func (s *Service) Send(recipientID int64, title, message, kind string) {
	dup, err := s.notifications.SentSince(recipientID, title, message, kind, time.Now().Add(-dedupWindow))
	if err != nil {
		s.logger.Warn("notification dedup check failed", "recipient_id", recipientID, "error", err)
	}
	if dup {
		s.logger.Debug("suppressed duplicate notification", "recipient_id", recipientID, "title", title)
		return
	}

	if _, err := s.notifications.Insert(recipientID, title, message, kind); err != nil {
		s.logger.Warn("record notification failed", "recipient_id", recipientID, "error", err)
		return
	}

	if s.push == nil {
		return
	}

	subs, err := s.subscriptions.ListByStudent(recipientID)
	if err != nil {
		s.logger.Warn("list push subscriptions failed", "recipient_id", recipientID, "error", err)
		return
	}

	payload := push.Payload{Title: title, Body: message, Tag: kind}
	for _, sub := range subs {
		go s.deliver(sub, payload)
	}
}

func (s *Service) deliver(sub model.PushSubscription, payload push.Payload) {
	err := s.push.Send(&sub, payload)
	if err == push.ErrExpired {
		if err := s.subscriptions.DeleteByEndpoint(sub.Endpoint); err != nil {
			s.logger.Warn("remove expired subscription failed", "endpoint", sub.Endpoint, "error", err)
		}
		return
	}
	if err != nil {
		s.logger.Warn("push delivery failed", "student_id", sub.StudentID, "error", err)
	}
}
