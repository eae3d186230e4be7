package activity

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
)

// NotifyInput describes a notification.
type NotifyInput struct {
	Level       string `json:"level"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	ClusterName string `json:"cluster_name,omitempty"`
}

// Notify stores the notification and hands it to the notifier. Delivery
// failures are logged and returned, the stored copy is kept.
func (u *UseCase) Notify(ctx context.Context, in *NotifyInput) (*model.Notification, error) {
	if in == nil || in.Title == "" {
		return nil, errors.New("notification title is required")
	}
	level := in.Level
	if level == "" {
		level = model.NotificationInfo
	}
	n := &model.Notification{
		ID:          "ntf-" + uuid.NewString(),
		Level:       level,
		Title:       in.Title,
		Message:     in.Message,
		ClusterName: in.ClusterName,
		CreatedAt:   u.now(),
	}
	var errs []error
	if u.Repos.Notification != nil {
		if err := u.Repos.Notification.Add(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	if u.Notifier != nil {
		if err := u.Notifier.Notify(ctx, n); err != nil {
			logging.FromContext(ctx).Warn(ctx, "notification delivery failed", "title", n.Title, "error", err)
			errs = append(errs, err)
		}
	}
	return n, errors.Join(errs...)
}

// NotificationsInput filters notifications.
type NotificationsInput struct {
	UnreadOnly bool `json:"unread_only,omitempty"`
	Limit      int  `json:"limit,omitempty"`
}

type NotificationsOutput struct {
	Notifications []*model.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

// Notifications lists notifications newest first.
func (u *UseCase) Notifications(ctx context.Context, in *NotificationsInput) (*NotificationsOutput, error) {
	if in == nil {
		in = &NotificationsInput{}
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 20
	}
	items, err := u.Repos.Notification.List(ctx, in.UnreadOnly, limit)
	if err != nil {
		return nil, err
	}
	unread, err := u.Repos.Notification.List(ctx, true, 0)
	if err != nil {
		return nil, err
	}
	return &NotificationsOutput{Notifications: items, Unread: len(unread)}, nil
}

// MarkRead marks one notification as read.
func (u *UseCase) MarkRead(ctx context.Context, id string) error {
	return u.Repos.Notification.MarkRead(ctx, id)
}
