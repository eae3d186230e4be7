package inmem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
)

// NotificationRepository keeps notifications newest last.
type NotificationRepository struct {
	mu    sync.RWMutex
	items []*model.Notification
	seq   int64
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

func (r *NotificationRepository) Add(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == "" {
		r.seq++
		n.ID = fmt.Sprintf("ntf-%d-%d", time.Now().UnixNano(), r.seq)
	}
	cp := *n
	r.items = append(r.items, &cp)
	return nil
}

func (r *NotificationRepository) List(_ context.Context, unreadOnly bool, limit int) ([]*model.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Notification
	for i := len(r.items) - 1; i >= 0; i-- {
		v := r.items[i]
		if unreadOnly && v.Read {
			continue
		}
		cp := *v
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *NotificationRepository) MarkRead(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.items {
		if v.ID == id {
			v.Read = true
			return nil
		}
	}
	return fmt.Errorf("%w: notification %s", model.ErrActivityNotFound, id)
}
