package ddb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clustermaster/clustermaster/domain"
	"github.com/clustermaster/clustermaster/domain/model"
)

type NotificationRepository struct {
	table string
	cli   API
}

func (r *NotificationRepository) Add(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = "ntf-" + uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	item, err := marshalItem(pkNotification, n.ID, n)
	if err != nil {
		return err
	}
	return putItem(ctx, r.cli, r.table, item, "")
}

func (r *NotificationRepository) List(ctx context.Context, unreadOnly bool, limit int) ([]*model.Notification, error) {
	items, err := queryAll[model.Notification](ctx, r.cli, r.table, pkNotification)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	out := items[:0]
	for _, n := range items {
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	var n model.Notification
	ok, err := getItem(ctx, r.cli, r.table, pkNotification, id, &n)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: notification %s", model.ErrActivityNotFound, id)
	}
	n.Read = true
	item, err := marshalItem(pkNotification, n.ID, &n)
	if err != nil {
		return err
	}
	return putItem(ctx, r.cli, r.table, item, "")
}

var _ domain.NotificationRepository = (*NotificationRepository)(nil)
