package ddb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clustermaster/clustermaster/domain"
	"github.com/clustermaster/clustermaster/domain/model"
)

type ActivityRepository struct {
	table string
	cli   API
}

func (r *ActivityRepository) Add(ctx context.Context, a *model.Activity) error {
	if a.ID == "" {
		a.ID = "act-" + uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	item, err := marshalItem(pkActivity, a.ID, a)
	if err != nil {
		return err
	}
	return putItem(ctx, r.cli, r.table, item, "")
}

func (r *ActivityRepository) all(ctx context.Context) ([]*model.Activity, error) {
	items, err := queryAll[model.Activity](ctx, r.cli, r.table, pkActivity)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Timestamp.After(items[j].Timestamp) })
	return items, nil
}

func (r *ActivityRepository) List(ctx context.Context, cluster string, limit int) ([]*model.Activity, error) {
	items, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, a := range items {
		if cluster != "" && a.ClusterName != cluster {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *ActivityRepository) UpdateStatus(ctx context.Context, id, status, message string) error {
	var a model.Activity
	ok, err := getItem(ctx, r.cli, r.table, pkActivity, id, &a)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrActivityNotFound
	}
	a.Status = status
	if message != "" {
		a.Message = message
	}
	item, err := marshalItem(pkActivity, a.ID, &a)
	if err != nil {
		return err
	}
	return putItem(ctx, r.cli, r.table, item, "")
}

func (r *ActivityRepository) Trim(ctx context.Context, max int, before time.Time) (int, error) {
	items, err := r.all(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for i, a := range items {
		if (max <= 0 || i < max) && (before.IsZero() || !a.Timestamp.Before(before)) {
			continue
		}
		ok, err := deleteItem(ctx, r.cli, r.table, pkActivity, a.ID)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

var _ domain.ActivityRepository = (*ActivityRepository)(nil)
