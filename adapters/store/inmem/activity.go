package inmem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
)

// ActivityRepository keeps activity entries in insertion order.
type ActivityRepository struct {
	mu    sync.RWMutex
	items []*model.Activity
	seq   int64
}

func NewActivityRepository() *ActivityRepository {
	return &ActivityRepository{}
}

func (r *ActivityRepository) Add(_ context.Context, a *model.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == "" {
		r.seq++
		a.ID = fmt.Sprintf("act-%d-%d", time.Now().UnixNano(), r.seq)
	}
	cp := *a
	r.items = append(r.items, &cp)
	return nil
}

func (r *ActivityRepository) List(_ context.Context, cluster string, limit int) ([]*model.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Activity
	for i := len(r.items) - 1; i >= 0; i-- {
		v := r.items[i]
		if cluster != "" && v.ClusterName != cluster {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ActivityRepository) UpdateStatus(_ context.Context, id, status, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.items {
		if v.ID == id {
			v.Status = status
			if message != "" {
				v.Message = message
			}
			return nil
		}
	}
	return model.ErrActivityNotFound
}

func (r *ActivityRepository) Trim(_ context.Context, max int, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.SliceStable(r.items, func(i, j int) bool { return r.items[i].Timestamp.Before(r.items[j].Timestamp) })
	kept := r.items[:0]
	removed := 0
	for _, v := range r.items {
		if !before.IsZero() && v.Timestamp.Before(before) {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	if max > 0 && len(kept) > max {
		removed += len(kept) - max
		kept = kept[len(kept)-max:]
	}
	r.items = append([]*model.Activity(nil), kept...)
	return removed, nil
}
