package rdb

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clustermaster/clustermaster/domain"
	"github.com/clustermaster/clustermaster/domain/model"
)

type ActivityRepository struct{ db *gorm.DB }

func NewActivityRepository(db *gorm.DB) *ActivityRepository { return &ActivityRepository{db: db} }

func activityToModel(r *ActivityRecord) *model.Activity {
	return &model.Activity{
		ID:          r.ID,
		Type:        r.Type,
		Action:      r.Action,
		ClusterName: r.ClusterName,
		Status:      r.Status,
		Message:     r.Message,
		Details:     decodeMap(r.Details),
		User:        r.User,
		Timestamp:   r.Timestamp,
	}
}

func (r *ActivityRepository) Add(ctx context.Context, a *model.Activity) error {
	if a.ID == "" {
		a.ID = "act-" + uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(&ActivityRecord{
		ID:          a.ID,
		Type:        a.Type,
		Action:      a.Action,
		ClusterName: a.ClusterName,
		Status:      a.Status,
		Message:     a.Message,
		Details:     encodeMap(a.Details),
		User:        a.User,
		Timestamp:   a.Timestamp,
	}).Error
}

func (r *ActivityRepository) List(ctx context.Context, cluster string, limit int) ([]*model.Activity, error) {
	q := r.db.WithContext(ctx).Order("timestamp DESC")
	if cluster != "" {
		q = q.Where("cluster_name = ?", cluster)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []ActivityRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Activity, 0, len(recs))
	for i := range recs {
		out = append(out, activityToModel(&recs[i]))
	}
	return out, nil
}

func (r *ActivityRepository) UpdateStatus(ctx context.Context, id, status, message string) error {
	updates := map[string]any{"status": status}
	if message != "" {
		updates["message"] = message
	}
	res := r.db.WithContext(ctx).Model(&ActivityRecord{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrActivityNotFound
	}
	return nil
}

// Trim keeps the newest max entries and removes entries older than before.
func (r *ActivityRepository) Trim(ctx context.Context, max int, before time.Time) (int, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !before.IsZero() {
			res := tx.Where("timestamp < ?", before).Delete(&ActivityRecord{})
			if res.Error != nil {
				return res.Error
			}
			removed += res.RowsAffected
		}
		if max <= 0 {
			return nil
		}
		var cutoff ActivityRecord
		err := tx.Order("timestamp DESC").Offset(max - 1).Limit(1).Take(&cutoff).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		res := tx.Where("timestamp < ?", cutoff.Timestamp).Delete(&ActivityRecord{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected
		return nil
	})
	return int(removed), err
}

var _ domain.ActivityRepository = (*ActivityRepository)(nil)
