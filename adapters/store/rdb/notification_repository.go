package rdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clustermaster/clustermaster/domain"
	"github.com/clustermaster/clustermaster/domain/model"
)

type NotificationRepository struct{ db *gorm.DB }

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Add(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = "ntf-" + uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(&NotificationRecord{
		ID:          n.ID,
		Level:       n.Level,
		Title:       n.Title,
		Message:     n.Message,
		ClusterName: n.ClusterName,
		Read:        n.Read,
		CreatedAt:   n.CreatedAt,
	}).Error
}

func (r *NotificationRepository) List(ctx context.Context, unreadOnly bool, limit int) ([]*model.Notification, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if unreadOnly {
		q = q.Where("`read` = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []NotificationRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Notification, 0, len(recs))
	for _, rec := range recs {
		out = append(out, &model.Notification{
			ID:          rec.ID,
			Level:       rec.Level,
			Title:       rec.Title,
			Message:     rec.Message,
			ClusterName: rec.ClusterName,
			Read:        rec.Read,
			CreatedAt:   rec.CreatedAt,
		})
	}
	return out, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&NotificationRecord{}).Where("id = ?", id).Update("Read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrActivityNotFound
	}
	return nil
}

var _ domain.NotificationRepository = (*NotificationRepository)(nil)
