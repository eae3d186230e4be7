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

type DeploymentRepository struct{ db *gorm.DB }

func NewDeploymentRepository(db *gorm.DB) *DeploymentRepository { return &DeploymentRepository{db: db} }

func deploymentToRecord(d *model.Deployment) *DeploymentRecord {
	return &DeploymentRecord{
		ID:          d.ID,
		UserID:      d.UserID,
		Provider:    string(d.Provider),
		Status:      string(d.Status),
		ClusterName: d.ClusterName,
		NodeCount:   d.NodeCount,
		Config:      encodeMap(d.Config),
		Logs:        d.Logs,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func deploymentToModel(r *DeploymentRecord) *model.Deployment {
	return &model.Deployment{
		ID:          r.ID,
		UserID:      r.UserID,
		Provider:    model.DeploymentProvider(r.Provider),
		Status:      model.DeploymentStatus(r.Status),
		ClusterName: r.ClusterName,
		NodeCount:   r.NodeCount,
		Config:      decodeMap(r.Config),
		Logs:        r.Logs,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r *DeploymentRepository) Create(ctx context.Context, d *model.Deployment) error {
	if d.ID == "" {
		d.ID = "dep-" + uuid.NewString()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = now
	}
	return r.db.WithContext(ctx).Create(deploymentToRecord(d)).Error
}

func (r *DeploymentRepository) Get(ctx context.Context, id string) (*model.Deployment, error) {
	var rec DeploymentRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrDeploymentNotFound
		}
		return nil, err
	}
	return deploymentToModel(&rec), nil
}

func (r *DeploymentRepository) List(ctx context.Context, userID string) ([]*model.Deployment, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var recs []DeploymentRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Deployment, 0, len(recs))
	for i := range recs {
		out = append(out, deploymentToModel(&recs[i]))
	}
	return out, nil
}

func (r *DeploymentRepository) UpdateStatus(ctx context.Context, id string, status model.DeploymentStatus, logs string) error {
	updates := map[string]any{"status": string(status), "updated_at": time.Now().UTC()}
	if logs != "" {
		updates["logs"] = logs
	}
	res := r.db.WithContext(ctx).Model(&DeploymentRecord{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrDeploymentNotFound
	}
	return nil
}

func (r *DeploymentRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&DeploymentRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrDeploymentNotFound
	}
	return nil
}

var _ domain.DeploymentRepository = (*DeploymentRepository)(nil)
