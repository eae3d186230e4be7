package inmem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
)

// DeploymentRepository is a thread-safe in-memory implementation.
type DeploymentRepository struct {
	mu    sync.RWMutex
	items map[string]*model.Deployment
	seq   int64
}

func NewDeploymentRepository() *DeploymentRepository {
	return &DeploymentRepository{items: make(map[string]*model.Deployment)}
}

func (r *DeploymentRepository) nextID() string {
	r.seq++
	return fmt.Sprintf("dep-%d-%d", time.Now().UnixNano(), r.seq)
}

func copyDeployment(d *model.Deployment) *model.Deployment {
	cp := *d
	if d.Config != nil {
		cp.Config = make(map[string]string, len(d.Config))
		for k, v := range d.Config {
			cp.Config[k] = v
		}
	}
	return &cp
}

func (r *DeploymentRepository) Create(_ context.Context, d *model.Deployment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == "" {
		d.ID = r.nextID()
	}
	if _, ok := r.items[d.ID]; ok {
		return fmt.Errorf("%w: deployment %s", model.ErrAlreadyExists, d.ID)
	}
	r.items[d.ID] = copyDeployment(d)
	return nil
}

func (r *DeploymentRepository) Get(_ context.Context, id string) (*model.Deployment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[id]
	if !ok {
		return nil, model.ErrDeploymentNotFound
	}
	return copyDeployment(v), nil
}

func (r *DeploymentRepository) List(_ context.Context, userID string) ([]*model.Deployment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Deployment, 0, len(r.items))
	for _, v := range r.items {
		if userID != "" && v.UserID != userID {
			continue
		}
		out = append(out, copyDeployment(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *DeploymentRepository) UpdateStatus(_ context.Context, id string, status model.DeploymentStatus, logs string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[id]
	if !ok {
		return model.ErrDeploymentNotFound
	}
	v.Status = status
	if logs != "" {
		v.Logs = logs
	}
	v.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *DeploymentRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return model.ErrDeploymentNotFound
	}
	delete(r.items, id)
	return nil
}
