package inmem

import (
	"github.com/clustermaster/clustermaster/domain"
)

// Store provides a unified interface for all in-memory repositories.
// Contents start empty and do not survive a restart.
type Store struct {
	DeploymentRepo   *DeploymentRepository
	ActivityRepo     *ActivityRepository
	NotificationRepo *NotificationRepository
}

// NewStore creates a new in-memory store with all repositories.
func NewStore() *Store {
	return &Store{
		DeploymentRepo:   NewDeploymentRepository(),
		ActivityRepo:     NewActivityRepository(),
		NotificationRepo: NewNotificationRepository(),
	}
}

// Repositories returns the store as domain repositories.
func (s *Store) Repositories() *domain.Repositories {
	return &domain.Repositories{
		Deployment:   s.DeploymentRepo,
		Activity:     s.ActivityRepo,
		Notification: s.NotificationRepo,
	}
}

// Compile-time assertions
var _ domain.DeploymentRepository = (*DeploymentRepository)(nil)
var _ domain.ActivityRepository = (*ActivityRepository)(nil)
var _ domain.NotificationRepository = (*NotificationRepository)(nil)
