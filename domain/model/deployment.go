package model

import "time"

// DeploymentStatus is the lifecycle status of a cloud deployment record.
type DeploymentStatus string

const (
	DeploymentPending       DeploymentStatus = "pending"
	DeploymentRunning       DeploymentStatus = "running"
	DeploymentCompleted     DeploymentStatus = "completed"
	DeploymentFailed        DeploymentStatus = "failed"
	DeploymentDestroying    DeploymentStatus = "destroying"
	DeploymentDestroyed     DeploymentStatus = "destroyed"
	DeploymentDestroyFailed DeploymentStatus = "destroy_failed"
)

// Terminal reports whether no further transition happens without user action.
func (s DeploymentStatus) Terminal() bool {
	switch s {
	case DeploymentCompleted, DeploymentFailed, DeploymentDestroyed, DeploymentDestroyFailed:
		return true
	}
	return false
}

// DeploymentProvider is the infrastructure target of a deployment.
type DeploymentProvider string

const (
	DeploymentProviderLocal DeploymentProvider = "local"
	DeploymentProviderAWS   DeploymentProvider = "aws"
)

// Deployment is a long-running cloud deployment record.
type Deployment struct {
	ID          string             `json:"id" dynamodbav:"id"`
	UserID      string             `json:"user_id" dynamodbav:"user_id"`
	Provider    DeploymentProvider `json:"provider" dynamodbav:"provider"`
	Status      DeploymentStatus   `json:"status" dynamodbav:"status"`
	ClusterName string             `json:"cluster_name" dynamodbav:"cluster_name"`
	NodeCount   int                `json:"node_count" dynamodbav:"node_count"`
	Config      map[string]string  `json:"config,omitempty" dynamodbav:"config,omitempty"`
	Logs        string             `json:"logs,omitempty" dynamodbav:"logs,omitempty"`
	CreatedAt   time.Time          `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" dynamodbav:"updated_at"`
}
