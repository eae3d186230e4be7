package model

import (
	"context"
	"time"
)

// Activity is one entry of the operator-visible activity log.
type Activity struct {
	ID          string            `json:"id" dynamodbav:"id"`
	Type        string            `json:"type" dynamodbav:"type"`
	Action      string            `json:"action" dynamodbav:"action"`
	ClusterName string            `json:"cluster_name,omitempty" dynamodbav:"cluster_name,omitempty"`
	Status      string            `json:"status" dynamodbav:"status"`
	Message     string            `json:"message,omitempty" dynamodbav:"message,omitempty"`
	Details     map[string]string `json:"details,omitempty" dynamodbav:"details,omitempty"`
	User        string            `json:"user,omitempty" dynamodbav:"user,omitempty"`
	Timestamp   time.Time         `json:"timestamp" dynamodbav:"timestamp"`
}

// Activity statuses.
const (
	ActivityStarted = "started"
	ActivitySuccess = "success"
	ActivityFailed  = "failed"
	ActivityWarning = "warning"
)

// Notification levels.
const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationWarning = "warning"
	NotificationError   = "error"
)

// Notification is a user-facing event message.
type Notification struct {
	ID          string    `json:"id" dynamodbav:"id"`
	Level       string    `json:"level" dynamodbav:"level"`
	Title       string    `json:"title" dynamodbav:"title"`
	Message     string    `json:"message" dynamodbav:"message"`
	ClusterName string    `json:"cluster_name,omitempty" dynamodbav:"cluster_name,omitempty"`
	Read        bool      `json:"read" dynamodbav:"read"`
	CreatedAt   time.Time `json:"created_at" dynamodbav:"created_at"`
}

// NotifierPort delivers notifications to an external channel.
type NotifierPort interface {
	Notify(ctx context.Context, n *Notification) error
}
