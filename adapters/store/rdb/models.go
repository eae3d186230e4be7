package rdb

import "time"

// DeploymentRecord is the RDB persistence model for domain Deployment.
// Table name: deployments
type DeploymentRecord struct {
	ID          string    `gorm:"primaryKey;type:text;not null"`
	UserID      string    `gorm:"type:text;index"`
	Provider    string    `gorm:"type:text;not null"`
	Status      string    `gorm:"type:text;not null"`
	ClusterName string    `gorm:"type:text"`
	NodeCount   int       `gorm:"not null"`
	Config      string    `gorm:"type:text"` // JSON encoded map[string]string
	Logs        string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (DeploymentRecord) TableName() string { return "deployments" }

// ActivityRecord persistence model
type ActivityRecord struct {
	ID          string    `gorm:"primaryKey;type:text;not null"`
	Type        string    `gorm:"type:text"`
	Action      string    `gorm:"type:text;not null"`
	ClusterName string    `gorm:"type:text;index"`
	Status      string    `gorm:"type:text;not null"`
	Message     string    `gorm:"type:text"`
	Details     string    `gorm:"type:text"` // JSON encoded map[string]string
	User        string    `gorm:"type:text"`
	Timestamp   time.Time `gorm:"not null;index"`
}

func (ActivityRecord) TableName() string { return "activities" }

// NotificationRecord persistence model
type NotificationRecord struct {
	ID          string    `gorm:"primaryKey;type:text;not null"`
	Level       string    `gorm:"type:text;not null"`
	Title       string    `gorm:"type:text;not null"`
	Message     string    `gorm:"type:text"`
	ClusterName string    `gorm:"type:text"`
	Read        bool      `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

func (NotificationRecord) TableName() string { return "notifications" }
