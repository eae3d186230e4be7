package activity

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clustermaster/clustermaster/domain/model"
)

// LogInput describes one activity entry.
type LogInput struct {
	Type        string            `json:"type"`
	Action      string            `json:"action"`
	ClusterName string            `json:"cluster_name,omitempty"`
	Status      string            `json:"status"`
	Message     string            `json:"message,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
	User        string            `json:"user,omitempty"`
}

// LogOutput returns the stored entry.
type LogOutput struct {
	Activity *model.Activity `json:"activity"`
}

// Log stores an entry and trims the log to MaxEntries.
func (u *UseCase) Log(ctx context.Context, in *LogInput) (*LogOutput, error) {
	if in == nil || in.Action == "" {
		return nil, errors.New("activity action is required")
	}
	status := in.Status
	if status == "" {
		status = model.ActivityStarted
	}
	a := &model.Activity{
		ID:          "act-" + uuid.NewString(),
		Type:        in.Type,
		Action:      in.Action,
		ClusterName: in.ClusterName,
		Status:      status,
		Message:     in.Message,
		Details:     in.Details,
		User:        in.User,
		Timestamp:   u.now(),
	}
	if err := u.Repos.Activity.Add(ctx, a); err != nil {
		return nil, err
	}
	if _, err := u.Repos.Activity.Trim(ctx, MaxEntries, timeZero); err != nil {
		return nil, err
	}
	return &LogOutput{Activity: a}, nil
}

// UpdateStatusInput changes the status of an entry.
type UpdateStatusInput struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// UpdateStatus sets the final status of a started entry.
func (u *UseCase) UpdateStatus(ctx context.Context, in *UpdateStatusInput) error {
	if in == nil || in.ID == "" {
		return model.ErrActivityNotFound
	}
	return u.Repos.Activity.UpdateStatus(ctx, in.ID, in.Status, in.Message)
}
