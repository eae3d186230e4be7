package activity

import (
	"context"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
)

var timeZero time.Time

const defaultListLimit = 10

// ListInput filters the activity log.
type ListInput struct {
	// ClusterName restricts entries to one cluster when set.
	ClusterName string `json:"cluster_name,omitempty"`
	// Limit defaults to 10 and is capped at MaxEntries.
	Limit int `json:"limit,omitempty"`
}

// ListOutput holds entries newest first.
type ListOutput struct {
	Activities []*model.Activity `json:"activities"`
}

func (u *UseCase) List(ctx context.Context, in *ListInput) (*ListOutput, error) {
	if in == nil {
		in = &ListInput{}
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > MaxEntries {
		limit = MaxEntries
	}
	items, err := u.Repos.Activity.List(ctx, in.ClusterName, limit)
	if err != nil {
		return nil, err
	}
	return &ListOutput{Activities: items}, nil
}

// ClearOldInput selects the age of entries to drop.
type ClearOldInput struct {
	// Days defaults to 30.
	Days int `json:"days,omitempty"`
}

type ClearOldOutput struct {
	Removed int `json:"removed"`
}

// ClearOld drops entries older than the given number of days.
func (u *UseCase) ClearOld(ctx context.Context, in *ClearOldInput) (*ClearOldOutput, error) {
	days := 30
	if in != nil && in.Days > 0 {
		days = in.Days
	}
	n, err := u.Repos.Activity.Trim(ctx, MaxEntries, u.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}
	return &ClearOldOutput{Removed: n}, nil
}
