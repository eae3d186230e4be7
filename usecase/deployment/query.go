package deployment

import (
	"context"

	"github.com/clustermaster/clustermaster/domain/model"
)

type GetInput struct {
	ID string `json:"id"`
	// UserID restricts the lookup to records of one user when set.
	UserID string `json:"user_id,omitempty"`
}

type GetOutput struct {
	Deployment *model.Deployment `json:"deployment"`
}

// Get returns a record. A record of another user is reported as not found.
func (u *UseCase) Get(ctx context.Context, in *GetInput) (*GetOutput, error) {
	if in == nil || in.ID == "" {
		return nil, model.ErrDeploymentNotFound
	}
	d, err := u.Repo.Get(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if in.UserID != "" && d.UserID != in.UserID {
		return nil, model.ErrDeploymentNotFound
	}
	return &GetOutput{Deployment: d}, nil
}

type ListInput struct {
	UserID string `json:"user_id,omitempty"`
}

type ListOutput struct {
	Deployments []*model.Deployment `json:"deployments"`
}

func (u *UseCase) List(ctx context.Context, in *ListInput) (*ListOutput, error) {
	var userID string
	if in != nil {
		userID = in.UserID
	}
	items, err := u.Repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*model.Deployment{}
	}
	return &ListOutput{Deployments: items}, nil
}
