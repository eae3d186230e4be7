package ddb

import (
	"context"
	"errors"
	"sort"
	"time"

	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/clustermaster/clustermaster/domain"
	"github.com/clustermaster/clustermaster/domain/model"
)

// DeploymentRepository keeps deployments in partition DEPLOYMENT.
type DeploymentRepository struct {
	table string
	cli   API
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
	item, err := marshalItem(pkDeployment, d.ID, d)
	if err != nil {
		return err
	}
	err = putItem(ctx, r.cli, r.table, item, "attribute_not_exists(PK) AND attribute_not_exists(SK)")
	var cc *ddbTypes.ConditionalCheckFailedException
	if errors.As(err, &cc) {
		return model.ErrAlreadyExists
	}
	return err
}

func (r *DeploymentRepository) Get(ctx context.Context, id string) (*model.Deployment, error) {
	var d model.Deployment
	ok, err := getItem(ctx, r.cli, r.table, pkDeployment, id, &d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrDeploymentNotFound
	}
	return &d, nil
}

func (r *DeploymentRepository) List(ctx context.Context, userID string) ([]*model.Deployment, error) {
	all, err := queryAll[model.Deployment](ctx, r.cli, r.table, pkDeployment)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, d := range all {
		if userID == "" || d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateStatus rewrites the whole item; a deployment has a single writer.
func (r *DeploymentRepository) UpdateStatus(ctx context.Context, id string, status model.DeploymentStatus, logs string) error {
	d, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	d.Status = status
	d.UpdatedAt = time.Now().UTC()
	if logs != "" {
		d.Logs = logs
	}
	item, err := marshalItem(pkDeployment, d.ID, d)
	if err != nil {
		return err
	}
	return putItem(ctx, r.cli, r.table, item, "")
}

func (r *DeploymentRepository) Delete(ctx context.Context, id string) error {
	ok, err := deleteItem(ctx, r.cli, r.table, pkDeployment, id)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrDeploymentNotFound
	}
	return nil
}

var _ domain.DeploymentRepository = (*DeploymentRepository)(nil)
