package backup

import (
	"context"

	"github.com/clustermaster/clustermaster/domain/model"
)

// ListOutput lists stored backups, newest first.
type ListOutput struct {
	Backups []*model.Backup `json:"backups"`
}

// List returns every stored backup, optionally only those of one cluster.
func (u *UseCase) List(ctx context.Context, clusterName string) (*ListOutput, error) {
	all, err := u.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := &ListOutput{Backups: []*model.Backup{}}
	for _, b := range all {
		if clusterName == "" || b.Cluster == clusterName {
			out.Backups = append(out.Backups, b)
		}
	}
	return out, nil
}

// Get returns the manifest of one backup with its file list.
func (u *UseCase) Get(ctx context.Context, name string) (*model.Backup, error) {
	b, _, err := u.Store.Load(ctx, name, false)
	return b, err
}

// Delete removes a backup.
func (u *UseCase) Delete(ctx context.Context, name string) error {
	return u.Store.Delete(ctx, name)
}
