package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
)

// CreateInput names the cluster and optionally the backup.
type CreateInput struct {
	Cluster string `json:"cluster_name"`
	// Name defaults to "{cluster}-{yyyymmdd-hhmmss}".
	Name string `json:"backup_name,omitempty"`
}

// CreateOutput returns the stored backup.
type CreateOutput struct {
	Backup  *model.Backup `json:"backup"`
	Message string        `json:"message"`
}

// Create exports the resources of every non-system namespace and the
// cluster-scoped RBAC objects into a new backup. Resource types the cluster
// does not serve are recorded as warnings.
func (u *UseCase) Create(ctx context.Context, in *CreateInput) (out *CreateOutput, err error) {
	if in == nil || in.Cluster == "" {
		return nil, model.ErrClusterInvalid
	}
	ctx, finish := logging.Span(ctx, "UC", "backup.create", "cluster", in.Cluster)
	defer func() { finish(err) }()

	now := u.now().UTC()
	name := in.Name
	if name == "" {
		name = fmt.Sprintf("%s-%s", in.Cluster, now.Format("20060102-150405"))
	}
	if err := model.ValidateBackupName(name); err != nil {
		return nil, err
	}
	if _, _, err := u.Store.Load(ctx, name, false); err == nil {
		return nil, fmt.Errorf("%w: backup %s", model.ErrAlreadyExists, name)
	} else if !errors.Is(err, model.ErrBackupNotFound) {
		return nil, err
	}

	ref, err := u.ClusterPort.Resolve(ctx, in.Cluster)
	if err != nil {
		return nil, err
	}
	done := u.begin(ctx, "create", ref.Name, map[string]string{"backup": name})

	b := &model.Backup{Name: name, Cluster: ref.Name, Provider: ref.Provider, CreatedAt: now}
	nodes, err := u.ClusterPort.Nodes(ctx, ref)
	if err != nil {
		done(model.ActivityFailed, err.Error())
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	for _, n := range nodes {
		switch {
		case n.IsControlPlane():
			b.ControlPlanes++
		case n.IsWorker():
			b.Workers++
		}
	}
	kc := ref.Context()
	all, err := u.Resources.Namespaces(ctx, kc)
	if err != nil {
		done(model.ActivityFailed, err.Error())
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	for _, ns := range all {
		if !SystemNamespaces[ns] {
			b.Namespaces = append(b.Namespaces, ns)
		}
	}

	files := map[string][]byte{}
	export := func(resource, namespace string) {
		file, scope := "cluster_"+resource+".yaml", model.ScopeCluster
		if namespace != "" {
			file, scope = namespace+"_"+resource+".yaml", model.ScopeNamespaced
		}
		data, n, err := u.Resources.Export(ctx, kc, resource, namespace)
		if err != nil {
			b.Warnings = append(b.Warnings, fmt.Sprintf("%s: %v", file, err))
			return
		}
		if n == 0 {
			return
		}
		files[file] = data
		b.Resources = append(b.Resources, model.BackupResource{Type: resource, Namespace: namespace, Scope: scope, File: file, Objects: n})
	}
	for _, r := range ClusterResources {
		export(r, "")
	}
	for _, ns := range b.Namespaces {
		for _, r := range NamespacedResources {
			export(r, ns)
		}
	}
	if len(b.Warnings) > 0 {
		logging.FromContext(ctx).Warn(ctx, "some resources were not exported", "backup", name, "warnings", len(b.Warnings))
	}

	if err := u.Store.Save(ctx, b, files); err != nil {
		done(model.ActivityFailed, err.Error())
		return nil, err
	}
	msg := fmt.Sprintf("backup %s of cluster %s stored with %d resource files", name, ref.Name, len(b.Resources))
	done(model.ActivitySuccess, msg)
	return &CreateOutput{Backup: b, Message: msg}, nil
}
