package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
	"github.com/clustermaster/clustermaster/usecase/cluster"
)

// Restore statuses.
const (
	StatusRestored = "restored"
	StatusPartial  = "partial"
)

// RestoreInput names the backup and the cluster to create from it.
type RestoreInput struct {
	Name string `json:"backup_name"`
	// Target defaults to "{cluster}-restored".
	Target string `json:"target_cluster,omitempty"`
	// Provider defaults to the provider of the backed-up cluster.
	Provider string `json:"provider,omitempty"`
}

// RestoreOutput reports the new cluster and the applied resource files.
type RestoreOutput struct {
	Status   string            `json:"status"`
	Cluster  string            `json:"cluster_name"`
	Provider model.Provider    `json:"provider"`
	Restored []string          `json:"restored"`
	Failed   map[string]string `json:"failed,omitempty"`
	URLs     map[string]string `json:"urls,omitempty"`
}

var errNoCreator = errors.New("restore needs a cluster creator")

// Restore creates a new cluster with the node layout of the backup and
// applies its resource files: namespaces first, then cluster-scoped files,
// then namespaced files. An existing target cluster is refused. Files that
// fail to apply are reported without stopping the restore.
func (u *UseCase) Restore(ctx context.Context, in *RestoreInput) (out *RestoreOutput, err error) {
	if in == nil || in.Name == "" {
		return nil, model.ErrBackupInvalid
	}
	if u.Clusters == nil {
		return nil, errNoCreator
	}
	ctx, finish := logging.Span(ctx, "UC", "backup.restore", "backup", in.Name)
	defer func() { finish(err) }()

	b, files, err := u.Store.Load(ctx, in.Name, true)
	if err != nil {
		return nil, err
	}
	target := in.Target
	if target == "" {
		target = b.Cluster + "-restored"
	}
	if err := model.ValidateClusterName(target); err != nil {
		return nil, err
	}
	provider := in.Provider
	if provider == "" {
		provider = string(b.Provider)
	}
	done := u.begin(ctx, "restore", target, map[string]string{"backup": b.Name, "provider": provider})

	created, err := u.Clusters.Create(ctx, &cluster.CreateInput{
		Name:          target,
		Provider:      provider,
		ControlPlanes: b.ControlPlanes,
		Workers:       b.Workers,
	})
	if err != nil {
		done(model.ActivityFailed, err.Error())
		return nil, err
	}
	switch {
	case created.Status == cluster.StatusExists:
		done(model.ActivityFailed, created.Message)
		return nil, fmt.Errorf("%w: cluster %s", model.ErrAlreadyExists, target)
	case !created.Success:
		done(model.ActivityFailed, created.Error)
		return nil, fmt.Errorf("create cluster %s: %s", target, created.Error)
	}

	out = &RestoreOutput{Status: StatusRestored, Cluster: target, Provider: created.Provider, URLs: created.URLs}
	kc := created.Context
	failed := func(file string, err error) {
		if out.Failed == nil {
			out.Failed = map[string]string{}
		}
		out.Failed[file] = err.Error()
		out.Status = StatusPartial
	}
	apply := func(file string, manifest []byte) {
		if err := u.Resources.Apply(ctx, kc, manifest); err != nil {
			failed(file, err)
			return
		}
		out.Restored = append(out.Restored, file)
	}
	if ns := namespaceManifest(b.Namespaces); ns != nil {
		apply("namespaces", ns)
	}
	for _, scope := range []string{model.ScopeCluster, model.ScopeNamespaced} {
		for _, r := range b.Resources {
			if r.Scope != scope {
				continue
			}
			data, ok := files[r.File]
			if !ok {
				failed(r.File, fmt.Errorf("%w: %s missing from archive", model.ErrBackupInvalid, r.File))
				continue
			}
			apply(r.File, data)
		}
	}

	status := model.ActivitySuccess
	if out.Status == StatusPartial {
		status = model.ActivityWarning
	}
	done(status, fmt.Sprintf("restored %d of %d files from %s", len(out.Restored), len(out.Restored)+len(out.Failed), b.Name))
	return out, nil
}

// namespaceManifest renders Namespace objects for every namespace the
// provider does not create itself.
func namespaceManifest(names []string) []byte {
	var buf bytes.Buffer
	for _, n := range names {
		if n == "default" {
			continue
		}
		fmt.Fprintf(&buf, "---\napiVersion: v1\nkind: Namespace\nmetadata:\n  name: %s\n", n)
	}
	if buf.Len() == 0 {
		return nil
	}
	return buf.Bytes()
}
