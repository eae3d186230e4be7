package model

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Resource scopes of a backed-up resource file.
const (
	ScopeCluster    = "cluster"
	ScopeNamespaced = "namespaced"
)

// BackupResource is one exported resource file of a backup.
type BackupResource struct {
	Type      string `json:"type"`
	Namespace string `json:"namespace,omitempty"`
	Scope     string `json:"scope"`
	File      string `json:"file"`
	Objects   int    `json:"objects"`
}

// Backup describes a resource-level snapshot of a cluster. Workloads are
// captured as manifests; volume contents are not.
type Backup struct {
	Name          string           `json:"backup_name"`
	Cluster       string           `json:"cluster_name"`
	Provider      Provider         `json:"provider"`
	CreatedAt     time.Time        `json:"created_at"`
	ControlPlanes int              `json:"control_planes"`
	Workers       int              `json:"workers"`
	Namespaces    []string         `json:"namespaces"`
	Resources     []BackupResource `json:"resources"`
	Warnings      []string         `json:"warnings,omitempty"`
	// Filled in by the store.
	SizeBytes int64    `json:"size_bytes,omitempty"`
	Files     []string `json:"files,omitempty"`
}

var backupNameRE = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,127}$`)

// ValidateBackupName accepts lower-case names safe to use as file names.
func ValidateBackupName(name string) error {
	if !backupNameRE.MatchString(name) {
		return fmt.Errorf("%w: backup name %q must match %s", ErrBackupInvalid, name, backupNameRE)
	}
	return nil
}

// BackupStore persists backups with their resource files.
type BackupStore interface {
	Save(ctx context.Context, b *Backup, files map[string][]byte) error
	// Load returns the backup and, when withFiles is set, its resource files.
	Load(ctx context.Context, name string, withFiles bool) (*Backup, map[string][]byte, error)
	// List returns every readable backup, newest first.
	List(ctx context.Context) ([]*Backup, error)
	Delete(ctx context.Context, name string) error
}

// ResourcePort exports and applies cluster resources as YAML.
type ResourcePort interface {
	Namespaces(ctx context.Context, kubeContext string) ([]string, error)
	// Export returns the cleaned manifests of resource in namespace, or of
	// the cluster scope when namespace is empty, and the object count.
	Export(ctx context.Context, kubeContext, resource, namespace string) ([]byte, int, error)
	Apply(ctx context.Context, kubeContext string, manifest []byte) error
}
