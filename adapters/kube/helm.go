package kube

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/cli/values"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/helmpath"
	"helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/repo"
	helmdriver "helm.sh/helm/v3/pkg/storage/driver"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
)

// Helm implements model.ReleasePort with the Helm SDK. Releases are stored
// as secrets in their namespace, like the helm CLI does.
type Helm struct {
	// Clients builds kube clients for namespace handling.
	Clients *Clients
	// Settings holds the repository config and cache paths. Defaults to cli.New().
	Settings *cli.EnvSettings
	// ActionConfig overrides the per-context action configuration, mainly for tests.
	ActionConfig func(kubeContext, namespace string) (*action.Configuration, error)

	repoMu sync.Mutex
}

var _ model.ReleasePort = (*Helm)(nil)

// NewHelm returns a Helm backed by the default kubeconfig and helm paths.
func NewHelm(clients *Clients) *Helm {
	return &Helm{Clients: clients, Settings: cli.New()}
}

func (h *Helm) settings() *cli.EnvSettings {
	if h.Settings == nil {
		h.Settings = cli.New()
	}
	return h.Settings
}

func (h *Helm) actionConfig(ctx context.Context, kubeContext, namespace string) (*action.Configuration, error) {
	if h.ActionConfig != nil {
		return h.ActionConfig(kubeContext, namespace)
	}
	s := cli.New()
	s.KubeContext = kubeContext
	s.KubeConfig = h.settings().KubeConfig
	s.SetNamespace(namespace)
	log := logging.FromContext(ctx)
	cfg := new(action.Configuration)
	if err := cfg.Init(s.RESTClientGetter(), namespace, "secret", func(format string, v ...any) {
		log.Debugf(ctx, "helm: "+format, v...)
	}); err != nil {
		return nil, fmt.Errorf("init helm configuration: %w", err)
	}
	return cfg, nil
}

// EnsureNamespace creates namespace in kubeContext unless it exists.
func (h *Helm) EnsureNamespace(ctx context.Context, kubeContext, namespace string) error {
	if h.Clients == nil {
		return fmt.Errorf("kube clients are not configured")
	}
	c, err := h.Clients.For(kubeContext)
	if err != nil {
		return err
	}
	return c.EnsureNamespace(ctx, namespace)
}

// EnsureRepo adds the repository and downloads its index unless a
// repository of that name is already configured.
func (h *Helm) EnsureRepo(ctx context.Context, name, url string) error {
	h.repoMu.Lock()
	defer h.repoMu.Unlock()

	s := h.settings()
	f, err := loadRepoFile(s.RepositoryConfig)
	if err != nil {
		return err
	}
	if f.Has(name) {
		return nil
	}
	entry := &repo.Entry{Name: name, URL: url}
	if err := h.downloadIndex(entry); err != nil {
		return err
	}
	f.Update(entry)
	if err := os.MkdirAll(filepath.Dir(s.RepositoryConfig), 0o755); err != nil {
		return fmt.Errorf("create helm config dir: %w", err)
	}
	if err := f.WriteFile(s.RepositoryConfig, 0o644); err != nil {
		return fmt.Errorf("write helm repositories: %w", err)
	}
	logging.FromContext(ctx).Info(ctx, "helm repo added", "repo", name, "url", url)
	return nil
}

func (h *Helm) downloadIndex(entry *repo.Entry) error {
	s := h.settings()
	r, err := repo.NewChartRepository(entry, getter.All(s))
	if err != nil {
		return fmt.Errorf("chart repository %s: %w", entry.Name, err)
	}
	r.CachePath = s.RepositoryCache
	if _, err := r.DownloadIndexFile(); err != nil {
		return fmt.Errorf("download index of %s (%s): %w", entry.Name, entry.URL, err)
	}
	return nil
}

func loadRepoFile(path string) (*repo.File, error) {
	f, err := repo.LoadFile(path)
	if err == nil {
		return f, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return repo.NewFile(), nil
	}
	return nil, fmt.Errorf("load helm repositories: %w", err)
}

// WriteValuesFile writes values as YAML into a temp file and returns its
// path and the cleanup removing it.
func WriteValuesFile(v map[string]any) (string, func(), error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", func() {}, fmt.Errorf("encode values: %w", err)
	}
	f, err := os.CreateTemp("", "clustermaster-values-*.yaml")
	if err != nil {
		return "", func() {}, fmt.Errorf("create values file: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("write values file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("close values file: %w", err)
	}
	return path, cleanup, nil
}

// Install installs spec.Chart as spec.Name and waits for its resources.
func (h *Helm) Install(ctx context.Context, spec model.ReleaseSpec) (*model.Release, error) {
	cfg, err := h.actionConfig(ctx, spec.Context, spec.Namespace)
	if err != nil {
		return nil, err
	}
	path, cleanup, err := WriteValuesFile(spec.Values)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	s := h.settings()
	vo := values.Options{ValueFiles: []string{path}}
	vals, err := vo.MergeValues(getter.All(s))
	if err != nil {
		return nil, fmt.Errorf("merge values: %w", err)
	}

	in := action.NewInstall(cfg)
	in.Namespace = spec.Namespace
	in.ReleaseName = spec.Name
	in.Wait = true
	in.Timeout = spec.Timeout
	chartPath, err := in.ChartPathOptions.LocateChart(spec.Chart, s)
	if err != nil {
		return nil, fmt.Errorf("locate chart %s: %w", spec.Chart, err)
	}
	ch, err := loader.Load(chartPath)
	if err != nil {
		return nil, fmt.Errorf("load chart %s: %w", spec.Chart, err)
	}
	rel, err := in.RunWithContext(ctx, ch, vals)
	if err != nil {
		return nil, fmt.Errorf("helm install %s: %w", spec.Name, err)
	}
	return releaseOf(rel), nil
}

// List returns the releases of every namespace in kubeContext.
func (h *Helm) List(ctx context.Context, kubeContext string) ([]*model.Release, error) {
	cfg, err := h.actionConfig(ctx, kubeContext, "")
	if err != nil {
		return nil, err
	}
	l := action.NewList(cfg)
	l.AllNamespaces = true
	l.All = true
	l.SetStateMask()
	rels, err := l.Run()
	if err != nil {
		return nil, fmt.Errorf("helm list: %w", err)
	}
	out := make([]*model.Release, 0, len(rels))
	for _, r := range rels {
		out = append(out, releaseOf(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Uninstall removes a release and waits for its resources to go away.
func (h *Helm) Uninstall(ctx context.Context, kubeContext, namespace, name string, timeout time.Duration) error {
	cfg, err := h.actionConfig(ctx, kubeContext, namespace)
	if err != nil {
		return err
	}
	un := action.NewUninstall(cfg)
	un.Wait = true
	un.Timeout = timeout
	if _, err := un.Run(name); err != nil {
		if errors.Is(err, helmdriver.ErrReleaseNotFound) {
			return fmt.Errorf("%w: %s", model.ErrReleaseNotFound, name)
		}
		return fmt.Errorf("helm uninstall %s: %w", name, err)
	}
	return nil
}

// Search refreshes every configured repository index and returns the
// charts whose name, description or keywords contain query. A repository
// whose index cannot be refreshed is searched from its cached index.
func (h *Helm) Search(ctx context.Context, query string) ([]*model.ChartInfo, error) {
	h.repoMu.Lock()
	defer h.repoMu.Unlock()

	s := h.settings()
	f, err := loadRepoFile(s.RepositoryConfig)
	if err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx)
	var out []*model.ChartInfo
	for _, entry := range f.Repositories {
		if err := h.downloadIndex(entry); err != nil {
			log.Warn(ctx, "helm repo update failed", "repo", entry.Name, "error", err)
		}
		idx, err := repo.LoadIndexFile(filepath.Join(s.RepositoryCache, helmpath.CacheIndexFile(entry.Name)))
		if err != nil {
			log.Warn(ctx, "helm repo index unreadable", "repo", entry.Name, "error", err)
			continue
		}
		out = append(out, SearchIndex(idx, entry.Name, query)...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SearchIndex matches query case-insensitively against the latest version
// of each chart in idx.
func SearchIndex(idx *repo.IndexFile, repoName, query string) []*model.ChartInfo {
	idx.SortEntries()
	q := strings.ToLower(query)
	var out []*model.ChartInfo
	for name, versions := range idx.Entries {
		if len(versions) == 0 {
			continue
		}
		cv := versions[0]
		hay := []string{name, cv.Description}
		hay = append(hay, cv.Keywords...)
		if !containsAny(hay, q) {
			continue
		}
		out = append(out, &model.ChartInfo{
			Repo:        repoName,
			Chart:       name,
			Name:        repoName + "/" + name,
			Version:     cv.Version,
			AppVersion:  cv.AppVersion,
			Description: cv.Description,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func containsAny(hay []string, q string) bool {
	for _, s := range hay {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

func releaseOf(r *release.Release) *model.Release {
	out := &model.Release{Name: r.Name, Namespace: r.Namespace, Revision: r.Version}
	if r.Chart != nil && r.Chart.Metadata != nil {
		out.Chart = r.Chart.Metadata.Name + "-" + r.Chart.Metadata.Version
		out.AppVersion = r.Chart.Metadata.AppVersion
	}
	if r.Info != nil {
		out.Status = r.Info.Status.String()
		out.Updated = r.Info.LastDeployed.Time
	}
	return out
}
