package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/clustermaster/clustermaster/adapters/archive"
	providerdrv "github.com/clustermaster/clustermaster/adapters/drivers/provider"
	"github.com/clustermaster/clustermaster/adapters/kube"
	"github.com/clustermaster/clustermaster/adapters/ledger"
	"github.com/clustermaster/clustermaster/adapters/notify/logsink"
	snsnotify "github.com/clustermaster/clustermaster/adapters/notify/sns"
	"github.com/clustermaster/clustermaster/adapters/store/ddb"
	"github.com/clustermaster/clustermaster/adapters/store/inmem"
	"github.com/clustermaster/clustermaster/adapters/store/rdb"
	"github.com/clustermaster/clustermaster/adapters/terraform"
	"github.com/clustermaster/clustermaster/config/cmenv"
	"github.com/clustermaster/clustermaster/domain"
	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/cache"
	"github.com/clustermaster/clustermaster/internal/execx"
	"github.com/clustermaster/clustermaster/internal/logging"
	"github.com/clustermaster/clustermaster/internal/metrics"
	"github.com/clustermaster/clustermaster/usecase/activity"
	"github.com/clustermaster/clustermaster/usecase/backup"
	"github.com/clustermaster/clustermaster/usecase/cluster"
	"github.com/clustermaster/clustermaster/usecase/deployment"
	"github.com/clustermaster/clustermaster/usecase/monitoring"
	"github.com/clustermaster/clustermaster/usecase/workload"
)

// app holds the wired adapters and use cases of one process.
type app struct {
	env       *cmenv.Env
	clients   *kube.Clients
	forwarder *kube.Forwarder
	metrics   *metrics.Metrics

	Activity    *activity.UseCase
	Clusters    *cluster.UseCase
	Workloads   *workload.UseCase
	Monitoring  *monitoring.UseCase
	Deployments *deployment.UseCase
	Backups     *backup.UseCase

	closers []func() error
}

// Close stops port forwards and releases backend connections.
func (a *app) Close() error {
	if a.forwarder != nil {
		a.forwarder.StopAll()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// buildApp wires every adapter and use case from the resolved environment.
func buildApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	env, err := envFrom(ctx)
	if err != nil {
		return nil, err
	}
	cfg := env.Config
	log := logging.FromContext(ctx)
	a := &app{env: env, metrics: metrics.New()}

	runner := execx.New()
	led, err := ledger.Open(cfg.Ledger.Path, ledger.WithFileLock(cfg.Ledger.Lock))
	if err != nil {
		return nil, err
	}
	settings := map[string]string{}
	if cfg.Providers.KindImage != "" {
		settings["kind.image"] = cfg.Providers.KindImage
	}
	if cfg.Providers.K3dAPIPort != "" {
		settings["k3d.api_port"] = cfg.Providers.K3dAPIPort
	}
	clusterPort, err := providerdrv.GetClusterPort(runner, providerdrv.PortOptions{
		FallbackToKind: cfg.Providers.FallbackToKind,
		Settings:       settings,
	})
	if err != nil {
		return nil, err
	}

	c, err := buildCache(ctx, cfg.Cache, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	repos, err := buildRepos(ctx, cfg.Store, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	notifier, err := buildNotifier(ctx, cfg.Notify)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.clients = &kube.Clients{Options: &kube.Options{UserAgent: "clustermaster/" + version}}
	helm := kube.NewHelm(a.clients)
	a.forwarder = kube.NewForwarder(a.clients, log)

	a.Activity = &activity.UseCase{
		Repos:    &activity.Repos{Activity: repos.Activity, Notification: repos.Notification},
		Notifier: notifier,
	}
	a.Workloads = &workload.UseCase{ClusterPort: clusterPort, ReleasePort: helm}
	a.Clusters = &cluster.UseCase{
		ClusterPort: clusterPort,
		Ledger:      led,
		Forwarder:   a.forwarder,
		Cache:       c,
		Activity:    a.Activity,
		Metrics:     a.metrics,
		WarmUp:      cfg.Monitoring.Warmup,
	}
	if cfg.Monitoring.Enabled {
		a.Clusters.Installer = a.Workloads
	}
	a.Monitoring = &monitoring.UseCase{
		ClusterPort:    clusterPort,
		MonitoringPort: &kube.Monitor{Clients: a.clients, Runner: runner},
		Ledger:         led,
		Releases:       a.Workloads,
		Forwarder:      a.forwarder,
		Cache:          c,
	}
	backups, err := archive.New(cfg.Backup.Dir)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Backups = &backup.UseCase{
		ClusterPort: clusterPort,
		Resources:   &kube.Resources{Runner: runner},
		Store:       backups,
		Clusters:    a.Clusters,
		Activity:    a.Activity,
	}
	a.Deployments = &deployment.UseCase{
		Repo:     repos.Deployment,
		Infra:    terraform.New(runner, cfg.Terraform.Bin, cfg.Terraform.TemplatesDir, cfg.Terraform.InfraDir),
		Activity: a.Activity,
	}
	return a, nil
}

// buildCache returns nil for the "none" backend, which bypasses caching.
func buildCache(ctx context.Context, cfg cmenv.Cache, a *app) (*cache.Cache, error) {
	var store cache.Store
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "redis":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis URL: %w", err)
		}
		cli, err := cache.NewRedisClient(ctx, opt.Addr, opt.Password, opt.DB)
		if err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", opt.Addr, err)
		}
		a.closers = append(a.closers, cli.Close)
		store = cache.NewRedisStore(cli, "")
	default:
		store = cache.NewMemoryStore()
	}
	return cache.New(store, cache.WithTTL(cfg.FastTTL, cfg.FullTTL)), nil
}

func buildRepos(ctx context.Context, cfg cmenv.Store, a *app) (*domain.Repositories, error) {
	switch cfg.Type {
	case "rdb":
		return rdb.Open(cfg.DBURL)
	case "ddb":
		opts := ddb.Options{
			Table:         cfg.DDBTable,
			ActivityTable: cfg.DDBActivityTable,
			Endpoint:      cfg.DDBEndpoint,
			Region:        cfg.DDBRegion,
		}
		cli, err := ddb.NewClient(ctx, opts)
		if err != nil {
			return nil, err
		}
		return ddb.New(ctx, cli, opts)
	default:
		return inmem.NewStore().Repositories(), nil
	}
}

func buildNotifier(ctx context.Context, cfg cmenv.Notify) (model.NotifierPort, error) {
	if cfg.Type != "sns" {
		return logsink.New(), nil
	}
	cli, err := snsnotify.NewClient(ctx, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	return snsnotify.New(cli, cfg.TopicARN)
}
