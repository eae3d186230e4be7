// Package httpapi serves the coordinator over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
	"github.com/clustermaster/clustermaster/internal/metrics"
	"github.com/clustermaster/clustermaster/usecase/activity"
	"github.com/clustermaster/clustermaster/usecase/backup"
	"github.com/clustermaster/clustermaster/usecase/cluster"
	"github.com/clustermaster/clustermaster/usecase/deployment"
	"github.com/clustermaster/clustermaster/usecase/monitoring"
	"github.com/clustermaster/clustermaster/usecase/workload"
)

// ClusterService is implemented by *cluster.UseCase.
type ClusterService interface {
	Create(ctx context.Context, in *cluster.CreateInput) (*cluster.CreateOutput, error)
	Delete(ctx context.Context, in *cluster.DeleteInput) (*cluster.DeleteOutput, error)
	Scale(ctx context.Context, in *cluster.ScaleInput) (*cluster.ScaleOutput, error)
	Start(ctx context.Context, in *cluster.PowerInput) (*cluster.PowerOutput, error)
	Stop(ctx context.Context, in *cluster.PowerInput) (*cluster.PowerOutput, error)
	List(ctx context.Context, in *cluster.ListInput) (*cluster.ListOutput, error)
	Get(ctx context.Context, in *cluster.GetInput) (*model.ClusterDetail, error)
	Nodes(ctx context.Context, in *cluster.NodesInput) (*cluster.NodesOutput, error)
	URLs(ctx context.Context, in *cluster.URLsInput) (*cluster.URLsOutput, error)
	State(ctx context.Context, in *cluster.StateInput) (*cluster.StateOutput, error)
	Ports(ctx context.Context) ([]cluster.PortEntry, error)
	PortsOf(ctx context.Context, name string) (*cluster.PortEntry, error)
	ReleasePorts(ctx context.Context, name string) (bool, error)
	PrunePorts(ctx context.Context) (*cluster.PruneOutput, error)
}

// WorkloadService is implemented by *workload.UseCase.
type WorkloadService interface {
	Install(ctx context.Context, in *workload.InstallInput) (*workload.InstallOutput, error)
	List(ctx context.Context, in *workload.ListInput) (*workload.ListOutput, error)
	Uninstall(ctx context.Context, in *workload.UninstallInput) (*workload.UninstallOutput, error)
	SearchCharts(ctx context.Context, in *workload.SearchInput) (*workload.SearchOutput, error)
	Catalog() []workload.CatalogApp
}

// BackupService is implemented by *backup.UseCase.
type BackupService interface {
	Create(ctx context.Context, in *backup.CreateInput) (*backup.CreateOutput, error)
	List(ctx context.Context, clusterName string) (*backup.ListOutput, error)
	Get(ctx context.Context, name string) (*model.Backup, error)
	Delete(ctx context.Context, name string) error
	Restore(ctx context.Context, in *backup.RestoreInput) (*backup.RestoreOutput, error)
}

// MonitoringService is implemented by *monitoring.UseCase.
type MonitoringService interface {
	Status(ctx context.Context, in *monitoring.StatusInput) (*monitoring.StatusOutput, error)
	Install(ctx context.Context, in *monitoring.InstallInput) (*monitoring.InstallOutput, error)
	Uninstall(ctx context.Context, in *monitoring.UninstallInput) (*monitoring.UninstallOutput, error)
}

// DeploymentService is implemented by *deployment.UseCase.
type DeploymentService interface {
	Create(ctx context.Context, in *deployment.CreateInput) (*deployment.CreateOutput, error)
	Get(ctx context.Context, in *deployment.GetInput) (*deployment.GetOutput, error)
	List(ctx context.Context, in *deployment.ListInput) (*deployment.ListOutput, error)
	Destroy(ctx context.Context, in *deployment.DestroyInput) (*deployment.DestroyOutput, error)
}

// ActivityService is implemented by *activity.UseCase.
type ActivityService interface {
	List(ctx context.Context, in *activity.ListInput) (*activity.ListOutput, error)
	Notifications(ctx context.Context, in *activity.NotificationsInput) (*activity.NotificationsOutput, error)
	MarkRead(ctx context.Context, id string) error
}

var (
	_ ClusterService    = (*cluster.UseCase)(nil)
	_ WorkloadService   = (*workload.UseCase)(nil)
	_ MonitoringService = (*monitoring.UseCase)(nil)
	_ DeploymentService = (*deployment.UseCase)(nil)
	_ ActivityService   = (*activity.UseCase)(nil)
)

// Deps are the services behind the routes. Nil services leave their routes
// unregistered.
type Deps struct {
	Clusters    ClusterService
	Workloads   WorkloadService
	Monitoring  MonitoringService
	Deployments DeploymentService
	Backups     BackupService
	Activity    ActivityService
	Metrics     *metrics.Metrics
	Logger      logging.Logger
}

type handler struct{ Deps }

// NewRouter builds the gin engine with every route under /api/v1.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	h := &handler{Deps: d}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Logger, d.Metrics))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	v1 := r.Group("/api/v1")
	if d.Clusters != nil {
		v1.POST("/clusters", h.createCluster)
		v1.GET("/clusters", h.listClusters)
		v1.GET("/clusters/:name", h.getCluster)
		v1.DELETE("/clusters/:name", h.deleteCluster)
		v1.POST("/clusters/:name/scale", h.scaleCluster)
		v1.POST("/clusters/:name/start", h.startCluster)
		v1.POST("/clusters/:name/stop", h.stopCluster)
		v1.GET("/clusters/:name/nodes", h.clusterNodes)
		v1.GET("/clusters/:name/urls", h.clusterURLs)
		v1.GET("/clusters/:name/state", h.clusterState)

		v1.GET("/ports", h.listPorts)
		v1.GET("/ports/:name", h.getPorts)
		v1.DELETE("/ports/:name", h.releasePorts)
		v1.POST("/ports/prune", h.prunePorts)
	}
	if d.Workloads != nil {
		v1.POST("/clusters/:name/apps", h.installApp)
		v1.GET("/clusters/:name/apps", h.listApps)
		v1.DELETE("/clusters/:name/apps/:app", h.uninstallApp)
		v1.GET("/charts/search", h.searchCharts)
		v1.GET("/apps/catalog", h.catalog)
	}
	if d.Monitoring != nil {
		v1.GET("/clusters/:name/monitoring", h.monitoringStatus)
		v1.POST("/clusters/:name/monitoring", h.installMonitoring)
		v1.DELETE("/clusters/:name/monitoring", h.uninstallMonitoring)
	}
	if d.Backups != nil {
		v1.POST("/backups", h.createBackup)
		v1.GET("/backups", h.listBackups)
		v1.GET("/backups/:name", h.getBackup)
		v1.DELETE("/backups/:name", h.deleteBackup)
		v1.POST("/backups/:name/restore", h.restoreBackup)
	}
	if d.Deployments != nil {
		v1.POST("/deployments", h.createDeployment)
		v1.GET("/deployments", h.listDeployments)
		v1.GET("/deployments/:id", h.getDeployment)
		v1.DELETE("/deployments/:id", h.destroyDeployment)
	}
	if d.Activity != nil {
		v1.GET("/activity", h.listActivity)
		v1.GET("/notifications", h.listNotifications)
		v1.POST("/notifications/:id/read", h.markRead)
	}
	return r
}

// Serve runs the server on addr until ctx is done, then shuts it down.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logging.FromContext(ctx).Info(ctx, "http server listening", "addr", addr)
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
