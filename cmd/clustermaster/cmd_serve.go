package main

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/clustermaster/clustermaster/adapters/httpapi"
	"github.com/clustermaster/clustermaster/internal/logging"
)

// newCmdServe runs the HTTP API until interrupted.
func newCmdServe() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "serve", addr, func(a *app) error {
				ctx := cmd.Context()
				if addr == "" {
					addr = a.env.Config.Server.Addr
				}
				gin.SetMode(gin.ReleaseMode)
				router := httpapi.NewRouter(httpapi.Deps{
					Clusters:    a.Clusters,
					Workloads:   a.Workloads,
					Monitoring:  a.Monitoring,
					Deployments: a.Deployments,
					Backups:     a.Backups,
					Activity:    a.Activity,
					Metrics:     a.metrics,
					Logger:      logging.FromContext(ctx),
				})
				logging.FromContext(ctx).Info(ctx, "listening", "addr", addr)
				err := httpapi.Serve(ctx, addr, router)
				a.Deployments.Wait()
				return err
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, 127.0.0.1:8000)")
	return cmd
}
