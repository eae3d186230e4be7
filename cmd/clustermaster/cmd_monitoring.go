package main

import (
	"github.com/spf13/cobra"

	"github.com/clustermaster/clustermaster/usecase/monitoring"
)

func newCmdMonitoring() *cobra.Command {
	c := &cobra.Command{
		Use:   "monitoring CLUSTER",
		Short: "Show the monitoring bundle status of a cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "monitoring.status", args[0], func(a *app) error {
				out, err := a.Monitoring.Status(cmd.Context(), &monitoring.StatusInput{Cluster: args[0]})
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
	c.AddCommand(
		&cobra.Command{
			Use:   "install CLUSTER",
			Short: "Install the monitoring bundle on an existing cluster",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runApp(cmd, "monitoring.install", args[0], func(a *app) error {
					out, err := a.Monitoring.Install(cmd.Context(), &monitoring.InstallInput{Cluster: args[0]})
					if err != nil {
						return err
					}
					return printJSON(cmd, out)
				})
			},
		},
		&cobra.Command{
			Use:   "uninstall CLUSTER",
			Short: "Remove the monitoring bundle and its namespace",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runApp(cmd, "monitoring.uninstall", args[0], func(a *app) error {
					out, err := a.Monitoring.Uninstall(cmd.Context(), &monitoring.UninstallInput{Cluster: args[0]})
					if err != nil {
						return err
					}
					return printJSON(cmd, out)
				})
			},
		},
	)
	return c
}
