package main

import (
	"github.com/spf13/cobra"
)

// newCmdPorts returns commands inspecting the port ledger.
func newCmdPorts() *cobra.Command {
	c := &cobra.Command{
		Use:   "ports [NAME]",
		Short: "Show host port assignments",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runApp(cmd, "ports.get", name, func(a *app) error {
				if name == "" {
					entries, err := a.Clusters.Ports(cmd.Context())
					if err != nil {
						return err
					}
					return printJSON(cmd, entries)
				}
				entry, err := a.Clusters.PortsOf(cmd.Context(), name)
				if err != nil {
					return err
				}
				return printJSON(cmd, entry)
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.AddCommand(&cobra.Command{
		Use:   "release NAME",
		Short: "Release the ports of a cluster without deleting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "ports.release", args[0], func(a *app) error {
				released, err := a.Clusters.ReleasePorts(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"cluster_name": args[0], "released": released})
			})
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Drop the ports of clusters that no longer exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "ports.prune", "", func(a *app) error {
				out, err := a.Clusters.PrunePorts(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	})
	return c
}
