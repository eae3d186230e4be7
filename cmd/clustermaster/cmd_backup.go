package main

import (
	"github.com/spf13/cobra"

	"github.com/clustermaster/clustermaster/usecase/backup"
)

// newCmdBackup returns the parent command for resource-level cluster backups.
func newCmdBackup() *cobra.Command {
	c := &cobra.Command{
		Use:   "backup",
		Short: "Back up and restore cluster resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.AddCommand(newCmdBackupCreate())
	c.AddCommand(newCmdBackupList())
	c.AddCommand(newCmdBackupGet())
	c.AddCommand(newCmdBackupDelete())
	c.AddCommand(newCmdBackupRestore())
	return c
}

func newCmdBackupCreate() *cobra.Command {
	in := &backup.CreateInput{}
	cmd := &cobra.Command{
		Use:   "create CLUSTER",
		Short: "Export the resources of a cluster into a new backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Cluster = args[0]
			return runApp(cmd, "backup.create", in.Cluster, func(a *app) error {
				out, err := a.Backups.Create(cmd.Context(), in)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "Backup name (default CLUSTER-yyyymmdd-hhmmss)")
	return cmd
}

func newCmdBackupList() *cobra.Command {
	var clusterName string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "backup.list", clusterName, func(a *app) error {
				out, err := a.Backups.List(cmd.Context(), clusterName)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
	cmd.Flags().StringVar(&clusterName, "cluster", "", "Only backups of this cluster")
	return cmd
}

func newCmdBackupGet() *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME",
		Short: "Show the manifest and files of a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "backup.get", args[0], func(a *app) error {
				b, err := a.Backups.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, b)
			})
		},
	}
}

func newCmdBackupDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "backup.delete", args[0], func(a *app) error {
				if err := a.Backups.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"backup_name": args[0], "deleted": true})
			})
		},
	}
}

func newCmdBackupRestore() *cobra.Command {
	in := &backup.RestoreInput{}
	cmd := &cobra.Command{
		Use:   "restore NAME",
		Short: "Create a new cluster from a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			return runApp(cmd, "backup.restore", in.Name, func(a *app) error {
				out, err := a.Backups.Restore(cmd.Context(), in)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
	cmd.Flags().StringVar(&in.Target, "target", "", "Name of the new cluster (default CLUSTER-restored)")
	cmd.Flags().StringVar(&in.Provider, "provider", "", "Provider of the new cluster (default: the backed-up one)")
	return cmd
}
