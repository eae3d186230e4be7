package main

import (
	"github.com/spf13/cobra"

	"github.com/clustermaster/clustermaster/usecase/activity"
)

func newCmdActivity() *cobra.Command {
	in := &activity.ListInput{}
	c := &cobra.Command{
		Use:   "activity",
		Short: "Show the activity log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "activity.list", in.ClusterName, func(a *app) error {
				out, err := a.Activity.List(cmd.Context(), in)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.Flags().StringVarP(&in.ClusterName, "cluster", "c", "", "Only entries of this cluster")
	c.Flags().IntVarP(&in.Limit, "limit", "l", 10, "Maximum number of entries")

	clearIn := &activity.ClearOldInput{}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove activity entries older than the given number of days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "activity.clear", "", func(a *app) error {
				out, err := a.Activity.ClearOld(cmd.Context(), clearIn)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
	clearCmd.Flags().IntVar(&clearIn.Days, "days", 30, "Age in days")
	c.AddCommand(clearCmd)
	return c
}

func newCmdNotifications() *cobra.Command {
	in := &activity.NotificationsInput{}
	c := &cobra.Command{
		Use:   "notifications",
		Short: "List notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "notifications.list", "", func(a *app) error {
				out, err := a.Activity.Notifications(cmd.Context(), in)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.Flags().BoolVarP(&in.UnreadOnly, "unread", "u", false, "Only unread notifications")
	c.Flags().IntVarP(&in.Limit, "limit", "l", 0, "Maximum number of notifications")
	c.AddCommand(&cobra.Command{
		Use:   "read ID",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "notifications.read", args[0], func(a *app) error {
				return a.Activity.MarkRead(cmd.Context(), args[0])
			})
		},
	})
	return c
}
