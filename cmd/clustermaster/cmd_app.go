package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/clustermaster/clustermaster/usecase/workload"
)

// newCmdApp returns the parent command for chart release operations.
func newCmdApp() *cobra.Command {
	c := &cobra.Command{
		Use:   "app",
		Short: "Install and remove applications on clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.AddCommand(newCmdAppInstall())
	c.AddCommand(newCmdAppList())
	c.AddCommand(newCmdAppUninstall())
	c.AddCommand(newCmdAppSearch())
	c.AddCommand(newCmdAppCatalog())
	return c
}

func newCmdAppInstall() *cobra.Command {
	in := &workload.InstallInput{}
	var values string
	cmd := &cobra.Command{
		Use:   "install CLUSTER APP",
		Short: "Install a chart release on a cluster",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Cluster, in.App = args[0], args[1]
			if values != "" {
				if err := yaml.Unmarshal([]byte(values), &in.Values); err != nil {
					return err
				}
			}
			return runApp(cmd, "app.install", in.Cluster+"/"+in.App, func(a *app) error {
				out, err := a.Workloads.Install(cmd.Context(), in)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&in.Chart, "chart", "c", "", "Repo-qualified chart, e.g. bitnami/nginx")
	f.StringVarP(&in.Namespace, "namespace", "n", "", "Target namespace (default \"default\")")
	f.StringVar(&values, "values", "", "Chart values as inline YAML or JSON")
	f.DurationVar(&in.Timeout, "timeout", 0, "Install timeout (default "+workload.DefaultInstallTimeout.String()+")")
	_ = cmd.MarkFlagRequired("chart")
	return cmd
}

func newCmdAppList() *cobra.Command {
	return &cobra.Command{
		Use:   "list CLUSTER",
		Short: "List chart releases of a cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "app.list", args[0], func(a *app) error {
				out, err := a.Workloads.List(cmd.Context(), &workload.ListInput{Cluster: args[0]})
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
}

func newCmdAppUninstall() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall CLUSTER APP",
		Short: "Uninstall a chart release",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "app.uninstall", args[0]+"/"+args[1], func(a *app) error {
				out, err := a.Workloads.Uninstall(cmd.Context(), &workload.UninstallInput{Cluster: args[0], App: args[1]})
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
}

func newCmdAppSearch() *cobra.Command {
	var max int
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search the well-known chart repositories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "app.search", args[0], func(a *app) error {
				out, err := a.Workloads.SearchCharts(cmd.Context(), &workload.SearchInput{Query: args[0], Max: max})
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
	cmd.Flags().IntVar(&max, "max", 20, "Maximum number of results")
	return cmd
}

func newCmdAppCatalog() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the curated application catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, (&workload.UseCase{}).Catalog())
		},
	}
}

