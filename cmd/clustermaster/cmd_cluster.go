package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clustermaster/clustermaster/usecase/cluster"
)

// newCmdCluster returns the parent command for cluster lifecycle operations.
func newCmdCluster() *cobra.Command {
	c := &cobra.Command{
		Use:   "cluster",
		Short: "Cluster lifecycle commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.AddCommand(newCmdClusterCreate())
	c.AddCommand(newCmdClusterDelete())
	c.AddCommand(newCmdClusterScale())
	c.AddCommand(newCmdClusterPower("start"))
	c.AddCommand(newCmdClusterPower("stop"))
	c.AddCommand(newCmdClusterList())
	c.AddCommand(newCmdClusterGet())
	c.AddCommand(newCmdClusterNodes())
	c.AddCommand(newCmdClusterURLs())
	c.AddCommand(newCmdClusterState())
	return c
}

// runApp builds the app, runs fn inside a CMD span and closes the app.
func runApp(cmd *cobra.Command, op, resourceID string, fn func(a *app) error) (err error) {
	quietKlog()
	ctx, finish := cmdSpan(cmd.Context(), op, resourceID)
	defer func() { finish(err) }()
	cmd.SetContext(ctx)
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newCmdClusterCreate() *cobra.Command {
	in := &cluster.CreateInput{}
	var forward bool
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a kind or k3d cluster with allocated host ports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			return runApp(cmd, "cluster.create", in.Name, func(a *app) error {
				ctx := cmd.Context()
				if !forward {
					a.Clusters.Forwarder = nil
				}
				out, err := a.Clusters.Create(ctx, in)
				if err != nil {
					return err
				}
				if err := printJSON(cmd, out); err != nil {
					return err
				}
				if !out.Success {
					return fmt.Errorf("cluster %s: %s", in.Name, out.Error)
				}
				if forward && out.Status == cluster.StatusSuccess && out.PortForwardError == "" {
					fmt.Fprintln(cmd.ErrOrStderr(), "Port forwards running, press Ctrl-C to stop")
					<-ctx.Done()
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&in.Provider, "provider", "p", "kind", "Cluster provider (kind|k3d)")
	f.IntVarP(&in.Workers, "workers", "w", 0, "Number of worker (agent) nodes")
	f.IntVar(&in.ControlPlanes, "control-planes", 1, "Number of control plane nodes")
	f.BoolVar(&in.InstallMonitoring, "monitoring", true, "Install prometheus and grafana after creation")
	f.StringVar(&in.K8sVersion, "k8s-version", "", "Kubernetes version of the node image, e.g. v1.30.0")
	f.StringVar(&in.Image, "image", "", "Node image override")
	f.BoolVar(&forward, "port-forward", false, "Start monitoring port forwards and keep running until interrupted")
	return cmd
}

func newCmdClusterDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a cluster and release its ports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "cluster.delete", args[0], func(a *app) error {
				out, err := a.Clusters.Delete(cmd.Context(), &cluster.DeleteInput{Name: args[0]})
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
}

func newCmdClusterScale() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "scale NAME",
		Short: "Change the number of worker (agent) nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "cluster.scale", args[0], func(a *app) error {
				out, err := a.Clusters.Scale(cmd.Context(), &cluster.ScaleInput{Name: args[0], Workers: workers})
				if err != nil {
					return err
				}
				if err := printJSON(cmd, out); err != nil {
					return err
				}
				if !out.Success {
					return fmt.Errorf("scale %s: %s", args[0], out.Error)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Target number of worker (agent) nodes")
	_ = cmd.MarkFlagRequired("workers")
	return cmd
}

func newCmdClusterPower(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " NAME",
		Short: fmt.Sprintf("%s the nodes of a cluster", map[string]string{"start": "Start", "stop": "Stop"}[action]),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "cluster."+action, args[0], func(a *app) error {
				run := a.Clusters.Start
				if action == "stop" {
					run = a.Clusters.Stop
				}
				out, err := run(cmd.Context(), &cluster.PowerInput{Name: args[0]})
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
}

func newCmdClusterList() *cobra.Command {
	in := &cluster.ListInput{}
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List clusters of every installed provider",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "cluster.list", "", func(a *app) error {
				out, err := a.Clusters.List(cmd.Context(), in)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
	cmd.Flags().BoolVarP(&in.Detailed, "detailed", "d", false, "Include nodes of each cluster")
	return cmd
}

func newCmdClusterGet() *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME",
		Short: "Show cluster details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "cluster.get", args[0], func(a *app) error {
				out, err := a.Clusters.Get(cmd.Context(), &cluster.GetInput{Name: args[0]})
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
}

func newCmdClusterNodes() *cobra.Command {
	return &cobra.Command{
		Use:   "nodes NAME",
		Short: "List the nodes of a cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "cluster.nodes", args[0], func(a *app) error {
				out, err := a.Clusters.Nodes(cmd.Context(), &cluster.NodesInput{Name: args[0]})
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
}

func newCmdClusterURLs() *cobra.Command {
	return &cobra.Command{
		Use:   "urls NAME",
		Short: "Show service URLs derived from the allocated ports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "cluster.urls", args[0], func(a *app) error {
				out, err := a.Clusters.URLs(cmd.Context(), &cluster.URLsInput{Name: args[0]})
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
}

func newCmdClusterState() *cobra.Command {
	return &cobra.Command{
		Use:   "state NAME",
		Short: "Show the scale state of a cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, "cluster.state", args[0], func(a *app) error {
				out, err := a.Clusters.State(cmd.Context(), &cluster.StateInput{Name: args[0]})
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
}
