package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/usecase/deployment"
)

// newCmdDeploy returns the parent command for Terraform-backed cloud deployments.
func newCmdDeploy() *cobra.Command {
	c := &cobra.Command{
		Use:   "deploy",
		Short: "Cloud deployments driven by Terraform",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.PersistentFlags().String("user", "", "Owner of the deployment records")
	c.AddCommand(newCmdDeployCreate())
	c.AddCommand(newCmdDeployList())
	c.AddCommand(newCmdDeployGet())
	c.AddCommand(newCmdDeployDestroy())
	return c
}

func newCmdDeployCreate() *cobra.Command {
	in := &deployment.CreateInput{}
	var provider string
	cmd := &cobra.Command{
		Use:   "create CLUSTER",
		Short: "Provision a cluster with Terraform and wait for the run to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.ClusterName = args[0]
			in.Provider = model.DeploymentProvider(provider)
			in.UserID, _ = cmd.Flags().GetString("user")
			return runApp(cmd, "deploy.create", in.ClusterName, func(a *app) error {
				ctx := cmd.Context()
				out, err := a.Deployments.Create(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Deployment %s started, waiting for terraform\n", out.RunID)
				a.Deployments.Wait()
				got, err := a.Deployments.Get(ctx, &deployment.GetInput{ID: out.RunID})
				if err != nil {
					return err
				}
				if err := printJSON(cmd, got.Deployment); err != nil {
					return err
				}
				if got.Deployment.Status == model.DeploymentFailed {
					return fmt.Errorf("deployment %s failed", out.RunID)
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&provider, "provider", "p", "local", "Deployment provider (aws|local)")
	f.IntVarP(&in.NodeCount, "nodes", "n", 2, "Number of worker nodes")
	f.StringVar(&in.AWSRegion, "aws-region", "", "AWS region")
	f.StringVar(&in.InstanceType, "instance-type", "", "EC2 instance type")
	f.StringVar(&in.VPCCIDR, "vpc-cidr", "", "VPC CIDR block")
	f.StringVar(&in.AWSAccessKey, "aws-access-key", "", "AWS access key ID")
	f.StringVar(&in.AWSSecretKey, "aws-secret-key", "", "AWS secret access key")
	f.StringVar(&in.KubeconfigPath, "kubeconfig-path", "", "Kubeconfig written by a local deployment")
	f.IntVar(&in.CPU, "cpu", 0, "CPUs per local node")
	f.IntVar(&in.Memory, "memory", 0, "Memory per local node in MiB")
	f.IntVar(&in.Disk, "disk", 0, "Disk per local node in GiB")
	f.StringVar(&in.K8sVersion, "k8s-version", "", "Kubernetes version")
	f.BoolVar(&in.EnableAutoscaling, "autoscaling", false, "Enable node autoscaling")
	f.IntVar(&in.MinNodes, "min-nodes", 0, "Autoscaling minimum")
	f.IntVar(&in.MaxNodes, "max-nodes", 0, "Autoscaling maximum")
	f.StringToStringVar(&in.Tags, "tag", nil, "Resource tags (key=value)")
	return cmd
}

func newCmdDeployList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List deployment records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			return runApp(cmd, "deploy.list", user, func(a *app) error {
				out, err := a.Deployments.List(cmd.Context(), &deployment.ListInput{UserID: user})
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
}

func newCmdDeployGet() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a deployment record including its terraform log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			return runApp(cmd, "deploy.get", args[0], func(a *app) error {
				out, err := a.Deployments.Get(cmd.Context(), &deployment.GetInput{ID: args[0], UserID: user})
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
}

func newCmdDeployDestroy() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy ID",
		Short: "Destroy the infrastructure of a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			return runApp(cmd, "deploy.destroy", args[0], func(a *app) error {
				out, err := a.Deployments.Destroy(cmd.Context(), &deployment.DestroyInput{ID: args[0], UserID: user})
				if err != nil {
					return err
				}
				if err := printJSON(cmd, out); err != nil {
					return err
				}
				if !out.Success {
					return fmt.Errorf("destroy %s: %s", args[0], out.Error)
				}
				return nil
			})
		},
	}
}
