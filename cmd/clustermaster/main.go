package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/clustermaster/clustermaster/adapters/drivers/provider/k3d"
	_ "github.com/clustermaster/clustermaster/adapters/drivers/provider/kind"
	"github.com/clustermaster/clustermaster/config/cmenv"
	"github.com/clustermaster/clustermaster/internal/logging"
)

func newRootCmd() *cobra.Command {
	var logFile *logging.LogFile
	cmd := &cobra.Command{
		Use:     "clustermaster",
		Short:   "ClusterMaster CLI",
		Long:    "ClusterMaster manages local kind/k3d clusters, their host ports, workloads and cloud deployments.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.String("root", os.Getenv(cmenv.RootEnvKey), "Project root directory (env "+cmenv.RootEnvKey+")")
	pf.String("dir", os.Getenv(cmenv.DirEnvKey), "State directory (env "+cmenv.DirEnvKey+", default $ROOT/.clustermaster)")
	pf.String("log-format", "", "Log format (human|text|json) (env CM_LOG_FORMAT)")
	pf.String("log-level", "", "Log level (DEBUG|INFO|WARN|ERROR) (env CM_LOG_LEVEL)")
	pf.String("log-output", "", `Log output: empty for a file in the log directory, "-" for stderr, "none", or a path`)

	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		if c.Name() == "version" || c.Name() == "init" {
			return nil
		}
		env, err := resolveEnv(c)
		if err != nil {
			return err
		}
		lc := env.Config.Logging
		if v, _ := c.Flags().GetString("log-format"); v != "" {
			lc.Format = v
		}
		if v, _ := c.Flags().GetString("log-level"); v != "" {
			lc.Level = v
		}
		output, _ := c.Flags().GetString("log-output")
		logFile, err = logging.OpenLogFile(logging.FileConfig{Output: output, Dir: lc.Dir, RetentionDays: lc.RetentionDays})
		if err != nil {
			return err
		}
		l, err := logging.NewWithWriter(lc.Format, logging.ParseLevel(lc.Level), logFile.Writer())
		if err != nil {
			return err
		}
		if n, err := logging.PruneLogFiles(lc.Dir, lc.RetentionDays, time.Now()); err != nil {
			l.Warn(c.Context(), "log pruning failed", "error", err)
		} else if n > 0 {
			l.Debug(c.Context(), "pruned log files", "count", n)
		}
		ctx := logging.WithLogger(c.Context(), l)
		ctx = withEnv(ctx, env)
		c.SetContext(ctx)
		return nil
	}
	cmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		if logFile != nil {
			return logFile.Close()
		}
		return nil
	}

	cmd.AddCommand(newCmdVersion())
	cmd.AddCommand(newCmdInit())
	cmd.AddCommand(newCmdCluster())
	cmd.AddCommand(newCmdPorts())
	cmd.AddCommand(newCmdApp())
	cmd.AddCommand(newCmdMonitoring())
	cmd.AddCommand(newCmdDeploy())
	cmd.AddCommand(newCmdBackup())
	cmd.AddCommand(newCmdActivity())
	cmd.AddCommand(newCmdNotifications())
	cmd.AddCommand(newCmdServe())
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := newRootCmd()
	root.SetContext(ctx)
	executed, err := root.ExecuteC()
	stop()
	if err != nil {
		ctx := root.Context()
		if executed != nil {
			ctx = executed.Context()
		}
		logging.FromContext(ctx).Errorf(ctx, "Failed: %s", err)
		os.Exit(1)
	}
}
