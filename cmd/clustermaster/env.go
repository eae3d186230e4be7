package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/clustermaster/clustermaster/config/cmenv"
)

type envKey struct{}

func withEnv(ctx context.Context, env *cmenv.Env) context.Context {
	return context.WithValue(ctx, envKey{}, env)
}

func envFrom(ctx context.Context) (*cmenv.Env, error) {
	if env, ok := ctx.Value(envKey{}).(*cmenv.Env); ok {
		return env, nil
	}
	return nil, errors.New("environment not resolved")
}

// resolveEnv resolves the project environment from --root/--dir and the
// working directory.
func resolveEnv(cmd *cobra.Command) (*cmenv.Env, error) {
	root, _ := cmd.Flags().GetString("root")
	dir, _ := cmd.Flags().GetString("dir")
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return cmenv.Resolve(root, dir, wd)
}
