package main

import (
	"context"
	"flag"
	"sync"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	klog "k8s.io/klog/v2"

	"github.com/clustermaster/clustermaster/internal/logging"
)

var klogOnce sync.Once

// quietKlog limits klog noise from client-go, which otherwise writes
// port-forward and throttling messages straight to stderr.
func quietKlog() {
	klogOnce.Do(func() {
		klog.InitFlags(nil)
		_ = flag.Set("stderrthreshold", "FATAL")
		_ = flag.Set("v", "0")
		_ = flag.Set("logtostderr", "false")
		_ = flag.Set("alsologtostderr", "false")
	})
}

// cmdSpan starts a CMD span for operation on resourceID.
func cmdSpan(ctx context.Context, operation, resourceID string) (context.Context, func(error)) {
	return logging.Span(ctx, "CMD", operation, "resourceId", resourceID)
}

// printJSON writes v as indented JSON to the command output.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
