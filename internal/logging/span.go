package logging

import (
	"context"
	"time"
)

const spanErrMax = 32

// Span emits a start line "<kind>:<op>/S" and returns a context whose logger
// carries kv, plus a finish function emitting "<kind>:<op>/EOK" or
// "<kind>:<op>/EFAIL" with the elapsed seconds.
//
//	ctx, finish := logging.Span(ctx, "UC", "cluster.create", "cluster", name)
//	defer func() { finish(err) }()
//
// All span lines are INFO.
func Span(ctx context.Context, kind, op string, kv ...any) (context.Context, func(err error)) {
	start := time.Now()
	logger := FromContext(ctx)
	if len(kv) > 0 {
		logger = logger.With(kv...)
	}
	ctx = WithLogger(ctx, logger)
	prefix := kind + ":" + op
	logger.Info(ctx, prefix+"/S")

	return ctx, func(err error) {
		elapsed := time.Since(start).Seconds()
		if err == nil {
			logger.Info(ctx, prefix+"/EOK", "err", "", "elapsed", elapsed)
			return
		}
		msg := err.Error()
		if len(msg) > spanErrMax {
			msg = msg[:spanErrMax] + "..."
		}
		logger.Info(ctx, prefix+"/EFAIL", "err", msg, "elapsed", elapsed)
	}
}
