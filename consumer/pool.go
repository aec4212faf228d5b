package consumer

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// runPool starts n identical worker goroutines, each running fn in a loop
// until ctx is cancelled or fn returns nil, and waits for all of them to
// return. A worker
// that returns a non-nil error logs it and restarts rather than tearing
// down the whole pool, so one dead broker channel does not take the other
// concurrency-9 workers down with it.
func runPool(ctx context.Context, n int, logger *slog.Logger, fn func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			for {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if err := fn(gctx); err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					logger.Error("consumer worker exited, restarting", "error", err)
					continue
				}
				return nil
			}
		})
	}
	return g.Wait()
}
