package collection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mpath/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// Materialize resolves every indexed name concurrently and returns the
// failures keyed by name. Cancelling ctx stops scheduling new names; the
// context error is returned alongside whatever failures were collected.
func (c *Collection) Materialize(ctx context.Context) (map[string]error, error) {
	ctx, span := observability.Tracer.Start(ctx, "collection.Materialize")
	defer span.End()

	start := time.Now()
	names := c.Names()
	span.SetAttributes(attribute.Int("names", len(names)))

	var (
		mu       sync.Mutex
		failures = make(map[string]error)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for _, name := range names {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, _, err := c.Lookup(name); err != nil {
				mu.Lock()
				failures[name] = err
				mu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	span.SetAttributes(attribute.Int("failures", len(failures)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	slog.Debug("materialized collection", "names", len(names), "failures", len(failures), "duration", time.Since(start))
	return failures, err
}
