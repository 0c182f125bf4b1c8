package calc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/mchmarny/belong/pkg/bi"
	"golang.org/x/sync/errgroup"
)

const progressEvery = 100

var ErrNoSource = errors.New("a distance matrix or a profile file is required")

// NeighborSource produces the nearest-first neighbor sequence of each entity.
type NeighborSource interface {
	IDs() []string
	Neighbors(ctx context.Context, id string) ([]string, error)
}

type Options struct {
	// Workers bounds the number of entities scored concurrently.
	// Zero or less uses the number of CPUs.
	Workers int
}

// Run scores every entity of the source against the classification. The
// first failing entity cancels the remaining work and its error is returned.
func Run(ctx context.Context, src NeighborSource, classes *bi.Classes, opts Options) (*bi.ResultSet, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	if classes == nil {
		return nil, errors.New("classification required")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ids := src.IDs()
	scores := make([]*bi.Score, len(ids))
	total := len(ids)
	var done atomic.Int64

	slog.Info("calculating belonging index", "entities", total, "workers", workers)
	if missing := Unsourced(classes, ids); len(missing) > 0 {
		slog.Warn("classified entities not in source", "count", len(missing), "first", missing[0])
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			neighbors, err := src.Neighbors(gctx, id)
			if err != nil {
				return fmt.Errorf("getting neighbors of %s: %w", id, err)
			}

			s, err := bi.Compute(id, neighbors, classes)
			if err != nil {
				return fmt.Errorf("scoring %s: %w", id, err)
			}
			scores[i] = s

			if n := done.Add(1); n%progressEvery == 0 || int(n) == total {
				slog.Debug("progress", "scored", n, "total", total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	rs, err := bi.NewResultSet(scores...)
	if err != nil {
		return nil, fmt.Errorf("collecting scores: %w", err)
	}
	return rs, nil
}

// Unsourced returns the classified entity IDs absent from the source IDs,
// sorted.
func Unsourced(classes *bi.Classes, ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	var missing []string
	for _, id := range classes.IDs() {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
