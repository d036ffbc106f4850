package symbol

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// RenderAll renders chunks[i] to names[i] with at most workers renders in
// flight. Every target is checked before the first render starts; if any
// render fails, images written by this call are removed again.
func RenderAll(ctx context.Context, r Renderer, chunks, names []string, workers int, logger zerolog.Logger) error {
	if len(chunks) != len(names) {
		return fmt.Errorf("symbol: %d chunks but %d targets", len(chunks), len(names))
	}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateTarget, name)
		}
		seen[name] = struct{}{}
		if err := ensureAbsent(name); err != nil {
			return err
		}
	}
	if workers <= 0 {
		workers = 1
	}

	var mu sync.Mutex
	written := make([]string, 0, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range chunks {
		chunk, target := chunks[i], names[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := r.Render(chunk, target); err != nil {
				return err
			}
			mu.Lock()
			written = append(written, target)
			mu.Unlock()
			logger.Debug().Str("target", target).Int("len", len(chunk)).Msg("symbol: rendered")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, name := range written {
			_ = os.Remove(name)
		}
		logger.Warn().Err(err).Int("removed", len(written)).Msg("symbol: render aborted")
		return err
	}
	return nil
}
