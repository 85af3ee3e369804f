package subdiv

import (
	"context"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-mesh/internal/logger"
	"github.com/Faultbox/midgard-mesh/internal/parallel"
	"github.com/Faultbox/midgard-mesh/pkg/mesh"
)

// poolRunner runs every pass of a level on a worker pool. Each worker gets
// its own view of the level, rehydrated from a snapshot of the two meshes,
// so the workers write straight into the destination buffers. Prepare and
// Finish stay on the calling goroutine.
type poolRunner struct {
	workers int
	chunk   int
	pool    *parallel.Pool
}

func (r *poolRunner) run(ctx context.Context, l *Level) error {
	if r.pool == nil {
		r.pool = parallel.NewPool(r.workers)
	}
	snap := l.dehydrate()
	err := r.pool.Broadcast(func(int) (parallel.Handler, error) {
		v, err := snap.view()
		if err != nil {
			return nil, err
		}
		return parallel.HandlerFunc(func(m parallel.Message) error {
			return v.Run(m.Fn, m.Start, m.Stop)
		}), nil
	})
	if err != nil {
		return err
	}

	for _, p := range l.Phases() {
		chunk := r.chunk
		if p.Name == PhaseSubdivideHole {
			chunk = 1
		}
		if err := r.pool.RunPhase(ctx, p.Name, p.Len, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (r *poolRunner) close() error {
	if r.pool == nil {
		return nil
	}
	return r.pool.Close()
}

// SubdivideParallel is Subdivide with the passes of every level split into
// chunks of opts.ChunkSize elements and spread over opts.Workers goroutines.
// The result is identical to the serial one.
func SubdivideParallel(ctx context.Context, src mesh.Mesh, s Scheme, levels int, opts Options) (mesh.Mesh, error) {
	logger.Named("subdiv").Debug("parallel subdivision",
		zap.String("scheme", s.Name()),
		zap.Int("levels", levels),
		zap.Int("workers", opts.Workers),
		zap.Int("chunk", opts.ChunkSize),
	)
	return subdivide(ctx, src, s, levels, &poolRunner{workers: opts.Workers, chunk: opts.ChunkSize})
}
