// Package subdiv refines meshes with Catmull-Clark, Loop and Modified
// Butterfly subdivision.
//
// One level runs as a fixed sequence of passes over a preallocated
// destination mesh. Each pass reads the source and the output of earlier
// passes and writes a disjoint region of the destination for every element
// of its range, so ranges of one pass can run on different goroutines.
package subdiv

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-mesh/internal/logger"
	"github.com/Faultbox/midgard-mesh/pkg/mesh"
)

var (
	// ErrUnknownScheme is returned by Lookup for an unregistered name.
	ErrUnknownScheme = errors.New("subdiv: unknown scheme")
	// ErrMeshKind is returned when a scheme cannot refine the given mesh.
	ErrMeshKind = errors.New("subdiv: unsupported mesh kind")
	// ErrLevels is returned for a negative level count.
	ErrLevels = errors.New("subdiv: invalid level count")
	// ErrPhase is returned when a level is asked to run an unknown pass.
	ErrPhase = errors.New("subdiv: unknown phase")
)

// Scheme is one subdivision rule set. Prepare allocates the destination of
// a level; the remaining methods are its passes, run in the order listed.
// Ranged passes only touch elements in [start, stop).
type Scheme interface {
	Name() string
	// Kind is the mesh kind the scheme refines.
	Kind() mesh.Kind

	Prepare(src mesh.Mesh) (*Level, error)
	RefineFacePoints(l *Level, start, stop int)
	RefineEdges(l *Level, start, stop int)
	RefineVertices(l *Level, start, stop int)
	SubdivideFaces(l *Level, start, stop int)
	SubdivideHoles(l *Level)
}

var schemes = map[string]Scheme{
	"catmull-clark": CatmullClark{},
	"loop":          Loop{},
	"butterfly":     Butterfly{},
}

// Lookup returns the scheme registered under name.
func Lookup(name string) (Scheme, error) {
	s, ok := schemes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
	}
	return s, nil
}

// Names returns the registered scheme names in order.
func Names() []string {
	names := make([]string, 0, len(schemes))
	for name := range schemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options controls how levels are executed.
type Options struct {
	// Parallel runs the passes of every level on a worker pool.
	Parallel bool
	// Workers is the pool size; 0 means GOMAXPROCS.
	Workers int
	// ChunkSize is the number of elements per message; 0 means the pool
	// default.
	ChunkSize int
}

type levelRunner interface {
	run(ctx context.Context, l *Level) error
	close() error
}

type serialRunner struct{}

func (serialRunner) run(ctx context.Context, l *Level) error {
	for _, p := range l.Phases() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.Run(p.Name, 0, p.Len); err != nil {
			return err
		}
	}
	return nil
}

func (serialRunner) close() error {
	return nil
}

// Subdivide refines src levels times with scheme s and returns the result.
// Zero levels returns src itself. The source is never modified; meshes of
// intermediate levels give their material references back before they are
// dropped.
func Subdivide(ctx context.Context, src mesh.Mesh, s Scheme, levels int, opts Options) (mesh.Mesh, error) {
	if opts.Parallel {
		return SubdivideParallel(ctx, src, s, levels, opts)
	}
	return subdivide(ctx, src, s, levels, serialRunner{})
}

func subdivide(ctx context.Context, src mesh.Mesh, s Scheme, levels int, r levelRunner) (out mesh.Mesh, err error) {
	if levels < 0 {
		return nil, fmt.Errorf("%w: %d", ErrLevels, levels)
	}
	if src.Kind() != s.Kind() {
		return nil, fmt.Errorf("%w: %s refines %s meshes, got %s", ErrMeshKind, s.Name(), s.Kind(), src.Kind())
	}
	defer func() {
		if cerr := r.close(); err == nil && cerr != nil {
			out, err = nil, cerr
		}
	}()

	log := logger.Named("subdiv").With(zap.String("scheme", s.Name()))
	cur := src
	for i := 0; i < levels; i++ {
		l, err := s.Prepare(cur)
		if err != nil {
			return nil, err
		}
		if err := r.run(ctx, l); err != nil {
			if cur != src {
				releaseMaterials(cur)
			}
			return nil, fmt.Errorf("level %d: %w", i+1, err)
		}
		next := l.Finish()
		if cur != src {
			releaseMaterials(cur)
		}
		cur = next
		log.Debug("level done", zap.Int("level", i+1), zap.Stringer("stat", cur.Stat()))
	}
	return cur, nil
}

func releaseMaterials(m mesh.Mesh) {
	u := m.Usage()
	for _, e := range u.Entries() {
		u.ReleaseRef(e.Handle, e.Count)
	}
}
