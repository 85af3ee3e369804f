// Package material provides the reference-counted material depot meshes
// register their face materials with.
package material

import (
	"sort"
	"sync"
)

// Handle identifies a material in a depot.
type Handle int32

// Uniforms is the shader-facing description of a material.
type Uniforms map[string]any

// Depot is the process-wide store of materials. Implementations must be safe
// for concurrent use.
type Depot interface {
	AddRef(h Handle, count int)
	ReleaseRef(h Handle, count int)
	Default() Handle
	Uniforms(h Handle) Uniforms
}

// MemoryDepot is an in-process Depot.
type MemoryDepot struct {
	mu       sync.Mutex
	uniforms map[Handle]Uniforms
	refs     map[Handle]int
	next     Handle
	def      Handle
}

// NewMemoryDepot creates a depot holding a single default material.
func NewMemoryDepot() *MemoryDepot {
	d := &MemoryDepot{
		uniforms: make(map[Handle]Uniforms),
		refs:     make(map[Handle]int),
	}
	d.def = d.Create(Uniforms{"name": "default", "baseColor": [4]float32{0.8, 0.8, 0.8, 1}})
	return d
}

// Create registers a new material and returns its handle.
func (d *MemoryDepot) Create(u Uniforms) Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	h := d.next
	d.next++
	d.uniforms[h] = u
	return h
}

// AddRef adds count references to h.
func (d *MemoryDepot) AddRef(h Handle, count int) {
	d.mu.Lock()
	d.refs[h] += count
	d.mu.Unlock()
}

// ReleaseRef drops count references from h.
func (d *MemoryDepot) ReleaseRef(h Handle, count int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n := d.refs[h] - count; n > 0 {
		d.refs[h] = n
	} else {
		delete(d.refs, h)
	}
}

// Default returns the material used when a face is created without one.
func (d *MemoryDepot) Default() Handle {
	return d.def
}

// Uniforms returns the uniforms of h, or nil for an unknown handle.
func (d *MemoryDepot) Uniforms(h Handle) Uniforms {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.uniforms[h]
}

// RefCount returns the current reference count of h.
func (d *MemoryDepot) RefCount(h Handle) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refs[h]
}

// Usage tracks how many references one mesh holds on each material and
// forwards every change to the shared depot. The local count and the depot
// are updated under the same lock.
type Usage struct {
	mu    sync.Mutex
	depot Depot
	used  map[Handle]int
}

// NewUsage creates an empty usage map over depot.
func NewUsage(depot Depot) *Usage {
	return &Usage{depot: depot, used: make(map[Handle]int)}
}

// Depot returns the underlying depot.
func (u *Usage) Depot() Depot {
	return u.depot
}

// AddRef adds count references to h.
func (u *Usage) AddRef(h Handle, count int) {
	if count == 0 {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	u.depot.AddRef(h, count)
	u.used[h] += count
}

// ReleaseRef drops count references from h.
func (u *Usage) ReleaseRef(h Handle, count int) {
	if count == 0 {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	u.depot.ReleaseRef(h, count)
	if n := u.used[h] - count; n > 0 {
		u.used[h] = n
	} else {
		delete(u.used, h)
	}
}

// Swap moves one reference from old to h. It is a no-op when they match.
func (u *Usage) Swap(old, h Handle) {
	if old == h {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	u.depot.ReleaseRef(old, 1)
	if n := u.used[old] - 1; n > 0 {
		u.used[old] = n
	} else {
		delete(u.used, old)
	}
	u.depot.AddRef(h, 1)
	u.used[h]++
}

// Default returns the depot's default material.
func (u *Usage) Default() Handle {
	return u.depot.Default()
}

// Uniforms returns the uniforms of h from the depot.
func (u *Usage) Uniforms(h Handle) Uniforms {
	return u.depot.Uniforms(h)
}

// Count returns the references this mesh holds on h.
func (u *Usage) Count(h Handle) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.used[h]
}

// Entry is one material in use and its local reference count.
type Entry struct {
	Handle Handle
	Count  int
}

// Entries returns the materials in use ordered by handle.
func (u *Usage) Entries() []Entry {
	u.mu.Lock()
	defer u.mu.Unlock()

	out := make([]Entry, 0, len(u.used))
	for h, n := range u.used {
		out = append(out, Entry{Handle: h, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}
