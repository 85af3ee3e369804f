// Package parallel runs phased work on a fixed set of goroutines.
//
// Every worker owns a Handler installed by Broadcast. RunPhase splits an
// index range into chunks and hands each chunk to whichever worker is free
// next; it returns only after every chunk has been acknowledged, so the
// next phase never observes a half-finished one.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-mesh/internal/logger"
)

// FnCleanUp is the message name that tears a worker down.
const FnCleanUp = "cleanUp"

// fnSetup tags the acknowledgement of a Broadcast.
const fnSetup = "setup"

// DefaultChunkSize is the number of elements per message when RunPhase is
// given a non-positive chunk size.
const DefaultChunkSize = 1024

// ErrPoolClosed is returned when work is submitted after Close.
var ErrPoolClosed = errors.New("parallel: pool closed")

// Message asks a worker to run phase Fn over the elements [Start, Stop).
type Message struct {
	Fn    string
	Start int
	Stop  int
}

// Ack reports a handled message. ID correlates it with the dispatch; Err
// is set when the handler failed or panicked.
type Ack struct {
	ID     uint64
	Worker int
	Fn     string
	Err    error
}

// Handler executes messages on one worker. A Handler is only ever called
// from its own worker goroutine.
type Handler interface {
	Handle(m Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(m Message) error

// Handle calls f(m).
func (f HandlerFunc) Handle(m Message) error {
	return f(m)
}

// Setup builds the state of one worker. It runs on that worker.
type Setup func(worker int) (Handler, error)

type task struct {
	id  uint64
	msg Message
}

type control struct {
	setup Setup
	msg   Message
}

// Pool is a fixed set of worker goroutines sharing one task queue. Each
// worker also has a private control queue used by Broadcast and Close.
//
// RunPhase and Broadcast serialize on the pool; Pool is safe for concurrent
// use.
type Pool struct {
	workers int
	tasks   chan task
	direct  []chan control
	acks    chan Ack

	mu     sync.Mutex
	nextID uint64
	closed atomic.Bool
	wg     sync.WaitGroup
	log    *zap.Logger
}

// NewPool starts workers goroutines. If workers is 0 or negative,
// GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		workers: workers,
		tasks:   make(chan task),
		direct:  make([]chan control, workers),
		acks:    make(chan Ack, workers),
		log:     logger.Named("parallel"),
	}
	for i := range workers {
		p.direct[i] = make(chan control, 1)
	}

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	p.log.Debug("pool started", zap.Int("workers", workers))
	return p
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return p.workers
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	var h Handler
	for {
		select {
		case c := <-p.direct[id]:
			if c.setup == nil {
				if closer, ok := h.(interface{ Close() error }); ok {
					p.acks <- Ack{Worker: id, Fn: c.msg.Fn, Err: closer.Close()}
				} else {
					p.acks <- Ack{Worker: id, Fn: c.msg.Fn}
				}
				return
			}
			var err error
			h, err = runSetup(c.setup, id)
			p.acks <- Ack{Worker: id, Fn: fnSetup, Err: err}

		case t := <-p.tasks:
			p.acks <- Ack{ID: t.id, Worker: id, Fn: t.msg.Fn, Err: handle(h, t.msg)}
		}
	}
}

func runSetup(setup Setup, id int) (h Handler, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d setup panicked: %v", id, r)
		}
	}()
	return setup(id)
}

func handle(h Handler, m Message) (err error) {
	if h == nil {
		return fmt.Errorf("no handler for %q", m.Fn)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s [%d, %d) panicked: %v", m.Fn, m.Start, m.Stop, r)
		}
	}()
	return h.Handle(m)
}

// Broadcast runs setup once on every worker and installs the returned
// handlers, replacing any previous ones. It waits for all workers and
// returns the first setup error.
func (p *Pool) Broadcast(setup Setup) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Load() {
		return ErrPoolClosed
	}

	for _, d := range p.direct {
		d <- control{setup: setup}
	}
	var b Barrier
	b.Add(p.workers)
	for b.Pending() > 0 {
		b.Done(<-p.acks)
	}
	return b.Err()
}

// RunPhase dispatches the range [0, n) of phase fn in chunks of chunk
// elements and waits until every chunk is acknowledged. Once ctx is done no
// further chunks are dispatched; chunks already running are waited for and
// ctx.Err is returned. Otherwise the first handler error is returned.
func (p *Pool) RunPhase(ctx context.Context, fn string, n, chunk int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Load() {
		return ErrPoolClosed
	}
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	var b Barrier
	next := 0
	done := ctx.Done()
	for next < n || b.Pending() > 0 {
		var tasks chan task
		var t task
		if next < n {
			tasks = p.tasks
			t = task{id: p.nextID, msg: Message{Fn: fn, Start: next, Stop: min(next+chunk, n)}}
		}
		select {
		case tasks <- t:
			p.nextID++
			next = t.msg.Stop
			b.Add(1)
		case a := <-p.acks:
			b.Done(a)
		case <-done:
			done = nil
			next = n
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.Err(); err != nil {
		p.log.Warn("phase failed", zap.String("fn", fn), zap.Error(err))
		return err
	}
	return nil
}

// Close sends FnCleanUp to every worker and waits for them to exit. Handlers
// that implement Close() error are closed on their worker. Close is safe to
// call more than once; only the first call reports errors.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, d := range p.direct {
		d <- control{msg: Message{Fn: FnCleanUp}}
	}
	var b Barrier
	b.Add(p.workers)
	for b.Pending() > 0 {
		b.Done(<-p.acks)
	}
	p.wg.Wait()
	p.log.Debug("pool stopped", zap.Int("workers", p.workers))
	return b.Err()
}

// Barrier counts the outstanding messages of one phase and keeps the first
// failure.
type Barrier struct {
	pending int
	err     error
}

// Add expects n more acknowledgements.
func (b *Barrier) Add(n int) {
	b.pending += n
}

// Done records one acknowledgement.
func (b *Barrier) Done(a Ack) {
	b.pending--
	if a.Err != nil && b.err == nil {
		b.err = fmt.Errorf("worker %d: %w", a.Worker, a.Err)
	}
}

// Pending returns the number of acknowledgements still expected.
func (b *Barrier) Pending() int {
	return b.pending
}

// Err returns the first failure recorded.
func (b *Barrier) Err() error {
	return b.err
}
