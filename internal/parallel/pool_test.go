package parallel

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_Workers(t *testing.T) {
	p := NewPool(3)
	defer p.Close()
	assert.Equal(t, 3, p.Workers())

	q := NewPool(0)
	defer q.Close()
	assert.Equal(t, runtime.GOMAXPROCS(0), q.Workers())
}

func TestRunPhase_CoversRangeOnce(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	const n = 10_000
	hits := make([]int32, n)
	var messages atomic.Int32
	require.NoError(t, p.Broadcast(func(int) (Handler, error) {
		return HandlerFunc(func(m Message) error {
			messages.Add(1)
			assert.Equal(t, "touch", m.Fn)
			for i := m.Start; i < m.Stop; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
			return nil
		}), nil
	}))

	require.NoError(t, p.RunPhase(context.Background(), "touch", n, 999))
	for i, h := range hits {
		if h != 1 {
			t.Fatalf("element %d handled %d times", i, h)
		}
	}
	assert.Equal(t, int32(11), messages.Load())
}

func TestRunPhase_BarrierBetweenPhases(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	const n = 4096
	first := make([]int32, n)
	var sawUnfinished atomic.Bool
	require.NoError(t, p.Broadcast(func(int) (Handler, error) {
		return HandlerFunc(func(m Message) error {
			for i := m.Start; i < m.Stop; i++ {
				switch m.Fn {
				case "write":
					atomic.StoreInt32(&first[i], 1)
				case "read":
					// every chunk of the previous phase must be visible
					for j := range first {
						if atomic.LoadInt32(&first[j]) != 1 {
							sawUnfinished.Store(true)
						}
					}
					return nil
				}
			}
			return nil
		}), nil
	}))

	require.NoError(t, p.RunPhase(context.Background(), "write", n, 64))
	require.NoError(t, p.RunPhase(context.Background(), "read", 8, 1))
	assert.False(t, sawUnfinished.Load())
}

func TestBroadcast_PerWorkerState(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	var mu sync.Mutex
	seen := map[int]bool{}
	require.NoError(t, p.Broadcast(func(worker int) (Handler, error) {
		mu.Lock()
		seen[worker] = true
		mu.Unlock()
		return HandlerFunc(func(Message) error { return nil }), nil
	}))
	assert.Len(t, seen, 4)

	boom := errors.New("boom")
	err := p.Broadcast(func(worker int) (Handler, error) {
		if worker == 2 {
			return nil, boom
		}
		return HandlerFunc(func(Message) error { return nil }), nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunPhase_HandlerErrorAndPanic(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	bad := errors.New("bad chunk")
	require.NoError(t, p.Broadcast(func(int) (Handler, error) {
		return HandlerFunc(func(m Message) error {
			switch {
			case m.Fn == "fail" && m.Start == 20:
				return bad
			case m.Fn == "panic" && m.Start == 0:
				panic("index out of range")
			}
			return nil
		}), nil
	}))

	err := p.RunPhase(context.Background(), "fail", 100, 10)
	assert.ErrorIs(t, err, bad)

	err = p.RunPhase(context.Background(), "panic", 100, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	// the pool keeps working after a failed phase
	assert.NoError(t, p.RunPhase(context.Background(), "ok", 100, 10))
}

func TestRunPhase_NoHandler(t *testing.T) {
	p := NewPool(1)
	defer p.Close()
	err := p.RunPhase(context.Background(), "orphan", 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler")
}

func TestRunPhase_Cancelled(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	var handled atomic.Int32
	require.NoError(t, p.Broadcast(func(int) (Handler, error) {
		return HandlerFunc(func(Message) error {
			handled.Add(1)
			return nil
		}), nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.RunPhase(ctx, "late", 1_000_000, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, handled.Load(), int32(1_000_000))
}

func TestRunPhase_Empty(t *testing.T) {
	p := NewPool(2)
	defer p.Close()
	assert.NoError(t, p.RunPhase(context.Background(), "none", 0, 16))
}

type closingHandler struct {
	closed *atomic.Int32
}

func (h closingHandler) Handle(Message) error { return nil }

func (h closingHandler) Close() error {
	h.closed.Add(1)
	return nil
}

func TestClose(t *testing.T) {
	p := NewPool(3)
	var closed atomic.Int32
	require.NoError(t, p.Broadcast(func(int) (Handler, error) {
		return closingHandler{closed: &closed}, nil
	}))

	require.NoError(t, p.Close())
	assert.Equal(t, int32(3), closed.Load())
	assert.NoError(t, p.Close(), "second close is a no-op")

	assert.ErrorIs(t, p.RunPhase(context.Background(), "x", 1, 1), ErrPoolClosed)
	assert.ErrorIs(t, p.Broadcast(func(int) (Handler, error) { return nil, nil }), ErrPoolClosed)
}

func TestBarrier(t *testing.T) {
	var b Barrier
	b.Add(3)
	b.Done(Ack{Worker: 0})
	b.Done(Ack{Worker: 1, Err: errors.New("first")})
	b.Done(Ack{Worker: 2, Err: errors.New("second")})
	assert.Zero(t, b.Pending())
	require.Error(t, b.Err())
	assert.Contains(t, b.Err().Error(), "first")
}
