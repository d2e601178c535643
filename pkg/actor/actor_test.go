package actor_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tempolabs/corelib/pkg/actor"
)

// scenario G: P=4 workers; a "sum" actor receiving 1 from two threads;
// after shutdown the counter reflects every accepted send, never 0.
func TestScenarioG_SumActor(t *testing.T) {
	defer goleak.VerifyNone(t)

	sys := actor.New(actor.Config{Workers: 4}, nil, nil)

	var counter int64
	var wg sync.WaitGroup
	wg.Add(2) // one Done per handler invocation, one per message
	handle, err := sys.Register("sum", 16, func(msg any) {
		atomic.AddInt64(&counter, msg.(int64))
		wg.Done()
	})
	require.NoError(t, err)

	// done2 signals that the second sender's Send has returned.
	done2 := make(chan struct{})
	go func() {
		ok := handle.Send(int64(1))
		require.True(t, ok)
	}()
	go func() {
		ok := handle.Send(int64(1))
		require.True(t, ok)
		close(done2)
	}()

	wg.Wait()
	<-done2
	// wg.Wait has already seen both handler invocations; the pause only
	// lets the drain loop go idle before Shutdown.
	time.Sleep(10 * time.Millisecond)

	sys.Shutdown()
	assert.EqualValues(t, 2, atomic.LoadInt64(&counter))
}

func TestDuplicateRegister(t *testing.T) {
	defer goleak.VerifyNone(t)

	sys := actor.New(actor.Config{Workers: 1}, nil, nil)
	_, err := sys.Register("a", 4, func(any) {})
	require.NoError(t, err)

	_, err = sys.Register("a", 4, func(any) {})
	assert.ErrorIs(t, err, actor.ErrDuplicateActor)

	sys.Shutdown()
}

func TestMailboxFullReturnsFalse(t *testing.T) {
	defer goleak.VerifyNone(t)

	block := make(chan struct{})
	sys := actor.New(actor.Config{Workers: 1}, nil, nil)
	started := make(chan struct{}, 2)
	handle, err := sys.Register("a", 1, func(any) { started <- struct{}{}; <-block })
	require.NoError(t, err)

	require.True(t, handle.Send(1)) // consumed by the blocked handler
	<-started
	require.True(t, handle.Send(2)) // fills the one-deep mailbox
	assert.False(t, handle.Send(3)) // mailbox full

	close(block)
	sys.Shutdown()
}

// invariant 8: for any actor, handler execution intervals never overlap.
func TestExclusion(t *testing.T) {
	defer goleak.VerifyNone(t)

	sys := actor.New(actor.Config{Workers: 8}, nil, nil)

	var running int32
	var overlapped int32
	handle, err := sys.Register("a", 1000, func(any) {
		if !atomic.CompareAndSwapInt32(&running, 0, 1) {
			atomic.StoreInt32(&overlapped, 1)
		}
		time.Sleep(time.Microsecond)
		atomic.StoreInt32(&running, 0)
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handle.Send(1)
		}()
	}
	wg.Wait()
	time.Sleep(50 * time.Millisecond)

	sys.Shutdown()
	assert.Zero(t, atomic.LoadInt32(&overlapped))
}

// invariant 9: per-producer FIFO — messages from a single thread are
// handled in enqueue order.
func TestPerProducerFIFO(t *testing.T) {
	defer goleak.VerifyNone(t)

	sys := actor.New(actor.Config{Workers: 4}, nil, nil)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(100)
	handle, err := sys.Register("a", 200, func(msg any) {
		mu.Lock()
		order = append(order, msg.(int))
		mu.Unlock()
		wg.Done()
	})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.True(t, handle.Send(i))
	}
	wg.Wait()

	for i := range order {
		assert.Equal(t, i, order[i])
	}
	sys.Shutdown()
}
