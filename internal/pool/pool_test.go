package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_RejectsNonPositiveWorkers(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, -1, -100} {
		p, err := New(n, zap.NewNop())
		require.ErrorIs(t, err, ErrInvalidArgument)
		require.Nil(t, p)
	}
}

func TestQueueTask_NilTask(t *testing.T) {
	t.Parallel()

	p, err := New(2, zap.NewNop())
	require.NoError(t, err)
	defer p.Shutdown()

	require.ErrorIs(t, p.QueueTask(nil), ErrInvalidArgument)
	require.Equal(t, 0, p.Pending())
}

func TestQueueTask_AfterShutdown(t *testing.T) {
	t.Parallel()

	p, err := New(2, zap.NewNop())
	require.NoError(t, err)
	p.Shutdown()

	var ran atomic.Bool
	err = p.QueueTask(func() { ran.Store(true) })
	require.ErrorIs(t, err, ErrIllegalState)

	// Disposed is checked before the nil-task check.
	require.ErrorIs(t, p.QueueTask(nil), ErrIllegalState)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestWait_ReturnsImmediatelyWhenIdle(t *testing.T) {
	t.Parallel()

	p, err := New(3, zap.NewNop())
	require.NoError(t, err)
	defer p.Shutdown()

	done := make(chan struct{})
	go func() {
		p.Wait()
		p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked on an idle pool")
	}
}

func TestWait_AllTasksAccounted(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 7, 250} {
		p, err := New(4, zap.NewNop())
		require.NoError(t, err)

		var success, fail atomic.Int64
		for i := 0; i < n; i++ {
			i := i
			require.NoError(t, p.QueueTask(func() {
				if i%3 == 0 {
					fail.Add(1)
					panic("boom")
				}
				success.Add(1)
			}))
		}
		p.Wait()

		require.Equal(t, 0, p.Pending())
		require.Equal(t, int64(n), success.Load()+fail.Load())
		p.Shutdown()
	}
}

func TestSingleWorker_RunsInSubmissionOrder(t *testing.T) {
	t.Parallel()

	p, err := New(1, zap.NewNop())
	require.NoError(t, err)
	defer p.Shutdown()

	var (
		mu      sync.Mutex
		order   []int
		running atomic.Int32
		overlap atomic.Bool
	)
	for i := 0; i < 50; i++ {
		i := i
		require.NoError(t, p.QueueTask(func() {
			if running.Add(1) > 1 {
				overlap.Store(true)
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			running.Add(-1)
		}))
	}
	p.Wait()

	require.False(t, overlap.Load(), "tasks overlapped on a single worker")
	require.Len(t, order, 50)
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestConcurrentCompletion_NoLostUpdates(t *testing.T) {
	t.Parallel()

	const tasks = 500
	for _, workers := range []int{1, 2, 8, 32} {
		p, err := New(workers, zap.NewNop())
		require.NoError(t, err)

		var counter atomic.Int64
		var faulted atomic.Int64
		for i := 0; i < tasks; i++ {
			i := i
			require.NoError(t, p.QueueTask(func() {
				if i%10 == 0 {
					faulted.Add(1)
					panic("fault")
				}
				counter.Add(1)
			}))
		}
		p.Wait()
		require.Equal(t, int64(tasks)-faulted.Load(), counter.Load(), "workers=%d", workers)
		p.Shutdown()
	}
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	t.Parallel()

	p, err := New(1, zap.NewNop())
	require.NoError(t, err)
	defer p.Shutdown()

	require.NoError(t, p.QueueTask(func() { panic("first") }))
	var ran atomic.Bool
	require.NoError(t, p.QueueTask(func() { ran.Store(true) }))
	p.Wait()

	require.True(t, ran.Load())
}

func TestShutdown_DrainsQueuedTasks(t *testing.T) {
	t.Parallel()

	p, err := New(2, zap.NewNop())
	require.NoError(t, err)

	var count atomic.Int64
	for i := 0; i < 100; i++ {
		require.NoError(t, p.QueueTask(func() {
			time.Sleep(time.Millisecond)
			count.Add(1)
		}))
	}
	p.Shutdown()

	require.Equal(t, int64(100), count.Load())
	require.Equal(t, 0, p.Pending())
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()

	p, err := New(3, zap.NewNop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Shutdown()
		}()
	}
	wg.Wait()
	p.Shutdown()
	require.ErrorIs(t, p.QueueTask(func() {}), ErrIllegalState)
}

func TestWait_CoversWorkQueuedWhileWaiting(t *testing.T) {
	t.Parallel()

	p, err := New(2, zap.NewNop())
	require.NoError(t, err)
	defer p.Shutdown()

	release := make(chan struct{})
	var second atomic.Bool
	require.NoError(t, p.QueueTask(func() {
		<-release
		// Queued from inside a running task, so pending never reaches zero in between.
		assert.NoError(t, p.QueueTask(func() {
			time.Sleep(10 * time.Millisecond)
			second.Store(true)
		}))
	}))

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return")
	}
	require.True(t, second.Load())
}

func TestWorkers(t *testing.T) {
	t.Parallel()

	p, err := New(5, nil)
	require.NoError(t, err)
	defer p.Shutdown()
	require.Equal(t, 5, p.Workers())
}
