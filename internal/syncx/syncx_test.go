package syncx

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGate_ExactlyOneWinner(t *testing.T) {
	t.Parallel()

	for contenders := 1; contenders <= 100; contenders++ {
		var (
			gate    Gate
			winners atomic.Int32
			losers  atomic.Int32
			start   = make(chan struct{})
			wg      sync.WaitGroup
		)
		for i := 0; i < contenders; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if gate.TryClaim() {
					winners.Add(1)
				} else {
					losers.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		require.Equal(t, int32(1), winners.Load(), "contenders=%d", contenders)
		require.Equal(t, int32(contenders-1), losers.Load(), "contenders=%d", contenders)
		require.True(t, gate.Claimed())
	}
}

func TestGate_ZeroValueUnclaimed(t *testing.T) {
	t.Parallel()

	var g Gate
	require.False(t, g.Claimed())
	require.True(t, g.TryClaim())
	require.False(t, g.TryClaim())
}

func TestCounters_ConcurrentUpdates(t *testing.T) {
	t.Parallel()

	const total = 1000
	c := NewCounters(total)
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				c.Fail()
				return
			}
			c.Succeed()
		}(i)
	}
	wg.Wait()

	snap := c.Snapshot()
	require.Equal(t, 750, snap.Success)
	require.Equal(t, 250, snap.Fail)
	require.Equal(t, total, snap.Total)
	require.True(t, snap.Done())
}

func TestCounters_IncrementAndFetch(t *testing.T) {
	t.Parallel()

	c := NewCounters(3)
	require.Equal(t, 1, c.Succeed())
	require.Equal(t, 2, c.Succeed())
	require.Equal(t, 1, c.Fail())
	require.False(t, c.Snapshot().Done())
	require.Equal(t, 3, c.Total())
}
