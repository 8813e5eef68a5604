package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock_Sequence(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, int64(0), clock.Current())

	assert.Equal(t, int64(1), clock.Next())
	assert.Equal(t, int64(2), clock.Next())
	assert.Equal(t, int64(2), clock.Current())
}

func TestDeterministicClock_ResetReplaysSameValues(t *testing.T) {
	clock := NewDeterministicClock()

	var first []int64
	for i := 0; i < 3; i++ {
		first = append(first, clock.Next())
	}

	clock.Reset()
	assert.Equal(t, int64(0), clock.Current())

	var second []int64
	for i := 0; i < 3; i++ {
		second = append(second, clock.Next())
	}
	assert.Equal(t, first, second)
}

func TestDeterministicClock_ConcurrentNextIsUnique(t *testing.T) {
	clock := NewDeterministicClock()
	const workers, calls = 20, 50

	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				v := clock.Next()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*calls)
	assert.Equal(t, int64(workers*calls), clock.Current())
}

func TestDeterministicClock_FromResumesAfterStart(t *testing.T) {
	clock := NewDeterministicClockFrom(40)
	assert.Equal(t, int64(40), clock.Current())
	assert.Equal(t, int64(41), clock.Next())

	clock.Reset()
	assert.Equal(t, int64(41), clock.Next(), "reset rewinds to the starting seq")
}
