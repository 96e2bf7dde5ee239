package utils

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottleSpacesCalls(t *testing.T) {
	th := NewThrottle(20 * time.Millisecond)

	start := time.Now()
	th.Wait()
	th.Wait()
	th.Wait()

	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestThrottleZeroIntervalNeverBlocks(t *testing.T) {
	th := NewThrottle(0)

	start := time.Now()
	for i := 0; i < 100; i++ {
		th.Wait()
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestKeySetAdd(t *testing.T) {
	s := NewKeySet()

	assert.True(t, s.Add("100100"))
	assert.False(t, s.Add("100100"))
	assert.True(t, s.Add("200200"))
	assert.Equal(t, 2, s.Len())
}

func TestKeySetConcurrent(t *testing.T) {
	s := NewKeySet()

	var wg sync.WaitGroup
	added := make([]bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			added[i] = s.Add("same-key")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range added {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, s.Len())
}
