package identity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorIssuesSequentialNames(t *testing.T) {
	a := NewAllocator()

	assert.Equal(t, "anonymous1", a.Next())
	assert.Equal(t, "anonymous2", a.Next())
	assert.Equal(t, uint64(2), a.Issued())
}

func TestAllocatorNeverRepeatsUnderContention(t *testing.T) {
	a := NewAllocator()

	const workers, perWorker = 8, 250
	names := make(chan string, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				names <- a.Next()
			}
		}()
	}
	wg.Wait()
	close(names)

	seen := make(map[string]struct{}, workers*perWorker)
	for n := range names {
		_, dup := seen[n]
		require.False(t, dup, "duplicate name %s", n)
		seen[n] = struct{}{}
	}
	assert.Len(t, seen, workers*perWorker)
}
