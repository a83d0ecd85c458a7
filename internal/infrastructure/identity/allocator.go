package identity

import (
	"fmt"
	"sync/atomic"
)

const namePrefix = "anonymous"

// Allocator hands out process-unique anonymous display names. The counter only
// ever grows, so a name is never issued twice even after its connection is gone.
type Allocator struct {
	counter atomic.Uint64
}

func NewAllocator() *Allocator {
	return &Allocator{}
}

// Next returns a fresh name of the form anonymous<N>.
func (a *Allocator) Next() string {
	return fmt.Sprintf("%s%d", namePrefix, a.counter.Add(1))
}

// Issued reports how many names have been handed out so far.
func (a *Allocator) Issued() uint64 {
	return a.counter.Load()
}
