package gadget

import (
	"math/rand/v2"
	"slices"
	"sync"
)

// DefaultCodenames is the pool every allocator starts from.
var DefaultCodenames = []string{
	"The Nightingale",
	"The Kraken",
	"The Phantom",
	"The Shadow",
	"The Ghost",
	"The Falcon",
	"The Cobra",
	"The Specter",
	"The Viper",
	"The Mirage",
}

// Allocator hands out codenames from a finite pool without repeats until
// the pool is exhausted, at which point the full pool is restored.
// Names may repeat across refills.
//
// Allocator is safe for concurrent use.
type Allocator struct {
	mu    sync.Mutex
	names []string
	pool  []string
	intn  func(n int) int
}

// NewAllocator creates an allocator over names. A nil or empty names
// slice selects DefaultCodenames; a nil intn selects math/rand/v2.IntN.
func NewAllocator(names []string, intn func(n int) int) *Allocator {
	if len(names) == 0 {
		names = DefaultCodenames
	}
	if intn == nil {
		intn = rand.IntN
	}
	a := &Allocator{names: slices.Clone(names), intn: intn}
	a.pool = slices.Clone(a.names)
	return a
}

// Allocate removes a uniformly chosen name from the pool and returns it.
// If that empties the pool it is refilled before returning.
func (a *Allocator) Allocate() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.intn(len(a.pool))
	name := a.pool[i]
	a.pool = slices.Delete(a.pool, i, i+1)

	if len(a.pool) == 0 {
		a.pool = slices.Clone(a.names)
	}
	return name
}

// Refill restores the full pool.
func (a *Allocator) Refill() {
	a.mu.Lock()
	a.pool = slices.Clone(a.names)
	a.mu.Unlock()
}

// Remaining returns the number of names left before the next refill.
func (a *Allocator) Remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pool)
}
