package pool

import (
	"fmt"
)

// Registry is the append-only collection of pools. Pools are addressed by
// index and live for the registry's lifetime; settlement data is kept in a
// parallel arena keyed by the same index.
// Not thread-safe — only accessed under the engine's single-writer lock.
type Registry struct {
	pools  []*Pool
	settle []*SettleInfo
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Append adds a new pool with the given terms and returns it. The pool's ID
// is its index in the registry.
func (r *Registry) Append(terms Terms) *Pool {
	p := NewPool(uint64(len(r.pools)), terms)
	r.pools = append(r.pools, p)
	r.settle = append(r.settle, NewSettleInfo())
	return p
}

// Len returns the number of pools ever created.
func (r *Registry) Len() int {
	return len(r.pools)
}

// Get returns the pool at index id.
func (r *Registry) Get(id uint64) (*Pool, error) {
	if id >= uint64(len(r.pools)) {
		return nil, fmt.Errorf("pool %d does not exist (have %d)", id, len(r.pools))
	}
	return r.pools[id], nil
}

// GetSettle returns the settlement record for pool id.
func (r *Registry) GetSettle(id uint64) (*SettleInfo, error) {
	if id >= uint64(len(r.settle)) {
		return nil, fmt.Errorf("pool %d does not exist (have %d)", id, len(r.settle))
	}
	return r.settle[id], nil
}

// All returns the backing slice of pools, oldest first. Callers must not
// mutate entries outside the engine's writer.
func (r *Registry) All() []*Pool {
	return r.pools
}
