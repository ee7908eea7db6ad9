// Package lru implements the LRU eviction policy used by cache.LRU and
// cache.ShardedLRU.
package lru

import "github.com/embedcache/evtune/policy"

// lru is a classic "move-to-front" Least-Recently-Used policy. It
// delegates list manipulation to the policy.Hooks provided by the owner.
type lru[K comparable] struct {
	h policy.Hooks[K]
}

type lruPolicy[K comparable] struct{}

// New returns a Policy factory that constructs LRU instances.
func New[K comparable]() policy.Policy[K] { return lruPolicy[K]{} }

// New implements policy.Policy by binding hooks and returning a
// policy instance.
func (lruPolicy[K]) New(h policy.Hooks[K]) policy.ShardPolicy[K] {
	return &lru[K]{h: h}
}

// OnAdd places the new entry at MRU. LRU itself never chooses evictions;
// the owner enforces size limits and performs actual evictions via Back().
func (p *lru[K]) OnAdd(n policy.Node[K]) (evict policy.Node[K]) {
	p.h.PushFront(n)
	return nil
}

// OnGet promotes the entry to MRU.
func (p *lru[K]) OnGet(n policy.Node[K]) { p.h.MoveToFront(n) }

// OnUpdate promotes the entry to MRU (an update counts as recent use).
func (p *lru[K]) OnUpdate(n policy.Node[K]) { p.h.MoveToFront(n) }

// OnRemove is a no-op for pure LRU: there is no auxiliary state to clean up.
func (p *lru[K]) OnRemove(_ policy.Node[K]) {}
