package cache

// node is an intrusive doubly linked list element used by LRU/ShardedLRU.
// Unlike the teacher's value-cache node, it carries no payload — only the
// key, list links, and the per-key metadata the spec's Update/GetCachedIDs
// operations need to report back (version).
type node[K Key] struct {
	key K

	// Intrusive list links: head is MRU, tail is LRU.
	prev *node[K]
	next *node[K]

	// version is the last value recorded for this key via Update's
	// optional versions slice. Zero if the caller never supplied one.
	version int64
}

// Key returns the node's key (part of policy.Node[K]).
func (n *node[K]) Key() K { return n.key }

// pin is a prefetch-table entry: a key that a fetch is outstanding for,
// not yet eligible for policy-store admission. refCount lets multiple
// concurrent AddToPrefetchList calls for the same key coalesce into one
// table entry; the key leaves the table only once an equal number of
// AddToCache calls brings refCount back to zero.
type pin[K Key] struct {
	key      K
	refCount int64
	freq     int64
}
