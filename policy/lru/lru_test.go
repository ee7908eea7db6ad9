package lru

import (
	"testing"

	"github.com/embedcache/evtune/policy"
)

// --- test doubles ---

type testNode struct{ k int64 }

func (n *testNode) Key() int64 { return n.k }

type mockHooks struct {
	pushFrontCnt   int
	moveToFrontCnt int
	removeCnt      int

	lastPush policy.Node[int64]
	lastMove policy.Node[int64]
	lastRem  policy.Node[int64]

	lenVal  int
	backVal policy.Node[int64]
}

func (h *mockHooks) MoveToFront(n policy.Node[int64]) { h.moveToFrontCnt++; h.lastMove = n }
func (h *mockHooks) PushFront(n policy.Node[int64])   { h.pushFrontCnt++; h.lastPush = n }
func (h *mockHooks) Remove(n policy.Node[int64])      { h.removeCnt++; h.lastRem = n }
func (h *mockHooks) Back() policy.Node[int64]         { return h.backVal }
func (h *mockHooks) Len() int                         { return h.lenVal }

// --- tests ---

// OnAdd should push the node to MRU and never propose an eviction.
func TestLRU_OnAdd_PushFrontAndNoEvict(t *testing.T) {
	t.Parallel()

	h := &mockHooks{}
	p := New[int64]().New(h)

	n := &testNode{k: 1}
	ev := p.OnAdd(n)

	if ev != nil {
		t.Fatalf("OnAdd must not return evict candidate for LRU, got %v", ev)
	}
	if h.pushFrontCnt != 1 || h.lastPush != n {
		t.Fatalf("OnAdd must call PushFront exactly once with the node")
	}
	if h.moveToFrontCnt != 0 || h.removeCnt != 0 {
		t.Fatalf("OnAdd must not call MoveToFront/Remove")
	}
}

// OnGet should promote the node to MRU.
func TestLRU_OnGet_MoveToFront(t *testing.T) {
	t.Parallel()

	h := &mockHooks{}
	p := New[int64]().New(h)

	n := &testNode{k: 2}
	p.OnGet(n)

	if h.moveToFrontCnt != 1 || h.lastMove != n {
		t.Fatalf("OnGet must call MoveToFront exactly once with the node")
	}
	if h.pushFrontCnt != 0 || h.removeCnt != 0 {
		t.Fatalf("OnGet must not call PushFront/Remove")
	}
}

// OnUpdate should promote the node to MRU (updates count as recent use).
func TestLRU_OnUpdate_MoveToFront(t *testing.T) {
	t.Parallel()

	h := &mockHooks{}
	p := New[int64]().New(h)

	n := &testNode{k: 3}
	p.OnUpdate(n)

	if h.moveToFrontCnt != 1 || h.lastMove != n {
		t.Fatalf("OnUpdate must call MoveToFront exactly once with the node")
	}
	if h.pushFrontCnt != 0 || h.removeCnt != 0 {
		t.Fatalf("OnUpdate must not call PushFront/Remove")
	}
}

// OnRemove is a no-op for pure LRU.
func TestLRU_OnRemove_NoOp(t *testing.T) {
	t.Parallel()

	h := &mockHooks{}
	p := New[int64]().New(h)

	n := &testNode{k: 4}
	p.OnRemove(n)

	if h.pushFrontCnt != 0 || h.moveToFrontCnt != 0 || h.removeCnt != 0 {
		t.Fatalf("OnRemove for LRU must be no-op (no hooks should be called)")
	}
}
