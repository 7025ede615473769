package search

import "github.com/bastiangx/lexidict/pkg/format"

// dicNode is the transient traversal state of one partially matched path:
// the characters accumulated so far, the cost of the edits that produced
// them, how many input events they consumed, and the group whose children
// expand next. Owned by one search pass, never persisted.
type dicNode struct {
	chars    []rune
	cost     int
	consumed int

	// skipped records that one input event was already written off as an
	// accidental insertion along this path; at most one is tolerated.
	skipped bool

	node format.PtNode

	// node array holding this state's children, -1 when childless.
	// The root state points at array position 0.
	childrenPos int
}

// arena is the preallocated scratch buffer for dicNodes, reused across
// searches so expansion does not allocate per node. Indices into the arena
// stand in for pointers.
type arena struct {
	nodes []dicNode
}

const arenaInitialCap = 256

func newArena() *arena {
	return &arena{nodes: make([]dicNode, 0, arenaInitialCap)}
}

func (a *arena) reset() {
	a.nodes = a.nodes[:0]
}

func (a *arena) alloc(n dicNode) int {
	a.nodes = append(a.nodes, n)
	return len(a.nodes) - 1
}

func (a *arena) at(i int) *dicNode {
	return &a.nodes[i]
}

// nodeHeap orders arena indices by accumulated cost, cheapest first.
type nodeHeap struct {
	a    *arena
	idxs []int
}

func (h *nodeHeap) Len() int { return len(h.idxs) }

func (h *nodeHeap) Less(i, j int) bool {
	return h.a.at(h.idxs[i]).cost < h.a.at(h.idxs[j]).cost
}

func (h *nodeHeap) Swap(i, j int) {
	h.idxs[i], h.idxs[j] = h.idxs[j], h.idxs[i]
}

func (h *nodeHeap) Push(x any) {
	h.idxs = append(h.idxs, x.(int))
}

func (h *nodeHeap) Pop() any {
	n := len(h.idxs)
	v := h.idxs[n-1]
	h.idxs = h.idxs[:n-1]
	return v
}
