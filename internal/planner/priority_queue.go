package planner

import "voxel-planner/internal/grid"

// searchNode represents a voxel in the open or closed set of a search.
type searchNode struct {
	idx    grid.Index
	g      float64 // Cost from start to this node
	h      float64 // Heuristic cost from this node to goal
	f      float64 // Total cost (g + h)
	parent *searchNode
	dir    grid.Index // Unit step that led here from parent
	steps  int        // Number of dir steps from parent
	closed bool

	seq   int // Insertion order, last tie-break
	index int // Index in the heap
}

// priorityQueue implements heap.Interface ordered by f, then h, then seq.
type priorityQueue []*searchNode

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	a, b := pq[i], pq[j]
	if a.f != b.f {
		return a.f < b.f
	}
	if a.h != b.h {
		return a.h < b.h
	}
	return a.seq < b.seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	node := x.(*searchNode)
	node.index = len(*pq)
	*pq = append(*pq, node)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.index = -1
	*pq = old[:n-1]
	return node
}
