package planner

import (
	"container/heap"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"voxel-planner/internal/grid"
)

// Mode selects how GridSearch generates successors.
type Mode int

const (
	// ModeJPS prunes successors with jump-point search.
	ModeJPS Mode = iota
	// ModeAStar expands all 26 neighbours of every node.
	ModeAStar
)

func (m Mode) String() string {
	if m == ModeAStar {
		return "astar"
	}
	return "jps"
}

// ParseMode accepts "jps" or "astar".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jps":
		return ModeJPS, nil
	case "astar", "a*":
		return ModeAStar, nil
	}
	return ModeJPS, fmt.Errorf("unknown grid search mode %q", s)
}

// GridSearch finds optimal 26-connected voxel paths with A*, optionally
// accelerated by jump-point pruning.
type GridSearch struct {
	lifecycle
	mode  Mode
	stats Stats
}

// NewGridSearch creates a grid search planner starting at start.
func NewGridSearch(start grid.Point, mode Mode) *GridSearch {
	return &GridSearch{lifecycle: lifecycle{start: start}, mode: mode}
}

func (p *GridSearch) Name() string { return p.mode.String() }

func (p *GridSearch) Stats() Stats { return p.stats }

// FindPath runs a full search when the target or map changed since the last
// one and is a no-op otherwise.
func (p *GridSearch) FindPath() {
	if !p.ready() || p.upToDate() {
		return
	}

	p.stats = Stats{}
	start, goal, ok := p.endpoints()
	if !ok {
		log.Warn().Str("planner", p.Name()).
			Stringer("start", p.grid.Query(start)).
			Stringer("goal", p.grid.Query(goal)).
			Msg("start or goal voxel is not traversable")
		p.finish(nil, StatusFailed)
		return
	}

	goalNode, expanded := p.search(start, goal)
	p.stats.Expanded = expanded
	if goalNode == nil {
		log.Info().Str("planner", p.Name()).Int("expanded", expanded).Msg("no path found")
		p.finish(nil, StatusFailed)
		return
	}

	p.stats.Cost = goalNode.g
	path := p.toWorld(reconstruct(goalNode))
	log.Debug().Str("planner", p.Name()).
		Int("waypoints", len(path)).
		Int("expanded", expanded).
		Float64("cost", goalNode.g).
		Msg("path found")
	p.finish(path, StatusFound)
}

// successor is a voxel reachable from a node by `steps` moves along dir.
type successor struct {
	idx   grid.Index
	dir   grid.Index
	steps int
}

func (p *GridSearch) search(start, goal grid.Index) (*searchNode, int) {
	g := p.grid
	res := g.Param().Resolution
	heuristic := func(i grid.Index) float64 { return goal.Sub(i).Length() * res }

	nodes := make([]*searchNode, g.Param().VoxelCount())
	openSet := &priorityQueue{}
	heap.Init(openSet)

	seq := 0
	startNode := &searchNode{idx: start, h: heuristic(start)}
	startNode.f = startNode.h
	heap.Push(openSet, startNode)
	nodes[g.Offset(start)] = startNode

	expanded := 0
	var succ []successor
	for openSet.Len() > 0 {
		current := heap.Pop(openSet).(*searchNode)
		current.closed = true
		expanded++

		if current.idx == goal {
			return current, expanded
		}

		succ = p.successors(current, goal, succ[:0])
		for _, s := range succ {
			off := g.Offset(s.idx)
			neighbor := nodes[off]
			if neighbor != nil && neighbor.closed {
				continue
			}

			tentativeG := current.g + float64(s.steps)*s.dir.Length()*res
			if neighbor == nil {
				seq++
				neighbor = &searchNode{
					idx:    s.idx,
					g:      tentativeG,
					h:      heuristic(s.idx),
					parent: current,
					dir:    s.dir,
					steps:  s.steps,
					seq:    seq,
				}
				neighbor.f = neighbor.g + neighbor.h
				heap.Push(openSet, neighbor)
				nodes[off] = neighbor
			} else if tentativeG < neighbor.g {
				neighbor.g = tentativeG
				neighbor.f = neighbor.g + neighbor.h
				neighbor.parent = current
				neighbor.dir = s.dir
				neighbor.steps = s.steps
				heap.Fix(openSet, neighbor.index)
			}
		}
	}
	return nil, expanded
}

func (p *GridSearch) successors(n *searchNode, goal grid.Index, out []successor) []successor {
	if p.mode == ModeAStar {
		for _, d := range grid.Neighbors26 {
			next := n.idx.Add(d)
			if p.grid.IsFree(next) {
				out = append(out, successor{idx: next, dir: d, steps: 1})
			}
		}
		return out
	}

	dirs := grid.Neighbors26
	if n.parent != nil {
		dirs = p.prunedDirections(n.idx, n.dir)
	}
	for _, d := range dirs {
		if jp, steps, ok := p.jump(n.idx, d, goal); ok {
			out = append(out, successor{idx: jp, dir: d, steps: steps})
		}
	}
	return out
}

// reconstruct follows parent back-pointers and expands jumps into unit steps.
func reconstruct(goal *searchNode) []grid.Index {
	var rev []grid.Index
	for n := goal; n != nil; n = n.parent {
		cur := n.idx
		rev = append(rev, cur)
		if n.parent == nil {
			break
		}
		for i := 1; i < n.steps; i++ {
			cur = cur.Sub(n.dir)
			rev = append(rev, cur)
		}
	}
	out := make([]grid.Index, len(rev))
	for i, c := range rev {
		out[len(rev)-1-i] = c
	}
	return out
}
