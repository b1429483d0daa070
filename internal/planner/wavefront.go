package planner

import (
	"container/heap"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"voxel-planner/internal/grid"
)

// Propagation selects how the wavefront assigns potentials.
type Propagation int

const (
	// PropagationBFS assigns each voxel its wave number from the goal.
	PropagationBFS Propagation = iota
	// PropagationDistance assigns the Euclidean shortest-path distance to the goal.
	PropagationDistance
)

func (m Propagation) String() string {
	if m == PropagationDistance {
		return "distance"
	}
	return "bfs"
}

// ParsePropagation accepts "bfs" or "distance".
func ParsePropagation(s string) (Propagation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bfs", "wavefront":
		return PropagationBFS, nil
	case "distance", "dijkstra":
		return PropagationDistance, nil
	}
	return PropagationBFS, fmt.Errorf("unknown wavefront propagation %q", s)
}

// Wavefront spreads a potential outward from the goal through free voxels
// and descends it from the start.
type Wavefront struct {
	lifecycle
	mode Propagation

	field      []float64
	potentials []float64
	stats      Stats
}

// NewWavefront creates a wavefront planner starting at start.
func NewWavefront(start grid.Point, mode Propagation) *Wavefront {
	return &Wavefront{lifecycle: lifecycle{start: start}, mode: mode}
}

func (p *Wavefront) Name() string { return "wavefront" }

func (p *Wavefront) Stats() Stats { return p.stats }

// Potentials returns the potential of each waypoint of the current path.
func (p *Wavefront) Potentials() []float64 {
	out := make([]float64, len(p.potentials))
	copy(out, p.potentials)
	return out
}

// Potential returns the field value of a voxel, +Inf if it was not reached.
func (p *Wavefront) Potential(idx grid.Index) float64 {
	if p.field == nil || p.grid == nil || !p.grid.Contains(idx) {
		return math.Inf(1)
	}
	return p.field[p.grid.Offset(idx)]
}

func (p *Wavefront) SetTarget(target grid.Point) {
	p.lifecycle.SetTarget(target)
	p.potentials = nil
}

func (p *Wavefront) SetMap(g *grid.OccupancyGrid) {
	p.lifecycle.SetMap(g)
	p.field = nil
	p.potentials = nil
}

// FindPath propagates the field and descends it when the target or map
// changed since the last run.
func (p *Wavefront) FindPath() {
	if !p.ready() || p.upToDate() {
		return
	}

	p.stats = Stats{}
	p.potentials = nil
	start, goal, ok := p.endpoints()
	if !ok {
		log.Warn().Str("planner", p.Name()).
			Stringer("start", p.grid.Query(start)).
			Stringer("goal", p.grid.Query(goal)).
			Msg("start or goal voxel is not traversable")
		p.field = nil
		p.finish(nil, StatusFailed)
		return
	}

	if p.mode == PropagationDistance {
		p.field, p.stats.Expanded = p.propagateDistance(goal)
	} else {
		p.field, p.stats.Expanded = p.propagateBFS(goal)
	}

	cells, pots, ok := p.descend(start, goal)
	if !ok {
		log.Info().Str("planner", p.Name()).
			Float64("start_potential", p.Potential(start)).
			Msg("descent trapped before reaching the goal")
		p.finish(nil, StatusFailed)
		return
	}

	path := p.toWorld(cells)
	p.potentials = pots
	p.stats.Cost = grid.PathLength(path)
	log.Debug().Str("planner", p.Name()).
		Int("waypoints", len(path)).
		Int("expanded", p.stats.Expanded).
		Msg("path found")
	p.finish(path, StatusFound)
}

func (p *Wavefront) newField() []float64 {
	field := make([]float64, p.grid.Param().VoxelCount())
	for i := range field {
		field[i] = math.Inf(1)
	}
	return field
}

func (p *Wavefront) propagateBFS(goal grid.Index) ([]float64, int) {
	g := p.grid
	field := p.newField()
	field[g.Offset(goal)] = 0

	queue := []grid.Index{goal}
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		wave := field[g.Offset(cur)] + 1
		for _, d := range grid.Neighbors26 {
			next := cur.Add(d)
			if !g.IsFree(next) {
				continue
			}
			off := g.Offset(next)
			if math.IsInf(field[off], 1) {
				field[off] = wave
				queue = append(queue, next)
			}
		}
	}
	return field, len(queue)
}

func (p *Wavefront) propagateDistance(goal grid.Index) ([]float64, int) {
	g := p.grid
	field := p.newField()
	nodes := make([]*searchNode, len(field))

	open := &priorityQueue{}
	root := &searchNode{idx: goal}
	heap.Push(open, root)
	nodes[g.Offset(goal)] = root

	settled := 0
	seq := 0
	for open.Len() > 0 {
		cur := heap.Pop(open).(*searchNode)
		cur.closed = true
		field[g.Offset(cur.idx)] = cur.g
		settled++

		for _, d := range grid.Neighbors26 {
			next := cur.idx.Add(d)
			if !g.IsFree(next) {
				continue
			}
			off := g.Offset(next)
			cost := cur.g + d.Length()
			n := nodes[off]
			switch {
			case n == nil:
				seq++
				n = &searchNode{idx: next, g: cost, f: cost, seq: seq}
				nodes[off] = n
				heap.Push(open, n)
			case !n.closed && cost < n.g:
				n.g, n.f = cost, cost
				heap.Fix(open, n.index)
			}
		}
	}
	return field, settled
}

// descend walks from start to goal, always moving to the neighbour with the
// lowest potential that is strictly below the current one.
func (p *Wavefront) descend(start, goal grid.Index) ([]grid.Index, []float64, bool) {
	g := p.grid
	cur := start
	pot := p.field[g.Offset(cur)]
	if math.IsInf(pot, 1) {
		return nil, nil, false
	}

	cells := []grid.Index{cur}
	pots := []float64{pot}
	for cur != goal {
		best := cur
		bestPot := pot
		bestLen := math.Inf(1)
		for _, d := range grid.Neighbors26 {
			next := cur.Add(d)
			if !g.IsFree(next) {
				continue
			}
			np := p.field[g.Offset(next)]
			if np >= pot {
				continue
			}
			if np < bestPot || (np == bestPot && d.Length() < bestLen) {
				best, bestPot, bestLen = next, np, d.Length()
			}
		}
		if best == cur {
			return nil, nil, false
		}
		cur, pot = best, bestPot
		cells = append(cells, cur)
		pots = append(pots, pot)
	}
	return cells, pots, true
}
