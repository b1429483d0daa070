package planner

import (
	"math"

	"voxel-planner/internal/grid"
)

// pruneRule describes a neighbour that is skipped unless every alternative
// route to it from the parent is blocked, in which case it is forced.
type pruneRule struct {
	n    grid.Index   // neighbour offset from the current voxel
	alts []grid.Index // intermediate voxels of the alternative routes
}

// jumpRules holds the pruning table for one arrival direction.
type jumpRules struct {
	natural []grid.Index
	forced  []pruneRule
}

var jpsTable = buildJumpTable()

func dirKey(d grid.Index) int {
	return (d.X+1)*9 + (d.Y+1)*3 + (d.Z + 1)
}

// buildJumpTable derives natural and forced neighbours for all 26 arrival
// directions. For a voxel x entered from p = x - d, a neighbour n is pruned
// when a route p -> n or p -> m -> n through the neighbourhood of x (avoiding
// x) is shorter than p -> x -> n, or equally long but taking its longer move
// first. Neighbours with no such route are natural.
func buildJumpTable() [27]*jumpRules {
	const eps = 1e-9
	var table [27]*jumpRules

	for _, d := range grid.Neighbors26 {
		rules := &jumpRules{}
		p := grid.Index{X: -d.X, Y: -d.Y, Z: -d.Z}

		prunes := func(first grid.Index, alt, via float64) bool {
			if alt < via-eps {
				return true
			}
			return math.Abs(alt-via) <= eps && first.Norm1() > d.Norm1()
		}

		for _, n := range grid.Neighbors26 {
			if n == p {
				continue
			}
			via := d.Length() + n.Length()

			if direct := n.Sub(p); direct.IsStep() && prunes(direct, direct.Length(), via) {
				continue
			}

			var alts []grid.Index
			for _, m := range grid.Neighbors26 {
				if m == p || m == n {
					continue
				}
				first, second := m.Sub(p), n.Sub(m)
				if !first.IsStep() || !second.IsStep() {
					continue
				}
				if prunes(first, first.Length()+second.Length(), via) {
					alts = append(alts, m)
				}
			}

			if len(alts) == 0 {
				rules.natural = append(rules.natural, n)
			} else {
				rules.forced = append(rules.forced, pruneRule{n: n, alts: alts})
			}
		}
		table[dirKey(d)] = rules
	}
	return table
}

// hasForced reports whether x, entered along d, has a forced neighbour.
func (p *GridSearch) hasForced(x, d grid.Index) bool {
	for _, r := range jpsTable[dirKey(d)].forced {
		if p.isForced(x, r) {
			return true
		}
	}
	return false
}

func (p *GridSearch) isForced(x grid.Index, r pruneRule) bool {
	if !p.grid.IsFree(x.Add(r.n)) {
		return false
	}
	for _, m := range r.alts {
		if p.grid.IsFree(x.Add(m)) {
			return false
		}
	}
	return true
}

// prunedDirections returns the natural and forced neighbour directions of x
// entered along d.
func (p *GridSearch) prunedDirections(x, d grid.Index) []grid.Index {
	rules := jpsTable[dirKey(d)]
	dirs := make([]grid.Index, 0, len(rules.natural)+4)
	dirs = append(dirs, rules.natural...)
	for _, r := range rules.forced {
		if p.isForced(x, r) {
			dirs = append(dirs, r.n)
		}
	}
	return dirs
}

// jump moves from x along d until it reaches the goal, a voxel with a forced
// neighbour, or (for diagonal moves) a voxel from which a jump along one of
// the natural component directions succeeds. It returns the jump point and
// the number of steps taken.
func (p *GridSearch) jump(x, d, goal grid.Index) (grid.Index, int, bool) {
	cur := x
	steps := 0
	for {
		cur = cur.Add(d)
		steps++
		if !p.grid.IsFree(cur) {
			return grid.Index{}, 0, false
		}
		if cur == goal || p.hasForced(cur, d) {
			return cur, steps, true
		}
		if d.Norm1() > 1 {
			for _, c := range jpsTable[dirKey(d)].natural {
				if c == d {
					continue
				}
				if _, _, ok := p.jump(cur, c, goal); ok {
					return cur, steps, true
				}
			}
		}
	}
}
