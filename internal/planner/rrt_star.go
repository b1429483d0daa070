package planner

import (
	"math"
	"math/rand"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/spatial/r3"

	"voxel-planner/internal/grid"
)

// RRTStarOptions tunes the sampling tree planner.
type RRTStarOptions struct {
	IterationsPerCall int     // Iteration budget of a single FindPath call
	MaxIterations     int     // Total budget per target before the tree is frozen
	MaxVertices       int     // Tree size limit; a full tree is rebuilt on the next target
	StallIterations   int     // Iterations without goal cost improvement before stopping
	StepLength        float64 // Maximum extension towards a sample
	NearRadius        float64 // Radius searched for parent choice and rewiring
	GoalTolerance     float64 // Vertices this close to the target reach it
	GoalBias          float64 // Probability of sampling the target itself
	Seed              int64
}

// DefaultRRTStarOptions returns the options used when none are configured.
func DefaultRRTStarOptions() RRTStarOptions {
	return RRTStarOptions{
		IterationsPerCall: 200,
		MaxIterations:     20000,
		MaxVertices:       50000,
		StallIterations:   1000,
		StepLength:        0.5,
		NearRadius:        1.0,
		GoalTolerance:     0.2,
		GoalBias:          0.05,
		Seed:              1,
	}
}

// RRTStar grows a rewiring tree of collision-free vertices from the start.
// The tree survives target changes; only the goal evaluation is redone.
type RRTStar struct {
	lifecycle
	opts RRTStarOptions
	rng  *rand.Rand

	tree    *Tree
	index   *SpatialIndex
	treeGen uint64
	treeRev uint64

	best       int
	bestScore  float64
	iterations int
	stall      int
	converged  bool
	reevaluate bool
	stats      Stats
}

// NewRRTStar creates a sampling tree planner rooted at start.
func NewRRTStar(start grid.Point, opts RRTStarOptions) *RRTStar {
	if opts.StepLength <= 0 {
		opts.StepLength = DefaultRRTStarOptions().StepLength
	}
	if opts.NearRadius < opts.StepLength {
		opts.NearRadius = opts.StepLength
	}
	if opts.MaxVertices <= 1 {
		opts.MaxVertices = DefaultRRTStarOptions().MaxVertices
	}
	return &RRTStar{
		lifecycle: lifecycle{start: start},
		opts:      opts,
		rng:       rand.New(rand.NewSource(opts.Seed)),
		best:      -1,
	}
}

func (p *RRTStar) Name() string { return "rrt_star" }

func (p *RRTStar) Stats() Stats {
	s := p.stats
	s.Iterations = p.iterations
	if p.tree != nil {
		s.Vertices = p.tree.Len()
	}
	return s
}

// Converged reports whether the tree is frozen for the current target.
func (p *RRTStar) Converged() bool { return p.converged }

// TreeEdges returns the tree as line segments.
func (p *RRTStar) TreeEdges() [][2]grid.Point {
	if p.tree == nil {
		return nil
	}
	return p.tree.Edges()
}

// TreeRevision changes whenever the tree gains a vertex or is dropped.
func (p *RRTStar) TreeRevision() uint64 { return p.treeRev }

func (p *RRTStar) SetMap(g *grid.OccupancyGrid) {
	p.lifecycle.SetMap(g)
	p.dropTree()
	p.resetGoal()
}

// SetTarget keeps the explored tree and schedules a re-evaluation of its
// vertices against the new target. A tree that reached MaxVertices is
// dropped instead and regrown from the start.
func (p *RRTStar) SetTarget(target grid.Point) {
	p.lifecycle.SetTarget(target)
	if p.tree != nil && p.tree.Len() >= p.opts.MaxVertices {
		log.Debug().Str("planner", p.Name()).
			Int("vertices", p.tree.Len()).
			Msg("tree full, regrowing for new target")
		p.dropTree()
	}
	p.resetGoal()
}

func (p *RRTStar) dropTree() {
	if p.tree != nil {
		p.tree = nil
		p.index = nil
		p.treeRev++
	}
}

func (p *RRTStar) full() bool { return p.tree.Len() >= p.opts.MaxVertices }

func (p *RRTStar) resetGoal() {
	p.best = -1
	p.bestScore = math.Inf(1)
	p.iterations = 0
	p.stall = 0
	p.converged = false
	p.reevaluate = true
	p.stats = Stats{}
}

// FindPath runs one budgeted batch of iterations.
func (p *RRTStar) FindPath() {
	if !p.ready() {
		return
	}
	if p.tree == nil || p.treeGen != p.grid.Generation() {
		p.resetTree()
	}
	if p.converged {
		return
	}

	if _, _, ok := p.endpoints(); !ok {
		log.Warn().Str("planner", p.Name()).Msg("start or goal voxel is not traversable")
		p.converged = true
		p.finish(nil, StatusFailed)
		return
	}

	if p.reevaluate {
		p.best, p.bestScore = p.evaluateGoal()
		p.reevaluate = false
	}

	for i := 0; i < p.opts.IterationsPerCall && p.iterations < p.opts.MaxIterations && !p.full(); i++ {
		p.iterations++
		p.extend()

		best, score := p.evaluateGoal()
		improved := score < p.bestScore-1e-12
		p.best, p.bestScore = best, score
		if p.best < 0 {
			continue
		}
		if improved {
			p.stall = 0
			continue
		}
		p.stall++
		if p.opts.StallIterations > 0 && p.stall >= p.opts.StallIterations {
			p.converged = true
			break
		}
	}
	if p.iterations >= p.opts.MaxIterations || p.full() {
		p.converged = true
	}

	if p.best < 0 {
		p.path = nil
		p.status = StatusSearching
		if p.converged {
			log.Info().Str("planner", p.Name()).
				Int("iterations", p.iterations).
				Int("vertices", p.tree.Len()).
				Msg("iteration budget exhausted without reaching the goal")
			p.finish(nil, StatusFailed)
		}
		return
	}

	p.stats.Cost = p.tree.Vertices[p.best].Cost
	p.finish(p.tree.PathTo(p.best), StatusFound)
	if p.converged {
		log.Debug().Str("planner", p.Name()).
			Int("iterations", p.iterations).
			Int("vertices", p.tree.Len()).
			Float64("cost", p.stats.Cost).
			Msg("tree converged")
	}
}

func (p *RRTStar) resetTree() {
	p.tree = NewTree(p.start)
	p.index = NewSpatialIndex()
	p.index.Insert(0, p.start)
	p.treeGen = p.grid.Generation()
	p.treeRev++
	p.resetGoal()
}

// evaluateGoal picks the vertex within the goal tolerance that minimises
// cost-to-come plus remaining distance to the target.
func (p *RRTStar) evaluateGoal() (int, float64) {
	best, score := -1, math.Inf(1)
	for _, id := range p.index.Within(p.target, p.opts.GoalTolerance) {
		v := p.tree.Vertices[id]
		s := v.Cost + grid.Distance(v.Pos, p.target)
		if s < score {
			best, score = id, s
		}
	}
	return best, score
}

func (p *RRTStar) sample() grid.Point {
	if p.rng.Float64() < p.opts.GoalBias {
		return p.target
	}
	lo, hi := p.grid.Param().Lower, p.grid.Param().Upper
	return grid.Point{
		X: lo.X + p.rng.Float64()*(hi.X-lo.X),
		Y: lo.Y + p.rng.Float64()*(hi.Y-lo.Y),
		Z: lo.Z + p.rng.Float64()*(hi.Z-lo.Z),
	}
}

func (p *RRTStar) steer(from, to grid.Point) grid.Point {
	delta := r3.Sub(to, from)
	dist := r3.Norm(delta)
	if dist <= p.opts.StepLength {
		return to
	}
	return r3.Add(from, r3.Scale(p.opts.StepLength/dist, delta))
}

// extend performs one sample, extend and rewire step.
func (p *RRTStar) extend() {
	g := p.grid
	target := p.sample()
	nearest := p.index.Nearest(target)
	if nearest < 0 {
		return
	}
	from := p.tree.Vertices[nearest].Pos
	pos := p.steer(from, target)
	if grid.Distance(from, pos) < pointTolerance {
		return
	}
	if !g.PointFree(pos) || !g.SegmentFree(from, pos) {
		return
	}

	near := p.index.Within(pos, p.opts.NearRadius)
	parent := nearest
	cost := p.tree.Vertices[nearest].Cost + grid.Distance(from, pos)
	for _, id := range near {
		v := p.tree.Vertices[id]
		c := v.Cost + grid.Distance(v.Pos, pos)
		if c < cost && g.SegmentFree(v.Pos, pos) {
			parent, cost = id, c
		}
	}

	id := p.tree.Add(pos, parent, cost)
	p.index.Insert(id, pos)
	p.treeRev++

	for _, n := range near {
		if n == parent {
			continue
		}
		v := p.tree.Vertices[n]
		c := cost + grid.Distance(pos, v.Pos)
		if c < v.Cost-1e-12 && g.SegmentFree(pos, v.Pos) {
			p.tree.Rewire(n, id, c)
		}
	}
}
