// Package session coordinates one occupancy grid and the planners that run
// against it. A Session receives the obstacle map once, forwards target
// updates, runs every enabled planner on each control tick and hands the
// results to publishers.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"voxel-planner/internal/grid"
	"voxel-planner/internal/planner"
)

// ErrInvalidTarget is returned for targets the agent cannot fly to.
var ErrInvalidTarget = errors.New("invalid target")

// Options selects and tunes the planners of a session.
type Options struct {
	Start  grid.Point
	TickHz float64

	GridSearch     bool
	GridSearchMode planner.Mode

	Wavefront            bool
	WavefrontPropagation planner.Propagation

	RRTStar        bool
	RRTStarOptions planner.RRTStarOptions
}

// DefaultOptions mirrors the control loop of the original deployment: grid
// search and wavefront at 100 Hz, the sampling tree switched off.
func DefaultOptions() Options {
	return Options{
		TickHz:               100,
		GridSearch:           true,
		GridSearchMode:       planner.ModeJPS,
		Wavefront:            true,
		WavefrontPropagation: planner.PropagationBFS,
		RRTStar:              false,
		RRTStarOptions:       planner.DefaultRRTStarOptions(),
	}
}

// Result is the outcome of one planner on one tick.
type Result struct {
	Planner string
	Status  planner.Status
	Path    []grid.Point
	Cost    float64
	Stats   planner.Stats
}

type resultJSON struct {
	Planner string         `json:"planner"`
	Status  planner.Status `json:"status"`
	Path    [][3]float64   `json:"path"`
	Cost    float64        `json:"cost"`
	Stats   planner.Stats  `json:"stats"`
}

// MarshalJSON encodes waypoints as [x, y, z] triples.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Planner: r.Planner,
		Status:  r.Status,
		Path:    make([][3]float64, len(r.Path)),
		Cost:    r.Cost,
		Stats:   r.Stats,
	}
	for i, p := range r.Path {
		out.Path[i] = [3]float64{p.X, p.Y, p.Z}
	}
	return json.Marshal(out)
}

// Changed reports whether cur differs from prev in status or path.
func Changed(prev, cur Result) bool {
	return prev.Status != cur.Status || !slices.Equal(prev.Path, cur.Path)
}

// Publisher receives the results of every tick.
type Publisher interface {
	Publish(ctx context.Context, tick uint64, results []Result) error
}

// Snapshot is a copy of the session state for concurrent readers.
type Snapshot struct {
	Tick      uint64
	Param     grid.MapParam
	MapReady  bool
	Blocked   int
	Start     grid.Point
	Target    grid.Point
	HasTarget bool
	Results   []Result
	Tree      [][2]grid.Point
}

type slot struct {
	planner planner.Planner
	enabled bool
}

type mapRequest struct {
	points []grid.Point
	reply  chan bool
}

type targetRequest struct {
	target grid.Point
	reply  chan error
}

// Session owns the grid and the planners. IngestMap, UpdateTarget and Tick
// must be called from a single goroutine; Run provides that goroutine and
// serializes SubmitMap and SubmitTarget calls into it.
type Session struct {
	grid       *grid.OccupancyGrid
	slots      []slot
	publishers []Publisher
	start      grid.Point
	interval   time.Duration

	target    grid.Point
	hasTarget bool
	tick      uint64
	last      map[string]planner.Status

	maps    chan mapRequest
	targets chan targetRequest

	// Tree edges are copied out of the sampling planner only when its
	// revision moves.
	tree       [][2]grid.Point
	treeRev    uint64
	treeCached bool

	mu       sync.RWMutex
	snapshot Snapshot
}

type treeSource interface {
	TreeEdges() [][2]grid.Point
	TreeRevision() uint64
}

// New creates a session over an empty grid built from param.
func New(param grid.MapParam, opts Options, publishers ...Publisher) *Session {
	hz := opts.TickHz
	if hz <= 0 {
		hz = DefaultOptions().TickHz
	}
	s := &Session{
		grid: grid.New(param),
		slots: []slot{
			{planner.NewGridSearch(opts.Start, opts.GridSearchMode), opts.GridSearch},
			{planner.NewWavefront(opts.Start, opts.WavefrontPropagation), opts.Wavefront},
			{planner.NewRRTStar(opts.Start, opts.RRTStarOptions), opts.RRTStar},
		},
		publishers: publishers,
		start:      opts.Start,
		interval:   time.Duration(float64(time.Second) / hz),
		last:       make(map[string]planner.Status),
		maps:       make(chan mapRequest),
		targets:    make(chan targetRequest),
	}
	s.refresh(nil)
	return s
}

// Planners returns the names of the enabled planners in tick order.
func (s *Session) Planners() []string {
	var names []string
	for _, sl := range s.slots {
		if sl.enabled {
			names = append(names, sl.planner.Name())
		}
	}
	return names
}

// IngestMap builds the grid from obstacle points and hands it to every
// planner. Only the first call has an effect; later calls return false.
func (s *Session) IngestMap(points []grid.Point) bool {
	if !s.grid.Build(points) {
		return false
	}
	for _, sl := range s.slots {
		sl.planner.SetMap(s.grid)
	}
	s.refresh(s.snapshotResults())
	return true
}

// UpdateTarget validates the target and forwards it to every planner. A
// rejected target leaves the previous one in place.
func (s *Session) UpdateTarget(target grid.Point) error {
	if err := ValidateTarget(target); err != nil {
		log.Warn().Err(err).Msg("target rejected")
		return err
	}
	s.target = target
	s.hasTarget = true
	for _, sl := range s.slots {
		sl.planner.SetTarget(target)
	}
	log.Info().
		Float64("x", target.X).Float64("y", target.Y).Float64("z", target.Z).
		Msg("target updated")
	s.refresh(s.snapshotResults())
	return nil
}

// ValidateTarget rejects targets below the ground plane.
func ValidateTarget(target grid.Point) error {
	if target.Z < 0 {
		return fmt.Errorf("%w: z=%.3f is below ground", ErrInvalidTarget, target.Z)
	}
	return nil
}

// Tick runs FindPath on every enabled planner, publishes the results and
// returns them.
func (s *Session) Tick(ctx context.Context) []Result {
	s.tick++
	results := make([]Result, 0, len(s.slots))
	for _, sl := range s.slots {
		if !sl.enabled {
			continue
		}
		p := sl.planner
		p.FindPath()
		res := resultOf(p)
		if prev, ok := s.last[res.Planner]; !ok || prev != res.Status {
			s.logTransition(res)
			s.last[res.Planner] = res.Status
		}
		results = append(results, res)
	}

	s.refresh(results)
	for _, pub := range s.publishers {
		if err := pub.Publish(ctx, s.tick, results); err != nil {
			log.Error().Err(err).Uint64("tick", s.tick).Msg("publish failed")
		}
	}
	return results
}

func (s *Session) logTransition(res Result) {
	ev := log.Debug()
	if res.Status == planner.StatusFound || res.Status == planner.StatusFailed {
		ev = log.Info()
	}
	ev.Str("planner", res.Planner).
		Stringer("status", res.Status).
		Int("waypoints", len(res.Path)).
		Float64("cost", res.Cost).
		Msg("planner status changed")
}

func resultOf(p planner.Planner) Result {
	res := Result{Planner: p.Name(), Status: p.Status(), Path: p.Path()}
	if sr, ok := p.(planner.StatsReporter); ok {
		res.Stats = sr.Stats()
		res.Cost = res.Stats.Cost
	}
	if res.Status != planner.StatusFound {
		res.Cost = 0
	}
	return res
}

// snapshotResults reads the current state of the enabled planners without
// running them.
func (s *Session) snapshotResults() []Result {
	results := make([]Result, 0, len(s.slots))
	for _, sl := range s.slots {
		if sl.enabled {
			results = append(results, resultOf(sl.planner))
		}
	}
	return results
}

func (s *Session) refresh(results []Result) {
	if results == nil {
		results = s.snapshotResults()
	}
	snap := Snapshot{
		Tick:      s.tick,
		Param:     s.grid.Param(),
		MapReady:  s.grid.Built(),
		Blocked:   s.grid.BlockedCount(),
		Start:     s.start,
		Target:    s.target,
		HasTarget: s.hasTarget,
		Results:   results,
		Tree:      s.treeEdges(),
	}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

func (s *Session) treeEdges() [][2]grid.Point {
	for _, sl := range s.slots {
		t, ok := sl.planner.(treeSource)
		if !ok || !sl.enabled {
			continue
		}
		if rev := t.TreeRevision(); !s.treeCached || rev != s.treeRev {
			s.tree, s.treeRev, s.treeCached = t.TreeEdges(), rev, true
		}
		return s.tree
	}
	return nil
}

// Snapshot returns the latest published state. It is safe to call from any
// goroutine.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snapshot
	snap.Results = slices.Clone(snap.Results)
	snap.Tree = slices.Clone(snap.Tree)
	return snap
}

// Run drives the control loop until ctx is cancelled. Map and target
// submissions are applied between ticks.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().
		Strs("planners", s.Planners()).
		Dur("interval", s.interval).
		Msg("control loop started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Uint64("ticks", s.tick).Msg("control loop stopped")
			return ctx.Err()
		case req := <-s.maps:
			req.reply <- s.IngestMap(req.points)
		case req := <-s.targets:
			req.reply <- s.UpdateTarget(req.target)
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// SubmitMap hands obstacle points to the running control loop and reports
// whether they built the map.
func (s *Session) SubmitMap(ctx context.Context, points []grid.Point) (bool, error) {
	req := mapRequest{points: points, reply: make(chan bool, 1)}
	select {
	case s.maps <- req:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case built := <-req.reply:
		return built, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// SubmitTarget hands a target to the running control loop. Invalid targets
// are rejected without waiting for the loop.
func (s *Session) SubmitTarget(ctx context.Context, target grid.Point) error {
	if err := ValidateTarget(target); err != nil {
		log.Warn().Err(err).Msg("target rejected")
		return err
	}
	req := targetRequest{target: target, reply: make(chan error, 1)}
	select {
	case s.targets <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
