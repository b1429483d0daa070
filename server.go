package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"voxel-planner/internal/grid"
	"voxel-planner/internal/mapio"
	"voxel-planner/internal/render"
	"voxel-planner/internal/session"
	"voxel-planner/internal/stream"
)

const maxMapBytes = 64 << 20

type Pose struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// TargetRequest accepts a single pose or a waypoint list whose first pose is
// used.
type TargetRequest struct {
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
	Z     *float64 `json:"z"`
	Poses []Pose   `json:"poses,omitempty"`
}

type PathsResponse struct {
	Tick     uint64           `json:"tick"`
	MapReady bool             `json:"mapReady"`
	Target   *[3]float64      `json:"target,omitempty"`
	Results  []session.Result `json:"results"`
}

type server struct {
	session *session.Session
	hub     *stream.Hub
	param   grid.MapParam
}

func newServer(s *session.Session, hub *stream.Hub, param grid.MapParam) *server {
	return &server{session: s, hub: hub, param: param}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/map", corsMiddleware(s.mapHandler))
	mux.HandleFunc("/target", corsMiddleware(s.targetHandler))
	mux.HandleFunc("/paths", corsMiddleware(s.pathsHandler))
	mux.HandleFunc("/paths.geojson", corsMiddleware(s.pathsGeoJSONHandler))
	mux.HandleFunc("/paths.png", corsMiddleware(s.pathsPNGHandler))
	mux.HandleFunc("/tree", corsMiddleware(s.treeHandler))
	mux.HandleFunc("/health", corsMiddleware(s.healthHandler))
	mux.HandleFunc("/ws", s.hub.Handler())
	return mux
}

// corsMiddleware adds CORS headers to allow frontend requests
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func submitStatus(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// POST /map - Ingest the obstacle map (once per process)
func (s *server) mapHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMapBytes))
	if err != nil {
		log.Warn().Err(err).Msg("failed to read map body")
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	points, err := mapio.Decode(body, s.param)
	if err != nil {
		log.Warn().Err(err).Msg("invalid map payload")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	built, err := s.session.SubmitMap(r.Context(), points)
	if err != nil {
		writeError(w, submitStatus(err), err.Error())
		return
	}
	if !built {
		writeJSON(w, http.StatusConflict, map[string]any{
			"success": false,
			"error":   "map already ingested",
			"message": "The occupancy grid is built once per process. Restart the server to load a new map.",
		})
		return
	}

	snap := s.session.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"points":  len(points),
		"blocked": snap.Blocked,
	})
}

// POST /target - Set the goal of every planner
func (s *server) targetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req TargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid target body")
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var target grid.Point
	switch {
	case len(req.Poses) > 0:
		p := req.Poses[0]
		target = grid.Point{X: p.X, Y: p.Y, Z: p.Z}
	case req.X != nil && req.Y != nil && req.Z != nil:
		target = grid.Point{X: *req.X, Y: *req.Y, Z: *req.Z}
	default:
		writeError(w, http.StatusBadRequest, "target needs x, y and z or a poses list")
		return
	}

	if err := s.session.SubmitTarget(r.Context(), target); err != nil {
		if errors.Is(err, session.ErrInvalidTarget) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, submitStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"target":  [3]float64{target.X, target.Y, target.Z},
	})
}

// GET /paths - Current result of every enabled planner
func (s *server) pathsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := s.session.Snapshot()
	resp := PathsResponse{Tick: snap.Tick, MapReady: snap.MapReady, Results: snap.Results}
	if snap.HasTarget {
		resp.Target = &[3]float64{snap.Target.X, snap.Target.Y, snap.Target.Z}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /paths.geojson?simplify=<epsilon> - Paths, start, target and tree as GeoJSON
func (s *server) pathsGeoJSONHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	epsilon := 0.0
	if raw := r.URL.Query().Get("simplify"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "simplify must be a non-negative number")
			return
		}
		epsilon = v
	}

	fc := render.FeatureCollection(s.session.Snapshot(), epsilon)
	raw, err := fc.MarshalJSON()
	if err != nil {
		log.Error().Err(err).Msg("failed to encode geojson")
		writeError(w, http.StatusInternalServerError, "encode geojson")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(raw)
}

// GET /paths.png - Top-down plot of the current paths
func (s *server) pathsPNGHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := render.WritePNG(w, s.session.Snapshot(), render.DefaultPlotSize); err != nil {
		log.Error().Err(err).Msg("failed to render plot")
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

// GET /tree - Sampling tree edges for visualization
func (s *server) treeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := s.session.Snapshot()
	lines := make([][2][3]float64, len(snap.Tree))
	for i, e := range snap.Tree {
		lines[i] = [2][3]float64{{e[0].X, e[0].Y, e[0].Z}, {e[1].X, e[1].Y, e[1].Z}}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"lines":    lines,
		"numEdges": len(lines),
	})
}

// GET /health - Health check endpoint
func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Snapshot()
	status := "ready"
	switch {
	case !snap.MapReady:
		status = "waiting for map"
	case !snap.HasTarget:
		status = "waiting for target"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        status,
		"mapReady":      snap.MapReady,
		"hasTarget":     snap.HasTarget,
		"blocked":       snap.Blocked,
		"tick":          snap.Tick,
		"planners":      s.session.Planners(),
		"streamClients": s.hub.Clients(),
	})
}
