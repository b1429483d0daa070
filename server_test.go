package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxel-planner/internal/config"
	"voxel-planner/internal/session"
	"voxel-planner/internal/stream"
	"voxel-planner/internal/testutil/testlog"
)

func newTestServer(t *testing.T) (*httptest.Server, *session.Session) {
	t.Helper()
	testlog.Start(t)

	cfg := config.Default()
	param, err := cfg.MapParam()
	require.NoError(t, err)
	opts, err := cfg.SessionOptions()
	require.NoError(t, err)

	hub := stream.NewHub()
	s := session.New(param, opts, hub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	srv := httptest.NewServer(newServer(s, hub, param).routes())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv, s
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestServer_PlanningFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := post(t, srv.URL+"/map", `{"points": [[3, 3, 1]]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 1.0, body["blocked"])

	resp, _ = post(t, srv.URL+"/map", `{"points": []}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = post(t, srv.URL+"/target", `{"x": 1, "y": 1, "z": -0.5}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "invalid target")

	resp, _ = post(t, srv.URL+"/target", `{"poses": [{"x": 1, "y": 1, "z": 0.5}, {"x": 2, "y": 2, "z": 1}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var paths PathsResponse
	require.Eventually(t, func() bool {
		r, err := http.Get(srv.URL + "/paths")
		if err != nil {
			return false
		}
		defer r.Body.Close()
		var raw struct {
			Target  *[3]float64 `json:"target"`
			Results []struct {
				Planner string       `json:"planner"`
				Status  string       `json:"status"`
				Path    [][3]float64 `json:"path"`
			} `json:"results"`
		}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil || len(raw.Results) != 2 {
			return false
		}
		for _, res := range raw.Results {
			if res.Status != "found" || len(res.Path) == 0 {
				return false
			}
		}
		paths.Target = raw.Target
		return true
	}, 5*time.Second, 20*time.Millisecond)
	require.NotNil(t, paths.Target)
	assert.Equal(t, [3]float64{1, 1, 0.5}, *paths.Target)

	r, err := http.Get(srv.URL + "/paths.geojson?simplify=0.1")
	require.NoError(t, err)
	var fc map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&fc))
	r.Body.Close()
	assert.Equal(t, "application/geo+json", r.Header.Get("Content-Type"))
	assert.Equal(t, "FeatureCollection", fc["type"])

	r, err = http.Get(srv.URL + "/paths.png")
	require.NoError(t, err)
	var png bytes.Buffer
	_, err = png.ReadFrom(r.Body)
	r.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(png.Bytes(), []byte("\x89PNG")))
}

func TestServer_RejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := post(t, srv.URL+"/map", `{"points": [[1, 2]]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, srv.URL+"/target", `{"x": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, srv.URL+"/target", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	r, err := http.Get(srv.URL + "/paths.geojson?simplify=-1")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)

	r, err = http.Get(srv.URL + "/map")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, r.StatusCode)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/target", nil)
	require.NoError(t, err)
	r, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, "*", r.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_HealthAndTree(t *testing.T) {
	srv, _ := newTestServer(t)

	r, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&health))
	r.Body.Close()
	assert.Equal(t, "waiting for map", health["status"])
	assert.Equal(t, []any{"jps", "wavefront"}, health["planners"])

	r, err = http.Get(srv.URL + "/tree")
	require.NoError(t, err)
	var tree map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&tree))
	r.Body.Close()
	assert.Equal(t, 0.0, tree["numEdges"])
}
