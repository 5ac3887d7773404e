package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mastercactapus/wellrig/camera"
	"github.com/mastercactapus/wellrig/device/devicetest"
	"github.com/mastercactapus/wellrig/rig"
	"github.com/mastercactapus/wellrig/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	reg := prometheus.NewRegistry()
	metrics, err := telemetry.NewMetrics(reg)
	require.NoError(t, err)
	events := telemetry.NewSSE(nil)

	r := rig.New(rig.Options{
		Camera:        camera.NewSimSystem(64, 48),
		DosingPort:    devicetest.New(),
		DegasPort:     devicetest.New(),
		Sink:          telemetry.NewFanout(events, metrics),
		DataDir:       dir,
		FrameInterval: 2 * time.Millisecond,
		WellsX:        3,
		WellsY:        2,
	})
	srv := httptest.NewServer(newAPI(r, apiOptions{DataDir: dir, Events: events, Gatherer: reg, Radius: 3}))
	t.Cleanup(func() {
		srv.Close()
		r.Close()
		events.Close()
	})
	return srv, dir
}

func post(t *testing.T, srv *httptest.Server, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := http.PostForm(srv.URL+path, form)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func xy(x, y string) url.Values { return url.Values{"x": {x}, "y": {y}} }

func TestAPI_Geometry(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, c := range [][2]string{{"0", "0"}, {"40", "0"}, {"0", "30"}} {
		assert.Equal(t, http.StatusOK, post(t, srv, "/api/corners", xy(c[0], c[1])).StatusCode)
	}
	resp := post(t, srv, "/api/corners", xy("40", "30"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var g rig.Geometry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&g))
	assert.Len(t, g.Wells, 6)
	assert.Equal(t, "3B", g.Wells[5].Label)

	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/api/corners", xy("a", "1")).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/api/wells/count", url.Values{"x": {"30"}}).StatusCode)

	resp = post(t, srv, "/api/wells/count", url.Values{"y": {"3"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&g))
	assert.Equal(t, 3, g.WellsX)
	assert.Equal(t, 3, g.WellsY)
	assert.Len(t, g.Wells, 9)

	resp = post(t, srv, "/api/wells", xy("21", "1"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var w rig.Well
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&w))
	assert.Equal(t, "2A", w.Label)

	req, _ := http.NewRequest("DELETE", srv.URL+"/api/corners", nil)
	dresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	dresp.Body.Close()
	assert.Equal(t, http.StatusNoContent, dresp.StatusCode)
	assert.Equal(t, http.StatusConflict, post(t, srv, "/api/wells", xy("1", "1")).StatusCode)
}

func TestAPI_Camera(t *testing.T) {
	srv, dir := newTestServer(t)

	assert.Equal(t, http.StatusConflict, get(t, srv, "/api/probe?x=1&y=1").StatusCode)
	assert.Equal(t, http.StatusNoContent, post(t, srv, "/api/camera/start", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/api/camera/emissivity", url.Values{"value": {"2"}}).StatusCode)
	assert.Equal(t, http.StatusNoContent, post(t, srv, "/api/camera/emissivity", url.Values{"value": {"0.5"}}).StatusCode)

	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/api/probe?x=1&y=1")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 2*time.Millisecond)

	resp := post(t, srv, "/api/image", url.Values{"name": {"snap"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.FileExists(t, filepath.Join(dir, "snap.png"))

	resp = get(t, srv, "/data/snap.png")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/frames", nil)
	require.NoError(t, err)
	defer ws.Close()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, typ)
	assert.True(t, strings.HasPrefix(string(data), "\x89PNG"))
}

func TestAPI_Status(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := get(t, srv, "/api/dose")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dose rig.DoseStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dose))
	assert.Equal(t, "idle", dose.State)

	resp = get(t, srv, "/api/degas")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var degas rig.DegasStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&degas))
	assert.Equal(t, "idle", degas.Stage)

	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/api/dose", url.Values{"cycles": {"0"}}).StatusCode)
	assert.Equal(t, http.StatusConflict, get(t, srv, "/api/degas/temperature").StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/api/row", nil).StatusCode)

	resp = get(t, srv, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st rig.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, rig.Status{}, st)

	assert.Equal(t, http.StatusNoContent, post(t, srv, "/api/camera/start", nil).StatusCode)
	assert.Equal(t, http.StatusNoContent, post(t, srv, "/api/sampling/start", nil).StatusCode)
	resp = get(t, srv, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.True(t, st.Camera)
	assert.True(t, st.Sampling)
	assert.Equal(t, "", st.Capture)

	resp = get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "wellrig_dose_pulses_total")
}

func TestAPI_DataFiles(t *testing.T) {
	srv, dir := newTestServer(t)

	req, _ := http.NewRequest("PUT", srv.URL+"/data/notes/run1.txt", strings.NewReader("hello"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := os.ReadFile(filepath.Join(dir, "notes", "run1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	req, _ = http.NewRequest("DELETE", srv.URL+"/data/notes/run1.txt", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoFileExists(t, filepath.Join(dir, "notes", "run1.txt"))
}

func TestSafePath(t *testing.T) {
	ok, name := safePath("/srv/data", "../../etc/passwd")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join("/srv/data", "etc", "passwd"), name)
}
