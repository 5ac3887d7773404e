package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/mastercactapus/wellrig/camera"
	"github.com/mastercactapus/wellrig/config"
	"github.com/mastercactapus/wellrig/plate"
	"github.com/mastercactapus/wellrig/rig"
	"github.com/mastercactapus/wellrig/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type apiOptions struct {
	DataDir  string
	Events   *telemetry.SSE
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger

	// Radius and Cycles are used when a request leaves them out.
	Radius float64
	Cycles int
}

type api struct {
	http.Handler
	r    *rig.Controller
	opts apiOptions
	log  *slog.Logger
}

func newAPI(r *rig.Controller, opts apiOptions) *api {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Radius <= 0 {
		opts.Radius = config.Default().Plate.Radius
	}
	router := mux.NewRouter()
	a := &api{
		Handler: router,
		r:       r,
		opts:    opts,
		log:     opts.Logger.With("component", "api"),
	}

	fs := http.FileServer(http.Dir(opts.DataDir))
	router.PathPrefix("/data/").Handler(http.StripPrefix("/data", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case "GET", "HEAD":
			fs.ServeHTTP(w, req)
		case "PUT":
			a.putFile(w, req)
		case "DELETE":
			a.deleteFile(w, req)
		default:
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		}
	})))

	sub := router.PathPrefix("/api").Subrouter()
	sub.HandleFunc("/status", a.status(func() interface{} { return r.Status() })).Methods("GET")
	sub.HandleFunc("/camera/start", a.action(r.StartCamera)).Methods("POST")
	sub.HandleFunc("/camera/stop", a.action(r.StopCamera)).Methods("POST")
	sub.HandleFunc("/camera/focus", a.action(r.Focus)).Methods("POST")
	sub.HandleFunc("/camera/emissivity", a.cameraValue(r.SetEmissivity)).Methods("POST")
	sub.HandleFunc("/camera/distance", a.cameraValue(r.SetDistance)).Methods("POST")
	sub.HandleFunc("/probe", a.probe).Methods("GET")
	sub.HandleFunc("/image", a.saveImage).Methods("POST")

	sub.HandleFunc("/sampling/start", a.action(r.StartSampling)).Methods("POST")
	sub.HandleFunc("/sampling/stop", a.action(r.StopSampling)).Methods("POST")
	sub.HandleFunc("/dose", a.dose).Methods("POST")
	sub.HandleFunc("/dose", a.status(func() interface{} { return r.DoseStatus() })).Methods("GET")
	sub.HandleFunc("/dose/stop", a.action(r.StopDose)).Methods("POST")

	sub.HandleFunc("/degas", a.action(r.Degas)).Methods("POST")
	sub.HandleFunc("/degas", a.status(func() interface{} { return r.DegasStatus() })).Methods("GET")
	sub.HandleFunc("/degas/cancel", a.action(func() error { r.CancelDegas(); return nil })).Methods("POST")
	sub.HandleFunc("/degas/temperature", a.degasTemperature).Methods("GET")

	sub.HandleFunc("/geometry", a.status(func() interface{} { return r.Geometry() })).Methods("GET")
	sub.HandleFunc("/corners", a.editCorner).Methods("POST")
	sub.HandleFunc("/corners", a.action(func() error { r.ResetCorners(); return nil })).Methods("DELETE")
	sub.HandleFunc("/wells", a.editWell).Methods("POST")
	sub.HandleFunc("/wells/count", a.wellCount).Methods("POST")
	sub.HandleFunc("/mask", a.buildMask).Methods("POST")
	sub.HandleFunc("/capture/start", a.startCapture).Methods("POST")
	sub.HandleFunc("/capture/stop", a.action(r.StopCapture)).Methods("POST")
	sub.HandleFunc("/row", a.writeRow).Methods("POST")

	router.HandleFunc("/ws/frames", a.frames)
	if opts.Events != nil {
		router.PathPrefix("/events/").Handler(opts.Events)
	}
	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return a
}

func safePath(base, name string) (bool, string) {
	if filepath.Separator != '/' && strings.ContainsRune(name, filepath.Separator) {
		return false, ""
	}
	dir := base
	if dir == "" {
		dir = "."
	}
	fullName := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+name)))
	return true, fullName
}

func statusCode(err error) int {
	var numErr *strconv.NumError
	switch {
	case errors.Is(err, rig.ErrInvalidArgument),
		errors.Is(err, plate.ErrInvalidGeometry),
		errors.Is(err, camera.ErrInvalidValue),
		errors.As(err, &numErr):
		return http.StatusBadRequest
	case errors.Is(err, rig.ErrNotReady), errors.Is(err, rig.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, camera.ErrHardwareUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (a *api) fail(w http.ResponseWriter, req *http.Request, err error) {
	code := statusCode(err)
	if code >= 500 {
		a.log.Error("request failed", "path", req.URL.Path, "error", err)
	} else {
		a.log.Warn("request rejected", "path", req.URL.Path, "error", err)
	}
	http.Error(w, err.Error(), code)
}

func (a *api) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		a.log.Error("encode", "error", err)
	}
}

func (a *api) action(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := fn(); err != nil {
			a.fail(w, req, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *api) status(fn func() interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		a.writeJSON(w, fn())
	}
}

// params parses form values, keeping the first error.
type params struct {
	req *http.Request
	err error
}

func (p *params) float(name string) (val float64) {
	if p.err != nil {
		return 0
	}
	val, p.err = strconv.ParseFloat(p.req.FormValue(name), 64)
	return val
}

func (p *params) int(name string) (val int) {
	if p.err != nil {
		return 0
	}
	val, p.err = strconv.Atoi(p.req.FormValue(name))
	return val
}

// optInt returns nil for a missing value.
func (p *params) optInt(name string) *int {
	if p.req.FormValue(name) == "" {
		return nil
	}
	v := p.int(name)
	return &v
}

func (a *api) cameraValue(fn func(float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		p := params{req: req}
		v := p.float("value")
		if p.err != nil {
			a.fail(w, req, p.err)
			return
		}
		a.action(func() error { return fn(v) })(w, req)
	}
}

func (a *api) probe(w http.ResponseWriter, req *http.Request) {
	p := params{req: req}
	x, y := p.int("x"), p.int("y")
	if p.err != nil {
		a.fail(w, req, p.err)
		return
	}
	res, err := a.r.Probe(x, y)
	if err != nil {
		a.fail(w, req, err)
		return
	}
	a.writeJSON(w, res)
}

func (a *api) saveImage(w http.ResponseWriter, req *http.Request) {
	name := req.FormValue("name")
	if name == "" {
		name = time.Now().Format("20060102-150405")
	}
	p, err := a.r.SaveImage(name)
	if err != nil {
		a.fail(w, req, err)
		return
	}
	a.writeJSON(w, map[string]string{"file": "/data/" + filepath.Base(p)})
}

func (a *api) dose(w http.ResponseWriter, req *http.Request) {
	cycles := a.opts.Cycles
	if req.FormValue("cycles") != "" {
		p := params{req: req}
		cycles = p.int("cycles")
		if p.err != nil {
			a.fail(w, req, p.err)
			return
		}
		if cycles < 1 {
			a.fail(w, req, fmt.Errorf("%w: cycles must be at least 1", rig.ErrInvalidArgument))
			return
		}
	}
	a.action(func() error { return a.r.Dose(cycles) })(w, req)
}

func (a *api) degasTemperature(w http.ResponseWriter, req *http.Request) {
	temp, err := a.r.DegasTemperature()
	if err != nil {
		a.fail(w, req, err)
		return
	}
	a.writeJSON(w, map[string]string{"temperature": temp})
}

func (a *api) editCorner(w http.ResponseWriter, req *http.Request) {
	p := params{req: req}
	x, y := p.float("x"), p.float("y")
	if p.err != nil {
		a.fail(w, req, p.err)
		return
	}
	g, err := a.r.EditCorner(x, y)
	if err != nil {
		a.fail(w, req, err)
		return
	}
	a.writeJSON(w, g)
}

func (a *api) editWell(w http.ResponseWriter, req *http.Request) {
	p := params{req: req}
	x, y := p.float("x"), p.float("y")
	if p.err != nil {
		a.fail(w, req, p.err)
		return
	}
	well, err := a.r.EditWell(x, y)
	if err != nil {
		a.fail(w, req, err)
		return
	}
	a.writeJSON(w, well)
}

func (a *api) wellCount(w http.ResponseWriter, req *http.Request) {
	p := params{req: req}
	x, y := p.optInt("x"), p.optInt("y")
	if p.err != nil {
		a.fail(w, req, p.err)
		return
	}
	g, err := a.r.SetWellCount(x, y)
	if err != nil {
		a.fail(w, req, err)
		return
	}
	a.writeJSON(w, g)
}

func (a *api) radius(req *http.Request) (float64, error) {
	if req.FormValue("radius") == "" {
		return a.opts.Radius, nil
	}
	p := params{req: req}
	r := p.float("radius")
	return r, p.err
}

func (a *api) buildMask(w http.ResponseWriter, req *http.Request) {
	radius, err := a.radius(req)
	if err != nil {
		a.fail(w, req, err)
		return
	}
	n, err := a.r.BuildMask(radius)
	if err != nil {
		a.fail(w, req, err)
		return
	}
	a.writeJSON(w, map[string]interface{}{"radius": radius, "pixels": n})
}

func (a *api) startCapture(w http.ResponseWriter, req *http.Request) {
	radius, err := a.radius(req)
	if err != nil {
		a.fail(w, req, err)
		return
	}
	name := req.FormValue("name")
	if name == "" {
		name = "capture-" + time.Now().Format("20060102-150405")
	}
	a.action(func() error { return a.r.StartCapture(radius, name) })(w, req)
}

func (a *api) writeRow(w http.ResponseWriter, req *http.Request) {
	name := req.FormValue("name")
	if name == "" {
		a.fail(w, req, fmt.Errorf("%w: name is required", rig.ErrInvalidArgument))
		return
	}
	a.action(func() error { return a.r.WriteRow(name, time.Now()) })(w, req)
}

func (a *api) putFile(w http.ResponseWriter, req *http.Request) {
	ok, name := safePath(a.opts.DataDir, req.URL.Path)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	os.MkdirAll(filepath.Dir(name), 0755)
	f, err := os.Create(name)
	if err != nil {
		a.fail(w, req, err)
		return
	}
	defer f.Close()
	_, err = io.Copy(f, req.Body)
	if err != nil {
		a.fail(w, req, err)
		return
	}
}

func (a *api) deleteFile(w http.ResponseWriter, req *http.Request) {
	ok, name := safePath(a.opts.DataDir, req.URL.Path)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	err := os.Remove(name)
	if errors.Is(err, os.ErrNotExist) {
		http.NotFound(w, req)
		return
	}
	if err != nil {
		a.fail(w, req, err)
		return
	}
}
