package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quarterload/api"
	"quarterload/core"
	"quarterload/util"
)

var log = util.NewLogger("http")

// HTTPd wraps an http.Server and adds the API routes
type HTTPd struct {
	*http.Server
}

type route struct {
	Methods []string
	Pattern string
	Handler http.HandlerFunc
}

// NewHTTPd creates an HTTP server with configured routes for site and meters
func NewHTTPd(addr string, site *core.Site, hub *SocketHub, cache *util.Cache) *HTTPd {
	routes := map[string]route{
		"health":    {[]string{"GET"}, "/health", healthHandler(site)},
		"state":     {[]string{"GET"}, "/state", stateHandler(cache)},
		"meters":    {[]string{"GET"}, "/meters", metersHandler(site)},
		"meter":     {[]string{"GET"}, "/meters/{name}", meterHandler(site)},
		"current":   {[]string{"GET"}, "/meters/{name}/current", currentWindowHandler(site)},
		"completed": {[]string{"GET"}, "/meters/{name}/completed", completedWindowHandler(site)},
		"estimate":  {[]string{"GET"}, "/meters/{name}/estimate/{target}", estimateHandler(site)},
		"targets":   {[]string{"POST", "OPTIONS"}, "/meters/{name}/targets/{targets}", targetsHandler(site)},
		"limit":     {[]string{"POST", "OPTIONS"}, "/meters/{name}/limit/{limit}", limitHandler(site)},
	}

	router := mux.NewRouter().StrictSlash(true)

	// websocket
	router.HandleFunc("/ws", socketHandler(hub))

	// prometheus
	router.Path("/metrics").Handler(promhttp.Handler())

	// api
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(jsonHandler)
	apiRouter.Use(handlers.CompressHandler)
	apiRouter.Use(handlers.CORS(
		handlers.AllowedHeaders([]string{"Content-Type"}),
	))
	for _, r := range routes {
		apiRouter.Methods(r.Methods...).Path(r.Pattern).Handler(r.Handler)
	}

	srv := &HTTPd{
		Server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
			ErrorLog:     log.ERROR,
		},
	}
	srv.SetKeepAlivesEnabled(true)

	return srv
}

// Router returns the main router
func (s *HTTPd) Router() *mux.Router {
	return s.Handler.(*mux.Router)
}

// jsonHandler decorates responses with the JSON content type
func jsonHandler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		h.ServeHTTP(w, r)
	})
}

func jsonResult(w http.ResponseWriter, res interface{}) {
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"result": res}); err != nil {
		log.ERROR.Printf("encoding response failed: %v", err)
	}
}

func jsonError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()}); err != nil {
		log.ERROR.Printf("encoding response failed: %v", err)
	}
}

// meterSnapshot is the complete external view of a single meter
type meterSnapshot struct {
	Name      string               `json:"name"`
	Interval  string               `json:"interval"`
	Healthy   bool                 `json:"healthy"`
	Targets   []float64            `json:"targets"`
	Limit     float64              `json:"limit,omitempty"`
	Current   api.WindowStatus     `json:"current"`
	Completed *api.CompletedWindow `json:"completed,omitempty"`
	Estimates []api.Estimate       `json:"estimates,omitempty"`
}

func snapshot(m *core.Meter) meterSnapshot {
	res := meterSnapshot{
		Name:      m.Name,
		Interval:  m.Interval.String(),
		Healthy:   m.Healthy(),
		Targets:   m.GetTargets(),
		Limit:     m.GetLimit(),
		Current:   m.CurrentWindow(),
		Estimates: m.Estimates(),
	}

	if completed, ok := m.CompletedWindow(); ok {
		res.Completed = &completed
	}

	return res
}

// healthHandler returns 200 while all sampling loops are alive
func healthHandler(site *core.Site) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !site.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "OK")
	}
}

// stateHandler returns the cached parameters of all meters
func stateHandler(cache *util.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jsonResult(w, cache.State())
	}
}

// metersHandler returns snapshots of all configured meters
func metersHandler(site *core.Site) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meters := site.Meters()

		res := make([]meterSnapshot, 0, len(meters))
		for _, m := range meters {
			res = append(res, snapshot(m))
		}

		jsonResult(w, res)
	}
}

// meterHandler returns a single meter snapshot
func meterHandler(site *core.Site) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := site.MeterByName(mux.Vars(r)["name"])
		if err != nil {
			jsonError(w, http.StatusNotFound, err)
			return
		}

		jsonResult(w, snapshot(m))
	}
}

// currentWindowHandler returns the running window state
func currentWindowHandler(site *core.Site) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := site.MeterByName(mux.Vars(r)["name"])
		if err != nil {
			jsonError(w, http.StatusNotFound, err)
			return
		}

		jsonResult(w, m.CurrentWindow())
	}
}

// completedWindowHandler returns the most recent frozen window
func completedWindowHandler(site *core.Site) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := site.MeterByName(mux.Vars(r)["name"])
		if err != nil {
			jsonError(w, http.StatusNotFound, err)
			return
		}

		completed, ok := m.CompletedWindow()
		if !ok {
			jsonError(w, http.StatusNotFound, api.ErrNotAvailable)
			return
		}

		jsonResult(w, completed)
	}
}

// estimateHandler projects the window average for an ad-hoc target
func estimateHandler(site *core.Site) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := site.MeterByName(mux.Vars(r)["name"])
		if err != nil {
			jsonError(w, http.StatusNotFound, err)
			return
		}

		target, err := strconv.ParseFloat(mux.Vars(r)["target"], 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}

		jsonResult(w, m.EstimateTarget(target))
	}
}

// targetsHandler replaces the meter's estimation targets
func targetsHandler(site *core.Site) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := site.MeterByName(mux.Vars(r)["name"])
		if err != nil {
			jsonError(w, http.StatusNotFound, err)
			return
		}

		targets, err := parseFloats(mux.Vars(r)["targets"])
		if err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}

		m.SetTargets(targets)
		jsonResult(w, m.GetTargets())
	}
}

// limitHandler replaces the meter's alert limit
func limitHandler(site *core.Site) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := site.MeterByName(mux.Vars(r)["name"])
		if err != nil {
			jsonError(w, http.StatusNotFound, err)
			return
		}

		limit, err := strconv.ParseFloat(mux.Vars(r)["limit"], 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}

		m.SetLimit(limit)
		jsonResult(w, m.GetLimit())
	}
}

// parseFloats parses a comma separated list of floats
func parseFloats(s string) ([]float64, error) {
	var res []float64
	for _, v := range strings.Split(s, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, nil
}
