// Package gtfslocator wires the feed indexing and matching engine into an
// HTTP service. Query parameters name bundle and feed files relative to the
// configured data directory.
package gtfslocator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/theoremus-urban-solutions/gtfs-locator/config"
	"github.com/theoremus-urban-solutions/gtfs-locator/gtfs"
	"github.com/theoremus-urban-solutions/gtfs-locator/internal/logging"
	"github.com/theoremus-urban-solutions/gtfs-locator/internal/metrics"
	"github.com/theoremus-urban-solutions/gtfs-locator/locate"
	"github.com/theoremus-urban-solutions/gtfs-locator/store"
)

// Server owns the caches, the query engines and the HTTP surface.
type Server struct {
	cfg     config.AppConfig
	log     *slog.Logger
	cache   *gtfs.IndexCache
	multi   *gtfs.MultiIndexCache
	search  *locate.Searcher
	matcher *locate.Matcher
	reports *store.ReportStore
	metrics *metrics.Collector

	router  *httprouter.Router
	httpSrv *http.Server
}

// NewServer builds a fully wired server.
func NewServer(cfg config.AppConfig, logger *slog.Logger) *Server {
	cache := gtfs.NewIndexCache()
	multi := gtfs.NewMultiIndexCache(cache)
	s := &Server{
		cfg:     cfg,
		log:     logger,
		cache:   cache,
		multi:   multi,
		search:  locate.NewSearcher(multi),
		matcher: locate.NewMatcher(multi),
		reports: store.NewReportStore(),
		metrics: metrics.NewCollector(cache),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *httprouter.Router {
	r := httprouter.New()

	r.HandlerFunc(http.MethodGet, "/", s.handleRoot)
	r.HandlerFunc(http.MethodGet, "/api/health", s.handleHealth)
	r.Handler(http.MethodGet, "/metrics", s.metrics.Handler())

	r.GET("/api/rt/vehicles", s.instrument("rt_vehicles", s.handleVehicles))
	r.GET("/api/rt/trip-updates", s.instrument("rt_trip_updates", s.handleTripUpdates))
	r.GET("/api/rt/alerts", s.instrument("rt_alerts", s.handleAlerts))
	r.GET("/api/rt/vehicles/enriched", s.instrument("rt_vehicles_enriched", s.handleEnrichedVehicles))

	r.GET("/api/static/stops", s.instrument("static_stops", s.handleStops))
	r.GET("/api/static/routes", s.instrument("static_routes", s.handleRoutes))
	r.GET("/api/static/trips", s.instrument("static_trips", s.handleTrips))
	r.GET("/api/static/routes-by-point", s.instrument("routes_by_point", s.handleRoutesByPoint))
	r.GET("/api/static/routes-on-route", s.instrument("routes_on_route", s.handleRoutesOnRoute))

	r.PUT("/api/users/:id", s.handleUpsertUser)
	r.POST("/api/reports", s.instrument("create_report", s.handleCreateReport))
	r.GET("/api/reports/:id", s.handleGetReport)

	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins serving and returns immediately.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(s.log, "server error", err)
			os.Exit(1)
		}
	}()
	s.log.Info("server listening", slog.String("addr", addr))
}

// HandleGracefulShutdown blocks until SIGINT/SIGTERM, then drains the server.
func (s *Server) HandleGracefulShutdown() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	s.log.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			logging.Error(s.log, "server shutdown error", err)
		} else {
			s.log.Info("server shut down")
		}
	}
}

// instrument wraps a handler with query counting, duration observation and
// request logging.
func (s *Server) instrument(op string, h http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		elapsed := time.Since(start)
		s.metrics.Queries.WithLabelValues(op).Inc()
		s.metrics.RequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
		logging.HTTPRequest(s.log, r.Method, r.URL.Path, rec.status, float64(elapsed.Microseconds())/1000.0)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
