// Package server exposes the synthetic feed over HTTP: a tar1090 compatible
// aircraft.json and blah2 compatible radar endpoints, one listener for the
// main API plus one per radar that has its own port.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"adsbsynth/internal/aircraft"
	"adsbsynth/internal/detection"
)

// Default listener settings
const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 5001
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 15 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Config holds HTTP settings
type Config struct {
	Host string `json:"host"`
	Port int    `json:"port"`

	// TruthURL is advertised in blah2 config responses as the tar1090
	// source. Empty means the main listener's own address.
	TruthURL string `json:"truth_url"`

	// AllowedOrigins for CORS, default any
	AllowedOrigins []string `json:"allowed_origins"`
}

// DefaultConfig returns the default listen settings
func DefaultConfig() Config {
	return Config{
		Host: DefaultHost,
		Port: DefaultPort,
	}
}

// Validate checks listener settings
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid HTTP port %d", c.Port)
	}
	return nil
}

// Fleet is the aircraft population served; aircraft.Manager satisfies it
type Fleet interface {
	ReportedFeed(t float64) []aircraft.Report
	TrueStates(t float64) []aircraft.State
}

// Backend groups what the handlers read from
type Backend struct {
	Fleet       Fleet
	Synthesizer *detection.Synthesizer
	Registry    *detection.Registry
	Transmitter detection.Transmitter

	// Epoch is scenario time zero
	Epoch time.Time
}

// Server serves the HTTP API
type Server struct {
	cfg     Config
	backend Backend
	logger  *logrus.Logger
	now     func() time.Time

	mu        sync.Mutex
	servers   []*http.Server
	listeners []net.Listener
	wg        sync.WaitGroup
}

// Option configures a Server
type Option func(*Server)

// WithClock sets the clock used for scenario time and response timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server
func New(cfg Config, backend Backend, logger *logrus.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		cfg:     cfg,
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) baseRouter(name string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.logger, name))
	r.Use(middleware.Recoverer)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})
	return r
}

// Router returns the main API handler
func (s *Server) Router() http.Handler {
	r := s.baseRouter("main")

	r.Get("/data/aircraft.json", s.handleAircraft)
	r.Get("/data/truth.json", s.handleTruth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/detection", s.handleDefaultDetection)
		r.Get("/config", s.handleDefaultConfig)

		r.Get("/radars", s.handleRadars)
		r.Route("/radars/{id}", func(r chi.Router) {
			r.Get("/detection", s.handleRadarDetection)
			r.Get("/config", s.handleRadarConfig)
		})
	})

	return r
}

// RadarRouter returns the handler of a radar's dedicated listener
func (s *Server) RadarRouter(radar detection.Radar) http.Handler {
	r := s.baseRouter(radar.ID)

	r.Get("/api/detection", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, s.detectionResponse(radar))
	})
	r.Get("/api/config", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, s.configResponse(radar))
	})

	return r
}

// Start binds the main listener and every per-radar listener and serves
// them in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.servers) > 0 {
		return errors.New("server already started")
	}

	if err := s.listen("main", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)), s.Router()); err != nil {
		return err
	}
	if s.backend.Registry != nil {
		for _, radar := range s.backend.Registry.WithPorts() {
			addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(radar.Port))
			if err := s.listen(radar.ID, addr, s.RadarRouter(radar)); err != nil {
				s.closeLocked()
				return err
			}
		}
	}
	return nil
}

func (s *Server) listen(name, addr string, handler http.Handler) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s for %s: %w", addr, name, err)
	}

	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	s.servers = append(s.servers, srv)
	s.listeners = append(s.listeners, lis)

	s.logger.WithFields(logrus.Fields{
		"listener": name,
		"addr":     lis.Addr().String(),
	}).Info("HTTP listener started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).WithField("listener", name).Error("HTTP server failed")
		}
	}()
	return nil
}

// Addrs returns the bound addresses, main listener first
func (s *Server) Addrs() []net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	addrs := make([]net.Addr, len(s.listeners))
	for i, lis := range s.listeners {
		addrs[i] = lis.Addr()
	}
	return addrs
}

// Shutdown gracefully stops every listener
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	servers := s.servers
	s.servers, s.listeners = nil, nil
	s.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
	}

	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.wg.Wait()

	s.logger.Info("HTTP server stopped")
	return errors.Join(errs...)
}

func (s *Server) closeLocked() {
	for _, srv := range s.servers {
		srv.Close()
	}
	s.servers, s.listeners = nil, nil
}

// scenarioTime returns the current time and seconds since the epoch
func (s *Server) scenarioTime() (time.Time, float64) {
	now := s.now()
	return now, now.Sub(s.backend.Epoch).Seconds()
}

func (s *Server) truthURL() string {
	if s.cfg.TruthURL != "" {
		return s.cfg.TruthURL
	}
	host := s.cfg.Host
	if host == "" || host == DefaultHost {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(s.cfg.Port))
}
