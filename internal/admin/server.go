// Package admin serves the operational HTTP endpoints: health, scheduler status,
// a manual scrape trigger and Prometheus metrics.
//
// Routes under /admin require an "Authorization: Bearer <token>" header matching the
// configured token. With no token configured they answer 401 to every request.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/pfrederiksen/avl-events/internal/logger"
	"github.com/pfrederiksen/avl-events/internal/metrics"
	"github.com/pfrederiksen/avl-events/internal/pipeline"
	"github.com/pfrederiksen/avl-events/internal/scheduler"
)

// Scheduler is the part of the scheduler the admin endpoints drive
type Scheduler interface {
	TriggerUpdate(ctx context.Context) (*pipeline.CycleReport, error)
	Status() scheduler.Status
}

// Options configures the admin server
type Options struct {
	AllowedOrigins []string // CORS origins; empty allows any
	Token          string   // bearer token for /admin routes
	Logger         *logger.Logger
}

// Server is the admin HTTP server
type Server struct {
	sched   Scheduler
	token   []byte
	metrics *metrics.Metrics
	log     *logger.Logger
	handler http.Handler
	srv     *http.Server
}

// FailedVenue names a venue abandoned during a triggered cycle
type FailedVenue struct {
	Venue string `json:"venue"`
	Error string `json:"error"`
}

// ScrapeResponse is the body of POST /admin/scrape
type ScrapeResponse struct {
	Success      bool          `json:"success"`
	Message      string        `json:"message"`
	Timestamp    time.Time     `json:"timestamp"`
	CycleID      string        `json:"cycle_id,omitempty"`
	Inserted     int           `json:"inserted"`
	Retired      int           `json:"retired"`
	FailedVenues []FailedVenue `json:"failed_venues"`
}

// New creates the server; m may be nil to leave /metrics out
func New(addr string, sched Scheduler, m *metrics.Metrics, opts Options) *Server {
	l := opts.Logger
	if l == nil {
		l = logger.Default()
	}
	allowedOrigins := opts.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if opts.Token == "" {
		l.Warn("No admin token configured, /admin routes will refuse every request", nil)
	}

	s := &Server{sched: sched, token: []byte(opts.Token), metrics: m, log: l}

	s.handler = cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(s.router())

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods("GET")
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	admin := r.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/status", s.status).Methods("GET")
	admin.HandleFunc("/scrape", s.scrape).Methods("POST")
	admin.Use(s.requireToken)

	r.Use(s.logRequests, s.recoverPanics)
	return r
}

// requireToken rejects requests without the configured bearer token
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		given, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || len(s.token) == 0 || subtle.ConstantTimeCompare([]byte(given), s.token) != 1 {
			s.log.Warn("Rejected unauthorized admin request", logger.Fields{
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			})
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the routed handler with CORS applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until Shutdown; it returns nil after a clean shutdown
func (s *Server) ListenAndServe() error {
	s.log.Info("Admin server listening", logger.Fields{"addr": s.srv.Addr})
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.Status())
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	// The cycle finishes even if the caller hangs up
	ctx := context.WithoutCancel(r.Context())

	report, err := s.sched.TriggerUpdate(ctx)
	resp := ScrapeResponse{Timestamp: time.Now().UTC(), FailedVenues: make([]FailedVenue, 0)}

	switch {
	case errors.Is(err, scheduler.ErrCycleInProgress):
		resp.Message = err.Error()
		writeJSON(w, http.StatusConflict, resp)
		return
	case err != nil:
		s.log.Error("Manual scrape failed", nil, err)
		resp.Message = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	resp.CycleID = report.ID.String()
	resp.Inserted = report.TotalInserted()
	if report.Cleanup != nil {
		resp.Retired = report.Cleanup.Retired
	}
	for _, v := range report.Failed() {
		resp.FailedVenues = append(resp.FailedVenues, FailedVenue{Venue: v.Venue, Error: v.Err.Error()})
	}

	resp.Success = true
	resp.Message = "Events updated successfully"
	if len(resp.FailedVenues) > 0 {
		resp.Message = "Events updated with venue failures"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("Admin request", logger.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"remote":   r.RemoteAddr,
			"duration": time.Since(start).String(),
		})
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("Recovered from panic", logger.Fields{"path": r.URL.Path, "panic": rec}, nil)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
