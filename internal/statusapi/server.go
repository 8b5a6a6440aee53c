// Package statusapi exposes a read-only operational HTTP surface over
// the engine's current state: open positions, realized P&L, and basic
// health. It never accepts a write.
//
// A chi.Mux router with logrus-structured request logging, generalized
// down to a JSON-only status surface with no operator-facing HTML.
package statusapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/harlowquant/meanrev-engine/internal/domainmodel"
	"github.com/harlowquant/meanrev-engine/internal/persistence"
)

// OrderBook is the minimal read surface over the live order service's
// position book and realized P&L. Satisfied by *orderservice.Service.
type OrderBook interface {
	AllPositions() []domainmodel.Position
	RealizedPnL() []domainmodel.RealizedPnL
}

// Server is the status HTTP server.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	book    OrderBook
	persist persistence.Handle
	logger  *logrus.Logger
	port    int
}

// NewServer builds a Server. book reports the current position book and
// the day's realized P&L; persist's QueueDepth backs the /health
// response.
func NewServer(port int, book OrderBook, persist persistence.Handle, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Server{
		router:  chi.NewRouter(),
		book:    book,
		persist: persist,
		logger:  logger,
		port:    port,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLoggerMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(15 * time.Second))

	s.router.Get("/positions", s.handlePositions)
	s.router.Get("/pnl", s.handlePnL)
	s.router.Get("/health", s.handleHealth)
}

func (s *Server) requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry := s.logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)
		entry.WithFields(logrus.Fields{
			"status":   wrapped.Status(),
			"duration": time.Since(start),
		}).Info("status api request")
	})
}

// Start runs the HTTP server until it is shut down. It returns nil on
// graceful shutdown (http.ErrServerClosed is swallowed) and any other
// error ListenAndServe reports.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Infof("status api listening on port %d", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, s.book.AllPositions())
}

func (s *Server) handlePnL(w http.ResponseWriter, r *http.Request) {
	records := s.book.RealizedPnL()
	var total float64
	for _, rec := range records {
		total += rec.PnL
	}
	writeJSON(w, s.logger, struct {
		Total   float64                   `json:"total"`
		Records []domainmodel.RealizedPnL `json:"records"`
	}{Total: total, Records: records})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, struct {
		Status            string `json:"status"`
		PersistQueueDepth int    `json:"persist_queue_depth"`
	}{Status: "ok", PersistQueueDepth: s.persist.QueueDepth()})
}

func writeJSON(w http.ResponseWriter, logger *logrus.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
