package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/strata/internal/election"
	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/policy"
	"github.com/roach88/strata/internal/projection"
	"github.com/roach88/strata/internal/service"
)

const (
	contentTypeJSON        = "application/json"
	defaultAddr            = ":8080"
	defaultShutdownTimeout = 5 * time.Second

	// AuthorHeader carries the requester identity for mutations.
	AuthorHeader = "X-Author"
)

// Backend is the subset of *service.Service the API serves.
type Backend interface {
	Policies() *policy.Registry
	ListEntities(ctx context.Context, domain string, f projection.Filter) ([]projection.Entity, error)
	GetEntity(ctx context.Context, domain, id string) (projection.Entity, error)
	History(ctx context.Context, domain, id string) ([]ir.Record, error)
	Publish(ctx context.Context, domain, author string, fields ir.Object) (ir.Record, error)
	PublishEdit(ctx context.Context, domain, author, existingID string, fields ir.Object) (ir.Record, error)
	DeleteEntity(ctx context.Context, domain, author, id string) (ir.Record, error)
	Election(ctx context.Context, domain, key string, method election.Method) (election.Result, error)
	Sweep(ctx context.Context, domain string, now int64) ([]election.Resolution, error)
}

// Server serves the projection API over HTTP.
type Server struct {
	backend    Backend
	now        func() time.Time
	addr       string
	httpServer *http.Server
}

// NewServer creates a server listening on addr (":8080" when empty).
func NewServer(backend Backend, addr string) *Server {
	if addr == "" {
		addr = defaultAddr
	}
	return &Server{backend: backend, addr: addr, now: time.Now}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/domains", s.handleDomains)

	r.Route("/domains/{domain}", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handlePublish)
		r.Get("/{id}", s.handleGet)
		r.Put("/{id}", s.handleEdit)
		r.Delete("/{id}", s.handleDelete)
		r.Get("/{id}/history", s.handleHistory)
	})

	r.Route("/governance/{domain}", func(r chi.Router) {
		r.Get("/elections/{key}", s.handleElection)
		r.Post("/sweep", s.handleSweep)
	})

	return r
}

// Start listens and serves in the background until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("HTTP server started", "addr", ln.Addr().String())
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Error encoding response", "error", err)
	}
}

// httpStatus maps service error codes onto status codes.
var httpStatus = map[string]int{
	service.CodeNotFound:          http.StatusNotFound,
	service.CodeUnknownDomain:     http.StatusNotFound,
	service.CodeNotGoverned:       http.StatusBadRequest,
	service.CodePermissionDenied:  http.StatusForbidden,
	service.CodeStatusRegression:  http.StatusConflict,
	service.CodeInvalidTransition: http.StatusConflict,

	string(projection.ErrCodeMalformedChain): http.StatusUnprocessableEntity,
}

func writeError(w http.ResponseWriter, err error) {
	code := service.Code(err)
	status, ok := httpStatus[code]
	if !ok {
		slog.Error("request failed", "error", err)
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, newErrorResponse(code, err.Error()))
}
