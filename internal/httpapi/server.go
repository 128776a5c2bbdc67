package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ent0n29/intake/internal/catalog"
	"github.com/ent0n29/intake/internal/config"
	"github.com/ent0n29/intake/internal/dialog"
	"github.com/ent0n29/intake/internal/engine"
	"github.com/ent0n29/intake/internal/observability"
	"github.com/ent0n29/intake/internal/records"
)

// Catalog is the read side of the module catalog.
type Catalog interface {
	List(ctx context.Context) ([]catalog.Item, error)
	Ping(ctx context.Context) error
}

type Server struct {
	cfg      config.Config
	engine   *engine.Engine
	users    records.Store
	catalog  Catalog
	dialog   *dialog.Router
	metrics  *observability.Metrics
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// New builds the HTTP surface. cat may be nil.
func New(cfg config.Config, eng *engine.Engine, users records.Store, cat Catalog, metrics *observability.Metrics, logger zerolog.Logger) *Server {
	var dialogCatalog dialog.Catalog
	if cat != nil {
		dialogCatalog = cat
	}
	return &Server{
		cfg:     cfg,
		engine:  eng,
		users:   users,
		catalog: cat,
		dialog:  dialog.NewRouter(eng, users, dialogCatalog, logger),
		metrics: metrics,
		logger:  logger.With().Str("component", "httpapi").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/catalog", s.handleCatalog)
	r.Get("/v1/schema", s.handleSchema)
	r.Get("/v1/chat/ws", s.handleChatWS)

	r.Route("/v1/users/{externalID}/questionnaire", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Post("/edit", s.handleEdit)
		r.Post("/answer", s.handleAnswer)
		r.Post("/cancel", s.handleCancel)
		r.Post("/save", s.handleSave)
		r.Post("/submit", s.handleSubmit)
		r.Get("/progress", s.handleProgress)
		r.Get("/session", s.handleSnapshot)
		r.Get("/record", s.handleGetRecord)
		r.Delete("/record", s.handleDeleteRecord)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"record_store":  s.recordStoreMode(),
		"session_store": s.cfg.SessionBackend,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"record_store": "ok"}
	ready := true
	if err := s.users.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("record store not ready")
		checks["record_store"] = "unavailable"
		ready = false
	}
	if s.catalog != nil {
		checks["catalog"] = "ok"
		if err := s.catalog.Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("catalog not ready")
			checks["catalog"] = "unavailable"
			ready = false
		}
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]any{"status": status, "checks": checks})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		respondError(w, http.StatusServiceUnavailable, "catalog_unavailable", "catalog not configured")
		return
	}
	items, err := s.catalog.List(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("list catalog")
		respondError(w, http.StatusServiceUnavailable, "catalog_unavailable", "could not list catalog")
		return
	}
	if items == nil {
		items = []catalog.Item{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"fields": s.engine.Schema().Fields()})
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Retryable *bool  `json:"retryable,omitempty"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func (s *Server) recordStoreMode() string {
	switch s.users.(type) {
	case *records.PostgresStore:
		return "postgres"
	case *records.InMemoryStore:
		return "in-memory"
	default:
		return "custom"
	}
}

func externalIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "externalID")), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
