package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Jonatan852/columnar-datasource/internal/loader"
	"github.com/Jonatan852/columnar-datasource/internal/session"
	"github.com/Jonatan852/columnar-datasource/internal/storage"
	"github.com/Jonatan852/columnar-datasource/internal/visualizer"
)

// Config define as dependências mínimas do servidor HTTP.
type Config struct {
	Addr         string
	Session      *session.Context
	Logger       *slog.Logger
	Loader       loader.Options
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server expõe API REST para consultas e catálogo de tabelas.
type Server struct {
	cfg        Config
	httpServer *http.Server
}

// NewServer cria o servidor HTTP e registra as rotas.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("session é obrigatória")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{cfg: cfg}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// Handler returns the routed handler, usable without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

// Start inicia o servidor HTTP (chamada bloqueante).
func (s *Server) Start() error {
	s.cfg.Logger.Info("http server listening", slog.String("addr", s.cfg.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown encerra o servidor com contexto.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/tables", s.handleTables)
	mux.HandleFunc("/tables/", s.handleTablePath)
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("/query/explain", s.handleExplain)
	mux.HandleFunc("/swagger", s.handleSwaggerUI)
	mux.HandleFunc("/swagger/openapi.yaml", s.handleSwaggerSpec)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"tables": len(s.cfg.Session.TableNames()),
	})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string][]string{"tables": s.cfg.Session.TableNames()})
	case http.MethodPost:
		s.handleDataLoad(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "método não suportado")
	}
}

func (s *Server) handleTablePath(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/tables/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusNotFound, "rota inválida")
		return
	}
	switch r.Method {
	case http.MethodGet:
		provider, err := s.cfg.Session.Table(name)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		described, ok := provider.(interface {
			Metadata(source string) storage.TableMetadata
		})
		if !ok {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"name":   strings.ToLower(name),
				"type":   provider.TableType().String(),
				"fields": provider.Schema().NumFields(),
			})
			return
		}
		meta := described.Metadata("memory")
		meta.Name = strings.ToLower(name)
		writeJSON(w, http.StatusOK, meta)
	case http.MethodDelete:
		provider, err := s.cfg.Session.DeregisterTable(name)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		if closer, ok := provider.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
		writeJSON(w, http.StatusOK, map[string]string{"table": strings.ToLower(name), "status": "removida"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "método não suportado")
	}
}

type queryRequest struct {
	SQL string `json:"sql"`
}

func decodeQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "método não suportado")
		return "", false
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "payload inválido")
		return "", false
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(w, http.StatusBadRequest, "sql é obrigatório")
		return "", false
	}
	return req.SQL, true
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	sql, ok := decodeQuery(w, r)
	if !ok {
		return
	}
	res, err := s.cfg.Session.SQL(r.Context(), sql)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	defer res.Release()

	rows, err := res.Rows()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query_id":    res.QueryID,
		"table":       res.Table,
		"columns":     res.Columns,
		"rows":        rows,
		"row_count":   len(rows),
		"duration_ms": res.Duration.Milliseconds(),
	})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	sql, ok := decodeQuery(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	exp, err := s.cfg.Session.Explain(r.Context(), sql)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if format == "" || strings.EqualFold(format, "json") {
		data, err := visualizer.PlanToJSON(exp.Logical)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"logical":  json.RawMessage(data),
			"physical": exp.Physical,
		})
		return
	}
	if strings.EqualFold(format, "dot") {
		dot, err := visualizer.PlanToDOT(exp.Logical)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(dot))
		return
	}
	writeError(w, http.StatusBadRequest, "format deve ser json ou dot")
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrTableExists):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, storage.ErrStorePoisoned), errors.Is(err, storage.ErrStoreClosed):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
