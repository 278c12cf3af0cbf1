package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/nlsql/internal/errs"
	"github.com/koustreak/nlsql/internal/logger"
	"github.com/koustreak/nlsql/internal/service"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

type sqlRequest struct {
	SQL string `json:"sql"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Natural Language to SQL API",
		"version":     s.svc.Version(),
		"description": "Convert natural language questions to SQL queries",
		"status":      "running",
		"environment": s.cfg.Environment,
		"endpoints": map[string]string{
			"health":        "/health",
			"query":         "/query",
			"sql":           "/sql",
			"schema":        "/schema",
			"database_info": "/database-info",
			"databases":     "/databases",
			"preview":       "/tables/{table}/preview",
			"metrics":       "/metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := s.svc.Health(r.Context())
	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req service.QueryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.svc.ProcessQuery(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSQL(w http.ResponseWriter, r *http.Request) {
	var req sqlRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		s.writeError(w, r, errs.New(errs.ErrKindInvalidInput, "sql is required"))
		return
	}
	resp, err := s.svc.ExecuteSQL(r.Context(), req.SQL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.Schema(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSchemaTables returns the structured schema.
func (s *Server) handleSchemaTables(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.Introspect(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDatabaseInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.DatabaseInfo()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDatabases(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"databases": s.svc.Supported()})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, errs.Wrap(errs.ErrKindInvalidInput, "limit must be an integer", err))
			return
		}
		limit = n
	}
	resp, err := s.svc.Preview(r.Context(), chi.URLParam(r, "table"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is empty")
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errs.ErrKindInvalidInput.String(), Detail: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

// statusFor maps an error kind to the HTTP status returned to clients.
func statusFor(kind errs.ErrKind) int {
	switch kind {
	case errs.ErrKindInvalidQuery, errs.ErrKindInvalidInput, errs.ErrKindUnsupportedDialect:
		return http.StatusBadRequest
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindQueryFailed:
		return http.StatusUnprocessableEntity
	case errs.ErrKindGenerationFailed:
		return http.StatusBadGateway
	case errs.ErrKindConnectionFailed, errs.ErrKindClosed:
		return http.StatusServiceUnavailable
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)

	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.ErrorWith("request failed", err, map[string]any{"kind": kind.String()})
	} else {
		log.WarnWith("request rejected", err, map[string]any{"kind": kind.String()})
	}

	writeJSON(w, status, errorBody{Error: kind.String(), Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
