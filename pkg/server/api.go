package server

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/vango-dev/querysync/internal/errors"
	"github.com/vango-dev/querysync/pkg/history"
	"github.com/vango-dev/querysync/pkg/snapshot"
	"github.com/vango-dev/querysync/pkg/urlsync"
)

// PatchRequest is the body of POST /api/patch.
type PatchRequest struct {
	URL     string         `json:"url"`
	Changes map[string]any `json:"changes"`
	Mode    string         `json:"mode,omitempty"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleRead serves GET /api/read?url=...
func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("url")
	if address == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("Q040").WithDetail("url is required"))
		return
	}

	res, err := urlsync.Apply(r.Context(), address, s.config.Schema, nil, nil, s.engineOptions()...)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// handlePatch serves POST /api/patch.
func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	var req PatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("Q030").WithDetail(err.Error()))
		return
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("Q040").WithDetail("url is required"))
		return
	}

	var patchOpts []urlsync.PatchOption
	if req.Mode != "" {
		mode, err := history.ParseMode(req.Mode)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		patchOpts = append(patchOpts, urlsync.WithMode(mode))
	}

	changes := snapshot.Normalize(s.config.Schema, req.Changes)
	res, err := urlsync.Apply(r.Context(), req.URL, s.config.Schema, []snapshot.Values{changes}, patchOpts, s.engineOptions()...)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) engineOptions() []urlsync.Option {
	opts := make([]urlsync.Option, 0, len(s.config.Options)+2)
	opts = append(opts, s.config.Options...)
	opts = append(opts, urlsync.WithObserver(s.metrics), urlsync.WithLogger(s.logger))
	return opts
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode error", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	resp := ErrorResponse{Code: errors.CodeOf(err), Message: err.Error()}
	s.writeJSON(w, status, resp)
}
