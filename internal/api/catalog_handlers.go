package api

import (
	"encoding/json/v2"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tartilapp/tartil-server/internal/catalog"
	"github.com/tartilapp/tartil-server/internal/domain"
	"github.com/tartilapp/tartil-server/internal/http/response"
)

// handleListReciters returns catalog entries, optionally filtered by
// ?tradition=, ?q= with ?lang= (name search) and ?timed=true.
func (s *Server) handleListReciters(w http.ResponseWriter, r *http.Request) {
	opts := catalog.ListOptions{
		Tradition: domain.Tradition(r.URL.Query().Get("tradition")),
		Query:     r.URL.Query().Get("q"),
		Lang:      r.URL.Query().Get("lang"),
		TimedOnly: r.URL.Query().Get("timed") == "true",
	}

	response.Success(w, s.catalogService.List(opts), s.logger)
}

// handleGetReciter returns one catalog entry.
func (s *Server) handleGetReciter(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid reciter id", s.logger)
		return
	}

	reciter, err := s.catalogService.ByID(id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, reciter, s.logger)
}

// handleGetSelection returns the active reciter.
func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	response.Success(w, s.catalogService.CurrentSelection(r.Context()), s.logger)
}

// SetSelectionRequest selects the active reciter.
type SetSelectionRequest struct {
	ReciterID int `json:"reciter_id"`
}

// handleSetSelection changes the active reciter.
func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	var req SetSelectionRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	reciter, err := s.catalogService.Select(r.Context(), req.ReciterID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, reciter, s.logger)
}
