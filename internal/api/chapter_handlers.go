package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tartilapp/tartil-server/internal/http/response"
	"github.com/tartilapp/tartil-server/internal/mushaf"
)

// handleListChapters returns the full chapter metadata table.
func (s *Server) handleListChapters(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, mushaf.All(), s.logger)
}

// handleGetChapter returns metadata for one chapter.
func (s *Server) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		response.BadRequest(w, "invalid chapter number", s.logger)
		return
	}

	chapter, err := mushaf.ByNumber(number)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, chapter, s.logger)
}
