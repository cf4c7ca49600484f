package api

import (
	"encoding/json/v2"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tartilapp/tartil-server/internal/http/response"
)

// handleGetChapterTiming returns the full verse timing table for one
// chapter of one reciter.
func (s *Server) handleGetChapterTiming(w http.ResponseWriter, r *http.Request) {
	reciterID, err := strconv.Atoi(chi.URLParam(r, "reciterID"))
	if err != nil {
		response.BadRequest(w, "invalid reciter id", s.logger)
		return
	}
	chapter, err := strconv.Atoi(chi.URLParam(r, "chapter"))
	if err != nil {
		response.BadRequest(w, "invalid chapter number", s.logger)
		return
	}

	table, err := s.timingIndex.ChapterTable(r.Context(), reciterID, chapter)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, table, s.logger)
}

// PreloadRequest lists the chapters to warm up.
type PreloadRequest struct {
	Chapters []int `json:"chapters"`
}

// handlePreloadTimings warms the timing cache for a reciter.
func (s *Server) handlePreloadTimings(w http.ResponseWriter, r *http.Request) {
	reciterID, err := strconv.Atoi(chi.URLParam(r, "reciterID"))
	if err != nil {
		response.BadRequest(w, "invalid reciter id", s.logger)
		return
	}

	var req PreloadRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if len(req.Chapters) == 0 {
		response.BadRequest(w, "no chapters given", s.logger)
		return
	}

	if err := s.timingIndex.Preload(r.Context(), reciterID, req.Chapters); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Accepted(w, map[string]int{"preloaded": len(req.Chapters)}, s.logger)
}

// handleClearTimingCache drops all cached timing tables.
func (s *Server) handleClearTimingCache(w http.ResponseWriter, _ *http.Request) {
	s.timingIndex.ClearCache()
	response.NoContent(w)
}
