package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/tartilapp/tartil-server/internal/domain"
	"github.com/tartilapp/tartil-server/internal/errors"
	"github.com/tartilapp/tartil-server/internal/http/response"
	"github.com/tartilapp/tartil-server/internal/session"
	"github.com/tartilapp/tartil-server/internal/store"
)

// handleGetSession returns the latest session snapshot. Before anything
// has been broadcast the session is idle, seeded from stored preferences.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if event, ok := s.hub.LatestSnapshot(); ok {
		response.Success(w, event.Data, s.logger)
		return
	}

	settings, err := s.store.GetOrCreatePlayerSettings(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, domain.IdleSnapshot(settings), s.logger)
}

// handleCommand dispatches one observer command.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd session.Command
	if err := json.UnmarshalRead(r.Body, &cmd); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	result, err := s.sessionService.Dispatch(r.Context(), cmd)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, result, s.logger)
}

// SeekVerseRequest names the verse to jump to.
type SeekVerseRequest struct {
	Verse int `json:"verse"`
}

// handleSeekVerse jumps playback to the start of a verse.
func (s *Server) handleSeekVerse(w http.ResponseWriter, r *http.Request) {
	var req SeekVerseRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	s.dispatchVerseCommand(w, r, session.Command{Action: session.ActionSeekVerse, Verse: req.Verse})
}

// handleNextVerse advances playback to the next verse.
func (s *Server) handleNextVerse(w http.ResponseWriter, r *http.Request) {
	s.dispatchVerseCommand(w, r, session.Command{Action: session.ActionNextVerse})
}

// handlePreviousVerse moves playback back one verse.
func (s *Server) handlePreviousVerse(w http.ResponseWriter, r *http.Request) {
	s.dispatchVerseCommand(w, r, session.Command{Action: session.ActionPreviousVerse})
}

func (s *Server) dispatchVerseCommand(w http.ResponseWriter, r *http.Request, cmd session.Command) {
	result, err := s.sessionService.Dispatch(r.Context(), cmd)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, result, s.logger)
}

// handleGetResumePoint returns the saved playback position, if any.
func (s *Server) handleGetResumePoint(w http.ResponseWriter, r *http.Request) {
	point, err := s.store.GetResumePoint(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrResumePointNotFound) {
			response.NotFound(w, "no resume point saved", s.logger)
			return
		}
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, point, s.logger)
}
