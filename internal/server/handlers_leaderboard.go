package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gitlab.com/nandar/payquest/internal/logger"
	"gitlab.com/nandar/payquest/internal/models"
	"gitlab.com/nandar/payquest/internal/ranking"
)

func parseTrack(s string) (string, bool) {
	switch s {
	case "", models.TrackStudent, models.TrackEntrepreneur:
		return s, true
	}
	return "", false
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	period, err := ranking.ParsePeriod(q.Get("period"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "period must be weekly, monthly or all")
		return
	}
	track, ok := parseTrack(q.Get("track"))
	if !ok {
		respondError(w, http.StatusBadRequest, "track must be student or entrepreneur")
		return
	}

	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	search := strings.TrimSpace(q.Get("search"))

	result, err := s.leaderboards.Paginated(r.Context(), period, track, page, perPage, search)
	if err != nil {
		logger.Log.Error().Err(err).Msg("leaderboard query failed")
		respondError(w, http.StatusInternalServerError, "could not compute leaderboard")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleMyStanding(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	participantID, err := strconv.ParseInt(q.Get("participant_id"), 10, 64)
	if err != nil || participantID < 1 {
		respondError(w, http.StatusBadRequest, "participant_id is required")
		return
	}
	period, err := ranking.ParsePeriod(q.Get("period"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "period must be weekly, monthly or all")
		return
	}
	track, ok := parseTrack(q.Get("track"))
	if !ok {
		respondError(w, http.StatusBadRequest, "track must be student or entrepreneur")
		return
	}

	standing, err := s.leaderboards.Top20WithPosition(r.Context(), period, track, participantID)
	if err != nil {
		logger.Log.Error().Err(err).Msg("standing query failed")
		respondError(w, http.StatusInternalServerError, "could not compute standing")
		return
	}
	respondJSON(w, http.StatusOK, standing)
}

type createParticipantRequest struct {
	Name  string `json:"name"`
	Track string `json:"track"`
}

func (s *Server) handleCreateParticipant(w http.ResponseWriter, r *http.Request) {
	var req createParticipantRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	track, ok := parseTrack(req.Track)
	if !ok {
		respondError(w, http.StatusBadRequest, "track must be student or entrepreneur")
		return
	}

	p := &models.Participant{Name: req.Name, Track: track}
	if err := s.participants.Create(r.Context(), p); err != nil {
		logger.Log.Error().Err(err).Msg("participant registration failed")
		respondError(w, http.StatusInternalServerError, "could not register participant")
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
