package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/opencourt/tournament-engine/models"
	"github.com/opencourt/tournament-engine/services"
)

type MatchHandler struct {
	matchService *services.MatchService
}

func NewMatchHandler(ms *services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

// SubmitResultHandler handles POST /matches/{matchID}/result
func (h *MatchHandler) SubmitResultHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		WinnerID string `json:"winner_id"`
		Score1   int    `json:"score1"`
		Score2   int    `json:"score2"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}
	if input.WinnerID == "" {
		badRequestResponse(w, errors.New("winner_id is required"))
		return
	}

	match, err := h.matchService.SubmitResult(r.Context(), urlParam(r, "matchID"), input.WinnerID, input.Score1, input.Score2)
	if err != nil {
		mapServiceError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"match": match})
}

// GetByIDHandler handles GET /matches/{matchID}
func (h *MatchHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	match, err := h.matchService.GetByID(r.Context(), urlParam(r, "matchID"))
	if err != nil {
		mapServiceError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"match": match})
}

// ListByTournamentHandler handles GET /tournaments/{tournamentID}/matches
func (h *MatchHandler) ListByTournamentHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var round *int
	if roundStr := query.Get("round"); roundStr != "" {
		value, err := strconv.Atoi(roundStr)
		if err != nil || value < 1 {
			badRequestResponse(w, errors.New("invalid round query parameter"))
			return
		}
		round = &value
	}
	var statusFilter *models.MatchStatus
	if statusStr := query.Get("status"); statusStr != "" {
		status := models.MatchStatus(statusStr)
		statusFilter = &status
	}

	matches, err := h.matchService.ListByTournament(r.Context(), urlParam(r, "tournamentID"), round, statusFilter)
	if err != nil {
		mapServiceError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"matches": matches})
}
