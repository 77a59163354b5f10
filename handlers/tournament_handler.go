package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/opencourt/tournament-engine/models"
	"github.com/opencourt/tournament-engine/repositories"
	"github.com/opencourt/tournament-engine/services"
)

type TournamentHandler struct {
	tournamentService *services.TournamentService
}

func NewTournamentHandler(ts *services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: ts}
}

// CreateHandler handles POST /tournaments
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	tournament, err := h.tournamentService.Create(r.Context(), input)
	if err != nil {
		mapServiceError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament})
}

// GetByIDHandler handles GET /tournaments/{tournamentID}
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	tournament, err := h.tournamentService.GetByID(r.Context(), urlParam(r, "tournamentID"))
	if err != nil {
		mapServiceError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament})
}

// ListHandler handles GET /tournaments
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	var filter repositories.ListTournamentsFilter
	query := r.URL.Query()

	if statusStr := query.Get("status"); statusStr != "" {
		status := models.TournamentStatus(statusStr)
		filter.Status = &status
	}
	if formatStr := query.Get("format"); formatStr != "" {
		format := models.TournamentFormat(formatStr)
		filter.Format = &format
	}
	if gameType := query.Get("game_type"); gameType != "" {
		filter.GameType = &gameType
	}
	if locationID := query.Get("location_id"); locationID != "" {
		filter.LocationID = &locationID
	}
	if fromStr := query.Get("starts_after"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			badRequestResponse(w, errors.New("invalid starts_after query parameter"))
			return
		}
		filter.StartsAfter = &from
	}
	if toStr := query.Get("starts_before"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			badRequestResponse(w, errors.New("invalid starts_before query parameter"))
			return
		}
		filter.StartsBefore = &to
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		} else {
			badRequestResponse(w, errors.New("invalid limit query parameter"))
			return
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		} else {
			badRequestResponse(w, errors.New("invalid offset query parameter"))
			return
		}
	}

	tournaments, err := h.tournamentService.List(r.Context(), filter)
	if err != nil {
		mapServiceError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments})
}

// PublishHandler handles POST /tournaments/{tournamentID}/publish
func (h *TournamentHandler) PublishHandler(w http.ResponseWriter, r *http.Request) {
	tournament, err := h.tournamentService.Publish(r.Context(), urlParam(r, "tournamentID"))
	if err != nil {
		mapServiceError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament})
}

// CloseRegistrationHandler handles POST /tournaments/{tournamentID}/close-registration
func (h *TournamentHandler) CloseRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	tournament, err := h.tournamentService.CloseRegistration(r.Context(), urlParam(r, "tournamentID"))
	if err != nil {
		mapServiceError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament})
}

// StartHandler handles POST /tournaments/{tournamentID}/start
func (h *TournamentHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	tournament, err := h.tournamentService.Start(r.Context(), urlParam(r, "tournamentID"))
	if err != nil {
		mapServiceError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament})
}

// CancelHandler handles POST /tournaments/{tournamentID}/cancel
func (h *TournamentHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Reason string `json:"reason"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}
	if input.Reason == "" {
		badRequestResponse(w, errors.New("a cancellation reason is required"))
		return
	}

	tournament, err := h.tournamentService.Cancel(r.Context(), urlParam(r, "tournamentID"), input.Reason)
	if err != nil {
		mapServiceError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament})
}
