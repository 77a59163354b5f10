package handlers

import (
	"errors"
	"net/http"

	"github.com/opencourt/tournament-engine/models"
	"github.com/opencourt/tournament-engine/services"
)

type ParticipantHandler struct {
	registrationService *services.RegistrationService
}

func NewParticipantHandler(rs *services.RegistrationService) *ParticipantHandler {
	return &ParticipantHandler{registrationService: rs}
}

// RegisterHandler handles POST /tournaments/{tournamentID}/participants
func (h *ParticipantHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		UserID string `json:"user_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}
	if input.UserID == "" {
		badRequestResponse(w, errors.New("user_id is required"))
		return
	}

	participant, err := h.registrationService.Register(r.Context(), urlParam(r, "tournamentID"), input.UserID)
	if err != nil {
		mapServiceError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusCreated, jsonResponse{"participant": participant})
}

// WithdrawHandler handles DELETE /tournaments/{tournamentID}/participants/{userID}
func (h *ParticipantHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	err := h.registrationService.Withdraw(r.Context(), urlParam(r, "tournamentID"), urlParam(r, "userID"))
	if err != nil {
		mapServiceError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"withdrawn": true})
}

// ListHandler handles GET /tournaments/{tournamentID}/participants
func (h *ParticipantHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	var statusFilter *models.ParticipantStatus
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := models.ParticipantStatus(statusStr)
		statusFilter = &status
	}

	participants, err := h.registrationService.ListByTournament(r.Context(), urlParam(r, "tournamentID"), statusFilter)
	if err != nil {
		mapServiceError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"participants": participants})
}
