package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"wattWiseAPI/internal/types/challenge"
	"wattWiseAPI/middleware"
	"wattWiseAPI/services"
)

type ResponseHandler struct {
	reconciler *services.ReconcilerService
	scheduler  *services.SchedulerService
}

func NewResponseHandler(reconciler *services.ReconcilerService, scheduler *services.SchedulerService) *ResponseHandler {
	return &ResponseHandler{
		reconciler: reconciler,
		scheduler:  scheduler,
	}
}

// POST /api/v1/challenges/{id}/participation - Answer "will you take part"
func (h *ResponseHandler) PostParticipation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	h.scheduler.Track(clerkID)

	challengeID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Challenge id must be an integer")
		return
	}

	var req challenge.ParticipationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.reconciler.RespondToParticipation(ctx, clerkID, challengeID, req.Participating)
	if err != nil {
		respondWithError(w, responseErrorStatus(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// POST /api/v1/challenges/{id}/complete - Report completed actions
func (h *ResponseHandler) PostComplete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	h.scheduler.Track(clerkID)

	challengeID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Challenge id must be an integer")
		return
	}

	var req challenge.CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.reconciler.CompleteChallengeActions(ctx, clerkID, challengeID, req.ActionIDs)
	if err != nil {
		respondWithError(w, responseErrorStatus(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func responseErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrUnknownChallenge):
		return http.StatusNotFound
	case errors.Is(err, services.ErrParticipationAlreadySet):
		return http.StatusConflict
	case errors.Is(err, services.ErrEmptyActionList),
		errors.Is(err, services.ErrMixedNoneSelection),
		errors.Is(err, services.ErrUnknownAction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
