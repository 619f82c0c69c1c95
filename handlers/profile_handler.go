package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"wattWiseAPI/middleware"
	"wattWiseAPI/services"
)

type ProfileHandler struct {
	reconciler *services.ReconcilerService
}

func NewProfileHandler(reconciler *services.ReconcilerService) *ProfileHandler {
	return &ProfileHandler{
		reconciler: reconciler,
	}
}

// GET /api/v1/profile - The user's points/streak ledger, cached snapshot
// as fallback when the profile service is unreachable.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	rec, err := h.reconciler.Profile(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Profile not found")
		return
	}

	respondWithJSON(w, http.StatusOK, rec)
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
