package handlers

import (
	"net/http"
	"time"

	"wattWiseAPI/internal/catalog"
	"wattWiseAPI/internal/schedule"
	"wattWiseAPI/internal/types/challenge"
)

type ChallengeHandler struct {
	catalog *catalog.Catalog
	week    *challenge.Week
}

func NewChallengeHandler(cat *catalog.Catalog, week *challenge.Week) *ChallengeHandler {
	return &ChallengeHandler{
		catalog: cat,
		week:    week,
	}
}

// GET /api/v1/challenges - The active week's challenge schedule
func (h *ChallengeHandler) GetWeek(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.week)
}

// GET /api/v1/challenges/today - Today's challenge, if the week covers today
func (h *ChallengeHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	id, ok := schedule.CurrentChallengeID(time.Now(), h.week.Start)
	if !ok {
		respondWithError(w, http.StatusNotFound, "No challenge scheduled for today")
		return
	}

	respondWithJSON(w, http.StatusOK, h.week.ByID(id))
}

// GET /api/v1/actions - The sustainable action catalog
func (h *ChallengeHandler) GetActions(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"actions": h.catalog.Actions(),
	})
}
