package handlers

import (
	"net/http"

	"studio/internal/middleware"
)

type creditsResponse struct {
	Credits int `json:"credits"`
	Max     int `json:"max"`
}

func (a *App) CreditsBalance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	balance, err := a.Credits.Balance(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, creditsResponse{Credits: balance, Max: a.Credits.Max()})
}

// CreditsRefill restores the caller's balance to the daily maximum. This is
// the simulated top-up; no payment is involved.
func (a *App) CreditsRefill(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	balance, err := a.Credits.Refill(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, creditsResponse{Credits: balance, Max: a.Credits.Max()})
}
