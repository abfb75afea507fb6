package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"studio/internal/middleware"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userStateDTO `json:"user"`
}

type userStateDTO struct {
	ID        string `json:"id"`
	Credits   int    `json:"credits"`
	Refreshed bool   `json:"refreshed"`
}

var identifierPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._@-]{1,63}$`)

// Login issues a bearer token for the identifier and performs the daily
// credit refresh for that user.
func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	userID := strings.ToLower(strings.TrimSpace(req.Identifier))
	if !identifierPattern.MatchString(userID) {
		a.error(w, http.StatusBadRequest, "bad_request", "identifier must be 2-64 chars of a-z, 0-9, . _ @ -")
		return
	}

	balance, refreshed, err := a.Credits.Initialize(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}

	token, err := middleware.SignJWT(a.JWTSecret, middleware.TokenClaims{
		Sub:    userID,
		Locale: middleware.LocaleFromContext(r.Context()),
		Exp:    time.Now().Add(24 * time.Hour).Unix(),
		Issuer: "studio",
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("sign jwt failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to sign token")
		return
	}

	a.json(w, http.StatusOK, loginResponse{
		Token: token,
		User:  userStateDTO{ID: userID, Credits: balance, Refreshed: refreshed},
	})
}

// Session reports the caller's current credit state, applying the daily
// refresh when a new day has started since the last visit.
func (a *App) Session(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	balance, refreshed, err := a.Credits.Initialize(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, userStateDTO{ID: userID, Credits: balance, Refreshed: refreshed})
}
