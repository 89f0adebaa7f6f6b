package web

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	spotifysdk "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"

	"github.com/nratajik/resonate/internal/auth"
	"github.com/nratajik/resonate/internal/db"
	"github.com/nratajik/resonate/internal/insights"
	"github.com/nratajik/resonate/internal/sync"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	oauth    *spotifyauth.Authenticator
	sessions *Sessions
	provider *auth.Provider
	database *db.DB
	syncSvc  *sync.Service
	insights *insights.Service
	logger   *log.Logger
}

// NewHandlers wires the handler set.
func NewHandlers(
	oauth *spotifyauth.Authenticator,
	sessions *Sessions,
	provider *auth.Provider,
	database *db.DB,
	syncSvc *sync.Service,
	insightsSvc *insights.Service,
	logger *log.Logger,
) *Handlers {
	return &Handlers{
		oauth:    oauth,
		sessions: sessions,
		provider: provider,
		database: database,
		syncSvc:  syncSvc,
		insights: insightsSvc,
		logger:   logger,
	}
}

// Login initiates the Spotify OAuth flow (GET /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateOAuthState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate state")
		return
	}

	// State round-trips through a short-lived cookie for CSRF validation.
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})

	http.Redirect(w, r, h.oauth.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback completes the OAuth flow (GET /callback): exchanges the code,
// stores the token, upserts the user, and starts a session.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing state cookie")
		return
	}
	state := r.URL.Query().Get("state")
	if state != stateCookie.Value {
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("authorization error: %s", errMsg))
		return
	}

	token, err := h.oauth.Token(r.Context(), state, r)
	if err != nil {
		h.logger.Error("token exchange failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to exchange code")
		return
	}

	client := spotifysdk.New(h.oauth.Client(r.Context(), token))
	profile, err := client.CurrentUser(r.Context())
	if err != nil {
		h.logger.Error("profile fetch failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	userID := string(profile.ID)
	user := &db.User{
		ID:          userID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
	}
	if profile.Product != "" {
		product := profile.Product
		user.Product = &product
	}
	if err := h.database.Users().Upsert(r.Context(), user); err != nil {
		h.logger.Error("user upsert failed", "user", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to store user")
		return
	}
	if err := h.provider.SaveToken(r.Context(), userID, token); err != nil {
		h.logger.Error("token store failed", "user", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to store token")
		return
	}

	sessionID, err := h.sessions.Create(r.Context(), userID)
	if err != nil {
		h.logger.Error("session create failed", "user", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	h.sessions.SetCookie(w, sessionID)

	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// Logout ends the session (POST /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(r)
	h.sessions.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the logged-in user's profile (GET /api/me).
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	user, err := h.database.Users().Get(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":          user.ID,
		"displayName": user.DisplayName,
		"product":     user.Product,
		"lastSyncAt":  user.LastSyncAt,
	})
}

// Sync runs a listening-history sync for the logged-in user (POST /api/sync).
func (h *Handlers) Sync(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)

	result, err := h.syncSvc.SyncForUser(r.Context(), userID)
	switch {
	case errors.Is(err, sync.ErrPermissionsMissing):
		writeError(w, http.StatusForbidden, "listening history access not granted, reconnect your account")
		return
	case errors.Is(err, auth.ErrNoToken), errors.Is(err, auth.ErrReauthRequired):
		writeError(w, http.StatusUnauthorized, "reconnect your Spotify account")
		return
	case err != nil:
		h.logger.Error("sync failed", "user", userID, "err", err)
		writeError(w, http.StatusBadGateway, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Insights returns a live-insights snapshot (GET /api/insights).
func (h *Handlers) Insights(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)

	snapshot, err := h.insights.GetLiveInsights(r.Context(), userID)
	switch {
	case errors.Is(err, auth.ErrNoToken), errors.Is(err, auth.ErrReauthRequired):
		writeError(w, http.StatusUnauthorized, "reconnect your Spotify account")
		return
	case err != nil:
		h.logger.Error("insights failed", "user", userID, "err", err)
		writeError(w, http.StatusBadGateway, "insights unavailable")
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func generateOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
