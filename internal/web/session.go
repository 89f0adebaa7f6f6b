package web

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nratajik/resonate/internal/db"
)

const (
	sessionCookieName = "session_id"
	sessionTTL        = 7 * 24 * time.Hour
)

// Sessions manages cookie-backed login sessions persisted in the database.
// Sessions only bind a browser to a user id; OAuth tokens live in their own
// store and are never written to cookies.
type Sessions struct {
	database *db.DB
}

// NewSessions creates a database-backed session manager.
func NewSessions(database *db.DB) *Sessions {
	return &Sessions{database: database}
}

// Create starts a session for userID and returns its id.
func (s *Sessions) Create(ctx context.Context, userID string) (string, error) {
	now := time.Now()
	session := &db.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	}
	if err := s.database.Sessions().Create(ctx, session); err != nil {
		return "", err
	}
	return session.ID, nil
}

// UserFromRequest resolves the request's session cookie to a user id.
// Returns empty when there is no live session.
func (s *Sessions) UserFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	session, err := s.database.Sessions().Get(r.Context(), cookie.Value)
	if err != nil {
		return ""
	}
	return session.UserID
}

// Delete ends the session carried by the request, if any.
func (s *Sessions) Delete(r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return
	}
	_ = s.database.Sessions().Delete(r.Context(), cookie.Value)
}

// SetCookie attaches the session cookie to the response.
func (s *Sessions) SetCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
}

// ClearCookie removes the session cookie from the response.
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
