// Package auth provides access tokens for Spotify API calls, refreshing
// them through OAuth when they expire.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	oauthspotify "golang.org/x/oauth2/spotify"

	"github.com/nratajik/resonate/internal/cache"
	"github.com/nratajik/resonate/internal/db"
)

// Sentinel errors.
var (
	// ErrNoToken is returned when a user has no stored tokens at all.
	ErrNoToken = errors.New("no stored token for user")

	// ErrReauthRequired is returned when a refresh fails and the user must
	// re-run the OAuth flow.
	ErrReauthRequired = errors.New("token refresh failed, re-authentication required")
)

// expiryMargin is subtracted from a token's lifetime so we never hand out
// a token about to expire mid-request.
const expiryMargin = 30 * time.Second

// TokenProvider supplies a valid access token for a user.
type TokenProvider interface {
	GetValidAccessToken(ctx context.Context, userID string) (string, error)
}

// TokenStore is the persistence surface the provider needs.
type TokenStore interface {
	Get(ctx context.Context, userID string) (*db.Token, error)
	Upsert(ctx context.Context, token *db.Token) error
}

// Provider implements TokenProvider backed by stored refresh tokens.
// Valid access tokens are memoized in an injected TTL cache so concurrent
// callers don't each hit the database.
type Provider struct {
	store TokenStore
	cfg   *oauth2.Config
	cache *cache.TTL[string, string]
	now   func() time.Time
}

// NewProvider creates a token provider for the given OAuth client
// credentials.
func NewProvider(store TokenStore, clientID, clientSecret string) *Provider {
	return &Provider{
		store: store,
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauthspotify.Endpoint,
		},
		cache: cache.New[string, string](time.Minute),
		now:   time.Now,
	}
}

// GetValidAccessToken returns a usable access token for userID, refreshing
// through OAuth if the stored one has expired.
//
// Returns ErrNoToken when the user never authorized, and ErrReauthRequired
// when the refresh token is no longer accepted.
func (p *Provider) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	if token, ok := p.cache.Get(userID); ok {
		return token, nil
	}

	stored, err := p.store.Get(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("loading stored token: %w", err)
	}

	if p.now().Add(expiryMargin).Before(stored.TokenExpiry) {
		p.cacheToken(userID, stored.AccessToken, stored.TokenExpiry)
		return stored.AccessToken, nil
	}

	if stored.RefreshToken == "" {
		return "", ErrReauthRequired
	}

	refreshed, err := p.cfg.TokenSource(ctx, &oauth2.Token{
		RefreshToken: stored.RefreshToken,
	}).Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrReauthRequired, err)
	}

	if err := p.store.Upsert(ctx, &db.Token{
		UserID:       userID,
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
		TokenExpiry:  refreshed.Expiry,
	}); err != nil {
		return "", fmt.Errorf("persisting refreshed token: %w", err)
	}

	p.cacheToken(userID, refreshed.AccessToken, refreshed.Expiry)
	return refreshed.AccessToken, nil
}

// SaveToken stores a freshly exchanged OAuth token for userID.
func (p *Provider) SaveToken(ctx context.Context, userID string, token *oauth2.Token) error {
	err := p.store.Upsert(ctx, &db.Token{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry,
	})
	if err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	p.cacheToken(userID, token.AccessToken, token.Expiry)
	return nil
}

func (p *Provider) cacheToken(userID, accessToken string, expiry time.Time) {
	ttl := expiry.Sub(p.now()) - expiryMargin
	p.cache.SetWithTTL(userID, accessToken, ttl)
}
