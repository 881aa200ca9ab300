// Package auth manages the OAuth2 access-token lifecycle for an
// organization's linked Drive account.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/opsboard/driveexport/internal/crypto"
	"github.com/opsboard/driveexport/internal/model"
	"github.com/opsboard/driveexport/internal/store"
)

// refreshSkew is how close to expiry an access token may get before it
// is refreshed instead of reused.
const refreshSkew = 60 * time.Second

// ErrMissingRefreshToken is returned when the integration has no
// refresh token at all; the organization must reconnect its account.
var ErrMissingRefreshToken = errors.New("drive integration has no refresh token, reconnect required")

// TokenRefreshError reports a failed refresh-token grant. Body carries
// the provider's raw error response for diagnostics.
type TokenRefreshError struct {
	Body string
	Err  error
}

func (e *TokenRefreshError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("token refresh failed: %s", e.Body)
	}
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *TokenRefreshError) Unwrap() error { return e.Err }

// TokenManager produces valid access tokens for Drive integrations,
// refreshing and persisting them as needed.
type TokenManager struct {
	oauthConfig *oauth2.Config
	store       *store.Store
	encryptor   crypto.Encryptor
}

// NewTokenManager creates a TokenManager. The oauth2.Config is built by
// the caller from environment-supplied client credentials.
func NewTokenManager(oauthConfig *oauth2.Config, st *store.Store, encryptor crypto.Encryptor) *TokenManager {
	return &TokenManager{
		oauthConfig: oauthConfig,
		store:       st,
		encryptor:   encryptor,
	}
}

// Config returns the OAuth2 config.
func (m *TokenManager) Config() *oauth2.Config {
	return m.oauthConfig
}

// EnsureAccessToken returns an access token that is valid for at least
// refreshSkew from now. If the stored token is absent, expired or about
// to expire, it performs a refresh-token grant and persists the new
// token and expiry onto the integration row before returning.
//
// The passed integration is updated in place on refresh so callers see
// the fresh token without re-reading the row.
func (m *TokenManager) EnsureAccessToken(ctx context.Context, integ *model.DriveIntegration) (string, error) {
	if integ.EncryptedRefreshToken == "" {
		return "", ErrMissingRefreshToken
	}

	if integ.AccessToken != "" && integ.TokenExpiresAt != nil && time.Until(*integ.TokenExpiresAt) > refreshSkew {
		return integ.AccessToken, nil
	}

	refreshToken, err := m.encryptor.Decrypt(ctx, integ.EncryptedRefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	// A token source seeded with only a refresh token performs the
	// refresh_token grant on the first Token call.
	src := m.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) {
			return "", &TokenRefreshError{Body: string(rErr.Body), Err: err}
		}
		return "", &TokenRefreshError{Err: err}
	}
	if tok.AccessToken == "" {
		return "", &TokenRefreshError{Body: "token response contained no access_token"}
	}

	if err := m.store.SaveIntegrationToken(ctx, integ.OrgID, tok.AccessToken, tok.Expiry); err != nil {
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	integ.AccessToken = tok.AccessToken
	expiry := tok.Expiry
	integ.TokenExpiresAt = &expiry

	return tok.AccessToken, nil
}
