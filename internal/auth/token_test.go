package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/opsboard/driveexport/internal/crypto"
	"github.com/opsboard/driveexport/internal/model"
	"github.com/opsboard/driveexport/internal/store"
)

// fakeTokenEndpoint serves the OAuth2 token endpoint and counts calls.
type fakeTokenEndpoint struct {
	srv      *httptest.Server
	calls    atomic.Int32
	status   int
	response string
}

func newFakeTokenEndpoint(status int, response string) *fakeTokenEndpoint {
	f := &fakeTokenEndpoint{status: status, response: response}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		w.Write([]byte(f.response))
	}))
	return f
}

func (f *fakeTokenEndpoint) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint: oauth2.Endpoint{
			TokenURL:  f.srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func seedIntegration(t *testing.T, st *store.Store, integ model.DriveIntegration) {
	t.Helper()
	if err := st.PutIntegration(context.Background(), integ); err != nil {
		t.Fatalf("PutIntegration: %v", err)
	}
}

func TestEnsureAccessToken_ReusesValidToken(t *testing.T) {
	ep := newFakeTokenEndpoint(200, `{"access_token":"should-not-be-used","token_type":"Bearer","expires_in":3600}`)
	defer ep.srv.Close()

	st := store.NewMemory()
	exp := time.Now().Add(2 * time.Minute)
	integ := model.DriveIntegration{
		OrgID:                 "org-1",
		Connected:             true,
		EncryptedRefreshToken: "mock:refresh-1",
		AccessToken:           "stored-token",
		TokenExpiresAt:        &exp,
	}
	seedIntegration(t, st, integ)

	m := NewTokenManager(ep.config(), st, crypto.NewMockEncryptor())
	tok, err := m.EnsureAccessToken(context.Background(), &integ)
	if err != nil {
		t.Fatalf("EnsureAccessToken: %v", err)
	}
	if tok != "stored-token" {
		t.Errorf("expected stored token, got %q", tok)
	}
	if ep.calls.Load() != 0 {
		t.Errorf("token endpoint called %d times, expected 0", ep.calls.Load())
	}
}

func TestEnsureAccessToken_RefreshesNearExpiry(t *testing.T) {
	ep := newFakeTokenEndpoint(200, `{"access_token":"new-token","token_type":"Bearer","expires_in":3600}`)
	defer ep.srv.Close()

	st := store.NewMemory()
	exp := time.Now().Add(30 * time.Second) // inside the refresh skew
	integ := model.DriveIntegration{
		OrgID:                 "org-1",
		Connected:             true,
		EncryptedRefreshToken: "mock:refresh-1",
		AccessToken:           "stale-token",
		TokenExpiresAt:        &exp,
	}
	seedIntegration(t, st, integ)

	m := NewTokenManager(ep.config(), st, crypto.NewMockEncryptor())
	tok, err := m.EnsureAccessToken(context.Background(), &integ)
	if err != nil {
		t.Fatalf("EnsureAccessToken: %v", err)
	}
	if tok != "new-token" {
		t.Errorf("expected refreshed token, got %q", tok)
	}
	if ep.calls.Load() != 1 {
		t.Errorf("token endpoint called %d times, expected 1", ep.calls.Load())
	}

	// The integration is updated in place.
	if integ.AccessToken != "new-token" {
		t.Error("integration not updated in place")
	}
	if integ.TokenExpiresAt == nil || time.Until(*integ.TokenExpiresAt) < 30*time.Minute {
		t.Error("expected expiry roughly an hour out")
	}

	// And the refreshed token is persisted.
	stored, err := st.GetIntegration(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("GetIntegration: %v", err)
	}
	if stored.AccessToken != "new-token" {
		t.Errorf("stored token not updated, got %q", stored.AccessToken)
	}
}

func TestEnsureAccessToken_RefreshesWhenNeverIssued(t *testing.T) {
	ep := newFakeTokenEndpoint(200, `{"access_token":"first-token","token_type":"Bearer","expires_in":3600}`)
	defer ep.srv.Close()

	st := store.NewMemory()
	integ := model.DriveIntegration{
		OrgID:                 "org-1",
		Connected:             true,
		EncryptedRefreshToken: "mock:refresh-1",
	}
	seedIntegration(t, st, integ)

	m := NewTokenManager(ep.config(), st, crypto.NewMockEncryptor())
	tok, err := m.EnsureAccessToken(context.Background(), &integ)
	if err != nil {
		t.Fatalf("EnsureAccessToken: %v", err)
	}
	if tok != "first-token" {
		t.Errorf("expected refreshed token, got %q", tok)
	}
}

func TestEnsureAccessToken_MissingRefreshToken(t *testing.T) {
	ep := newFakeTokenEndpoint(200, `{}`)
	defer ep.srv.Close()

	st := store.NewMemory()
	integ := model.DriveIntegration{OrgID: "org-1", Connected: true}

	m := NewTokenManager(ep.config(), st, crypto.NewMockEncryptor())
	_, err := m.EnsureAccessToken(context.Background(), &integ)
	if !errors.Is(err, ErrMissingRefreshToken) {
		t.Fatalf("expected ErrMissingRefreshToken, got %v", err)
	}
	if ep.calls.Load() != 0 {
		t.Error("token endpoint should not be called without a refresh token")
	}
}

func TestEnsureAccessToken_ProviderRejection(t *testing.T) {
	ep := newFakeTokenEndpoint(400, `{"error":"invalid_grant","error_description":"Token has been revoked."}`)
	defer ep.srv.Close()

	st := store.NewMemory()
	integ := model.DriveIntegration{
		OrgID:                 "org-1",
		Connected:             true,
		EncryptedRefreshToken: "mock:revoked",
	}
	seedIntegration(t, st, integ)

	m := NewTokenManager(ep.config(), st, crypto.NewMockEncryptor())
	_, err := m.EnsureAccessToken(context.Background(), &integ)

	var rErr *TokenRefreshError
	if !errors.As(err, &rErr) {
		t.Fatalf("expected TokenRefreshError, got %v", err)
	}
	if !strings.Contains(rErr.Body, "invalid_grant") {
		t.Errorf("provider body not captured, got %q", rErr.Body)
	}
}

func TestEnsureAccessToken_EmptyAccessToken(t *testing.T) {
	ep := newFakeTokenEndpoint(200, `{"access_token":"","token_type":"Bearer","refresh_token":"r2","expires_in":3600}`)
	defer ep.srv.Close()

	st := store.NewMemory()
	integ := model.DriveIntegration{
		OrgID:                 "org-1",
		Connected:             true,
		EncryptedRefreshToken: "mock:refresh-1",
	}
	seedIntegration(t, st, integ)

	m := NewTokenManager(ep.config(), st, crypto.NewMockEncryptor())
	_, err := m.EnsureAccessToken(context.Background(), &integ)

	var rErr *TokenRefreshError
	if !errors.As(err, &rErr) {
		t.Fatalf("expected TokenRefreshError, got %v", err)
	}
}
