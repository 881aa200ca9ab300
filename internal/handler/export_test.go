package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/opsboard/driveexport/internal/auth"
	"github.com/opsboard/driveexport/internal/crypto"
	"github.com/opsboard/driveexport/internal/drive"
	"github.com/opsboard/driveexport/internal/drive/drivetest"
	"github.com/opsboard/driveexport/internal/export"
	"github.com/opsboard/driveexport/internal/lock"
	"github.com/opsboard/driveexport/internal/model"
	"github.com/opsboard/driveexport/internal/store"
)

const testJWTSecret = "test-secret"

type handlerEnv struct {
	store   *store.Store
	fake    *drivetest.Server
	locks   *lock.Manager
	handler *ExportHandler
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemory()
	fake := drivetest.NewServer()
	t.Cleanup(fake.Close)

	if err := st.PutOrganization(ctx, model.Organization{ID: "org-1", Name: "Test Org", AccentColor: "217, 91%, 60%"}); err != nil {
		t.Fatalf("PutOrganization: %v", err)
	}
	if err := st.PutMembership(ctx, model.Membership{OrgID: "org-1", UserID: "admin-1", Role: model.RoleAdmin}); err != nil {
		t.Fatalf("PutMembership: %v", err)
	}
	if err := st.PutMembership(ctx, model.Membership{OrgID: "org-1", UserID: "member-1", Role: "member"}); err != nil {
		t.Fatalf("PutMembership: %v", err)
	}
	exp := time.Now().Add(time.Hour)
	if err := st.PutIntegration(ctx, model.DriveIntegration{
		OrgID:                 "org-1",
		Provider:              "google",
		Connected:             true,
		AccessToken:           "valid-token",
		EncryptedRefreshToken: "mock:refresh-1",
		TokenExpiresAt:        &exp,
	}); err != nil {
		t.Fatalf("PutIntegration: %v", err)
	}
	if err := st.PutTextDisplay(ctx, model.TextDisplay{ID: "td-1", OrgID: "org-1", Name: "Hours", Description: "9 to 5"}); err != nil {
		t.Fatalf("PutTextDisplay: %v", err)
	}

	tokens := auth.NewTokenManager(&oauth2.Config{}, st, crypto.NewMockEncryptor())
	locks := lock.NewManager(nil, "ExportLocks")
	factory := func(ctx context.Context, accessToken string) (*drive.Client, error) {
		return drive.NewClient(ctx, fake.ClientOptions()...)
	}
	svc := export.NewService(st, tokens, locks, factory, nil)

	return &handlerEnv{
		store:   st,
		fake:    fake,
		locks:   locks,
		handler: NewExportHandler(svc, st, testJWTSecret),
	}
}

func signToken(t *testing.T, userID, orgID string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if orgID != "" {
		claims["org"] = orgID
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return token
}

func postRequest(token, body string) events.APIGatewayProxyRequest {
	req := events.APIGatewayProxyRequest{
		HTTPMethod: "POST",
		Headers:    map[string]string{},
		Body:       body,
	}
	if token != "" {
		req.Headers["Authorization"] = "Bearer " + token
	}
	return req
}

func decodeBody(t *testing.T, resp events.APIGatewayProxyResponse) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(resp.Body), &m); err != nil {
		t.Fatalf("response body is not JSON: %v\n%s", err, resp.Body)
	}
	return m
}

func TestExport_Success(t *testing.T) {
	env := newHandlerEnv(t)
	token := signToken(t, "admin-1", "org-1")

	resp, err := env.handler.Export(context.Background(), postRequest(token, `{"type":"text_display","id":"td-1"}`))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, body %s", resp.StatusCode, resp.Body)
	}

	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Error("success flag not set")
	}
	fileID, _ := body["drive_file_id"].(string)
	if fileID == "" {
		t.Fatal("no drive_file_id in response")
	}
	if _, ok := env.fake.GetFile(fileID); !ok {
		t.Errorf("reported file %q does not exist on the fake drive", fileID)
	}
}

func TestExport_GuardClauses(t *testing.T) {
	env := newHandlerEnv(t)

	tests := []struct {
		name       string
		token      string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "no token",
			token:      "",
			body:       `{"type":"text_display","id":"td-1"}`,
			wantStatus: http.StatusUnauthorized,
			wantError:  "Unauthorized",
		},
		{
			name:       "missing org claim",
			token:      signToken(t, "admin-1", ""),
			body:       `{"type":"text_display","id":"td-1"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing organization",
		},
		{
			name:       "malformed body",
			token:      signToken(t, "admin-1", "org-1"),
			body:       `{not json`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
		{
			name:       "missing id",
			token:      signToken(t, "admin-1", "org-1"),
			body:       `{"type":"text_display"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing type or id",
		},
		{
			name:       "unsupported type",
			token:      signToken(t, "admin-1", "org-1"),
			body:       `{"type":"recipe","id":"r-1"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "non-admin",
			token:      signToken(t, "member-1", "org-1"),
			body:       `{"type":"text_display","id":"td-1"}`,
			wantStatus: http.StatusForbidden,
			wantError:  "Forbidden",
		},
		{
			name:       "entity not found",
			token:      signToken(t, "admin-1", "org-1"),
			body:       `{"type":"text_display","id":"nope"}`,
			wantStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := env.handler.Export(context.Background(), postRequest(tt.token, tt.body))
			if err != nil {
				t.Fatalf("Export: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status %d, want %d (body %s)", resp.StatusCode, tt.wantStatus, resp.Body)
			}
			if tt.wantError != "" {
				if body := decodeBody(t, resp); body["error"] != tt.wantError {
					t.Errorf("error %q, want %q", body["error"], tt.wantError)
				}
			}
		})
	}
}

func TestExport_NotConnected(t *testing.T) {
	env := newHandlerEnv(t)
	ctx := context.Background()

	integ, err := env.store.GetIntegration(ctx, "org-1")
	if err != nil {
		t.Fatalf("GetIntegration: %v", err)
	}
	integ.Connected = false
	if err := env.store.PutIntegration(ctx, *integ); err != nil {
		t.Fatalf("PutIntegration: %v", err)
	}

	token := signToken(t, "admin-1", "org-1")
	resp, err := env.handler.Export(ctx, postRequest(token, `{"type":"text_display","id":"td-1"}`))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status %d, want 400", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != "Drive is not connected" {
		t.Errorf("error %q", body["error"])
	}
}

func TestExport_ConcurrentConflict(t *testing.T) {
	env := newHandlerEnv(t)
	ctx := context.Background()

	if err := env.locks.Acquire(ctx, "org-1", model.EntityTextDisplay, "td-1", "other-user"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	token := signToken(t, "admin-1", "org-1")
	resp, err := env.handler.Export(ctx, postRequest(token, `{"type":"text_display","id":"td-1"}`))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status %d, want 409", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != "Export already in progress" {
		t.Errorf("error %q", body["error"])
	}
}

func TestExport_CookieAuth(t *testing.T) {
	env := newHandlerEnv(t)
	token := signToken(t, "admin-1", "org-1")

	req := events.APIGatewayProxyRequest{
		HTTPMethod: "POST",
		Headers:    map[string]string{"Cookie": "theme=dark; session_token=" + token},
		Body:       `{"type":"text_display","id":"td-1"}`,
	}
	resp, err := env.handler.Export(context.Background(), req)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status %d, body %s", resp.StatusCode, resp.Body)
	}
}

func TestResync_MixedResults(t *testing.T) {
	env := newHandlerEnv(t)
	token := signToken(t, "admin-1", "org-1")

	resp, err := env.handler.Resync(context.Background(), postRequest(token, `{"type":"text_display","ids":["td-1","missing"]}`))
	if err != nil {
		t.Fatalf("Resync: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, body %s", resp.StatusCode, resp.Body)
	}

	var body struct {
		Results []export.ItemResult `json:"results"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(body.Results))
	}
	if !body.Results[0].Success || body.Results[0].DriveFileID == "" {
		t.Errorf("first result should succeed: %+v", body.Results[0])
	}
	if body.Results[1].Success || body.Results[1].Error == "" {
		t.Errorf("second result should fail: %+v", body.Results[1])
	}
}

func TestResync_MissingIDs(t *testing.T) {
	env := newHandlerEnv(t)
	token := signToken(t, "admin-1", "org-1")

	resp, err := env.handler.Resync(context.Background(), postRequest(token, `{"type":"text_display","ids":[]}`))
	if err != nil {
		t.Fatalf("Resync: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status %d, want 400", resp.StatusCode)
	}
}

func TestStatus(t *testing.T) {
	env := newHandlerEnv(t)
	token := signToken(t, "member-1", "org-1") // any member may read status

	req := events.APIGatewayProxyRequest{
		HTTPMethod: "GET",
		Headers:    map[string]string{"Authorization": "Bearer " + token},
	}
	resp, err := env.handler.Status(context.Background(), req)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, body %s", resp.StatusCode, resp.Body)
	}
	body := decodeBody(t, resp)
	if body["connected"] != true {
		t.Error("expected connected true")
	}
	if body["provider"] != "google" {
		t.Errorf("provider %q", body["provider"])
	}
}

func TestStatus_NoIntegration(t *testing.T) {
	ctx := context.Background()

	st := store.NewMemory()
	h := NewExportHandler(nil, st, testJWTSecret)

	token := signToken(t, "user-1", "org-2")
	req := events.APIGatewayProxyRequest{
		HTTPMethod: "GET",
		Headers:    map[string]string{"Authorization": "Bearer " + token},
	}
	resp, err := h.Status(ctx, req)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["connected"] != false {
		t.Error("expected connected false")
	}
}

func TestGetClaims_RejectsBadSignature(t *testing.T) {
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin-1",
		"org": "org-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	req := events.APIGatewayProxyRequest{
		Headers: map[string]string{"Authorization": "Bearer " + forged},
	}
	if _, err := GetClaims(req, testJWTSecret); err == nil {
		t.Fatal("expected signature verification to fail")
	}
}

func TestGetClaims_RejectsExpiredToken(t *testing.T) {
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin-1",
		"org": "org-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	req := events.APIGatewayProxyRequest{
		Headers: map[string]string{"Authorization": "Bearer " + expired},
	}
	if _, err := GetClaims(req, testJWTSecret); err == nil {
		t.Fatal("expected expired token to fail")
	}
}
