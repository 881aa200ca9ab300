// Package drive performs the Google Drive side of an export: resolving
// destination folders and writing files, including the HTML-to-PDF
// round trip through a temporary native document.
package drive

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	folderMIMEType = "application/vnd.google-apps.folder"
	docMIMEType    = "application/vnd.google-apps.document"
	pdfMIMEType    = "application/pdf"
	htmlMIMEType   = "text/html"
)

// RootFolderName is the sentinel name of the app-managed top-level
// folder on the linked Drive account.
const RootFolderName = "Opsboard"

// Client wraps the Drive v3 service for one authenticated export call.
type Client struct {
	service *drive.Service
}

// NewClient creates a Client from raw client options. Tests use this to
// point the service at a fake Drive server.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create drive service: %v", err)
	}
	return &Client{service: srv}, nil
}

// NewClientWithToken creates a Client authenticated with a bearer
// access token, as produced by the token manager.
func NewClientWithToken(ctx context.Context, accessToken string) (*Client, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return NewClient(ctx, option.WithTokenSource(src))
}

// Factory produces an authenticated Client for an access token. The
// export service uses it so tests can substitute a fake-backed client.
type Factory func(ctx context.Context, accessToken string) (*Client, error)
