// Package export orchestrates one Drive export, in order: token,
// target folder, rendered payload, Drive write, reference upsert.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/opsboard/driveexport/internal/auth"
	"github.com/opsboard/driveexport/internal/drive"
	"github.com/opsboard/driveexport/internal/lock"
	"github.com/opsboard/driveexport/internal/model"
	"github.com/opsboard/driveexport/internal/render"
	"github.com/opsboard/driveexport/internal/store"
)

var (
	// ErrEntityNotFound is returned when the target entity cannot be
	// loaded, directly or through a menu-item link.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrNotConnected is returned when the organization has no
	// connected Drive integration.
	ErrNotConnected = errors.New("drive is not connected for this organization")
)

// Request describes one export call. ID may be a menu-item proxy id for
// tool types; resolution happens inside the service but the persisted
// reference stays keyed by this id.
type Request struct {
	Type     model.EntityType
	ID       string
	FolderID string
}

// Result reports a completed export.
type Result struct {
	DriveFileID string
	Ref         *model.DriveFileRef
}

// Service runs the export pipeline.
type Service struct {
	store      *store.Store
	tokens     *auth.TokenManager
	locks      *lock.Manager
	newClient  drive.Factory
	httpClient *http.Client
}

// NewService creates a Service. httpClient fetches directory-file
// content by URL; pass nil to use http.DefaultClient.
func NewService(st *store.Store, tokens *auth.TokenManager, locks *lock.Manager, newClient drive.Factory, httpClient *http.Client) *Service {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Service{
		store:      st,
		tokens:     tokens,
		locks:      locks,
		newClient:  newClient,
		httpClient: httpClient,
	}
}

// Export mirrors one entity onto the organization's linked Drive
// account and records the entity-to-file mapping. The whole call runs
// under a per-entity lock; a concurrent export of the same entity gets
// lock.ErrLocked.
func (s *Service) Export(ctx context.Context, orgID, userID string, req Request) (*Result, error) {
	if err := s.locks.Acquire(ctx, orgID, req.Type, req.ID, userID); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.locks.Release(ctx, orgID, req.Type, req.ID, userID); err != nil {
			fmt.Printf("export: failed to release lock for %s/%s: %v\n", req.Type, req.ID, err)
		}
	}()

	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	integ, err := s.store.GetIntegration(ctx, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load integration: %w", err)
	}
	if !integ.Connected {
		return nil, ErrNotConnected
	}

	token, err := s.tokens.EnsureAccessToken(ctx, integ)
	if err != nil {
		return nil, err
	}

	client, err := s.newClient(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive client: %w", err)
	}

	folderID, err := client.ResolveTargetFolder(ctx, s.store, integ, req.FolderID, req.Type)
	if err != nil {
		return nil, err
	}

	resolvedID, payload, err := s.renderEntity(ctx, org, req)
	if err != nil {
		return nil, err
	}

	var existingFileID string
	if ref, err := s.store.GetReference(ctx, orgID, req.Type, req.ID); err == nil {
		existingFileID = ref.DriveFileID
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load drive file reference: %w", err)
	}

	driveFileID, err := client.Write(ctx, folderID, payload, existingFileID)
	if err != nil {
		return nil, err
	}

	ref, err := s.store.UpsertReference(ctx, orgID, req.Type, req.ID, resolvedID, driveFileID, folderID)
	if err != nil {
		return nil, err
	}

	return &Result{DriveFileID: driveFileID, Ref: ref}, nil
}

// renderEntity resolves the entity (including menu-item indirection for
// tool types) and renders it. It returns the id that was actually
// rendered so the reference upsert can self-heal rows keyed by it.
func (s *Service) renderEntity(ctx context.Context, org *model.Organization, req Request) (string, *render.Payload, error) {
	branding := render.Branding{
		LogoURL:   org.LogoURL,
		AccentHex: render.AccentHex(org.AccentColor),
	}

	switch req.Type {
	case model.EntityChecklist:
		id := req.ID
		c, err := s.store.GetChecklist(ctx, org.ID, id)
		if errors.Is(err, store.ErrNotFound) {
			id = s.resolveToolID(ctx, org.ID, req.ID, req.Type)
			c, err = s.store.GetChecklist(ctx, org.ID, id)
		}
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrEntityNotFound
		}
		if err != nil {
			return "", nil, err
		}
		p, err := render.Checklist(c, branding)
		return id, p, err

	case model.EntityGembaDoc:
		id := req.ID
		g, err := s.store.GetGembaDoc(ctx, org.ID, id)
		if errors.Is(err, store.ErrNotFound) {
			id = s.resolveToolID(ctx, org.ID, req.ID, req.Type)
			g, err = s.store.GetGembaDoc(ctx, org.ID, id)
		}
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrEntityNotFound
		}
		if err != nil {
			return "", nil, err
		}
		p, err := render.GembaDoc(g, branding)
		return id, p, err

	case model.EntityDirectoryFile:
		f, err := s.store.GetDirectoryFile(ctx, org.ID, req.ID)
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrEntityNotFound
		}
		if err != nil {
			return "", nil, err
		}
		content, err := s.fetchFileContent(ctx, f.URL)
		if err != nil {
			return "", nil, err
		}
		p, err := render.DirectoryFile(f, content)
		return req.ID, p, err

	case model.EntityTextDisplay:
		t, err := s.store.GetTextDisplay(ctx, org.ID, req.ID)
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrEntityNotFound
		}
		if err != nil {
			return "", nil, err
		}
		p, err := render.TextDisplay(t)
		return req.ID, p, err

	default:
		return "", nil, fmt.Errorf("unsupported entity type %q", req.Type)
	}
}

// resolveToolID follows the menu-item linkage for tool types: the
// newest non-archived document link wins. When no link exists the
// original id is returned unchanged and the subsequent lookup fails
// with a legitimate not-found.
func (s *Service) resolveToolID(ctx context.Context, orgID, menuItemID string, docType model.EntityType) string {
	link, err := s.store.LatestDocumentLink(ctx, orgID, menuItemID, docType)
	if err != nil {
		return menuItemID
	}
	return link.DocumentID
}

// fetchFileContent downloads an uploaded file's stored bytes.
func (s *Service) fetchFileContent(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build file fetch request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file content: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("file content fetch returned status %d", resp.StatusCode)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}
	return content, nil
}
