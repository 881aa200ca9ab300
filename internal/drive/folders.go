package drive

import (
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"

	"github.com/opsboard/driveexport/internal/model"
)

// RootFolderCache persists the resolved root folder back onto the
// organization's integration row.
type RootFolderCache interface {
	SaveIntegrationRootFolder(ctx context.Context, orgID, folderID, folderName string) error
}

// ResolveTargetFolder produces the Drive folder an export writes into.
// An explicit folder id supplied by the caller is used verbatim with no
// validation; a downstream write failure surfaces naturally. Otherwise
// the app-managed root folder and the entity type's category subfolder
// are resolved with nested find-or-create steps.
func (c *Client) ResolveTargetFolder(ctx context.Context, cache RootFolderCache, integ *model.DriveIntegration, explicitFolderID string, entityType model.EntityType) (string, error) {
	if explicitFolderID != "" {
		return explicitFolderID, nil
	}

	rootID, err := c.ensureRootFolder(ctx, cache, integ)
	if err != nil {
		return "", err
	}

	return c.ensureSubfolder(ctx, rootID, entityType.CategoryFolderName())
}

// ensureRootFolder reuses the cached root folder if it still exists and
// is not trashed, otherwise finds or creates the sentinel-named folder
// at the Drive root and caches its id on the integration row.
func (c *Client) ensureRootFolder(ctx context.Context, cache RootFolderCache, integ *model.DriveIntegration) (string, error) {
	if integ.RootFolderID != "" {
		f, err := c.service.Files.Get(integ.RootFolderID).Fields("id, trashed").Context(ctx).Do()
		if err == nil && !f.Trashed {
			return f.Id, nil
		}
		if err != nil && !isNotFound(err) {
			return "", &FolderResolutionError{Op: "verify cached root folder", Err: err}
		}
		// Cached folder was deleted or trashed out-of-band; re-resolve.
	}

	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and 'root' in parents and trashed = false", RootFolderName, folderMIMEType)
	r, err := c.service.Files.List().Q(q).Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return "", &FolderResolutionError{Op: "search root folder", Err: err}
	}

	var rootID string
	if len(r.Files) > 0 {
		rootID = r.Files[0].Id
	} else {
		created, err := c.createFolder(ctx, RootFolderName, "root")
		if err != nil {
			return "", &FolderResolutionError{Op: "create root folder", Err: err}
		}
		rootID = created
	}

	if err := cache.SaveIntegrationRootFolder(ctx, integ.OrgID, rootID, RootFolderName); err != nil {
		return "", &FolderResolutionError{Op: "cache root folder", Err: err}
	}
	integ.RootFolderID = rootID
	integ.RootFolderName = RootFolderName

	return rootID, nil
}

// ensureSubfolder finds or creates a category subfolder under the root.
// Only the first search match is used; pre-existing duplicate folders
// are tolerated.
func (c *Client) ensureSubfolder(ctx context.Context, parentID, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and '%s' in parents and trashed = false", name, folderMIMEType, parentID)
	r, err := c.service.Files.List().Q(q).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", &FolderResolutionError{Op: "search category folder", Err: err}
	}
	if len(r.Files) > 0 {
		return r.Files[0].Id, nil
	}

	id, err := c.createFolder(ctx, name, parentID)
	if err != nil {
		return "", &FolderResolutionError{Op: "create category folder", Err: err}
	}
	return id, nil
}

func (c *Client) createFolder(ctx context.Context, name, parentID string) (string, error) {
	f := &drive.File{
		Name:     name,
		MimeType: folderMIMEType,
		Parents:  []string{parentID},
	}
	res, err := c.service.Files.Create(f).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create folder %q: %w", name, err)
	}
	if res.Id == "" {
		return "", fmt.Errorf("folder create for %q returned no id", name)
	}
	return res.Id, nil
}
