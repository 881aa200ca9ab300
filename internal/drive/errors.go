package drive

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// FolderResolutionError reports a failed folder lookup or creation.
type FolderResolutionError struct {
	Op  string
	Err error
}

func (e *FolderResolutionError) Error() string {
	return fmt.Sprintf("folder resolution failed (%s): %v", e.Op, e.Err)
}

func (e *FolderResolutionError) Unwrap() error { return e.Err }

// DriveWriteError reports a failed Drive write. Body carries the raw
// provider response for diagnostics.
type DriveWriteError struct {
	Op   string
	Body string
	Err  error
}

func (e *DriveWriteError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("drive write failed (%s): %s", e.Op, e.Body)
	}
	return fmt.Sprintf("drive write failed (%s): %v", e.Op, e.Err)
}

func (e *DriveWriteError) Unwrap() error { return e.Err }

// PdfExportError reports a failed PDF export of the temporary native
// document.
type PdfExportError struct {
	Body string
	Err  error
}

func (e *PdfExportError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("pdf export failed: %s", e.Body)
	}
	return fmt.Sprintf("pdf export failed: %v", e.Err)
}

func (e *PdfExportError) Unwrap() error { return e.Err }

// isNotFound reports whether the provider returned a 404.
func isNotFound(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == 404
	}
	return false
}

// errBody extracts the raw response body from a provider error, if any.
func errBody(err error) string {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Body
	}
	return ""
}
