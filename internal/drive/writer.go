package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/opsboard/driveexport/internal/render"
)

// Write uploads a rendered payload to Drive and returns the resulting
// file id. When existingFileID is set the file is updated in place;
// for PDF payloads a file deleted out-of-band falls back to a fresh
// create instead of erroring.
func (c *Client) Write(ctx context.Context, folderID string, payload *render.Payload, existingFileID string) (string, error) {
	switch payload.Kind {
	case render.KindRawFile:
		return c.writeRawFile(ctx, folderID, payload, existingFileID)
	case render.KindNativeDocument:
		return c.writeNativeDocument(ctx, folderID, payload, existingFileID)
	case render.KindPDFDocument:
		return c.writePDF(ctx, folderID, payload, existingFileID)
	default:
		return "", &DriveWriteError{Op: "dispatch", Err: fmt.Errorf("unknown payload kind %d", payload.Kind)}
	}
}

// writeRawFile uploads an uploaded file's bytes verbatim.
func (c *Client) writeRawFile(ctx context.Context, folderID string, payload *render.Payload, existingFileID string) (string, error) {
	media := googleapi.ContentType(payload.MIMEType)

	if existingFileID != "" {
		_, err := c.service.Files.Update(existingFileID, &drive.File{}).
			Media(bytes.NewReader(payload.Content), media).
			Fields("id").
			Context(ctx).
			Do()
		if err != nil {
			return "", &DriveWriteError{Op: "update file content", Body: errBody(err), Err: err}
		}
		return existingFileID, nil
	}

	res, err := c.service.Files.Create(&drive.File{
		Name:    payload.Title,
		Parents: []string{folderID},
	}).
		Media(bytes.NewReader(payload.Content), media).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", &DriveWriteError{Op: "create file", Body: errBody(err), Err: err}
	}
	if res.Id == "" {
		return "", &DriveWriteError{Op: "create file", Body: "create response contained no id"}
	}
	return res.Id, nil
}

// writeNativeDocument uploads HTML as an editable native Drive document
// (the provider converts on upload).
func (c *Client) writeNativeDocument(ctx context.Context, folderID string, payload *render.Payload, existingFileID string) (string, error) {
	media := googleapi.ContentType(htmlMIMEType)

	if existingFileID != "" {
		_, err := c.service.Files.Update(existingFileID, &drive.File{Name: payload.Title}).
			Media(strings.NewReader(payload.HTML), media).
			Fields("id").
			Context(ctx).
			Do()
		if err != nil {
			return "", &DriveWriteError{Op: "update document", Body: errBody(err), Err: err}
		}
		return existingFileID, nil
	}

	res, err := c.service.Files.Create(&drive.File{
		Name:     payload.Title,
		MimeType: docMIMEType,
		Parents:  []string{folderID},
	}).
		Media(strings.NewReader(payload.HTML), media).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", &DriveWriteError{Op: "create document", Body: errBody(err), Err: err}
	}
	if res.Id == "" {
		return "", &DriveWriteError{Op: "create document", Body: "create response contained no id"}
	}
	return res.Id, nil
}

// writePDF round-trips HTML through a disposable native document to
// obtain a rendered PDF, then writes the PDF into the target folder.
// The temporary document is deleted even when a later step fails.
func (c *Client) writePDF(ctx context.Context, folderID string, payload *render.Payload, existingFileID string) (fileID string, err error) {
	temp, err := c.service.Files.Create(&drive.File{
		Name:     "_temp_" + payload.Title,
		MimeType: docMIMEType,
	}).
		Media(strings.NewReader(payload.HTML), googleapi.ContentType(htmlMIMEType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", &DriveWriteError{Op: "create temporary document", Body: errBody(err), Err: err}
	}
	if temp.Id == "" {
		return "", &DriveWriteError{Op: "create temporary document", Body: "create response contained no id"}
	}

	defer func() {
		if derr := c.service.Files.Delete(temp.Id).Context(ctx).Do(); derr != nil {
			// Cleanup failure is logged, never surfaced: the export
			// outcome is decided by the steps above.
			log.Printf("WARNING: failed to delete temporary document %s: %v", temp.Id, derr)
		}
	}()

	resp, err := c.service.Files.Export(temp.Id, pdfMIMEType).Context(ctx).Download()
	if err != nil {
		return "", &PdfExportError{Body: errBody(err), Err: err}
	}
	defer resp.Body.Close()

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &PdfExportError{Err: fmt.Errorf("unable to read exported pdf: %w", err)}
	}

	pdfName := payload.Title + ".pdf"

	if existingFileID != "" {
		f, gerr := c.service.Files.Get(existingFileID).Fields("id, trashed").Context(ctx).Do()
		switch {
		case gerr == nil && !f.Trashed:
			_, uerr := c.service.Files.Update(existingFileID, &drive.File{Name: pdfName}).
				Media(bytes.NewReader(pdf), googleapi.ContentType(pdfMIMEType)).
				Fields("id").
				Context(ctx).
				Do()
			if uerr != nil {
				return "", &DriveWriteError{Op: "update pdf", Body: errBody(uerr), Err: uerr}
			}
			return existingFileID, nil
		case gerr != nil && !isNotFound(gerr):
			return "", &DriveWriteError{Op: "verify existing pdf", Body: errBody(gerr), Err: gerr}
		}
		// Existing file was deleted or trashed out-of-band; create fresh.
	}

	res, err := c.service.Files.Create(&drive.File{
		Name:    pdfName,
		Parents: []string{folderID},
	}).
		Media(bytes.NewReader(pdf), googleapi.ContentType(pdfMIMEType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", &DriveWriteError{Op: "create pdf", Body: errBody(err), Err: err}
	}
	if res.Id == "" {
		return "", &DriveWriteError{Op: "create pdf", Body: "create response contained no id"}
	}
	return res.Id, nil
}
