package render

import (
	"fmt"

	"github.com/opsboard/driveexport/internal/model"
)

// TextDisplay renders a text record as a minimal HTML document that
// stays an editable native Drive document.
func TextDisplay(t *model.TextDisplay) (*Payload, error) {
	if t.Name == "" {
		return nil, &RenderError{Field: "name"}
	}

	body := fmt.Sprintf(`<h1>%s</h1><p>%s</p>`, esc(t.Name), esc(t.Description))
	return &Payload{
		Kind:  KindNativeDocument,
		Title: t.Name,
		HTML:  document(t.Name, body),
	}, nil
}

// DirectoryFile wraps an uploaded file's stored bytes and MIME type as
// a pass-through payload. The content fetch happens upstream; rendering
// itself does no I/O.
func DirectoryFile(f *model.DirectoryFile, content []byte) (*Payload, error) {
	if f.Name == "" {
		return nil, &RenderError{Field: "name"}
	}

	mime := f.MIMEType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return &Payload{
		Kind:     KindRawFile,
		Title:    f.Name,
		MIMEType: mime,
		Content:  content,
	}, nil
}
