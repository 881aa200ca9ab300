// Package render converts internal entities into transportable
// representations for the Drive writer: HTML documents for structured
// records, pass-through metadata for uploaded files.
package render

import (
	"fmt"
	"html"
	"strings"
)

// Kind distinguishes how the Drive writer must handle a payload.
type Kind int

const (
	// KindPDFDocument is HTML that must be converted to a PDF before
	// upload (checklists, gemba docs).
	KindPDFDocument Kind = iota
	// KindNativeDocument is HTML uploaded as an editable native Drive
	// document (text records).
	KindNativeDocument
	// KindRawFile is an uploaded file's bytes, passed through verbatim.
	KindRawFile
)

// Payload is the ephemeral result of rendering one entity. It exists
// only for the duration of a single export call.
type Payload struct {
	Kind     Kind
	Title    string
	HTML     string // KindPDFDocument, KindNativeDocument
	MIMEType string // KindRawFile
	Content  []byte // KindRawFile
}

// Branding carries the organization's visual identity into rendered
// documents. AccentHex is always a valid "#rrggbb" value; callers build
// it with AccentHex().
type Branding struct {
	LogoURL   string
	AccentHex string
}

// RenderError reports that a required identifying field was absent.
// Missing optional fields never fail a render.
type RenderError struct {
	Field string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("cannot render document: missing required field %q", e.Field)
}

// esc HTML-escapes user-supplied text for embedding in markup.
func esc(s string) string {
	return html.EscapeString(s)
}

// headerTable renders the shared document header: logo left-aligned,
// bold centered title. A missing logo URL omits the image cell content.
func headerTable(b Branding, title string) string {
	var sb strings.Builder
	sb.WriteString(`<table style="width:100%;border-collapse:collapse;margin-bottom:16px;"><tr>`)
	sb.WriteString(`<td style="width:120px;text-align:left;">`)
	if b.LogoURL != "" {
		fmt.Fprintf(&sb, `<img src="%s" style="max-height:48px;" alt="logo"/>`, esc(b.LogoURL))
	}
	sb.WriteString(`</td>`)
	fmt.Fprintf(&sb, `<td style="text-align:center;font-size:22px;font-weight:bold;">%s</td>`, esc(title))
	sb.WriteString(`<td style="width:120px;"></td></tr></table>`)
	return sb.String()
}

// document wraps body markup in a minimal HTML page.
func document(title, body string) string {
	return fmt.Sprintf(
		`<!DOCTYPE html><html><head><meta charset="utf-8"><title>%s</title></head><body style="font-family:Arial,Helvetica,sans-serif;color:#1f2937;">%s</body></html>`,
		esc(title), body)
}
