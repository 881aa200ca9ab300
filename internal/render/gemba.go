package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opsboard/driveexport/internal/model"
)

// GembaDoc renders an SOP gemba document as an HTML document destined
// for PDF conversion: one page per stored page record, each with a
// header and a rows-by-columns grid of captioned images. Grid geometry
// is preserved even when sparsely populated.
func GembaDoc(g *model.GembaDoc, b Branding) (*Payload, error) {
	if g.Title == "" {
		return nil, &RenderError{Field: "title"}
	}

	rows, cols := g.Rows, g.Columns
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}

	pages := make([]model.GembaPage, len(g.Pages))
	copy(pages, g.Pages)
	sort.Slice(pages, func(i, j int) bool { return pages[i].SortOrder < pages[j].SortOrder })

	var sb strings.Builder
	for i, page := range pages {
		if i > 0 {
			sb.WriteString(`<div style="page-break-before:always;"></div>`)
		}
		writeGembaPage(&sb, g, page, i+1, rows, cols, b)
	}

	return &Payload{
		Kind:  KindPDFDocument,
		Title: g.Title,
		HTML:  document(g.Title, sb.String()),
	}, nil
}

func writeGembaPage(sb *strings.Builder, g *model.GembaDoc, page model.GembaPage, pageNum, rows, cols int, b Branding) {
	// Header: title and description on the first page only; the page
	// number appears on every page, accent-colored, right-aligned.
	sb.WriteString(`<table style="width:100%;border-collapse:collapse;margin-bottom:12px;"><tr>`)
	sb.WriteString(`<td style="text-align:left;">`)
	if pageNum == 1 {
		if b.LogoURL != "" {
			fmt.Fprintf(sb, `<img src="%s" style="max-height:40px;vertical-align:middle;margin-right:12px;" alt="logo"/>`, esc(b.LogoURL))
		}
		fmt.Fprintf(sb, `<span style="font-size:20px;font-weight:bold;">%s</span>`, esc(g.Title))
		if g.Description != "" {
			fmt.Fprintf(sb, `<div style="font-size:12px;color:#6B7280;">%s</div>`, esc(g.Description))
		}
	}
	sb.WriteString(`</td>`)
	fmt.Fprintf(sb, `<td style="text-align:right;color:%s;font-weight:bold;">%d</td>`, b.AccentHex, pageNum)
	sb.WriteString(`</tr></table>`)

	// Cells indexed by row-major position; unpopulated positions render
	// as blank table cells so the grid keeps its shape.
	byPos := make(map[int]model.GembaCell, len(page.Cells))
	for _, cell := range page.Cells {
		byPos[cell.Position] = cell
	}

	cellWidth := 100 / cols
	sb.WriteString(`<table style="width:100%;border-collapse:collapse;table-layout:fixed;">`)
	for r := 0; r < rows; r++ {
		sb.WriteString(`<tr>`)
		for c := 0; c < cols; c++ {
			pos := r*cols + c
			fmt.Fprintf(sb, `<td style="width:%d%%;border:1px solid #E5E7EB;padding:8px;vertical-align:top;">`, cellWidth)
			if cell, ok := byPos[pos]; ok {
				fmt.Fprintf(sb,
					`<span style="display:inline-block;background-color:%s;color:#ffffff;border-radius:50%%;width:22px;height:22px;text-align:center;line-height:22px;font-size:12px;">%d</span>`,
					b.AccentHex, pos+1)
				if cell.ImageURL != "" {
					fmt.Fprintf(sb, `<div><img src="%s" style="max-width:100%%;margin-top:4px;"/></div>`, esc(cell.ImageURL))
				}
				if cell.Caption != "" {
					fmt.Fprintf(sb, `<div style="font-size:12px;margin-top:4px;">%s</div>`, esc(cell.Caption))
				}
			}
			sb.WriteString(`</td>`)
		}
		sb.WriteString(`</tr>`)
	}
	sb.WriteString(`</table>`)
}
