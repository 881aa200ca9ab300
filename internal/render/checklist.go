package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opsboard/driveexport/internal/model"
)

const checkboxGlyph = "&#9744;" // empty ballot box

// Checklist renders a structured checklist as an HTML document destined
// for PDF conversion. Sections and items are ordered by their sort keys;
// items render as checkbox glyphs or ordinal numbers depending on the
// section's display mode, with one level of lettered sub-items under
// numbered items.
func Checklist(c *model.Checklist, b Branding) (*Payload, error) {
	if c.Title == "" {
		return nil, &RenderError{Field: "title"}
	}

	sections := make([]model.ChecklistSection, len(c.Sections))
	copy(sections, c.Sections)
	sort.Slice(sections, func(i, j int) bool { return sections[i].SortOrder < sections[j].SortOrder })

	var sb strings.Builder
	sb.WriteString(headerTable(b, c.Title))

	for _, sec := range sections {
		writeSection(&sb, sec, b)
	}

	return &Payload{
		Kind:  KindPDFDocument,
		Title: c.Title,
		HTML:  document(c.Title, sb.String()),
	}, nil
}

func writeSection(sb *strings.Builder, sec model.ChecklistSection, b Branding) {
	fmt.Fprintf(sb,
		`<div style="border-left:4px solid %s;margin-bottom:18px;">`,
		b.AccentHex)
	fmt.Fprintf(sb,
		`<div style="background-color:#F3F4F6;padding:6px 10px;font-weight:bold;">%s</div>`,
		esc(sec.Title))

	items := make([]model.ChecklistItem, len(sec.Items))
	copy(items, sec.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].SortOrder < items[j].SortOrder })

	numbered := sec.DisplayMode == model.SectionModeNumbered
	for i, item := range items {
		prefix := checkboxGlyph
		if numbered {
			prefix = fmt.Sprintf("%d.", i+1)
		}
		fmt.Fprintf(sb,
			`<div style="padding:4px 10px;">%s %s</div>`,
			prefix, esc(item.Label))

		subs := make([]model.ChecklistItem, len(item.SubItems))
		copy(subs, item.SubItems)
		sort.Slice(subs, func(i, j int) bool { return subs[i].SortOrder < subs[j].SortOrder })

		for j, sub := range subs {
			subPrefix := checkboxGlyph
			if numbered {
				subPrefix = itemLetter(j) + "."
			}
			fmt.Fprintf(sb,
				`<div style="padding:2px 10px 2px 34px;">%s %s</div>`,
				subPrefix, esc(sub.Label))
		}
	}

	sb.WriteString(`</div>`)
}

// itemLetter returns the bijective base-26 label for a zero-based index:
// 0 -> "A", 25 -> "Z", 26 -> "AA".
func itemLetter(i int) string {
	var out []byte
	n := i + 1
	for n > 0 {
		n--
		out = append([]byte{byte('A' + n%26)}, out...)
		n /= 26
	}
	return string(out)
}
