package render

import (
	"strings"

	"scribe/domain/content"
	"scribe/domain/core/valueobjects"
)

// MarkdownRenderer writes GitHub-flavored Markdown.
type MarkdownRenderer struct{}

func NewMarkdownRenderer() *MarkdownRenderer { return &MarkdownRenderer{} }

func (r *MarkdownRenderer) Format() valueobjects.ExportFormat { return valueobjects.FormatMarkdown }

func (r *MarkdownRenderer) Render(doc *Document, opts valueobjects.ExportOptions) (*Artifact, error) {
	o, ok := opts.(valueobjects.MarkdownOptions)
	if !ok {
		o = valueobjects.DefaultExportOptions(valueobjects.FormatMarkdown).(valueobjects.MarkdownOptions)
	}

	w := &lineWriter{}
	w.line("# " + doc.Title)
	w.blank()
	if doc.Description != "" {
		w.line("> " + doc.Description)
		w.blank()
	}

	for _, b := range doc.Boards {
		if doc.MultiBoard() {
			w.line("## " + b.Label())
			w.blank()
		}
		writeMarkdownBoard(w, b.Content, o)
	}

	return artifactFor(valueobjects.FormatMarkdown, []byte(w.String())), nil
}

func writeMarkdownBoard(w *lineWriter, c *content.StructuredContent, o valueobjects.MarkdownOptions) {
	for _, s := range c.Sections {
		writeMarkdownSection(w, s, 3)
	}

	if len(c.Tables) > 0 {
		w.line("### Tables")
		w.blank()
		for _, t := range c.Tables {
			writeMarkdownTable(w, t)
		}
	}

	if len(c.ActionItems) > 0 {
		w.line("### Action Items")
		w.blank()
		for _, item := range c.ActionItems {
			w.line(markdownTask(item))
		}
		w.blank()
	}

	if len(c.KeyPoints) > 0 {
		w.line("### Key Points")
		w.blank()
		for _, p := range c.KeyPoints {
			w.line("- " + p)
		}
		w.blank()
	}

	if o.IncludeDiagrams && len(c.Diagrams) > 0 {
		w.line("### Diagrams")
		w.blank()
		for _, d := range c.Diagrams {
			w.line("#### " + titleCase(orDefault(d.Type, "diagram")))
			w.blank()
			if d.Description != "" {
				w.line(d.Description)
				w.blank()
			}
			for _, e := range d.Elements {
				w.line("- " + e)
			}
			if len(d.Elements) > 0 {
				w.blank()
			}
		}
	}
}

func writeMarkdownSection(w *lineWriter, s content.Section, level int) {
	if level > 6 {
		level = 6
	}
	w.line(strings.Repeat("#", level) + " " + orDefault(s.Heading, "Section"))
	w.blank()
	if strings.TrimSpace(s.Content) != "" {
		w.line(s.Content)
		w.blank()
	}
	for _, sub := range s.Subsections {
		writeMarkdownSection(w, sub, level+1)
	}
}

func writeMarkdownTable(w *lineWriter, t content.Table) {
	width := tableWidth(t)
	if width == 0 {
		return
	}
	if t.Title != "" {
		w.line("#### " + t.Title)
		w.blank()
	}

	w.line(pipeRow(headers(t, width)))
	sep := make([]string, width)
	for i := range sep {
		sep[i] = "---"
	}
	w.line(pipeRow(sep))
	for _, row := range t.Rows {
		w.line(pipeRow(cells(row, width)))
	}
	w.blank()
}

func pipeRow(values []string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		v = strings.ReplaceAll(v, "|", `\|`)
		escaped[i] = strings.ReplaceAll(v, "\n", "<br>")
	}
	return "| " + strings.Join(escaped, " | ") + " |"
}

func markdownTask(item content.ActionItem) string {
	line := "- [ ] " + item.Task
	if a := strings.TrimSpace(item.Assignee); a != "" {
		line += " (@" + a + ")"
	}
	return line
}

// lineWriter accumulates newline-terminated lines.
type lineWriter struct {
	sb strings.Builder
}

func (w *lineWriter) line(s string) {
	w.sb.WriteString(s)
	w.sb.WriteByte('\n')
}

func (w *lineWriter) blank() { w.sb.WriteByte('\n') }

func (w *lineWriter) String() string { return w.sb.String() }
