package render

import (
	"fmt"
	"strings"

	"scribe/domain/content"
	"scribe/domain/core/valueobjects"
)

// ConfluenceRenderer writes Confluence wiki markup.
type ConfluenceRenderer struct{}

func NewConfluenceRenderer() *ConfluenceRenderer { return &ConfluenceRenderer{} }

func (r *ConfluenceRenderer) Format() valueobjects.ExportFormat {
	return valueobjects.FormatConfluence
}

func (r *ConfluenceRenderer) Render(doc *Document, opts valueobjects.ExportOptions) (*Artifact, error) {
	o, ok := opts.(valueobjects.ConfluenceOptions)
	if !ok {
		o = valueobjects.DefaultExportOptions(valueobjects.FormatConfluence).(valueobjects.ConfluenceOptions)
	}

	w := &lineWriter{}
	w.line("h1. " + doc.Title)
	w.blank()

	if o.IncludeMacros {
		w.line("{info}")
		w.line("*Generated:* " + doc.GeneratedAt.Format("2006-01-02 15:04"))
		w.line("*Project:* " + doc.Title)
		if doc.Description != "" {
			w.line("*Description:* " + doc.Description)
		}
		w.line(fmt.Sprintf("*Whiteboards:* %d", len(doc.Boards)))
		w.line("{info}")
		w.blank()
	} else if doc.Description != "" {
		w.line(doc.Description)
		w.blank()
	}

	for _, b := range doc.Boards {
		if doc.MultiBoard() {
			w.line("h2. " + b.Label())
			w.line("----")
			w.blank()
		}
		writeConfluenceBoard(w, b.Content, o.IncludeMacros)
	}

	return artifactFor(valueobjects.FormatConfluence, []byte(w.String())), nil
}

func writeConfluenceBoard(w *lineWriter, c *content.StructuredContent, macros bool) {
	for _, s := range c.Sections {
		writeConfluenceSection(w, s, 3)
	}

	for _, t := range c.Tables {
		width := tableWidth(t)
		if width == 0 {
			continue
		}
		if t.Title != "" {
			w.line("h4. " + t.Title)
			w.blank()
		}
		w.line("|| " + strings.Join(escapeWikiCells(headers(t, width)), " || ") + " ||")
		for _, row := range t.Rows {
			w.line("| " + strings.Join(escapeWikiCells(cells(row, width)), " | ") + " |")
		}
		w.blank()
	}

	if len(c.ActionItems) > 0 {
		w.line("h3. Action Items")
		w.blank()
		if macros {
			w.line("{task-list}")
		}
		for _, item := range c.ActionItems {
			line := "* " + item.Task
			if a := strings.TrimSpace(item.Assignee); a != "" {
				if macros {
					line += " - [~" + a + "]"
				} else {
					line += " (" + a + ")"
				}
			}
			w.line(line)
		}
		if macros {
			w.line("{task-list}")
		}
		w.blank()
	}

	if len(c.KeyPoints) > 0 {
		if macros {
			w.line("{note}")
			w.line("h4. Key Points")
		} else {
			w.line("h3. Key Points")
			w.blank()
		}
		for _, p := range c.KeyPoints {
			w.line("* " + p)
		}
		if macros {
			w.line("{note}")
		}
		w.blank()
	}

	for _, d := range c.Diagrams {
		kind := titleCase(orDefault(d.Type, "diagram"))
		if macros {
			w.line("{panel:title=" + kind + "}")
		} else {
			w.line("h4. " + kind)
		}
		if d.Description != "" {
			w.line(d.Description)
		}
		for _, e := range d.Elements {
			w.line("* " + e)
		}
		if macros {
			w.line("{panel}")
		}
		w.blank()
	}
}

func writeConfluenceSection(w *lineWriter, s content.Section, level int) {
	if level > 6 {
		level = 6
	}
	w.line(fmt.Sprintf("h%d. %s", level, orDefault(s.Heading, "Section")))
	w.blank()
	if strings.TrimSpace(s.Content) != "" {
		w.line(s.Content)
		w.blank()
	}
	for _, sub := range s.Subsections {
		writeConfluenceSection(w, sub, level+1)
	}
}

func escapeWikiCells(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		v = strings.ReplaceAll(v, "|", `\|`)
		v = strings.ReplaceAll(v, "\n", `\\`)
		if v == "" {
			// An empty cell would collapse the column separators.
			v = " "
		}
		out[i] = v
	}
	return out
}
