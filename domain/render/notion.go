package render

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"scribe/domain/content"
	"scribe/domain/core/valueobjects"
)

// notionTextLimit is the longest text run a rich text object may hold.
const notionTextLimit = 2000

// NotionRenderer writes Notion block JSON suitable for the pages API.
type NotionRenderer struct{}

func NewNotionRenderer() *NotionRenderer { return &NotionRenderer{} }

func (r *NotionRenderer) Format() valueobjects.ExportFormat { return valueobjects.FormatNotion }

type notionPage struct {
	Properties map[string]interface{} `json:"properties,omitempty"`
	Children   []notionBlock          `json:"children"`
}

type notionRichText struct {
	Type string           `json:"type"`
	Text notionTextObject `json:"text"`
}

type notionTextObject struct {
	Content string `json:"content"`
}

type notionText struct {
	RichText []notionRichText `json:"rich_text"`
}

type notionToDo struct {
	RichText []notionRichText `json:"rich_text"`
	Checked  bool             `json:"checked"`
}

type notionTable struct {
	TableWidth      int           `json:"table_width"`
	HasColumnHeader bool          `json:"has_column_header"`
	HasRowHeader    bool          `json:"has_row_header"`
	Children        []notionBlock `json:"children"`
}

type notionTableRow struct {
	Cells [][]notionRichText `json:"cells"`
}

type notionBlock struct {
	Object           string          `json:"object"`
	Type             string          `json:"type"`
	Heading1         *notionText     `json:"heading_1,omitempty"`
	Heading2         *notionText     `json:"heading_2,omitempty"`
	Heading3         *notionText     `json:"heading_3,omitempty"`
	Paragraph        *notionText     `json:"paragraph,omitempty"`
	BulletedListItem *notionText     `json:"bulleted_list_item,omitempty"`
	ToDo             *notionToDo     `json:"to_do,omitempty"`
	Divider          *struct{}       `json:"divider,omitempty"`
	Table            *notionTable    `json:"table,omitempty"`
	TableRow         *notionTableRow `json:"table_row,omitempty"`
}

func (r *NotionRenderer) Render(doc *Document, opts valueobjects.ExportOptions) (*Artifact, error) {
	o, ok := opts.(valueobjects.NotionOptions)
	if !ok {
		o = valueobjects.DefaultExportOptions(valueobjects.FormatNotion).(valueobjects.NotionOptions)
	}

	page := notionPage{Children: []notionBlock{heading(1, doc.Title)}}
	if o.IncludeProperties {
		page.Properties = map[string]interface{}{
			"title":  map[string]interface{}{"title": richText(doc.Title)},
			"Date":   map[string]interface{}{"date": map[string]string{"start": doc.GeneratedAt.Format("2006-01-02")}},
			"Type":   map[string]interface{}{"select": map[string]string{"name": "Meeting Notes"}},
			"Status": map[string]interface{}{"select": map[string]string{"name": "Complete"}},
		}
	}
	if doc.Description != "" {
		page.Children = append(page.Children, textBlock("paragraph", doc.Description))
	}

	for _, b := range doc.Boards {
		if doc.MultiBoard() {
			page.Children = append(page.Children, heading(2, b.Label()), divider())
		}
		page.Children = append(page.Children, notionBoard(b.Content)...)
	}

	data, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return nil, err
	}
	return artifactFor(valueobjects.FormatNotion, data), nil
}

func notionBoard(c *content.StructuredContent) []notionBlock {
	var blocks []notionBlock

	var walk func(s content.Section, level int)
	walk = func(s content.Section, level int) {
		if level > 3 {
			level = 3
		}
		blocks = append(blocks, heading(level, orDefault(s.Heading, "Section")))
		if strings.TrimSpace(s.Content) != "" {
			blocks = append(blocks, textBlock("paragraph", s.Content))
		}
		for _, sub := range s.Subsections {
			walk(sub, level+1)
		}
	}
	for _, s := range c.Sections {
		walk(s, 3)
	}

	for _, t := range c.Tables {
		width := tableWidth(t)
		if width == 0 {
			continue
		}
		if t.Title != "" {
			blocks = append(blocks, heading(3, t.Title))
		}
		tbl := &notionTable{TableWidth: width, HasColumnHeader: len(t.Headers) > 0}
		if len(t.Headers) > 0 {
			tbl.Children = append(tbl.Children, tableRow(headers(t, width)))
		}
		for _, row := range t.Rows {
			// Every row must be exactly table_width cells wide.
			tbl.Children = append(tbl.Children, tableRow(cells(row, width)))
		}
		blocks = append(blocks, notionBlock{Object: "block", Type: "table", Table: tbl})
	}

	if len(c.ActionItems) > 0 {
		blocks = append(blocks, heading(3, "Action Items"))
		for _, item := range c.ActionItems {
			text := item.Task
			if a := strings.TrimSpace(item.Assignee); a != "" {
				text += " (@" + a + ")"
			}
			blocks = append(blocks, notionBlock{
				Object: "block",
				Type:   "to_do",
				ToDo:   &notionToDo{RichText: richText(text)},
			})
		}
	}

	if len(c.KeyPoints) > 0 {
		blocks = append(blocks, heading(3, "Key Points"))
		for _, p := range c.KeyPoints {
			blocks = append(blocks, textBlock("bulleted_list_item", p))
		}
	}

	return blocks
}

func heading(level int, text string) notionBlock {
	switch level {
	case 1:
		return notionBlock{Object: "block", Type: "heading_1", Heading1: &notionText{RichText: richText(text)}}
	case 2:
		return notionBlock{Object: "block", Type: "heading_2", Heading2: &notionText{RichText: richText(text)}}
	default:
		return notionBlock{Object: "block", Type: "heading_3", Heading3: &notionText{RichText: richText(text)}}
	}
}

func textBlock(kind, text string) notionBlock {
	b := notionBlock{Object: "block", Type: kind}
	t := &notionText{RichText: richText(text)}
	if kind == "bulleted_list_item" {
		b.BulletedListItem = t
	} else {
		b.Paragraph = t
	}
	return b
}

func divider() notionBlock {
	return notionBlock{Object: "block", Type: "divider", Divider: &struct{}{}}
}

func tableRow(values []string) notionBlock {
	row := &notionTableRow{Cells: make([][]notionRichText, len(values))}
	for i, v := range values {
		row.Cells[i] = richText(v)
	}
	return notionBlock{Object: "block", Type: "table_row", TableRow: row}
}

// richText splits s into runs no longer than the API allows.
func richText(s string) []notionRichText {
	runs := []notionRichText{}
	for len(s) > 0 {
		cut := len(s)
		if utf8.RuneCountInString(s) > notionTextLimit {
			cut = 0
			for i := 0; i < notionTextLimit; i++ {
				_, size := utf8.DecodeRuneInString(s[cut:])
				cut += size
			}
		}
		runs = append(runs, notionRichText{Type: "text", Text: notionTextObject{Content: s[:cut]}})
		s = s[cut:]
	}
	return runs
}
