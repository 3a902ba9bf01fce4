// Package content defines the structured document produced by whiteboard
// analysis and the rules for accepting one.
package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrNotObject is returned when the document is not a JSON object.
	ErrNotObject = errors.New("structured content must be a JSON object")
	// ErrEmpty is returned when the document carries nothing renderable.
	ErrEmpty = errors.New("structured content is empty")
)

// StructuredContent is the decomposition of one whiteboard photo.
type StructuredContent struct {
	Title       string       `json:"title,omitempty"`
	Sections    []Section    `json:"sections,omitempty"`
	Tables      []Table      `json:"tables,omitempty"`
	ActionItems []ActionItem `json:"action_items,omitempty"`
	KeyPoints   []string     `json:"key_points,omitempty"`
	Diagrams    []Diagram    `json:"diagrams,omitempty"`
	RawText     string       `json:"raw_text,omitempty"`
	Confidence  float64      `json:"confidence_score"`
}

// Section is a heading with body text and optional nested sections.
type Section struct {
	Heading     string    `json:"heading"`
	Content     string    `json:"content,omitempty"`
	Subsections []Section `json:"subsections,omitempty"`
}

// Table is a titled grid. Rows are not required to match the header width.
type Table struct {
	Title   string   `json:"title,omitempty"`
	Headers []string `json:"headers"`
	Rows    [][]Cell `json:"rows"`
}

// ActionItem is a task noted on the board.
type ActionItem struct {
	Task     string `json:"task"`
	Priority string `json:"priority,omitempty"`
	Assignee string `json:"assignee,omitempty"`
	Category string `json:"category,omitempty"`
	Deadline string `json:"deadline,omitempty"`
}

// Diagram describes a drawing; no image is generated for it.
type Diagram struct {
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Elements    []string `json:"elements,omitempty"`
}

// Cell is a table cell. Any JSON scalar is accepted and kept as text.
type Cell string

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Cell(s)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		// Nested values are flattened to their compact JSON.
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*c = Cell(buf.String())
		return nil
	}
	*c = Cell(data)
	return nil
}

// String returns the cell text.
func (c Cell) String() string { return string(c) }

// wire mirrors StructuredContent but accepts the vendor's "confidence" key.
type wire struct {
	StructuredContent
	Confidence      *float64 `json:"confidence_score"`
	LegacyConfident *float64 `json:"confidence"`
}

// Parse decodes a document. It fails when data is not a JSON object.
func Parse(data []byte) (*StructuredContent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, ErrNotObject
	}

	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode structured content: %w", err)
	}

	sc := w.StructuredContent
	switch {
	case w.Confidence != nil:
		sc.Confidence = *w.Confidence
	case w.LegacyConfident != nil:
		sc.Confidence = *w.LegacyConfident
	}
	return &sc, nil
}

// Validate checks the invariants of an analysis result.
func (c *StructuredContent) Validate() error {
	if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("confidence_score %s out of range [0,1]", strconv.FormatFloat(c.Confidence, 'g', -1, 64))
	}
	if c.IsEmpty() {
		return ErrEmpty
	}
	return nil
}

// IsEmpty reports whether there is nothing to render.
func (c *StructuredContent) IsEmpty() bool {
	return strings.TrimSpace(c.Title) == "" &&
		len(c.Sections) == 0 &&
		len(c.Tables) == 0 &&
		len(c.ActionItems) == 0 &&
		len(c.KeyPoints) == 0 &&
		len(c.Diagrams) == 0 &&
		strings.TrimSpace(c.RawText) == ""
}

// Marshal encodes the document in its canonical stored form.
func (c *StructuredContent) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// ExtractJSON pulls the JSON document out of a model reply, which may be
// wrapped in a ```json fence or surrounded by prose.
func ExtractJSON(reply string) string {
	s := strings.TrimSpace(reply)
	if i := strings.Index(s, "```json"); i >= 0 {
		rest := s[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	if strings.HasPrefix(s, "```") {
		rest := strings.TrimPrefix(s, "```")
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
	}
	if !strings.HasPrefix(s, "{") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start >= 0 && end > start {
			return s[start : end+1]
		}
	}
	return s
}
