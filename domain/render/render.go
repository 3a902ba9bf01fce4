// Package render turns the structured content of a project's whiteboards
// into export artifacts.
package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"scribe/domain/content"
	"scribe/domain/core/valueobjects"
	pkgerrors "scribe/pkg/errors"
)

// DefaultTitle is used when neither the project nor its content has a title.
const DefaultTitle = "Meeting Whiteboard Notes"

// BoardInput is one whiteboard as stored, in creation order.
type BoardInput struct {
	Name     string
	Content  json.RawMessage
	Image    []byte
	MimeType string
}

// Board is a whiteboard whose content parsed successfully.
type Board struct {
	// Index is the 1-based position among rendered boards.
	Index    int
	Name     string
	Content  *content.StructuredContent
	Image    []byte
	MimeType string
}

// Label is the delimiter text for the board.
func (b Board) Label() string {
	return fmt.Sprintf("Whiteboard %d", b.Index)
}

// Document is the input every renderer walks.
type Document struct {
	Title       string
	Description string
	GeneratedAt time.Time
	Boards      []Board
}

// MultiBoard reports whether each board's output must be delimited.
func (d *Document) MultiBoard() bool {
	return len(d.Boards) > 1
}

// HasActionItems reports whether any board lists a task.
func (d *Document) HasActionItems() bool {
	for _, b := range d.Boards {
		if len(b.Content.ActionItems) > 0 {
			return true
		}
	}
	return false
}

// NewDocument parses every board and keeps those with usable content.
// Boards whose content is missing, not an object, or empty are skipped. It
// returns a no-content error when nothing remains.
func NewDocument(title, description string, boards []BoardInput, now time.Time) (*Document, error) {
	doc := &Document{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		GeneratedAt: now,
	}

	for _, in := range boards {
		if len(in.Content) == 0 {
			continue
		}
		sc, err := content.Parse(in.Content)
		if err != nil || sc.IsEmpty() {
			continue
		}
		doc.Boards = append(doc.Boards, Board{
			Index:    len(doc.Boards) + 1,
			Name:     in.Name,
			Content:  sc,
			Image:    in.Image,
			MimeType: in.MimeType,
		})
	}

	if len(doc.Boards) == 0 {
		return nil, pkgerrors.NewNoContentError()
	}
	if doc.Title == "" {
		doc.Title = strings.TrimSpace(doc.Boards[0].Content.Title)
	}
	if doc.Title == "" {
		doc.Title = DefaultTitle
	}
	return doc, nil
}

// Artifact is a rendered file.
type Artifact struct {
	Data        []byte
	ContentType string
	Extension   string
}

// Renderer produces one export format.
type Renderer interface {
	Format() valueobjects.ExportFormat
	Render(doc *Document, opts valueobjects.ExportOptions) (*Artifact, error)
}

// Registry looks renderers up by format.
type Registry struct {
	renderers map[valueobjects.ExportFormat]Renderer
}

// NewRegistry registers the given renderers.
func NewRegistry(renderers ...Renderer) *Registry {
	r := &Registry{renderers: make(map[valueobjects.ExportFormat]Renderer, len(renderers))}
	for _, rr := range renderers {
		r.renderers[rr.Format()] = rr
	}
	return r
}

// DefaultRegistry holds every built-in renderer.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewMarkdownRenderer(),
		NewPPTXRenderer(),
		NewMindmapRenderer(),
		NewNotionRenderer(),
		NewConfluenceRenderer(),
	)
}

// Render dispatches to the renderer for opts' format.
func (r *Registry) Render(doc *Document, opts valueobjects.ExportOptions) (*Artifact, error) {
	if opts == nil {
		return nil, pkgerrors.NewValidationError("export options are required")
	}
	rr, ok := r.renderers[opts.Format()]
	if !ok {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("no renderer for format %q", opts.Format()))
	}
	return rr.Render(doc, opts)
}

func artifactFor(format valueobjects.ExportFormat, data []byte) *Artifact {
	return &Artifact{
		Data:        data,
		ContentType: format.ContentType(),
		Extension:   format.Extension(),
	}
}

// cells pads or keeps a row so it has at least width cells.
func cells(row []content.Cell, width int) []string {
	n := len(row)
	if width > n {
		n = width
	}
	out := make([]string, n)
	for i, c := range row {
		out[i] = c.String()
	}
	return out
}

// tableWidth is the widest of the header and every row.
func tableWidth(t content.Table) int {
	w := len(t.Headers)
	for _, row := range t.Rows {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

func headers(t content.Table, width int) []string {
	out := make([]string, width)
	copy(out, t.Headers)
	return out
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
