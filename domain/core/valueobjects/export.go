package valueobjects

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	pkgerrors "scribe/pkg/errors"
)

// ExportFormat is a target document format.
type ExportFormat string

const (
	FormatMarkdown   ExportFormat = "markdown"
	FormatPPTX       ExportFormat = "pptx"
	FormatMindmap    ExportFormat = "mindmap"
	FormatNotion     ExportFormat = "notion"
	FormatConfluence ExportFormat = "confluence"
)

// ExportFormats lists every supported format.
func ExportFormats() []ExportFormat {
	return []ExportFormat{FormatMarkdown, FormatPPTX, FormatMindmap, FormatNotion, FormatConfluence}
}

// ParseExportFormat validates s against the supported formats.
func ParseExportFormat(s string) (ExportFormat, error) {
	f := ExportFormat(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ExportFormats() {
		if f == known {
			return f, nil
		}
	}
	return "", pkgerrors.NewValidationError(fmt.Sprintf("unsupported export format %q", s))
}

// Extension is the artifact file extension without the dot.
func (f ExportFormat) Extension() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatPPTX:
		return "pptx"
	case FormatMindmap, FormatNotion:
		return "json"
	case FormatConfluence:
		return "txt"
	}
	return "bin"
}

// ContentType is the media type served on download.
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatPPTX:
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case FormatMindmap, FormatNotion:
		return "application/json"
	case FormatConfluence:
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}

// ExportStatus is the lifecycle state of an export record.
type ExportStatus string

const (
	ExportGenerating ExportStatus = "generating"
	ExportCompleted  ExportStatus = "completed"
	ExportError      ExportStatus = "error"
)

// ExportOptions is the closed set of switches one format accepts. Each
// format has its own implementation; there is no shared free-form map.
type ExportOptions interface {
	Format() ExportFormat
	isExportOptions()
}

// MarkdownOptions configures the Markdown renderer.
type MarkdownOptions struct {
	IncludeDiagrams bool `json:"include_diagrams"`
}

// PPTXOptions configures the slide deck renderer. IncludeImages embeds PNG,
// JPEG and GIF photos only; WebP and HEIC boards get their text slides alone.
type PPTXOptions struct {
	IncludeImages   bool `json:"include_images"`
	IncludeDiagrams bool `json:"include_diagrams"`
}

// MindmapOptions configures the mind map renderer.
type MindmapOptions struct {
	IncludeActions bool `json:"include_actions"`
	IncludeTables  bool `json:"include_tables"`
}

// NotionOptions configures the Notion renderer.
type NotionOptions struct {
	IncludeProperties bool `json:"include_properties"`
}

// ConfluenceOptions configures the Confluence renderer.
type ConfluenceOptions struct {
	IncludeMacros bool `json:"include_macros"`
}

func (MarkdownOptions) Format() ExportFormat   { return FormatMarkdown }
func (PPTXOptions) Format() ExportFormat       { return FormatPPTX }
func (MindmapOptions) Format() ExportFormat    { return FormatMindmap }
func (NotionOptions) Format() ExportFormat     { return FormatNotion }
func (ConfluenceOptions) Format() ExportFormat { return FormatConfluence }

func (MarkdownOptions) isExportOptions()   {}
func (PPTXOptions) isExportOptions()       {}
func (MindmapOptions) isExportOptions()    {}
func (NotionOptions) isExportOptions()     {}
func (ConfluenceOptions) isExportOptions() {}

// DefaultExportOptions returns the options used when a request sends none.
func DefaultExportOptions(f ExportFormat) ExportOptions {
	switch f {
	case FormatPPTX:
		return PPTXOptions{}
	case FormatMindmap:
		return MindmapOptions{IncludeActions: true, IncludeTables: true}
	case FormatNotion:
		return NotionOptions{IncludeProperties: true}
	case FormatConfluence:
		return ConfluenceOptions{IncludeMacros: true}
	default:
		return MarkdownOptions{}
	}
}

// ParseExportOptions decodes raw into the option set of format f. Keys the
// format does not define are rejected. Missing keys keep their defaults.
func ParseExportOptions(f ExportFormat, raw []byte) (ExportOptions, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return DefaultExportOptions(f), nil
	}

	switch f {
	case FormatMarkdown:
		opts := DefaultExportOptions(f).(MarkdownOptions)
		err := decodeStrict(f, trimmed, &opts)
		return opts, err
	case FormatPPTX:
		opts := DefaultExportOptions(f).(PPTXOptions)
		err := decodeStrict(f, trimmed, &opts)
		return opts, err
	case FormatMindmap:
		opts := DefaultExportOptions(f).(MindmapOptions)
		err := decodeStrict(f, trimmed, &opts)
		return opts, err
	case FormatNotion:
		opts := DefaultExportOptions(f).(NotionOptions)
		err := decodeStrict(f, trimmed, &opts)
		return opts, err
	case FormatConfluence:
		opts := DefaultExportOptions(f).(ConfluenceOptions)
		err := decodeStrict(f, trimmed, &opts)
		return opts, err
	}
	return nil, pkgerrors.NewValidationError(fmt.Sprintf("unsupported export format %q", f))
}

func decodeStrict(f ExportFormat, raw []byte, into interface{}) error {
	invalid := func(reason string) error {
		return pkgerrors.NewValidationError(fmt.Sprintf("invalid %s export options: %s", f, reason))
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return invalid(strings.TrimPrefix(err.Error(), "json: "))
	}
	if _, err := dec.Token(); err != io.EOF {
		return invalid("unexpected data after the options object")
	}

	// encoding/json folds key case; option names must match exactly.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return invalid(strings.TrimPrefix(err.Error(), "json: "))
	}
	known := optionNames(into)
	for name := range fields {
		if !known[name] {
			return invalid(fmt.Sprintf("unknown field %q", name))
		}
	}
	return nil
}

func optionNames(into interface{}) map[string]bool {
	t := reflect.TypeOf(into).Elem()
	names := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		names[name] = true
	}
	return names
}
