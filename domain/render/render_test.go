package render_test

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"scribe/domain/core/valueobjects"
	"scribe/domain/render"
	pkgerrors "scribe/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var generatedAt = time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)

const sampleBoard = `{
	"sections": [{"heading": "Intro", "content": "hello"}],
	"action_items": [{"task": "ship it", "assignee": "alice"}],
	"confidence_score": 0.4
}`

const richBoard = `{
	"title": "Roadmap",
	"sections": [{"heading": "Goals", "content": "grow", "subsections": [{"heading": "Q1", "subsections": [{"heading": "Hiring"}]}]}],
	"tables": [{"title": "Owners", "headers": ["Area", "Owner"], "rows": [["API"], ["Web", "bob", "extra"]]}],
	"action_items": [{"task": "write plan"}],
	"key_points": ["focus"],
	"diagrams": [{"type": "flowchart", "description": "request path", "elements": ["lb", "api"]}],
	"confidence_score": 0.9
}`

func newDoc(t *testing.T, boards ...string) *render.Document {
	t.Helper()
	inputs := make([]render.BoardInput, len(boards))
	for i, b := range boards {
		inputs[i] = render.BoardInput{Content: json.RawMessage(b)}
	}
	doc, err := render.NewDocument("Weekly Sync", "", inputs, generatedAt)
	require.NoError(t, err)
	return doc
}

func renderString(t *testing.T, doc *render.Document, opts valueobjects.ExportOptions) string {
	t.Helper()
	art, err := render.DefaultRegistry().Render(doc, opts)
	require.NoError(t, err)
	return string(art.Data)
}

func TestMarkdownSample(t *testing.T) {
	doc := newDoc(t, sampleBoard)

	out := renderString(t, doc, valueobjects.MarkdownOptions{})

	assert.Contains(t, out, "# Weekly Sync\n")
	assert.Contains(t, out, "### Intro\n")
	assert.Contains(t, strings.Split(out, "\n"), "hello")
	assert.Contains(t, strings.Split(out, "\n"), "- [ ] ship it (@alice)")
	assert.NotContains(t, out, "|", "no table markup")
	assert.NotContains(t, out, "---")
	assert.NotContains(t, out, "Whiteboard 1")
}

func TestMarkdownAssigneeOmitted(t *testing.T) {
	doc := newDoc(t, `{"action_items": [{"task": "follow up", "priority": "high"}]}`)

	out := renderString(t, doc, valueobjects.MarkdownOptions{})

	assert.Contains(t, strings.Split(out, "\n"), "- [ ] follow up")
}

func TestMarkdownTablesTolerateRaggedRows(t *testing.T) {
	doc := newDoc(t, richBoard)

	out := renderString(t, doc, valueobjects.MarkdownOptions{})

	assert.Contains(t, out, "| Area | Owner |  |\n")
	assert.Contains(t, out, "| --- | --- | --- |\n")
	assert.Contains(t, out, "| API |  |  |\n")
	assert.Contains(t, out, "| Web | bob | extra |\n")
	assert.NotContains(t, out, "### Diagrams", "diagrams are opt-in")

	withDiagrams := renderString(t, doc, valueobjects.MarkdownOptions{IncludeDiagrams: true})
	assert.Contains(t, withDiagrams, "#### Flowchart")
	assert.Contains(t, withDiagrams, "- lb\n")
}

func TestMarkdownDelimitsMultipleBoardsInOrder(t *testing.T) {
	single := renderString(t, newDoc(t, sampleBoard), valueobjects.MarkdownOptions{})
	assert.NotContains(t, single, "## Whiteboard")

	multi := renderString(t, newDoc(t, sampleBoard, richBoard), valueobjects.MarkdownOptions{})
	assert.Equal(t, 1, strings.Count(multi, "## Whiteboard 1\n"))
	assert.Equal(t, 1, strings.Count(multi, "## Whiteboard 2\n"))

	first := strings.Index(multi, "## Whiteboard 1")
	second := strings.Index(multi, "## Whiteboard 2")
	assert.Less(t, first, strings.Index(multi, "### Intro"))
	assert.Less(t, strings.Index(multi, "### Intro"), second)
	assert.Less(t, second, strings.Index(multi, "### Goals"))
}

func TestNoContent(t *testing.T) {
	cases := map[string][]render.BoardInput{
		"no whiteboards":  nil,
		"missing content": {{Content: nil}, {Content: json.RawMessage("")}},
		"malformed":       {{Content: json.RawMessage(`[1,2]`)}, {Content: json.RawMessage(`"text"`)}},
		"empty objects":   {{Content: json.RawMessage(`{}`)}},
	}
	for name, inputs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := render.NewDocument("T", "", inputs, generatedAt)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsNoContent(err))
		})
	}
}

func TestMalformedBoardsAreSkipped(t *testing.T) {
	doc, err := render.NewDocument("T", "", []render.BoardInput{
		{Content: json.RawMessage(`not json`)},
		{Content: json.RawMessage(sampleBoard)},
	}, generatedAt)
	require.NoError(t, err)

	require.Len(t, doc.Boards, 1)
	assert.Equal(t, 1, doc.Boards[0].Index)
	assert.False(t, doc.MultiBoard())
}

func TestDocumentTitleFallback(t *testing.T) {
	doc, err := render.NewDocument("", "", []render.BoardInput{{Content: json.RawMessage(richBoard)}}, generatedAt)
	require.NoError(t, err)
	assert.Equal(t, "Roadmap", doc.Title)

	doc, err = render.NewDocument("", "", []render.BoardInput{{Content: json.RawMessage(sampleBoard)}}, generatedAt)
	require.NoError(t, err)
	assert.Equal(t, render.DefaultTitle, doc.Title)
}

func TestEveryFormatRendersWithLowConfidence(t *testing.T) {
	doc := newDoc(t, `{"key_points": ["a"], "confidence_score": 0}`)
	for _, f := range valueobjects.ExportFormats() {
		art, err := render.DefaultRegistry().Render(doc, valueobjects.DefaultExportOptions(f))
		require.NoError(t, err, f)
		assert.NotEmpty(t, art.Data, f)
		assert.Equal(t, f.Extension(), art.Extension)
	}
}

func TestMindmapRoundTripDepthThree(t *testing.T) {
	root := render.NewNode("root",
		render.NewNode("a",
			render.NewNode("a1"),
			render.NewNode("a2"),
		),
		render.NewNode("b",
			render.NewNode("b1"),
		),
		render.NewNode("c"),
	)
	require.Equal(t, 3, root.Depth())

	data, err := render.EncodeMindmap(root)
	require.NoError(t, err)
	back, err := render.DecodeMindmap(data)
	require.NoError(t, err)

	assert.True(t, root.Equal(back))
	assert.Equal(t, root, back)
	assert.False(t, root.Equal(render.NewNode("root")))
}

func TestMindmapLayout(t *testing.T) {
	doc := newDoc(t, richBoard)

	tree := render.BuildMindmap(doc, valueobjects.MindmapOptions{IncludeActions: true, IncludeTables: true})

	assert.Equal(t, "Weekly Sync", tree.Label)
	labels := make([]string, len(tree.Children))
	for i, c := range tree.Children {
		labels[i] = c.Label
	}
	assert.Equal(t, []string{"Goals", "Tables", "Action Items", "Key Points"}, labels)
	assert.Equal(t, "Hiring", tree.Children[0].Children[0].Children[0].Label)

	bare := render.BuildMindmap(doc, valueobjects.MindmapOptions{})
	assert.Len(t, bare.Children, 2)

	multi := render.BuildMindmap(newDoc(t, sampleBoard, richBoard), valueobjects.MindmapOptions{})
	require.Len(t, multi.Children, 2)
	assert.Equal(t, "Whiteboard 1", multi.Children[0].Label)
	assert.Equal(t, "Whiteboard 2: Roadmap", multi.Children[1].Label)
}

func TestNotionPropertiesToggle(t *testing.T) {
	doc := newDoc(t, richBoard)

	var withProps map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(renderString(t, doc, valueobjects.NotionOptions{IncludeProperties: true})), &withProps))
	assert.Contains(t, withProps, "properties")

	var without map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(renderString(t, doc, valueobjects.NotionOptions{})), &without))
	assert.NotContains(t, without, "properties")

	children := without["children"].([]interface{})
	types := map[string]int{}
	for _, c := range children {
		types[c.(map[string]interface{})["type"].(string)]++
	}
	assert.Equal(t, 1, types["heading_1"])
	assert.Equal(t, 1, types["table"])
	assert.Equal(t, 1, types["to_do"])
	assert.Equal(t, 1, types["bulleted_list_item"])
	assert.Zero(t, types["divider"])
}

func TestNotionDelimiters(t *testing.T) {
	out := renderString(t, newDoc(t, sampleBoard, sampleBoard), valueobjects.NotionOptions{})

	assert.Equal(t, 2, strings.Count(out, `"type": "divider"`))
	assert.Less(t, strings.Index(out, "Whiteboard 1"), strings.Index(out, "Whiteboard 2"))
}

func TestConfluenceMacrosToggle(t *testing.T) {
	doc := newDoc(t, richBoard)

	with := renderString(t, doc, valueobjects.ConfluenceOptions{IncludeMacros: true})
	assert.Contains(t, with, "h1. Weekly Sync\n")
	assert.Contains(t, with, "{info}")
	assert.Contains(t, with, "{task-list}")
	assert.Contains(t, with, "|| Area || Owner ||   ||\n")
	assert.Contains(t, with, "h3. Goals\n")

	without := renderString(t, doc, valueobjects.ConfluenceOptions{})
	assert.NotContains(t, without, "{info}")
	assert.NotContains(t, without, "{task-list}")
	assert.NotContains(t, without, "{note}")
	assert.Contains(t, without, "* write plan\n")

	multi := renderString(t, newDoc(t, sampleBoard, richBoard), valueobjects.ConfluenceOptions{})
	assert.Contains(t, multi, "h2. Whiteboard 1\n----\n")
	assert.Contains(t, multi, "h2. Whiteboard 2\n----\n")
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = string(body)
	}
	return files
}

func TestPPTXSlides(t *testing.T) {
	doc := newDoc(t, richBoard)
	art, err := render.NewPPTXRenderer().Render(doc, valueobjects.PPTXOptions{})
	require.NoError(t, err)

	files := readZip(t, art.Data)
	require.Contains(t, files, "[Content_Types].xml")
	require.Contains(t, files, "ppt/presentation.xml")

	// title, section, table, key points, action items
	for i := 1; i <= 5; i++ {
		assert.Contains(t, files, "ppt/slides/slide"+string(rune('0'+i))+".xml")
	}
	assert.NotContains(t, files, "ppt/slides/slide6.xml")

	assert.Contains(t, files["ppt/slides/slide1.xml"], "Weekly Sync")
	assert.Contains(t, files["ppt/slides/slide2.xml"], "<a:t>Goals</a:t>")
	assert.Contains(t, files["ppt/slides/slide3.xml"], "<a:tbl>")
	assert.Contains(t, files["ppt/slides/slide3.xml"], "<a:t>extra</a:t>")
	assert.Contains(t, files["ppt/slides/slide5.xml"], "Action Items")
	assert.Contains(t, files["ppt/slides/slide5.xml"], "write plan")
}

func TestPPTXOptions(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	doc, err := render.NewDocument("Deck", "", []render.BoardInput{
		{Content: json.RawMessage(richBoard), Image: png, MimeType: "image/png"},
		{Content: json.RawMessage(`{"key_points": ["<&>"]}`), Image: []byte("x"), MimeType: "image/heic"},
	}, generatedAt)
	require.NoError(t, err)

	art, err := render.NewPPTXRenderer().Render(doc, valueobjects.PPTXOptions{IncludeImages: true, IncludeDiagrams: true})
	require.NoError(t, err)
	files := readZip(t, art.Data)

	assert.Equal(t, string(png), files["ppt/media/image1.png"])
	assert.Len(t, filterPrefix(files, "ppt/media/"), 1, "unsupported image types are not embedded")

	all := joinPrefix(files, "ppt/slides/slide")
	assert.Contains(t, all, "Diagram: Flowchart")
	assert.Contains(t, all, "<a:t>Whiteboard 1</a:t>")
	assert.Contains(t, all, "<a:t>Whiteboard 2</a:t>")
	assert.Contains(t, all, "&lt;&amp;&gt;")
}

func TestEmbeddableImage(t *testing.T) {
	for _, mt := range []string{"image/png", "image/jpeg", "IMAGE/JPG", "image/gif"} {
		assert.True(t, render.EmbeddableImage(mt), mt)
	}
	for _, mt := range []string{"image/webp", "image/heic", ""} {
		assert.False(t, render.EmbeddableImage(mt), mt)
	}
}

func TestPPTXNoClosingSlideWithoutActions(t *testing.T) {
	doc := newDoc(t, `{"sections": [{"heading": "Only"}]}`)
	art, err := render.NewPPTXRenderer().Render(doc, valueobjects.PPTXOptions{})
	require.NoError(t, err)

	all := joinPrefix(readZip(t, art.Data), "ppt/slides/slide")
	assert.NotContains(t, all, "Action Items")
}

func filterPrefix(files map[string]string, prefix string) []string {
	var out []string
	for name := range files {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

func joinPrefix(files map[string]string, prefix string) string {
	var sb strings.Builder
	for name, body := range files {
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".xml") {
			sb.WriteString(body)
		}
	}
	return sb.String()
}
