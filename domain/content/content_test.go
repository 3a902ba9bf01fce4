package content_test

import (
	"testing"

	"scribe/domain/content"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAcceptsVendorShape(t *testing.T) {
	raw := `{
		"title": "Sprint Review",
		"sections": [{"heading": "Intro", "content": "hello", "subsections": [{"heading": "Detail"}]}],
		"tables": [{"title": "Owners", "headers": ["Area", "Count"], "rows": [["API", 3], ["Web", null, true]]}],
		"action_items": [{"task": "ship it", "priority": "high", "assignee": "alice"}],
		"key_points": ["one"],
		"confidence": 0.82
	}`

	sc, err := content.Parse([]byte(raw))
	require.NoError(t, err)
	require.NoError(t, sc.Validate())

	assert.Equal(t, "Sprint Review", sc.Title)
	assert.InDelta(t, 0.82, sc.Confidence, 1e-9)
	require.Len(t, sc.Tables, 1)
	assert.Equal(t, []content.Cell{"API", "3"}, sc.Tables[0].Rows[0])
	assert.Equal(t, []content.Cell{"Web", "", "true"}, sc.Tables[0].Rows[1])
	assert.Equal(t, "Detail", sc.Sections[0].Subsections[0].Heading)
}

func TestParseRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{"", "[]", `"text"`, "42", "null"} {
		_, err := content.Parse([]byte(raw))
		assert.ErrorIs(t, err, content.ErrNotObject, raw)
	}

	_, err := content.Parse([]byte(`{"sections": "nope"}`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	sc := &content.StructuredContent{Title: "x", Confidence: 1.2}
	assert.Error(t, sc.Validate())

	sc = &content.StructuredContent{Confidence: 0.5}
	assert.ErrorIs(t, sc.Validate(), content.ErrEmpty)

	sc = &content.StructuredContent{KeyPoints: []string{"a"}, Confidence: 0}
	assert.NoError(t, sc.Validate())
}

func TestExtractJSON(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```":          `{"a":1}`,
		"```\n{\"a\":1}\n```":              `{"a":1}`,
		"Here you go: {\"a\":1} thanks":    `{"a":1}`,
		"  {\"a\":{\"b\":2}}  ":            `{"a":{"b":2}}`,
		"prefix ```json {\"a\":1}":         `{"a":1}`,
	}
	for in, want := range tests {
		assert.Equal(t, want, content.ExtractJSON(in), in)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	sc := &content.StructuredContent{
		Title:      "T",
		Sections:   []content.Section{{Heading: "H", Content: "C"}},
		Confidence: 0.4,
	}
	data, err := sc.Marshal()
	require.NoError(t, err)

	back, err := content.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, sc, back)
}
