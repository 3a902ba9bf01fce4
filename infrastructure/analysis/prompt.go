package analysis

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an expert meeting whiteboard analyzer. Extract and structure all content from the whiteboard photo.

Extract:
1. All text content, keeping the original structure
2. Tables and their data
3. Diagrams, flowcharts and drawings, described in detail
4. Action items and tasks (bullets, arrows, TODO markers)
5. Key topics and main themes
6. Hierarchical structure (headings and sub-points)

Reply with a single JSON object and nothing else, in this format:
{
  "title": "suggested meeting title based on content",
  "sections": [
    {"heading": "section title", "content": "section text", "subsections": []}
  ],
  "tables": [
    {"title": "table description", "headers": ["col1", "col2"], "rows": [["data1", "data2"]]}
  ],
  "diagrams": [
    {"type": "flowchart|mindmap|drawing", "description": "detailed description", "elements": ["element1"]}
  ],
  "action_items": [
    {"task": "action description", "priority": "high|medium|low", "assignee": "person name if mentioned"}
  ],
  "key_points": ["main point 1"],
  "raw_text": "all extracted text",
  "confidence_score": 0.95
}`

const userPrompt = "Please analyze this whiteboard image and extract all content in the specified JSON format. " +
	"Pay special attention to tables, action items and hierarchical structure."

var languageNames = map[string]string{
	"en": "English",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"fr": "French",
	"de": "German",
	"es": "Spanish",
}

// instructions returns the user message text, asking for the account's
// language when it is not English.
func instructions(language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" || lang == "en" {
		return userPrompt
	}
	name, ok := languageNames[lang]
	if !ok {
		name = language
	}
	return fmt.Sprintf("%s Write titles, headings and summaries in %s; keep text copied from the board as written.", userPrompt, name)
}
