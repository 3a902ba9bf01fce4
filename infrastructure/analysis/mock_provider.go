package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"scribe/application/ports"
	"scribe/domain/content"
)

// MockProvider returns a canned analysis for development without a vendor key
type MockProvider struct {
	available atomic.Bool
	calls     atomic.Int64
}

var _ ports.AnalysisProvider = (*MockProvider)(nil)

// NewMockProvider creates a new mock provider
func NewMockProvider() *MockProvider {
	m := &MockProvider{}
	m.available.Store(true)
	return m
}

// SetAvailable toggles whether Analyze fails like an unreachable vendor
func (m *MockProvider) SetAvailable(available bool) {
	m.available.Store(available)
}

// Calls returns how many times Analyze was invoked
func (m *MockProvider) Calls() int64 {
	return m.calls.Load()
}

// Analyze returns a fixed meeting summary wrapped in a ```json fence, the
// way hosted models usually answer.
func (m *MockProvider) Analyze(ctx context.Context, req ports.AnalysisRequest) (*ports.AnalysisReply, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !m.available.Load() {
		return nil, fmt.Errorf("mock provider is not available")
	}

	doc := content.StructuredContent{
		Title: "Weekly Planning",
		Sections: []content.Section{
			{Heading: "Goals", Content: "Ship the export feature\nReview onboarding flow"},
			{Heading: "Risks", Content: "Vendor latency during peak hours"},
		},
		Tables: []content.Table{{
			Title:   "Owners",
			Headers: []string{"Area", "Owner"},
			Rows:    [][]content.Cell{{"Exports", "Lin"}, {"Billing", "Sam"}},
		}},
		ActionItems: []content.ActionItem{
			{Task: "Draft release notes", Priority: "high", Assignee: "Lin"},
			{Task: "Book design review", Priority: "medium"},
		},
		KeyPoints: []string{"Exports first", "Billing stays manual"},
		Diagrams: []content.Diagram{
			{Type: "flowchart", Description: "Upload to analysis to export", Elements: []string{"Upload", "Analyze", "Export"}},
		},
		RawText:    "Weekly Planning\nGoals\nRisks\nOwners",
		Confidence: 0.9,
	}
	if req.Language != "" && req.Language != "en" {
		doc.KeyPoints = append(doc.KeyPoints, "language: "+req.Language)
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return &ports.AnalysisReply{Text: "```json\n" + string(raw) + "\n```", Model: "mock"}, nil
}
