// Package analysis talks to the vision model that turns whiteboard photos into
// structured content.
package analysis

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scribe/application/ports"
	pkgerrors "scribe/pkg/errors"

	"go.uber.org/zap"
)

// Config configures the OpenAI-compatible chat completions endpoint.
type Config struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultConfig returns the settings the hosted vision model is tuned for.
func DefaultConfig() Config {
	return Config{
		Endpoint:    "https://ark.cn-beijing.volces.com/api/v3",
		Model:       "doubao-seed-1-6-flash-250715",
		Temperature: 0.3,
		MaxTokens:   4096,
		Timeout:     120 * time.Second,
	}
}

// maxLineSize bounds one SSE line; a single delta never comes close.
const maxLineSize = 1 << 20

// HTTPProvider streams a chat completion and reassembles the deltas.
type HTTPProvider struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

var _ ports.AnalysisProvider = (*HTTPProvider)(nil)

// NewHTTPProvider creates a provider. A nil client gets one with the
// configured timeout.
func NewHTTPProvider(config Config, client *http.Client, logger *zap.Logger) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &HTTPProvider{config: config, client: client, logger: logger}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type streamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Analyze sends the photo with the structuring prompt and blocks until the
// stream ends. The account's own key replaces the service key when given.
func (p *HTTPProvider) Analyze(ctx context.Context, req ports.AnalysisRequest) (*ports.AnalysisReply, error) {
	key := req.APIKey
	if key == "" {
		key = p.config.APIKey
	}
	if key == "" {
		return nil, pkgerrors.NewUnavailableError("analysis").WithCode("analysis_not_configured")
	}
	if len(req.Image) == 0 {
		return nil, pkgerrors.NewValidationError("image is empty")
	}

	body, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.config.Endpoint, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build analysis request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		p.logger.Warn("Analysis API returned an error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(snippet)),
		)
		return nil, fmt.Errorf("analysis API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	reply, err := readStream(resp.Body)
	if err != nil {
		return nil, err
	}
	if reply.Model == "" {
		reply.Model = p.config.Model
	}

	p.logger.Debug("Analysis stream reassembled",
		zap.String("model", reply.Model),
		zap.Int("chars", len(reply.Text)),
		zap.Duration("took", time.Since(start)),
	)
	return reply, nil
}

func (p *HTTPProvider) buildRequest(req ports.AnalysisRequest) chatRequest {
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(req.Image)

	return chatRequest{
		Model: p.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: instructions(req.Language)},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			}},
		},
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
		Stream:      true,
	}
}

// readStream concatenates the content deltas of a server-sent event stream.
// Lines other than "data:" lines are ignored; "[DONE]" ends the stream.
func readStream(r io.Reader) (*ports.AnalysisReply, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		text  strings.Builder
		model string
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "[DONE]" {
			break
		}
		if payload == "" {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return nil, pkgerrors.NewAnalysisError("malformed stream chunk", err)
		}
		if chunk.Error != nil {
			return nil, fmt.Errorf("analysis API stream error: %s", chunk.Error.Message)
		}
		if model == "" {
			model = chunk.Model
		}
		for _, choice := range chunk.Choices {
			text.WriteString(choice.Delta.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("analysis stream interrupted: %w", err)
	}

	if strings.TrimSpace(text.String()) == "" {
		return nil, pkgerrors.NewAnalysisError("analysis API returned no content", nil)
	}
	return &ports.AnalysisReply{Text: text.String(), Model: model}, nil
}
