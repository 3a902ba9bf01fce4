package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scribe/application/ports"
	"scribe/domain/content"
	pkgerrors "scribe/pkg/errors"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func streamBody(model string, deltas ...string) string {
	var b strings.Builder
	b.WriteString(": keep-alive\n\n")
	for _, d := range deltas {
		chunk := map[string]any{
			"model":   model,
			"choices": []map[string]any{{"delta": map[string]string{"content": d}}},
		}
		raw, _ := json.Marshal(chunk)
		fmt.Fprintf(&b, "data: %s\n\n", raw)
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func newProvider(t *testing.T, url string) *HTTPProvider {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Endpoint = url
	cfg.APIKey = "service-key"
	cfg.Timeout = 5 * time.Second
	return NewHTTPProvider(cfg, nil, zap.NewNop())
}

func TestHTTPProvider_ReassemblesStream(t *testing.T) {
	var got chatRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &got))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, streamBody("vision-1", "```json\n{\"title\": \"Plan", "ning\", \"key_points\": [\"a\"],", " \"confidence_score\": 0.8}\n```"))
	}))
	defer server.Close()

	reply, err := newProvider(t, server.URL).Analyze(context.Background(), ports.AnalysisRequest{
		Image:    []byte{0xff, 0xd8, 0xff},
		MimeType: "image/jpeg",
		Language: "zh",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer service-key", auth)
	assert.True(t, got.Stream)
	assert.Equal(t, "vision-1", reply.Model)

	doc, err := content.Parse([]byte(content.ExtractJSON(reply.Text)))
	require.NoError(t, err)
	assert.Equal(t, "Planning", doc.Title)
	assert.Equal(t, []string{"a"}, doc.KeyPoints)

	// system prompt plus the user message with text and image parts
	require.Len(t, got.Messages, 2)
	parts, ok := got.Messages[1].Content.([]any)
	require.True(t, ok)
	require.Len(t, parts, 2)
	text := parts[0].(map[string]any)["text"].(string)
	assert.Contains(t, text, "Chinese")
	image := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(image, "data:image/jpeg;base64,"))
}

func TestHTTPProvider_CustomKeyWins(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		fmt.Fprint(w, streamBody("m", "{\"title\":\"x\"}"))
	}))
	defer server.Close()

	_, err := newProvider(t, server.URL).Analyze(context.Background(), ports.AnalysisRequest{
		Image:  []byte("img"),
		APIKey: "user-key",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer user-key", auth)
}

func TestHTTPProvider_Errors(t *testing.T) {
	t.Run("vendor status is a transport failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exhausted", http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := newProvider(t, server.URL).Analyze(context.Background(), ports.AnalysisRequest{Image: []byte("img")})
		require.Error(t, err)
		assert.Nil(t, pkgerrors.GetAppError(err))
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("empty stream is an analysis error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, streamBody("m"))
		}))
		defer server.Close()

		_, err := newProvider(t, server.URL).Analyze(context.Background(), ports.AnalysisRequest{Image: []byte("img")})
		assert.True(t, pkgerrors.IsAnalysis(err))
	})

	t.Run("stream error object", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "data: {\"error\":{\"message\":\"overloaded\"}}\n\n")
		}))
		defer server.Close()

		_, err := newProvider(t, server.URL).Analyze(context.Background(), ports.AnalysisRequest{Image: []byte("img")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "overloaded")
	})

	t.Run("no key anywhere", func(t *testing.T) {
		p := NewHTTPProvider(DefaultConfig(), nil, zap.NewNop())
		_, err := p.Analyze(context.Background(), ports.AnalysisRequest{Image: []byte("img")})
		assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnavailable))
	})
}

func TestReadStream_IgnoresNonDataLines(t *testing.T) {
	body := "event: message\nid: 1\ndata: {\"choices\":[{\"delta\":{\"content\":\"he\"}}]}\n\n" +
		"data:{\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n\ndata: [DONE]\ndata: {\"choices\":[{\"delta\":{\"content\":\"!\"}}]}\n"
	reply, err := readStream(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "hello", reply.Text)
}

func TestMockProvider(t *testing.T) {
	m := NewMockProvider()
	reply, err := m.Analyze(context.Background(), ports.AnalysisRequest{Image: []byte("img")})
	require.NoError(t, err)

	doc, err := content.Parse([]byte(content.ExtractJSON(reply.Text)))
	require.NoError(t, err)
	assert.Equal(t, "Weekly Planning", doc.Title)
	assert.NoError(t, doc.Validate())

	m.SetAvailable(false)
	_, err = m.Analyze(context.Background(), ports.AnalysisRequest{})
	assert.Error(t, err)
	assert.EqualValues(t, 2, m.Calls())
}

type failingProvider struct {
	err   error
	calls int
}

func (f *failingProvider) Analyze(ctx context.Context, req ports.AnalysisRequest) (*ports.AnalysisReply, error) {
	f.calls++
	return nil, f.err
}

func testBreakerConfig() BreakerConfig {
	cfg := DefaultBreakerConfig("analysis-test")
	cfg.MinRequests = 3
	cfg.FailureThreshold = 0.5
	cfg.Timeout = time.Minute
	return cfg
}

func TestBreakerProvider_OpensAfterTransportFailures(t *testing.T) {
	next := &failingProvider{err: errors.New("connection reset")}
	b := NewBreakerProvider(next, testBreakerConfig(), zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := b.Analyze(context.Background(), ports.AnalysisRequest{})
		require.Error(t, err)
		assert.Nil(t, pkgerrors.GetAppError(err))
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Analyze(context.Background(), ports.AnalysisRequest{})
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnavailable))
	assert.Equal(t, 3, next.calls, "open breaker must not call the vendor")
}

func TestBreakerProvider_SchemaFailuresDoNotTrip(t *testing.T) {
	next := &failingProvider{err: pkgerrors.NewAnalysisError("bad reply", nil)}
	b := NewBreakerProvider(next, testBreakerConfig(), zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := b.Analyze(context.Background(), ports.AnalysisRequest{})
		assert.True(t, pkgerrors.IsAnalysis(err))
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 5, next.calls)
}
