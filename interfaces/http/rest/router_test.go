package rest_test

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribe/application/services"
	"scribe/domain/render"
	"scribe/infrastructure/analysis"
	"scribe/infrastructure/config"
	"scribe/infrastructure/messaging/eventbridge"
	"scribe/infrastructure/persistence/sqlite"
	"scribe/infrastructure/storage"
	"scribe/interfaces/http/rest"
	"scribe/pkg/auth"
	pkgerrors "scribe/pkg/errors"
	"scribe/pkg/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

type apiEnv struct {
	server *httptest.Server
	db     *sql.DB
	admin  *services.AdminService
	router *rest.Router
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()
	dir := t.TempDir()

	db, err := sqlite.Open(ctx, filepath.Join(dir, "scribe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewLocalStore(filepath.Join(dir, "files"), logger)
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Observability.EnableMetrics = true

	jwtCfg := auth.JWTConfig{SecretKey: cfg.Auth.JWTSecret, Issuer: cfg.Auth.JWTIssuer, TTL: cfg.Auth.TokenTTL}
	generator, err := auth.NewJWTGenerator(jwtCfg)
	require.NoError(t, err)
	validator, err := auth.NewJWTValidator(jwtCfg)
	require.NoError(t, err)

	accounts := sqlite.NewAccountRepository(db, logger)
	projects := sqlite.NewProjectRepository(db, logger)
	whiteboards := sqlite.NewWhiteboardRepository(db, logger)
	exports := sqlite.NewExportRepository(db, logger)
	publisher := eventbridge.NewLogPublisher(logger)
	metrics := observability.Nop{}

	ledger := services.NewLedgerService(accounts, sqlite.NewUsageLedger(db, logger), publisher, metrics, nil, logger)
	projectSvc := services.NewProjectService(projects, whiteboards, exports, store, ledger, nil, logger)
	exportSvc := services.NewExportService(projects, whiteboards, exports, store, render.DefaultRegistry(), ledger, publisher, metrics, nil, logger)
	admin := services.NewAdminService(accounts, projects, whiteboards, exports, ledger, nil, logger)

	svcs := rest.Services{
		Accounts:  services.NewAccountService(accounts, projectSvc, generator, publisher, nil, logger),
		Ledger:    ledger,
		Uploads:   services.NewUploadService(projects, whiteboards, store, ledger, projectSvc, nil, logger),
		Analysis:  services.NewAnalysisService(projects, whiteboards, store, analysis.NewMockProvider(), ledger, publisher, metrics, nil, logger),
		Projects:  projectSvc,
		Exports:   exportSvc,
		Admin:     admin,
		Dashboard: services.NewDashboardService(projects, whiteboards, exports),
	}

	ready := func(ctx context.Context) error { return db.PingContext(ctx) }
	router := rest.NewRouter(cfg, svcs, validator, observability.NewCollector("scribe_test"),
		pkgerrors.NewErrorHandler(logger, false), ready, logger)
	router.ProgressInterval = 10 * time.Millisecond

	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)
	return &apiEnv{server: server, db: db, admin: admin, router: router}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Type    string          `json:"type"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(t, req, token)
}

func (e *apiEnv) send(t *testing.T, req *http.Request, token string) (*http.Response, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func (e *apiEnv) register(t *testing.T, email string) string {
	t.Helper()
	resp, env := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "correct horse",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	var auth struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &auth))
	require.NotEmpty(t, auth.Token)
	return auth.Token
}

func (e *apiEnv) upload(t *testing.T, token, filename string, data []byte) (*http.Response, envelope) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/api/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.send(t, req, token)
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestHealthAndReadiness(t *testing.T) {
	env := newAPI(t)

	resp, _ := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthentication(t *testing.T) {
	env := newAPI(t)

	resp, body := env.do(t, http.MethodGet, "/api/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, string(pkgerrors.ErrorTypeUnauthorized), body.Type)

	resp, _ = env.do(t, http.MethodGet, "/api/auth/profile", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := env.register(t, "Ada@Example.com")

	resp, body = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "ada@example.com", "password": "another one",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "email_taken", body.Code)

	resp, body = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode[map[string]any](t, body.Data)
	assert.Equal(t, "ada@example.com", profile["email"])
	assert.Equal(t, "ada", profile["username"])
	assert.EqualValues(t, 10, profile["free_uses_remaining"])
}

func TestProfileNeverEchoesCustomKey(t *testing.T) {
	env := newAPI(t)
	token := env.register(t, "grace@example.com")

	resp, body := env.do(t, http.MethodPut, "/api/auth/profile", token, map[string]string{
		"custom_api_key": "sk-private",
		"theme":          "dark",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)
	assert.NotContains(t, string(body.Data), "sk-private")

	profile := decode[map[string]any](t, body.Data)
	assert.Equal(t, true, profile["has_custom_api_key"])
	assert.Equal(t, "dark", profile["theme"])

	resp, body = env.do(t, http.MethodPut, "/api/auth/profile", token, map[string]string{"theme": "neon"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(pkgerrors.ErrorTypeValidation), body.Type)
}

func TestUploadAnalyzeExportFlow(t *testing.T) {
	env := newAPI(t)
	token := env.register(t, "lin@example.com")

	// upload
	resp, body := env.upload(t, token, "board.png", pngBytes)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)
	uploaded := decode[struct {
		Whiteboard struct {
			ID               string `json:"id"`
			ProcessingStatus string `json:"processing_status"`
			MimeType         string `json:"mime_type"`
		} `json:"whiteboard"`
		Project struct {
			ID string `json:"id"`
		} `json:"project"`
		ProjectCreated bool `json:"project_created"`
	}](t, body.Data)
	assert.True(t, uploaded.ProjectCreated)
	assert.Equal(t, "uploaded", uploaded.Whiteboard.ProcessingStatus)
	assert.Equal(t, "image/png", uploaded.Whiteboard.MimeType)
	wbID, projectID := uploaded.Whiteboard.ID, uploaded.Project.ID

	// analyze
	resp, body = env.do(t, http.MethodPost, "/api/analyze", token, map[string]string{"whiteboard_id": wbID})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)
	analyzed := decode[map[string]any](t, body.Data)
	assert.Equal(t, "completed", analyzed["processing_status"])
	assert.EqualValues(t, 100, analyzed["progress"])

	resp, body = env.do(t, http.MethodGet, "/api/content/"+wbID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	content := decode[struct {
		StructuredContent struct {
			Title string `json:"title"`
		} `json:"structured_content"`
	}](t, body.Data)
	assert.Equal(t, "Weekly Planning", content.StructuredContent.Title)

	// the empty project title was adopted from the content
	resp, body = env.do(t, http.MethodGet, "/api/projects/"+projectID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	project := decode[map[string]any](t, body.Data)
	assert.Equal(t, "Weekly Planning", project["title"])
	assert.Equal(t, "completed", project["status"])

	// usage counters
	resp, body = env.do(t, http.MethodGet, "/api/auth/usage", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	usage := decode[map[string]any](t, body.Data)
	assert.EqualValues(t, 1, usage["free_uses_count"])
	assert.EqualValues(t, 1, usage["images_processed"])

	// export and download
	resp, body = env.do(t, http.MethodPost, "/api/export", token, map[string]any{
		"project_id": projectID,
		"format":     "markdown",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)
	export := decode[struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		Filename    string `json:"filename"`
		DownloadURL string `json:"download_url"`
	}](t, body.Data)
	assert.Equal(t, "completed", export.Status)
	assert.True(t, strings.HasSuffix(export.Filename, ".md"))

	resp, _ = env.do(t, http.MethodGet, export.DownloadURL, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")

	resp, body = env.do(t, http.MethodGet, "/api/export/"+export.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, decode[map[string]any](t, body.Data)["download_count"])

	resp, body = env.do(t, http.MethodGet, "/api/projects/"+projectID+"/exports", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := decode[struct {
		Exports []map[string]any `json:"exports"`
	}](t, body.Data)
	assert.Len(t, listed.Exports, 1)

	// dashboard
	resp, body = env.do(t, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dash := decode[map[string]any](t, body.Data)
	assert.EqualValues(t, 1, dash["project_count"])
	assert.EqualValues(t, 1, dash["whiteboard_count"])
	assert.EqualValues(t, 1, dash["export_count"])
}

func TestUploadRejectsNonImages(t *testing.T) {
	env := newAPI(t)
	token := env.register(t, "kim@example.com")

	resp, body := env.upload(t, token, "notes.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unsupported_type", body.Code)

	resp, body = env.upload(t, token, "fake.png", []byte("plain text pretending"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unsupported_type", body.Code)
}

func TestAnalyzeDeniedWhenFreeUsesAreSpent(t *testing.T) {
	env := newAPI(t)
	token := env.register(t, "sam@example.com")

	resp, body := env.upload(t, token, "board.png", pngBytes)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)
	wbID := decode[struct {
		Whiteboard struct {
			ID string `json:"id"`
		} `json:"whiteboard"`
	}](t, body.Data).Whiteboard.ID

	_, err := env.db.Exec(`UPDATE accounts SET free_uses_count = 10`)
	require.NoError(t, err)

	resp, body = env.do(t, http.MethodPost, "/api/analyze", token, map[string]string{"whiteboard_id": wbID})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, pkgerrors.ReasonUsageLimitExceeded, body.Code)

	// the denied request left the whiteboard untouched
	resp, body = env.do(t, http.MethodGet, "/api/content/"+wbID, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProgressStreamEndsWithTerminalState(t *testing.T) {
	env := newAPI(t)
	token := env.register(t, "eve@example.com")

	resp, body := env.upload(t, token, "board.png", pngBytes)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)
	wbID := decode[struct {
		Whiteboard struct {
			ID string `json:"id"`
		} `json:"whiteboard"`
	}](t, body.Data).Whiteboard.ID

	resp, _ = env.do(t, http.MethodPost, "/api/analyze", token, map[string]string{"whiteboard_id": wbID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// EventSource clients pass the token in the query string
	stream, err := http.Get(env.server.URL + "/api/whiteboards/" + wbID + "/progress?token=" + token)
	require.NoError(t, err)
	defer stream.Body.Close()
	require.Equal(t, http.StatusOK, stream.StatusCode)
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	var events []map[string]any
	scanner := bufio.NewScanner(stream.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var ev map[string]any
			require.NoError(t, json.Unmarshal([]byte(data), &ev))
			events = append(events, ev)
		}
	}
	require.Len(t, events, 1)
	assert.Equal(t, "completed", events[0]["status"])
	assert.Equal(t, "Analysis complete!", events[0]["message"])
	assert.NotNil(t, events[0]["whiteboard"])
}

func TestProjectsShareAndSearch(t *testing.T) {
	env := newAPI(t)
	token := env.register(t, "max@example.com")
	other := env.register(t, "zoe@example.com")

	for _, title := range []string{"Sprint review", "Budget", "Sprint planning"} {
		resp, body := env.do(t, http.MethodPost, "/api/projects", token, map[string]string{"title": title})
		require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)
	}

	resp, body := env.do(t, http.MethodGet, "/api/projects?q=sprint&page_size=1", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	found := decode[[]map[string]any](t, body.Data)
	assert.Len(t, found, 1)
	meta := decode[struct {
		Pagination struct {
			Total   int  `json:"total"`
			HasNext bool `json:"has_next"`
		} `json:"pagination"`
	}](t, body.Meta)
	assert.Equal(t, 2, meta.Pagination.Total)
	assert.True(t, meta.Pagination.HasNext)

	projectID := found[0]["id"].(string)

	// other accounts cannot see it
	resp, _ = env.do(t, http.MethodGet, "/api/projects/"+projectID, other, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/projects/"+projectID+"/share", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)
	shareToken := decode[struct {
		ShareToken string `json:"share_token"`
	}](t, body.Data).ShareToken
	require.NotEmpty(t, shareToken)

	resp, body = env.do(t, http.MethodGet, "/api/share/"+shareToken, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	shared := decode[map[string]any](t, body.Data)
	assert.Equal(t, projectID, shared["id"])
	assert.Nil(t, shared["share_token"])

	resp, _ = env.do(t, http.MethodDelete, "/api/projects/"+projectID+"/share", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/share/"+shareToken, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/projects/"+projectID, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAdminRoutes(t *testing.T) {
	env := newAPI(t)
	token := env.register(t, "root@example.com")
	userToken := env.register(t, "user@example.com")

	resp, _ := env.do(t, http.MethodGet, "/api/admin/stats", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, err := env.admin.GrantAdmin(context.Background(), "root@example.com")
	require.NoError(t, err)

	// roles are carried in the token, so sign in again
	resp, body := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "root@example.com", "password": "correct horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token = decode[struct {
		Token string `json:"token"`
	}](t, body.Data).Token

	resp, body = env.do(t, http.MethodGet, "/api/admin/users?page_size=10", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	users := decode[[]map[string]any](t, body.Data)
	assert.Len(t, users, 2)

	var userID string
	for _, u := range users {
		if u["email"] == "user@example.com" {
			userID = u["id"].(string)
		}
	}
	require.NotEmpty(t, userID)

	resp, body = env.do(t, http.MethodPost, "/api/payment/request", userToken, map[string]string{"plan": "monthly"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, body.Message)

	resp, body = env.do(t, http.MethodPut, "/api/admin/users/"+userID+"/subscription", token, map[string]any{
		"subscription_type": "monthly",
		"payment_status":    "active",
		"activate":          true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)
	updated := decode[map[string]any](t, body.Data)
	assert.Equal(t, "monthly", updated["subscription_type"])
	assert.NotNil(t, updated["subscription_expires_at"])

	resp, body = env.do(t, http.MethodGet, "/api/admin/stats", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[map[string]any](t, body.Data)
	assert.EqualValues(t, 2, stats["total_accounts"])
	assert.EqualValues(t, 1, stats["active_subscriptions"])
	assert.InDelta(t, 16.5, stats["estimated_monthly_revenue"], 0.001)

	resp, body = env.do(t, http.MethodPost, "/api/admin/exports/purge", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, decode[map[string]any](t, body.Data)["removed"])

	resp, _ = env.do(t, http.MethodPost, "/api/admin/exports/purge?days=0", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORSFollowsReload(t *testing.T) {
	env := newAPI(t)

	preflight := func(origin string) string {
		req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/api/payment/plans", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.Header.Get("Access-Control-Allow-Origin")
	}

	assert.Equal(t, "http://localhost:3000", preflight("http://localhost:3000"))
	assert.Empty(t, preflight("https://app.example.com"))

	next := config.Defaults()
	next.CORS.AllowedOrigins = []string{"https://app.example.com"}
	env.router.Reload(next)

	assert.Equal(t, "https://app.example.com", preflight("https://app.example.com"))
	assert.Empty(t, preflight("http://localhost:3000"))
}
