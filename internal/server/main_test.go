package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"strayland/internal/auth"
	"strayland/internal/config"
	"strayland/internal/database"
	"strayland/internal/llm"
	"strayland/internal/models"
	"strayland/internal/service"
	"strayland/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// mockCompleter is a testify mock of service.Completer.
type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Configured() bool {
	return m.Called().Bool(0)
}

func (m *mockCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type testEnv struct {
	server    *Server
	app       *fiber.App
	db        *gorm.DB
	objects   *testutil.MemoryObjectStore
	completer *mockCompleter
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                    "test",
		Port:                   "0",
		AllowedOrigins:         "http://localhost:5173",
		AuthMode:               config.AuthModeMixed,
		JWTSecret:              "test-secret-that-is-at-least-32-chars",
		JWTIssuer:              "strayland-api",
		JWTAudience:            "strayland-app",
		VoterHashKey:           "test-hash-key",
		StorageDriver:          config.StorageDriverLocal,
		MaxUploadBytes:         1 << 20,
		RateLimitLikes:         60,
		RateLimitChat:          20,
		RateLimitWindowSeconds: 60,
	}
}

func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// newTestEnv builds a server over sqlite and an in-memory object store.
// mutate may adjust the config or deps before the server is built.
func newTestEnv(t *testing.T, mutate ...func(*config.Config, *Deps)) *testEnv {
	t.Helper()
	cfg := testConfig()
	completer := new(mockCompleter)
	objects := testutil.NewMemoryObjectStore()
	deps := Deps{
		DB:        setupSQLiteDB(t),
		Objects:   objects,
		Completer: completer,
		Assistant: service.DefaultAssistantProfile(),
	}
	for _, m := range mutate {
		m(cfg, &deps)
	}

	s, err := NewServerWithDeps(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(func() { s.shutdownFn() })

	return &testEnv{
		server:    s,
		app:       s.App(),
		db:        deps.DB,
		objects:   objects,
		completer: completer,
	}
}

func (e *testEnv) seedPost(t *testing.T, voterID, title string) *models.Post {
	t.Helper()
	post := &models.Post{Author: "mika", Title: title, Content: "seen near the market", VoterID: voterID}
	require.NoError(t, e.db.Create(post).Error)
	return post
}

// anonymousVoter is the voter id the server derives for clientID.
func (e *testEnv) anonymousVoter(t *testing.T, clientID string) string {
	t.Helper()
	voter, err := e.server.resolver.Resolve(context.Background(), auth.Credentials{ClientID: clientID})
	require.NoError(t, err)
	return voter.ID
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) decode(t *testing.T, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, dest), "body: %s", r.body)
}

func (r response) errorCode(t *testing.T) string {
	t.Helper()
	var body models.ErrorResponse
	r.decode(t, &body)
	return body.Code
}

func (e *testEnv) do(t *testing.T, req *http.Request) response {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, header: resp.Header, body: body}
}

// request builds a JSON request; clientID, when set, identifies an anonymous voter.
func request(method, path string, body any, clientID string) *http.Request {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if clientID != "" {
		req.Header.Set("X-Client-Id", clientID)
	}
	return req
}

type formFile struct {
	name    string
	content []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, file *formFile, clientID string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile("image", file.name)
		require.NoError(t, err)
		_, err = part.Write(file.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if clientID != "" {
		req.Header.Set("X-Client-Id", clientID)
	}
	return req
}

// nextEvent waits for the next feed event delivered to a hub client.
func nextEvent(t *testing.T, ch <-chan []byte) (string, map[string]any) {
	t.Helper()
	select {
	case raw := <-ch:
		var event struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &event))
		return event.Type, event.Payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed event")
		return "", nil
	}
}
