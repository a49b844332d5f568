package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-backend/infrastructure/config"
	"canvas-backend/infrastructure/di"
	"canvas-backend/pkg/auth"
)

const secret = "router-test-secret"

type api struct {
	t      *testing.T
	server *httptest.Server
	token  string
}

func newAPI(t *testing.T) *api {
	t.Helper()
	cfg := config.Defaults()
	cfg.LogLevel = "error"
	cfg.JWTSecret = secret
	cfg.EnableMetrics = true

	container, cleanup, err := di.InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	server := httptest.NewServer(container.Router.Setup())
	t.Cleanup(server.Close)

	gen, err := auth.NewJWTGenerator(secret, cfg.JWTIssuer, nil, time.Hour)
	require.NoError(t, err)
	token, err := gen.GenerateToken("user-1", "user@example.com", []string{"authenticated"})
	require.NoError(t, err)

	return &api{t: t, server: server, token: token}
}

func (a *api) do(method, path string, body interface{}, headers ...string) *http.Response {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	a.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// data decodes the response envelope and returns its data object
func data(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	return envelope.Data
}

func errorBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func text(t *testing.T, resp *http.Response) string {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func TestRouter_HealthAndReadiness(t *testing.T) {
	a := newAPI(t)

	health := a.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, health.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, text(t, health))

	ready := a.do(http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, ready.StatusCode)
}

func TestRouter_Authentication(t *testing.T) {
	a := newAPI(t)

	t.Run("missing token", func(t *testing.T) {
		anon := &api{t: t, server: a.server}
		resp := anon.do(http.MethodPost, "/api/v1/graphs", map[string]string{"name": "g"})

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := errorBody(t, resp)
		assert.Equal(t, "UNAUTHORIZED", body["type"])
		assert.Equal(t, "Missing authorization header", body["message"])
	})

	t.Run("bad signature", func(t *testing.T) {
		gen, err := auth.NewJWTGenerator("other-secret", "canvas-backend", nil, time.Hour)
		require.NoError(t, err)
		token, err := gen.GenerateToken("user-1", "", nil)
		require.NoError(t, err)

		forged := &api{t: t, server: a.server, token: token}
		resp := forged.do(http.MethodGet, "/api/v1/nodes/whatever", nil)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Invalid token signature", errorBody(t, resp)["message"])
	})
}

func TestRouter_EdgeTransferAndExport(t *testing.T) {
	a := newAPI(t)

	// Arrange: a document and a fresh chat node in one graph
	resp := a.do(http.MethodPost, "/api/v1/graphs/", map[string]string{"name": "Trip"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	graphID := data(t, resp)["id"].(string)

	resp = a.do(http.MethodPost, "/api/v1/graphs/"+graphID+"/nodes", map[string]interface{}{
		"type":    "document",
		"title":   "Guide",
		"payload": map[string]interface{}{"content": "Lisbon has trams."},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	docID := data(t, resp)["id"].(string)

	resp = a.do(http.MethodPost, "/api/v1/graphs/"+graphID+"/nodes", map[string]interface{}{"type": "chat", "title": "Plan"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	chatID := data(t, resp)["id"].(string)

	// Act: connect them
	resp = a.do(http.MethodPost, "/api/v1/graphs/"+graphID+"/edges", map[string]string{"source_id": docID, "target_id": chatID})

	// Assert: a session was spawned with the document as context
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	edge := data(t, resp)
	assert.Equal(t, "spawn_session", edge["strategy"])
	sessionID := edge["chat_session_id"].(string)
	require.NotEmpty(t, sessionID)
	// A spawn reports only the new session; the seeded message lives in it
	_, hasMessages := edge["messages"]
	assert.False(t, hasMessages)

	resp = a.do(http.MethodGet, "/api/v1/nodes/"+chatID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, sessionID, data(t, resp)["chat_session_id"])

	resp = a.do(http.MethodGet, "/api/v1/sessions/"+sessionID+"/messages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	seeded := data(t, resp)["messages"].([]interface{})
	require.Len(t, seeded, 1)
	seed := seeded[0].(map[string]interface{})
	assert.Equal(t, "context", seed["role"])
	assert.Equal(t, docID, seed["source_node_id"])
	assert.Contains(t, seed["content"], "Lisbon has trams.")

	resp = a.do(http.MethodPost, "/api/v1/sessions/"+sessionID+"/messages", map[string]string{"role": "user", "content": "Best tram line?"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = a.do(http.MethodGet, "/api/v1/sessions/"+sessionID+"/messages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, data(t, resp)["messages"], 2)

	t.Run("markdown export is cached", func(t *testing.T) {
		first := a.do(http.MethodGet, "/api/v1/sessions/"+sessionID+"/export?title=Trip%20notes", nil)
		require.Equal(t, http.StatusOK, first.StatusCode)
		assert.Equal(t, "text/markdown; charset=utf-8", first.Header.Get("Content-Type"))
		assert.Equal(t, "MISS", first.Header.Get("X-Cache"))
		body := text(t, first)
		assert.True(t, strings.HasPrefix(body, "# Trip notes\n"))
		assert.Contains(t, body, "Lisbon has trams.")
		assert.Contains(t, body, "## User\n\nBest tram line?\n")

		second := a.do(http.MethodGet, "/api/v1/sessions/"+sessionID+"/export?title=Trip%20notes", nil)
		assert.Equal(t, "HIT", second.Header.Get("X-Cache"))
		assert.Equal(t, body, text(t, second))
	})

	t.Run("diagram export as json", func(t *testing.T) {
		resp := a.do(http.MethodGet, "/api/v1/sessions/"+sessionID+"/export?format=diagram&direction=lr", nil, "Accept", "application/json")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		doc := data(t, resp)
		assert.Equal(t, "diagram", doc["format"])
		assert.EqualValues(t, 2, doc["message_count"])
		assert.Contains(t, doc["body"], "flowchart LR")
	})

	t.Run("post export", func(t *testing.T) {
		resp := a.do(http.MethodPost, "/api/v1/sessions/"+sessionID+"/export", map[string]interface{}{
			"format":  "markdown",
			"options": map[string]interface{}{"max_messages": 1},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.EqualValues(t, 1, data(t, resp)["message_count"])
	})

	t.Run("metrics", func(t *testing.T) {
		resp := a.do(http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := text(t, resp)
		assert.Contains(t, body, "canvas_edges_created_total 1")
		assert.Contains(t, body, "canvas_http_requests_total")
	})
}

func TestRouter_Errors(t *testing.T) {
	a := newAPI(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown session",
			method:     http.MethodGet,
			path:       "/api/v1/sessions/0f8fad5b-d9cb-469f-a165-70867728950e/export",
			wantStatus: http.StatusNotFound,
			wantCode:   "SESSION_NOT_FOUND",
		},
		{
			name:       "malformed session id",
			method:     http.MethodGet,
			path:       "/api/v1/sessions/not-a-uuid/export",
			wantStatus: http.StatusBadRequest,
			wantCode:   "MALFORMED_ID",
		},
		{
			name:       "bad query parameter",
			method:     http.MethodGet,
			path:       "/api/v1/sessions/0f8fad5b-d9cb-469f-a165-70867728950e/export?max_messages=lots",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field in body",
			method:     http.MethodPost,
			path:       "/api/v1/graphs/",
			body:       map[string]string{"nme": "typo"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "edge in unknown graph",
			method:     http.MethodPost,
			path:       "/api/v1/graphs/0f8fad5b-d9cb-469f-a165-70867728950e/edges",
			body:       map[string]string{"source_id": "0f8fad5b-d9cb-469f-a165-70867728950e", "target_id": "7c9e6679-7425-40de-944b-e07fc1f90ae7"},
			wantStatus: http.StatusNotFound,
			wantCode:   "GRAPH_NOT_FOUND",
		},
		{
			name:       "unknown route",
			method:     http.MethodGet,
			path:       "/api/v2/graphs",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := a.do(tt.method, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			body := errorBody(t, resp)
			assert.Equal(t, true, body["error"])
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["code"])
			}
		})
	}
}
