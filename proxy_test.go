package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyRejectsNonPostMethod(t *testing.T) {
	p := NewProxy(DefaultConfig())
	req := httptest.NewRequest(http.MethodGet, "/v1/chat/completions", nil)
	rec := httptest.NewRecorder()

	p.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProxyRejectsMissingProviderHeader(t *testing.T) {
	p := NewProxy(DefaultConfig())
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	p.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "InvalidRequestFormat", body.Error.Type)
}

func TestProxyRejectsUnknownProvider(t *testing.T) {
	p := NewProxy(DefaultConfig())
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
	req.Header.Set("x-provider", "not-a-real-provider")
	rec := httptest.NewRecorder()

	p.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UnsupportedModel", body.Error.Type)
}

func TestProxyRejectsOversizeBody(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRequestSize = 4
	p := NewProxy(cfg)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"messages":[]}`))
	req.Header.Set("x-provider", "openai")
	req.Header.Set("Authorization", "Bearer sk-test")
	rec := httptest.NewRecorder()

	p.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestProxyDifyWorkflowRoundTrip exercises the full pipeline end to end
// against a stub upstream, covering header rewriting, path resolution, body
// translation, and response pass-through for a non-streaming workflow call.
func TestProxyDifyWorkflowRoundTrip(t *testing.T) {
	var gotPath string
	var gotBody jsonObj
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"answer":"hi"}`))
	}))
	defer upstream.Close()

	p := NewProxy(DefaultConfig())
	p.client = upstream.Client()

	reqBody := `{"messages":[{"role":"user","content":"hello"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(reqBody))
	req.Header.Set("x-provider", "dify")
	req.Header.Set("x-dify-base-url", upstream.URL)
	req.Header.Set("x-dify-workflow-id", "wf-123")
	req.Header.Set("Authorization", "Bearer sk-test")
	rec := httptest.NewRecorder()

	p.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/v1/workflows/wf-123/run", gotPath)
	assert.Equal(t, "hello", gotBody["query"])
	assert.Contains(t, rec.Body.String(), "hi")
}

func TestCopyHeadersAppends(t *testing.T) {
	dst := http.Header{}
	src := http.Header{"X-A": []string{"1", "2"}}
	copyHeaders(dst, src)
	assert.Equal(t, []string{"1", "2"}, dst["X-A"])
}
