package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

func newTestServer(t *testing.T, f *fixture) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(f.pipeline).RegisterRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func postCompletion(t *testing.T, srv *httptest.Server, headers map[string]string, body string) *http.Response {
	t.Helper()
	req, errRequest := http.NewRequest(http.MethodPost, srv.URL+"/v1/chat/completions", strings.NewReader(body))
	if errRequest != nil {
		t.Fatalf("build request: %v", errRequest)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, errDo := http.DefaultClient.Do(req)
	if errDo != nil {
		t.Fatalf("do request: %v", errDo)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	payload, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		t.Fatalf("read body: %v", errRead)
	}
	return string(payload)
}

func TestHandler_MissAndHitHeaders(t *testing.T) {
	f := newFixture(t, fixtureOptions{platformKeys: map[string]string{"openai": "sk-openai"}})
	srv := newTestServer(t, f)
	body := `{"model":"gpt-4o","messages":[{"role":"user","content":"Hello"}]}`

	resp := postCompletion(t, srv, map[string]string{HeaderAPIKey: f.rawKey}, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if got := resp.Header.Get(HeaderCacheState); got != "MISS" {
		t.Fatalf("expected MISS header, got %q", got)
	}
	payload := readBody(t, resp)
	if gjson.Get(payload, "content").String() != "hello" {
		t.Fatalf("unexpected payload %s", payload)
	}
	if strings.HasPrefix(gjson.Get(payload, "id").String(), "cached-") {
		t.Fatal("fresh response must not carry the cached id prefix")
	}

	resp = postCompletion(t, srv, map[string]string{HeaderAPIKey: f.rawKey}, body)
	if got := resp.Header.Get(HeaderCacheState); got != "HIT" {
		t.Fatalf("expected HIT header, got %q", got)
	}
	payload = readBody(t, resp)
	if !strings.HasPrefix(gjson.Get(payload, "id").String(), "cached-") {
		t.Fatalf("expected cached id prefix, got %s", payload)
	}
	if !gjson.Get(payload, "cached").Bool() {
		t.Fatal("expected cached flag")
	}
}

func TestHandler_BearerFallback(t *testing.T) {
	f := newFixture(t, fixtureOptions{platformKeys: map[string]string{"openai": "sk-openai"}})
	srv := newTestServer(t, f)
	body := `{"model":"gpt-4o","messages":[{"role":"user","content":"Hello"}]}`

	resp := postCompletion(t, srv, map[string]string{"Authorization": "Bearer " + f.rawKey}, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestHandler_ErrorShapes(t *testing.T) {
	f := newFixture(t, fixtureOptions{platformKeys: map[string]string{"openai": "sk-openai"}})
	srv := newTestServer(t, f)
	body := `{"model":"gpt-4o","messages":[{"role":"user","content":"Hello"}]}`

	resp := postCompletion(t, srv, nil, body)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", resp.StatusCode)
	}
	payload := readBody(t, resp)
	if gjson.Get(payload, "error").String() != CodeUnauthorized {
		t.Fatalf("unexpected error payload %s", payload)
	}
	if gjson.Get(payload, "message").String() == "" {
		t.Fatal("expected a human message")
	}

	resp = postCompletion(t, srv, map[string]string{HeaderAPIKey: f.rawKey}, "{not json")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
}
