package claw

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/oraraka-deko/microclaw/device"
)

// vendorServer answers every request with status and body, recording the
// last request body.
type vendorServer struct {
	*httptest.Server
	hits    atomic.Int32
	lastReq atomic.Value
}

func newVendorServer(t *testing.T, suffix string, status int, body string) *vendorServer {
	t.Helper()
	vs := &vendorServer{}
	vs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vs.hits.Add(1)
		b, _ := io.ReadAll(r.Body)
		vs.lastReq.Store(string(b))
		if !strings.HasSuffix(r.URL.Path, suffix) {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(vs.Close)
	return vs
}

func (vs *vendorServer) request() string {
	s, _ := vs.lastReq.Load().(string)
	return s
}

func memoryRegistry() *ToolRegistry {
	r := NewToolRegistry()
	r.Register(Tool{Name: "memory_read", Description: "read memory"}, func(ctx context.Context, args map[string]any) (string, error) {
		return "Memory is empty", nil
	})
	r.Register(Tool{
		Name:        "memory_write",
		Description: "write memory",
		ParametersSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"content": map[string]any{"type": "string"}},
			"required":   []string{"content"},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		return "Memory updated", nil
	})
	return r
}

func testGemini(t *testing.T, url string, link device.Link, native bool) providerClient {
	t.Helper()
	cfg := DefaultConfig()
	cfg.GeminiAPIKey = "test-key"
	cfg.GeminiBaseURL = url + "/"
	cfg.GeminiNativeTools = native
	cfg.Timeout = 5 * time.Second
	pc, err := newGeminiProvider(cfg.withDefaults(), link, memoryRegistry())
	if err != nil {
		t.Fatalf("newGeminiProvider: %v", err)
	}
	return pc
}

func testGroq(t *testing.T, url string, link device.Link, native bool) providerClient {
	t.Helper()
	cfg := DefaultConfig()
	cfg.GroqAPIKey = "test-key"
	cfg.GroqBaseURL = url
	cfg.GroqNativeTools = native
	cfg.Timeout = 5 * time.Second
	pc, err := newGroqProvider(cfg.withDefaults(), link, memoryRegistry())
	if err != nil {
		t.Fatalf("newGroqProvider: %v", err)
	}
	return pc
}

func decode(t *testing.T, raw string) Decision {
	t.Helper()
	d, err := parseDecision(raw)
	if err != nil {
		t.Fatalf("payload %q is not a decision: %v", raw, err)
	}
	return d
}

func TestGemini_TextResponse(t *testing.T) {
	srv := newVendorServer(t, ":generateContent", http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"tool\":\"none\",\"reply\":\"hi\"}"}]},"finishReason":"STOP"}]}`)
	pc := testGemini(t, srv.URL, device.StaticLink(true), true)

	got := decode(t, pc.generate(context.Background(), "hello"))
	if got.Reply != "hi" || got.Tool != ToolNone {
		t.Errorf("unexpected decision %+v", got)
	}
	req := srv.request()
	if !strings.Contains(req, "hello") {
		t.Errorf("prompt not sent: %s", req)
	}
	if !strings.Contains(req, "memory_read") {
		t.Errorf("native tools should be declared by default: %s", req)
	}
}

func TestGemini_NativeToolCall(t *testing.T) {
	tests := []struct {
		name string
		call string
		want Decision
	}{
		{
			name: "known tool",
			call: `{"name":"memory_read","args":{}}`,
			want: Decision{
				Thought: "Agent invoked native tool: memory_read",
				Tool:    "memory_read",
				Args:    map[string]any{},
				Reply:   "Executing memory_read...",
			},
		},
		{
			name: "unknown tool",
			call: `{"name":"launch_rocket","args":{"when":"now"}}`,
			want: Decision{
				Thought: "Unknown tool called",
				Tool:    ToolNone,
				Args:    map[string]any{},
				Reply:   "Error: Model tried to call unknown tool launch_rocket",
			},
		},
		{
			name: "wrong argument type",
			call: `{"name":"memory_write","args":{"content":5}}`,
			want: Decision{
				Thought: "Invalid arguments for native tool memory_write",
				Tool:    ToolNone,
				Args:    map[string]any{},
				Reply:   "Error: Model called memory_write with invalid arguments (parameter content: expected string, got float64)",
			},
		},
		{
			name: "missing argument",
			call: `{"name":"memory_write","args":{}}`,
			want: Decision{
				Thought: "Invalid arguments for native tool memory_write",
				Tool:    ToolNone,
				Args:    map[string]any{},
				Reply:   "Error: Model called memory_write with invalid arguments (missing required parameter: content)",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newVendorServer(t, ":generateContent", http.StatusOK,
				`{"candidates":[{"content":{"role":"model","parts":[{"functionCall":`+tt.call+`}]}}]}`)
			pc := testGemini(t, srv.URL, device.StaticLink(true), true)

			got := decode(t, pc.generate(context.Background(), "what do you remember?"))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("decision mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGemini_HTTPError(t *testing.T) {
	srv := newVendorServer(t, ":generateContent", http.StatusBadRequest,
		`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
	pc := testGemini(t, srv.URL, device.StaticLink(true), false)

	got := decode(t, pc.generate(context.Background(), "hello"))
	if !strings.HasPrefix(got.Error, "HTTP Error 400: ") {
		t.Errorf("unexpected error %q", got.Error)
	}
	if strings.Contains(srv.request(), "functionDeclarations") {
		t.Error("native tools disabled but declared")
	}
}

func TestGemini_EmptyText(t *testing.T) {
	srv := newVendorServer(t, ":generateContent", http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[]}}]}`)
	pc := testGemini(t, srv.URL, device.StaticLink(true), false)

	if got := decode(t, pc.generate(context.Background(), "hello")); got.Error != "No text in Gemini response" {
		t.Errorf("unexpected error %q", got.Error)
	}
}

func TestGroq_TextResponse(t *testing.T) {
	srv := newVendorServer(t, "/chat/completions", http.StatusOK,
		`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"tool\":\"none\",\"reply\":\"hey\"}"},"finish_reason":"stop"}]}`)
	pc := testGroq(t, srv.URL, device.StaticLink(true), false)

	got := decode(t, pc.generate(context.Background(), "hello"))
	if got.Reply != "hey" {
		t.Errorf("unexpected decision %+v", got)
	}

	var req map[string]any
	if err := json.Unmarshal([]byte(srv.request()), &req); err != nil {
		t.Fatalf("request is not JSON: %v", err)
	}
	want := map[string]any{
		"model":                 DefaultGroqModel,
		"temperature":           1.0,
		"top_p":                 1.0,
		"max_completion_tokens": 1024.0,
	}
	for k, v := range want {
		if req[k] != v {
			t.Errorf("request %s = %v, want %v", k, req[k], v)
		}
	}
	if _, ok := req["tools"]; ok {
		t.Error("Groq must not declare native tools by default")
	}
}

func TestGroq_NativeToolCall(t *testing.T) {
	srv := newVendorServer(t, "/chat/completions", http.StatusOK,
		`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"","tool_calls":[{"id":"c1","type":"function","function":{"name":"memory_read","arguments":"{}"}}]},"finish_reason":"tool_calls"}]}`)
	pc := testGroq(t, srv.URL, device.StaticLink(true), true)

	got := decode(t, pc.generate(context.Background(), "recall"))
	want := Decision{
		Thought: "Agent invoked native tool: memory_read",
		Tool:    "memory_read",
		Args:    map[string]any{},
		Reply:   "Executing memory_read...",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(srv.request(), `"tools"`) {
		t.Error("tools should be sent when enabled")
	}
}

func TestGroq_HTTPError(t *testing.T) {
	srv := newVendorServer(t, "/chat/completions", http.StatusUnauthorized,
		`{"error":{"message":"Invalid API Key","type":"invalid_request_error","code":"invalid_api_key"}}`)
	pc := testGroq(t, srv.URL, device.StaticLink(true), false)

	got := decode(t, pc.generate(context.Background(), "hello"))
	if got.Error != "HTTP Error 401: Invalid API Key" {
		t.Errorf("unexpected error %q", got.Error)
	}
}

func TestProviders_OfflineFastFail(t *testing.T) {
	gem := newVendorServer(t, ":generateContent", http.StatusOK, `{}`)
	groq := newVendorServer(t, "/chat/completions", http.StatusOK, `{}`)

	for _, pc := range []providerClient{
		testGemini(t, gem.URL, device.StaticLink(false), true),
		testGroq(t, groq.URL, device.StaticLink(false), true),
	} {
		if got := pc.generate(context.Background(), "hi"); got != `{"error":"WiFi not connected"}` {
			t.Errorf("%s: got %q", pc.name(), got)
		}
	}
	if gem.hits.Load() != 0 || groq.hits.Load() != 0 {
		t.Error("offline providers must not reach the network")
	}
}

func TestProviders_RequireKeys(t *testing.T) {
	cfg := DefaultConfig().withDefaults()
	if _, err := newGeminiProvider(cfg, nil, nil); err == nil {
		t.Error("expected error without Gemini key")
	}
	if _, err := newGroqProvider(cfg, nil, nil); err == nil {
		t.Error("expected error without Groq key")
	}
}

func TestHTTPErrorPayloadTruncates(t *testing.T) {
	body := strings.Repeat("x", 500)
	d := decode(t, httpErrorPayload(503, body))
	want := "HTTP Error 503: " + strings.Repeat("x", maxErrorBody)
	if d.Error != want {
		t.Errorf("got %d chars, want %d", len(d.Error), len(want))
	}

	if got := truncate("héllo", 2); got != "h" {
		t.Errorf("truncate split a rune: %q", got)
	}
}
