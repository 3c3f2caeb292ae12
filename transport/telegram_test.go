package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/oraraka-deko/microclaw/device"
)

type sentMessage struct {
	ChatID string
	Text   string
}

// fakeBotAPI serves queued updates one per poll and records sent messages.
type fakeBotAPI struct {
	t            *testing.T
	mu           sync.Mutex
	updates      []string
	offsets      []string
	sent         []sentMessage
	failN        int
	unauthorized bool
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		f.t.Errorf("bad form: %v", err)
	}
	if f.unauthorized {
		_, _ = io.WriteString(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/bottest-token/getMe"):
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"MicroClaw","username":"microclaw_bot"}}`)
	case strings.HasSuffix(r.URL.Path, "/bottest-token/getUpdates"):
		f.offsets = append(f.offsets, r.PostForm.Get("offset"))
		if f.failN > 0 {
			f.failN--
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		result := "[]"
		if len(f.updates) > 0 {
			result = "[" + f.updates[0] + "]"
			f.updates = f.updates[1:]
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":`+result+`}`)
	case strings.HasSuffix(r.URL.Path, "/bottest-token/sendMessage"):
		f.sent = append(f.sent, sentMessage{ChatID: r.PostForm.Get("chat_id"), Text: r.PostForm.Get("text")})
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":`+r.PostForm.Get("chat_id")+`,"type":"private"}}}`)
	default:
		f.t.Errorf("unexpected path %s", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeBotAPI) snapshot() ([]string, []sentMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.offsets...), append([]sentMessage(nil), f.sent...)
}

func newTestTelegram(t *testing.T, api *fakeBotAPI, h Handler) *Telegram {
	t.Helper()
	api.t = t
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewTelegram("test-token", h).WithBaseURL(srv.URL).WithPollInterval(5 * time.Millisecond)
}

func TestTelegram_PollOnce(t *testing.T) {
	api := &fakeBotAPI{updates: []string{
		`{"update_id":41,"message":{"chat":{"id":7},"text":"hello"}}`,
	}}
	h := &fakeHandler{}
	tg := newTestTelegram(t, api, h)

	handled, err := tg.PollOnce(context.Background())
	if err != nil || !handled {
		t.Fatalf("PollOnce = %v, %v", handled, err)
	}
	handled, err = tg.PollOnce(context.Background())
	if err != nil || handled {
		t.Fatalf("second PollOnce = %v, %v", handled, err)
	}

	offsets, sent := api.snapshot()
	if diff := cmp.Diff([]string{"1", "42"}, offsets); diff != "" {
		t.Errorf("offsets mismatch (-want +got):\n%s", diff)
	}
	want := []sentMessage{{ChatID: "7", Text: ThinkingMessage}, {ChatID: "7", Text: "echo: hello"}}
	if diff := cmp.Diff(want, sent); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
}

func TestTelegram_SkipsNonText(t *testing.T) {
	api := &fakeBotAPI{updates: []string{`{"update_id":3}`}}
	h := &fakeHandler{}
	tg := newTestTelegram(t, api, h)

	handled, err := tg.PollOnce(context.Background())
	if err != nil || !handled {
		t.Fatalf("PollOnce = %v, %v", handled, err)
	}
	if _, sent := api.snapshot(); len(sent) != 0 || len(h.seen()) != 0 {
		t.Error("non-text update should be consumed silently")
	}
}

func TestTelegram_RunRetriesAndStops(t *testing.T) {
	api := &fakeBotAPI{
		failN:   2,
		updates: []string{`{"update_id":1,"message":{"chat":{"id":9},"text":"ping"}}`},
	}
	h := &fakeHandler{}
	tg := newTestTelegram(t, api, h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tg.Run(ctx) }()

	deadline := time.After(10 * time.Second)
	for len(h.seen()) == 0 {
		select {
		case <-deadline:
			cancel()
			t.Fatal("message never handled")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if h.seen()[0].Text != "ping" {
		t.Errorf("unexpected input %+v", h.seen()[0])
	}
}

func TestTelegram_RevokedTokenIsPermanent(t *testing.T) {
	api := &fakeBotAPI{unauthorized: true}
	tg := newTestTelegram(t, api, &fakeHandler{})

	_, err := tg.PollOnce(context.Background())
	var perm *backoff.PermanentError
	if !errors.As(err, &perm) {
		t.Fatalf("expected a permanent error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Unauthorized") {
		t.Errorf("error %q should carry the API description", err)
	}
}

func TestTelegram_OfflineDoesNotPoll(t *testing.T) {
	api := &fakeBotAPI{}
	tg := newTestTelegram(t, api, &fakeHandler{}).WithLink(device.StaticLink(false))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := tg.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if offsets, _ := api.snapshot(); len(offsets) != 0 {
		t.Errorf("polled %d times while offline", len(offsets))
	}
}
