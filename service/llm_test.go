package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chatServer(t *testing.T, fn func(n int32, w http.ResponseWriter, r *http.Request)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fn(atomic.AddInt32(&calls, 1), w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func writeChat(w http.ResponseWriter, content string) {
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
}

// stubSleep records backoff waits instead of sleeping.
func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var waits []time.Duration
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	t.Cleanup(func() { sleep = orig })
	return &waits
}

func TestGenerateRetriesWithLinearBackoff(t *testing.T) {
	waits := stubSleep(t)
	srv, calls := chatServer(t, func(n int32, w http.ResponseWriter, r *http.Request) {
		if n < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		writeChat(w, "final text")
	})

	c := NewLLMClient(srv.URL, &LLMOptions{
		RetryBudget: 3,
		BaseDelay:   3 * time.Second,
		Logger:      discardLogger(),
	})
	got, err := c.Generate(context.Background(), "prompt", 100)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "final text" {
		t.Fatalf("content = %q, want %q", got, "final text")
	}
	if n := atomic.LoadInt32(calls); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}

	want := []time.Duration{3 * time.Second, 6 * time.Second}
	if len(*waits) != len(want) {
		t.Fatalf("waits = %v, want %v", *waits, want)
	}
	for i, w := range want {
		if (*waits)[i] != w {
			t.Fatalf("wait[%d] = %v, want %v", i, (*waits)[i], w)
		}
	}
}

func TestGenerateClassifiesTimeout(t *testing.T) {
	stubSleep(t)
	srv, _ := chatServer(t, func(n int32, w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream stalled", http.StatusGatewayTimeout)
	})

	c := NewLLMClient(srv.URL, &LLMOptions{RetryBudget: 2, Logger: discardLogger()})
	_, err := c.Generate(context.Background(), "prompt", 100)
	if !errors.Is(err, ErrGenerationTimeout) {
		t.Fatalf("err = %v, want ErrGenerationTimeout", err)
	}
}

func TestGenerateClassifiesFailure(t *testing.T) {
	stubSleep(t)
	srv, calls := chatServer(t, func(n int32, w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	c := NewLLMClient(srv.URL, &LLMOptions{RetryBudget: 3, Logger: discardLogger()})
	_, err := c.Generate(context.Background(), "prompt", 100)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
	if errors.Is(err, ErrGenerationTimeout) {
		t.Fatalf("err = %v, must not be a timeout", err)
	}
	if n := atomic.LoadInt32(calls); n != 3 {
		t.Fatalf("calls = %d, want the full retry budget of 3", n)
	}
}

func TestGenerateRetriesEmptyContent(t *testing.T) {
	stubSleep(t)
	srv, calls := chatServer(t, func(n int32, w http.ResponseWriter, r *http.Request) {
		writeChat(w, "   ")
	})

	c := NewLLMClient(srv.URL, &LLMOptions{RetryBudget: 3, Logger: discardLogger()})
	_, err := c.Generate(context.Background(), "prompt", 100)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
	if n := atomic.LoadInt32(calls); n != 3 {
		t.Fatalf("calls = %d, want 3: blank completions must be retried", n)
	}
}

func TestGenerateTruncatesOverlongPrompt(t *testing.T) {
	promptCh := make(chan string, 1)
	srv, _ := chatServer(t, func(n int32, w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		promptCh <- req.Messages[0].Content
		writeChat(w, "ok")
	})

	c := NewLLMClient(srv.URL, &LLMOptions{
		SoftPromptLimit: 50,
		HardPromptLimit: 100,
		RetryBudget:     1,
		Logger:          discardLogger(),
	})
	if _, err := c.Generate(context.Background(), strings.Repeat("x", 500), 10); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	sent := <-promptCh
	if !strings.HasSuffix(sent, truncationMarker) {
		t.Fatalf("truncated prompt must end with the marker, got %q", sent[len(sent)-40:])
	}
	if len(sent) != 100+len(truncationMarker) {
		t.Fatalf("sent prompt length = %d, want %d", len(sent), 100+len(truncationMarker))
	}
}

func TestTruncationKeepsRuneBoundary(t *testing.T) {
	c := NewLLMClient("http://127.0.0.1:1", &LLMOptions{
		SoftPromptLimit: 50,
		HardPromptLimit: 100,
		Logger:          discardLogger(),
	})

	// 3-byte runes, so the 100 byte hard limit lands inside the 34th rune
	got := c.boundPrompt(strings.Repeat("世", 200))
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got[90:102])
	}
	body, ok := strings.CutSuffix(got, truncationMarker)
	if !ok {
		t.Fatalf("truncated prompt must end with the marker, got %q", got[len(got)-40:])
	}
	if body != strings.Repeat("世", 33) {
		t.Fatalf("kept %d bytes, want the 33 whole runes under the limit", len(body))
	}
}

func TestGenerateSpacesCalls(t *testing.T) {
	waits := stubSleep(t)
	srv, _ := chatServer(t, func(n int32, w http.ResponseWriter, r *http.Request) {
		writeChat(w, "ok")
	})

	c := NewLLMClient(srv.URL, &LLMOptions{
		MinInterval: 3 * time.Second,
		RetryBudget: 1,
		Logger:      discardLogger(),
	})
	ctx := context.Background()
	if _, err := c.Generate(ctx, "first", 10); err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	if _, err := c.Generate(ctx, "second", 10); err != nil {
		t.Fatalf("second Generate: %v", err)
	}

	if len(*waits) != 1 {
		t.Fatalf("waits = %v, want exactly one rate-limit wait", *waits)
	}
	if w := (*waits)[0]; w <= 2500*time.Millisecond || w > 3*time.Second {
		t.Fatalf("rate wait = %v, want just under the 3s interval", w)
	}
}

func TestIsTimeoutError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.DeadlineExceeded, true},
		{errors.New("connection timed out"), true},
		{errors.New("llm: status 504 Gateway Timeout: upstream"), true},
		{errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := isTimeoutError(tc.err); got != tc.want {
			t.Errorf("isTimeoutError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
