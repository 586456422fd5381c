package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type ipv4Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	s := &ipv4Server{
		URL: "http://" + ln.Addr().String(),
		srv: srv,
		ln:  ln,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func testServerSequence(t *testing.T, statuses []int, headers []http.Header, bodyOK any) *ipv4Server {
	t.Helper()
	var idx int32
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(&idx, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		st := statuses[i]
		if headers != nil && i < len(headers) && headers[i] != nil {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		if st >= 200 && st < 300 {
			w.WriteHeader(st)
			_ = json.NewEncoder(w).Encode(bodyOK)
			return
		}
		w.WriteHeader(st)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "rate limited"}})
	}))
}

func TestGenerateRetriesOn429(t *testing.T) {
	okBody := GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: "ok"}}}}
	srv := testServerSequence(t, []int{429, 200}, []http.Header{{"Retry-After": {"0"}}, {}}, okBody)
	defer srv.Close()

	c := NewClientWithBaseURL("test", 2*time.Second, 3, 10*time.Millisecond, 100*time.Millisecond, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Generate(ctx, GenerateRequest{Model: "test-model", Messages: []Message{{Role: "user", Content: "hi"}}, MaxTokens: 1})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content != "ok" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRetryAfterHonored(t *testing.T) {
	okBody := GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: "ok"}}}}
	// Ask server to instruct a 1-second Retry-After, then succeed.
	srv := testServerSequence(t, []int{429, 200}, []http.Header{{"Retry-After": {"1"}}, {}}, okBody)
	defer srv.Close()

	c := NewClientWithBaseURL("test", 5*time.Second, 3, 0, 0, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	_, err := c.Generate(ctx, GenerateRequest{Model: "test-model", Messages: []Message{{Role: "user", Content: "hi"}}, MaxTokens: 1})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 900*time.Millisecond { // allow some scheduling variance
		t.Fatalf("expected at least ~1s delay due to Retry-After, got %v", elapsed)
	}
}

func TestErrorIncludesRequestID(t *testing.T) {
	// Server returns 400 with X-Request-Id header
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Request-Id", "req_test_123")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad req", "code": "bad_request"}})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test", 2*time.Second, 1, 10*time.Millisecond, 50*time.Millisecond, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Generate(ctx, GenerateRequest{Model: "test-model", Messages: []Message{{Role: "user", Content: "hi"}}, MaxTokens: 1})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "req_test_123") {
		t.Fatalf("expected request id in error, got: %v", err)
	}
}

func TestGenerateSendsJSONFormatAndHeaders(t *testing.T) {
	var body map[string]any
	var referer string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("HTTP-Referer")
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(GenerateResponse{Choices: []Choice{{Message: Message{Content: "{}"}}}})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test", 2*time.Second, 1, 0, 0, srv.URL)
	resp, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}, JSON: true})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if resp.Content() != "{}" {
		t.Fatalf("unexpected content %q", resp.Content())
	}
	rf, ok := body["response_format"].(map[string]any)
	if !ok || rf["type"] != "json_object" {
		t.Fatalf("expected json_object response_format, got %v", body["response_format"])
	}
	if _, leaked := body["JSON"]; leaked {
		t.Fatalf("internal JSON flag must not be serialized")
	}
	if !strings.Contains(referer, "correlate-cli") {
		t.Fatalf("unexpected referer %q", referer)
	}
}

func TestGenerateExhaustsRetriesOnServerError(t *testing.T) {
	var hits int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "upstream down"}})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test", 2*time.Second, 3, time.Millisecond, 5*time.Millisecond, srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestGenerateClassifiesAuthAndMissingKey(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "no auth"}})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("bad", 2*time.Second, 3, time.Millisecond, time.Millisecond, srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if _, err := NewOpenRouterClient("").Generate(context.Background(), GenerateRequest{Model: "m"}); err == nil || !strings.Contains(err.Error(), "OPENROUTER_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestGenerateStopsOnContextCancel(t *testing.T) {
	srv := testServerSequence(t, []int{503}, []http.Header{{"Retry-After": {"30"}}}, nil)
	defer srv.Close()

	c := NewClientWithBaseURL("test", 2*time.Second, 3, 0, 0, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Generate(ctx, GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("retry wait ignored context cancellation")
	}
}
