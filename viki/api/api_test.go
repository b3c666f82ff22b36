package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/vikget/vikget/client"
	"github.com/vikget/vikget/errs"
	"github.com/vikget/vikget/internal/jsonmap"
)

// scriptedTransport returns one canned response per request, in order, and
// records every request it sees.
type scriptedTransport struct {
	responses []*http.Response
	requests  []*http.Request
	bodies    []string
}

func (t *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body := ""
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		body = string(data)
	}
	t.requests = append(t.requests, req)
	t.bodies = append(t.bodies, body)

	idx := len(t.requests) - 1
	if idx >= len(t.responses) {
		idx = len(t.responses) - 1
	}
	return t.responses[idx], nil
}

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestSession(transport http.RoundTripper) *Session {
	s := New(&http.Client{Transport: transport})
	s.now = func() time.Time { return time.Unix(1600000000, 0) }
	return s
}

func TestNewDefaultUserAgent(t *testing.T) {
	s := New(nil)

	if s.UserAgent != client.DefaultUserAgent() {
		t.Errorf("Expected user agent '%s', got '%s'", client.DefaultUserAgent(), s.UserAgent)
	}
}

func TestCallSuccess(t *testing.T) {
	transport := &scriptedTransport{responses: []*http.Response{
		jsonResponse(`{"response": [1, 2, 3]}`),
	}}
	s := newTestSession(transport)

	body, err := s.Call(context.Background(), "videos/44699v/streams.json", "Downloading video streams JSON", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(string(body), "response") {
		t.Errorf("Unexpected body: %s", body)
	}
	if len(transport.requests) != 1 {
		t.Errorf("Expected 1 network call, got %d", len(transport.requests))
	}

	req := transport.requests[0]
	if req.Method != http.MethodGet {
		t.Errorf("Expected GET, got %s", req.Method)
	}
	if req.URL.Host != "api.viki.io" {
		t.Errorf("Unexpected host: %s", req.URL.Host)
	}
	if !strings.Contains(req.URL.RawQuery, "app=100005a") {
		t.Errorf("Expected app parameter in query: %s", req.URL.RawQuery)
	}
	if !strings.Contains(req.URL.RawQuery, "t=1600000000") {
		t.Errorf("Expected signing timestamp in query: %s", req.URL.RawQuery)
	}
	if !strings.Contains(req.URL.RawQuery, "sig=") {
		t.Errorf("Expected signature in query: %s", req.URL.RawQuery)
	}
	if req.Header.Get("x-viki-as-id") != "100005a" {
		t.Errorf("Expected app id header, got '%s'", req.Header.Get("x-viki-as-id"))
	}
	if req.Header.Get("x-viki-app-ver") != "6.0.0" {
		t.Errorf("Expected app version header, got '%s'", req.Header.Get("x-viki-app-ver"))
	}
	if req.Header.Get("x-client-user-agent") == "" {
		t.Error("Expected client user agent header")
	}
}

func TestCallInvalidTimestampRetry(t *testing.T) {
	transport := &scriptedTransport{responses: []*http.Response{
		jsonResponse(`{"error": "invalid timestamp", "current_timestamp": 1700000123}`),
		jsonResponse(`{"response": "ok"}`),
	}}
	s := newTestSession(transport)

	body, err := s.Call(context.Background(), "videos/1v/streams.json", "Downloading video streams JSON", nil)
	if err != nil {
		t.Fatalf("Expected retry to recover, got %v", err)
	}
	if !strings.Contains(string(body), "ok") {
		t.Errorf("Unexpected body: %s", body)
	}
	if len(transport.requests) != 2 {
		t.Fatalf("Expected exactly 2 network calls, got %d", len(transport.requests))
	}
	if !strings.Contains(transport.requests[1].URL.RawQuery, "t=1700000123") {
		t.Errorf("Expected retry to use server timestamp: %s", transport.requests[1].URL.RawQuery)
	}
}

func TestCallInvalidTimestampStringRetry(t *testing.T) {
	transport := &scriptedTransport{responses: []*http.Response{
		jsonResponse(`{"error": "invalid timestamp", "current_timestamp": "1700000123"}`),
		jsonResponse(`{}`),
	}}
	s := newTestSession(transport)

	if _, err := s.Call(context.Background(), "videos/1v.json", "Downloading video JSON", nil); err != nil {
		t.Fatalf("Expected retry to recover, got %v", err)
	}
	if len(transport.requests) != 2 {
		t.Fatalf("Expected 2 network calls, got %d", len(transport.requests))
	}
}

func TestCallRetriesOnlyOnce(t *testing.T) {
	transport := &scriptedTransport{responses: []*http.Response{
		jsonResponse(`{"error": "invalid timestamp", "current_timestamp": 1700000123}`),
		jsonResponse(`{"error": "invalid timestamp", "current_timestamp": 1700000456}`),
	}}
	s := newTestSession(transport)

	_, err := s.Call(context.Background(), "videos/1v.json", "Downloading video JSON", nil)

	var apiErr *errs.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Message != "invalid timestamp" {
		t.Errorf("Expected verbatim server message, got '%s'", apiErr.Message)
	}
	if len(transport.requests) != 2 {
		t.Errorf("Expected exactly 2 network calls, got %d", len(transport.requests))
	}
}

func TestCallOtherErrorIsTerminal(t *testing.T) {
	transport := &scriptedTransport{responses: []*http.Response{
		jsonResponse(`{"error": "something else"}`),
	}}
	s := newTestSession(transport)

	_, err := s.Call(context.Background(), "videos/1v.json", "Downloading video JSON", nil)

	var apiErr *errs.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Message != "something else" {
		t.Errorf("Expected verbatim server message, got '%s'", apiErr.Message)
	}
	if len(transport.requests) != 1 {
		t.Errorf("Expected exactly 1 network call, got %d", len(transport.requests))
	}
}

func TestCallPostPayload(t *testing.T) {
	transport := &scriptedTransport{responses: []*http.Response{
		jsonResponse(`{}`),
	}}
	s := newTestSession(transport)

	payload := map[string]string{"login_id": "user", "password": "pass"}
	if _, err := s.Call(context.Background(), "sessions.json", "Logging in", payload); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	req := transport.requests[0]
	if req.Method != http.MethodPost {
		t.Errorf("Expected POST for payload call, got %s", req.Method)
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Expected JSON content type, got '%s'", req.Header.Get("Content-Type"))
	}

	var sent map[string]string
	if err := json.Unmarshal([]byte(transport.bodies[0]), &sent); err != nil {
		t.Fatalf("Body should be JSON: %v", err)
	}
	if sent["login_id"] != "user" || sent["password"] != "pass" {
		t.Errorf("Unexpected payload: %v", sent)
	}
}

func TestLoginSetsToken(t *testing.T) {
	transport := &scriptedTransport{responses: []*http.Response{
		jsonResponse(`{"token": "sess-token"}`),
		jsonResponse(`{}`),
	}}
	s := newTestSession(transport)

	if err := s.Login(context.Background(), "user", "pass"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if s.Token() != "sess-token" {
		t.Errorf("Expected token to be stored, got '%s'", s.Token())
	}

	// Subsequent signed calls must carry the token.
	if _, err := s.Call(context.Background(), "videos/1v/streams.json", "Downloading video streams JSON", nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(transport.requests[1].URL.RawQuery, "token=sess-token") {
		t.Errorf("Expected token in signed query: %s", transport.requests[1].URL.RawQuery)
	}
}

func TestLoginWithoutTokenIsNonFatal(t *testing.T) {
	transport := &scriptedTransport{responses: []*http.Response{
		jsonResponse(`{"id": "session-without-token"}`),
	}}
	s := newTestSession(transport)

	if err := s.Login(context.Background(), "user", "pass"); err != nil {
		t.Fatalf("Expected missing token to be a warning only, got %v", err)
	}
	if s.Token() != "" {
		t.Errorf("Expected empty token, got '%s'", s.Token())
	}
}

func TestTokenSingleWrite(t *testing.T) {
	s := New(nil)

	if !s.setToken("first") {
		t.Fatal("Expected first write to succeed")
	}
	if s.setToken("second") {
		t.Error("Expected second write to be rejected")
	}
	if s.Token() != "first" {
		t.Errorf("Expected token 'first', got '%s'", s.Token())
	}
}

func TestFetchVideo(t *testing.T) {
	transport := &scriptedTransport{responses: []*http.Response{
		jsonResponse(`{"video": {"id": "44699v"}}`),
	}}
	s := newTestSession(transport)

	body, err := s.FetchVideo(context.Background(), "44699v")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(string(body), "44699v") {
		t.Errorf("Unexpected body: %s", body)
	}

	req := transport.requests[0]
	if req.URL.String() != "https://www.viki.com/api/videos/44699v" {
		t.Errorf("Unexpected URL: %s", req.URL)
	}
	if req.Header.Get("x-viki-app-ver") != "3.0.0" {
		t.Errorf("Expected bootstrap app version header, got '%s'", req.Header.Get("x-viki-app-ver"))
	}
	if strings.Contains(req.URL.RawQuery, "sig=") {
		t.Error("Bootstrap video fetch must not be signed")
	}
}

func TestDoDecompressesGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(`{"compressed": true}`))
	_ = zw.Close()

	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Encoding": []string{"gzip"}},
		Body:       io.NopCloser(&buf),
	}
	transport := &scriptedTransport{responses: []*http.Response{resp}}
	s := newTestSession(transport)

	body, err := s.Call(context.Background(), "videos/1v.json", "Downloading video JSON", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(string(body), "compressed") {
		t.Errorf("Expected decompressed body, got %q", body)
	}
}

func TestDoDecompressesBrotli(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	_, _ = bw.Write([]byte(`{"compressed": "br"}`))
	_ = bw.Close()

	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Encoding": []string{"br"}},
		Body:       io.NopCloser(&buf),
	}
	transport := &scriptedTransport{responses: []*http.Response{resp}}
	s := newTestSession(transport)

	body, err := s.Call(context.Background(), "videos/1v.json", "Downloading video JSON", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(string(body), "br") {
		t.Errorf("Expected decompressed body, got %q", body)
	}
}

func TestCheckRestrictions(t *testing.T) {
	tests := []struct {
		name     string
		blocking string
		expected error
	}{
		{
			name:     "Geo restriction",
			blocking: `{"geo": true}`,
			expected: errs.ErrGeoBlocked,
		},
		{
			name:     "Paywall behind false geo flag",
			blocking: `{"geo": false, "paywall": true}`,
			expected: errs.ErrLoginRequired,
		},
		{
			name:     "Upcoming content",
			blocking: `{"upcoming": true}`,
			expected: errs.ErrNotYetAvailable,
		},
		{
			name:     "Unknown flags are ignored",
			blocking: `{"unknown_flag": true}`,
			expected: nil,
		},
		{
			name:     "First recognized flag wins in stored order",
			blocking: `{"upcoming": true, "geo": true}`,
			expected: errs.ErrNotYetAvailable,
		},
		{
			name:     "Unknown truthy flag before recognized one",
			blocking: `{"mystery": true, "paywall": true}`,
			expected: errs.ErrLoginRequired,
		},
		{
			name:     "No flags",
			blocking: `{}`,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var blocking jsonmap.Object
			if err := json.Unmarshal([]byte(tt.blocking), &blocking); err != nil {
				t.Fatalf("Unexpected decode error: %v", err)
			}

			err := CheckRestrictions(blocking)
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
		})
	}
}
