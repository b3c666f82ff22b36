// Package api implements the signed Viki API session.
//
// A Session issues signed calls built by the signer package, resynchronizes
// once on server-reported clock skew, and owns the optional bearer token
// obtained by Login.
package api

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/vikget/vikget/client"
	"github.com/vikget/vikget/errs"
	"github.com/vikget/vikget/internal/logger"
	"github.com/vikget/vikget/viki/signer"
)

const (
	errInvalidTimestamp = "invalid timestamp"
	videoAppVersion     = "3.0.0"
)

var videoAPIURL = "https://www.viki.com/api/videos/"

// Session is a signed API session. Its token cell is written at most once,
// by a successful Login, and is read by every subsequent signed call.
type Session struct {
	HTTPClient *http.Client
	UserAgent  string

	token string
	now   func() time.Time
	log   *logger.ComponentLogger
}

// New creates a Session. A nil httpClient gets a tuned default transport.
func New(httpClient *http.Client) *Session {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
			},
			Timeout: 30 * time.Second,
		}
	}
	return &Session{
		HTTPClient: httpClient,
		UserAgent:  client.DefaultUserAgent(),
		now:        time.Now,
		log:        logger.WithComponent(logger.ComponentAPI),
	}
}

// Token returns the session token, or the empty string before login.
func (s *Session) Token() string {
	return s.token
}

// setToken performs the single empty-to-set transition of the token cell.
func (s *Session) setToken(token string) bool {
	if s.token != "" || token == "" {
		return false
	}
	s.token = token
	return true
}

// apiEnvelope is the error-reporting shape shared by all API responses.
type apiEnvelope struct {
	Error            string          `json:"error"`
	CurrentTimestamp json.RawMessage `json:"current_timestamp"`
	Token            string          `json:"token"`
}

// serverTimestamp parses the corrected timestamp, which the server reports
// either as a number or as a numeric string.
func serverTimestamp(raw json.RawMessage) (int64, bool) {
	trimmed := bytes.Trim(bytes.TrimSpace(raw), `"`)
	if len(trimmed) == 0 {
		return 0, false
	}
	var num json.Number
	if err := json.Unmarshal(trimmed, &num); err != nil {
		return 0, false
	}
	ts, err := num.Int64()
	if err != nil {
		return 0, false
	}
	return ts, true
}

// Call issues a signed API call. The note is logged at call time. A non-nil
// payload is JSON-serialized and sent as a POST body; otherwise the call is
// a GET.
//
// When the server reports "invalid timestamp" the call is re-signed once with
// the server-supplied corrected time. Any other server-reported error, on the
// first or the retried response, fails with *errs.APIError.
func (s *Session) Call(ctx context.Context, path, note string, payload any) (json.RawMessage, error) {
	timestamp := s.now().Unix()

	retried := false
	for {
		s.log.Info(note, map[string]interface{}{"path": path})

		body, err := s.doSigned(ctx, path, timestamp, payload)
		if err != nil {
			return nil, err
		}

		env, ok := decodeEnvelope(body)
		if !ok || env.Error == "" {
			return body, nil
		}
		if env.Error == errInvalidTimestamp && !retried {
			if corrected, ok := serverTimestamp(env.CurrentTimestamp); ok {
				timestamp = corrected
				retried = true
				note += " (retry)"
				continue
			}
		}
		return nil, &errs.APIError{Message: env.Error}
	}
}

// Login exchanges credentials for a session token via the session-creation
// endpoint. A response without a token is a warning, not an error: extraction
// continues unauthenticated.
func (s *Session) Login(ctx context.Context, username, password string) error {
	payload := map[string]string{
		"login_id": username,
		"password": password,
	}
	body, err := s.Call(ctx, "sessions.json", "Logging in", payload)
	if err != nil {
		return err
	}

	env, _ := decodeEnvelope(body)
	if !s.setToken(env.Token) {
		s.log.Warn("Unable to get session token, login has probably failed")
	}
	return nil
}

// FetchVideo performs the unsigned bootstrap request for a video's metadata
// JSON on the www host.
func (s *Session) FetchVideo(ctx context.Context, videoID string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoAPIURL+videoID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-client-user-agent", s.UserAgent)
	req.Header.Set("x-viki-app-ver", videoAppVersion)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	s.log.Info("Downloading video JSON", map[string]interface{}{"video_id": videoID})
	return s.do(req)
}

// doSigned builds and performs one signed request.
func (s *Session) doSigned(ctx context.Context, path string, timestamp int64, payload any) (json.RawMessage, error) {
	signedURL, _ := signer.SignedURL(path, timestamp, s.token)

	var (
		req *http.Request
		err error
	)
	if payload != nil {
		data, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			return nil, marshalErr
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, signedURL, bytes.NewReader(data))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	}
	if err != nil {
		return nil, err
	}

	req.Header.Set("x-client-user-agent", s.UserAgent)
	req.Header.Set("x-viki-as-id", signer.AppID)
	req.Header.Set("x-viki-app-ver", signer.AppVersion)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	return s.do(req)
}

// do performs the request and returns the decompressed body.
func (s *Session) do(req *http.Request) (json.RawMessage, error) {
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var reader io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %v", err)
		}
		defer gzReader.Close()
		reader = gzReader
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		// deflate is raw DEFLATE data, no wrapper
		reader = resp.Body
	case "bzip2":
		reader = bzip2.NewReader(resp.Body)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}
	return body, nil
}

// decodeEnvelope extracts the error-reporting fields from a response body.
// Non-object bodies (e.g. top-level arrays) carry no envelope.
func decodeEnvelope(body []byte) (apiEnvelope, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return apiEnvelope{}, false
	}
	var env apiEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return apiEnvelope{}, false
	}
	return env, true
}
