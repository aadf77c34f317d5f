package ytdl_api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = time.Second

	// RequestIDHeader carries a per-request identifier for log correlation.
	RequestIDHeader = "X-Request-ID"
)

// sleeper abstracts time.Sleep so retries can be tested without waiting.
type sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}

// Session talks to one ytdl backend on behalf of one client identity.
type Session struct {
	baseURL      *url.URL
	httpClient   *http.Client
	durationUnit DurationUnit
	maxRetries   int
	retryDelay   time.Duration
	sleeper      sleeper

	mu       sync.RWMutex
	clientID string
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithHTTPClient replaces the HTTP client. The client should carry a cookie jar
// when the backend scopes sessions with cookies.
func WithHTTPClient(c *http.Client) SessionOption {
	return func(s *Session) {
		s.httpClient = c
	}
}

// WithTimeout sets the per-request timeout of the default client.
// The progress stream is not affected since it uses a context instead.
func WithTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.httpClient.Timeout = d
	}
}

// WithDurationUnit sets the unit the backend uses for durations.
func WithDurationUnit(u DurationUnit) SessionOption {
	return func(s *Session) {
		s.durationUnit = u
	}
}

// WithRetry sets how often idempotent GET requests are retried and the delay
// between attempts. PUT and DELETE requests are never retried.
func WithRetry(maxRetries int, delay time.Duration) SessionOption {
	return func(s *Session) {
		s.maxRetries = maxRetries
		s.retryDelay = delay
	}
}

// WithClientID sets the identity attached to session scoped requests.
func WithClientID(id string) SessionOption {
	return func(s *Session) {
		s.clientID = id
	}
}

// NewSession creates a session for the backend at baseURL
// (e.g. "http://localhost:8080/api/").
func NewSession(baseURL string, options ...SessionOption) (*Session, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, InvalidUrlError(err.Error())
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, InvalidUrlError(fmt.Sprintf("unsupported scheme %q", parsed.Scheme))
	}
	if parsed.Host == "" {
		return nil, InvalidUrlError("missing host")
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	jar, _ := cookiejar.New(nil)
	s := &Session{
		baseURL:      parsed,
		httpClient:   &http.Client{Jar: jar, Timeout: DefaultTimeout},
		durationUnit: DurationSeconds,
		maxRetries:   DefaultMaxRetries,
		retryDelay:   DefaultRetryDelay,
		sleeper:      realSleeper{},
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// BaseURL returns the normalized base URL.
func (s *Session) BaseURL() string {
	return s.baseURL.String()
}

// HTTPClient returns the client used for requests.
func (s *Session) HTTPClient() *http.Client {
	return s.httpClient
}

// ClientID returns the identity attached to requests, empty when none is known yet.
func (s *Session) ClientID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientID
}

// SetClientID replaces the identity attached to requests.
func (s *Session) SetClientID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientID = id
}

// buildUrl resolves endpoint against the base URL and adds params plus the
// client identity when one is known.
func (s *Session) buildUrl(endpoint string, params map[string]string) *url.URL {
	reqUrl := s.baseURL.JoinPath(endpoint)
	query := reqUrl.Query()
	if id := s.ClientID(); id != "" {
		query.Set("uid", id)
	}
	for param, value := range params {
		query.Set(param, value)
	}
	reqUrl.RawQuery = query.Encode()
	return reqUrl
}

// httpRequest sends a single request. Transport failures are returned as NetworkError;
// the response is returned as is regardless of its status code.
func (s *Session) httpRequest(ctx context.Context, method string, endpoint string, params map[string]string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	reqUrl := s.buildUrl(endpoint, params)
	req, err := http.NewRequestWithContext(ctx, method, reqUrl.String(), reader)
	if err != nil {
		return nil, NetworkError(err.Error())
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, NetworkError(err.Error())
	}
	return res, nil
}

// httpGetJSONWithRetry sends a GET request, retrying up to maxRetries times on
// transport errors and 5xx responses with delay between attempts.
func (s *Session) httpGetJSONWithRetry(ctx context.Context, endpoint string, params map[string]string, maxRetries int, delay time.Duration, sl sleeper) (*http.Response, error) {
	var lastErr error
	attempts := maxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			sl.Sleep(delay)
		}
		if err := ctx.Err(); err != nil {
			return nil, NetworkError(err.Error())
		}

		res, err := s.httpRequest(ctx, http.MethodGet, endpoint, params, nil)
		if err != nil {
			lastErr = err
			continue
		}
		if res.StatusCode >= http.StatusInternalServerError {
			body, _ := io.ReadAll(res.Body)
			res.Body.Close()
			lastErr = parseErrorResponse(res.StatusCode, body)
			continue
		}
		return res, nil
	}
	return nil, fmt.Errorf("GET %s failed after %d attempts: %w", endpoint, attempts, lastErr)
}

// getJSON performs a retried GET and decodes the response into v.
func (s *Session) getJSON(ctx context.Context, endpoint string, params map[string]string, v any) error {
	res, err := s.httpGetJSONWithRetry(ctx, endpoint, params, s.maxRetries, s.retryDelay, s.sleeper)
	if err != nil {
		return err
	}
	return processResponse(res, v)
}

// sendJSON performs a single non-idempotent request and decodes the response into v.
func (s *Session) sendJSON(ctx context.Context, method string, endpoint string, params map[string]string, body any, v any) error {
	res, err := s.httpRequest(ctx, method, endpoint, params, body)
	if err != nil {
		return err
	}
	return processResponse(res, v)
}

// processResponse reads the body, converts non-2xx responses into typed errors
// and unmarshals successful ones into v.
func processResponse(res *http.Response, v any) error {
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return NetworkError(err.Error())
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return parseErrorResponse(res.StatusCode, body)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return DecodeError(err.Error())
	}
	return nil
}
