// Package issuer talks to the remote arrival-card authorities. The rest of
// the system treats an authority as an opaque endpoint that either returns
// card artifacts (card number, QR/PDF references) or an error it can store
// against the attempt.
package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	id "tripsecretary/pkg/domain"
	"tripsecretary/pkg/platform/circuit"
	"tripsecretary/pkg/platform/sentinel"
)

// Request carries everything one authority submission needs.
type Request struct {
	CardType      id.CardType
	DestinationID string
	Traveler      map[string]string
}

// Result holds the artifacts of an accepted submission.
type Result struct {
	ArrivalCardNumber string
	QRRef             string
	PDFRef            string
	StatusCode        int
	RawBody           string
	Attempts          int
}

// Client submits an arrival card to a remote authority.
type Client interface {
	Submit(ctx context.Context, req *Request) (*Result, error)
}

// CallError reports why a submission series failed. Rejected means the
// authority answered and said no; retrying the same payload will not help.
// A non-rejected CallError wraps sentinel.ErrUnavailable.
type CallError struct {
	Attempts   int
	StatusCode int
	Body       string
	Rejected   bool
	cause      error
}

func (e *CallError) Error() string {
	if e.Rejected {
		return fmt.Sprintf("issuer rejected submission (status %d after %d attempt(s))", e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("issuer unreachable after %d attempt(s): %v", e.Attempts, e.cause)
}

func (e *CallError) Unwrap() error { return e.cause }

// LatencyObserver receives per-attempt call latency in milliseconds.
// prometheus.Histogram satisfies it.
type LatencyObserver interface {
	Observe(v float64)
}

// HTTPClient is the production Client. It guards the authority with a
// circuit breaker and retries transport-level failures a bounded number of
// times. Authority rejections (4xx) are never retried.
type HTTPClient struct {
	baseURL     string
	apiKey      string
	httpClient  HTTPDoer
	breaker     *circuit.Breaker
	maxAttempts int
	backoff     time.Duration
	latency     LatencyObserver
	logger      *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(c HTTPDoer) Option {
	return func(h *HTTPClient) { h.httpClient = c }
}

// WithBreaker sets the circuit breaker guarding the authority.
func WithBreaker(b *circuit.Breaker) Option {
	return func(h *HTTPClient) { h.breaker = b }
}

// WithMaxAttempts bounds the retry loop for transport-level failures.
func WithMaxAttempts(n int) Option {
	return func(h *HTTPClient) {
		if n > 0 {
			h.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay between retries.
func WithBackoff(d time.Duration) Option {
	return func(h *HTTPClient) { h.backoff = d }
}

// WithLatencyObserver records per-attempt call latency.
func WithLatencyObserver(o LatencyObserver) Option {
	return func(h *HTTPClient) { h.latency = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *HTTPClient) { h.logger = l }
}

// NewHTTPClient creates a client for the authority gateway at baseURL.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) *HTTPClient {
	h := &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: timeout},
		breaker:     circuit.New("card-issuer"),
		maxAttempts: 3,
		backoff:     200 * time.Millisecond,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type submitRequest struct {
	CardType      string            `json:"card_type"`
	DestinationID string            `json:"destination_id"`
	Traveler      map[string]string `json:"traveler"`
}

type submitResponse struct {
	ArrivalCardNumber string `json:"arrival_card_number"`
	QRRef             string `json:"qr_ref"`
	PDFRef            string `json:"pdf_ref"`
}

// Submit sends the card to the authority gateway. The returned Result (or
// CallError) reports how many attempts were spent so the caller can record
// them against the submission attempt.
func (h *HTTPClient) Submit(ctx context.Context, req *Request) (*Result, error) {
	if h.breaker.IsOpen() {
		return nil, &CallError{
			cause: fmt.Errorf("circuit %q open: %w", h.breaker.Name(), sentinel.ErrUnavailable),
		}
	}

	body, err := json.Marshal(submitRequest{
		CardType:      string(req.CardType),
		DestinationID: req.DestinationID,
		Traveler:      req.Traveler,
	})
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	var lastErr error
	attempts := 0
	for attempts < h.maxAttempts {
		if attempts > 0 {
			if err := sleepCtx(ctx, h.backoff*time.Duration(attempts)); err != nil {
				return nil, &CallError{Attempts: attempts, cause: err}
			}
		}
		attempts++

		res, retryable, err := h.attempt(ctx, body)
		if err == nil {
			res.Attempts = attempts
			h.recordSuccess()
			return res, nil
		}
		lastErr = err

		if !retryable {
			if ce, ok := err.(*CallError); ok && ce.Rejected {
				// The authority answered; the downstream is healthy.
				ce.Attempts = attempts
				h.recordSuccess()
				return nil, ce
			}
			break
		}
		h.recordFailure()
		if h.breaker.IsOpen() {
			break
		}
	}

	if ce, ok := lastErr.(*CallError); ok {
		ce.Attempts = attempts
		if ce.cause == nil {
			ce.cause = sentinel.ErrUnavailable
		}
		return nil, ce
	}
	return nil, &CallError{
		Attempts: attempts,
		cause:    fmt.Errorf("%w: %w", sentinel.ErrUnavailable, lastErr),
	}
}

// attempt performs one HTTP call. retryable reports whether the failure is
// transport-level and worth another attempt.
func (h *HTTPClient) attempt(ctx context.Context, body []byte) (res *Result, retryable bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/api/v1/cards", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		httpReq.Header.Set("X-API-Key", h.apiKey)
	}

	start := time.Now()
	resp, err := h.httpClient.Do(httpReq)
	h.observe(time.Since(start))
	if err != nil {
		return nil, ctx.Err() == nil, &CallError{cause: fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, true, &CallError{cause: fmt.Errorf("%w: read response: %w", sentinel.ErrUnavailable, err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var sr submitResponse
		if err := json.Unmarshal(raw, &sr); err != nil {
			return nil, false, &CallError{
				StatusCode: resp.StatusCode,
				Body:       string(raw),
				Rejected:   true,
				cause:      fmt.Errorf("malformed issuer response: %w", err),
			}
		}
		return &Result{
			ArrivalCardNumber: sr.ArrivalCardNumber,
			QRRef:             sr.QRRef,
			PDFRef:            sr.PDFRef,
			StatusCode:        resp.StatusCode,
			RawBody:           string(raw),
		}, false, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, &CallError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			Rejected:   true,
		}
	default:
		return nil, true, &CallError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			cause:      fmt.Errorf("%w: issuer returned status %d", sentinel.ErrUnavailable, resp.StatusCode),
		}
	}
}

func (h *HTTPClient) recordSuccess() {
	if _, change := h.breaker.RecordSuccess(); change.Closed {
		h.logger.Info("issuer circuit closed", "breaker", h.breaker.Name())
	}
}

func (h *HTTPClient) recordFailure() {
	if _, change := h.breaker.RecordFailure(); change.Opened {
		h.logger.Warn("issuer circuit opened", "breaker", h.breaker.Name())
	}
}

func (h *HTTPClient) observe(d time.Duration) {
	if h.latency != nil {
		h.latency.Observe(float64(d.Milliseconds()))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Stub is a deterministic Client for tests and local development, in the
// spirit of a mock registry: fixed artifacts, configurable latency and
// failure.
type Stub struct {
	Latency time.Duration
	Err     error

	calls []Request
}

func (s *Stub) Submit(_ context.Context, req *Request) (*Result, error) {
	time.Sleep(s.Latency)
	s.calls = append(s.calls, *req)
	if s.Err != nil {
		return nil, s.Err
	}
	return &Result{
		ArrivalCardNumber: fmt.Sprintf("%s-%06d", req.CardType, len(s.calls)),
		QRRef:             "qr/stub.png",
		PDFRef:            "pdf/stub.pdf",
		StatusCode:        http.StatusOK,
		Attempts:          1,
	}, nil
}

// Calls returns the requests seen so far.
func (s *Stub) Calls() []Request { return s.calls }
