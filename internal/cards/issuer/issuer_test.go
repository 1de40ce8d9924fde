package issuer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "tripsecretary/pkg/domain"
	"tripsecretary/pkg/platform/circuit"
	"tripsecretary/pkg/platform/sentinel"
)

func testRequest() *Request {
	return &Request{
		CardType:      id.CardTypeTDAC,
		DestinationID: "TH",
		Traveler:      map[string]string{"surname": "NG", "passport_number": "E1234567"},
	}
}

func TestSubmit_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/cards", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"arrival_card_number":"TH240001","qr_ref":"qr/1.png","pdf_ref":"pdf/1.pdf"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "secret", time.Second)
	res, err := c.Submit(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "TH240001", res.ArrivalCardNumber)
	assert.Equal(t, "qr/1.png", res.QRRef)
	assert.Equal(t, "pdf/1.pdf", res.PDFRef)
	assert.Equal(t, 1, res.Attempts)
	assert.Contains(t, res.RawBody, "TH240001")
}

func TestSubmit_RejectionIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"passport expired"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", time.Second, WithMaxAttempts(3))
	_, err := c.Submit(context.Background(), testRequest())
	require.Error(t, err)

	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Rejected)
	assert.Equal(t, http.StatusUnprocessableEntity, ce.StatusCode)
	assert.Contains(t, ce.Body, "passport expired")
	assert.Equal(t, 1, ce.Attempts)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSubmit_RetriesTransientThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"arrival_card_number":"TH240002"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", time.Second,
		WithMaxAttempts(3),
		WithBackoff(time.Millisecond),
		WithBreaker(circuit.New("issuer", circuit.WithFailureThreshold(10))),
	)
	res, err := c.Submit(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "TH240002", res.ArrivalCardNumber)
}

func TestSubmit_ExhaustedRetriesReportUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", time.Second,
		WithMaxAttempts(2),
		WithBackoff(time.Millisecond),
		WithBreaker(circuit.New("issuer", circuit.WithFailureThreshold(10))),
	)
	_, err := c.Submit(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))

	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.False(t, ce.Rejected)
	assert.Equal(t, 2, ce.Attempts)
}

func TestSubmit_OpenBreakerShortCircuits(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	b := circuit.New("issuer", circuit.WithFailureThreshold(1))
	c := NewHTTPClient(srv.URL, "", time.Second,
		WithMaxAttempts(3),
		WithBackoff(time.Millisecond),
		WithBreaker(b),
	)

	// First call trips the breaker on its first transient failure.
	_, err := c.Submit(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, b.IsOpen())
	assert.Equal(t, int32(1), hits.Load())

	// Second call never reaches the wire.
	_, err = c.Submit(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	assert.Equal(t, int32(1), hits.Load())
}

func TestStub_ReturnsDeterministicArtifacts(t *testing.T) {
	s := &Stub{}
	res, err := s.Submit(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "TDAC-000001", res.ArrivalCardNumber)
	assert.Len(t, s.Calls(), 1)
}
