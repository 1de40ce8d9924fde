package metadata_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "tripsecretary/pkg/domain"
	"tripsecretary/pkg/platform/middleware/metadata"
	"tripsecretary/pkg/requestcontext"
	"tripsecretary/pkg/testutil"
)

func TestRequestMetadata_GeneratesRequestID(t *testing.T) {
	var requestID string
	handler := metadata.RequestMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = requestcontext.RequestID(r.Context())
	}))

	rr := testutil.DoRequest(handler, testutil.NewRequest(t, http.MethodGet, "/healthz"))

	require.NotEmpty(t, requestID)
	assert.Equal(t, requestID, rr.Header().Get("X-Request-ID"))
}

func TestRequestMetadata_HonorsCallerRequestID(t *testing.T) {
	var requestID string
	handler := metadata.RequestMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = requestcontext.RequestID(r.Context())
	}))

	req := testutil.NewRequest(t, http.MethodGet, "/healthz")
	req.Header.Set("X-Request-ID", "caller-supplied-id")

	rr := testutil.DoRequest(handler, req)

	assert.Equal(t, "caller-supplied-id", requestID)
	assert.Equal(t, "caller-supplied-id", rr.Header().Get("X-Request-ID"))
}

func TestRequestMetadata_CapturesClientMetadata(t *testing.T) {
	var ip, ua string
	handler := metadata.RequestMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = requestcontext.ClientIP(r.Context())
		ua = requestcontext.UserAgent(r.Context())
	}))

	req := testutil.NewRequest(t, http.MethodGet, "/healthz")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("User-Agent", "tripsecretary-app/2.4")

	testutil.DoRequest(handler, req)

	assert.Equal(t, "203.0.113.9", ip)
	assert.Equal(t, "tripsecretary-app/2.4", ua)
}

func TestClientIPFromRequest(t *testing.T) {
	cases := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"forwarded for wins", "198.51.100.7, 10.0.0.1", "192.0.2.1", "10.0.0.2:4444", "198.51.100.7"},
		{"real ip next", "", "192.0.2.1", "10.0.0.2:4444", "192.0.2.1"},
		{"remote addr fallback", "", "", "10.0.0.2:4444", "10.0.0.2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodGet, "/")
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			req.RemoteAddr = tc.remoteAddr

			assert.Equal(t, tc.want, metadata.ClientIPFromRequest(req))
		})
	}
}

// Context injection helpers mirror the middleware for handler-level tests.
func TestContextHelpersMirrorMiddleware(t *testing.T) {
	userID := id.NewUserID()

	req := testutil.NewRequest(t, http.MethodGet, "/")
	req = testutil.WithUserID(req, userID.String())
	req = testutil.WithRequestID(req, "req-42")
	req = testutil.WithClientMetadata(req, "203.0.113.9", "tripsecretary-app/2.4")

	ctx := req.Context()
	assert.Equal(t, userID, requestcontext.UserID(ctx))
	assert.Equal(t, "req-42", requestcontext.RequestID(ctx))
	assert.Equal(t, "203.0.113.9", requestcontext.ClientIP(ctx))
	assert.Equal(t, "tripsecretary-app/2.4", requestcontext.UserAgent(ctx))

	// Invalid user IDs are ignored rather than poisoning the context.
	fresh := testutil.WithUserID(testutil.NewRequest(t, http.MethodGet, "/"), "not-a-uuid")
	assert.Equal(t, id.UserID{}, requestcontext.UserID(fresh.Context()))
}
