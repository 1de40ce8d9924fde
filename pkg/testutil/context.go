package testutil

import (
	"net/http"

	id "tripsecretary/pkg/domain"
	"tripsecretary/pkg/requestcontext"
)

// WithUserID injects a user ID into the request context, simulating what the
// auth middleware does for authenticated requests. Invalid UUIDs are silently
// ignored so table tests can probe the unauthenticated path too.
func WithUserID(req *http.Request, userID string) *http.Request {
	parsed, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
}

// WithRequestID injects a request ID into the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithClientMetadata injects client IP and user agent into the request
// context, simulating the metadata middleware.
func WithClientMetadata(req *http.Request, clientIP, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), clientIP, userAgent))
}
