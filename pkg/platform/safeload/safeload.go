// Package safeload centralizes fail-open reads. Best-effort state (interaction
// tracking, caches) must never block a form with a fatal error: a corrupted or
// unreadable payload degrades to the zero value plus a logged diagnostic.
package safeload

import (
	"context"
	"log/slog"
)

// Load runs read and returns its result. On failure it logs the diagnostic
// and returns the fallback instead of the error.
//
// The error is intentionally swallowed: callers that need failures propagated
// should not be using this package.
func Load[T any](ctx context.Context, logger *slog.Logger, what string, fallback T, read func(ctx context.Context) (T, error)) T {
	v, err := read(ctx)
	if err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "fail-open read degraded to fallback",
				"what", what,
				"error", err,
			)
		}
		return fallback
	}
	return v
}
