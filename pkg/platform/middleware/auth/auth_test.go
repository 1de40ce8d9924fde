package auth_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "tripsecretary/pkg/domain"
	"tripsecretary/pkg/platform/middleware/auth"
	"tripsecretary/pkg/requestcontext"
	"tripsecretary/pkg/testutil"
)

type stubValidator struct {
	claims *auth.Claims
	err    error
}

func (v *stubValidator) ValidateToken(string) (*auth.Claims, error) {
	return v.claims, v.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func protected(validator auth.TokenValidator, next http.Handler) http.Handler {
	return auth.RequireAuth(validator, discard())(next)
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	handler := protected(&stubValidator{}, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run without a token")
	}))

	rr := testutil.DoRequest(handler, testutil.NewRequest(t, http.MethodGet, "/v1/entries"))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	validator := &stubValidator{err: errors.New("signature mismatch")}
	handler := protected(validator, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run with an invalid token")
	}))

	req := testutil.NewRequest(t, http.MethodGet, "/v1/entries")
	req.Header.Set("Authorization", "Bearer bogus")

	rr := testutil.DoRequest(handler, req)
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
}

func TestRequireAuth_MalformedUserClaim(t *testing.T) {
	validator := &stubValidator{claims: &auth.Claims{UserID: "not-a-uuid"}}
	handler := protected(validator, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run with malformed claims")
	}))

	req := testutil.NewRequest(t, http.MethodGet, "/v1/entries")
	req.Header.Set("Authorization", "Bearer whatever")

	rr := testutil.DoRequest(handler, req)
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
}

func TestRequireAuth_InjectsUserID(t *testing.T) {
	userID := id.NewUserID()
	validator := &stubValidator{claims: &auth.Claims{UserID: userID.String(), JTI: "jti-1"}}

	var seen id.UserID
	handler := protected(validator, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := testutil.NewRequest(t, http.MethodGet, "/v1/entries")
	req.Header.Set("Authorization", "Bearer valid-token")

	rr := testutil.DoRequest(handler, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, userID, seen)
}
