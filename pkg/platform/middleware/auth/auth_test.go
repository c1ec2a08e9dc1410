package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	id "becoming/pkg/domain"
	"becoming/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return s.claims, s.err
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	alice := id.DevAccount("alice")

	var seen id.AccountID
	var seenOK bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, seenOK = requestcontext.Caller(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name      string
		header    string
		validator stubValidator
		status    int
		desc      string
	}{
		{"missing header", "", stubValidator{}, http.StatusUnauthorized, "Missing or invalid Authorization header"},
		{"wrong scheme", "Basic abc", stubValidator{}, http.StatusUnauthorized, "Missing or invalid Authorization header"},
		{"empty bearer", "Bearer ", stubValidator{}, http.StatusUnauthorized, "Missing or invalid Authorization header"},
		{"invalid token", "Bearer abc", stubValidator{err: errors.New("bad signature")}, http.StatusUnauthorized, "Invalid or expired token"},
		{"valid token", "Bearer abc", stubValidator{claims: &JWTClaims{Account: alice, JTI: "j1"}}, http.StatusNoContent, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seenOK = false
			req := httptest.NewRequest(http.MethodPost, "/v1/mint", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			RequireAuth(tc.validator, logger)(next).ServeHTTP(rr, req)

			assert.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusNoContent {
				assert.True(t, seenOK)
				assert.Equal(t, alice, seen)
			} else {
				assert.False(t, seenOK)
				assert.JSONEq(t, `{"error":"unauthorized","error_description":"`+tc.desc+`"}`, rr.Body.String())
			}
		})
	}
}
