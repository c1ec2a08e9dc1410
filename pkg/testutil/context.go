package testutil

import (
	"net/http"

	id "becoming/pkg/domain"
	"becoming/pkg/requestcontext"
)

// WithCaller adds an authenticated caller to the request context.
// This simulates what the auth middleware does for bearer requests.
func WithCaller(req *http.Request, caller id.AccountID) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}
