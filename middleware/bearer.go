package middleware

import (
	"net/http"
	"strings"
)

// TokenSource returns the current bearer token, or "" when none is held.
type TokenSource func() string

// Bearer returns a Decorator that sets the Authorization header from src.
// Requests are cloned before modification.
func Bearer(src TokenSource) Decorator {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if src == nil {
				return next.RoundTrip(r)
			}
			token := src()
			if token == "" {
				return next.RoundTrip(r)
			}
			out := r.Clone(r.Context())
			out.Header.Set("Authorization", "Bearer "+token)
			return next.RoundTrip(out)
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
