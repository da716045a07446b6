package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is the header stamped by RequestID.
const RequestIDHeader = "X-Request-ID"

// DefaultContentType sets Content-Type to ct unless the request already has one.
func DefaultContentType(ct string) Decorator {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get("Content-Type") != "" {
				return next.RoundTrip(r)
			}
			out := r.Clone(r.Context())
			out.Header.Set("Content-Type", ct)
			return next.RoundTrip(out)
		})
	}
}

// RequestID stamps a random UUID on requests that carry no X-Request-ID.
func RequestID() Decorator {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get(RequestIDHeader) != "" {
				return next.RoundTrip(r)
			}
			out := r.Clone(r.Context())
			out.Header.Set(RequestIDHeader, uuid.NewString())
			return next.RoundTrip(out)
		})
	}
}
