package middleware

import "net/http"

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// Decorator wraps a RoundTripper.
type Decorator func(http.RoundTripper) http.RoundTripper

// Chain applies decorators so that the first one listed sees the request first.
func Chain(base http.RoundTripper, decorators ...Decorator) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	for i := len(decorators) - 1; i >= 0; i-- {
		if decorators[i] != nil {
			rt = decorators[i](rt)
		}
	}
	return rt
}
