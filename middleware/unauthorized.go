package middleware

import "net/http"

// OnUnauthorized is invoked for every 401 response before it is returned.
type OnUnauthorized func(req *http.Request, resp *http.Response)

// Unauthorized returns a Decorator that reports 401 responses to fn. The
// response itself is passed through unchanged.
func Unauthorized(fn OnUnauthorized) Decorator {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(r)
			if err == nil && resp != nil && resp.StatusCode == http.StatusUnauthorized && fn != nil {
				fn(r, resp)
			}
			return resp, err
		})
	}
}
