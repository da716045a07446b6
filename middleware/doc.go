// Package middleware provides the interceptor chain of the API gateway
// client as http.RoundTripper decorators.
//
// # Interceptors
//
//   - [Bearer] attaches "Authorization: Bearer <token>" when a token is held.
//   - [DefaultContentType] sets a Content-Type when the request has none.
//   - [RequestID] stamps each request with an X-Request-ID.
//   - [Unauthorized] observes 401 responses and hands them to a callback.
//
// Decorators never alter the body and never swallow a response: the caller
// always receives what the next RoundTripper returned.
//
// # What this package must NOT do
//
//   - Decode tokens or mutate session state directly (callers decide).
//   - Retry, redirect or otherwise re-send requests.
package middleware
