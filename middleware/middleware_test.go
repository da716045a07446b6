package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func recordingTransport(seen *[]*http.Request, status int) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		*seen = append(*seen, r)
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader(`{"detail":"x"}`)),
			Request:    r,
		}, nil
	})
}

func TestBearerAttachesTokenWhenHeld(t *testing.T) {
	var seen []*http.Request
	rt := Chain(recordingTransport(&seen, http.StatusOK), Bearer(func() string { return "abc" }))

	req := httptest.NewRequest(http.MethodGet, "http://api.test/tasks", nil)
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("round trip: %v", err)
	}

	if got := seen[0].Header.Get("Authorization"); got != "Bearer abc" {
		t.Fatalf("expected bearer header, got %q", got)
	}
	if req.Header.Get("Authorization") != "" {
		t.Fatal("original request must not be mutated")
	}
}

func TestBearerSkipsWhenNoToken(t *testing.T) {
	var seen []*http.Request
	rt := Chain(recordingTransport(&seen, http.StatusOK), Bearer(func() string { return "" }))

	req := httptest.NewRequest(http.MethodGet, "http://api.test/tasks", nil)
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if _, ok := seen[0].Header["Authorization"]; ok {
		t.Fatal("expected no Authorization header")
	}
}

func TestDefaultContentTypeRespectsExisting(t *testing.T) {
	var seen []*http.Request
	rt := Chain(recordingTransport(&seen, http.StatusOK), DefaultContentType("application/json"))

	plain := httptest.NewRequest(http.MethodGet, "http://api.test/tasks", nil)
	form := httptest.NewRequest(http.MethodPost, "http://api.test/auth/token", strings.NewReader("a=b"))
	form.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	for _, r := range []*http.Request{plain, form} {
		if _, err := rt.RoundTrip(r); err != nil {
			t.Fatalf("round trip: %v", err)
		}
	}
	if got := seen[0].Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected json content type, got %q", got)
	}
	if got := seen[1].Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
		t.Fatalf("expected form content type preserved, got %q", got)
	}
}

func TestRequestIDStampsUniqueIDs(t *testing.T) {
	var seen []*http.Request
	rt := Chain(recordingTransport(&seen, http.StatusOK), RequestID())

	for i := 0; i < 2; i++ {
		if _, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://api.test/", nil)); err != nil {
			t.Fatalf("round trip: %v", err)
		}
	}
	a, b := seen[0].Header.Get(RequestIDHeader), seen[1].Header.Get(RequestIDHeader)
	if a == "" || b == "" || a == b {
		t.Fatalf("expected two distinct request ids, got %q and %q", a, b)
	}
}

func TestUnauthorizedCallbackAndPassThrough(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusForbidden, http.StatusUnauthorized} {
		var seen []*http.Request
		calls := 0
		rt := Chain(recordingTransport(&seen, status), Unauthorized(func(_ *http.Request, resp *http.Response) {
			calls++
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("callback got status %d", resp.StatusCode)
			}
		}))

		resp, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://api.test/tasks", nil))
		if err != nil {
			t.Fatalf("round trip: %v", err)
		}
		if resp.StatusCode != status {
			t.Fatalf("expected status %d passed through, got %d", status, resp.StatusCode)
		}
		want := 0
		if status == http.StatusUnauthorized {
			want = 1
		}
		if calls != want {
			t.Fatalf("status %d: expected %d callback calls, got %d", status, want, calls)
		}
	}
}

func TestChainOrderFirstSeesRequestFirst(t *testing.T) {
	var order []string
	mark := func(name string) Decorator {
		return func(next http.RoundTripper) http.RoundTripper {
			return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.RoundTrip(r)
			})
		}
	}
	var seen []*http.Request
	rt := Chain(recordingTransport(&seen, http.StatusOK), mark("a"), nil, mark("b"))
	if _, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://api.test/", nil)); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if strings.Join(order, ",") != "a,b" {
		t.Fatalf("expected a,b got %v", order)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		token string
		ok    bool
	}{
		"Bearer abc": {"abc", true},
		"Bearer ":    {"", false},
		"bearer abc": {"", false},
		"Basic abc":  {"", false},
		"":           {"", false},
	}
	for in, want := range cases {
		got, ok := BearerToken(in)
		if got != want.token || ok != want.ok {
			t.Fatalf("BearerToken(%q) = %q,%v want %q,%v", in, got, ok, want.token, want.ok)
		}
	}
}
