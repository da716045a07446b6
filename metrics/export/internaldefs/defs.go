package internaldefs

import (
	"github.com/MrEthical07/reelclient"
)

// CounterDef names one client counter.
type CounterDef struct {
	ID   reelclient.MetricID
	Name string
	Help string
}

// HistogramDef names one latency histogram.
type HistogramDef struct {
	ID   reelclient.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: reelclient.MetricRequestTotal, Name: "reelclient_requests_total", Help: "API requests sent."},
	{ID: reelclient.MetricRequestSuccess, Name: "reelclient_requests_success_total", Help: "API requests answered with a 2xx status."},
	{ID: reelclient.MetricRequestFailure, Name: "reelclient_requests_failure_total", Help: "API requests that failed with a non-2xx status or a transport error."},
	{ID: reelclient.MetricUnauthorized, Name: "reelclient_unauthorized_total", Help: "Responses with status 401."},
	{ID: reelclient.MetricNetworkError, Name: "reelclient_network_errors_total", Help: "Requests that never produced a response."},
	{ID: reelclient.MetricSessionSet, Name: "reelclient_session_set_total", Help: "Tokens installed or restored into the session."},
	{ID: reelclient.MetricSessionCleared, Name: "reelclient_session_cleared_total", Help: "Sessions cleared by logout, 401 or malformed token."},
	{ID: reelclient.MetricTokenMalformed, Name: "reelclient_token_malformed_total", Help: "Tokens rejected because they could not be decoded."},
	{ID: reelclient.MetricLoginSuccess, Name: "reelclient_login_success_total", Help: "Successful logins."},
	{ID: reelclient.MetricLoginFailure, Name: "reelclient_login_failure_total", Help: "Failed logins."},
	{ID: reelclient.MetricLoginNavigation, Name: "reelclient_login_navigation_total", Help: "Redirects to the login surface."},
}

// HistogramDefs lists the exported histograms.
var HistogramDefs = []HistogramDef{
	{ID: reelclient.MetricRequestLatency, Name: "reelclient_request_latency_seconds", Help: "Round trip latency of API requests."},
}

// EventsDroppedName is the counter for events lost to a full buffer.
const (
	EventsDroppedName = "reelclient_events_dropped_total"
	EventsDroppedHelp = "Session events dropped because the dispatch buffer was full."
)

// HistogramBounds are the upper bounds, in seconds, of the eight buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix spells HistogramBounds in instrument-name-safe form.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
