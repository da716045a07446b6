package otel

import (
	"context"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrEthical07/reelclient"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot reelclient.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() reelclient.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := reelclient.MetricsSnapshot{
		Counters:   make(map[reelclient.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[reelclient.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) EventsDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findSum(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
				return sum.DataPoints[0].Value, true
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newMeter()
	meter := provider.Meter("reelclient-test")

	src := &fakeSource{
		snapshot: reelclient.MetricsSnapshot{
			Counters: map[reelclient.MetricID]uint64{
				reelclient.MetricLoginSuccess: 3,
			},
			Histograms: map[reelclient.MetricID][]uint64{
				reelclient.MetricRequestLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if v, ok := findSum(rm, "reelclient_login_success_total"); !ok || v != 3 {
		t.Fatalf("login success = %d (found %v)", v, ok)
	}
	if v, ok := findSum(rm, "reelclient_events_dropped_total"); !ok || v != 1 {
		t.Fatalf("events dropped = %d (found %v)", v, ok)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newMeter()
	meter := provider.Meter("reelclient-test")

	if _, err := NewExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("nil source err = %v", err)
	}
	if _, err := NewExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("nil client err = %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("nil meter err = %v", err)
	}
}

func TestExporterReadsLiveClient(t *testing.T) {
	reader, provider := newMeter()
	c, err := reelclient.New().Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Close()

	exp, err := NewExporter(provider.Meter("reelclient-test"), c)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if _, ok := findSum(rm, "reelclient_requests_total"); !ok {
		t.Fatal("requests counter not exported")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newMeter()
	meter := provider.Meter("reelclient-test")

	src := &fakeSource{
		snapshot: reelclient.MetricsSnapshot{
			Counters: map[reelclient.MetricID]uint64{
				reelclient.MetricRequestTotal: 1,
			},
			Histograms: map[reelclient.MetricID][]uint64{
				reelclient.MetricRequestLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[reelclient.MetricRequestTotal] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
