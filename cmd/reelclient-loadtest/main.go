package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/reelclient"
	"github.com/MrEthical07/reelclient/internal/fakeapi"
	"github.com/MrEthical07/reelclient/storage"
)

type account struct {
	username string
	client   *reelclient.Client
	// created holds task ids for the get phase.
	mu      sync.Mutex
	created []int64
}

func main() {
	var (
		users       = flag.Int("users", 50, "number of accounts to log in")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (create, get, list)")
		baseURL     = flag.String("base-url", "", "API root; if empty an in-process fake API is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	root := *baseURL
	if root == "" {
		api, err := fakeapi.New(fakeapi.Options{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start fake API: %v\n", err)
			os.Exit(1)
		}
		srv := httptest.NewServer(api.Handler())
		defer srv.Close()
		root = srv.URL + "/api"
		fmt.Printf("using fake API at %s\n", root)
	} else {
		fmt.Printf("using API at %s\n", root)
	}

	httpClient := &http.Client{Transport: &http.Transport{
		MaxIdleConns:        *concurrency * 2,
		MaxIdleConnsPerHost: *concurrency * 2,
		IdleConnTimeout:     30 * time.Second,
	}}

	cfg := reelclient.DefaultConfig()
	cfg.BaseURL = root
	cfg.UserAgent = "reelclient-loadtest"

	accounts := make([]*account, *users)
	fmt.Printf("logging in %d accounts...\n", *users)
	startLogin := time.Now()
	for i := range accounts {
		acc, err := login(ctx, cfg, httpClient, fmt.Sprintf("load-%d", i))
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		defer acc.client.Close()
		accounts[i] = acc
	}
	fmt.Printf("logged in in %s\n", time.Since(startLogin).Round(time.Millisecond))

	createStats := runPhase(accounts, *ops, *concurrency, 7919, func(acc *account) error {
		task, err := acc.client.CreateTask(ctx, reelclient.TaskCreate{URL: "https://example.com/reel/" + acc.username})
		if err != nil {
			return err
		}
		acc.mu.Lock()
		acc.created = append(acc.created, task.ID)
		acc.mu.Unlock()
		return nil
	})
	getStats := runPhase(accounts, *ops, *concurrency, 6151, func(acc *account) error {
		acc.mu.Lock()
		var id int64
		if n := len(acc.created); n > 0 {
			id = acc.created[n-1]
		}
		acc.mu.Unlock()
		if id == 0 {
			return nil
		}
		_, err := acc.client.GetTask(ctx, id)
		return err
	})
	listStats := runPhase(accounts, *ops, *concurrency, 4099, func(acc *account) error {
		_, err := acc.client.ListTasks(ctx)
		return err
	})

	fmt.Println("---- results ----")
	printStats("create", createStats)
	printStats("get", getStats)
	printStats("list", listStats)

	var unauthorized, failures uint64
	for _, acc := range accounts {
		snap := acc.client.MetricsSnapshot()
		unauthorized += snap.Counters[reelclient.MetricUnauthorized]
		failures += snap.Counters[reelclient.MetricRequestFailure]
	}
	fmt.Printf("client counters: failures=%d unauthorized=%d\n", failures, unauthorized)
}

func login(ctx context.Context, cfg reelclient.Config, httpClient *http.Client, username string) (*account, error) {
	c, err := reelclient.New().
		WithConfig(cfg).
		WithStorage(storage.NewMemory()).
		WithHTTPClient(httpClient).
		WithMetricsEnabled(true).
		Build(ctx)
	if err != nil {
		return nil, err
	}
	const password = "load-test-password"
	if _, err := c.Register(ctx, username, password); err != nil && !errors.Is(err, reelclient.ErrBadRequest) {
		c.Close()
		return nil, err
	}
	if _, err := c.Login(ctx, username, password); err != nil {
		c.Close()
		return nil, err
	}
	return &account{username: username, client: c}, nil
}

func runPhase(accounts []*account, ops, concurrency int, seed int64, op func(*account) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				acc := accounts[r.Intn(len(accounts))]
				t0 := time.Now()
				err := op(acc)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
