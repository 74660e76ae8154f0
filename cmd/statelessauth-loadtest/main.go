// Command statelessauth-loadtest seeds principals into a Redis-backed store
// and measures login, authenticate and refresh throughput against an Engine.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	mrand "math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/statelessauth"
	otelexport "github.com/MrEthical07/statelessauth/metrics/export/otel"
	"github.com/MrEthical07/statelessauth/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const seedPassword = "loadtest-password-1"

type principalState struct {
	email   string
	access  string
	refresh string
}

func main() {
	var (
		principals  = flag.Int("principals", 200, "number of principals to register")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per authenticate/refresh phase")
		loginOps    = flag.Int("login-ops", 500, "operations in the login phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "salt:", "store key prefix")
		argonMemory = flag.Uint("argon-memory", 8*1024, "argon2id memory in KiB")
	)
	flag.Parse()

	if *principals <= 0 || *concurrency <= 0 || *ops <= 0 || *loginOps <= 0 {
		fmt.Fprintln(os.Stderr, "principals, concurrency, ops and login-ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	client, cleanup, err := openRedis(*redisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	engine, err := buildEngine(redisstore.New(client, redisstore.Options{Prefix: *prefix}), uint32(*argonMemory))
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()
	exporter, err := otelexport.NewExporter(provider.Meter("statelessauth-loadtest"), engine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "metrics exporter: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = exporter.Close() }()

	fmt.Printf("registering %d principals...\n", *principals)
	startSeed := time.Now()
	states, err := seed(ctx, engine, *principals, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	loginStats := runPhase(*loginOps, *concurrency, func(r *mrand.Rand) error {
		s := states[r.Intn(len(states))]
		_, err := engine.Login(ctx, nil, statelessauth.LoginRequest{Email: s.email, Password: seedPassword})
		return err
	})
	authStats := runPhase(*ops, *concurrency, func(r *mrand.Rand) error {
		_, err := engine.Authenticate(ctx, states[r.Intn(len(states))].access)
		return err
	})
	refreshStats := runPhase(*ops, *concurrency, func(r *mrand.Rand) error {
		_, err := engine.Refresh(ctx, states[r.Intn(len(states))].refresh)
		return err
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("authenticate", authStats)
	printStats("refresh", refreshStats)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		fmt.Fprintf(os.Stderr, "collect metrics: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("---- engine metrics ----")
	printMetrics(rm)
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{mr.Addr()},
		})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{addr},
	})
	fmt.Printf("using redis at %s\n", addr)
	return client, func() { _ = client.Close() }, nil
}

func buildEngine(store statelessauth.PrincipalStore, argonMemory uint32) (*statelessauth.Engine, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}

	cfg := statelessauth.DefaultConfig()
	cfg.JWT.Secret = base64.StdEncoding.EncodeToString(key)
	cfg.Password.Memory = argonMemory
	cfg.Password.Time = 1

	return statelessauth.New().
		WithConfig(cfg).
		WithPrincipalStore(store).
		Build()
}

// seed registers n principals, reusing the tokens from registration. The
// run id keeps repeated runs against a real Redis from colliding.
func seed(ctx context.Context, engine *statelessauth.Engine, n int, prefix string) ([]principalState, error) {
	runID := time.Now().UnixNano()
	states := make([]principalState, n)
	for i := range states {
		email := fmt.Sprintf("load-%d-%d@%s.example", runID, i, strings.TrimSuffix(prefix, ":"))
		res, err := engine.Register(ctx, nil, statelessauth.RegisterRequest{
			Email:    email,
			Password: seedPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", email, err)
		}
		states[i] = principalState{email: email, access: res.AccessToken, refresh: res.RefreshToken}
	}
	return states, nil
}

func runPhase(ops, concurrency int, op func(r *mrand.Rand) error) phaseStats {
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
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
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

// printMetrics prints non-zero counters and histogram sample counts.
func printMetrics(rm metricdata.ResourceMetrics) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					if dp.Value != 0 {
						fmt.Printf("%s=%d\n", m.Name, dp.Value)
					}
				}
			case metricdata.Gauge[int64]:
				if !strings.HasSuffix(m.Name, "_count") {
					continue
				}
				for _, dp := range data.DataPoints {
					fmt.Printf("%s=%d\n", m.Name, dp.Value)
				}
			}
		}
	}
}
