package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/exchange"
	"github.com/MrEthical07/linkauth/store/memory"
)

const loadPassword = "load-test-password"

type account struct {
	access  string
	refresh string
	result  linkauth.AuthResult
}

func main() {
	var (
		accounts    = flag.Int("accounts", 2000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "validate operations")
		contenders  = flag.Int("contenders", 8, "goroutines racing for each refresh token and exchange code")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "loadtest:code", "exchange code key prefix")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 || *contenders < 2 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency and ops must be > 0; contenders must be >= 2")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := linkauth.DefaultConfig()
	cfg.JWT.Secret = bytes.Repeat([]byte("loadtest-secret-"), 2)
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Refresh.SweepInterval = 0

	engine, err := linkauth.New().
		WithConfig(cfg).
		WithCredentialStore(memory.New()).
		WithExchangeStore(exchange.NewRedisStore(client, *prefix)).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]account, *accounts)
	fmt.Printf("seeding %d accounts...\n", *accounts)
	startSeed := time.Now()
	for i := range states {
		res, err := engine.Register(ctx, linkauth.RegisterRequest{
			Email:    fmt.Sprintf("user-%d@loadtest.example", i),
			Password: loadPassword,
			Name:     fmt.Sprintf("User %d", i),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "register failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = account{access: res.AccessToken, refresh: res.RefreshToken, result: res}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runValidatePhase(ctx, engine, states, *ops, *concurrency)
	refreshStats, refreshViolations := runRefreshRace(ctx, engine, states, *contenders, *concurrency)
	exchangeStats, exchangeViolations := runExchangeRace(ctx, engine, states, *contenders, *concurrency)

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh-race", refreshStats)
	printStats("exchange-race", exchangeStats)

	if refreshViolations > 0 || exchangeViolations > 0 {
		fmt.Fprintf(os.Stderr, "single-winner violated: refresh=%d exchange=%d\n", refreshViolations, exchangeViolations)
		os.Exit(1)
	}
	fmt.Println("single-winner held for every refresh token and exchange code")
}

func runValidatePhase(ctx context.Context, engine *linkauth.Engine, states []account, ops, concurrency int) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(states))
				t0 := time.Now()
				_, err := engine.Validate(ctx, states[idx].access)
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
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

// raceEach runs attempt contenders times concurrently for every index and
// returns the number of indexes that did not see exactly one winner.
func raceEach(n, contenders, concurrency int, attempt func(idx int) bool) (phaseStats, int64) {
	var (
		wg         sync.WaitGroup
		cursor     int64
		failures   int64
		violations int64
		latencies  = make([]time.Duration, 0, n*contenders)
		mu         sync.Mutex
	)

	workers := concurrency / contenders
	if workers < 1 {
		workers = 1
	}

	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				idx := int(atomic.AddInt64(&cursor, 1)) - 1
				if idx >= n {
					return
				}

				var (
					inner   sync.WaitGroup
					winners int64
				)
				for c := 0; c < contenders; c++ {
					inner.Add(1)
					go func() {
						defer inner.Done()
						t0 := time.Now()
						ok := attempt(idx)
						d := time.Since(t0)
						if ok {
							atomic.AddInt64(&winners, 1)
						} else {
							atomic.AddInt64(&failures, 1)
						}
						mu.Lock()
						latencies = append(latencies, d)
						mu.Unlock()
					}()
				}
				inner.Wait()
				if winners != 1 {
					atomic.AddInt64(&violations, 1)
				}
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures), violations
}

func runRefreshRace(ctx context.Context, engine *linkauth.Engine, states []account, contenders, concurrency int) (phaseStats, int64) {
	return raceEach(len(states), contenders, concurrency, func(idx int) bool {
		_, err := engine.Refresh(ctx, states[idx].refresh)
		return err == nil
	})
}

func runExchangeRace(ctx context.Context, engine *linkauth.Engine, states []account, contenders, concurrency int) (phaseStats, int64) {
	codes := make([]string, len(states))
	for i := range states {
		code, err := engine.IssueExchangeCode(ctx, states[i].result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue exchange code failed: %v\n", err)
			os.Exit(1)
		}
		codes[i] = code
	}

	return raceEach(len(codes), contenders, concurrency, func(idx int) bool {
		_, err := engine.ExchangeOAuthCode(ctx, codes[idx])
		return err == nil
	})
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
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
