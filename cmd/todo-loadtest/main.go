// Command todo-loadtest measures session store throughput. It seeds one
// access session per user and then runs a validate phase (IsActive) and a
// rotate phase (Save with a fresh token ID) from concurrent workers.
//
// Without --redis-addr (or REDIS_ADDR) an in-process miniredis is used.
package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goTodo/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	flagUsers       int
	flagConcurrency int
	flagOps         int
	flagRedisAddr   string
	flagNamespace   string

	rootCmd = &cobra.Command{
		Use:          "todo-loadtest",
		Short:        "Load test the Redis session store",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}
)

func init() {
	rootCmd.Flags().IntVar(&flagUsers, "users", 100000, "number of user sessions to seed")
	rootCmd.Flags().IntVar(&flagConcurrency, "concurrency", 256, "number of concurrent workers")
	rootCmd.Flags().IntVar(&flagOps, "ops", 200000, "operations per phase")
	rootCmd.Flags().StringVar(&flagRedisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR or miniredis is used")
	rootCmd.Flags().StringVar(&flagNamespace, "namespace", "loadtest", "session key namespace")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// userState tracks the token ID that is currently active for one user.
type userState struct {
	username string
	mu       sync.Mutex
	jti      string
}

func run(cmd *cobra.Command, _ []string) error {
	if flagUsers <= 0 || flagConcurrency <= 0 || flagOps <= 0 {
		return errors.New("users, concurrency, and ops must be > 0")
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	addr := flagRedisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var client redis.UniversalClient
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Fprintf(out, "using miniredis at %s\n", addr)
	} else {
		fmt.Fprintf(out, "using redis at %s\n", addr)
	}
	client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	store := session.NewStore(client, session.WithNamespace(flagNamespace))

	states := make([]userState, flagUsers)
	expiresAt := time.Now().Add(24 * time.Hour).Unix()

	fmt.Fprintf(out, "seeding %d sessions...\n", flagUsers)
	startSeed := time.Now()
	for i := range states {
		states[i].username = fmt.Sprintf("user-%d@example.com", i)
		states[i].jti = uuid.NewString()
		if err := store.Save(ctx, states[i].username, states[i].jti, expiresAt, session.KindAccess, nil); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validate := runPhase(flagOps, flagConcurrency, func(r *rand.Rand) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		jti := s.jti
		s.mu.Unlock()

		active, err := store.IsActive(ctx, s.username, jti, session.KindAccess)
		if err != nil {
			return err
		}
		if !active {
			return fmt.Errorf("session for %s not active", s.username)
		}
		return nil
	})

	rotate := runPhase(flagOps, flagConcurrency, func(r *rand.Rand) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		defer s.mu.Unlock()

		next := uuid.NewString()
		if err := store.Save(ctx, s.username, next, expiresAt, session.KindAccess, nil); err != nil {
			return err
		}
		s.jti = next
		return nil
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "validate", validate)
	printStats(out, "rotate", rotate)
	return nil
}

// runPhase runs op ops times across concurrency workers and records the
// latency of every call.
func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		failures  atomic.Int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for cursor.Add(1) <= int64(ops) {
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					failures.Add(1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	return computeStats(time.Since(start), latencies, failures.Load())
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
		return phaseStats{total: total, failures: failures}
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

// percentile expects sorted samples.
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

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
