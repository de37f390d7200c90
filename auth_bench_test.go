package goTodo

import (
	"context"
	"testing"

	"github.com/MrEthical07/goTodo/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func newBenchmarkEngine(b *testing.B) *Engine {
	b.Helper()

	mr := miniredis.RunT(b)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() { _ = rdb.Close() })

	digest, err := bcrypt.GenerateFromPassword([]byte(alicePassword), bcrypt.MinCost)
	if err != nil {
		b.Fatalf("hash: %v", err)
	}

	cfg := engineTestConfig()
	cfg.Password = password.Config{Algorithm: password.AlgorithmBcrypt, BcryptCost: bcrypt.MinCost}
	cfg.Audit.Enabled = false

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(&fakeUsers{users: map[string]UserRecord{
			"alice": {UserID: "u1", Username: "alice", PasswordHash: string(digest), Roles: []string{"USER"}},
		}}).
		Build()
	if err != nil {
		b.Fatalf("Build failed: %v", err)
	}
	b.Cleanup(engine.Close)
	return engine
}

func BenchmarkValidate(b *testing.B) {
	engine := newBenchmarkEngine(b)

	res, err := engine.Login(context.Background(), "alice", alicePassword)
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Validate(context.Background(), res.AccessToken); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	engine := newBenchmarkEngine(b)

	res, err := engine.Login(context.Background(), "alice", alicePassword)
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err = engine.Refresh(context.Background(), res.RefreshToken)
		if err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
	}
}

func BenchmarkLogin(b *testing.B) {
	engine := newBenchmarkEngine(b)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Login(context.Background(), "alice", alicePassword); err != nil {
			b.Fatalf("login failed: %v", err)
		}
	}
}
