package goTodo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goTodo/internal/audit"
	"github.com/MrEthical07/goTodo/password"
	"github.com/MrEthical07/goTodo/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const alicePassword = "correct-password-123"

type fakeUsers struct {
	mu        sync.Mutex
	users     map[string]UserRecord
	findCalls int
	updated   map[string]string
	findErr   error
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.findCalls++
	if f.findErr != nil {
		return UserRecord{}, f.findErr
	}
	u, ok := f.users[username]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updated == nil {
		f.updated = map[string]string{}
	}
	f.updated[userID] = newHash
	for name, u := range f.users {
		if u.UserID == userID {
			u.PasswordHash = newHash
			f.users[name] = u
		}
	}
	return nil
}

func (f *fakeUsers) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findCalls
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func engineTestConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("test-secret")
	cfg.Password = password.Config{
		Algorithm:  password.AlgorithmBcrypt,
		BcryptCost: bcrypt.MinCost,
	}
	cfg.RateLimit.MaxLoginAttempts = 3
	cfg.RateLimit.Window = time.Minute
	return cfg
}

func hashForTest(t *testing.T, plaintext string, cost int) string {
	t.Helper()

	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	return string(digest)
}

type engineFixture struct {
	engine *Engine
	users  *fakeUsers
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	clock  *testClock
	sink   *ChannelSink
}

func newEngineFixture(t *testing.T, cfg Config) *engineFixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	users := &fakeUsers{users: map[string]UserRecord{
		"alice": {
			UserID:       "u1",
			Username:     "alice",
			FullName:     "Alice Doe",
			PasswordHash: hashForTest(t, alicePassword, bcrypt.MinCost),
			Roles:        []string{"USER"},
		},
	}}
	clock := &testClock{now: time.Now()}
	sink := NewChannelSink(64)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(users).
		WithAuditSink(sink).
		WithClock(clock.Now).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &engineFixture{engine: engine, users: users, mr: mr, rdb: rdb, clock: clock, sink: sink}
}

func TestBuildRequiresRedisAndUsers(t *testing.T) {
	if _, err := New().WithConfig(engineTestConfig()).WithUserProvider(&fakeUsers{}).Build(); err == nil {
		t.Fatal("expected error without redis")
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	if _, err := New().WithConfig(engineTestConfig()).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without user provider")
	}
}

func TestBuilderCanOnlyBuildOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	b := New().WithConfig(engineTestConfig()).WithRedis(rdb).WithUserProvider(&fakeUsers{})
	e, err := b.Build()
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	defer e.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second build to fail")
	}
}

func TestLoginIssuesPairAndValidateAccepts(t *testing.T) {
	f := newEngineFixture(t, engineTestConfig())
	ctx := WithUserAgent(WithClientIP(context.Background(), "10.0.0.1"), "test-agent")

	res, err := f.engine.Login(ctx, "alice", alicePassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" || res.AccessToken == res.RefreshToken {
		t.Fatalf("unexpected token pair: %+v", res)
	}
	if res.TokenType != TokenTypeBearer || res.ExpiresIn != int64((30*time.Minute)/time.Second) {
		t.Fatalf("unexpected token metadata: %+v", res)
	}
	if res.UserID != "u1" || res.Username != "alice" {
		t.Fatalf("unexpected identity: %+v", res)
	}

	auth, err := f.engine.Validate(ctx, res.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if auth.Username != "alice" || auth.UserID != "u1" || !auth.HasRole("user") {
		t.Fatalf("unexpected auth result: %+v", auth)
	}

	rec, err := f.engine.sessions.Get(ctx, "alice", session.KindAccess)
	if err != nil {
		t.Fatalf("session get: %v", err)
	}
	if rec.TokenID != auth.TokenID {
		t.Fatalf("session jti %q does not match token %q", rec.TokenID, auth.TokenID)
	}
	if rec.Meta["ip"] != "10.0.0.1" || rec.Meta["user_agent"] != "test-agent" || rec.Meta["user_id"] != "u1" {
		t.Fatalf("unexpected session meta: %v", rec.Meta)
	}
	if !f.mr.Exists("session:refresh:alice") {
		t.Fatal("expected refresh session record")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newEngineFixture(t, engineTestConfig())
	ctx := context.Background()

	if _, err := f.engine.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := f.engine.Login(ctx, "bob", alicePassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	if f.mr.Exists("session:access:alice") {
		t.Fatal("failed login must not store a session")
	}
}

func TestLoginProviderErrorIsNotInvalidCredentials(t *testing.T) {
	f := newEngineFixture(t, engineTestConfig())
	f.users.findErr = errors.New("mongo down")

	_, err := f.engine.Login(context.Background(), "alice", alicePassword)
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

func TestSecondLoginRevokesFirstPair(t *testing.T) {
	f := newEngineFixture(t, engineTestConfig())
	ctx := context.Background()

	first, err := f.engine.Login(ctx, "alice", alicePassword)
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, err := f.engine.Login(ctx, "alice", alicePassword)
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if _, err := f.engine.Validate(ctx, first.AccessToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected first token revoked, got %v", err)
	}
	if _, err := f.engine.Validate(ctx, second.AccessToken); err != nil {
		t.Fatalf("expected second token valid, got %v", err)
	}
	if _, err := f.engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected first refresh token revoked, got %v", err)
	}
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	f := newEngineFixture(t, engineTestConfig())
	ctx := context.Background()

	res, err := f.engine.Login(ctx, "alice", alicePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := f.engine.Validate(ctx, res.RefreshToken); !errors.Is(err, ErrTokenKind) {
		t.Fatalf("expected ErrTokenKind for refresh token, got %v", err)
	}
	if _, err := f.engine.Refresh(ctx, res.AccessToken); !errors.Is(err, ErrTokenKind) {
		t.Fatalf("expected ErrTokenKind for access token, got %v", err)
	}
}

func TestRefreshRotatesPair(t *testing.T) {
	f := newEngineFixture(t, engineTestConfig())
	ctx := context.Background()

	first, err := f.engine.Login(ctx, "alice", alicePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	next, err := f.engine.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := f.engine.Validate(ctx, next.AccessToken); err != nil {
		t.Fatalf("new access token rejected: %v", err)
	}
	if _, err := f.engine.Validate(ctx, first.AccessToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected old access token revoked, got %v", err)
	}
	if _, err := f.engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected refresh token reuse rejected, got %v", err)
	}
}

func TestRefreshPicksUpRoleChanges(t *testing.T) {
	f := newEngineFixture(t, engineTestConfig())
	ctx := context.Background()

	first, err := f.engine.Login(ctx, "alice", alicePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	f.users.mu.Lock()
	u := f.users.users["alice"]
	u.Roles = []string{"USER", "ADMIN"}
	f.users.users["alice"] = u
	f.users.mu.Unlock()

	next, err := f.engine.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	auth, err := f.engine.Validate(ctx, next.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !auth.HasRole("ADMIN") {
		t.Fatalf("expected ADMIN after refresh, got %v", auth.Roles)
	}
}

func TestRefreshForDeletedUserRevokes(t *testing.T) {
	f := newEngineFixture(t, engineTestConfig())
	ctx := context.Background()

	res, err := f.engine.Login(ctx, "alice", alicePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	f.users.mu.Lock()
	delete(f.users.users, "alice")
	f.users.mu.Unlock()

	if _, err := f.engine.Refresh(ctx, res.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
	if _, err := f.engine.Validate(ctx, res.AccessToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected access revoked, got %v", err)
	}
}

func TestLogoutRevokesBothKinds(t *testing.T) {
	f := newEngineFixture(t, engineTestConfig())
	ctx := context.Background()

	res, err := f.engine.Login(ctx, "alice", alicePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := f.engine.Logout(ctx, "alice"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.engine.Validate(ctx, res.AccessToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
	if _, err := f.engine.Refresh(ctx, res.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected refresh revoked, got %v", err)
	}
	if err := f.engine.Logout(ctx, "alice"); err != nil {
		t.Fatalf("second logout should be a no-op, got %v", err)
	}
}

func TestExpiredAccessToken(t *testing.T) {
	f := newEngineFixture(t, engineTestConfig())
	ctx := context.Background()

	res, err := f.engine.Login(ctx, "alice", alicePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	f.clock.Advance(31 * time.Minute)

	if _, err := f.engine.Validate(ctx, res.AccessToken); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, err := f.engine.Refresh(ctx, res.RefreshToken); err != nil {
		t.Fatalf("refresh token should outlive access token: %v", err)
	}
}

func TestValidateRejectsForgedToken(t *testing.T) {
	f := newEngineFixture(t, engineTestConfig())

	if _, err := f.engine.Validate(context.Background(), "not.a.token"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestValidateRedisDown(t *testing.T) {
	f := newEngineFixture(t, engineTestConfig())
	ctx := context.Background()

	res, err := f.engine.Login(ctx, "alice", alicePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	f.mr.SetError("LOADING server is loading")

	if _, err := f.engine.Validate(ctx, res.AccessToken); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestLoginRateLimit(t *testing.T) {
	f := newEngineFixture(t, engineTestConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.engine.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	before := f.users.calls()
	if _, err := f.engine.Login(ctx, "alice", alicePassword); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
	if f.users.calls() != before {
		t.Fatal("rate limited login must not reach the user provider")
	}

	f.mr.FastForward(time.Minute + time.Second)

	if _, err := f.engine.Login(ctx, "alice", alicePassword); err != nil {
		t.Fatalf("expected login after window, got %v", err)
	}
}

func TestSuccessfulLoginResetsUserCounter(t *testing.T) {
	f := newEngineFixture(t, engineTestConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = f.engine.Login(ctx, "alice", "wrong")
	}
	if _, err := f.engine.Login(ctx, "alice", alicePassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	if f.mr.Exists("rl:login:user:alice") {
		t.Fatal("expected user counter cleared after success")
	}
}

func TestLoginUpgradesWeakDigest(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Password.BcryptCost = bcrypt.MinCost + 1
	f := newEngineFixture(t, cfg)

	if _, err := f.engine.Login(context.Background(), "alice", alicePassword); err != nil {
		t.Fatalf("login: %v", err)
	}

	digest, ok := f.users.updated["u1"]
	if !ok {
		t.Fatal("expected digest upgrade")
	}
	if cost, err := bcrypt.Cost([]byte(digest)); err != nil || cost != bcrypt.MinCost+1 {
		t.Fatalf("expected upgraded cost, got %d (%v)", cost, err)
	}
	if got := f.engine.MetricsSnapshot().Counters[MetricPasswordRehashed]; got != 1 {
		t.Fatalf("expected rehash metric 1, got %d", got)
	}
}

func TestLoginAcceptsArgon2DigestAndMigrates(t *testing.T) {
	cfg := engineTestConfig()
	f := newEngineFixture(t, cfg)

	a, err := password.NewArgon2(password.Argon2Config{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("argon2: %v", err)
	}
	digest, err := a.Hash(alicePassword)
	if err != nil {
		t.Fatalf("argon2 hash: %v", err)
	}
	f.users.mu.Lock()
	u := f.users.users["alice"]
	u.PasswordHash = digest
	f.users.users["alice"] = u
	f.users.mu.Unlock()

	if _, err := f.engine.Login(context.Background(), "alice", alicePassword); err != nil {
		t.Fatalf("login with argon2 digest: %v", err)
	}
	if _, err := bcrypt.Cost([]byte(f.users.updated["u1"])); err != nil {
		t.Fatalf("expected migration to bcrypt, got %q", f.users.updated["u1"])
	}
}

func TestLoginEmitsAuditEvents(t *testing.T) {
	f := newEngineFixture(t, engineTestConfig())
	ctx := WithClientIP(context.Background(), "192.0.2.7")

	if _, err := f.engine.Login(ctx, "alice", "wrong"); err == nil {
		t.Fatal("expected failure")
	}
	if _, err := f.engine.Login(ctx, "alice", alicePassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	f.engine.Close()

	var got []AuditEvent
	for len(got) < 2 {
		select {
		case ev := <-f.sink.Events():
			got = append(got, ev)
		case <-time.After(time.Second):
			t.Fatalf("expected 2 audit events, got %d", len(got))
		}
	}

	if got[0].EventType != audit.EventLoginFailure || got[0].Success {
		t.Fatalf("unexpected first event: %+v", got[0])
	}
	if got[1].EventType != audit.EventLoginSuccess || !got[1].Success || got[1].UserID != "u1" {
		t.Fatalf("unexpected second event: %+v", got[1])
	}
	if got[1].IP != "192.0.2.7" {
		t.Fatalf("expected IP on audit event, got %q", got[1].IP)
	}
}

func TestEngineMetricsTrackFlows(t *testing.T) {
	f := newEngineFixture(t, engineTestConfig())
	ctx := context.Background()

	res, err := f.engine.Login(ctx, "alice", alicePassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	_, _ = f.engine.Login(ctx, "alice", "wrong")
	if _, err := f.engine.Validate(ctx, res.AccessToken); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := f.engine.Logout(ctx, "alice"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	_, _ = f.engine.Validate(ctx, res.AccessToken)

	snap := f.engine.MetricsSnapshot()
	checks := map[MetricID]uint64{
		MetricLoginSuccess:    1,
		MetricLoginFailure:    1,
		MetricTokenIssued:     2,
		MetricSessionStored:   2,
		MetricLogout:          1,
		MetricSessionRevoked:  2,
		MetricSessionInactive: 1,
	}
	for id, want := range checks {
		if got := snap.Counters[id]; got != want {
			t.Fatalf("metric %d: expected %d, got %d", id, want, got)
		}
	}

	var observed uint64
	for _, n := range snap.Histograms[MetricValidateLatency] {
		observed += n
	}
	if observed != 2 {
		t.Fatalf("expected 2 validate observations, got %d", observed)
	}
}

func TestZeroEngineReturnsNotInitialized(t *testing.T) {
	var e *Engine
	if _, err := e.Login(context.Background(), "a", "b"); !errors.Is(err, ErrEngineNotInitialized) {
		t.Fatalf("expected ErrEngineNotInitialized, got %v", err)
	}
	if _, err := e.Validate(context.Background(), "t"); !errors.Is(err, ErrEngineNotInitialized) {
		t.Fatalf("expected ErrEngineNotInitialized, got %v", err)
	}
	e.Close()
}
