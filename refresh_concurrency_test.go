package goTodo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrEthical07/goTodo/session"
)

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	f := newEngineFixture(t, engineTestConfig())

	res, err := f.engine.Login(context.Background(), "alice", alicePassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make(chan *LoginResult, n)
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			next, err := f.engine.Refresh(context.Background(), res.RefreshToken)
			if err != nil {
				errs <- err
				return
			}
			results <- next
		}()
	}
	close(start)
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrSessionRevoked) {
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}

	var winners []*LoginResult
	for r := range results {
		winners = append(winners, r)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", len(winners))
	}

	rec, err := f.engine.sessions.Get(context.Background(), "alice", session.KindRefresh)
	if err != nil {
		t.Fatalf("get refresh record: %v", err)
	}
	claims, err := f.engine.tokens.Verify(winners[0].RefreshToken)
	if err != nil {
		t.Fatalf("verify winner: %v", err)
	}
	if rec.TokenID != claims.TokenID {
		t.Fatalf("stored refresh jti %q does not match the winning token %q", rec.TokenID, claims.TokenID)
	}
	if _, err := f.engine.Refresh(context.Background(), winners[0].RefreshToken); err != nil {
		t.Fatalf("winning refresh token should still rotate: %v", err)
	}
}
