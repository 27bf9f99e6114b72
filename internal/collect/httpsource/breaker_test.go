package httpsource

import (
	"context"
	"testing"

	"github.com/antigravity-dev/agencyos/internal/apperrors"
)

func TestGuardDoPassesThroughSuccess(t *testing.T) {
	g := NewGuard("test-success")
	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one call on success, got %d", calls)
	}
}

func TestGuardDoDoesNotRetryAuthErrors(t *testing.T) {
	g := NewGuard("test-auth")
	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return apperrors.Wrap(apperrors.ErrAuthSource, "missing api key")
	})
	if err == nil {
		t.Fatal("expected the auth error to propagate")
	}
	if calls != 1 {
		t.Fatalf("expected auth errors not to be retried, got %d calls", calls)
	}
}

func TestGuardDoRetriesTransientErrorsUntilSuccess(t *testing.T) {
	g := NewGuard("test-transient")
	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return apperrors.Wrap(apperrors.ErrTransientSource, "upstream 503")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success after a retry, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 calls (1 failure + 1 success), got %d", calls)
	}
}
