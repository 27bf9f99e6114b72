package commitments

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/antigravity-dev/agencyos/internal/config"
	"github.com/antigravity-dev/agencyos/internal/model"
	"github.com/antigravity-dev/agencyos/internal/store"
)

func TestNewWithoutAPIKeyIsDisabled(t *testing.T) {
	e := New(config.Commitments{}, slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelError + 1})))
	if e.Enabled() {
		t.Fatal("expected an extractor with no API key to be disabled")
	}
}

func TestExtractForCommunicationNoOpWhenDisabled(t *testing.T) {
	e := New(config.Commitments{}, slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelError + 1})))

	st, err := store.Open(filepath.Join(t.TempDir(), "commitments_test.db"), time.Second)
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer st.Close()

	n, err := e.ExtractForCommunication(context.Background(), st, model.Communication{ID: "comm_1", BodyText: "a body long enough to pass the length check, twice over"})
	if err != nil {
		t.Fatalf("expected no error from a disabled extractor, got %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 commitments extracted while disabled, got %d", n)
	}
}

func TestExtractForCommunicationSkipsShortBody(t *testing.T) {
	e := New(config.Commitments{AnthropicAPIKey: "unused-in-this-test"}, slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelError + 1})))
	if !e.Enabled() {
		t.Fatal("expected an extractor with an API key to be enabled")
	}

	st, err := store.Open(filepath.Join(t.TempDir(), "commitments_test2.db"), time.Second)
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer st.Close()

	n, err := e.ExtractForCommunication(context.Background(), st, model.Communication{ID: "comm_1", BodyText: "short"})
	if err != nil {
		t.Fatalf("expected the short-body path to skip before any network call, got error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 commitments extracted for a short body, got %d", n)
	}
}
