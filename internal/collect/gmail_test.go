package collect

import (
	"context"
	"testing"
	"time"

	"github.com/antigravity-dev/agencyos/internal/config"
)

type fakeEmailFetcher struct {
	artifacts []EmailArtifact
	err       error
}

func (f fakeEmailFetcher) FetchThreads(ctx context.Context, since time.Time, pageSize int) ([]EmailArtifact, error) {
	return f.artifacts, f.err
}

func TestEmailCollectorUpsertsAndSkipsEmptySourceID(t *testing.T) {
	st := openCollectTestStore(t)
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	fetcher := fakeEmailFetcher{artifacts: []EmailArtifact{
		{SourceID: "th1", Sender: "a@b.com", Subject: "Hello", Snippet: "hi there", ReceivedAt: now},
		{SourceID: "", Subject: "skipped"},
	}}
	c := NewEmailCollector(fetcher)

	synced, err := c.Run(context.Background(), st, config.Collector{PageSize: 50}, now)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if synced != 1 {
		t.Fatalf("expected 1 synced thread, got %d", synced)
	}

	comms, err := st.ListCommunications(context.Background())
	if err != nil {
		t.Fatalf("ListCommunications failed: %v", err)
	}
	if len(comms) != 1 {
		t.Fatalf("expected 1 stored communication, got %d", len(comms))
	}
	if comms[0].ContentHash != contentHash("Hello", "hi there") {
		t.Errorf("expected content hash to match sha256(subject+snippet)")
	}
}

func TestEmailCollectorDefaultsPageSizeWhenOutOfRange(t *testing.T) {
	st := openCollectTestStore(t)
	fetcher := fakeEmailFetcher{}
	c := NewEmailCollector(fetcher)

	if _, err := c.Run(context.Background(), st, config.Collector{PageSize: 0}, time.Now()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := c.Run(context.Background(), st, config.Collector{PageSize: emailPageCap + 1000}, time.Now()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func TestEmailCollectorPropagatesFetchError(t *testing.T) {
	st := openCollectTestStore(t)
	fetcher := fakeEmailFetcher{err: context.DeadlineExceeded}
	c := NewEmailCollector(fetcher)

	if _, err := c.Run(context.Background(), st, config.Collector{}, time.Now()); err == nil {
		t.Fatal("expected fetch error to propagate")
	}
}
