package collect

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/antigravity-dev/agencyos/internal/config"
)

type fakeCalendarFetcher struct {
	artifacts []CalendarArtifact
	err       error
}

func (f fakeCalendarFetcher) FetchEvents(ctx context.Context, from, to time.Time, pageSize int) ([]CalendarArtifact, error) {
	return f.artifacts, f.err
}

func TestCalendarCollectorUpsertsAndSkipsEmptySourceID(t *testing.T) {
	st := openCollectTestStore(t)
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	fetcher := fakeCalendarFetcher{artifacts: []CalendarArtifact{
		{SourceID: "ev1", Title: "Client pitch", Start: now, End: now.Add(time.Hour)},
		{SourceID: "", Title: "should be skipped"},
	}}
	c := NewCalendarCollector(fetcher)

	synced, err := c.Run(context.Background(), st, config.Collector{PageSize: 50}, now)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if synced != 1 {
		t.Fatalf("expected 1 synced event, got %d", synced)
	}
}

func TestCalendarCollectorPropagatesFetchError(t *testing.T) {
	st := openCollectTestStore(t)
	fetcher := fakeCalendarFetcher{err: context.DeadlineExceeded}
	c := NewCalendarCollector(fetcher)

	if _, err := c.Run(context.Background(), st, config.Collector{}, time.Now()); err == nil {
		t.Fatal("expected fetch error to propagate")
	}
}

func TestBuildPrepNotesEscalatesForInterviewAndAddsTravel(t *testing.T) {
	notes, err := buildPrepNotes(CalendarArtifact{Title: "Candidate Interview", Location: "123 Main St"})
	if err != nil {
		t.Fatalf("buildPrepNotes failed: %v", err)
	}
	var doc prepNotesDoc
	if err := json.Unmarshal([]byte(notes), &doc); err != nil {
		t.Fatalf("invalid prep notes JSON: %v", err)
	}
	if doc.TimeMinutes != 45 {
		t.Errorf("expected 30 (interview) + 15 (travel) = 45 minutes, got %d", doc.TimeMinutes)
	}
	if len(doc.Items) != 2 {
		t.Errorf("expected 2 prep items, got %+v", doc.Items)
	}
}

func TestBuildPrepNotesVirtualLocationSkipsTravel(t *testing.T) {
	notes, err := buildPrepNotes(CalendarArtifact{Title: "Weekly sync call", Location: "https://zoom.us/j/123"})
	if err != nil {
		t.Fatalf("buildPrepNotes failed: %v", err)
	}
	var doc prepNotesDoc
	if err := json.Unmarshal([]byte(notes), &doc); err != nil {
		t.Fatalf("invalid prep notes JSON: %v", err)
	}
	if doc.TimeMinutes != 15 {
		t.Errorf("expected baseline 15 minutes for a virtual meeting, got %d", doc.TimeMinutes)
	}
	if len(doc.Items) != 1 || doc.Items[0] != "Join link ready" {
		t.Errorf("expected only the call join-link item, got %+v", doc.Items)
	}
}

func TestBuildPrepNotesOneOnOneAddsNotesCheck(t *testing.T) {
	notes, err := buildPrepNotes(CalendarArtifact{Title: "Jane 1:1"})
	if err != nil {
		t.Fatalf("buildPrepNotes failed: %v", err)
	}
	var doc prepNotesDoc
	if err := json.Unmarshal([]byte(notes), &doc); err != nil {
		t.Fatalf("invalid prep notes JSON: %v", err)
	}
	if len(doc.Items) != 1 || doc.Items[0] != "Check notes from last meeting" {
		t.Errorf("expected the 1:1 notes-check item, got %+v", doc.Items)
	}
}
