package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriterReadPreviousMissingIsNilNotError(t *testing.T) {
	w := NewWriter(t.TempDir(), 5)
	doc, err := w.ReadPrevious()
	if err != nil {
		t.Fatalf("expected no error for a missing snapshot, got %v", err)
	}
	if doc != nil {
		t.Fatalf("expected a nil document on first read, got %+v", doc)
	}
}

func TestWriterRoundTripAndRotation(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 5)

	first := &Document{GeneratedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), CycleNumber: 1}
	if err := w.Write(first); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, previousFileName)); !os.IsNotExist(err) {
		t.Fatalf("expected no previous_snapshot.json before a second write")
	}

	second := &Document{GeneratedAt: time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC), CycleNumber: 2}
	if err := w.Write(second); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, previousFileName)); err != nil {
		t.Fatalf("expected previous_snapshot.json to exist after a second write: %v", err)
	}

	got, err := w.ReadPrevious()
	if err != nil {
		t.Fatalf("ReadPrevious failed: %v", err)
	}
	if got.CycleNumber != 2 {
		t.Fatalf("expected the current snapshot to report cycle 2, got %d", got.CycleNumber)
	}
}

func TestWriterHistoryRetention(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 2)

	for i := int64(1); i <= 4; i++ {
		doc := &Document{GeneratedAt: time.Date(2026, 1, 1, 0, 0, int(i), 0, time.UTC), CycleNumber: i}
		if err := w.Write(doc); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(dir, historyDirName))
	if err != nil {
		t.Fatalf("reading history dir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected history pruned to 2 entries, got %d", len(entries))
	}
}
