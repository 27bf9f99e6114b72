package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/antigravity-dev/agencyos/internal/config"
	"github.com/antigravity-dev/agencyos/internal/model"
	"github.com/antigravity-dev/agencyos/internal/snapshot"
	"github.com/antigravity-dev/agencyos/internal/store"
)

func testServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api_test.db"), time.Second)
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	writer := snapshot.NewWriter(t.TempDir(), 5)
	logger := slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelError + 1}))

	srv, err := NewServer(config.API{Bind: ":0"}, st, writer, logger)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv, st
}

func newRouter(srv *Server) func(method, path string, body []byte) *httptest.ResponseRecorder {
	return func(method, path string, body []byte) *httptest.ResponseRecorder {
		r := httptest.NewRequest(method, path, bytes.NewReader(body))
		w := httptest.NewRecorder()
		switch {
		case path == "/api/health":
			srv.handleHealth(w, r)
		case path == "/api/v2/inbox" && method == "GET":
			srv.handleInboxList(w, r)
		case path == "/api/v2/clients" && method == "GET":
			srv.handleClientsList(w, r)
		}
		return w
	}
}

func TestHandleHealthBeforeAnyCycle(t *testing.T) {
	srv, _ := testServer(t)
	call := newRouter(srv)

	w := call("GET", "/api/health", nil)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp["status"] != "starting" {
		t.Fatalf("expected status=starting with no cycle logs yet, got %v", resp["status"])
	}
}

func TestHandleInboxListReturnsUnresolvedItems(t *testing.T) {
	srv, st := testServer(t)
	ctx := context.Background()
	if err := st.UpsertResolutionItem(ctx, model.EntityTask, "task_1", "missing_brand_link", 2, `{}`); err != nil {
		t.Fatalf("UpsertResolutionItem failed: %v", err)
	}

	call := newRouter(srv)
	w := call("GET", "/api/v2/inbox", nil)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var items []model.ResolutionQueueItem
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 inbox item, got %d", len(items))
	}
}

func TestHandleClientsListEmptyBeforeFirstSnapshot(t *testing.T) {
	srv, _ := testServer(t)
	call := newRouter(srv)

	w := call("GET", "/api/v2/clients", nil)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var rollups []snapshot.ClientRollup
	if err := json.Unmarshal(w.Body.Bytes(), &rollups); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(rollups) != 0 {
		t.Fatalf("expected an empty client list before any snapshot is written, got %d", len(rollups))
	}
}

func TestApplyResolutionActionAccept(t *testing.T) {
	srv, st := testServer(t)
	ctx := context.Background()
	if err := st.UpsertResolutionItem(ctx, model.EntityTask, "task_1", "missing_brand_link", 2, `{}`); err != nil {
		t.Fatalf("UpsertResolutionItem failed: %v", err)
	}
	items, err := st.ListUnresolvedItems(ctx)
	if err != nil {
		t.Fatalf("ListUnresolvedItems failed: %v", err)
	}

	if err := srv.applyResolutionAction(ctx, items[0].ID, inboxActionRequest{Action: "accept"}); err != nil {
		t.Fatalf("applyResolutionAction(accept) failed: %v", err)
	}

	remaining, err := st.ListUnresolvedItems(ctx)
	if err != nil {
		t.Fatalf("ListUnresolvedItems after accept failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected the item to be resolved, got %d remaining", len(remaining))
	}
}

func TestApplyPendingActionDecisionUnsupportedSnooze(t *testing.T) {
	srv, _ := testServer(t)
	if err := srv.applyPendingActionDecision(context.Background(), 1, "snooze"); err == nil {
		t.Fatal("expected an error: pending_action does not support snooze")
	}
}
