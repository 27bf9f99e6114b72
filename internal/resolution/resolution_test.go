package resolution

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/antigravity-dev/agencyos/internal/gates"
	"github.com/antigravity-dev/agencyos/internal/model"
	"github.com/antigravity-dev/agencyos/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "resolution_test.db"), time.Second)
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func strp(s string) *string { return &s }

func TestRunFlagsMissingClientTask(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	task := &model.Task{ID: "task_1", Source: model.TaskSourceGoogleTasks, SourceID: "task_1", Title: "t", Status: model.TaskPending}
	if err := st.UpsertTaskFromCollector(ctx, task); err != nil {
		t.Fatalf("UpsertTaskFromCollector failed: %v", err)
	}
	// project_link_status takes the schema default "unlinked" on insert; the
	// test still sets it explicitly, as the normalizer would for a task with
	// no project_id, since the resolution engine scans the stored values.
	if err := st.SetTaskDerivedLink(ctx, "task_1", nil, nil, model.LinkUnlinked, model.LinkUnlinked); err != nil {
		t.Fatalf("SetTaskDerivedLink failed: %v", err)
	}

	e := New(st)
	n, err := e.Run(ctx, gates.Report{}, time.Now())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 issue, got %d", n)
	}

	items, err := st.ListUnresolvedItems(ctx)
	if err != nil {
		t.Fatalf("ListUnresolvedItems failed: %v", err)
	}
	if len(items) != 1 || items[0].IssueType != "missing_client" {
		t.Fatalf("expected a missing_client issue, got %+v", items)
	}
}

func TestRunFlagsBrokenChainAsMissingProject(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	// spec.md scenario 3 ("broken chain"): a task whose project resolves but
	// whose brand does not produces project_link_status="partial", which the
	// resolution queue must surface as a missing_project item, not
	// missing_client.
	proj := strp("proj_1")
	task := &model.Task{ID: "task_1", Source: model.TaskSourceGoogleTasks, SourceID: "task_1", Title: "t", Status: model.TaskPending, ProjectID: proj}
	if err := st.UpsertTaskFromCollector(ctx, task); err != nil {
		t.Fatalf("UpsertTaskFromCollector failed: %v", err)
	}
	if err := st.SetTaskDerivedLink(ctx, "task_1", nil, nil, model.LinkPartial, model.LinkUnlinked); err != nil {
		t.Fatalf("SetTaskDerivedLink failed: %v", err)
	}

	e := New(st)
	n, err := e.Run(ctx, gates.Report{}, time.Now())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 issue, got %d", n)
	}

	items, err := st.ListUnresolvedItems(ctx)
	if err != nil {
		t.Fatalf("ListUnresolvedItems failed: %v", err)
	}
	if len(items) != 1 || items[0].IssueType != "missing_project" {
		t.Fatalf("expected a missing_project issue for a broken-chain task, got %+v", items)
	}
}

func TestRunFlagsOverdueTask(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	due := time.Now().Add(-48 * time.Hour)
	proj := strp("proj_1")
	task := &model.Task{ID: "task_1", Source: model.TaskSourceGoogleTasks, SourceID: "task_1", Title: "t", Status: model.TaskPending, DueDate: &due, ProjectID: proj}
	if err := st.UpsertTaskFromCollector(ctx, task); err != nil {
		t.Fatalf("UpsertTaskFromCollector failed: %v", err)
	}
	if err := st.SetTaskDerivedLink(ctx, "task_1", nil, nil, model.LinkLinked, model.LinkNA); err != nil {
		t.Fatalf("SetTaskDerivedLink failed: %v", err)
	}

	e := New(st)
	n, err := e.Run(ctx, gates.Report{}, time.Now())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 overdue issue, got %d", n)
	}

	items, err := st.ListUnresolvedItems(ctx)
	if err != nil {
		t.Fatalf("ListUnresolvedItems failed: %v", err)
	}
	var sawOverdue bool
	for _, it := range items {
		if it.IssueType == "overdue" {
			sawOverdue = true
		}
	}
	if !sawOverdue {
		t.Fatalf("expected an overdue issue among %+v", items)
	}
}

func TestRunDoesNotFlagDoneOverdueTask(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	due := time.Now().Add(-48 * time.Hour)
	proj := strp("proj_1")
	task := &model.Task{ID: "task_1", Source: model.TaskSourceGoogleTasks, SourceID: "task_1", Title: "t", Status: model.TaskDone, DueDate: &due, ProjectID: proj}
	if err := st.UpsertTaskFromCollector(ctx, task); err != nil {
		t.Fatalf("UpsertTaskFromCollector failed: %v", err)
	}
	if err := st.SetTaskDerivedLink(ctx, "task_1", nil, nil, model.LinkLinked, model.LinkNA); err != nil {
		t.Fatalf("SetTaskDerivedLink failed: %v", err)
	}

	e := New(st)
	n, err := e.Run(ctx, gates.Report{}, time.Now())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no issues for a done task, got %d", n)
	}
}

func TestRunFlagsStalePendingTask(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	proj := strp("proj_1")
	task := &model.Task{ID: "task_1", Source: model.TaskSourceGoogleTasks, SourceID: "task_1", Title: "t", Status: model.TaskPending, ProjectID: proj}
	if err := st.UpsertTaskFromCollector(ctx, task); err != nil {
		t.Fatalf("UpsertTaskFromCollector failed: %v", err)
	}
	if err := st.SetTaskDerivedLink(ctx, "task_1", nil, nil, model.LinkLinked, model.LinkNA); err != nil {
		t.Fatalf("SetTaskDerivedLink failed: %v", err)
	}

	// updated_at is set to the real insert time; simulate staleness by
	// moving "now" forward well past the 14-day threshold instead.
	future := time.Now().Add(20 * 24 * time.Hour)

	e := New(st)
	n, err := e.Run(ctx, gates.Report{}, future)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 stale issue, got %d", n)
	}
	items, err := st.ListUnresolvedItems(ctx)
	if err != nil {
		t.Fatalf("ListUnresolvedItems failed: %v", err)
	}
	if len(items) != 1 || items[0].IssueType != "stale" {
		t.Fatalf("expected a stale issue, got %+v", items)
	}
}

func TestRunFlagsUnlinkedCommunicationAndInvoiceGaps(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	comm := &model.Communication{ID: "comm_1", Source: "gmail", SourceID: "comm_1", Sender: "a@b.com", Subject: "s", ReceivedAt: time.Now()}
	if err := st.UpsertCommunicationFromCollector(ctx, comm, "[]"); err != nil {
		t.Fatalf("UpsertCommunicationFromCollector failed: %v", err)
	}
	if err := st.SetCommunicationDerivedLink(ctx, "comm_1", "b.com", nil, model.LinkUnlinked); err != nil {
		t.Fatalf("SetCommunicationDerivedLink failed: %v", err)
	}

	inv := &model.Invoice{ID: "inv_1", SourceID: "inv_1", Amount: decimal.NewFromInt(100), Currency: "USD", IssueDate: time.Now(), Status: model.InvoiceSent}
	if err := st.UpsertInvoiceFromCollector(ctx, inv); err != nil {
		t.Fatalf("UpsertInvoiceFromCollector failed: %v", err)
	}

	e := New(st)
	n, err := e.Run(ctx, gates.Report{}, time.Now())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// unlinked_comm + invoice_missing_client + invoice_missing_due_date.
	if n != 3 {
		t.Fatalf("expected 3 issues, got %d", n)
	}
}

func TestRunIsIdempotentAcrossRepeatedCalls(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	task := &model.Task{ID: "task_1", Source: model.TaskSourceGoogleTasks, SourceID: "task_1", Title: "t", Status: model.TaskPending}
	if err := st.UpsertTaskFromCollector(ctx, task); err != nil {
		t.Fatalf("UpsertTaskFromCollector failed: %v", err)
	}
	if err := st.SetTaskDerivedLink(ctx, "task_1", nil, nil, model.LinkUnlinked, model.LinkUnlinked); err != nil {
		t.Fatalf("SetTaskDerivedLink failed: %v", err)
	}

	e := New(st)
	now := time.Now()
	if _, err := e.Run(ctx, gates.Report{}, now); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if _, err := e.Run(ctx, gates.Report{}, now); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	items, err := st.ListUnresolvedItems(ctx)
	if err != nil {
		t.Fatalf("ListUnresolvedItems failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected the repeated run to upsert the same single issue, got %d items", len(items))
	}
}
