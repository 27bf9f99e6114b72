// Package resolution implements the polymorphic resolution queue (§4.5):
// a deterministic scan over the post-gate store state that upserts
// per-entity issues, keyed uniquely on (entity_type, entity_id, issue_type).
package resolution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/antigravity-dev/agencyos/internal/gates"
	"github.com/antigravity-dev/agencyos/internal/model"
	"github.com/antigravity-dev/agencyos/internal/store"
)

// Engine scans the store and the current gate report for per-entity issues.
type Engine struct {
	store *store.Store
}

func New(st *store.Store) *Engine {
	return &Engine{store: st}
}

// staleTaskAge marks a pending task stale if untouched this long.
const staleTaskAge = 14 * 24 * time.Hour

// Run detects every issue type named in §4.5 and upserts it into the
// resolution queue. It is deterministic: the same store state and "now"
// produce the same issue set every time (§8 property 9), modulo the
// wall-clock "now" input used for overdue/stale detection.
func (e *Engine) Run(ctx context.Context, report gates.Report, now time.Time) (int, error) {
	var count int

	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolution: list tasks: %w", err)
	}
	for _, t := range tasks {
		n, err := e.scanTask(ctx, t, now)
		if err != nil {
			return count, err
		}
		count += n
	}

	comms, err := e.store.ListCommunications(ctx)
	if err != nil {
		return count, fmt.Errorf("resolution: list communications: %w", err)
	}
	for _, c := range comms {
		if c.LinkStatus == model.LinkUnlinked {
			if err := e.upsert(ctx, model.EntityCommunication, c.ID, "unlinked_comm", 3, map[string]any{
				"from_domain": c.FromDomain,
				"subject":     c.Subject,
			}); err != nil {
				return count, err
			}
			count++
		}
	}

	invoices, err := e.store.ListUnpaidInvoices(ctx)
	if err != nil {
		return count, fmt.Errorf("resolution: list invoices: %w", err)
	}
	for _, inv := range invoices {
		if inv.ClientID == nil {
			if err := e.upsert(ctx, model.EntityInvoice, inv.ID, "invoice_missing_client", 2, map[string]any{
				"amount": inv.Amount.String(),
			}); err != nil {
				return count, err
			}
			count++
		}
		if inv.DueDate == nil {
			if err := e.upsert(ctx, model.EntityInvoice, inv.ID, "invoice_missing_due_date", 2, map[string]any{
				"amount": inv.Amount.String(),
			}); err != nil {
				return count, err
			}
			count++
		}
	}

	return count, nil
}

func (e *Engine) scanTask(ctx context.Context, t model.Task, now time.Time) (int, error) {
	var count int

	if t.ProjectLinkStatus == model.LinkUnlinked {
		if err := e.upsert(ctx, model.EntityTask, t.ID, "missing_client", 3, map[string]any{"title": t.Title}); err != nil {
			return count, err
		}
		count++
	}
	if t.ProjectLinkStatus == model.LinkPartial {
		if err := e.upsert(ctx, model.EntityTask, t.ID, "missing_project", 3, map[string]any{"title": t.Title}); err != nil {
			return count, err
		}
		count++
	}

	if t.Status != model.TaskDone && t.DueDate != nil && t.DueDate.Before(now) {
		if err := e.upsert(ctx, model.EntityTask, t.ID, "overdue", 1, map[string]any{
			"due_date": t.DueDate.Format(time.RFC3339),
		}); err != nil {
			return count, err
		}
		count++
	}

	if t.Status == model.TaskBlocked {
		if err := e.upsert(ctx, model.EntityTask, t.ID, "blocked", 2, map[string]any{"title": t.Title}); err != nil {
			return count, err
		}
		count++
	}

	if t.Status == model.TaskPending && now.Sub(t.UpdatedAt) > staleTaskAge {
		if err := e.upsert(ctx, model.EntityTask, t.ID, "stale", 4, map[string]any{
			"updated_at": t.UpdatedAt.Format(time.RFC3339),
		}); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

func (e *Engine) upsert(ctx context.Context, entityType model.EntityType, entityID, issueType string, priority int, context_ map[string]any) error {
	payload, err := json.Marshal(context_)
	if err != nil {
		return fmt.Errorf("resolution: marshal context for %s/%s: %w", entityID, issueType, err)
	}
	return e.store.UpsertResolutionItem(ctx, entityType, entityID, issueType, priority, string(payload))
}
