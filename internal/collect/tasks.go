package collect

import (
	"context"
	"time"

	"github.com/antigravity-dev/agencyos/internal/apperrors"
	"github.com/antigravity-dev/agencyos/internal/config"
	"github.com/antigravity-dev/agencyos/internal/model"
	"github.com/antigravity-dev/agencyos/internal/store"
)

const taskSourcePrefix = "gtask_"

// TaskCollector syncs the Google-Tasks analogue (§4.2).
type TaskCollector struct {
	fetcher TaskFetcher
}

func NewTaskCollector(fetcher TaskFetcher) *TaskCollector {
	return &TaskCollector{fetcher: fetcher}
}

func (c *TaskCollector) Name() string { return "tasks" }

func (c *TaskCollector) Run(ctx context.Context, st *store.Store, cfg config.Collector, now time.Time) (int, error) {
	artifacts, err := c.fetcher.FetchTasks(ctx, cfg.PageSize)
	if err != nil {
		return 0, err
	}

	var synced int
	for _, a := range artifacts {
		if a.SourceID == "" {
			continue
		}
		t := &model.Task{
			ID:          taskSourcePrefix + a.SourceID,
			Source:      model.TaskSourceGoogleTasks,
			SourceID:    a.SourceID,
			Title:       a.Title,
			Status:      taskStatus(a.Completed),
			Priority:    taskPriority(a, now),
			DueDate:     a.DueDate,
			Notes:       a.Notes,
			AssigneeRaw: a.Assignee,
		}
		if err := st.UpsertTaskFromCollector(ctx, t); err != nil {
			return synced, apperrors.Wrapf(err, "upsert task %s", t.ID)
		}
		synced++
	}
	return synced, nil
}

func taskStatus(completed bool) model.TaskStatus {
	if completed {
		return model.TaskDone
	}
	return model.TaskPending
}

// taskPriority implements the deterministic 0-100 priority formula from
// §4.2: base 50, an overdue or due-soon boost, a small notes bonus, clamped.
func taskPriority(a TaskArtifact, now time.Time) int {
	priority := 50
	switch {
	case a.DueDate == nil:
		// no boost
	case a.DueDate.Before(now):
		overdueDays := int(now.Sub(*a.DueDate).Hours() / 24)
		priority += min(40, 40+overdueDays*2)
	default:
		days := int(a.DueDate.Sub(now).Hours() / 24)
		switch {
		case days <= 0:
			priority += 35
		case days == 1:
			priority += 25
		case days <= 3:
			priority += 15
		case days <= 7:
			priority += 5
		}
	}
	if a.Notes != "" {
		priority += 5
	}
	return clampInt(priority, 0, 100)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
