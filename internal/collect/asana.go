package collect

import (
	"context"
	"time"

	"github.com/antigravity-dev/agencyos/internal/apperrors"
	"github.com/antigravity-dev/agencyos/internal/config"
	"github.com/antigravity-dev/agencyos/internal/model"
	"github.com/antigravity-dev/agencyos/internal/store"
)

const asanaSourcePrefix = "asana_"

// AsanaCollector syncs the Asana analogue: projects, users and tasks, using
// gid maps to resolve tasks to internal project/team_member ids (§4.2).
type AsanaCollector struct {
	fetcher AsanaFetcher
}

func NewAsanaCollector(fetcher AsanaFetcher) *AsanaCollector {
	return &AsanaCollector{fetcher: fetcher}
}

func (c *AsanaCollector) Name() string { return "asana" }

func (c *AsanaCollector) Run(ctx context.Context, st *store.Store, cfg config.Collector, now time.Time) (int, error) {
	projects, err := c.fetcher.FetchProjects(ctx)
	if err != nil {
		return 0, err
	}
	users, err := c.fetcher.FetchUsers(ctx)
	if err != nil {
		return 0, err
	}
	tasks, err := c.fetcher.FetchTasks(ctx, cfg.PageSize)
	if err != nil {
		return 0, err
	}

	// projects-map / users-map: external gid -> internal id.
	projectMap := make(map[string]string, len(projects))
	for _, p := range projects {
		internalID := asanaSourcePrefix + "project_" + p.GID
		proj := &model.Project{
			ID:   internalID,
			Name: p.Name,
		}
		if err := st.UpsertProject(ctx, proj); err != nil {
			return 0, apperrors.Wrapf(err, "upsert asana project %s", internalID)
		}
		projectMap[p.GID] = internalID
	}

	userMap := make(map[string]string, len(users))
	for _, u := range users {
		internalID := asanaSourcePrefix + "user_" + u.GID
		member := &model.TeamMember{ID: internalID, Name: u.Name}
		if err := st.UpsertTeamMember(ctx, member); err != nil {
			return 0, apperrors.Wrapf(err, "upsert asana user %s", internalID)
		}
		userMap[u.GID] = internalID
	}

	var synced int
	for _, a := range tasks {
		if a.GID == "" {
			continue
		}
		t := &model.Task{
			ID:       asanaSourcePrefix + a.GID,
			Source:   model.TaskSourceAsana,
			SourceID: a.GID,
			Title:    a.Title,
			Status:   taskStatus(a.Completed),
			Priority: taskPriority(TaskArtifact{DueDate: a.DueDate, Notes: a.Notes}, now),
			DueDate:  a.DueDate,
			Notes:    a.Notes,
		}
		if internalProjectID, ok := projectMap[a.ProjectGID]; ok {
			t.ProjectID = &internalProjectID
		}
		if internalUserID, ok := userMap[a.AssigneeGID]; ok {
			t.AssigneeTeamMemberID = &internalUserID
		} else {
			t.AssigneeRaw = a.AssigneeGID
		}
		if err := st.UpsertTaskFromCollector(ctx, t); err != nil {
			return synced, apperrors.Wrapf(err, "upsert asana task %s", t.ID)
		}
		synced++
	}
	return synced, nil
}
