// Package moves implements the rule-driven proposal generator of §4.7: six
// pure predicates over the post-snapshot store state, each yielding zero or
// more pending_action proposals with a stable idempotency key.
package moves

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/antigravity-dev/agencyos/internal/config"
	"github.com/antigravity-dev/agencyos/internal/model"
	"github.com/antigravity-dev/agencyos/internal/store"
)

// Engine generates move proposals and writes them to pending_actions.
type Engine struct {
	store *store.Store
	cfg   config.Moves
}

func New(st *store.Store, cfg config.Moves) *Engine {
	return &Engine{store: st, cfg: cfg}
}

// Run evaluates every move rule and upserts resulting proposals. It
// returns the number of proposals written or refreshed this cycle.
func (e *Engine) Run(ctx context.Context, now time.Time) (int, error) {
	var count int

	n, err := e.collectionCalls(ctx)
	if err != nil {
		return count, err
	}
	count += n

	n, err = e.followUpEmails(ctx, now)
	if err != nil {
		return count, err
	}
	count += n

	n, err = e.escalateBlockers(ctx, now)
	if err != nil {
		return count, err
	}
	count += n

	n, err = e.reassignOverload(ctx)
	if err != nil {
		return count, err
	}
	count += n

	n, err = e.scheduleMeetings(ctx, now)
	if err != nil {
		return count, err
	}
	count += n

	n, err = e.resolveLinks(ctx, now)
	if err != nil {
		return count, err
	}
	count += n

	return count, nil
}

// bucketSeverity orders aging buckets by severity to compare against the
// "worst_bucket >= 31-60" trigger.
var bucketSeverity = map[model.AgingBucket]int{
	model.AgingCurrent: 0,
	model.Aging1to30:   1,
	model.Aging31to60:  2,
	model.Aging61to90:  3,
	model.Aging90Plus:  4,
}

// collectionCalls: AR for client > threshold AND worst_bucket >= 31-60.
func (e *Engine) collectionCalls(ctx context.Context) (int, error) {
	clients, err := e.store.ListClients(ctx)
	if err != nil {
		return 0, fmt.Errorf("moves: list clients: %w", err)
	}

	var count int
	for _, c := range clients {
		ar, _ := c.FinancialAROutstanding.Float64()
		if ar <= e.cfg.ARCollectionThreshold {
			continue
		}
		if bucketSeverity[c.FinancialARAging] < bucketSeverity[model.Aging31to60] {
			continue
		}
		if err := e.propose(ctx, "collection_call", model.EntityClient, c.ID,
			fmt.Sprintf("%s has $%.2f outstanding AR in the %s bucket", c.Name, ar, c.FinancialARAging),
			map[string]any{"client_id": c.ID, "amount": ar, "bucket": c.FinancialARAging},
			model.RiskMedium, []string{c.ID, string(c.FinancialARAging)}); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// followUpEmails: thread silence > N days on an open commitment.
func (e *Engine) followUpEmails(ctx context.Context, now time.Time) (int, error) {
	commitments, err := e.store.ListOpenCommitments(ctx)
	if err != nil {
		return 0, fmt.Errorf("moves: list open commitments: %w", err)
	}

	var count int
	threshold := time.Duration(e.cfg.CommSilenceDays) * 24 * time.Hour
	for _, cm := range commitments {
		if now.Sub(cm.UpdatedAt) < threshold {
			continue
		}
		if err := e.propose(ctx, "follow_up_email", model.EntityCommitment, cm.ID,
			fmt.Sprintf("commitment %q has had no activity in %d+ days", cm.Description, e.cfg.CommSilenceDays),
			map[string]any{"commitment_id": cm.ID, "communication_id": cm.CommunicationID},
			model.RiskLow, []string{cm.ID, cm.UpdatedAt.Format("2006-01-02")}); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// escalateBlockers: task blocked for > N days.
func (e *Engine) escalateBlockers(ctx context.Context, now time.Time) (int, error) {
	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("moves: list tasks: %w", err)
	}

	var count int
	threshold := time.Duration(e.cfg.BlockedEscalateDays) * 24 * time.Hour
	for _, t := range tasks {
		if t.Status != model.TaskBlocked {
			continue
		}
		if now.Sub(t.UpdatedAt) < threshold {
			continue
		}
		if err := e.propose(ctx, "escalate_blocker", model.EntityTask, t.ID,
			fmt.Sprintf("task %q has been blocked for %d+ days", t.Title, e.cfg.BlockedEscalateDays),
			map[string]any{"task_id": t.ID, "title": t.Title},
			model.RiskMedium, []string{t.ID, t.UpdatedAt.Format("2006-01-02")}); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// reassignOverload: person estimated utilization > 100%.
func (e *Engine) reassignOverload(ctx context.Context) (int, error) {
	members, err := e.store.ListTeamMembers(ctx)
	if err != nil {
		return 0, fmt.Errorf("moves: list team members: %w", err)
	}
	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("moves: list tasks: %w", err)
	}

	estimatedMinutes := make(map[string]int)
	for _, t := range tasks {
		if t.AssigneeTeamMemberID == nil || t.Status == model.TaskDone || t.DurationEstimate == nil {
			continue
		}
		estimatedMinutes[*t.AssigneeTeamMemberID] += *t.DurationEstimate
	}

	var count int
	for _, m := range members {
		if m.WeeklyHours <= 0 {
			continue
		}
		utilizationPct := float64(estimatedMinutes[m.ID]) / 60 / m.WeeklyHours * 100
		if utilizationPct <= e.cfg.OverloadUtilizationPct {
			continue
		}
		if err := e.propose(ctx, "reassign_overload", model.EntityTeamMember, m.ID,
			fmt.Sprintf("%s is at %.0f%% estimated utilization", m.Name, utilizationPct),
			map[string]any{"team_member_id": m.ID, "utilization_pct": utilizationPct},
			model.RiskMedium, []string{m.ID, fmt.Sprintf("%.0f", utilizationPct)}); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// scheduleMeetings: no contact logged > N days for tier-A client.
func (e *Engine) scheduleMeetings(ctx context.Context, now time.Time) (int, error) {
	clients, err := e.store.ListClients(ctx)
	if err != nil {
		return 0, fmt.Errorf("moves: list clients: %w", err)
	}
	comms, err := e.store.ListCommunications(ctx)
	if err != nil {
		return 0, fmt.Errorf("moves: list communications: %w", err)
	}

	lastContact := make(map[string]time.Time)
	for _, c := range comms {
		if c.ClientID == nil {
			continue
		}
		if c.ReceivedAt.After(lastContact[*c.ClientID]) {
			lastContact[*c.ClientID] = c.ReceivedAt
		}
	}

	var count int
	threshold := time.Duration(e.cfg.TierAContactGapDays) * 24 * time.Hour
	for _, c := range clients {
		if c.Tier != model.TierA {
			continue
		}
		last, ok := lastContact[c.ID]
		if ok && now.Sub(last) < threshold {
			continue
		}
		gapDays := e.cfg.TierAContactGapDays
		if ok {
			gapDays = int(now.Sub(last).Hours() / 24)
		}
		if err := e.propose(ctx, "schedule_meeting", model.EntityClient, c.ID,
			fmt.Sprintf("no contact logged with %s in %d+ days", c.Name, gapDays),
			map[string]any{"client_id": c.ID, "gap_days": gapDays},
			model.RiskLow, []string{c.ID, last.Format("2006-01-02")}); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// resolveLinks: unresolved link-status issue > N days old.
func (e *Engine) resolveLinks(ctx context.Context, now time.Time) (int, error) {
	items, err := e.store.ListUnresolvedItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("moves: list unresolved items: %w", err)
	}

	linkIssueTypes := map[string]bool{"missing_project": true, "missing_client": true, "unlinked_comm": true}
	threshold := time.Duration(e.cfg.LinkIssueAgeDays) * 24 * time.Hour

	var count int
	for _, item := range items {
		if !linkIssueTypes[item.IssueType] {
			continue
		}
		if now.Sub(item.CreatedAt) < threshold {
			continue
		}
		if err := e.propose(ctx, "resolve_link", item.EntityType, item.EntityID,
			fmt.Sprintf("%s issue on %s/%s has been open %d+ days", item.IssueType, item.EntityType, item.EntityID, e.cfg.LinkIssueAgeDays),
			map[string]any{"issue_type": item.IssueType, "resolution_queue_id": item.ID},
			model.RiskLow, []string{string(item.EntityType), item.EntityID, item.IssueType}); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// propose builds the idempotency key from (move_type, entity_id,
// salient_fields) per §4.7 and upserts the pending_action.
func (e *Engine) propose(ctx context.Context, moveType string, entityType model.EntityType, entityID, rationale string, payload map[string]any, risk model.RiskLevel, salient []string) error {
	key := idempotencyKey(moveType, entityID, salient)

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("moves: marshal payload for %s: %w", key, err)
	}

	action := &model.PendingAction{
		IdempotencyKey: key,
		ActionType:     moveType,
		EntityType:     entityType,
		EntityID:       entityID,
		Payload:        string(payloadJSON),
		Rationale:      rationale,
		RiskLevel:      risk,
		ApprovalMode:   model.ApprovalHuman,
		Status:         model.ActionPending,
	}
	return e.store.UpsertPendingAction(ctx, action)
}

func idempotencyKey(moveType, entityID string, salient []string) string {
	h := sha256.New()
	h.Write([]byte(moveType))
	h.Write([]byte{0})
	h.Write([]byte(entityID))
	for _, s := range salient {
		h.Write([]byte{0})
		h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}
