// Package snapshot is the pure-function aggregation layer of §4.6: given
// the current store and gate results, it computes scores, rolls up
// per-domain summaries, and emits the single timestamped JSON document
// consumed by the UI. Generate leaves Document.Deltas empty: ComputeDeltas
// diffs two documents, and no step of the cycle calls it, so a written
// snapshot carries no transitions vs. the previous one.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/antigravity-dev/agencyos/internal/config"
	"github.com/antigravity-dev/agencyos/internal/gates"
	"github.com/antigravity-dev/agencyos/internal/model"
	"github.com/antigravity-dev/agencyos/internal/scoring"
	"github.com/antigravity-dev/agencyos/internal/store"
)

// Generator builds a Document from the current store state.
type Generator struct {
	store      *store.Store
	cfg        config.Snapshot
	scoringCfg config.Scoring
}

func New(st *store.Store, cfg config.Snapshot, scoringCfg config.Scoring) *Generator {
	return &Generator{store: st, cfg: cfg, scoringCfg: scoringCfg}
}

// Generate aggregates the full snapshot document for cycleNumber.
func (g *Generator) Generate(ctx context.Context, cycleNumber int64, report gates.Report, now time.Time) (*Document, error) {
	projects, err := g.store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list projects: %w", err)
	}
	tasks, err := g.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list tasks: %w", err)
	}
	clients, err := g.store.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list clients: %w", err)
	}
	comms, err := g.store.ListCommunications(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list communications: %w", err)
	}
	openCommitments, err := g.store.ListOpenCommitments(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list open commitments: %w", err)
	}
	invoices, err := g.store.ListUnpaidInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list invoices: %w", err)
	}
	members, err := g.store.ListTeamMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list team members: %w", err)
	}
	actions, err := g.store.ListPendingActions(ctx, model.ActionPending)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list pending actions: %w", err)
	}
	issues, err := g.store.ListUnresolvedItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list unresolved items: %w", err)
	}

	tasksByProject := make(map[string][]model.Task)
	for _, t := range tasks {
		if t.ProjectID != nil {
			tasksByProject[*t.ProjectID] = append(tasksByProject[*t.ProjectID], t)
		}
	}

	doc := &Document{
		GeneratedAt:      now,
		CycleNumber:      cycleNumber,
		Gates:            report,
		DomainConfidence: gates.DomainConfidence(report),
		Delivery:         buildDelivery(projects, tasksByProject, now),
		Clients:          buildClients(clients),
		Cash:             buildCash(invoices),
		Comms:            buildComms(comms, openCommitments),
		Capacity:         buildCapacity(members, tasks),
		Moves:            buildMoves(actions, g.cfg.TopMoves, g.scoringCfg, now),
		IssueKeys:        issueKeys(issues),
	}

	return doc, nil
}

func issueKeys(items []model.ResolutionQueueItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, string(it.EntityType)+"/"+it.EntityID+"/"+it.IssueType)
	}
	return out
}

func buildDelivery(projects []model.Project, tasksByProject map[string][]model.Task, now time.Time) []ProjectRollup {
	out := make([]ProjectRollup, 0, len(projects))
	for _, p := range projects {
		projectTasks := tasksByProject[p.ID]
		slipRisk, healthColor := computeProjectHealth(p, projectTasks, now)
		out = append(out, ProjectRollup{
			ProjectID:         p.ID,
			Name:              p.Name,
			ClientID:          p.ClientID,
			IsInternal:        p.IsInternal,
			Status:            string(p.Status),
			HealthColor:       string(healthColor),
			SlipRisk:          slipRisk,
			CompletionPercent: p.CompletionPercent,
			Deadline:          p.Deadline,
		})
	}
	return out
}

func computeProjectHealth(p model.Project, tasks []model.Task, now time.Time) (float64, scoring.HealthColor) {
	var done, blocked, overdue int
	for _, t := range tasks {
		if t.Status == model.TaskDone {
			done++
		}
		if t.Status == model.TaskBlocked {
			blocked++
		}
		if t.Status != model.TaskDone && t.DueDate != nil && t.DueDate.Before(now) {
			overdue++
		}
	}

	remainingRatio := 0.0
	if len(tasks) > 0 {
		remainingRatio = float64(len(tasks)-done) / float64(len(tasks))
	}
	blockingSeverity := 0.0
	if len(tasks) > 0 {
		blockingSeverity = float64(blocked) / float64(len(tasks))
	}

	daysToDeadline := 0.0
	passed := false
	if p.Deadline != nil {
		daysToDeadline = p.Deadline.Sub(now).Hours() / 24
		passed = daysToDeadline < 0
	}

	slipRisk := scoring.SlipRiskScore(scoring.SlipRiskInputs{
		DaysToDeadline:     daysToDeadline,
		DeadlinePassed:     passed,
		RemainingWorkRatio: remainingRatio,
		CapacityGapRatio:   0, // capacity gap requires cross-project allocation, not computed per-project here
		BlockingSeverity:   blockingSeverity,
	})

	color := scoring.ProjectHealthColor(slipRisk, blocked > 0, false, overdue > 0)
	return slipRisk, color
}

// buildClients rolls up each client's health_score, which the normalizer
// recomputed via scoring.ClientHealthScore earlier this cycle (§4.3, §4.6);
// the generator only reads the result, it never scores clients itself.
func buildClients(clients []model.Client) []ClientRollup {
	out := make([]ClientRollup, 0, len(clients))
	for _, c := range clients {
		ar, _ := c.FinancialAROutstanding.Float64()
		out = append(out, ClientRollup{
			ClientID:          c.ID,
			Name:              c.Name,
			Tier:              string(c.Tier),
			HealthScore:       c.HealthScore,
			AROutstanding:     ar,
			ARAgingBucket:     string(c.FinancialARAging),
			RelationshipTrend: c.RelationshipTrend,
		})
	}
	return out
}

func buildCash(invoices []model.Invoice) CashRollup {
	roll := CashRollup{
		Currency: "USD",
		ARAging: map[string]float64{
			string(model.AgingCurrent): 0,
			string(model.Aging1to30):   0,
			string(model.Aging31to60):  0,
			string(model.Aging61to90):  0,
			string(model.Aging90Plus):  0,
		},
	}
	for _, inv := range invoices {
		amt, _ := inv.Amount.Float64()
		roll.TotalOutstanding += amt
		roll.ARAging[string(inv.AgingBucket)] += amt
		if inv.Currency != "" {
			roll.Currency = inv.Currency
		}
	}
	return roll
}

func buildComms(comms []model.Communication, openCommitments []model.Commitment) CommsRollup {
	roll := CommsRollup{
		TotalThreads:    len(comms),
		OpenCommitments: len(openCommitments),
	}
	for _, c := range comms {
		if c.LinkStatus == model.LinkLinked {
			roll.LinkedThreads++
		}
	}
	return roll
}

func buildCapacity(members []model.TeamMember, tasks []model.Task) CapacityRollup {
	estimatedMinutes := make(map[string]int)
	for _, t := range tasks {
		if t.AssigneeTeamMemberID == nil || t.Status == model.TaskDone || t.DurationEstimate == nil {
			continue
		}
		estimatedMinutes[*t.AssigneeTeamMemberID] += *t.DurationEstimate
	}

	lanes := make([]CapacityLane, 0, len(members))
	for _, m := range members {
		estimatedHours := float64(estimatedMinutes[m.ID]) / 60
		utilization := 0.0
		if m.WeeklyHours > 0 {
			utilization = estimatedHours / m.WeeklyHours * 100
		}
		lanes = append(lanes, CapacityLane{
			TeamMemberID:   m.ID,
			Name:           m.Name,
			WeeklyHours:    m.WeeklyHours,
			EstimatedHours: estimatedHours,
			UtilizationPct: utilization,
		})
	}
	return CapacityRollup{Lanes: lanes}
}

// moveWindowHours is the assumed one-week consequence window a proposed
// move is scored against: TTC starts at a full week and counts down as the
// action sits unactioned, feeding both UrgencyFromTTC and EligibleHorizons.
const moveWindowHours = 168.0

// actionDomains maps each move type from §4.7 onto the mode-weight domains
// config.Scoring's ModeWeights is keyed by.
var actionDomains = map[string]string{
	"collection_call":  "cash",
	"follow_up_email":  "comms",
	"escalate_blocker": "delivery",
	"reassign_overload": "capacity",
	"schedule_meeting":  "clients",
	"resolve_link":      "comms",
}

// buildMoves ranks every pending action by mode-weighted score (§4.6) and
// truncates to the top N; the score and eligible horizons ride along on
// each MoveSummary so the UI can explain the ranking.
func buildMoves(actions []model.PendingAction, topN int, scoringCfg config.Scoring, now time.Time) []MoveSummary {
	type ranked struct {
		action   model.PendingAction
		score    float64
		horizons []scoring.Horizon
	}

	scored := make([]ranked, 0, len(actions))
	for _, a := range actions {
		impact := riskImpact(a.RiskLevel)
		ttc := moveWindowHours - now.Sub(a.ProposedAt).Hours()
		urgency := scoring.UrgencyFromTTC(ttc)
		controllability := approvalControllability(a.ApprovalMode)

		base := scoring.BaseScore(impact, urgency, controllability, scoring.ConfidenceMed)
		weighted := scoring.ModeWeightedScore(base, scoringCfg.ModeWeights, scoringCfg.ActiveMode, actionDomains[a.ActionType])

		horizons := scoring.EligibleHorizons(scoring.EligibilityInputs{
			TTCHours:             ttc,
			Impact:               impact,
			DependencyBreaker:    a.ActionType == "escalate_blocker",
			CapacityBlockerToday: a.ActionType == "reassign_overload",
			Overdue:              ttc <= 0,
			CompoundingDamage:    a.ActionType == "collection_call",
			ARSevere:             a.ActionType == "collection_call" && a.RiskLevel == model.RiskHigh,
		})

		scored = append(scored, ranked{action: a, score: weighted, horizons: horizons})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	if topN <= 0 || topN > len(scored) {
		topN = len(scored)
	}
	out := make([]MoveSummary, 0, topN)
	for i := 0; i < topN; i++ {
		r := scored[i]
		horizonStrs := make([]string, 0, len(r.horizons))
		for _, h := range r.horizons {
			horizonStrs = append(horizonStrs, string(h))
		}
		out = append(out, MoveSummary{
			ID:         r.action.ID,
			ActionType: r.action.ActionType,
			EntityType: string(r.action.EntityType),
			EntityID:   r.action.EntityID,
			Rationale:  r.action.Rationale,
			RiskLevel:  string(r.action.RiskLevel),
			ProposedAt: r.action.ProposedAt,
			Score:      r.score,
			Horizons:   horizonStrs,
		})
	}
	return out
}

// riskImpact maps a pending action's blast-radius classification onto the
// 0-1 impact scale BaseScore expects.
func riskImpact(r model.RiskLevel) float64 {
	switch r {
	case model.RiskHigh:
		return 0.9
	case model.RiskMedium:
		return 0.6
	default:
		return 0.3
	}
}

// approvalControllability treats an auto-approvable action as fully within
// the system's control and a human-gated one as only partially so.
func approvalControllability(m model.ApprovalMode) float64 {
	if m == model.ApprovalAuto {
		return 1.0
	}
	return 0.5
}
