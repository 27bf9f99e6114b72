package snapshot

import (
	"time"

	"github.com/antigravity-dev/agencyos/internal/gates"
)

// Document is the single JSON artifact produced each cycle (§6). Every
// field here is a direct aggregation over post-normalization, post-gate
// store state — the snapshot generator never mutates the store itself.
type Document struct {
	GeneratedAt      time.Time                    `json:"generated_at"`
	CycleNumber      int64                        `json:"cycle_number"`
	Gates            gates.Report                 `json:"gates"`
	DomainConfidence map[string]gates.DomainLevel  `json:"domain_confidence"`
	Delivery         []ProjectRollup              `json:"delivery"`
	Clients          []ClientRollup               `json:"clients"`
	Cash             CashRollup                   `json:"cash"`
	Comms            CommsRollup                  `json:"comms"`
	Capacity         CapacityRollup               `json:"capacity"`
	Moves            []MoveSummary                `json:"moves"`
	Deltas           Deltas                       `json:"deltas"`

	// IssueKeys is the set of unresolved resolution-queue issue keys
	// ("entity_type/entity_id/issue_type") at generation time. It is not
	// part of the UI-facing document (§6 lists no such key) — it exists
	// purely so ComputeDeltas can diff new/resolved issues against the
	// previous cycle without re-querying the store.
	IssueKeys []string `json:"-"`
}

// ProjectRollup is one row of the delivery portfolio.
type ProjectRollup struct {
	ProjectID         string  `json:"project_id"`
	Name              string  `json:"name"`
	ClientID          *string `json:"client_id,omitempty"`
	IsInternal        bool    `json:"is_internal"`
	Status            string  `json:"status"`
	HealthColor       string  `json:"health_color"`
	SlipRisk          float64 `json:"slip_risk"`
	CompletionPercent float64 `json:"completion_percent"`
	Deadline          *time.Time `json:"deadline,omitempty"`
}

// ClientRollup is one row of the client portfolio.
type ClientRollup struct {
	ClientID       string  `json:"client_id"`
	Name           string  `json:"name"`
	Tier           string  `json:"tier"`
	HealthScore    float64 `json:"health_score"`
	AROutstanding  float64 `json:"ar_outstanding"`
	ARAgingBucket  string  `json:"ar_aging_bucket"`
	RelationshipTrend string `json:"relationship_trend"`
}

// CashRollup aggregates AR totals and the aging-bucket distribution.
type CashRollup struct {
	TotalOutstanding float64            `json:"total_outstanding"`
	Currency         string             `json:"currency"`
	ARAging          map[string]float64 `json:"ar_aging"`
}

// CommsRollup summarizes the inbox.
type CommsRollup struct {
	TotalThreads   int `json:"total_threads"`
	LinkedThreads  int `json:"linked_threads"`
	OpenCommitments int `json:"open_commitments"`
}

// CapacityLane is one team member's utilization snapshot.
type CapacityLane struct {
	TeamMemberID      string  `json:"team_member_id"`
	Name              string  `json:"name"`
	WeeklyHours       float64 `json:"weekly_hours"`
	EstimatedHours    float64 `json:"estimated_hours"`
	UtilizationPct    float64 `json:"utilization_pct"`
}

// CapacityRollup is the full set of capacity lanes.
type CapacityRollup struct {
	Lanes []CapacityLane `json:"lanes"`
}

// MoveSummary is a top-N pending_action summary, ranked by mode-weighted
// score (§4.6) before truncation.
type MoveSummary struct {
	ID         int64     `json:"id"`
	ActionType string    `json:"action_type"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Rationale  string    `json:"rationale"`
	RiskLevel  string    `json:"risk_level"`
	ProposedAt time.Time `json:"proposed_at"`
	Score      float64   `json:"score"`
	Horizons   []string  `json:"horizons,omitempty"`
}

// Deltas is the structural diff vs. the previous snapshot (§4.6).
type Deltas struct {
	GateFlips          []GateFlip          `json:"gate_flips,omitempty"`
	NewIssues          []string            `json:"new_issues,omitempty"`
	ResolvedIssues     []string            `json:"resolved_issues,omitempty"`
	HealthColorChanges []HealthColorChange `json:"health_color_changes,omitempty"`
	DomainLevelChanges []DomainLevelChange `json:"domain_level_changes,omitempty"`
	ARBucketTransitions []ARBucketTransition `json:"ar_bucket_transitions,omitempty"`
}

// GateFlip records a gate that changed pass/fail state.
type GateFlip struct {
	Gate     string `json:"gate"`
	WasPass  bool   `json:"was_pass"`
	NowPass  bool   `json:"now_pass"`
}

// HealthColorChange records a project's health-color transition.
type HealthColorChange struct {
	ProjectID string `json:"project_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// DomainLevelChange records a domain's confidence-level transition.
type DomainLevelChange struct {
	Domain string `json:"domain"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// ARBucketTransition records a client's AR aging-bucket transition.
type ARBucketTransition struct {
	ClientID string `json:"client_id"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// IsEmpty reports whether this delta carries no transitions — used by the
// "deltas of two identical cycles is empty" property (§8).
func (d Deltas) IsEmpty() bool {
	return len(d.GateFlips) == 0 && len(d.NewIssues) == 0 && len(d.ResolvedIssues) == 0 &&
		len(d.HealthColorChanges) == 0 && len(d.DomainLevelChanges) == 0 && len(d.ARBucketTransitions) == 0
}
