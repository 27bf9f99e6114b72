// Package model defines the canonical entities of the agency operating
// system's data model (§3): the ownership tree client → brand → project →
// task, the satellite entities (communication, commitment, invoice, event,
// team_member), and the three control-plane tables (resolution_queue_item,
// pending_action, sync_state).
//
// Fields marked "derived" are owned exclusively by the normalizer; no other
// package may write them.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier is a client's relationship tier.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// ClientLifecycle is an attribute-level state, never a deletion.
type ClientLifecycle string

const (
	ClientActive  ClientLifecycle = "active"
	ClientDormant ClientLifecycle = "dormant"
	ClientChurned ClientLifecycle = "churned"
)

// AgingBucket classifies outstanding AR or invoice age.
type AgingBucket string

const (
	AgingCurrent AgingBucket = "current"
	Aging1to30   AgingBucket = "1-30"
	Aging31to60  AgingBucket = "31-60"
	Aging61to90  AgingBucket = "61-90"
	Aging90Plus  AgingBucket = "90+"
)

// Client is the top-level customer entity. Created by the Xero collector or
// a manual seed; never deleted.
type Client struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Tier      Tier            `db:"tier" json:"tier"`
	Lifecycle ClientLifecycle `db:"lifecycle" json:"lifecycle"`

	// HealthScore, FinancialAROutstanding and FinancialARAging are
	// denormalizations of snapshot-time computations; they are rewritten
	// each cycle and carry no independent source of truth.
	HealthScore            float64         `db:"health_score" json:"health_score"`
	FinancialAROutstanding decimal.Decimal `db:"financial_ar_outstanding" json:"financial_ar_outstanding"`
	FinancialARAging       AgingBucket     `db:"financial_ar_aging" json:"financial_ar_aging"`
	RelationshipTrend      string          `db:"relationship_trend" json:"relationship_trend"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Brand is a pure grouping entity, unique by (client_id, name).
type Brand struct {
	ID       string `db:"id" json:"id"`
	ClientID string `db:"client_id" json:"client_id"`
	Name     string `db:"name" json:"name"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ProjectStatus is the lifecycle of a project.
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectOnHold   ProjectStatus = "on_hold"
	ProjectComplete ProjectStatus = "complete"
	ProjectArchived ProjectStatus = "archived"
)

// HealthColor is the traffic-light rollup derived from slip-risk (§4.6).
type HealthColor string

const (
	HealthGreen  HealthColor = "GREEN"
	HealthYellow HealthColor = "YELLOW"
	HealthRed    HealthColor = "RED"
)

// Project is a container for tasks. Belongs to a brand, or is internal.
// When IsInternal, BrandID and ClientID MUST both be empty.
type Project struct {
	ID       string  `db:"id" json:"id"`
	BrandID  *string `db:"brand_id" json:"brand_id,omitempty"`
	ClientID *string `db:"client_id" json:"client_id,omitempty"` // derived
	Name     string  `db:"name" json:"name"`

	IsInternal bool          `db:"is_internal" json:"is_internal"`
	Status     ProjectStatus `db:"status" json:"status"`
	Deadline   *time.Time    `db:"deadline" json:"deadline,omitempty"`

	// HealthColor and SlipRisk are snapshot-time denormalizations.
	HealthColor HealthColor `db:"health_color" json:"health_color"`
	SlipRisk    float64     `db:"slip_risk" json:"slip_risk"`

	TaskCount         int     `db:"task_count" json:"task_count"`
	TaskDoneCount     int     `db:"task_done_count" json:"task_done_count"`
	CompletionPercent float64 `db:"completion_percent" json:"completion_percent"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TaskSource identifies which collector produced a task row.
type TaskSource string

const (
	TaskSourceGoogleTasks TaskSource = "google_tasks"
	TaskSourceAsana       TaskSource = "asana"
	TaskSourceManual      TaskSource = "manual"
)

// TaskStatus is the normalized lifecycle state of a task.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskDone    TaskStatus = "done"
	TaskBlocked TaskStatus = "blocked"
)

// LinkStatus classifies how well a task/communication resolves to the
// entity chain above it (§3's derived fields).
type LinkStatus string

const (
	LinkLinked   LinkStatus = "linked"
	LinkPartial  LinkStatus = "partial"
	LinkUnlinked LinkStatus = "unlinked"
	LinkNA       LinkStatus = "n/a"
)

// Task is the atomic unit of delivery work.
type Task struct {
	ID       string     `db:"id" json:"id"`
	Source   TaskSource `db:"source" json:"source"`
	SourceID string     `db:"source_id" json:"source_id"`

	ProjectID *string `db:"project_id" json:"project_id,omitempty"`

	// BrandID, ClientID, ProjectLinkStatus, ClientLinkStatus are derived;
	// only the normalizer writes them.
	BrandID          *string    `db:"brand_id" json:"brand_id,omitempty"`
	ClientID         *string    `db:"client_id" json:"client_id,omitempty"`
	ProjectLinkStatus LinkStatus `db:"project_link_status" json:"project_link_status"`
	ClientLinkStatus  LinkStatus `db:"client_link_status" json:"client_link_status"`

	Title            string     `db:"title" json:"title"`
	Status           TaskStatus `db:"status" json:"status"`
	Priority         int        `db:"priority" json:"priority"` // 0-100, sort key
	DueDate          *time.Time `db:"due_date" json:"due_date,omitempty"`
	DurationEstimate *int       `db:"duration_estimate_minutes" json:"duration_estimate_minutes,omitempty"`
	Notes            string     `db:"notes" json:"notes,omitempty"`

	// AssigneeTeamMemberID resolves to team_member when known; AssigneeRaw
	// carries the unresolved source string otherwise. At most one is set;
	// neither is set when the source task has no assignee.
	AssigneeTeamMemberID *string `db:"assignee_team_member_id" json:"assignee_team_member_id,omitempty"`
	AssigneeRaw          string  `db:"assignee_raw" json:"assignee_raw,omitempty"`

	// UrgencyText/ImpactText are the informational textual urgency/impact
	// pair kept alongside Priority per §9's open question: Priority is the
	// authoritative sort key, these are display-only.
	UrgencyText string `db:"urgency_text" json:"urgency_text,omitempty"`
	ImpactText  string `db:"impact_text" json:"impact_text,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Communication is an email thread (source-tagged gmail).
type Communication struct {
	ID         string    `db:"id" json:"id"`
	Source     string    `db:"source" json:"source"`
	SourceID   string    `db:"source_id" json:"source_id"`
	Sender     string    `db:"sender" json:"sender"`
	Recipients []string  `db:"-" json:"recipients"`
	Subject    string    `db:"subject" json:"subject"`
	Snippet    string    `db:"snippet" json:"snippet"`
	BodyText   string    `db:"body_text" json:"body_text,omitempty"`
	// BodyFetchMethod records how BodyText was obtained: html_stripped,
	// plain, or snippet_fallback (§4.2).
	BodyFetchMethod string `db:"body_fetch_method" json:"body_fetch_method,omitempty"`
	ReceivedAt      time.Time `db:"received_at" json:"received_at"`
	ContentHash string   `db:"content_hash" json:"content_hash"` // sha256(subject+snippet)

	// FromDomain, ClientID, LinkStatus are derived.
	FromDomain string     `db:"from_domain" json:"from_domain"`
	ClientID   *string    `db:"client_id" json:"client_id,omitempty"`
	LinkStatus LinkStatus `db:"link_status" json:"link_status"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CommitmentKind distinguishes a promise made by the agency from a request
// made of it.
type CommitmentKind string

const (
	CommitmentPromise CommitmentKind = "promise"
	CommitmentRequest CommitmentKind = "request"
)

// CommitmentStatus is the commitment lifecycle.
type CommitmentStatus string

const (
	CommitmentOpen      CommitmentStatus = "open"
	CommitmentFulfilled CommitmentStatus = "fulfilled"
	CommitmentBroken    CommitmentStatus = "broken"
	CommitmentCancelled CommitmentStatus = "cancelled"
)

// Commitment is a promise or request extracted from a communication.
type Commitment struct {
	ID              string           `db:"id" json:"id"`
	CommunicationID string           `db:"communication_id" json:"communication_id"`
	ClientID        *string          `db:"client_id" json:"client_id,omitempty"`
	TaskID          *string          `db:"task_id" json:"task_id,omitempty"`
	Kind            CommitmentKind   `db:"kind" json:"kind"`
	Status          CommitmentStatus `db:"status" json:"status"`
	Description     string           `db:"description" json:"description"`
	DueDate         *time.Time       `db:"due_date" json:"due_date,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// InvoiceStatus mirrors the source accounting system's invoice lifecycle.
type InvoiceStatus string

const (
	InvoiceDraft InvoiceStatus = "draft"
	InvoiceSent  InvoiceStatus = "sent"
	InvoicePaid  InvoiceStatus = "paid"
	InvoiceVoid  InvoiceStatus = "void"
)

// Invoice is an AR record (source xero).
type Invoice struct {
	ID       string `db:"id" json:"id"`
	SourceID string `db:"source_id" json:"source_id"`
	ClientID *string `db:"client_id" json:"client_id,omitempty"`

	Amount   decimal.Decimal `db:"amount" json:"amount"`
	Currency string          `db:"currency" json:"currency"`

	IssueDate time.Time  `db:"issue_date" json:"issue_date"`
	DueDate   *time.Time `db:"due_date" json:"due_date,omitempty"`
	PaidDate  *time.Time `db:"paid_date" json:"paid_date,omitempty"`
	Status    InvoiceStatus `db:"status" json:"status"`

	// AgingBucket is derived by the normalizer from (today - due_date).
	AgingBucket AgingBucket `db:"aging_bucket" json:"aging_bucket"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Event is a calendar item (source calendar).
type Event struct {
	ID         string    `db:"id" json:"id"`
	SourceID   string    `db:"source_id" json:"source_id"`
	Title      string    `db:"title" json:"title"`
	Start      time.Time `db:"start_at" json:"start_at"`
	End        time.Time `db:"end_at" json:"end_at"`
	Attendees  []string  `db:"-" json:"attendees"`
	Location   string    `db:"location" json:"location,omitempty"`
	TaskID     *string   `db:"task_id" json:"task_id,omitempty"`
	PrepNotes  string    `db:"prep_notes_json" json:"prep_notes,omitempty"` // JSON: {time_minutes, items}

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TeamMember is an internal person, built from observed task assignees.
type TeamMember struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`

	WeeklyHours float64 `db:"weekly_hours" json:"weekly_hours"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EntityType enumerates the polymorphic targets a resolution_queue_item or
// pending_action may point at.
type EntityType string

const (
	EntityClient        EntityType = "client"
	EntityBrand         EntityType = "brand"
	EntityProject        EntityType = "project"
	EntityTask           EntityType = "task"
	EntityCommunication  EntityType = "communication"
	EntityCommitment     EntityType = "commitment"
	EntityInvoice        EntityType = "invoice"
	EntityTeamMember     EntityType = "team_member"
)

// ResolutionQueueItem is a polymorphic issue pointer (§4.5).
type ResolutionQueueItem struct {
	ID         int64      `db:"id" json:"id"`
	EntityType EntityType `db:"entity_type" json:"entity_type"`
	EntityID   string     `db:"entity_id" json:"entity_id"`
	IssueType  string     `db:"issue_type" json:"issue_type"`
	Priority   int        `db:"priority" json:"priority"` // 1 (highest) .. 5
	Context    string     `db:"context_json" json:"context,omitempty"`

	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// RiskLevel classifies the blast radius of a proposed mutation.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ApprovalMode controls whether a pending_action may execute without a
// human decision. The system itself never executes "auto" mutations; the
// mode is advisory metadata for the HTTP boundary / UI.
type ApprovalMode string

const (
	ApprovalAuto  ApprovalMode = "auto"
	ApprovalHuman ApprovalMode = "human"
)

// PendingActionStatus is the lifecycle of a proposed mutation.
type PendingActionStatus string

const (
	ActionPending  PendingActionStatus = "pending"
	ActionApproved PendingActionStatus = "approved"
	ActionRejected PendingActionStatus = "rejected"
	ActionExecuted PendingActionStatus = "executed"
	ActionExpired  PendingActionStatus = "expired"
)

// PendingAction is a proposed mutation awaiting approval (§4.7).
type PendingAction struct {
	ID             int64               `db:"id" json:"id"`
	IdempotencyKey string              `db:"idempotency_key" json:"idempotency_key"`
	ActionType     string              `db:"action_type" json:"action_type"`
	EntityType     EntityType          `db:"entity_type" json:"entity_type"`
	EntityID       string              `db:"entity_id" json:"entity_id"`
	Payload        string              `db:"payload_json" json:"payload"`
	Rationale      string              `db:"rationale" json:"rationale"`
	RiskLevel      RiskLevel           `db:"risk_level" json:"risk_level"`
	ApprovalMode   ApprovalMode        `db:"approval_mode" json:"approval_mode"`
	Status         PendingActionStatus `db:"status" json:"status"`

	ProposedAt time.Time  `db:"proposed_at" json:"proposed_at"`
	DecidedAt  *time.Time `db:"decided_at" json:"decided_at,omitempty"`
}

// SyncState is one row per collector, recording its last attempt/success.
type SyncState struct {
	Source      string     `db:"source" json:"source"`
	LastSync    *time.Time `db:"last_sync" json:"last_sync,omitempty"`
	LastSuccess *time.Time `db:"last_success" json:"last_success,omitempty"`
	ItemsSynced int        `db:"items_synced" json:"items_synced"`
	Error       string     `db:"error" json:"error,omitempty"`
}

// IdentityKind distinguishes an exact sender address from a bare domain in
// the client identity map.
type IdentityKind string

const (
	IdentityEmail  IdentityKind = "email"
	IdentityDomain IdentityKind = "domain"
)

// ClientIdentity maps a known sender email or domain to a client, used by
// the normalizer to resolve communication.client_id (§4.3 point 2). Not a
// core entity from §3; supplemented because the identity map's storage is
// assumed but unspecified there.
type ClientIdentity struct {
	ID       int64        `db:"id" json:"id"`
	ClientID string       `db:"client_id" json:"client_id"`
	Kind     IdentityKind `db:"kind" json:"kind"`
	Value    string       `db:"value" json:"value"`
}

// CycleLog is a per-cycle diagnostic row (supplemented beyond the core spec,
// SPEC_FULL.md §12): phase-by-phase timings and the first failing phase.
type CycleLog struct {
	CycleNumber   int64     `db:"cycle_number" json:"cycle_number"`
	StartedAt     time.Time `db:"started_at" json:"started_at"`
	FinishedAt    time.Time `db:"finished_at" json:"finished_at"`
	Success       bool      `db:"success" json:"success"`
	FailedPhase   string    `db:"failed_phase" json:"failed_phase,omitempty"`
	PhaseTimings  string    `db:"phase_timings_json" json:"phase_timings"` // JSON: map[phase]duration_ms
}
