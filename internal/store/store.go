// Package store provides the single-file, WAL-mode relational store that
// backs the whole agency operating system (§4.1). It owns every entity row;
// collectors write only their own source-tagged columns, the normalizer
// writes derived fields, and nothing else mutates the schema directly.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/antigravity-dev/agencyos/internal/model"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store wraps a pooled, WAL-mode sqlite connection.
type Store struct {
	db *sqlx.DB
}

// Open creates or opens the sqlite database at dbPath, applies pending
// migrations, and returns a ready Store. busyTimeout bounds how long a
// writer waits on SQLITE_BUSY before failing, which matters because the
// store is shared by the orchestrator's phases and the HTTP boundary.
func Open(dbPath string, busyTimeout time.Duration) (*Store, error) {
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)",
		dbPath, busyTimeout.Milliseconds())

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // single-writer sqlite; serialize through one pooled connection

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying sqlx handle for packages (gates, snapshot) that
// need read-only ad hoc aggregate queries beyond the typed CRUD surface.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// BeginPhase opens a transaction giving the caller a consistent snapshot
// for the duration of one orchestrator phase (§4.1's "deterministic read
// view inside a single cycle").
func (s *Store) BeginPhase(ctx context.Context) (*sqlx.Tx, error) {
	return s.db.BeginTxx(ctx, &sql.TxOptions{})
}

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = fmt.Errorf("store: not found")

func isNoRows(err error) bool {
	return err == sql.ErrNoRows
}

// --- clients ---------------------------------------------------------------

func (s *Store) UpsertClient(ctx context.Context, c *model.Client) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO clients (id, name, tier, lifecycle, health_score, financial_ar_outstanding, financial_ar_aging, relationship_trend, created_at, updated_at)
		VALUES (:id, :name, :tier, :lifecycle, :health_score, :financial_ar_outstanding, :financial_ar_aging, :relationship_trend, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, tier=excluded.tier, lifecycle=excluded.lifecycle,
			updated_at=excluded.updated_at`, c)
	return err
}

func (s *Store) GetClient(ctx context.Context, id string) (*model.Client, error) {
	var c model.Client
	err := s.db.GetContext(ctx, &c, `SELECT * FROM clients WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	return &c, err
}

func (s *Store) ListClients(ctx context.Context) ([]model.Client, error) {
	var out []model.Client
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM clients ORDER BY name`)
	return out, err
}

// FindClientByName looks up a client by exact name match, as used by the
// Xero analogue to resolve an invoice's billed-to name to a client id.
// Returns ErrNotFound when no client carries that name.
func (s *Store) FindClientByName(ctx context.Context, name string) (*model.Client, error) {
	var c model.Client
	err := s.db.GetContext(ctx, &c, `SELECT * FROM clients WHERE name = ? LIMIT 1`, name)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	return &c, err
}

// UpdateClientScores rewrites the snapshot-time denormalizations on a client
// row; only the scoring/normalizer packages call this.
func (s *Store) UpdateClientScores(ctx context.Context, id string, healthScore float64, arOutstanding string, arAging model.AgingBucket, trend string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE clients SET health_score=?, financial_ar_outstanding=?, financial_ar_aging=?, relationship_trend=?, updated_at=?
		WHERE id=?`, healthScore, arOutstanding, arAging, trend, time.Now().UTC(), id)
	return err
}

// --- brands ------------------------------------------------------------

func (s *Store) UpsertBrand(ctx context.Context, b *model.Brand) error {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO brands (id, client_id, name, created_at, updated_at)
		VALUES (:id, :client_id, :name, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET client_id=excluded.client_id, name=excluded.name, updated_at=excluded.updated_at`, b)
	return err
}

func (s *Store) GetBrand(ctx context.Context, id string) (*model.Brand, error) {
	var b model.Brand
	err := s.db.GetContext(ctx, &b, `SELECT * FROM brands WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	return &b, err
}

func (s *Store) ListBrands(ctx context.Context) ([]model.Brand, error) {
	var out []model.Brand
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM brands ORDER BY name`)
	return out, err
}

// --- projects ------------------------------------------------------------

func (s *Store) UpsertProject(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO projects (id, brand_id, client_id, name, is_internal, status, deadline, health_color, slip_risk, task_count, task_done_count, completion_percent, created_at, updated_at)
		VALUES (:id, :brand_id, :client_id, :name, :is_internal, :status, :deadline, :health_color, :slip_risk, :task_count, :task_done_count, :completion_percent, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			brand_id=excluded.brand_id, client_id=CASE WHEN excluded.is_internal=1 THEN NULL ELSE excluded.client_id END,
			name=excluded.name, is_internal=excluded.is_internal, status=excluded.status, deadline=excluded.deadline,
			updated_at=excluded.updated_at`, p)
	return err
}

func (s *Store) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := s.db.GetContext(ctx, &p, `SELECT * FROM projects WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (s *Store) ListProjects(ctx context.Context) ([]model.Project, error) {
	var out []model.Project
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM projects ORDER BY name`)
	return out, err
}

// SetProjectDerivedLink is the normalizer's exclusive write path for a
// project's resolved client_id/brand_id (internal projects force both null).
func (s *Store) SetProjectDerivedLink(ctx context.Context, id string, brandID, clientID *string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE projects SET brand_id=?, client_id=?, updated_at=? WHERE id=?`,
		brandID, clientID, time.Now().UTC(), id)
	return err
}

// SetProjectHealth rewrites the snapshot-time health denormalization.
func (s *Store) SetProjectHealth(ctx context.Context, id string, color model.HealthColor, slipRisk float64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE projects SET health_color=?, slip_risk=?, updated_at=? WHERE id=?`,
		color, slipRisk, time.Now().UTC(), id)
	return err
}

// SetProjectTaskCounts rewrites the task-count rollup on a project.
func (s *Store) SetProjectTaskCounts(ctx context.Context, id string, total, done int) error {
	pct := 0.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	_, err := s.db.ExecContext(ctx, `UPDATE projects SET task_count=?, task_done_count=?, completion_percent=?, updated_at=? WHERE id=?`,
		total, done, pct, time.Now().UTC(), id)
	return err
}

// --- tasks -----------------------------------------------------------------

// UpsertTaskFromCollector is the only write path collectors may use; it
// never touches the derived link-status/client/brand columns (normalizer
// owns those exclusively, per §3).
func (s *Store) UpsertTaskFromCollector(ctx context.Context, t *model.Task) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO tasks (id, source, source_id, project_id, title, status, priority, due_date, duration_estimate_minutes, notes, assignee_team_member_id, assignee_raw, urgency_text, impact_text, created_at, updated_at)
		VALUES (:id, :source, :source_id, :project_id, :title, :status, :priority, :due_date, :duration_estimate_minutes, :notes, :assignee_team_member_id, :assignee_raw, :urgency_text, :impact_text, :created_at, :updated_at)
		ON CONFLICT(source, source_id) DO UPDATE SET
			project_id=excluded.project_id, title=excluded.title, status=excluded.status, priority=excluded.priority,
			due_date=excluded.due_date, duration_estimate_minutes=excluded.duration_estimate_minutes, notes=excluded.notes,
			assignee_team_member_id=excluded.assignee_team_member_id, assignee_raw=excluded.assignee_raw,
			urgency_text=excluded.urgency_text, impact_text=excluded.impact_text, updated_at=excluded.updated_at`, t)
	return err
}

// --- client identity map ----------------------------------------------------

func (s *Store) UpsertClientIdentity(ctx context.Context, clientID string, kind model.IdentityKind, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client_identities (client_id, kind, value) VALUES (?, ?, ?)
		ON CONFLICT(kind, value) DO UPDATE SET client_id=excluded.client_id`, clientID, kind, value)
	return err
}

// ResolveIdentity looks up a client by exact sender email first, then by
// domain, matching §4.3 point 2's lookup order.
func (s *Store) ResolveIdentity(ctx context.Context, email, domain string) (*string, error) {
	var clientID string
	err := s.db.GetContext(ctx, &clientID, `SELECT client_id FROM client_identities WHERE kind='email' AND value=?`, email)
	if err == nil {
		return &clientID, nil
	}
	if !isNoRows(err) {
		return nil, err
	}
	err = s.db.GetContext(ctx, &clientID, `SELECT client_id FROM client_identities WHERE kind='domain' AND value=?`, domain)
	if err == nil {
		return &clientID, nil
	}
	if isNoRows(err) {
		return nil, nil
	}
	return nil, err
}

func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var t model.Task
	err := s.db.GetContext(ctx, &t, `SELECT * FROM tasks WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	return &t, err
}

func (s *Store) ListTasks(ctx context.Context) ([]model.Task, error) {
	var out []model.Task
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM tasks ORDER BY priority DESC`)
	return out, err
}

// SetTaskDerivedLink is the normalizer's exclusive write path for a task's
// derived brand/client ids and link-status enums.
func (s *Store) SetTaskDerivedLink(ctx context.Context, id string, brandID, clientID *string, projectLink, clientLink model.LinkStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET brand_id=?, client_id=?, project_link_status=?, client_link_status=?, updated_at=? WHERE id=?`,
		brandID, clientID, projectLink, clientLink, time.Now().UTC(), id)
	return err
}

// --- team_members ----------------------------------------------------------

func (s *Store) UpsertTeamMember(ctx context.Context, m *model.TeamMember) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO team_members (id, name, weekly_hours, created_at, updated_at)
		VALUES (:id, :name, :weekly_hours, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, weekly_hours=excluded.weekly_hours, updated_at=excluded.updated_at`, m)
	return err
}

func (s *Store) ListTeamMembers(ctx context.Context) ([]model.TeamMember, error) {
	var out []model.TeamMember
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM team_members ORDER BY name`)
	return out, err
}

// --- communications ----------------------------------------------------------

func (s *Store) UpsertCommunicationFromCollector(ctx context.Context, c *model.Communication, recipientsJSON string) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO communications (id, source, source_id, sender, recipients_json, subject, snippet, body_text, body_fetch_method, received_at, content_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, source_id) DO UPDATE SET
			sender=excluded.sender, recipients_json=excluded.recipients_json, subject=excluded.subject,
			snippet=excluded.snippet, body_text=excluded.body_text, body_fetch_method=excluded.body_fetch_method,
			received_at=excluded.received_at, content_hash=excluded.content_hash, updated_at=excluded.updated_at`,
		c.ID, c.Source, c.SourceID, c.Sender, recipientsJSON, c.Subject, c.Snippet, c.BodyText, c.BodyFetchMethod, c.ReceivedAt, c.ContentHash, c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *Store) ListCommunications(ctx context.Context) ([]model.Communication, error) {
	var out []model.Communication
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM communications ORDER BY received_at DESC`)
	return out, err
}

// SetCommunicationDerivedLink is the normalizer's exclusive write path.
func (s *Store) SetCommunicationDerivedLink(ctx context.Context, id, fromDomain string, clientID *string, link model.LinkStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE communications SET from_domain=?, client_id=?, link_status=?, updated_at=? WHERE id=?`,
		fromDomain, clientID, link, time.Now().UTC(), id)
	return err
}

// --- commitments ----------------------------------------------------------

func (s *Store) UpsertCommitment(ctx context.Context, c *model.Commitment) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO commitments (id, communication_id, client_id, task_id, kind, status, description, due_date, created_at, updated_at)
		VALUES (:id, :communication_id, :client_id, :task_id, :kind, :status, :description, :due_date, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status, description=excluded.description, due_date=excluded.due_date, updated_at=excluded.updated_at`, c)
	return err
}

func (s *Store) ListOpenCommitments(ctx context.Context) ([]model.Commitment, error) {
	var out []model.Commitment
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM commitments WHERE status = 'open' ORDER BY created_at`)
	return out, err
}

// ListCommitments returns every commitment regardless of status, so callers
// that need a fulfilled/broken ratio (client health scoring) aren't limited
// to the open subset.
func (s *Store) ListCommitments(ctx context.Context) ([]model.Commitment, error) {
	var out []model.Commitment
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM commitments ORDER BY created_at`)
	return out, err
}

// --- invoices ----------------------------------------------------------

func (s *Store) UpsertInvoiceFromCollector(ctx context.Context, inv *model.Invoice) error {
	now := time.Now().UTC()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO invoices (id, source_id, client_id, amount, currency, issue_date, due_date, paid_date, status, created_at, updated_at)
		VALUES (:id, :source_id, :client_id, :amount, :currency, :issue_date, :due_date, :paid_date, :status, :created_at, :updated_at)
		ON CONFLICT(source_id) DO UPDATE SET
			client_id=excluded.client_id, amount=excluded.amount, currency=excluded.currency, issue_date=excluded.issue_date,
			due_date=excluded.due_date, paid_date=excluded.paid_date, status=excluded.status, updated_at=excluded.updated_at`, inv)
	return err
}

func (s *Store) ListUnpaidInvoices(ctx context.Context) ([]model.Invoice, error) {
	var out []model.Invoice
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM invoices WHERE paid_date IS NULL AND status != 'void' ORDER BY due_date`)
	return out, err
}

// SetInvoiceAgingBucket is the normalizer's exclusive write path.
func (s *Store) SetInvoiceAgingBucket(ctx context.Context, id string, bucket model.AgingBucket) error {
	_, err := s.db.ExecContext(ctx, `UPDATE invoices SET aging_bucket=?, updated_at=? WHERE id=?`, bucket, time.Now().UTC(), id)
	return err
}

// --- events ----------------------------------------------------------

func (s *Store) UpsertEventFromCollector(ctx context.Context, e *model.Event, attendeesJSON string) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, source_id, title, start_at, end_at, attendees_json, location, task_id, prep_notes_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			title=excluded.title, start_at=excluded.start_at, end_at=excluded.end_at, attendees_json=excluded.attendees_json,
			location=excluded.location, task_id=excluded.task_id, prep_notes_json=excluded.prep_notes_json, updated_at=excluded.updated_at`,
		e.ID, e.SourceID, e.Title, e.Start, e.End, attendeesJSON, e.Location, e.TaskID, e.PrepNotes, e.CreatedAt, e.UpdatedAt)
	return err
}

func (s *Store) ListUpcomingEvents(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	var out []model.Event
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM events WHERE start_at BETWEEN ? AND ? ORDER BY start_at`, from, to)
	return out, err
}

// --- resolution queue ----------------------------------------------------------

// UpsertResolutionItem implements §4.5's upsert contract: uniqueness on
// (entity_type, entity_id, issue_type); an existing row has its context
// refreshed, a new row is created with created_at=now.
func (s *Store) UpsertResolutionItem(ctx context.Context, entityType model.EntityType, entityID, issueType string, priority int, contextJSON string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolution_queue (entity_type, entity_id, issue_type, priority, context_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, entity_id, issue_type) DO UPDATE SET
			priority=excluded.priority, context_json=excluded.context_json
		WHERE resolution_queue.resolved_at IS NULL`,
		entityType, entityID, issueType, priority, contextJSON, now)
	return err
}

// ResolveItem marks a resolution_queue row resolved and mirrors it into the
// resolved_queue_items audit table.
func (s *Store) ResolveItem(ctx context.Context, id int64, by, action string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var item model.ResolutionQueueItem
	if err := tx.GetContext(ctx, &item, `SELECT * FROM resolution_queue WHERE id = ?`, id); err != nil {
		if isNoRows(err) {
			return ErrNotFound
		}
		return err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE resolution_queue SET resolved_at=? WHERE id=?`, now, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO resolved_queue_items (original_id, entity_type, entity_id, issue_type, priority, context_json, created_at, resolved_at, resolved_by, action)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.EntityType, item.EntityID, item.IssueType, item.Priority, item.Context, item.CreatedAt, now, by, action); err != nil {
		return err
	}
	return tx.Commit()
}

// ListUnresolvedItems returns the queue ordered priority ASC (1 highest),
// created_at ASC, per §4.5.
func (s *Store) ListUnresolvedItems(ctx context.Context) ([]model.ResolutionQueueItem, error) {
	var out []model.ResolutionQueueItem
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM resolution_queue WHERE resolved_at IS NULL ORDER BY priority ASC, created_at ASC`)
	return out, err
}

// SnoozeResolutionItem pushes an unresolved item's expires_at forward,
// backing the inbox's "snooze" action (§6).
func (s *Store) SnoozeResolutionItem(ctx context.Context, id int64, until time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE resolution_queue SET expires_at=? WHERE id=? AND resolved_at IS NULL`, until, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- pending actions ----------------------------------------------------------

// UpsertPendingAction implements the moves engine's dedup contract (§4.7):
// an existing non-terminal action with the same idempotency key is not
// recreated, only its proposed_at is refreshed.
func (s *Store) UpsertPendingAction(ctx context.Context, a *model.PendingAction) error {
	now := time.Now().UTC()
	if a.ProposedAt.IsZero() {
		a.ProposedAt = now
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO pending_actions (idempotency_key, action_type, entity_type, entity_id, payload_json, rationale, risk_level, approval_mode, status, proposed_at)
		VALUES (:idempotency_key, :action_type, :entity_type, :entity_id, :payload_json, :rationale, :risk_level, :approval_mode, :status, :proposed_at)
		ON CONFLICT(idempotency_key) DO UPDATE SET
			proposed_at=excluded.proposed_at
		WHERE pending_actions.status IN ('pending','approved')`, a)
	return err
}

func (s *Store) ListPendingActions(ctx context.Context, status model.PendingActionStatus) ([]model.PendingAction, error) {
	var out []model.PendingAction
	var err error
	if status == "" {
		err = s.db.SelectContext(ctx, &out, `SELECT * FROM pending_actions ORDER BY proposed_at DESC`)
	} else {
		err = s.db.SelectContext(ctx, &out, `SELECT * FROM pending_actions WHERE status = ? ORDER BY proposed_at DESC`, status)
	}
	return out, err
}

func (s *Store) DecidePendingAction(ctx context.Context, id int64, status model.PendingActionStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE pending_actions SET status=?, decided_at=? WHERE id=?`, status, time.Now().UTC(), id)
	return err
}

// --- sync_state ----------------------------------------------------------

func (s *Store) RecordSyncStart(ctx context.Context, source string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (source, last_sync, items_synced, error) VALUES (?, ?, 0, '')
		ON CONFLICT(source) DO UPDATE SET last_sync=excluded.last_sync`, source, now)
	return err
}

func (s *Store) RecordSyncSuccess(ctx context.Context, source string, itemsSynced int) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `UPDATE sync_state SET last_success=?, items_synced=?, error='' WHERE source=?`, now, itemsSynced, source)
	return err
}

func (s *Store) RecordSyncError(ctx context.Context, source, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sync_state SET error=? WHERE source=?`, errMsg, source)
	return err
}

func (s *Store) GetSyncState(ctx context.Context, source string) (*model.SyncState, error) {
	var st model.SyncState
	err := s.db.GetContext(ctx, &st, `SELECT * FROM sync_state WHERE source = ?`, source)
	if isNoRows(err) {
		return &model.SyncState{Source: source}, nil
	}
	return &st, err
}

func (s *Store) ListSyncStates(ctx context.Context) ([]model.SyncState, error) {
	var out []model.SyncState
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM sync_state ORDER BY source`)
	return out, err
}

// --- cycle_logs ----------------------------------------------------------

func (s *Store) InsertCycleLog(ctx context.Context, log *model.CycleLog) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO cycle_logs (cycle_number, started_at, finished_at, success, failed_phase, phase_timings_json)
		VALUES (:cycle_number, :started_at, :finished_at, :success, :failed_phase, :phase_timings_json)
		ON CONFLICT(cycle_number) DO UPDATE SET
			finished_at=excluded.finished_at, success=excluded.success, failed_phase=excluded.failed_phase, phase_timings_json=excluded.phase_timings_json`, log)
	return err
}

func (s *Store) LatestCycleLog(ctx context.Context) (*model.CycleLog, error) {
	var log model.CycleLog
	err := s.db.GetContext(ctx, &log, `SELECT * FROM cycle_logs ORDER BY cycle_number DESC LIMIT 1`)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	return &log, err
}
