// Package normalizer implements the single-pass, idempotent derivation
// step that runs after every COLLECT phase (§4.3). It is the only writer
// of derived fields: task link statuses and brand/client ids, communication
// from_domain/client_id/link_status, invoice aging buckets, and the
// per-client financial rollups and health scores.
package normalizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/antigravity-dev/agencyos/internal/entitychain"
	"github.com/antigravity-dev/agencyos/internal/model"
	"github.com/antigravity-dev/agencyos/internal/scoring"
	"github.com/antigravity-dev/agencyos/internal/store"
)

// Normalizer owns the derivation pass. It holds no mutable state between
// runs — every field is recomputed from the store each call, which is what
// gives the idempotence guarantee in §8 property 6.
type Normalizer struct {
	store  *store.Store
	logger *slog.Logger
}

func New(st *store.Store, logger *slog.Logger) *Normalizer {
	return &Normalizer{store: st, logger: logger}
}

// Result summarizes one normalization pass for the cycle log.
type Result struct {
	TasksProcessed          int
	CommunicationsProcessed int
	InvoicesProcessed       int
}

// Run executes the four-step contract in §4.3 against the current store
// state, using today as the reference date for aging-bucket computation.
func (n *Normalizer) Run(ctx context.Context, today time.Time) (Result, error) {
	var res Result

	projects, err := n.store.ListProjects(ctx)
	if err != nil {
		return res, fmt.Errorf("normalizer: list projects: %w", err)
	}
	brands, err := n.store.ListBrands(ctx)
	if err != nil {
		return res, fmt.Errorf("normalizer: list brands: %w", err)
	}
	clients, err := n.store.ListClients(ctx)
	if err != nil {
		return res, fmt.Errorf("normalizer: list clients: %w", err)
	}

	graph := entitychain.NewGraph(brands, clients)
	projectsByID := make(map[string]model.Project, len(projects))
	for _, p := range projects {
		projectsByID[p.ID] = p
	}

	if err := n.normalizeTasks(ctx, graph, projectsByID, &res); err != nil {
		return res, err
	}
	if err := n.normalizeCommunications(ctx, &res); err != nil {
		return res, err
	}
	if err := n.normalizeInvoices(ctx, today, &res); err != nil {
		return res, err
	}
	if err := n.rebuildClientFinancials(ctx, today); err != nil {
		return res, err
	}

	return res, nil
}

func (n *Normalizer) normalizeTasks(ctx context.Context, graph *entitychain.Graph, projectsByID map[string]model.Project, res *Result) error {
	tasks, err := n.store.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("normalizer: list tasks: %w", err)
	}

	for _, t := range tasks {
		projectLink, clientLink, brandID, clientID := resolveTaskLinks(t, graph, projectsByID)
		if err := n.store.SetTaskDerivedLink(ctx, t.ID, brandID, clientID, projectLink, clientLink); err != nil {
			return fmt.Errorf("normalizer: set task link %s: %w", t.ID, err)
		}
		res.TasksProcessed++
	}
	return nil
}

// resolveTaskLinks implements the derivation rules in §3:
//
//	project_link_status='linked'  iff project_id set AND chain resolves (or internal)
//	project_link_status='unlinked' iff project_id is null
//	project_link_status='partial' iff project_id set but chain broken
//	client_link_status='n/a' iff resolved project is internal
//	client_link_status='linked' iff resolved client is not null
//	client_link_status='unlinked' otherwise
func resolveTaskLinks(t model.Task, graph *entitychain.Graph, projectsByID map[string]model.Project) (projectLink, clientLink model.LinkStatus, brandID, clientID *string) {
	if t.ProjectID == nil {
		return model.LinkUnlinked, model.LinkUnlinked, nil, nil
	}

	proj, ok := projectsByID[*t.ProjectID]
	if !ok {
		return model.LinkPartial, model.LinkUnlinked, nil, nil
	}

	if proj.IsInternal {
		return model.LinkLinked, model.LinkNA, nil, nil
	}

	resolution := graph.ResolveProject(proj)
	if resolution.Broken {
		return model.LinkPartial, model.LinkUnlinked, resolution.BrandID, nil
	}
	if resolution.ClientID == nil {
		return model.LinkPartial, model.LinkUnlinked, resolution.BrandID, nil
	}

	return model.LinkLinked, model.LinkLinked, resolution.BrandID, resolution.ClientID
}

func (n *Normalizer) normalizeCommunications(ctx context.Context, res *Result) error {
	comms, err := n.store.ListCommunications(ctx)
	if err != nil {
		return fmt.Errorf("normalizer: list communications: %w", err)
	}

	for _, c := range comms {
		domain := fromDomain(c.Sender)

		var clientID *string
		if resolved, err := n.store.ResolveIdentity(ctx, strings.ToLower(c.Sender), domain); err != nil {
			return fmt.Errorf("normalizer: resolve identity for %s: %w", c.ID, err)
		} else {
			clientID = resolved
		}

		link := model.LinkUnlinked
		if clientID != nil {
			link = model.LinkLinked
		}

		if err := n.store.SetCommunicationDerivedLink(ctx, c.ID, domain, clientID, link); err != nil {
			return fmt.Errorf("normalizer: set communication link %s: %w", c.ID, err)
		}
		res.CommunicationsProcessed++
	}
	return nil
}

// fromDomain extracts and lowercases the substring after "@" in an email
// address; an address with no "@" yields an empty domain.
func fromDomain(sender string) string {
	idx := strings.LastIndex(sender, "@")
	if idx < 0 || idx == len(sender)-1 {
		return ""
	}
	return strings.ToLower(sender[idx+1:])
}

func (n *Normalizer) normalizeInvoices(ctx context.Context, today time.Time, res *Result) error {
	invoices, err := n.store.ListUnpaidInvoices(ctx)
	if err != nil {
		return fmt.Errorf("normalizer: list unpaid invoices: %w", err)
	}

	for _, inv := range invoices {
		bucket := AgingBucketFor(today, inv.DueDate)
		if err := n.store.SetInvoiceAgingBucket(ctx, inv.ID, bucket); err != nil {
			return fmt.Errorf("normalizer: set invoice aging %s: %w", inv.ID, err)
		}
		res.InvoicesProcessed++
	}
	return nil
}

// AgingBucketFor computes the aging bucket from max(0, today-due_date) in
// days, per §3's boundary laws (§8): due_date=today -> current,
// today=due+30 -> 1-30, today=due+31 -> 31-60, today=due+90 -> 61-90,
// today=due+91 -> 90+.
func AgingBucketFor(today time.Time, dueDate *time.Time) model.AgingBucket {
	if dueDate == nil {
		return model.AgingCurrent
	}
	days := int(today.Truncate(24 * time.Hour).Sub(dueDate.Truncate(24*time.Hour)).Hours() / 24)
	if days < 0 {
		days = 0
	}
	switch {
	case days == 0:
		return model.AgingCurrent
	case days <= 30:
		return model.Aging1to30
	case days <= 60:
		return model.Aging31to60
	case days <= 90:
		return model.Aging61to90
	default:
		return model.Aging90Plus
	}
}

// rebuildClientFinancials recomputes each client's financial_ar_outstanding
// (sum of unpaid invoice amounts), financial_ar_aging (worst bucket among
// that client's unpaid invoices), and health_score (the weighted blend in
// scoring.ClientHealthScore), per §4.3 point 4 and §4.6.
func (n *Normalizer) rebuildClientFinancials(ctx context.Context, today time.Time) error {
	invoices, err := n.store.ListUnpaidInvoices(ctx)
	if err != nil {
		return fmt.Errorf("normalizer: list unpaid invoices for rollup: %w", err)
	}
	clients, err := n.store.ListClients(ctx)
	if err != nil {
		return fmt.Errorf("normalizer: list clients for rollup: %w", err)
	}
	projects, err := n.store.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("normalizer: list projects for rollup: %w", err)
	}
	tasks, err := n.store.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("normalizer: list tasks for rollup: %w", err)
	}
	comms, err := n.store.ListCommunications(ctx)
	if err != nil {
		return fmt.Errorf("normalizer: list communications for rollup: %w", err)
	}
	commitments, err := n.store.ListCommitments(ctx)
	if err != nil {
		return fmt.Errorf("normalizer: list commitments for rollup: %w", err)
	}
	members, err := n.store.ListTeamMembers(ctx)
	if err != nil {
		return fmt.Errorf("normalizer: list team members for rollup: %w", err)
	}

	outstanding := make(map[string]decimal.Decimal)
	worst := make(map[string]model.AgingBucket)
	for _, inv := range invoices {
		if inv.ClientID == nil {
			continue
		}
		cid := *inv.ClientID
		outstanding[cid] = outstanding[cid].Add(inv.Amount)
		bucket := AgingBucketFor(today, inv.DueDate)
		if worseBucket(bucket, worst[cid]) {
			worst[cid] = bucket
		}
	}

	tasksByProject := make(map[string][]model.Task)
	for _, t := range tasks {
		if t.ProjectID != nil {
			tasksByProject[*t.ProjectID] = append(tasksByProject[*t.ProjectID], t)
		}
	}
	projectsByClient := make(map[string][]model.Project)
	for _, p := range projects {
		if p.ClientID != nil {
			projectsByClient[*p.ClientID] = append(projectsByClient[*p.ClientID], p)
		}
	}
	commitmentsByClient := make(map[string][]model.Commitment)
	for _, cm := range commitments {
		if cm.ClientID != nil {
			commitmentsByClient[*cm.ClientID] = append(commitmentsByClient[*cm.ClientID], cm)
		}
	}

	// Responsiveness and capacity have no per-client linkage in the store
	// (communications only carry a client_id once resolved, which makes a
	// per-client linked ratio tautological, and team members aren't scoped
	// to a client at all) so both sub-scores are computed once, company-wide,
	// and applied uniformly across clients.
	responsiveness := responsivenessScore(comms)
	capacity := capacityScore(members, tasks)

	for _, c := range clients {
		total := outstanding[c.ID]
		bucket := worst[c.ID]
		if bucket == "" {
			bucket = model.AgingCurrent
		}

		health := scoring.ClientHealthScore(scoring.ClientHealthInputs{
			Delivery:       deliveryScore(projectsByClient[c.ID], tasksByProject, today),
			Finance:        financeScore(bucket),
			Responsiveness: responsiveness,
			Commitments:    commitmentsScore(commitmentsByClient[c.ID]),
			Capacity:       capacity,
		})
		trend := relationshipTrend(health)

		if err := n.store.UpdateClientScores(ctx, c.ID, health, total.String(), bucket, trend); err != nil {
			return fmt.Errorf("normalizer: update client financials %s: %w", c.ID, err)
		}
	}
	return nil
}

// deliveryScore averages each of the client's non-internal projects' slip
// risk (inverted to a 0-100 health scale); a client with no projects has no
// delivery signal and scores neutral-healthy.
func deliveryScore(projects []model.Project, tasksByProject map[string][]model.Task, now time.Time) float64 {
	if len(projects) == 0 {
		return 100
	}
	var total float64
	for _, p := range projects {
		projectTasks := tasksByProject[p.ID]
		var done, blocked int
		for _, t := range projectTasks {
			if t.Status == model.TaskDone {
				done++
			}
			if t.Status == model.TaskBlocked {
				blocked++
			}
		}
		remaining, blocking := 0.0, 0.0
		if len(projectTasks) > 0 {
			remaining = float64(len(projectTasks)-done) / float64(len(projectTasks))
			blocking = float64(blocked) / float64(len(projectTasks))
		}
		daysToDeadline, passed := 0.0, false
		if p.Deadline != nil {
			daysToDeadline = p.Deadline.Sub(now).Hours() / 24
			passed = daysToDeadline < 0
		}
		slipRisk := scoring.SlipRiskScore(scoring.SlipRiskInputs{
			DaysToDeadline:     daysToDeadline,
			DeadlinePassed:     passed,
			RemainingWorkRatio: remaining,
			BlockingSeverity:   blocking,
		})
		total += (1 - slipRisk) * 100
	}
	return total / float64(len(projects))
}

// financeScore maps the client's worst AR aging bucket to a 0-100 scale:
// current=100, each bucket older subtracts 25.
func financeScore(bucket model.AgingBucket) float64 {
	return 100 - float64(bucketSeverity[bucket])*25
}

// responsivenessScore is the company-wide ratio of communications whose
// sender identity has been resolved to a client.
func responsivenessScore(comms []model.Communication) float64 {
	if len(comms) == 0 {
		return 100
	}
	var linked int
	for _, c := range comms {
		if c.LinkStatus == model.LinkLinked {
			linked++
		}
	}
	return float64(linked) / float64(len(comms)) * 100
}

// commitmentsScore is the ratio of the client's commitments that were not
// broken; a client with no commitments has no signal and scores
// neutral-healthy.
func commitmentsScore(commitments []model.Commitment) float64 {
	if len(commitments) == 0 {
		return 100
	}
	var broken int
	for _, cm := range commitments {
		if cm.Status == model.CommitmentBroken {
			broken++
		}
	}
	return (1 - float64(broken)/float64(len(commitments))) * 100
}

// capacityScore is the company-wide inverse of team over-utilization: a
// lane running at or under its weekly hours scores 100, one running double
// scores 0.
func capacityScore(members []model.TeamMember, tasks []model.Task) float64 {
	if len(members) == 0 {
		return 100
	}
	estimatedMinutes := make(map[string]int)
	for _, t := range tasks {
		if t.AssigneeTeamMemberID == nil || t.Status == model.TaskDone || t.DurationEstimate == nil {
			continue
		}
		estimatedMinutes[*t.AssigneeTeamMemberID] += *t.DurationEstimate
	}
	var total float64
	for _, m := range members {
		if m.WeeklyHours <= 0 {
			total += 100
			continue
		}
		utilization := float64(estimatedMinutes[m.ID]) / 60 / m.WeeklyHours
		overage := utilization - 1
		if overage < 0 {
			overage = 0
		}
		if overage > 1 {
			overage = 1
		}
		total += (1 - overage) * 100
	}
	return total / float64(len(members))
}

var bucketSeverity = map[model.AgingBucket]int{
	model.AgingCurrent: 0,
	model.Aging1to30:   1,
	model.Aging31to60:  2,
	model.Aging61to90:  3,
	model.Aging90Plus:  4,
}

func worseBucket(candidate, current model.AgingBucket) bool {
	if current == "" {
		return true
	}
	return bucketSeverity[candidate] > bucketSeverity[current]
}

// relationshipTrend buckets the freshly computed health score into a
// display label; it carries no state of its own, so it stays idempotent
// across runs as long as the health score it's derived from does.
func relationshipTrend(currentHealth float64) string {
	switch {
	case currentHealth >= 70:
		return "stable"
	case currentHealth >= 40:
		return "watch"
	default:
		return "at_risk"
	}
}
