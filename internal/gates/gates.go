// Package gates evaluates the fixed battery of data-integrity invariants
// and coverage thresholds defined in §4.4, then rolls results up into a
// per-domain confidence classification (reliable/degraded/blocked).
package gates

import (
	"context"
	"fmt"

	"github.com/antigravity-dev/agencyos/internal/config"
	"github.com/antigravity-dev/agencyos/internal/model"
	"github.com/antigravity-dev/agencyos/internal/store"
)

// Result is one gate's evaluation outcome.
type Result struct {
	Pass    bool     `json:"pass"`
	Value   *float64 `json:"value,omitempty"`
	Message string   `json:"message"`
}

// Report maps gate name to its evaluation result.
type Report map[string]Result

// DomainLevel is the confidence classification of a UI domain.
type DomainLevel string

const (
	DomainReliable DomainLevel = "reliable"
	DomainDegraded DomainLevel = "degraded"
	DomainBlocked  DomainLevel = "blocked"
)

// domainGates is the domain confidence table from §4.4.
var domainGates = map[string]struct {
	Blocking []string
	Quality  []string
}{
	"delivery": {Blocking: []string{"data_integrity"}, Quality: []string{"project_brand_required", "project_client_populated"}},
	"clients":  {Blocking: []string{"data_integrity"}, Quality: []string{"client_coverage"}},
	"cash":     {Blocking: []string{"data_integrity", "finance_ar_clean"}, Quality: []string{"finance_ar_coverage"}},
	"comms":    {Blocking: []string{"data_integrity"}, Quality: []string{"commitment_ready"}},
	"capacity": {Blocking: []string{"data_integrity", "capacity_baseline"}, Quality: []string{}},
}

// Engine evaluates the gate battery against a post-normalization store.
type Engine struct {
	store *store.Store
	cfg   config.Gates
}

func New(st *store.Store, cfg config.Gates) *Engine {
	return &Engine{store: st, cfg: cfg}
}

// Evaluate runs every gate in the battery and returns the full report.
func (e *Engine) Evaluate(ctx context.Context) (Report, error) {
	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("gates: list tasks: %w", err)
	}
	projects, err := e.store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("gates: list projects: %w", err)
	}
	brands, err := e.store.ListBrands(ctx)
	if err != nil {
		return nil, fmt.Errorf("gates: list brands: %w", err)
	}
	comms, err := e.store.ListCommunications(ctx)
	if err != nil {
		return nil, fmt.Errorf("gates: list communications: %w", err)
	}
	invoices, err := e.store.ListUnpaidInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("gates: list invoices: %w", err)
	}
	members, err := e.store.ListTeamMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("gates: list team members: %w", err)
	}

	report := Report{}
	report["data_integrity"] = dataIntegrity(tasks, projects, brands, comms)
	report["project_brand_required"] = projectBrandRequired(projects)
	report["project_brand_consistency"] = projectBrandConsistency(projects, brands)
	report["project_client_populated"] = projectClientPopulated(projects)
	report["internal_project_client_null"] = internalProjectClientNull(projects)
	report["client_coverage"] = ratioGate(clientCoverageRatio(tasks), e.cfg.ClientCoverageMin, "client_coverage")
	report["commitment_ready"] = ratioGate(commitmentReadyRatio(comms), e.cfg.CommitmentReadyMin, "commitment_ready")
	report["finance_ar_coverage"] = ratioGate(financeARCoverageRatio(invoices), e.cfg.FinanceARCoverageMin, "finance_ar_coverage")
	report["finance_ar_clean"] = financeARClean(invoices)
	report["capacity_baseline"] = capacityBaseline(members)

	return report, nil
}

// DomainConfidence rolls a gate report up into per-domain levels (§4.4): a
// domain is blocked if any blocking gate fails, else degraded if any
// quality gate fails, else reliable.
func DomainConfidence(report Report) map[string]DomainLevel {
	out := make(map[string]DomainLevel, len(domainGates))
	for domain, gates := range domainGates {
		level := DomainReliable
		for _, g := range gates.Quality {
			if res, ok := report[g]; ok && !res.Pass {
				level = DomainDegraded
			}
		}
		for _, g := range gates.Blocking {
			if res, ok := report[g]; ok && !res.Pass {
				level = DomainBlocked
				break
			}
		}
		out[domain] = level
	}
	return out
}

func boolResult(pass bool, msg string) Result {
	return Result{Pass: pass, Message: msg}
}

func ratioGate(ratio float64, min float64, name string) Result {
	v := ratio
	pass := ratio >= min
	msg := fmt.Sprintf("%s: %.2f (min %.2f)", name, ratio, min)
	return Result{Pass: pass, Value: &v, Message: msg}
}

// dataIntegrity checks all six invariants from §3 in one pass.
func dataIntegrity(tasks []model.Task, projects []model.Project, brands []model.Brand, comms []model.Communication) Result {
	projectsByID := make(map[string]model.Project, len(projects))
	for _, p := range projects {
		projectsByID[p.ID] = p
	}
	brandsByID := make(map[string]model.Brand, len(brands))
	for _, b := range brands {
		brandsByID[b.ID] = b
	}

	for _, t := range tasks {
		switch t.ProjectLinkStatus {
		case model.LinkLinked:
			if t.ProjectID == nil {
				return boolResult(false, fmt.Sprintf("task %s: linked but project_id is nil", t.ID))
			}
		case model.LinkUnlinked:
			if t.ProjectID != nil {
				return boolResult(false, fmt.Sprintf("task %s: unlinked but project_id is set", t.ID))
			}
		case model.LinkPartial:
			if t.ProjectID == nil {
				return boolResult(false, fmt.Sprintf("task %s: partial but project_id is nil", t.ID))
			}
		}
		if t.ClientLinkStatus == model.LinkNA {
			if t.ProjectID == nil {
				return boolResult(false, fmt.Sprintf("task %s: client_link_status n/a with no project", t.ID))
			}
			proj, ok := projectsByID[*t.ProjectID]
			if !ok || !proj.IsInternal {
				return boolResult(false, fmt.Sprintf("task %s: client_link_status n/a but resolved project is not internal", t.ID))
			}
		}
	}

	for _, p := range projects {
		if p.IsInternal && (p.ClientID != nil || p.BrandID != nil) {
			return boolResult(false, fmt.Sprintf("project %s: internal project has non-null client/brand", p.ID))
		}
	}

	for _, c := range comms {
		if c.LinkStatus == model.LinkLinked && c.ClientID == nil {
			return boolResult(false, fmt.Sprintf("communication %s: linked but client_id is nil", c.ID))
		}
	}

	return boolResult(true, "all invariants hold")
}

func projectBrandRequired(projects []model.Project) Result {
	for _, p := range projects {
		if !p.IsInternal && p.BrandID == nil {
			return boolResult(false, fmt.Sprintf("project %s: non-internal with no brand", p.ID))
		}
	}
	return boolResult(true, "every non-internal project has a brand")
}

func projectBrandConsistency(projects []model.Project, brands []model.Brand) Result {
	brandsByID := make(map[string]model.Brand, len(brands))
	for _, b := range brands {
		brandsByID[b.ID] = b
	}
	for _, p := range projects {
		if p.BrandID == nil {
			continue
		}
		b, ok := brandsByID[*p.BrandID]
		if !ok {
			continue
		}
		if p.ClientID == nil || *p.ClientID != b.ClientID {
			return boolResult(false, fmt.Sprintf("project %s: client_id inconsistent with brand %s", p.ID, b.ID))
		}
	}
	return boolResult(true, "project/brand client ids consistent")
}

func projectClientPopulated(projects []model.Project) Result {
	for _, p := range projects {
		if !p.IsInternal && p.ClientID == nil {
			return boolResult(false, fmt.Sprintf("project %s: non-internal with no client", p.ID))
		}
	}
	return boolResult(true, "every non-internal project has a client")
}

func internalProjectClientNull(projects []model.Project) Result {
	for _, p := range projects {
		if p.IsInternal && (p.ClientID != nil || p.BrandID != nil) {
			return boolResult(false, fmt.Sprintf("project %s: internal but client/brand set", p.ID))
		}
	}
	return boolResult(true, "every internal project has null client/brand")
}

func clientCoverageRatio(tasks []model.Task) float64 {
	var linked, denom int
	for _, t := range tasks {
		if t.ClientLinkStatus == model.LinkNA {
			continue
		}
		denom++
		if t.ClientLinkStatus == model.LinkLinked {
			linked++
		}
	}
	if denom == 0 {
		return 1.0
	}
	return float64(linked) / float64(denom)
}

func commitmentReadyRatio(comms []model.Communication) float64 {
	if len(comms) == 0 {
		return 1.0
	}
	var ready int
	for _, c := range comms {
		if len(c.BodyText) >= 50 {
			ready++
		}
	}
	return float64(ready) / float64(len(comms))
}

func financeARCoverageRatio(invoices []model.Invoice) float64 {
	if len(invoices) == 0 {
		return 1.0
	}
	var covered int
	for _, inv := range invoices {
		if inv.ClientID != nil && inv.DueDate != nil {
			covered++
		}
	}
	return float64(covered) / float64(len(invoices))
}

func financeARClean(invoices []model.Invoice) Result {
	for _, inv := range invoices {
		if inv.ClientID == nil || inv.DueDate == nil {
			return boolResult(false, fmt.Sprintf("invoice %s: missing client_id or due_date", inv.ID))
		}
	}
	return boolResult(true, "every AR invoice has client_id and due_date")
}

func capacityBaseline(members []model.TeamMember) Result {
	for _, m := range members {
		if m.WeeklyHours <= 0 {
			return boolResult(false, fmt.Sprintf("team_member %s: weekly_hours not positive", m.ID))
		}
	}
	return boolResult(true, "every capacity lane has positive weekly_hours")
}
