// Package entitychain resolves the project → brand → client ownership
// chain that the normalizer uses to derive a task's brand_id/client_id and
// link-status enums (§3, §4.3). It replaces the teacher's generic
// dependency-graph package with a chain specific to this three-level tree,
// keeping the same nil-safe, clone-on-read discipline.
package entitychain

import "github.com/antigravity-dev/agencyos/internal/model"

// Resolution is the outcome of walking a task or project up to its client.
type Resolution struct {
	BrandID  *string
	ClientID *string
	// Broken is true when a project_id/brand_id reference points at a row
	// that does not exist in Brands/Clients — a "partial" chain (§3).
	Broken bool
}

// Graph is an in-memory snapshot of the brand/client tables used to resolve
// chains for an entire normalizer pass without re-querying the store per
// task. Build once per cycle from Store.ListBrands/ListClients.
type Graph struct {
	brands  map[string]model.Brand
	clients map[string]model.Client
}

// NewGraph builds a chain-resolution graph from the current brand and
// client rows. It takes defensive copies so callers mutating their own
// slices afterward cannot corrupt the graph.
func NewGraph(brands []model.Brand, clients []model.Client) *Graph {
	g := &Graph{
		brands:  make(map[string]model.Brand, len(brands)),
		clients: make(map[string]model.Client, len(clients)),
	}
	for _, b := range brands {
		g.brands[b.ID] = b
	}
	for _, c := range clients {
		g.clients[c.ID] = c
	}
	return g
}

// ResolveProject walks a project to its client through its brand. A nil
// Graph or an internal project resolves to an empty, non-broken
// Resolution; a non-internal project with no brand resolves as broken,
// the same as one whose brand or client is missing from the graph.
func (g *Graph) ResolveProject(p model.Project) Resolution {
	if g == nil || p.IsInternal {
		return Resolution{}
	}
	if p.BrandID == nil {
		return Resolution{Broken: true}
	}
	brand, ok := g.brands[*p.BrandID]
	if !ok {
		return Resolution{Broken: true}
	}
	clientID := brand.ClientID
	if _, ok := g.clients[clientID]; !ok {
		return Resolution{BrandID: strPtr(brand.ID), Broken: true}
	}
	return Resolution{BrandID: strPtr(brand.ID), ClientID: strPtr(clientID)}
}

// ResolveTask walks a task's project to its client. A task with no
// project_id resolves to an empty Resolution with Broken=false (the
// normalizer maps that to project_link_status=unlinked, not partial).
func (g *Graph) ResolveTask(t model.Task, projects map[string]model.Project) Resolution {
	if t.ProjectID == nil {
		return Resolution{}
	}
	proj, ok := projects[*t.ProjectID]
	if !ok {
		return Resolution{Broken: true}
	}
	return g.ResolveProject(proj)
}

func strPtr(s string) *string {
	return &s
}
