package entitychain

import (
	"testing"

	"github.com/antigravity-dev/agencyos/internal/model"
)

func strp(s string) *string { return &s }

func TestResolveProjectHappyPath(t *testing.T) {
	g := NewGraph(
		[]model.Brand{{ID: "brand_1", ClientID: "client_1"}},
		[]model.Client{{ID: "client_1", Name: "Acme"}},
	)
	res := g.ResolveProject(model.Project{ID: "proj_1", BrandID: strp("brand_1")})
	if res.Broken {
		t.Fatalf("expected a resolved chain, got broken")
	}
	if res.ClientID == nil || *res.ClientID != "client_1" {
		t.Fatalf("expected client_1, got %v", res.ClientID)
	}
}

func TestResolveProjectInternalNeverBroken(t *testing.T) {
	g := NewGraph(nil, nil)
	res := g.ResolveProject(model.Project{ID: "internal_proj", IsInternal: true})
	if res.Broken {
		t.Fatalf("internal projects should never report a broken chain")
	}
}

func TestResolveProjectDanglingBrand(t *testing.T) {
	g := NewGraph(nil, nil)
	res := g.ResolveProject(model.Project{ID: "proj_1", BrandID: strp("ghost_brand")})
	if !res.Broken {
		t.Fatalf("expected broken chain for a brand_id with no matching brand row")
	}
}

func TestResolveProjectBrandWithDanglingClient(t *testing.T) {
	g := NewGraph([]model.Brand{{ID: "brand_1", ClientID: "ghost_client"}}, nil)
	res := g.ResolveProject(model.Project{ID: "proj_1", BrandID: strp("brand_1")})
	if !res.Broken {
		t.Fatalf("expected broken chain when the brand's client does not exist")
	}
	if res.BrandID == nil || *res.BrandID != "brand_1" {
		t.Fatalf("expected partial resolution to still carry the brand id")
	}
}

func TestResolveTaskWithNoProject(t *testing.T) {
	g := NewGraph(nil, nil)
	res := g.ResolveTask(model.Task{ID: "task_1"}, map[string]model.Project{})
	if res.Broken {
		t.Fatalf("a task with no project_id is unlinked, not broken")
	}
	if res.ClientID != nil {
		t.Fatalf("expected no client resolution for an unlinked task")
	}
}

func TestResolveTaskDanglingProject(t *testing.T) {
	g := NewGraph(nil, nil)
	res := g.ResolveTask(model.Task{ID: "task_1", ProjectID: strp("ghost_project")}, map[string]model.Project{})
	if !res.Broken {
		t.Fatalf("expected broken chain for a project_id with no matching project row")
	}
}
