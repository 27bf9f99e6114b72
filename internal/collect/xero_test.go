package collect

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/antigravity-dev/agencyos/internal/config"
	"github.com/antigravity-dev/agencyos/internal/model"
)

type fakeInvoiceFetcher struct {
	artifacts []InvoiceArtifact
	err       error
}

func (f fakeInvoiceFetcher) FetchInvoices(ctx context.Context, pageSize int) ([]InvoiceArtifact, error) {
	return f.artifacts, f.err
}

func TestInvoiceCollectorCreatesClientByBilledToName(t *testing.T) {
	st := openCollectTestStore(t)
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, -40)

	fetcher := fakeInvoiceFetcher{artifacts: []InvoiceArtifact{
		{SourceID: "inv1", ClientName: "Acme Corp", Amount: decimal.NewFromInt(500), Currency: "USD", IssueDate: now, DueDate: &due, Status: string(model.InvoiceSent)},
	}}
	c := NewInvoiceCollector(fetcher)

	synced, err := c.Run(context.Background(), st, config.Collector{PageSize: 50}, now)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if synced != 1 {
		t.Fatalf("expected 1 synced invoice, got %d", synced)
	}

	client, err := st.FindClientByName(context.Background(), "Acme Corp")
	if err != nil {
		t.Fatalf("expected a client auto-created for the billed-to name: %v", err)
	}

	invoices, err := st.ListUnpaidInvoices(context.Background())
	if err != nil {
		t.Fatalf("ListUnpaidInvoices failed: %v", err)
	}
	if len(invoices) != 1 || invoices[0].ClientID == nil || *invoices[0].ClientID != client.ID {
		t.Fatalf("expected the invoice linked to the auto-created client, got %+v", invoices)
	}
	if invoices[0].AgingBucket != model.Aging31to60 {
		t.Errorf("expected aging bucket 31-60 for a 40-day-overdue invoice, got %v", invoices[0].AgingBucket)
	}
}

func TestInvoiceCollectorReusesExistingClientByName(t *testing.T) {
	st := openCollectTestStore(t)
	ctx := context.Background()

	existing := &model.Client{ID: "client_existing", Name: "Acme Corp", Tier: model.TierA}
	if err := st.UpsertClient(ctx, existing); err != nil {
		t.Fatalf("UpsertClient failed: %v", err)
	}

	fetcher := fakeInvoiceFetcher{artifacts: []InvoiceArtifact{
		{SourceID: "inv1", ClientName: "Acme Corp", Amount: decimal.NewFromInt(100), Currency: "USD", IssueDate: time.Now(), Status: string(model.InvoiceSent)},
	}}
	c := NewInvoiceCollector(fetcher)

	if _, err := c.Run(ctx, st, config.Collector{}, time.Now()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	invoices, err := st.ListUnpaidInvoices(ctx)
	if err != nil {
		t.Fatalf("ListUnpaidInvoices failed: %v", err)
	}
	if len(invoices) != 1 || invoices[0].ClientID == nil || *invoices[0].ClientID != "client_existing" {
		t.Fatalf("expected the invoice linked to the pre-existing client, got %+v", invoices)
	}
}

func TestInvoiceCollectorSkipsClientResolutionForEmptyName(t *testing.T) {
	st := openCollectTestStore(t)

	fetcher := fakeInvoiceFetcher{artifacts: []InvoiceArtifact{
		{SourceID: "inv1", ClientName: "", Amount: decimal.NewFromInt(100), Currency: "USD", IssueDate: time.Now(), Status: string(model.InvoiceSent)},
	}}
	c := NewInvoiceCollector(fetcher)

	if _, err := c.Run(context.Background(), st, config.Collector{}, time.Now()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	invoices, err := st.ListUnpaidInvoices(context.Background())
	if err != nil {
		t.Fatalf("ListUnpaidInvoices failed: %v", err)
	}
	if len(invoices) != 1 || invoices[0].ClientID != nil {
		t.Fatalf("expected the invoice to have no client_id, got %+v", invoices)
	}
}

func TestSlugifyNormalizesToLowerUnderscore(t *testing.T) {
	if got := slugify("Acme Corp, Inc."); got != "acme_corp_inc_" {
		t.Errorf("expected acme_corp_inc_, got %q", got)
	}
}

func TestInvoiceCollectorPropagatesFetchError(t *testing.T) {
	st := openCollectTestStore(t)
	fetcher := fakeInvoiceFetcher{err: context.DeadlineExceeded}
	c := NewInvoiceCollector(fetcher)

	if _, err := c.Run(context.Background(), st, config.Collector{}, time.Now()); err == nil {
		t.Fatal("expected fetch error to propagate")
	}
}
