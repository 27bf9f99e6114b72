package collect

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/antigravity-dev/agencyos/internal/apperrors"
	"github.com/antigravity-dev/agencyos/internal/config"
	"github.com/antigravity-dev/agencyos/internal/model"
	"github.com/antigravity-dev/agencyos/internal/store"
)

const invoiceSourcePrefix = "xero_"

// InvoiceCollector syncs the Xero analogue: outstanding invoices, resolving
// each to a client by billed-to name and computing an aging bucket at
// collection time (the normalizer recomputes it deterministically, §4.2).
type InvoiceCollector struct {
	fetcher InvoiceFetcher
}

func NewInvoiceCollector(fetcher InvoiceFetcher) *InvoiceCollector {
	return &InvoiceCollector{fetcher: fetcher}
}

func (c *InvoiceCollector) Name() string { return "xero" }

func (c *InvoiceCollector) Run(ctx context.Context, st *store.Store, cfg config.Collector, now time.Time) (int, error) {
	artifacts, err := c.fetcher.FetchInvoices(ctx, cfg.PageSize)
	if err != nil {
		return 0, err
	}

	var synced int
	for _, a := range artifacts {
		if a.SourceID == "" {
			continue
		}
		clientID, err := c.resolveClient(ctx, st, a.ClientName)
		if err != nil {
			return synced, apperrors.Wrapf(err, "resolve client for invoice %s", a.SourceID)
		}

		inv := &model.Invoice{
			ID:          invoiceSourcePrefix + a.SourceID,
			SourceID:    a.SourceID,
			ClientID:    clientID,
			Amount:      a.Amount,
			Currency:    a.Currency,
			IssueDate:   a.IssueDate,
			DueDate:     a.DueDate,
			PaidDate:    a.PaidDate,
			Status:      model.InvoiceStatus(a.Status),
			AgingBucket: agingBucket(a.DueDate, now),
		}
		if err := st.UpsertInvoiceFromCollector(ctx, inv); err != nil {
			return synced, apperrors.Wrapf(err, "upsert invoice %s", inv.ID)
		}
		if a.PaidDate == nil {
			if err := st.SetInvoiceAgingBucket(ctx, inv.ID, inv.AgingBucket); err != nil {
				return synced, apperrors.Wrapf(err, "set aging bucket for invoice %s", inv.ID)
			}
		}
		synced++
	}
	return synced, nil
}

// resolveClient looks up an existing client by billed-to name, creating a
// bare-bones client row when none exists yet — clients are seeded either by
// this collector or manually (§3).
func (c *InvoiceCollector) resolveClient(ctx context.Context, st *store.Store, name string) (*string, error) {
	if name == "" {
		return nil, nil
	}
	existing, err := st.FindClientByName(ctx, name)
	if err == nil {
		return &existing.ID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	newClient := &model.Client{
		ID:        invoiceSourcePrefix + "client_" + slugify(name),
		Name:      name,
		Tier:      model.TierC,
		Lifecycle: model.ClientActive,
	}
	if err := st.UpsertClient(ctx, newClient); err != nil {
		return nil, err
	}
	return &newClient.ID, nil
}

// agingBucket classifies max(0, today-due_date) in days (§3).
func agingBucket(due *time.Time, now time.Time) model.AgingBucket {
	if due == nil {
		return model.AgingCurrent
	}
	days := int(now.Sub(*due).Hours() / 24)
	switch {
	case days <= 0:
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

// slugify lowercases and replaces non-alphanumeric runs with a single
// underscore, for deriving a stable client id from a billed-to name.
func slugify(name string) string {
	out := make([]byte, 0, len(name))
	prevUnderscore := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			out = append(out, byte(r))
			prevUnderscore = false
		case r >= 'A' && r <= 'Z':
			out = append(out, byte(r-'A'+'a'))
			prevUnderscore = false
		default:
			if !prevUnderscore {
				out = append(out, '_')
				prevUnderscore = true
			}
		}
	}
	return string(out)
}
