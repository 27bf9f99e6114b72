package collect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/antigravity-dev/agencyos/internal/apperrors"
	"github.com/antigravity-dev/agencyos/internal/config"
	"github.com/antigravity-dev/agencyos/internal/model"
	"github.com/antigravity-dev/agencyos/internal/store"
)

const (
	emailSourcePrefix = "gmail_"
	emailWindowDays   = 90
	emailPageCap      = 500
)

// EmailCollector syncs the Gmail analogue, filtering to the last 90 days and
// capping at 500 threads per run (§4.2).
type EmailCollector struct {
	fetcher EmailFetcher
}

func NewEmailCollector(fetcher EmailFetcher) *EmailCollector {
	return &EmailCollector{fetcher: fetcher}
}

func (c *EmailCollector) Name() string { return "gmail" }

func (c *EmailCollector) Run(ctx context.Context, st *store.Store, cfg config.Collector, now time.Time) (int, error) {
	since := now.AddDate(0, 0, -emailWindowDays)

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > emailPageCap {
		pageSize = emailPageCap
	}

	artifacts, err := c.fetcher.FetchThreads(ctx, since, pageSize)
	if err != nil {
		return 0, err
	}

	var synced int
	for i, a := range artifacts {
		if i >= emailPageCap {
			break
		}
		if a.SourceID == "" {
			continue
		}
		comm := &model.Communication{
			ID:          emailSourcePrefix + a.SourceID,
			Source:      "gmail",
			SourceID:    a.SourceID,
			Sender:      a.Sender,
			Recipients:  a.Recipients,
			Subject:     a.Subject,
			Snippet:     a.Snippet,
			BodyText:        a.BodyText,
			BodyFetchMethod: a.BodyFetchMethod,
			ReceivedAt:      a.ReceivedAt,
			ContentHash: contentHash(a.Subject, a.Snippet),
		}
		recipientsJSON, err := json.Marshal(a.Recipients)
		if err != nil {
			return synced, apperrors.Wrapf(err, "marshal recipients for thread %s", a.SourceID)
		}
		if err := st.UpsertCommunicationFromCollector(ctx, comm, string(recipientsJSON)); err != nil {
			return synced, apperrors.Wrapf(err, "upsert communication %s", comm.ID)
		}
		synced++
	}
	return synced, nil
}

// contentHash is sha256(subject + snippet), per §4.2.
func contentHash(subject, snippet string) string {
	sum := sha256.Sum256([]byte(subject + snippet))
	return hex.EncodeToString(sum[:])
}
