// Package collect implements the collector framework of §4.2: one worker
// per enabled external source, each polling on its own interval, upserting
// idempotently into the store and never touching another source's tables.
//
// Credential acquisition is out of scope (§1 Non-goals): every fetcher is an
// injected interface so a real deployment supplies an OAuth-backed client
// while this package owns only scheduling, retry, circuit-breaking and the
// per-source upsert contract. With no client configured, a source reports
// an auth error rather than fabricating data.
package collect

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TaskArtifact is one Google-Tasks-analogue item.
type TaskArtifact struct {
	SourceID  string
	Title     string
	Completed bool
	DueDate   *time.Time
	Notes     string
	Assignee  string
}

// TaskFetcher returns a bounded page of task artifacts.
type TaskFetcher interface {
	FetchTasks(ctx context.Context, pageSize int) ([]TaskArtifact, error)
}

// CalendarArtifact is one calendar event in the sync window.
type CalendarArtifact struct {
	SourceID  string
	Title     string
	Start     time.Time
	End       time.Time
	Location  string
	Attendees []string
}

// CalendarFetcher returns events within [from, to].
type CalendarFetcher interface {
	FetchEvents(ctx context.Context, from, to time.Time, pageSize int) ([]CalendarArtifact, error)
}

// EmailArtifact is one Gmail-analogue thread.
type EmailArtifact struct {
	SourceID        string
	Sender          string
	Recipients      []string
	Subject         string
	Snippet         string
	BodyText        string
	BodyFetchMethod string // html_stripped | plain | snippet_fallback
	ReceivedAt      time.Time
}

// EmailFetcher returns threads received since "since", excluding
// promotional/update/social categories, capped at pageSize.
type EmailFetcher interface {
	FetchThreads(ctx context.Context, since time.Time, pageSize int) ([]EmailArtifact, error)
}

// AsanaProjectArtifact maps an external project gid to a name.
type AsanaProjectArtifact struct {
	GID  string
	Name string
}

// AsanaUserArtifact maps an external user gid to a display name.
type AsanaUserArtifact struct {
	GID  string
	Name string
}

// AsanaTaskArtifact is one Asana task, referencing its project/assignee by gid.
type AsanaTaskArtifact struct {
	GID           string
	ProjectGID    string
	AssigneeGID   string
	Title         string
	Completed     bool
	DueDate       *time.Time
	Notes         string
}

// AsanaFetcher returns the three artifact sets Asana sync needs.
type AsanaFetcher interface {
	FetchProjects(ctx context.Context) ([]AsanaProjectArtifact, error)
	FetchUsers(ctx context.Context) ([]AsanaUserArtifact, error)
	FetchTasks(ctx context.Context, pageSize int) ([]AsanaTaskArtifact, error)
}

// InvoiceArtifact is one outstanding Xero-analogue invoice.
type InvoiceArtifact struct {
	SourceID   string
	ClientName string
	Amount     decimal.Decimal
	Currency   string
	IssueDate  time.Time
	DueDate    *time.Time
	PaidDate   *time.Time
	Status     string
}

// InvoiceFetcher returns outstanding invoices.
type InvoiceFetcher interface {
	FetchInvoices(ctx context.Context, pageSize int) ([]InvoiceArtifact, error)
}
