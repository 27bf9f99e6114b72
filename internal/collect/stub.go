package collect

import (
	"context"
	"time"

	"github.com/antigravity-dev/agencyos/internal/apperrors"
)

// credentialGate checks for a configured API key before a fetch proceeds.
// Real deployments replace the stub fetchers below with OAuth-backed
// clients per source; these defaults keep the collector framework runnable
// (and its scheduling/idempotence properties testable) without live
// credentials — an unconfigured source reports an auth error rather than
// fabricating artifacts.
type credentialGate struct {
	apiKey string
}

func (g credentialGate) check() error {
	if g.apiKey == "" {
		return apperrors.Wrap(apperrors.ErrAuthSource, "no api_key configured")
	}
	return nil
}

type stubTaskFetcher struct{ credentialGate }

func (f stubTaskFetcher) FetchTasks(ctx context.Context, pageSize int) ([]TaskArtifact, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return nil, nil
}

type stubCalendarFetcher struct{ credentialGate }

func (f stubCalendarFetcher) FetchEvents(ctx context.Context, from, to time.Time, pageSize int) ([]CalendarArtifact, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return nil, nil
}

type stubEmailFetcher struct{ credentialGate }

func (f stubEmailFetcher) FetchThreads(ctx context.Context, since time.Time, pageSize int) ([]EmailArtifact, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return nil, nil
}

type stubAsanaFetcher struct{ credentialGate }

func (f stubAsanaFetcher) FetchProjects(ctx context.Context) ([]AsanaProjectArtifact, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f stubAsanaFetcher) FetchUsers(ctx context.Context) ([]AsanaUserArtifact, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f stubAsanaFetcher) FetchTasks(ctx context.Context, pageSize int) ([]AsanaTaskArtifact, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return nil, nil
}

type stubInvoiceFetcher struct{ credentialGate }

func (f stubInvoiceFetcher) FetchInvoices(ctx context.Context, pageSize int) ([]InvoiceArtifact, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return nil, nil
}

// DefaultTaskFetcher returns the credential-gated stub used when no OAuth
// client has been wired in for this source.
func DefaultTaskFetcher(apiKey string) TaskFetcher {
	return stubTaskFetcher{credentialGate{apiKey: apiKey}}
}

// DefaultCalendarFetcher returns the credential-gated stub for the calendar source.
func DefaultCalendarFetcher(apiKey string) CalendarFetcher {
	return stubCalendarFetcher{credentialGate{apiKey: apiKey}}
}

// DefaultEmailFetcher returns the credential-gated stub for the Gmail analogue.
func DefaultEmailFetcher(apiKey string) EmailFetcher {
	return stubEmailFetcher{credentialGate{apiKey: apiKey}}
}

// DefaultAsanaFetcher returns the credential-gated stub for the Asana analogue.
func DefaultAsanaFetcher(apiKey string) AsanaFetcher {
	return stubAsanaFetcher{credentialGate{apiKey: apiKey}}
}

// DefaultInvoiceFetcher returns the credential-gated stub for the Xero analogue.
func DefaultInvoiceFetcher(apiKey string) InvoiceFetcher {
	return stubInvoiceFetcher{credentialGate{apiKey: apiKey}}
}
