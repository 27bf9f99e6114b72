// Package commitments implements the optional LLM-backed commitment
// extractor over communications.body_text (spec.md §9 Open Questions):
// given a thread's body, ask the model which promises or requests it
// contains and persist each as a commitment row. Stubbed to a no-op when
// no API key is configured.
package commitments

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/antigravity-dev/agencyos/internal/apperrors"
	"github.com/antigravity-dev/agencyos/internal/config"
	"github.com/antigravity-dev/agencyos/internal/model"
	"github.com/antigravity-dev/agencyos/internal/store"
)

const defaultModel = "claude-3-5-haiku-latest"

// extractedCommitment is the shape the model is asked to return.
type extractedCommitment struct {
	Kind        string `json:"kind"` // promise | request
	Description string `json:"description"`
	DueDate     string `json:"due_date,omitempty"` // RFC3339 date, optional
}

// Extractor pulls commitments out of communication bodies. A zero-value
// Extractor (no API key) is a valid no-op.
type Extractor struct {
	client *anthropic.Client
	model  string
	logger *slog.Logger
}

// New builds an Extractor from configuration. When AnthropicAPIKey is
// empty, ExtractForCommunication always returns (0, nil) without making any
// network call.
func New(cfg config.Commitments, logger *slog.Logger) *Extractor {
	e := &Extractor{model: cfg.Model, logger: logger}
	if e.model == "" {
		e.model = defaultModel
	}
	if cfg.AnthropicAPIKey == "" {
		return e
	}
	client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
	e.client = &client
	return e
}

// Enabled reports whether a client was configured.
func (e *Extractor) Enabled() bool {
	return e.client != nil
}

// ExtractForCommunication analyzes one communication's body_text and
// upserts any commitments found, keyed by a deterministic id so repeated
// runs over the same thread are idempotent. Returns the count written.
func (e *Extractor) ExtractForCommunication(ctx context.Context, st *store.Store, comm model.Communication) (int, error) {
	if !e.Enabled() || len(comm.BodyText) < 20 {
		return 0, nil
	}

	msg, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(extractionPrompt(comm.BodyText))),
		},
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrTransientSource, "anthropic: "+err.Error())
	}

	found, err := parseCommitments(msg)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrParse, "anthropic: "+err.Error())
	}

	now := time.Now().UTC()
	var written int
	for _, fc := range found {
		kind := model.CommitmentKind(fc.Kind)
		if kind != model.CommitmentPromise && kind != model.CommitmentRequest {
			continue
		}
		c := &model.Commitment{
			ID:              commitmentID(comm.ID, fc.Description),
			CommunicationID: comm.ID,
			ClientID:        comm.ClientID,
			Kind:            kind,
			Status:          model.CommitmentOpen,
			Description:     fc.Description,
			CreatedAt:       now,
		}
		if fc.DueDate != "" {
			if parsed, err := time.Parse("2006-01-02", fc.DueDate); err == nil {
				c.DueDate = &parsed
			}
		}
		if err := st.UpsertCommitment(ctx, c); err != nil {
			return written, apperrors.Wrapf(err, "upsert commitment for %s", comm.ID)
		}
		written++
	}
	return written, nil
}

func extractionPrompt(body string) string {
	return "Extract commitments from this email body. A commitment is either a " +
		"promise (something we will do) or a request (something asked of us). " +
		"Reply with a JSON array, each item {\"kind\":\"promise\"|\"request\"," +
		"\"description\":string,\"due_date\":\"YYYY-MM-DD\" or omitted}. " +
		"Reply with only the JSON array, nothing else.\n\n" + body
}

func parseCommitments(msg *anthropic.Message) ([]extractedCommitment, error) {
	var text string
	for _, block := range msg.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			text += block.Text
		}
	}
	var out []extractedCommitment
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// commitmentID derives a stable id from the communication and description so
// repeated extraction over the same thread does not duplicate rows.
func commitmentID(communicationID, description string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(communicationID+"|"+description)).String()
}
