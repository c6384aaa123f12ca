// Package webhook defines the inbound webhook envelope and the
// immutable event context derived from it. Signature verification
// transport, the repository-hosting API client, and comment
// formatting are all out of scope (spec.md §1); this package only
// carries the data those external collaborators would otherwise hand
// the orchestrator.
//
// Grounded on the teacher's request DTO idiom (`pkg/models/session.go`):
// a plain struct with validator tags, no business logic attached.
package webhook

import "fmt"

// Envelope is the parsed webhook body plus the headers the orchestrator
// needs to admit or reject the event.
type Envelope struct {
	DeliveryID string `json:"delivery_id" validate:"required"`
	Event      string `json:"event" validate:"required"`
	Action     string `json:"action" validate:"required"`

	Owner          string `json:"owner" validate:"required"`
	Repo           string `json:"repo" validate:"required"`
	PRNumber       int    `json:"pr_number" validate:"required"`
	InstallationID int64  `json:"installation_id"`
	HeadCommitID   string `json:"head_commit_id" validate:"required"`
}

// Admitted reports whether this envelope is one the pipeline processes
// at all: only pull_request events with action opened or synchronize.
func (e Envelope) Admitted() bool {
	if e.Event != "pull_request" {
		return false
	}
	return e.Action == "opened" || e.Action == "synchronize"
}

// EventContext is the immutable context created from an admitted
// webhook, carried for the lifetime of one execution.
type EventContext struct {
	Owner          string
	Repo           string
	PRNumber       int
	InstallationID int64
	HeadCommitID   string
}

// NewEventContext derives an EventContext from an admitted envelope.
func NewEventContext(e Envelope) EventContext {
	return EventContext{
		Owner:          e.Owner,
		Repo:           e.Repo,
		PRNumber:       e.PRNumber,
		InstallationID: e.InstallationID,
		HeadCommitID:   e.HeadCommitID,
	}
}

// RepoFullName renders "owner/repo", the collapsed form spec.md §6
// requires from GET /decisions.
func (c EventContext) RepoFullName() string { return c.Owner + "/" + c.Repo }

// IdempotencyKey derives the idempotency key:
// delivery_id|owner/repo|pr_number|action|head_commit_id.
func IdempotencyKey(e Envelope) string {
	return fmt.Sprintf("%s|%s/%s|%d|%s|%s", e.DeliveryID, e.Owner, e.Repo, e.PRNumber, e.Action, e.HeadCommitID)
}
