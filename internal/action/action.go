// Package action executes scripted interaction flows against an
// authenticated browser session: connect, follow, message, like and
// profile extraction. Each flow is linear with two branch points — a
// primary control versus the "More actions" menu, and the note versus
// no-note invitation confirmation.
package action

import (
	"errors"

	"github.com/nvyas/linkpilot/internal/relation"
)

// Kind selects one of the scripted interaction flows.
type Kind string

const (
	KindConnect        Kind = "connect"
	KindFollowPerson   Kind = "follow_person"
	KindFollowCompany  Kind = "follow_company"
	KindMessage        Kind = "message"
	KindLikePosts      Kind = "like_posts"
	KindExtractProfile Kind = "extract_profile"
)

// ParseKind maps a user-supplied name to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindConnect, KindFollowPerson, KindFollowCompany, KindMessage, KindLikePosts, KindExtractProfile:
		return Kind(s), true
	}
	return "", false
}

// Request is one unit of work against a target profile or company page.
// It is consumed exactly once and discarded after execution.
type Request struct {
	ID     string
	Kind   Kind
	Target string

	// Note carries the connection note for connect requests and the
	// message body for message requests.
	Note string

	// FollowCompanies extends a follow_person request with the company
	// follow-through over the target's experience listing.
	FollowCompanies bool
}

// Outcome classifies how a request ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Result is produced once per request. The core never retries; any
// retry policy is layered above it by the caller.
type Result struct {
	ID      string
	Kind    Kind
	Target  string
	Outcome Outcome

	// State is the relationship state observed before acting.
	State relation.State

	// AlreadyInState is set when the action was skipped because the
	// target already satisfied the goal.
	AlreadyInState bool

	// Fields holds extracted profile fields for extract_profile.
	Fields map[string]string

	Liked             int
	CompaniesFollowed int

	Detail string
	Err    error
}

var (
	// ErrControlNotFound reports that neither the primary control nor
	// the menu fallback resolved.
	ErrControlNotFound = errors.New("control not found")

	// ErrRequiresEmailVerification reports an invitation dialog that
	// demands the member's email address, which the flow cannot supply.
	ErrRequiresEmailVerification = errors.New("requires email verification")

	// ErrUnexpectedPageState reports page structure the flow cannot
	// interpret.
	ErrUnexpectedPageState = errors.New("unexpected page state")
)
