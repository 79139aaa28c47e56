// Package relation classifies the relationship between the acting
// account and a subject profile from rendered page content.
package relation

import (
	"context"
	"strings"

	"github.com/nvyas/linkpilot/internal/browser"
)

// State is the connection relationship with a target profile.
type State string

const (
	Connected    State = "connected"
	Pending      State = "pending"
	NotConnected State = "not_connected"
)

const (
	// connectedMarker is the "remove connection" affordance only shown
	// on profiles already in the network.
	connectedMarker = "Remove Connection"

	// pendingMarker is the withdraw affordance on an outstanding
	// outbound invitation.
	pendingMarker = "Pending, click to withdraw invitation sent to"
)

// Classify maps page content to a State. The check order matters: a
// connected profile can transiently expose pending-style markup, so the
// connected marker always wins. Absence of all markers is the
// NotConnected default, not an error.
func Classify(pageHTML string) State {
	if strings.Contains(pageHTML, connectedMarker) {
		return Connected
	}
	if strings.Contains(pageHTML, pendingMarker) {
		return Pending
	}
	return NotConnected
}

// Detect classifies the page currently loaded in sess. The state is
// derived fresh on every call; it is never cached because the remote
// state can change between visits.
func Detect(ctx context.Context, sess browser.Session) State {
	html, err := sess.HTML(ctx)
	if err != nil {
		return NotConnected
	}
	return Classify(html)
}
