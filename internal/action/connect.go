package action

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nvyas/linkpilot/internal/browser"
	"github.com/nvyas/linkpilot/internal/relation"
)

// MaxNoteLength is the site's character limit for invitation notes.
const MaxNoteLength = 300

const (
	noteDialogMarker  = "Add a note to your invitation"
	emailVerifyMarker = "To verify this member knows you, please enter their email to connect"
)

var connectButtonSelectors = []string{
	`button[aria-label*="Invite"][type="button"]`,
	`button[aria-label*="connect"][type="button"]`,
}

var noteFieldSelectors = []string{
	`textarea[name="message"]`,
	`textarea#custom-message`,
	`textarea[id*="custom-message"]`,
}

var sendInvitationSelectors = []string{
	`button[aria-label="Send invitation"]`,
	`button[aria-label="Send now"]`,
	`button[aria-label="Send"]`,
}

// connect sends a connection request to the target profile. Invoking it
// on a profile already connected or pending is a no-op: the observed
// state is returned and no DOM mutation occurs.
func (m *Machine) connect(ctx context.Context, req Request, res *Result) error {
	if err := m.open(ctx, req.Target); err != nil {
		return err
	}

	state := m.state(ctx)
	res.State = state
	if state == relation.Connected || state == relation.Pending {
		res.Outcome = OutcomeSkipped
		res.AlreadyInState = true
		res.Detail = "already " + string(state)
		m.log.Infow("connect skipped, goal already satisfied", "target", req.Target, "state", state)
		return nil
	}

	if err := m.trigger(ctx, connectButtonSelectors, "Connect"); err != nil {
		return err
	}
	browser.Sleep(ctx, m.settle)

	return m.confirmInvitation(ctx, req)
}

// confirmInvitation handles the note dialog raised by some profiles
// after the connect trigger. With a note payload the note-entry path is
// taken; without one, "Send without a note". A dialog demanding the
// member's email aborts this single request.
func (m *Machine) confirmInvitation(ctx context.Context, req Request) error {
	html, err := m.sess.HTML(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to read page after connect trigger: %v", ErrUnexpectedPageState, err)
	}
	if !strings.Contains(html, noteDialogMarker) {
		// Some profiles send the invitation immediately with no dialog.
		return nil
	}
	if strings.Contains(html, emailVerifyMarker) {
		return fmt.Errorf("%w: %s", ErrRequiresEmailVerification, req.Target)
	}

	if req.Note == "" {
		send, ok := browser.FindFirst(ctx, m.sess, `button[aria-label="Send without a note"]`)
		if !ok {
			return fmt.Errorf("%w: Send without a note", ErrControlNotFound)
		}
		return send.Click(ctx)
	}

	addNote, ok := browser.FindFirst(ctx, m.sess, `button[aria-label="Add a note"]`)
	if !ok {
		return fmt.Errorf("%w: Add a note", ErrControlNotFound)
	}
	if err := addNote.Click(ctx); err != nil {
		return fmt.Errorf("failed to open note entry: %w", err)
	}
	browser.Sleep(ctx, m.settle)

	field, ok := browser.FindFirst(ctx, m.sess, noteFieldSelectors...)
	if !ok {
		return fmt.Errorf("%w: invitation note field", ErrControlNotFound)
	}
	// The site's limit counts characters, so truncate on rune
	// boundaries; a byte slice could split a multibyte character.
	note := req.Note
	if utf8.RuneCountInString(note) > MaxNoteLength {
		runes := []rune(note)
		note = string(runes[:MaxNoteLength-3]) + "..."
		m.log.Warnw("note truncated to fit character limit", "max_length", MaxNoteLength)
	}
	if err := field.Input(ctx, note); err != nil {
		return fmt.Errorf("failed to type invitation note: %w", err)
	}

	send, ok := browser.FindFirst(ctx, m.sess, sendInvitationSelectors...)
	if !ok {
		return fmt.Errorf("%w: Send invitation", ErrControlNotFound)
	}
	return send.Click(ctx)
}
