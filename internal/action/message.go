package action

import (
	"context"
	"fmt"

	"github.com/nvyas/linkpilot/internal/browser"
)

var messageButtonSelectors = []string{
	`button[aria-label^="Message"]`,
	`div.pvs-profile-actions button[aria-label*="Message"]`,
}

var messageBoxSelectors = []string{
	`div.msg-form__contenteditable`,
	`div[role="textbox"]`,
}

var messageSendSelectors = []string{
	`button.msg-form__send-button`,
	`button[type="submit"][aria-label*="Send"]`,
}

// message opens the conversation composer on the target profile, types
// the body and sends it.
func (m *Machine) message(ctx context.Context, req Request, res *Result) error {
	if req.Note == "" {
		return fmt.Errorf("%w: empty message body for %s", ErrUnexpectedPageState, req.Target)
	}
	if err := m.open(ctx, req.Target); err != nil {
		return err
	}
	res.State = m.state(ctx)

	if err := m.trigger(ctx, messageButtonSelectors, "Message"); err != nil {
		return err
	}
	browser.Sleep(ctx, m.settle)

	box, ok := browser.FindFirst(ctx, m.sess, messageBoxSelectors...)
	if !ok {
		return fmt.Errorf("%w: message composer", ErrControlNotFound)
	}
	if err := box.Click(ctx); err != nil {
		return fmt.Errorf("failed to focus message composer: %w", err)
	}
	if err := box.Input(ctx, req.Note); err != nil {
		return fmt.Errorf("failed to type message: %w", err)
	}

	send, ok := browser.FindFirst(ctx, m.sess, messageSendSelectors...)
	if !ok {
		return fmt.Errorf("%w: message send button", ErrControlNotFound)
	}
	if err := send.Click(ctx); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	m.log.Infow("message sent", "target", req.Target)
	return nil
}
