package action

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nvyas/linkpilot/internal/browser"
	"github.com/nvyas/linkpilot/internal/relation"
)

const (
	messagingOverlaySelector = ".msg-overlay-bubble-header"
	moreActionsSelector      = `button[aria-label="More actions"]`
	dropdownItemSelector     = "div.artdeco-dropdown__item"
)

// FollowLedger records company follows so repeat runs can skip targets
// already processed. Implemented by the storage sink; optional.
type FollowLedger interface {
	HasFollowedCompany(accountID, companyURL string) (bool, error)
	RecordCompanyFollow(accountID, companyURL string) error
}

// Machine drives one browser session through the interaction flows.
// All operations are strictly sequential; a Machine must not be shared
// across goroutines.
type Machine struct {
	sess browser.Session
	log  *zap.SugaredLogger

	settle       time.Duration
	likeDelay    time.Duration
	pollInterval time.Duration
	readyTimeout time.Duration
	likeRounds   int

	ledger    FollowLedger
	accountID string
}

// Option configures a Machine.
type Option func(*Machine)

// WithSettle sets the fixed settle delay applied after navigation and
// DOM mutations so client-side rendering can catch up.
func WithSettle(d time.Duration) Option {
	return func(m *Machine) { m.settle = d }
}

// WithLikeDelay sets the pause between individual post likes.
func WithLikeDelay(d time.Duration) Option {
	return func(m *Machine) { m.likeDelay = d }
}

// WithLikeRounds bounds how many scroll-and-like passes a like_posts
// request performs.
func WithLikeRounds(n int) Option {
	return func(m *Machine) { m.likeRounds = n }
}

// WithPollInterval sets the ready-state polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Machine) { m.pollInterval = d }
}

// WithFollowLedger enables company-follow reprocessing avoidance.
func WithFollowLedger(ledger FollowLedger, accountID string) Option {
	return func(m *Machine) {
		m.ledger = ledger
		m.accountID = accountID
	}
}

// New returns a Machine driving sess.
func New(sess browser.Session, log *zap.SugaredLogger, opts ...Option) *Machine {
	m := &Machine{
		sess:         sess,
		log:          log,
		settle:       2 * time.Second,
		likeDelay:    2 * time.Second,
		pollInterval: 500 * time.Millisecond,
		readyTimeout: 20 * time.Second,
		likeRounds:   5,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Perform executes one request and always returns a Result; failures
// are classified into the Result rather than escaping, so a queue can
// isolate them per request.
func (m *Machine) Perform(ctx context.Context, req Request) Result {
	res := Result{ID: req.ID, Kind: req.Kind, Target: req.Target}

	var err error
	switch req.Kind {
	case KindConnect:
		err = m.connect(ctx, req, &res)
	case KindFollowPerson:
		err = m.followPerson(ctx, req, &res)
	case KindFollowCompany:
		err = m.followCompany(ctx, req, &res)
	case KindMessage:
		err = m.message(ctx, req, &res)
	case KindLikePosts:
		err = m.likePosts(ctx, req, &res)
	case KindExtractProfile:
		err = m.extractProfile(ctx, req, &res)
	default:
		err = fmt.Errorf("%w: unknown action kind %q", ErrUnexpectedPageState, req.Kind)
	}

	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		res.Detail = err.Error()
		return res
	}
	if res.Outcome == "" {
		res.Outcome = OutcomeCompleted
	}
	return res
}

// open navigates to target, waits for the document load-state to reach
// complete, settles, and clears anything that could intercept clicks.
func (m *Machine) open(ctx context.Context, target string) error {
	if err := m.sess.Navigate(ctx, target); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", target, err)
	}
	if err := browser.WaitReady(ctx, m.sess, m.pollInterval, m.readyTimeout); err != nil {
		return fmt.Errorf("%w: document never reached complete on %s: %v", ErrUnexpectedPageState, target, err)
	}
	browser.Sleep(ctx, m.settle)
	m.dismissMessagingOverlay(ctx)
	return nil
}

// dismissMessagingOverlay hides the floating chat overlay when it is
// visible; its absence is tolerated.
func (m *Machine) dismissMessagingOverlay(ctx context.Context) {
	ctl, ok := browser.FindFirst(ctx, m.sess, messagingOverlaySelector)
	if !ok {
		return
	}
	visible, err := ctl.Visible(ctx)
	if err != nil || !visible {
		return
	}
	if err := ctl.Hide(ctx); err != nil {
		m.log.Debugw("failed to hide messaging overlay", "error", err)
	}
}

// state re-derives the relationship state from the freshest page
// content; it is never cached across decision points.
func (m *Machine) state(ctx context.Context) relation.State {
	return relation.Detect(ctx, m.sess)
}

// trigger clicks the first resolvable primary control, falling back to
// the equivalent entry in the "More actions" menu.
func (m *Machine) trigger(ctx context.Context, primary []string, menuLabel string) error {
	if ctl, ok := browser.FindFirst(ctx, m.sess, primary...); ok {
		if err := ctl.Click(ctx); err == nil {
			return nil
		}
		m.log.Debugw("primary control not interactable, trying menu", "label", menuLabel)
	}
	return m.triggerFromMenu(ctx, menuLabel)
}

// triggerFromMenu opens the secondary actions menu and clicks the first
// interactable item whose text matches label. Items that refuse the
// click are skipped and the next match is tried.
func (m *Machine) triggerFromMenu(ctx context.Context, label string) error {
	more, ok := browser.FindFirst(ctx, m.sess, moreActionsSelector, `button[aria-label*="More"]`)
	if !ok {
		return fmt.Errorf("%w: no %q control and no More actions menu", ErrControlNotFound, label)
	}
	if err := more.Click(ctx); err != nil {
		return fmt.Errorf("failed to open More actions menu: %w", err)
	}
	browser.Sleep(ctx, m.settle)

	items, err := m.sess.FindAll(ctx, dropdownItemSelector)
	if err != nil {
		return fmt.Errorf("%w: %q menu items: %v", ErrControlNotFound, label, err)
	}
	for _, item := range items {
		text, err := item.Text(ctx)
		if err != nil || !strings.Contains(text, label) {
			continue
		}
		if err := item.Click(ctx); err != nil {
			m.log.Debugw("menu item not interactable, trying next", "label", label, "error", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %q not found in More actions menu", ErrControlNotFound, label)
}
