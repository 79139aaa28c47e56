// Package session establishes authenticated browser sessions, restoring
// stored cookies when possible and performing interactive login when not.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nvyas/linkpilot/internal/browser"
)

// ErrAuthenticationFailed reports bad credentials or a security
// challenge not completed within the wait budget.
var ErrAuthenticationFailed = errors.New("authentication failed")

const (
	loginURL = "https://www.linkedin.com/login"
	feedURL  = "https://www.linkedin.com/feed"

	usernameSelector = "#username"
	passwordSelector = "#password"
	submitSelector   = `button[type="submit"]`
)

// Credentials identify one account. The secret is never persisted
// beyond the cookie artifact derived from a successful login.
type Credentials struct {
	AccountID string
	Secret    string
}

// Outcome describes how the session was brought up.
type Outcome struct {
	Authenticated bool
	Restored      bool
	Message       string
}

// Manager brings a browser session to an authenticated state.
type Manager struct {
	sess  browser.Session
	store *Store
	log   *zap.SugaredLogger

	settle       time.Duration
	pollInterval time.Duration
	readyTimeout time.Duration
	loginWait    time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithSettle sets the post-navigation settle delay.
func WithSettle(d time.Duration) Option {
	return func(m *Manager) { m.settle = d }
}

// WithPollInterval sets the interval for ready-state and login polls.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) { m.pollInterval = d }
}

// WithLoginWait bounds how long a submitted login may take to land on
// an authenticated page.
func WithLoginWait(d time.Duration) Option {
	return func(m *Manager) { m.loginWait = d }
}

// NewManager returns a Manager driving sess and persisting artifacts in
// store.
func NewManager(sess browser.Session, store *Store, log *zap.SugaredLogger, opts ...Option) *Manager {
	m := &Manager{
		sess:         sess,
		store:        store,
		log:          log,
		settle:       2 * time.Second,
		pollInterval: 500 * time.Millisecond,
		readyTimeout: 20 * time.Second,
		loginWait:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Establish restores the stored session for creds.AccountID, or falls
// back to exactly one interactive login attempt. It never retries;
// retry policy belongs to the caller.
func (m *Manager) Establish(ctx context.Context, creds Credentials) (Outcome, error) {
	artifact, err := m.store.Load(creds.AccountID)
	switch {
	case err == nil:
		ok, restoreErr := m.restore(ctx, artifact)
		if restoreErr != nil {
			m.log.Warnw("session restore failed", "account", creds.AccountID, "error", restoreErr)
		} else if ok {
			m.log.Infow("session restored from stored cookies", "account", creds.AccountID)
			return Outcome{Authenticated: true, Restored: true, Message: "already logged in using saved cookies"}, nil
		} else {
			m.log.Warnw("stored session rejected, falling back to login", "account", creds.AccountID)
		}
	case errors.Is(err, ErrNotFound):
		m.log.Debugw("no stored session", "account", creds.AccountID)
	default:
		return Outcome{}, err
	}

	return m.login(ctx, creds)
}

// restore loads the artifact into the session and checks whether the
// authenticated landing page is reachable without a login redirect.
func (m *Manager) restore(ctx context.Context, artifact []byte) (bool, error) {
	if err := m.sess.ImportCookies(ctx, artifact); err != nil {
		return false, err
	}
	if err := m.sess.Navigate(ctx, feedURL); err != nil {
		return false, err
	}
	if err := browser.WaitReady(ctx, m.sess, m.pollInterval, m.readyTimeout); err != nil {
		return false, err
	}
	browser.Sleep(ctx, m.settle)

	url, err := m.sess.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	return !isLoginRedirect(url), nil
}

// login performs one interactive login attempt and, on success,
// persists the fresh cookie artifact, overwriting any prior one.
func (m *Manager) login(ctx context.Context, creds Credentials) (Outcome, error) {
	m.log.Infow("performing interactive login", "account", creds.AccountID)

	if err := m.sess.Navigate(ctx, loginURL); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if err := browser.WaitReady(ctx, m.sess, m.pollInterval, m.readyTimeout); err != nil {
		return Outcome{}, fmt.Errorf("%w: login page never settled: %v", ErrAuthenticationFailed, err)
	}
	browser.Sleep(ctx, m.settle)

	username, err := m.sess.Find(ctx, usernameSelector)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: username field not found", ErrAuthenticationFailed)
	}
	if err := username.Input(ctx, creds.AccountID); err != nil {
		return Outcome{}, fmt.Errorf("%w: failed to enter username: %v", ErrAuthenticationFailed, err)
	}

	password, err := m.sess.Find(ctx, passwordSelector)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: password field not found", ErrAuthenticationFailed)
	}
	if err := password.Input(ctx, creds.Secret); err != nil {
		return Outcome{}, fmt.Errorf("%w: failed to enter password: %v", ErrAuthenticationFailed, err)
	}

	submit, err := m.sess.Find(ctx, submitSelector)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: sign-in button not found", ErrAuthenticationFailed)
	}
	if err := submit.Click(ctx); err != nil {
		return Outcome{}, fmt.Errorf("%w: failed to submit login form: %v", ErrAuthenticationFailed, err)
	}

	// The post-submit destination decides the outcome: an
	// authenticated-only route means success, anything else within the
	// wait budget means failure.
	err = browser.Poll(ctx, m.pollInterval, m.loginWait, func(ctx context.Context) (bool, error) {
		url, err := m.sess.CurrentURL(ctx)
		if err != nil {
			return false, err
		}
		return strings.Contains(url, "/feed"), nil
	})
	if err != nil {
		url, _ := m.sess.CurrentURL(ctx)
		if strings.Contains(url, "checkpoint") || strings.Contains(url, "challenge") {
			return Outcome{}, fmt.Errorf("%w: security challenge not completed within wait budget", ErrAuthenticationFailed)
		}
		return Outcome{}, fmt.Errorf("%w: not redirected to an authenticated page", ErrAuthenticationFailed)
	}

	artifact, err := m.sess.ExportCookies(ctx)
	if err != nil {
		m.log.Warnw("failed to capture session cookies", "account", creds.AccountID, "error", err)
	} else if err := m.store.Save(creds.AccountID, artifact); err != nil {
		return Outcome{}, err
	}

	m.log.Infow("login successful", "account", creds.AccountID)
	return Outcome{Authenticated: true, Message: "login success"}, nil
}

// isLoginRedirect reports whether url is the unauthenticated redirect
// target for a protected route.
func isLoginRedirect(url string) bool {
	return strings.Contains(url, "session_redirect") ||
		strings.Contains(url, "uas/login") ||
		strings.Contains(url, "/login")
}
