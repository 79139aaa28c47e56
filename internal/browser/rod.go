package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const defaultFindTimeout = 3 * time.Second

// RodSession implements Session on top of a rod page.
type RodSession struct {
	page        *rod.Page
	findTimeout time.Duration
}

// RodOption configures a RodSession.
type RodOption func(*RodSession)

// WithFindTimeout bounds how long Find waits for a selector to appear.
func WithFindTimeout(d time.Duration) RodOption {
	return func(s *RodSession) { s.findTimeout = d }
}

// NewRodSession wraps page as a Session.
func NewRodSession(page *rod.Page, opts ...RodOption) *RodSession {
	s := &RodSession{page: page, findTimeout: defaultFindTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Page exposes the underlying rod page for browser-level setup (viewport,
// stealth bootstrap) that falls outside the Session contract.
func (s *RodSession) Page() *rod.Page { return s.page }

func (s *RodSession) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return nil
}

func (s *RodSession) CurrentURL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to read page info: %w", err)
	}
	return info.URL, nil
}

func (s *RodSession) ReadyState(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.readyState`)
	if err != nil {
		return "", fmt.Errorf("failed to read document ready state: %w", err)
	}
	return res.Value.Str(), nil
}

func (s *RodSession) HTML(ctx context.Context) (string, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return html, nil
}

func (s *RodSession) Find(ctx context.Context, selector string) (Control, error) {
	el, err := s.page.Context(ctx).Timeout(s.findTimeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoControl, selector)
	}
	return &rodControl{el: el}, nil
}

func (s *RodSession) FindAll(ctx context.Context, selector string) ([]Control, error) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", selector, err)
	}
	controls := make([]Control, 0, len(els))
	for _, el := range els {
		controls = append(controls, &rodControl{el: el})
	}
	return controls, nil
}

func (s *RodSession) ScrollToBottom(ctx context.Context) error {
	_, err := s.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	if err != nil {
		return fmt.Errorf("failed to scroll to bottom: %w", err)
	}
	return nil
}

func (s *RodSession) ScrollHeight(ctx context.Context) (int, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, fmt.Errorf("failed to measure scroll height: %w", err)
	}
	return res.Value.Int(), nil
}

func (s *RodSession) ExportCookies(ctx context.Context) ([]byte, error) {
	cookies, err := s.page.Context(ctx).Cookies([]string{})
	if err != nil {
		return nil, fmt.Errorf("failed to get cookies: %w", err)
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cookies: %w", err)
	}
	return data, nil
}

func (s *RodSession) ImportCookies(ctx context.Context, data []byte) error {
	var cookies []*proto.NetworkCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("failed to unmarshal cookies: %w", err)
	}

	params := make([]*proto.NetworkCookieParam, len(cookies))
	for i, cookie := range cookies {
		params[i] = &proto.NetworkCookieParam{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Domain:   cookie.Domain,
			Path:     cookie.Path,
			Secure:   cookie.Secure,
			HTTPOnly: cookie.HTTPOnly,
			SameSite: cookie.SameSite,
		}
	}

	if err := s.page.Context(ctx).SetCookies(params); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

// rodControl adapts a rod element to the Control interface.
type rodControl struct {
	el *rod.Element
}

func (c *rodControl) Click(ctx context.Context) error {
	return c.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (c *rodControl) Input(ctx context.Context, text string) error {
	return c.el.Context(ctx).Input(text)
}

func (c *rodControl) Text(ctx context.Context) (string, error) {
	return c.el.Context(ctx).Text()
}

func (c *rodControl) Attribute(ctx context.Context, name string) (string, error) {
	attr, err := c.el.Context(ctx).Attribute(name)
	if err == nil && attr != nil {
		return *attr, nil
	}
	// The site hides some attributes (notably href) from the attribute
	// API; the live property still carries the value.
	prop, err := c.el.Context(ctx).Property(name)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return prop.Str(), nil
}

func (c *rodControl) Visible(ctx context.Context) (bool, error) {
	return c.el.Context(ctx).Visible()
}

func (c *rodControl) Hide(ctx context.Context) error {
	_, err := c.el.Context(ctx).Eval(`() => this.style.display = 'none'`)
	if err != nil {
		return fmt.Errorf("failed to hide element: %w", err)
	}
	return nil
}
