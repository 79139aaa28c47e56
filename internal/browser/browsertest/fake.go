// Package browsertest provides a scripted in-memory implementation of
// browser.Session for exercising automation flows without a browser.
package browsertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/nvyas/linkpilot/internal/browser"
)

// Control is a scriptable page element. Zero value is a visible,
// clickable control with no text.
type Control struct {
	TextValue string
	Attrs     map[string]string
	Invisible bool
	ClickErr  error

	// OnClick runs after a successful click, letting a page mutate
	// session state (change location, swap HTML) the way a real UI would.
	OnClick func()

	Clicks int
	Inputs []string
	Hidden bool
}

func (c *Control) Click(ctx context.Context) error {
	if c.ClickErr != nil {
		return c.ClickErr
	}
	c.Clicks++
	if c.OnClick != nil {
		c.OnClick()
	}
	return nil
}

func (c *Control) Input(ctx context.Context, text string) error {
	c.Inputs = append(c.Inputs, text)
	return nil
}

func (c *Control) Text(ctx context.Context) (string, error) {
	return c.TextValue, nil
}

func (c *Control) Attribute(ctx context.Context, name string) (string, error) {
	if v, ok := c.Attrs[name]; ok {
		return v, nil
	}
	return "", nil
}

func (c *Control) Visible(ctx context.Context) (bool, error) {
	return !c.Invisible && !c.Hidden, nil
}

func (c *Control) Hide(ctx context.Context) error {
	c.Hidden = true
	return nil
}

// Page is one scripted page. Controls maps a CSS selector to a single
// control; Lists maps a selector to the result of FindAll. Heights is
// the sequence of scroll-height measurements (the last value repeats).
type Page struct {
	URL        string
	HTML       string
	Controls   map[string]*Control
	Lists      map[string][]*Control
	Heights    []int
	ReadyAfter int // ReadyState reports "loading" this many times first

	// OnScroll runs on every ScrollToBottom, so a page can grow its own
	// content between iterations.
	OnScroll func(p *Page)

	Scrolls    int
	readyPolls int
	heightIdx  int
}

// Session is a scripted browser.Session. Pages are registered by URL;
// navigating to an unknown URL creates an empty page so incidental
// navigation never fails a test.
type Session struct {
	mu sync.Mutex

	pages   map[string]*Page
	current *Page
	url     string

	// Redirects maps a requested URL to the URL actually landed on,
	// simulating login redirects.
	Redirects map[string]string
	NavErr    map[string]error

	CookieBlob []byte
	ExportErr  error
	ImportErr  error
	Imported   [][]byte

	Nav []string
}

// NewSession builds a session from scripted pages.
func NewSession(pages ...*Page) *Session {
	s := &Session{
		pages:     make(map[string]*Page),
		Redirects: make(map[string]string),
		NavErr:    make(map[string]error),
	}
	for _, p := range pages {
		s.pages[p.URL] = p
	}
	return s
}

// AddPage registers p, replacing any page with the same URL.
func (s *Session) AddPage(p *Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[p.URL] = p
}

// SetLocation moves the session to url without a navigation, the way a
// form submit changes the address bar.
func (s *Session) SetLocation(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
	s.current = s.pageFor(url)
}

// Page returns the scripted page registered at url.
func (s *Session) Page(url string) *Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageFor(url)
}

func (s *Session) pageFor(url string) *Page {
	p, ok := s.pages[url]
	if !ok {
		p = &Page{URL: url}
		s.pages[url] = p
	}
	return p
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Nav = append(s.Nav, url)
	if err, ok := s.NavErr[url]; ok {
		return err
	}
	landed := url
	if to, ok := s.Redirects[url]; ok {
		landed = to
	}
	s.url = landed
	s.current = s.pageFor(landed)
	return nil
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, nil
}

func (s *Session) ReadyState(ctx context.Context) (string, error) {
	p := s.mustCurrent()
	p.readyPolls++
	if p.readyPolls <= p.ReadyAfter {
		return "loading", nil
	}
	return "complete", nil
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	return s.mustCurrent().HTML, nil
}

func (s *Session) Find(ctx context.Context, selector string) (browser.Control, error) {
	p := s.mustCurrent()
	if ctl, ok := p.Controls[selector]; ok {
		return ctl, nil
	}
	return nil, fmt.Errorf("%w: %s", browser.ErrNoControl, selector)
}

func (s *Session) FindAll(ctx context.Context, selector string) ([]browser.Control, error) {
	p := s.mustCurrent()
	if list, ok := p.Lists[selector]; ok {
		out := make([]browser.Control, len(list))
		for i, c := range list {
			out[i] = c
		}
		return out, nil
	}
	if ctl, ok := p.Controls[selector]; ok {
		return []browser.Control{ctl}, nil
	}
	return nil, nil
}

func (s *Session) ScrollToBottom(ctx context.Context) error {
	p := s.mustCurrent()
	p.Scrolls++
	if p.OnScroll != nil {
		p.OnScroll(p)
	}
	return nil
}

func (s *Session) ScrollHeight(ctx context.Context) (int, error) {
	p := s.mustCurrent()
	if len(p.Heights) == 0 {
		return 0, nil
	}
	h := p.Heights[min(p.heightIdx, len(p.Heights)-1)]
	p.heightIdx++
	return h, nil
}

func (s *Session) ExportCookies(ctx context.Context) ([]byte, error) {
	if s.ExportErr != nil {
		return nil, s.ExportErr
	}
	return s.CookieBlob, nil
}

func (s *Session) ImportCookies(ctx context.Context, data []byte) error {
	if s.ImportErr != nil {
		return s.ImportErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Imported = append(s.Imported, data)
	return nil
}

func (s *Session) mustCurrent() *Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		s.current = s.pageFor(s.url)
	}
	return s.current
}
