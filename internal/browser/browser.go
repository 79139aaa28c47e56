// Package browser defines the capability surface the automation engine
// drives: one logical browser session with navigation, control lookup,
// content reading, scrolling and cookie transfer. The production
// implementation wraps go-rod; tests use the browsertest fake.
package browser

import (
	"context"
	"errors"
)

// ErrNoControl is returned by Find when no element matches the selector.
var ErrNoControl = errors.New("control not found")

// Control is a resolved page element the engine can interact with.
type Control interface {
	Click(ctx context.Context) error
	Input(ctx context.Context, text string) error
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	Visible(ctx context.Context) (bool, error)
	Hide(ctx context.Context) error
}

// Session is a single authenticated browser session. All operations on
// one Session are expected to be called sequentially; a browser page is
// a single mutable shared resource.
type Session interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	ReadyState(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)

	// Find resolves a single control by CSS selector, returning
	// ErrNoControl when nothing matches.
	Find(ctx context.Context, selector string) (Control, error)
	FindAll(ctx context.Context, selector string) ([]Control, error)

	ScrollToBottom(ctx context.Context) error
	ScrollHeight(ctx context.Context) (int, error)

	// ExportCookies and ImportCookies transfer the session artifact as
	// an opaque blob; callers never inspect its contents.
	ExportCookies(ctx context.Context) ([]byte, error)
	ImportCookies(ctx context.Context, data []byte) error
}

// FindFirst tries each selector in order and returns the first control
// that resolves. The fallback policy is explicit rather than driven by
// error control flow, so callers can test it directly.
func FindFirst(ctx context.Context, s Session, selectors ...string) (Control, bool) {
	for _, sel := range selectors {
		ctl, err := s.Find(ctx, sel)
		if err == nil {
			return ctl, true
		}
	}
	return nil, false
}
