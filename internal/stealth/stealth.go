// Package stealth reduces the automation footprint of the launched
// browser: evasion scripts, realistic viewport and user agent, and
// jittered pacing between interactions.
package stealth

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

var rng = rand.New(rand.NewSource(time.Now().UnixNano()))

// NewPage opens a page with the evasion scripts injected before any
// navigation.
func NewPage(browser *rod.Browser) (*rod.Page, error) {
	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("failed to open stealth page: %w", err)
	}
	return page, nil
}

// DisableAutomationFlags masks the remaining automation signals the
// evasion scripts leave exposed.
func DisableAutomationFlags(page *rod.Page) error {
	_, err := page.Eval(`() => {
		Object.defineProperty(navigator, 'webdriver', {
			get: () => false
		});
		window.chrome = window.chrome || { runtime: {} };
	}`)
	if err != nil {
		return fmt.Errorf("failed to mask automation flags: %w", err)
	}
	return nil
}

// RandomUserAgent returns a realistic desktop Chrome user agent.
func RandomUserAgent() string {
	userAgents := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
	return userAgents[rng.Intn(len(userAgents))]
}

// SetRealisticViewport sets a common desktop viewport size.
func SetRealisticViewport(page *rod.Page) error {
	viewports := []struct{ Width, Height int }{
		{1920, 1080},
		{1366, 768},
		{1536, 864},
		{1440, 900},
	}
	v := viewports[rng.Intn(len(viewports))]
	return page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  v.Width,
		Height: v.Height,
	})
}

// RandomDelay returns a random duration in [min, max). It only picks
// the duration; callers own the wait so it stays cancellable.
func RandomDelay(min, max time.Duration) time.Duration {
	if min >= max {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)))
}
