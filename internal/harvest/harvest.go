// Package harvest collects profile records from infinite-scroll network
// listings. Termination is structural: when a scroll round no longer
// grows the document, the listing is exhausted.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/nvyas/linkpilot/internal/browser"
)

// ErrTimeout reports that the iteration cap was reached before the
// scroll height stabilized. Records gathered so far accompany it.
var ErrTimeout = errors.New("harvest iteration cap reached")

const (
	messagingOverlaySelector = ".msg-overlay-bubble-header"
	showMoreButtonSelector   = "button.artdeco-button"
	showMoreLabel            = "Show more results"
)

// Harvester drives one browser session through a listing page,
// scrolling and clicking for more results until the page stops growing.
type Harvester struct {
	sess browser.Session
	log  *zap.SugaredLogger

	settle        time.Duration
	pollInterval  time.Duration
	readyTimeout  time.Duration
	maxIterations int
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithSettle sets the delay after each scroll round so lazily loaded
// results can render.
func WithSettle(d time.Duration) Option {
	return func(h *Harvester) { h.settle = d }
}

// WithPollInterval sets the ready-state polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(h *Harvester) { h.pollInterval = d }
}

// WithMaxIterations caps the number of scroll rounds before the run is
// abandoned with ErrTimeout.
func WithMaxIterations(n int) Option {
	return func(h *Harvester) { h.maxIterations = n }
}

// New returns a Harvester driving sess.
func New(sess browser.Session, log *zap.SugaredLogger, opts ...Option) *Harvester {
	h := &Harvester{
		sess:          sess,
		log:           log,
		settle:        5 * time.Second,
		pollInterval:  500 * time.Millisecond,
		readyTimeout:  20 * time.Second,
		maxIterations: 40,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run harvests the listing until the scroll height stops changing,
// deduplicating records by key across rounds. On hitting the iteration
// cap it returns the partial results together with ErrTimeout.
func (h *Harvester) Run(ctx context.Context, listing Listing, extract Extractor) ([]Record, error) {
	if err := h.sess.Navigate(ctx, listing.URL); err != nil {
		return nil, fmt.Errorf("failed to open listing %s: %w", listing.URL, err)
	}
	if err := browser.WaitReady(ctx, h.sess, h.pollInterval, h.readyTimeout); err != nil {
		return nil, fmt.Errorf("listing never settled: %w", err)
	}
	browser.Sleep(ctx, h.settle)
	h.dismissMessagingOverlay(ctx)

	var records []Record
	seen := make(map[string]bool)

	height, err := h.sess.ScrollHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to measure listing: %w", err)
	}

	for i := 0; ; i++ {
		if i >= h.maxIterations {
			h.log.Warnw("harvest abandoned at iteration cap",
				"url", listing.URL, "iterations", i, "records", len(records))
			return records, ErrTimeout
		}

		h.clickShowMore(ctx)
		if err := h.sess.ScrollToBottom(ctx); err != nil {
			return records, fmt.Errorf("failed to scroll listing: %w", err)
		}
		browser.Sleep(ctx, h.settle)

		if err := h.collect(ctx, listing, extract, seen, &records); err != nil {
			return records, err
		}

		newHeight, err := h.sess.ScrollHeight(ctx)
		if err != nil {
			return records, fmt.Errorf("failed to measure listing: %w", err)
		}
		if newHeight == height {
			break
		}
		height = newHeight
	}

	h.log.Infow("harvest complete", "url", listing.URL, "records", len(records))
	return records, nil
}

// collect parses the current page and appends records not yet seen.
func (h *Harvester) collect(ctx context.Context, listing Listing, extract Extractor, seen map[string]bool, records *[]Record) error {
	html, err := h.sess.HTML(ctx)
	if err != nil {
		return fmt.Errorf("failed to read listing page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("failed to parse listing page: %w", err)
	}

	doc.Find("div." + listing.ContainerClass).Find("li").Each(func(_ int, li *goquery.Selection) {
		rec, ok := extract(li)
		if !ok || seen[rec.Key()] {
			return
		}
		seen[rec.Key()] = true
		*records = append(*records, rec)
	})
	return nil
}

// clickShowMore clicks the pagination button when present; its absence
// just means the listing paginates by scroll alone.
func (h *Harvester) clickShowMore(ctx context.Context) {
	buttons, err := h.sess.FindAll(ctx, showMoreButtonSelector)
	if err != nil {
		return
	}
	for _, btn := range buttons {
		text, err := btn.Text(ctx)
		if err != nil || !strings.Contains(text, showMoreLabel) {
			continue
		}
		if err := btn.Click(ctx); err != nil {
			h.log.Debugw("show-more button not interactable", "error", err)
			return
		}
		browser.Sleep(ctx, h.settle)
		return
	}
}

func (h *Harvester) dismissMessagingOverlay(ctx context.Context) {
	ctl, ok := browser.FindFirst(ctx, h.sess, messagingOverlaySelector)
	if !ok {
		return
	}
	visible, err := ctl.Visible(ctx)
	if err != nil || !visible {
		return
	}
	if err := ctl.Hide(ctx); err != nil {
		h.log.Debugw("failed to hide messaging overlay", "error", err)
	}
}
