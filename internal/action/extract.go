package action

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	nameSelector     = ".text-heading-xlarge"
	headlineSelector = ".text-body-medium.break-words"
)

// extractProfile scrapes the visible identity fields from the target
// profile. Missing fields are omitted, not errors; the page layout
// varies too much to treat absence as failure.
func (m *Machine) extractProfile(ctx context.Context, req Request, res *Result) error {
	if err := m.open(ctx, req.Target); err != nil {
		return err
	}
	res.State = m.state(ctx)

	html, err := m.sess.HTML(ctx)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}

	fields := map[string]string{"profile_link": req.Target}
	if name := strings.TrimSpace(doc.Find(nameSelector).First().Text()); name != "" {
		fields["name"] = name
	}
	if headline := strings.TrimSpace(doc.Find(headlineSelector).First().Text()); headline != "" {
		fields["headline"] = headline
	}
	res.Fields = fields

	m.log.Infow("profile extracted", "target", req.Target, "fields", len(fields))
	return nil
}
