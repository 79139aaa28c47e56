package action

import (
	"context"
	"strings"

	"github.com/nvyas/linkpilot/internal/browser"
	"github.com/nvyas/linkpilot/internal/relation"
)

var personFollowSelectors = []string{
	`button[aria-label*="Follow"][type="button"]`,
}

var companyFollowSelectors = []string{
	`button[aria-label*="Follow"][type="button"]`,
	"button.follow",
}

const companyLinkSelector = `a[href*="/company/"]`

// followPerson follows the target profile, with the company
// follow-through when requested.
func (m *Machine) followPerson(ctx context.Context, req Request, res *Result) error {
	if err := m.open(ctx, req.Target); err != nil {
		return err
	}

	state := m.state(ctx)
	res.State = state
	if state == relation.Pending {
		res.Outcome = OutcomeSkipped
		res.AlreadyInState = true
		res.Detail = "invitation already pending"
		return nil
	}

	followed, err := m.clickFollow(ctx, personFollowSelectors, "Follow")
	if err != nil {
		return err
	}
	if !followed {
		res.Outcome = OutcomeSkipped
		res.AlreadyInState = true
		res.Detail = "already following"
	}

	if req.FollowCompanies {
		m.followEmployers(ctx, req.Target, res)
		if res.CompaniesFollowed > 0 {
			res.Outcome = OutcomeCompleted
		}
	}
	return nil
}

// followCompany follows a single company page.
func (m *Machine) followCompany(ctx context.Context, req Request, res *Result) error {
	if err := m.open(ctx, req.Target); err != nil {
		return err
	}
	followed, err := m.clickFollow(ctx, companyFollowSelectors, "Follow")
	if err != nil {
		return err
	}
	if !followed {
		res.Outcome = OutcomeSkipped
		res.AlreadyInState = true
		res.Detail = "already following"
	}
	return nil
}

// clickFollow resolves the follow control and clicks it unless its
// label shows the follow is already active. Returns false when the
// target was already followed.
func (m *Machine) clickFollow(ctx context.Context, primary []string, menuLabel string) (bool, error) {
	ctl, ok := browser.FindFirst(ctx, m.sess, primary...)
	if !ok {
		return true, m.triggerFromMenu(ctx, menuLabel)
	}

	text, err := ctl.Text(ctx)
	if err == nil && isActiveFollow(text) {
		return false, nil
	}
	if err := ctl.Click(ctx); err != nil {
		m.log.Debugw("follow control not interactable, trying menu", "error", err)
		return true, m.triggerFromMenu(ctx, menuLabel)
	}
	return true, nil
}

// followEmployers reads the target's experience listing, collects the
// distinct linked organizations and follows each one. Companies are
// processed independently; one failure never aborts the rest.
func (m *Machine) followEmployers(ctx context.Context, target string, res *Result) {
	experienceURL := strings.TrimRight(target, "/") + "/details/experience"
	if err := m.open(ctx, experienceURL); err != nil {
		m.log.Warnw("failed to open experience listing", "target", target, "error", err)
		return
	}

	links, err := m.sess.FindAll(ctx, companyLinkSelector)
	if err != nil {
		m.log.Warnw("failed to collect company links", "target", target, "error", err)
		return
	}

	seen := make(map[string]bool)
	var companies []string
	for _, link := range links {
		href, err := link.Attribute(ctx, "href")
		if err != nil || href == "" || seen[href] {
			continue
		}
		seen[href] = true
		companies = append(companies, href)
	}
	m.log.Infow("following employer companies", "target", target, "count", len(companies))

	for _, companyURL := range companies {
		if m.ledger != nil {
			done, err := m.ledger.HasFollowedCompany(m.accountID, companyURL)
			if err != nil {
				m.log.Warnw("follow ledger lookup failed", "company", companyURL, "error", err)
			} else if done {
				m.log.Debugw("company already followed, skipping", "company", companyURL)
				continue
			}
		}

		var companyRes Result
		if err := m.followCompany(ctx, Request{Kind: KindFollowCompany, Target: companyURL}, &companyRes); err != nil {
			m.log.Warnw("failed to follow company", "company", companyURL, "error", err)
			continue
		}
		if !companyRes.AlreadyInState {
			res.CompaniesFollowed++
		}
		if m.ledger != nil {
			if err := m.ledger.RecordCompanyFollow(m.accountID, companyURL); err != nil {
				m.log.Warnw("failed to record company follow", "company", companyURL, "error", err)
			}
		}
	}
}

// isActiveFollow reports whether a follow control's label indicates the
// follow is already in effect.
func isActiveFollow(label string) bool {
	label = strings.ToLower(strings.TrimSpace(label))
	return label == "following" || label == "unfollow"
}
