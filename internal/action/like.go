package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/nvyas/linkpilot/internal/browser"
)

const likeButtonSelector = `button[aria-label="React Like"][aria-pressed="false"]`

// likePosts opens the target's recent activity and likes the unreacted
// posts it can reach, scrolling for more between rounds. Already-liked
// posts never match the selector, so repeat runs converge to zero
// clicks instead of toggling reactions off.
func (m *Machine) likePosts(ctx context.Context, req Request, res *Result) error {
	activityURL := strings.TrimRight(req.Target, "/") + "/recent-activity/all/"
	if err := m.open(ctx, activityURL); err != nil {
		return err
	}

	for round := 0; round < m.likeRounds; round++ {
		buttons, err := m.sess.FindAll(ctx, likeButtonSelector)
		if err != nil {
			return fmt.Errorf("%w: like controls: %v", ErrControlNotFound, err)
		}
		for _, btn := range buttons {
			if err := btn.Click(ctx); err != nil {
				m.log.Debugw("like click failed, skipping post", "error", err)
				continue
			}
			res.Liked++
			browser.Sleep(ctx, m.likeDelay)
		}

		if err := m.sess.ScrollToBottom(ctx); err != nil {
			break
		}
		browser.Sleep(ctx, m.settle)
	}

	m.log.Infow("liked recent posts", "target", req.Target, "count", res.Liked)
	if res.Liked == 0 {
		res.Detail = "no unliked posts found"
	}
	return nil
}
