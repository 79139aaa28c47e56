package action

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/nvyas/linkpilot/internal/browser/browsertest"
	"github.com/nvyas/linkpilot/internal/logger"
	"github.com/nvyas/linkpilot/internal/relation"
)

const profileURL = "https://www.linkedin.com/in/jane-doe"

func newTestMachine(sess *browsertest.Session, opts ...Option) *Machine {
	base := []Option{
		WithSettle(0),
		WithLikeDelay(0),
	}
	return New(sess, logger.Nop(), append(base, opts...)...)
}

func TestConnectSkipsWhenAlreadyConnected(t *testing.T) {
	connectBtn := &browsertest.Control{}
	sess := browsertest.NewSession(&browsertest.Page{
		URL:  profileURL,
		HTML: "Remove Connection",
		Controls: map[string]*browsertest.Control{
			connectButtonSelectors[0]: connectBtn,
		},
	})
	m := newTestMachine(sess)

	res := m.Perform(context.Background(), Request{Kind: KindConnect, Target: profileURL})
	require.Equal(t, OutcomeSkipped, res.Outcome)
	require.True(t, res.AlreadyInState)
	require.Equal(t, relation.Connected, res.State)
	require.Zero(t, connectBtn.Clicks)
}

func TestConnectSkipsWhenPending(t *testing.T) {
	sess := browsertest.NewSession(&browsertest.Page{
		URL:  profileURL,
		HTML: "Pending, click to withdraw invitation sent to Jane",
	})
	m := newTestMachine(sess)

	res := m.Perform(context.Background(), Request{Kind: KindConnect, Target: profileURL})
	require.Equal(t, OutcomeSkipped, res.Outcome)
	require.Equal(t, relation.Pending, res.State)
}

func TestConnectWithoutDialog(t *testing.T) {
	connectBtn := &browsertest.Control{}
	sess := browsertest.NewSession(&browsertest.Page{
		URL:  profileURL,
		HTML: "<main>Jane Doe</main>",
		Controls: map[string]*browsertest.Control{
			connectButtonSelectors[0]: connectBtn,
		},
	})
	m := newTestMachine(sess)

	res := m.Perform(context.Background(), Request{Kind: KindConnect, Target: profileURL})
	require.Equal(t, OutcomeCompleted, res.Outcome)
	require.Equal(t, 1, connectBtn.Clicks)
}

// connectDialogPage scripts a profile whose connect button raises the
// invitation dialog.
func connectDialogPage(sess *browsertest.Session) (page *browsertest.Page, controls map[string]*browsertest.Control) {
	noteField := &browsertest.Control{}
	addNote := &browsertest.Control{}
	sendWithout := &browsertest.Control{}
	send := &browsertest.Control{}

	page = &browsertest.Page{
		URL:  profileURL,
		HTML: "<main>Jane Doe</main>",
	}
	connectBtn := &browsertest.Control{
		OnClick: func() {
			page.HTML = "Add a note to your invitation"
		},
	}
	page.Controls = map[string]*browsertest.Control{
		connectButtonSelectors[0]:                  connectBtn,
		`button[aria-label="Add a note"]`:          addNote,
		`button[aria-label="Send without a note"]`: sendWithout,
		noteFieldSelectors[0]:                      noteField,
		sendInvitationSelectors[0]:                 send,
	}
	return page, map[string]*browsertest.Control{
		"connect":      connectBtn,
		"add_note":     addNote,
		"send_without": sendWithout,
		"note_field":   noteField,
		"send":         send,
	}
}

func TestConnectWithNoteTakesNotePath(t *testing.T) {
	sess := browsertest.NewSession()
	page, controls := connectDialogPage(sess)
	sess.AddPage(page)
	m := newTestMachine(sess)

	res := m.Perform(context.Background(), Request{Kind: KindConnect, Target: profileURL, Note: "Hi Jane"})
	require.Equal(t, OutcomeCompleted, res.Outcome)

	require.Equal(t, 1, controls["add_note"].Clicks)
	require.Equal(t, []string{"Hi Jane"}, controls["note_field"].Inputs)
	require.Equal(t, 1, controls["send"].Clicks)
	require.Zero(t, controls["send_without"].Clicks)
}

func TestConnectWithoutNoteSendsWithoutNote(t *testing.T) {
	sess := browsertest.NewSession()
	page, controls := connectDialogPage(sess)
	sess.AddPage(page)
	m := newTestMachine(sess)

	res := m.Perform(context.Background(), Request{Kind: KindConnect, Target: profileURL})
	require.Equal(t, OutcomeCompleted, res.Outcome)

	require.Equal(t, 1, controls["send_without"].Clicks)
	require.Zero(t, controls["add_note"].Clicks)
	require.Empty(t, controls["note_field"].Inputs)
}

func TestConnectTruncatesLongNote(t *testing.T) {
	tests := []struct {
		name string
		note string
	}{
		{name: "ascii", note: strings.Repeat("x", MaxNoteLength+50)},
		{name: "multibyte", note: strings.Repeat("é", MaxNoteLength+50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := browsertest.NewSession()
			page, controls := connectDialogPage(sess)
			sess.AddPage(page)
			m := newTestMachine(sess)

			res := m.Perform(context.Background(), Request{Kind: KindConnect, Target: profileURL, Note: tt.note})
			require.Equal(t, OutcomeCompleted, res.Outcome)

			require.Len(t, controls["note_field"].Inputs, 1)
			typed := controls["note_field"].Inputs[0]
			require.True(t, utf8.ValidString(typed))
			require.Equal(t, MaxNoteLength, utf8.RuneCountInString(typed))
			require.True(t, strings.HasSuffix(typed, "..."))
		})
	}
}

func TestConnectKeepsNoteAtCharacterLimit(t *testing.T) {
	sess := browsertest.NewSession()
	page, controls := connectDialogPage(sess)
	sess.AddPage(page)
	m := newTestMachine(sess)

	// 300 two-byte characters exceed 300 bytes but fit the
	// character limit, so the note goes through untouched.
	note := strings.Repeat("é", MaxNoteLength)
	res := m.Perform(context.Background(), Request{Kind: KindConnect, Target: profileURL, Note: note})
	require.Equal(t, OutcomeCompleted, res.Outcome)
	require.Equal(t, []string{note}, controls["note_field"].Inputs)
}

func TestConnectAbortsOnEmailVerification(t *testing.T) {
	sess := browsertest.NewSession()
	page, _ := connectDialogPage(sess)
	connectBtn := page.Controls[connectButtonSelectors[0]]
	connectBtn.OnClick = func() {
		page.HTML = "Add a note to your invitation\n" +
			"To verify this member knows you, please enter their email to connect"
	}
	sess.AddPage(page)
	m := newTestMachine(sess)

	res := m.Perform(context.Background(), Request{Kind: KindConnect, Target: profileURL, Note: "Hi"})
	require.Equal(t, OutcomeFailed, res.Outcome)
	require.ErrorIs(t, res.Err, ErrRequiresEmailVerification)
}

func TestConnectFallsBackToMenuAndSkipsDeadItems(t *testing.T) {
	dead := &browsertest.Control{TextValue: "Connect", ClickErr: context.DeadlineExceeded}
	live := &browsertest.Control{TextValue: "Connect"}
	other := &browsertest.Control{TextValue: "Report profile"}

	sess := browsertest.NewSession(&browsertest.Page{
		URL:  profileURL,
		HTML: "<main>Jane Doe</main>",
		Controls: map[string]*browsertest.Control{
			moreActionsSelector: {},
		},
		Lists: map[string][]*browsertest.Control{
			dropdownItemSelector: {other, dead, live},
		},
	})
	m := newTestMachine(sess)

	res := m.Perform(context.Background(), Request{Kind: KindConnect, Target: profileURL})
	require.Equal(t, OutcomeCompleted, res.Outcome)
	require.Equal(t, 1, live.Clicks)
	require.Zero(t, other.Clicks)
}

func TestConnectFailsWhenNoControlAnywhere(t *testing.T) {
	sess := browsertest.NewSession(&browsertest.Page{
		URL:  profileURL,
		HTML: "<main>Jane Doe</main>",
	})
	m := newTestMachine(sess)

	res := m.Perform(context.Background(), Request{Kind: KindConnect, Target: profileURL})
	require.Equal(t, OutcomeFailed, res.Outcome)
	require.ErrorIs(t, res.Err, ErrControlNotFound)
}

func TestFollowPersonSkipsWhenAlreadyFollowing(t *testing.T) {
	followBtn := &browsertest.Control{TextValue: "Following"}
	sess := browsertest.NewSession(&browsertest.Page{
		URL: profileURL,
		Controls: map[string]*browsertest.Control{
			personFollowSelectors[0]: followBtn,
		},
	})
	m := newTestMachine(sess)

	res := m.Perform(context.Background(), Request{Kind: KindFollowPerson, Target: profileURL})
	require.Equal(t, OutcomeSkipped, res.Outcome)
	require.True(t, res.AlreadyInState)
	require.Zero(t, followBtn.Clicks)
}

func TestFollowPersonClicksFollow(t *testing.T) {
	followBtn := &browsertest.Control{TextValue: "Follow"}
	sess := browsertest.NewSession(&browsertest.Page{
		URL: profileURL,
		Controls: map[string]*browsertest.Control{
			personFollowSelectors[0]: followBtn,
		},
	})
	m := newTestMachine(sess)

	res := m.Perform(context.Background(), Request{Kind: KindFollowPerson, Target: profileURL})
	require.Equal(t, OutcomeCompleted, res.Outcome)
	require.Equal(t, 1, followBtn.Clicks)
}

type fakeLedger struct {
	followed map[string]bool
	recorded []string
}

func (l *fakeLedger) HasFollowedCompany(accountID, companyURL string) (bool, error) {
	return l.followed[companyURL], nil
}

func (l *fakeLedger) RecordCompanyFollow(accountID, companyURL string) error {
	l.recorded = append(l.recorded, companyURL)
	return nil
}

func TestFollowPersonFollowsEmployerCompanies(t *testing.T) {
	const (
		companyA = "https://www.linkedin.com/company/acme"
		companyB = "https://www.linkedin.com/company/globex"
	)

	sess := browsertest.NewSession(
		&browsertest.Page{
			URL: profileURL,
			Controls: map[string]*browsertest.Control{
				personFollowSelectors[0]: {TextValue: "Follow"},
			},
		},
		&browsertest.Page{
			URL: profileURL + "/details/experience",
			Lists: map[string][]*browsertest.Control{
				companyLinkSelector: {
					{Attrs: map[string]string{"href": companyA}},
					{Attrs: map[string]string{"href": companyA}}, // duplicate entry
					{Attrs: map[string]string{"href": companyB}},
				},
			},
		},
		&browsertest.Page{
			URL: companyA,
			Controls: map[string]*browsertest.Control{
				companyFollowSelectors[0]: {TextValue: "Follow"},
			},
		},
		&browsertest.Page{
			URL: companyB,
			Controls: map[string]*browsertest.Control{
				companyFollowSelectors[0]: {TextValue: "Follow"},
			},
		},
	)

	ledger := &fakeLedger{followed: map[string]bool{companyB: true}}
	m := newTestMachine(sess, WithFollowLedger(ledger, "acct"))

	res := m.Perform(context.Background(), Request{
		Kind:            KindFollowPerson,
		Target:          profileURL,
		FollowCompanies: true,
	})
	require.Equal(t, OutcomeCompleted, res.Outcome)

	// companyB is skipped via the ledger; companyA is followed once
	// despite the duplicate link.
	require.Equal(t, 1, res.CompaniesFollowed)
	require.Equal(t, []string{companyA}, ledger.recorded)
}

func TestFollowCompanyAlreadyFollowing(t *testing.T) {
	const companyURL = "https://www.linkedin.com/company/acme"
	sess := browsertest.NewSession(&browsertest.Page{
		URL: companyURL,
		Controls: map[string]*browsertest.Control{
			companyFollowSelectors[0]: {TextValue: "Following"},
		},
	})
	m := newTestMachine(sess)

	res := m.Perform(context.Background(), Request{Kind: KindFollowCompany, Target: companyURL})
	require.Equal(t, OutcomeSkipped, res.Outcome)
	require.True(t, res.AlreadyInState)
}

func TestMessageTypesAndSends(t *testing.T) {
	box := &browsertest.Control{}
	send := &browsertest.Control{}
	sess := browsertest.NewSession(&browsertest.Page{
		URL: profileURL,
		Controls: map[string]*browsertest.Control{
			messageButtonSelectors[0]: {},
			messageBoxSelectors[0]:    box,
			messageSendSelectors[0]:   send,
		},
	})
	m := newTestMachine(sess)

	res := m.Perform(context.Background(), Request{Kind: KindMessage, Target: profileURL, Note: "Hello!"})
	require.Equal(t, OutcomeCompleted, res.Outcome)
	require.Equal(t, []string{"Hello!"}, box.Inputs)
	require.Equal(t, 1, send.Clicks)
}

func TestMessageRejectsEmptyBody(t *testing.T) {
	sess := browsertest.NewSession()
	m := newTestMachine(sess)

	res := m.Perform(context.Background(), Request{Kind: KindMessage, Target: profileURL})
	require.Equal(t, OutcomeFailed, res.Outcome)
	require.ErrorIs(t, res.Err, ErrUnexpectedPageState)
}

func TestLikePostsCountsClicks(t *testing.T) {
	first := &browsertest.Control{}
	second := &browsertest.Control{}
	sess := browsertest.NewSession(&browsertest.Page{
		URL: profileURL + "/recent-activity/all/",
		Lists: map[string][]*browsertest.Control{
			likeButtonSelector: {first, second},
		},
	})
	m := newTestMachine(sess, WithLikeRounds(1))

	res := m.Perform(context.Background(), Request{Kind: KindLikePosts, Target: profileURL})
	require.Equal(t, OutcomeCompleted, res.Outcome)
	require.Equal(t, 2, res.Liked)
	require.Equal(t, 1, first.Clicks)
	require.Equal(t, 1, second.Clicks)
}

func TestLikePostsNoUnlikedPosts(t *testing.T) {
	sess := browsertest.NewSession(&browsertest.Page{
		URL: profileURL + "/recent-activity/all/",
	})
	m := newTestMachine(sess, WithLikeRounds(1))

	res := m.Perform(context.Background(), Request{Kind: KindLikePosts, Target: profileURL})
	require.Equal(t, OutcomeCompleted, res.Outcome)
	require.Zero(t, res.Liked)
	require.Equal(t, "no unliked posts found", res.Detail)
}

func TestExtractProfileReadsFields(t *testing.T) {
	sess := browsertest.NewSession(&browsertest.Page{
		URL: profileURL,
		HTML: `<main>
			<h1 class="text-heading-xlarge">Jane Doe</h1>
			<div class="text-body-medium break-words"> Staff Engineer at Acme </div>
		</main>`,
	})
	m := newTestMachine(sess)

	res := m.Perform(context.Background(), Request{Kind: KindExtractProfile, Target: profileURL})
	require.Equal(t, OutcomeCompleted, res.Outcome)
	require.Equal(t, "Jane Doe", res.Fields["name"])
	require.Equal(t, "Staff Engineer at Acme", res.Fields["headline"])
	require.Equal(t, profileURL, res.Fields["profile_link"])
}

func TestExtractProfileMissingFieldsAreOmitted(t *testing.T) {
	sess := browsertest.NewSession(&browsertest.Page{
		URL:  profileURL,
		HTML: "<main></main>",
	})
	m := newTestMachine(sess)

	res := m.Perform(context.Background(), Request{Kind: KindExtractProfile, Target: profileURL})
	require.Equal(t, OutcomeCompleted, res.Outcome)
	require.NotContains(t, res.Fields, "name")
	require.NotContains(t, res.Fields, "headline")
}

func TestPerformDismissesMessagingOverlay(t *testing.T) {
	overlay := &browsertest.Control{}
	sess := browsertest.NewSession(&browsertest.Page{
		URL:  profileURL,
		HTML: "<main></main>",
		Controls: map[string]*browsertest.Control{
			messagingOverlaySelector:  overlay,
			connectButtonSelectors[0]: {},
		},
	})
	m := newTestMachine(sess)

	m.Perform(context.Background(), Request{Kind: KindConnect, Target: profileURL})
	require.True(t, overlay.Hidden)
}

func TestParseKind(t *testing.T) {
	kind, ok := ParseKind("connect")
	require.True(t, ok)
	require.Equal(t, KindConnect, kind)

	_, ok = ParseKind("teleport")
	require.False(t, ok)
}
