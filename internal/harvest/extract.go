package harvest

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Record is one harvested contact. Fields absent from the card are left
// empty rather than failing the row.
type Record struct {
	Name        string
	Occupation  string
	ProfileLink string
	Avatar      string
}

// Key identifies a record for cross-round deduplication. Listings
// without per-card links fall back to the display name.
func (r Record) Key() string {
	if r.ProfileLink != "" {
		return r.ProfileLink
	}
	return r.Name
}

// Extractor turns one listing card into a Record. Returning false
// drops the card, for decoration rows mixed into the list.
type Extractor func(li *goquery.Selection) (Record, bool)

// ConnectionExtractor reads first-degree connection cards.
func ConnectionExtractor(li *goquery.Selection) (Record, bool) {
	name := strings.TrimSpace(li.Find("span.mn-connection-card__name").First().Text())
	href, _ := li.Find("a.mn-connection-card__link").First().Attr("href")
	if name == "" && href == "" {
		return Record{}, false
	}
	if href != "" && strings.HasPrefix(href, "/") {
		href = "https://www.linkedin.com" + href
	}
	return Record{Name: name, ProfileLink: href}, true
}

// NewFollowingExtractor reads followed-people cards, fetching each
// card's avatar through fetcher when one is set.
func NewFollowingExtractor(fetcher *Fetcher) Extractor {
	return func(li *goquery.Selection) (Record, bool) {
		name := strings.TrimSpace(li.Find("span.entity-result__title-text").First().Text())
		occupation := strings.TrimSpace(li.Find("div.entity-result__primary-subtitle").First().Text())
		href, _ := li.Find("a.app-aware-link").First().Attr("href")
		if name == "" && href == "" {
			return Record{}, false
		}

		rec := Record{Name: name, Occupation: occupation, ProfileLink: href}
		if fetcher != nil {
			if src, ok := li.Find("img.presence-entity__image").First().Attr("src"); ok {
				if path, err := fetcher.Fetch(src, href); err == nil {
					rec.Avatar = path
				}
			}
		}
		return rec, true
	}
}

// FollowerExtractor reads follower cards, which carry no per-card link.
func FollowerExtractor(li *goquery.Selection) (Record, bool) {
	name := strings.TrimSpace(li.Find("span.entity-result__title-text").First().Text())
	occupation := strings.TrimSpace(li.Find("div.entity-result__primary-subtitle").First().Text())
	if name == "" {
		return Record{}, false
	}
	return Record{Name: name, Occupation: occupation}, true
}
