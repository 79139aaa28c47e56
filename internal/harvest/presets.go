package harvest

// Listing names one infinite-scroll network page and the container its
// result cards live under.
type Listing struct {
	Name           string
	URL            string
	ContainerClass string
}

const finiteScrollContainer = "scaffold-finite-scroll__content"

var (
	// Connections lists the account's first-degree connections.
	Connections = Listing{
		Name:           "connections",
		URL:            "https://www.linkedin.com/mynetwork/invite-connect/connections/",
		ContainerClass: finiteScrollContainer,
	}

	// Following lists the people the account follows.
	Following = Listing{
		Name:           "following",
		URL:            "https://www.linkedin.com/mynetwork/network-manager/people-follow/following/",
		ContainerClass: finiteScrollContainer,
	}

	// Followers lists the people following the account.
	Followers = Listing{
		Name:           "followers",
		URL:            "https://www.linkedin.com/mynetwork/network-manager/people-follow/followers/",
		ContainerClass: finiteScrollContainer,
	}
)

// ListingByName resolves a preset by its CLI name.
func ListingByName(name string) (Listing, bool) {
	switch name {
	case Connections.Name:
		return Connections, true
	case Following.Name:
		return Following, true
	case Followers.Name:
		return Followers, true
	}
	return Listing{}, false
}
