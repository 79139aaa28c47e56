package harvest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Fetcher downloads avatar images referenced by listing cards into a
// local directory. Inline data: URIs are the site's placeholder avatar
// and are skipped.
type Fetcher struct {
	client *resty.Client
	dir    string
}

// NewFetcher returns a Fetcher saving images under dir.
func NewFetcher(dir string) *Fetcher {
	client := resty.New().
		SetTimeout(15 * time.Second).
		SetRetryCount(2)
	return &Fetcher{client: client, dir: dir}
}

// Fetch downloads src and returns the saved file path. The filename is
// derived from the owning profile link so repeat harvests overwrite
// rather than accumulate.
func (f *Fetcher) Fetch(src, profileLink string) (string, error) {
	if src == "" || strings.HasPrefix(src, "data:image/") {
		return "", fmt.Errorf("no downloadable avatar for %s", profileLink)
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create avatar directory: %w", err)
	}

	path := filepath.Join(f.dir, avatarFilename(profileLink))
	resp, err := f.client.R().SetOutput(path).Get(src)
	if err != nil {
		return "", fmt.Errorf("failed to download avatar: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("avatar download returned %s", resp.Status())
	}
	return path, nil
}

func avatarFilename(profileLink string) string {
	name := strings.Trim(profileLink, "/")
	name = strings.NewReplacer("https://", "", "http://", "", "/", "_", ":", "_", "?", "_").Replace(name)
	if name == "" {
		name = "avatar"
	}
	return name + ".jpg"
}
