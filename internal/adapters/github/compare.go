package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/okian/gamebot/internal/domain/resolve"
)

const (
	comparePlaceholder = "{base}...{head}"
	maxCompareBody     = 16 << 20
)

type compareResponse struct {
	Status       string        `json:"status"`
	TotalCommits int           `json:"total_commits"`
	Files        []compareFile `json:"files"`
}

type compareFile struct {
	Filename  string `json:"filename"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
}

// ExpandCompareURL fills a compare_url template such as
// https://api.github.com/repos/o/r/compare/{base}...{head}.
func ExpandCompareURL(template, base, head string) (string, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		return "", ErrNoCompareURL
	}
	if strings.HasSuffix(template, comparePlaceholder) {
		return strings.TrimSuffix(template, comparePlaceholder) + base + "..." + head, nil
	}
	if !strings.Contains(template, "{base}") || !strings.Contains(template, "{head}") {
		return "", fmt.Errorf("%w: %q has no {base}/{head} placeholders", ErrNoCompareURL, template)
	}
	return strings.NewReplacer("{base}", base, "{head}", head).Replace(template), nil
}

// CompareRange implements resolve.DiffProvider.
func (c *Client) CompareRange(ctx context.Context, compareURL, base, head string) ([]resolve.FileChange, error) {
	url, err := ExpandCompareURL(compareURL, base, head)
	if err != nil {
		return nil, err
	}

	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var out compareResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxCompareBody)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode compare %s...%s: %w", base, head, err)
	}

	files := make([]resolve.FileChange, len(out.Files))
	for i, f := range out.Files {
		files[i] = resolve.FileChange{Filename: f.Filename, Changes: f.Changes}
	}
	return files, nil
}
