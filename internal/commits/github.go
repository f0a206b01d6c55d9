package commits

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGitHubAPI  = "https://api.github.com"
	messageTrimWidth  = 72
	shortSHALength    = 7
	defaultFetchCount = 5
)

// GitHubClient fetches recent commits for the activity widget. Token is
// optional; unauthenticated calls just hit the lower rate limit.
type GitHubClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewGitHubClient(baseURL, token string) *GitHubClient {
	if baseURL == "" {
		baseURL = defaultGitHubAPI
	}
	return &GitHubClient{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type githubCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	HTMLURL string `json:"html_url"`
}

// RecentCommits returns the latest n commits mapped to trimmed summaries:
// short hash, first message line capped at 72 characters, author, date,
// link.
func (c *GitHubClient) RecentCommits(ctx context.Context, repository string, n int) ([]CommitSummary, error) {
	if n <= 0 {
		n = defaultFetchCount
	}

	url := fmt.Sprintf("%s/repos/%s/commits?per_page=%d",
		strings.TrimRight(c.BaseURL, "/"), repository, n)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "Portfolio-Website")
	if c.Token != "" {
		req.Header.Set("Authorization", "token "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("github api error: status %d", resp.StatusCode)
	}

	var decoded []githubCommit
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}

	out := make([]CommitSummary, 0, len(decoded))
	for _, gc := range decoded {
		out = append(out, CommitSummary{
			SHA:     shortSHA(gc.SHA),
			Message: firstLine(gc.Commit.Message, messageTrimWidth),
			Date:    gc.Commit.Author.Date,
			Author:  gc.Commit.Author.Name,
			URL:     gc.HTMLURL,
		})
	}
	return out, nil
}

func shortSHA(sha string) string {
	if len(sha) > shortSHALength {
		return sha[:shortSHALength]
	}
	return sha
}

func firstLine(msg string, width int) string {
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if len(msg) > width {
		msg = msg[:width]
	}
	return msg
}
