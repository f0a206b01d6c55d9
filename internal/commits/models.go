package commits

import "time"

// CommitSummary is the trimmed per-commit shape served to the widget.
type CommitSummary struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	Date    string `json:"date"`
	Author  string `json:"author"`
	URL     string `json:"url"`
}

// CacheEntry is one row per repository, replaced wholesale on refresh. Rows
// are never deleted; expiry is logical so the stale-fallback path can still
// read them.
type CacheEntry struct {
	Repository string    `gorm:"primaryKey;size:190" json:"repository"`
	Commits    string    `gorm:"type:text;not null" json:"-"` // JSON-encoded []CommitSummary
	CachedAt   time.Time `json:"cached_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (CacheEntry) TableName() string { return "github_commits_cache" }
