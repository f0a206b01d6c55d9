package commits

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Get returns the cache row for a repository regardless of expiry; callers
// decide whether it is fresh.
func (r *Repo) Get(ctx context.Context, repository string) (*CacheEntry, error) {
	var e CacheEntry
	if err := r.db.WithContext(ctx).
		Where("repository = ?", repository).
		First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// Upsert replaces the repository's row wholesale.
func (r *Repo) Upsert(ctx context.Context, repository string, commits []CommitSummary, ttl time.Duration) error {
	body, err := json.Marshal(commits)
	if err != nil {
		return err
	}
	now := time.Now()
	entry := CacheEntry{
		Repository: repository,
		Commits:    string(body),
		CachedAt:   now,
		ExpiresAt:  now.Add(ttl),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repository"}},
		UpdateAll: true,
	}).Create(&entry).Error
}

func (e *CacheEntry) Decode() ([]CommitSummary, error) {
	var out []CommitSummary
	if err := json.Unmarshal([]byte(e.Commits), &out); err != nil {
		return nil, err
	}
	return out, nil
}
