// Package commits is a read-through cache in front of the GitHub commits
// API for the site's "recent activity" widget. Fresh cache wins; on
// upstream failure the last cached value is served regardless of expiry.
package commits

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"
)

// ErrNoData means the upstream call failed and no cached row exists at all.
var ErrNoData = errors.New("commits: no cached or fresh data available")

type Result struct {
	Commits []CommitSummary
	Cached  bool
	Stale   bool
}

type Service struct {
	repo       *Repo
	gh         *GitHubClient
	repository string
	ttl        time.Duration
	fetchCount int

	now func() time.Time
}

func NewService(repo *Repo, gh *GitHubClient, repository string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		repo:       repo,
		gh:         gh,
		repository: repository,
		ttl:        ttl,
		fetchCount: defaultFetchCount,
		now:        time.Now,
	}
}

// RecentActivity implements the read path: fresh cache hit, otherwise fetch
// and write-through without blocking the response, otherwise stale
// fallback. Only when nothing cached exists does it return ErrNoData.
func (s *Service) RecentActivity(ctx context.Context) (Result, error) {
	entry, err := s.repo.Get(ctx, s.repository)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[Commits] cache read failed repo=%s err=%v", s.repository, err)
		entry = nil
	}

	if entry != nil && s.now().Before(entry.ExpiresAt) {
		commits, decErr := entry.Decode()
		if decErr == nil {
			return Result{Commits: commits, Cached: true}, nil
		}
		log.Printf("[Commits] cache decode failed repo=%s err=%v", s.repository, decErr)
	}

	fresh, fetchErr := s.gh.RecentCommits(ctx, s.repository, s.fetchCount)
	if fetchErr == nil {
		// write-through without blocking the response
		go func(commits []CommitSummary) {
			wctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.repo.Upsert(wctx, s.repository, commits, s.ttl); err != nil {
				log.Printf("[Commits] cache save failed repo=%s err=%v", s.repository, err)
			}
		}(fresh)
		return Result{Commits: fresh, Cached: false}, nil
	}

	log.Printf("[Commits] github fetch failed repo=%s err=%v", s.repository, fetchErr)

	// stale fallback: any cached row, expired or not
	if entry != nil {
		if commits, decErr := entry.Decode(); decErr == nil {
			return Result{Commits: commits, Cached: true, Stale: true}, nil
		}
	}

	return Result{Commits: []CommitSummary{}}, ErrNoData
}
