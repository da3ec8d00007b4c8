package diff

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sgaunet/bullets"

	"github.com/prampel/prampel/pkg/model"
)

// FetchFunc loads the normalized diff of one pull request from its provider.
type FetchFunc func(ctx context.Context, repo model.RepoRef, number int) ([]model.DiffFile, error)

// Summary is the aggregated diff of one pull request. Cached reports whether
// the files were served from the TTL cache rather than the provider.
type Summary struct {
	Files          []model.DiffFile
	TotalFiles     int
	TotalAdditions int
	TotalDeletions int
	Cached         bool
}

// Service serves pull request diff summaries with a TTL cache in front of the
// provider fetch. The provider is only consulted on cache miss; Invalidate
// drops an entry when the pull request is synced.
type Service struct {
	fetch FetchFunc
	cache *ttlCache
	log   *bullets.Logger
}

// NewService creates a diff service caching fetched diffs for ttl.
func NewService(fetch FetchFunc, ttl time.Duration, log *bullets.Logger) *Service {
	return &Service{
		fetch: fetch,
		cache: newTTLCache(ttl),
		log:   log,
	}
}

// Get returns the diff summary for one pull request, serving from cache when
// a fresh entry exists.
func (s *Service) Get(ctx context.Context, repo model.RepoRef, number int) (*Summary, error) {
	key := cacheKey(repo, number)

	if files, ok := s.cache.get(key); ok {
		s.log.Debugf("diff cache hit: %s", key)
		summary := summarize(files)
		summary.Cached = true
		return summary, nil
	}

	s.log.Debugf("diff cache miss: %s", key)
	files, err := s.fetch(ctx, repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch diff for %s#%d: %w", repo.ID(), number, err)
	}

	s.cache.set(key, files)
	return summarize(files), nil
}

// Invalidate drops the cached diff for one pull request.
func (s *Service) Invalidate(repo model.RepoRef, number int) {
	s.cache.delete(cacheKey(repo, number))
}

func cacheKey(repo model.RepoRef, number int) string {
	return fmt.Sprintf("diff:pr:%s:%d", repo.ID(), number)
}

func summarize(files []model.DiffFile) *Summary {
	summary := &Summary{
		Files:      files,
		TotalFiles: len(files),
	}
	for _, f := range files {
		summary.TotalAdditions += f.Additions
		summary.TotalDeletions += f.Deletions
	}
	return summary
}

// ttlCache is a mutex-guarded map with per-entry expiry. Expired entries are
// dropped lazily on read; the expected key population (one per open PR) does
// not justify a cleanup goroutine.
type ttlCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	files     []model.DiffFile
	expiresAt time.Time
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (c *ttlCache) get(key string) ([]model.DiffFile, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.delete(key)
		return nil, false
	}
	return entry.files, true
}

func (c *ttlCache) set(key string, files []model.DiffFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		files:     files,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *ttlCache) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
