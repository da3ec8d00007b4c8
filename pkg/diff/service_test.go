package diff_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prampel/prampel/internal/logger"
	"github.com/prampel/prampel/pkg/diff"
	"github.com/prampel/prampel/pkg/model"
	"github.com/prampel/prampel/testing/fixtures"
)

// countingFetch is a FetchFunc counting its invocations.
type countingFetch struct {
	mu    sync.Mutex
	count int
	files []model.DiffFile
	err   error
}

func (c *countingFetch) fetch(_ context.Context, _ model.RepoRef, _ int) ([]model.DiffFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return c.files, c.err
}

func (c *countingFetch) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func TestService_Get(t *testing.T) {
	repo := fixtures.WidgetsRepo()

	t.Run("summarizes fetched files", func(t *testing.T) {
		fetch := &countingFetch{files: []model.DiffFile{
			fixtures.TextDiffFile(),
			fixtures.RenamedDiffFile(),
		}}
		service := diff.NewService(fetch.fetch, time.Minute, logger.NoLogger())

		summary, err := service.Get(context.Background(), repo, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.TotalFiles)
		assert.Equal(t, 8, summary.TotalAdditions)
		assert.Equal(t, 3, summary.TotalDeletions)
		assert.False(t, summary.Cached)
	})

	t.Run("second read hits the cache", func(t *testing.T) {
		fetch := &countingFetch{files: []model.DiffFile{fixtures.TextDiffFile()}}
		service := diff.NewService(fetch.fetch, time.Minute, logger.NoLogger())

		first, err := service.Get(context.Background(), repo, 1)
		require.NoError(t, err)
		assert.False(t, first.Cached)

		second, err := service.Get(context.Background(), repo, 1)
		require.NoError(t, err)
		assert.True(t, second.Cached)
		assert.Equal(t, first.TotalFiles, second.TotalFiles)
		assert.Equal(t, 1, fetch.calls())
	})

	t.Run("different pull requests cache separately", func(t *testing.T) {
		fetch := &countingFetch{files: []model.DiffFile{fixtures.TextDiffFile()}}
		service := diff.NewService(fetch.fetch, time.Minute, logger.NoLogger())

		_, err := service.Get(context.Background(), repo, 1)
		require.NoError(t, err)
		_, err = service.Get(context.Background(), repo, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, fetch.calls())
	})

	t.Run("expired entry refetches", func(t *testing.T) {
		fetch := &countingFetch{files: []model.DiffFile{fixtures.TextDiffFile()}}
		service := diff.NewService(fetch.fetch, time.Millisecond, logger.NoLogger())

		_, err := service.Get(context.Background(), repo, 1)
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		summary, err := service.Get(context.Background(), repo, 1)
		require.NoError(t, err)
		assert.False(t, summary.Cached)
		assert.Equal(t, 2, fetch.calls())
	})

	t.Run("fetch errors are not cached", func(t *testing.T) {
		fetch := &countingFetch{err: errors.New("boom")}
		service := diff.NewService(fetch.fetch, time.Minute, logger.NoLogger())

		_, err := service.Get(context.Background(), repo, 1)
		require.Error(t, err)

		fetch.mu.Lock()
		fetch.err = nil
		fetch.files = []model.DiffFile{fixtures.TextDiffFile()}
		fetch.mu.Unlock()

		summary, err := service.Get(context.Background(), repo, 1)
		require.NoError(t, err)
		assert.False(t, summary.Cached)
	})
}

func TestService_Invalidate(t *testing.T) {
	repo := fixtures.WidgetsRepo()
	fetch := &countingFetch{files: []model.DiffFile{fixtures.TextDiffFile()}}
	service := diff.NewService(fetch.fetch, time.Minute, logger.NoLogger())

	_, err := service.Get(context.Background(), repo, 1)
	require.NoError(t, err)

	service.Invalidate(repo, 1)

	summary, err := service.Get(context.Background(), repo, 1)
	require.NoError(t, err)
	assert.False(t, summary.Cached)
	assert.Equal(t, 2, fetch.calls())
}
