package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/gitee-activity-harvester/internal/domain"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/storage"
)

func newTestStorage(t *testing.T) storage.Storage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "harvest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newRecord(uid string, category domain.Category, updatedOn time.Time, fields map[string]interface{}) *domain.Record {
	return &domain.Record{
		ID:          uuid.New().String(),
		Owner:       "zhquan_example",
		Repo:        "repo",
		Category:    category,
		UID:         uid,
		UpdatedOn:   updatedOn,
		Fields:      fields,
		HarvestedAt: time.Now().UTC(),
	}
}

func TestSaveItemUpsert(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	first := newRecord("1", domain.CategoryIssue, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		map[string]interface{}{"title": "old title", "state": "open"})
	require.NoError(t, s.SaveItem(ctx, first))

	// same (owner, repo, category, uid) replaces the stored payload
	second := newRecord("1", domain.CategoryIssue, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		map[string]interface{}{"title": "new title", "state": "closed"})
	require.NoError(t, s.SaveItem(ctx, second))

	records, err := s.GetItems(ctx, "zhquan_example", "repo", "", domain.TimeRange{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new title", records[0].Fields["title"])
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), records[0].UpdatedOn.UTC())
}

func TestSaveItemsBatch(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	records := []*domain.Record{
		newRecord("1", domain.CategoryIssue, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), map[string]interface{}{"title": "a"}),
		newRecord("2", domain.CategoryIssue, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), map[string]interface{}{"title": "b"}),
		newRecord("5", domain.CategoryPullRequest, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), map[string]interface{}{"title": "c"}),
	}
	require.NoError(t, s.SaveItems(ctx, records))

	stored, err := s.GetItems(ctx, "zhquan_example", "repo", "", domain.TimeRange{})
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestGetItemsFilters(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveItems(ctx, []*domain.Record{
		newRecord("1", domain.CategoryIssue, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), map[string]interface{}{}),
		newRecord("2", domain.CategoryIssue, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), map[string]interface{}{}),
		newRecord("5", domain.CategoryPullRequest, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), map[string]interface{}{}),
	}))

	issues, err := s.GetItems(ctx, "zhquan_example", "repo", domain.CategoryIssue, domain.TimeRange{})
	require.NoError(t, err)
	require.Len(t, issues, 2)
	// ascending by update time
	assert.Equal(t, "1", issues[0].UID)
	assert.Equal(t, "2", issues[1].UID)

	windowed, err := s.GetItems(ctx, "zhquan_example", "repo", "", domain.TimeRange{
		Start: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, domain.CategoryPullRequest, windowed[0].Category)

	other, err := s.GetItems(ctx, "someone", "else", "", domain.TimeRange{})
	require.NoError(t, err)
	assert.Empty(t, other)
}
