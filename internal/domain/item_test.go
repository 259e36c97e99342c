package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyFields(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]interface{}
		want   Category
	}{
		{
			name:   "pull request has a base branch",
			fields: map[string]interface{}{"id": 1.0, "base": map[string]interface{}{"ref": "master"}},
			want:   CategoryPullRequest,
		},
		{
			name:   "repository has a forks count",
			fields: map[string]interface{}{"id": 1.0, "forks_count": 3.0},
			want:   CategoryRepository,
		},
		{
			name:   "anything else is an issue",
			fields: map[string]interface{}{"id": 1.0, "title": "crash on start"},
			want:   CategoryIssue,
		},
		{
			name:   "base wins over forks_count",
			fields: map[string]interface{}{"base": map[string]interface{}{}, "forks_count": 0.0},
			want:   CategoryPullRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewItem(tt.fields).Category)
		})
	}
}

func TestItemUID(t *testing.T) {
	issue := NewItem(map[string]interface{}{"id": 12345.0})
	assert.Equal(t, "12345", issue.UID())

	pull := NewItem(map[string]interface{}{"id": 67.0, "base": map[string]interface{}{}})
	assert.Equal(t, "67", pull.UID())

	repo := NewItem(map[string]interface{}{"forks_count": 1.0, "fetched_on": 1591702461.5})
	assert.Equal(t, "1591702461.5", repo.UID())
}

func TestItemUpdatedOn(t *testing.T) {
	issue := NewItem(map[string]interface{}{
		"id":         1.0,
		"updated_at": "2024-03-01T12:30:00+08:00",
	})
	ts, err := issue.UpdatedOn()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 4, 30, 0, 0, time.UTC), ts)

	repo := NewItem(map[string]interface{}{"forks_count": 1.0, "fetched_on": 1591702461.0})
	ts, err = repo.UpdatedOn()
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1591702461, 0).UTC(), ts)

	broken := NewItem(map[string]interface{}{"id": 2.0})
	_, err = broken.UpdatedOn()
	assert.Error(t, err)

	noTimestamp := NewItem(map[string]interface{}{"forks_count": 1.0})
	_, err = noTimestamp.UpdatedOn()
	assert.Error(t, err)
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories {
		got, err := ParseCategory(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := ParseCategory("commit")
	assert.Error(t, err)
}

func TestTimeRangeContains(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	bounded := TimeRange{Start: start, End: end}
	assert.True(t, bounded.Contains(start.AddDate(0, 6, 0)))
	assert.False(t, bounded.Contains(start.AddDate(-1, 0, 0)))
	assert.False(t, bounded.Contains(end.AddDate(0, 0, 1)))

	open := TimeRange{}
	assert.True(t, open.Contains(time.Unix(0, 0)))
	assert.True(t, open.Contains(end.AddDate(100, 0, 0)))
}
