package aggregator

import (
	"context"
	"sort"

	"github.com/kurihiro0119/gitee-activity-harvester/internal/domain"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/storage"
)

const topAuthorLimit = 10

// Aggregator computes summaries over stored harvest records
type Aggregator interface {
	RepoSummary(ctx context.Context, owner, repo string, timeRange domain.TimeRange) (*domain.Summary, error)
}

type aggregator struct {
	storage storage.Storage
}

// NewAggregator creates a new Aggregator instance
func NewAggregator(s storage.Storage) Aggregator {
	return &aggregator{storage: s}
}

// RepoSummary loads all records for a repository and summarizes them
func (a *aggregator) RepoSummary(ctx context.Context, owner, repo string, timeRange domain.TimeRange) (*domain.Summary, error) {
	records, err := a.storage.GetItems(ctx, owner, repo, "", timeRange)
	if err != nil {
		return nil, err
	}
	return Summarize(owner, repo, records, timeRange), nil
}

// Summarize counts records by category, state and author
func Summarize(owner, repo string, records []*domain.Record, timeRange domain.TimeRange) *domain.Summary {
	summary := &domain.Summary{
		Owner:      owner,
		Repo:       repo,
		ByCategory: make(map[domain.Category]int64),
		ByState:    make(map[string]int64),
		TimeRange:  timeRange,
	}

	authorCounts := make(map[string]int64)
	for _, record := range records {
		summary.Total++
		summary.ByCategory[record.Category]++

		if state, ok := record.Fields["state"].(string); ok && state != "" {
			summary.ByState[state]++
		}
		if author := authorOf(record); author != "" {
			authorCounts[author]++
		}
	}

	authors := make([]domain.AuthorCount, 0, len(authorCounts))
	for author, count := range authorCounts {
		authors = append(authors, domain.AuthorCount{Author: author, Items: count})
	}
	sort.Slice(authors, func(i, j int) bool {
		if authors[i].Items != authors[j].Items {
			return authors[i].Items > authors[j].Items
		}
		return authors[i].Author < authors[j].Author
	})
	if len(authors) > topAuthorLimit {
		authors = authors[:topAuthorLimit]
	}
	summary.TopAuthors = authors

	return summary
}

func authorOf(record *domain.Record) string {
	user, ok := record.Fields["user"].(map[string]interface{})
	if !ok {
		return ""
	}
	login, _ := user["login"].(string)
	return login
}
