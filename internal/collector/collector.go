package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/kurihiro0119/gitee-activity-harvester/internal/domain"
	apperrors "github.com/kurihiro0119/gitee-activity-harvester/internal/errors"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/gitee"
)

// Harvester defines the interface for harvesting Gitee repository activity
type Harvester interface {
	// Fetch lazily yields the items of one category whose update time
	// falls inside the window. A zero from/to leaves that bound open
	// (normalized to the epoch and a far-future date respectively).
	// When filterClassified is set, personal data fields are left empty
	// and no user endpoints are called.
	Fetch(ctx context.Context, category domain.Category, from, to time.Time, filterClassified bool) iter.Seq2[*domain.Item, error]
}

// defaultLastDate caps an open upper bound, far enough out to act as "no
// upper bound" for any realistic window
var defaultLastDate = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)

// giteeHarvester implements Harvester against the Gitee REST API
type giteeHarvester struct {
	client *gitee.Client
}

// NewHarvester creates a new Gitee harvester
func NewHarvester(client *gitee.Client) Harvester {
	return &giteeHarvester{client: client}
}

// Fetch dispatches to the per-category driver
func (h *giteeHarvester) Fetch(ctx context.Context, category domain.Category, from, to time.Time, filterClassified bool) iter.Seq2[*domain.Item, error] {
	return func(yield func(*domain.Item, error) bool) {
		if from.IsZero() {
			from = time.Unix(0, 0)
		}
		if to.IsZero() {
			to = defaultLastDate
		}
		from = from.UTC()
		to = to.UTC()

		// The identity cache lives and dies with one harvest session so
		// entries can never leak between repositories or runs.
		s := &session{
			client:           h.client,
			filterClassified: filterClassified,
			users:            make(map[string]map[string]interface{}),
		}

		switch category {
		case domain.CategoryIssue:
			s.fetchIssues(ctx, from, to, yield)
		case domain.CategoryPullRequest:
			s.fetchPullRequests(ctx, from, to, yield)
		case domain.CategoryRepository:
			s.fetchRepo(ctx, yield)
		default:
			yield(nil, apperrors.NewBadRequestError(fmt.Sprintf("unknown category %q", category)))
		}
	}
}

// session holds the state of one harvest run
type session struct {
	client           *gitee.Client
	filterClassified bool
	users            map[string]map[string]interface{}
}

// fetchIssues yields enriched issues, stopping the whole sequence at the
// first record updated past the upper bound. The API returns the list in
// ascending update order, which this relies on: an out-of-order record
// truncates the run instead of being skipped.
func (s *session) fetchIssues(ctx context.Context, from, to time.Time, yield func(*domain.Item, error) bool) {
	for page, err := range s.client.Issues(ctx, from) {
		if err != nil {
			yield(nil, err)
			return
		}

		var issues []map[string]interface{}
		if err := json.Unmarshal(page.Body, &issues); err != nil {
			yield(nil, fmt.Errorf("parse issues page %d: %w", page.Number, err))
			return
		}

		for _, raw := range issues {
			item := domain.NewItem(raw)
			updated, err := item.UpdatedOn()
			if err != nil {
				yield(nil, err)
				return
			}
			if updated.After(to) {
				return
			}

			if err := s.enrichIssue(ctx, raw); err != nil {
				yield(nil, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// fetchPullRequests yields enriched pull requests. Unlike the issue
// driver it stops on either window bound; the lower bound check exists
// because the pulls endpoint does not apply the since filter reliably.
func (s *session) fetchPullRequests(ctx context.Context, from, to time.Time, yield func(*domain.Item, error) bool) {
	for page, err := range s.client.Pulls(ctx, from) {
		if err != nil {
			yield(nil, err)
			return
		}

		var pulls []map[string]interface{}
		if err := json.Unmarshal(page.Body, &pulls); err != nil {
			yield(nil, fmt.Errorf("parse pulls page %d: %w", page.Number, err))
			return
		}

		for _, raw := range pulls {
			item := domain.NewItem(raw)
			updated, err := item.UpdatedOn()
			if err != nil {
				yield(nil, err)
				return
			}
			if updated.Before(from) || updated.After(to) {
				return
			}

			if err := s.enrichPullRequest(ctx, raw); err != nil {
				yield(nil, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// fetchRepo yields exactly one repository snapshot with its releases list
// and a capture timestamp
func (s *session) fetchRepo(ctx context.Context, yield func(*domain.Item, error) bool) {
	body, err := s.client.Repo(ctx)
	if err != nil {
		yield(nil, err)
		return
	}
	var repo map[string]interface{}
	if err := json.Unmarshal(body, &repo); err != nil {
		yield(nil, fmt.Errorf("parse repository info: %w", err))
		return
	}

	releasesBody, err := s.client.RepoReleases(ctx)
	if err != nil {
		yield(nil, err)
		return
	}
	var releases []interface{}
	if err := json.Unmarshal(releasesBody, &releases); err != nil {
		yield(nil, fmt.Errorf("parse repository releases: %w", err))
		return
	}
	repo["releases"] = releases

	now := time.Now().UTC()
	repo["fetched_on"] = float64(now.UnixNano()) / float64(time.Second)

	yield(domain.NewItem(repo), nil)
}
