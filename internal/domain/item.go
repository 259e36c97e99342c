package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Category represents the kind of a harvested item
type Category string

const (
	CategoryIssue       Category = "issue"
	CategoryPullRequest Category = "pull_request"
	CategoryRepository  Category = "repository"
)

// Categories lists every category the harvester can fetch
var Categories = []Category{CategoryIssue, CategoryPullRequest, CategoryRepository}

// ParseCategory validates a category string
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryIssue, CategoryPullRequest, CategoryRepository:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown category %q (must be one of: issue, pull_request, repository)", s)
}

// Item is a single harvested record. The category is determined once from
// the raw payload shape when the item is constructed and never re-inspected.
type Item struct {
	Category Category
	Fields   map[string]interface{}
}

// NewItem classifies the raw fields and wraps them into an Item
func NewItem(fields map[string]interface{}) *Item {
	return &Item{
		Category: ClassifyFields(fields),
		Fields:   fields,
	}
}

// ClassifyFields infers the category from the payload shape.
// A 'base' field marks a pull request, a 'forks_count' field marks a
// repository snapshot, anything else is an issue. The three shapes are
// mutually exclusive on the Gitee API.
func ClassifyFields(fields map[string]interface{}) Category {
	if _, ok := fields["base"]; ok {
		return CategoryPullRequest
	}
	if _, ok := fields["forks_count"]; ok {
		return CategoryRepository
	}
	return CategoryIssue
}

// UID returns the unique identifier of the item: the numeric id as a
// string for issues and pull requests, the capture timestamp for
// repository snapshots.
func (i *Item) UID() string {
	if i.Category == CategoryRepository {
		if v, ok := i.Fields["fetched_on"].(float64); ok {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
		return ""
	}
	switch v := i.Fields["id"].(type) {
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case string:
		return v
	}
	return ""
}

// UpdatedOn returns the comparison timestamp of the item in UTC:
// 'updated_at' for issues and pull requests, 'fetched_on' for repository
// snapshots.
func (i *Item) UpdatedOn() (time.Time, error) {
	if i.Category == CategoryRepository {
		v, ok := i.Fields["fetched_on"].(float64)
		if !ok {
			return time.Time{}, fmt.Errorf("repository snapshot has no fetched_on timestamp")
		}
		sec := int64(v)
		nsec := int64((v - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), nil
	}

	raw, ok := i.Fields["updated_at"].(string)
	if !ok || raw == "" {
		return time.Time{}, fmt.Errorf("%s item %s has no updated_at field", i.Category, i.UID())
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid updated_at %q on %s item %s: %w", raw, i.Category, i.UID(), err)
	}
	return ts.UTC(), nil
}
