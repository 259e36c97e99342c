package domain

import "time"

// Record is a harvested item as it is persisted in storage
type Record struct {
	ID          string                 `json:"id"`
	Owner       string                 `json:"owner"`
	Repo        string                 `json:"repo"`
	Category    Category               `json:"category"`
	UID         string                 `json:"uid"`
	UpdatedOn   time.Time              `json:"updated_on"`
	Fields      map[string]interface{} `json:"fields"`
	HarvestedAt time.Time              `json:"harvested_at"`
}

// TimeRange represents the harvest/query window
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range. A zero Start or End
// leaves that bound open.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// AuthorCount is the number of items attributed to one author login
type AuthorCount struct {
	Author string `json:"author"`
	Items  int64  `json:"items"`
}

// Summary represents aggregated counts over stored items for one repository
type Summary struct {
	Owner      string             `json:"owner"`
	Repo       string             `json:"repo"`
	Total      int64              `json:"total"`
	ByCategory map[Category]int64 `json:"by_category"`
	ByState    map[string]int64   `json:"by_state"`
	TopAuthors []AuthorCount      `json:"top_authors"`
	TimeRange  TimeRange          `json:"time_range"`
}
