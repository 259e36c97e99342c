package storage

import (
	"context"

	"github.com/kurihiro0119/gitee-activity-harvester/internal/domain"
)

// Storage is the abstract interface for the persistence layer
type Storage interface {
	// SaveItem persists one harvested record, replacing any existing
	// record for the same (owner, repo, category, uid)
	SaveItem(ctx context.Context, record *domain.Record) error

	// SaveItems persists a batch of harvested records
	SaveItems(ctx context.Context, records []*domain.Record) error

	// GetItems retrieves stored records for a repository, ordered
	// ascending by update time. An empty category matches all
	// categories; zero range bounds are open.
	GetItems(ctx context.Context, owner, repo string, category domain.Category, timeRange domain.TimeRange) ([]*domain.Record, error)

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}
