package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/kurihiro0119/gitee-activity-harvester/internal/domain"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/storage"
)

// postgresStorage implements the Storage interface for PostgreSQL
type postgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(connURL string) (storage.Storage, error) {
	db, err := sql.Open("postgres", connURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &postgresStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *postgresStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		repo TEXT NOT NULL,
		category TEXT NOT NULL,
		uid TEXT NOT NULL,
		updated_on TIMESTAMPTZ NOT NULL,
		data JSONB NOT NULL,
		harvested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (owner, repo, category, uid)
	);

	CREATE INDEX IF NOT EXISTS idx_items_owner_repo ON items(owner, repo);
	CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);
	CREATE INDEX IF NOT EXISTS idx_items_updated_on ON items(updated_on);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveItem persists one harvested record with upsert semantics
func (s *postgresStorage) SaveItem(ctx context.Context, record *domain.Record) error {
	data, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal item data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (id, owner, repo, category, uid, updated_on, data, harvested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner, repo, category, uid) DO UPDATE SET
			updated_on = EXCLUDED.updated_on,
			data = EXCLUDED.data,
			harvested_at = EXCLUDED.harvested_at
	`, record.ID, record.Owner, record.Repo, string(record.Category), record.UID,
		record.UpdatedOn, string(data), record.HarvestedAt)
	if err != nil {
		return fmt.Errorf("failed to save item %s: %w", record.UID, err)
	}
	return nil
}

// SaveItems persists a batch of harvested records in one transaction
func (s *postgresStorage) SaveItems(ctx context.Context, records []*domain.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (id, owner, repo, category, uid, updated_on, data, harvested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner, repo, category, uid) DO UPDATE SET
			updated_on = EXCLUDED.updated_on,
			data = EXCLUDED.data,
			harvested_at = EXCLUDED.harvested_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, record := range records {
		data, err := json.Marshal(record.Fields)
		if err != nil {
			return fmt.Errorf("failed to marshal item data: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, record.ID, record.Owner, record.Repo,
			string(record.Category), record.UID, record.UpdatedOn, string(data),
			record.HarvestedAt); err != nil {
			return fmt.Errorf("failed to save item %s: %w", record.UID, err)
		}
	}

	return tx.Commit()
}

// GetItems retrieves stored records ordered ascending by update time
func (s *postgresStorage) GetItems(ctx context.Context, owner, repo string, category domain.Category, timeRange domain.TimeRange) ([]*domain.Record, error) {
	query := `
		SELECT id, owner, repo, category, uid, updated_on, data, harvested_at
		FROM items
		WHERE owner = $1 AND repo = $2
	`
	args := []interface{}{owner, repo}
	argIdx := 3

	if category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIdx)
		args = append(args, string(category))
		argIdx++
	}
	if !timeRange.Start.IsZero() {
		query += fmt.Sprintf(" AND updated_on >= $%d", argIdx)
		args = append(args, timeRange.Start)
		argIdx++
	}
	if !timeRange.End.IsZero() {
		query += fmt.Sprintf(" AND updated_on <= $%d", argIdx)
		args = append(args, timeRange.End)
		argIdx++
	}
	query += " ORDER BY updated_on ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var records []*domain.Record
	for rows.Next() {
		var record domain.Record
		var categoryStr string
		var data []byte
		if err := rows.Scan(&record.ID, &record.Owner, &record.Repo, &categoryStr,
			&record.UID, &record.UpdatedOn, &data, &record.HarvestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		record.Category = domain.Category(categoryStr)
		if err := json.Unmarshal(data, &record.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item data: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

// Close closes the database connection
func (s *postgresStorage) Close() error {
	return s.db.Close()
}
