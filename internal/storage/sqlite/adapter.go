package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kurihiro0119/gitee-activity-harvester/internal/domain"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/storage"
)

// sqliteStorage implements the Storage interface for SQLite
type sqliteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (storage.Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &sqliteStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *sqliteStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		repo TEXT NOT NULL,
		category TEXT NOT NULL,
		uid TEXT NOT NULL,
		updated_on TIMESTAMP NOT NULL,
		data TEXT NOT NULL,
		harvested_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (owner, repo, category, uid)
	);

	CREATE INDEX IF NOT EXISTS idx_items_owner_repo ON items(owner, repo);
	CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);
	CREATE INDEX IF NOT EXISTS idx_items_updated_on ON items(updated_on);
	CREATE INDEX IF NOT EXISTS idx_items_owner_repo_category_updated ON items(owner, repo, category, updated_on);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveItem persists one harvested record with upsert semantics
func (s *sqliteStorage) SaveItem(ctx context.Context, record *domain.Record) error {
	data, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal item data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (id, owner, repo, category, uid, updated_on, data, harvested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, repo, category, uid) DO UPDATE SET
			updated_on = excluded.updated_on,
			data = excluded.data,
			harvested_at = excluded.harvested_at
	`, record.ID, record.Owner, record.Repo, string(record.Category), record.UID,
		record.UpdatedOn, string(data), record.HarvestedAt)
	if err != nil {
		return fmt.Errorf("failed to save item %s: %w", record.UID, err)
	}
	return nil
}

// SaveItems persists a batch of harvested records in one transaction
func (s *sqliteStorage) SaveItems(ctx context.Context, records []*domain.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (id, owner, repo, category, uid, updated_on, data, harvested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, repo, category, uid) DO UPDATE SET
			updated_on = excluded.updated_on,
			data = excluded.data,
			harvested_at = excluded.harvested_at
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
func (s *sqliteStorage) GetItems(ctx context.Context, owner, repo string, category domain.Category, timeRange domain.TimeRange) ([]*domain.Record, error) {
	query := `
		SELECT id, owner, repo, category, uid, updated_on, data, harvested_at
		FROM items
		WHERE owner = ? AND repo = ?
	`
	args := []interface{}{owner, repo}

	if category != "" {
		query += " AND category = ?"
		args = append(args, string(category))
	}
	if !timeRange.Start.IsZero() {
		query += " AND updated_on >= ?"
		args = append(args, timeRange.Start)
	}
	if !timeRange.End.IsZero() {
		query += " AND updated_on <= ?"
		args = append(args, timeRange.End)
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
		var categoryStr, data string
		if err := rows.Scan(&record.ID, &record.Owner, &record.Repo, &categoryStr,
			&record.UID, &record.UpdatedOn, &data, &record.HarvestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		record.Category = domain.Category(categoryStr)
		if err := json.Unmarshal([]byte(data), &record.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item data: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

// Close closes the database connection
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}
