package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/webfont-splitter/internal/types"
)

// UpsertEntry records a store entry. The reference count is never lowered,
// so machines sharing the catalogue converge on the highest count seen.
func (db *DB) UpsertEntry(ctx context.Context, entry types.StoreEntry) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO store_entries (hash, file_name, size, ref_count, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (hash) DO UPDATE SET
		   ref_count = GREATEST(store_entries.ref_count, EXCLUDED.ref_count),
		   updated_at = NOW()`,
		entry.Hash, entry.FileName, entry.Size, entry.RefCount, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert store entry %s: %w", entry.Hash, err)
	}
	return nil
}

// GetEntry retrieves a catalogue entry by hash, nil when it does not exist
func (db *DB) GetEntry(ctx context.Context, hash string) (*types.StoreEntry, error) {
	var e types.StoreEntry
	err := db.pool.QueryRow(ctx,
		`SELECT hash, file_name, size, ref_count, created_at FROM store_entries WHERE hash = $1`,
		hash,
	).Scan(&e.Hash, &e.FileName, &e.Size, &e.RefCount, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get store entry %s: %w", hash, err)
	}
	return &e, nil
}

// ListEntries returns every catalogue entry ordered by hash
func (db *DB) ListEntries(ctx context.Context) ([]types.StoreEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT hash, file_name, size, ref_count, created_at FROM store_entries ORDER BY hash`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list store entries: %w", err)
	}
	defer rows.Close()

	var entries []types.StoreEntry
	for rows.Next() {
		var e types.StoreEntry
		if err := rows.Scan(&e.Hash, &e.FileName, &e.Size, &e.RefCount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan store entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
