// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package payload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resumora/resumora/internal/platform/apperr"
)

// PostgresStore implements the Store interface using pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a new PostgreSQL implementation of the payload Store.
func NewStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

/*
Save persists a new payload row.

Parameters:
  - context: context.Context
  - payload: *Payload

Returns:
  - error: Constraint violations or connectivity errors
*/
func (store *PostgresStore) Save(context context.Context, payload *Payload) error {
	const query = `
		INSERT INTO payloads (id, principalid, content, contentbytes, createdat)
		VALUES ($1, $2, $3, $4, $5)`

	if payload.CreatedAt.IsZero() {
		payload.CreatedAt = time.Now()
	}

	_, err := store.pool.Exec(context, query,
		payload.Ref,
		payload.PrincipalID,
		payload.Text,
		payload.ByteSize,
		payload.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_payload_store_save_failed: %w", err)
	}
	return nil
}

/*
FetchText returns the stored text for one payload reference.

Parameters:
  - context: context.Context
  - ref: string

Returns:
  - string: Cleaned resume text
  - error: apperr.NotFound or execution errors
*/
func (store *PostgresStore) FetchText(context context.Context, ref string) (string, error) {
	const query = "SELECT content FROM payloads WHERE id = $1"

	var text string
	if err := store.pool.QueryRow(context, query, ref).Scan(&text); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound("Payload")
		}
		return "", fmt.Errorf("postgres_payload_store_fetch_failed: %w", err)
	}
	return text, nil
}

/*
DeleteOrphans removes payload rows no live job references.

Parameters:
  - context: context.Context
  - olderThan: time.Time

Returns:
  - int64: Rows removed
  - error: Execution errors
*/
func (store *PostgresStore) DeleteOrphans(context context.Context, olderThan time.Time) (int64, error) {
	const query = `
		DELETE FROM payloads
		WHERE createdat < $1
		  AND NOT EXISTS (
			SELECT 1 FROM jobs WHERE jobs.payloadref = payloads.id
		  )`

	tag, err := store.pool.Exec(context, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("postgres_payload_store_delete_orphans_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}
