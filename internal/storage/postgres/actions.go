// Package postgres persists ingested catalog actions. The table is an audit
// log: inserts only, duplicates from at-least-once redelivery are benign
// extra rows.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/bookrelay/chat-relay-service/internal/domain/model"
)

// ActionStore is the durable sink for the ingestion consumer.
type ActionStore interface {
	SaveCatalogAction(ctx context.Context, action model.CatalogAction) error
}

type Store struct {
	db *sql.DB
}

var _ ActionStore = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	return &Store{db: db}, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS catalog_actions (
	id         BIGSERIAL PRIMARY KEY,
	action     TEXT        NOT NULL,
	author_id  BIGINT      NOT NULL,
	book_id    BIGINT      NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureSchema creates the audit table when it does not exist yet. The
// consumer calls this once on startup so it can run against an empty
// database.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

const insertAction = `
INSERT INTO catalog_actions (action, author_id, book_id, created_at)
VALUES ($1, $2, $3, $4)`

func (s *Store) SaveCatalogAction(ctx context.Context, action model.CatalogAction) error {
	_, err := s.db.ExecContext(ctx, insertAction,
		action.Action, action.AuthorID, action.BookID, action.OccurredAt)
	if err != nil {
		return fmt.Errorf("postgres: save catalog action: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
