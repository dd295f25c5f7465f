package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const defaultDocumentTable = "documents"

// DocumentStore is a Postgres-backed JSONB document store keyed by
// (collection path, document id).
type DocumentStore struct {
	db    *sql.DB
	table string
}

// StoreOption configures the store.
type StoreOption func(*DocumentStore)

// WithTable overrides the default table name.
func WithTable(table string) StoreOption {
	return func(s *DocumentStore) {
		if table != "" {
			s.table = table
		}
	}
}

// NewDocumentStore constructs a store with the default table name.
func NewDocumentStore(db *sql.DB, opts ...StoreOption) *DocumentStore {
	store := &DocumentStore{db: db, table: defaultDocumentTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// EnsureSchema creates the documents table when it does not exist.
func (s *DocumentStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("document store: nil db")
	}
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	collection_path text NOT NULL,
	doc_id          text NOT NULL,
	body            jsonb NOT NULL,
	created_at      timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (collection_path, doc_id)
)`, s.table)
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Save upserts one document under a collection path.
func (s *DocumentStore) Save(ctx context.Context, collection, docID string, document any) error {
	if s == nil || s.db == nil {
		return errors.New("document store: nil db")
	}
	if collection == "" || docID == "" {
		return errors.New("document store: empty collection or doc id")
	}
	body, err := json.Marshal(document)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (collection_path, doc_id, body, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (collection_path, doc_id)
DO UPDATE SET body = EXCLUDED.body`, s.table)
	_, err = s.db.ExecContext(ctx, query, collection, docID, body, time.Now().UTC())
	return err
}

// Get loads one document. Returns sql.ErrNoRows when absent.
func (s *DocumentStore) Get(ctx context.Context, collection, docID string) (json.RawMessage, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("document store: nil db")
	}
	query := fmt.Sprintf(`SELECT body FROM %s WHERE collection_path = $1 AND doc_id = $2`, s.table)
	var body []byte
	if err := s.db.QueryRowContext(ctx, query, collection, docID).Scan(&body); err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// List returns the newest documents in a collection, newest first.
func (s *DocumentStore) List(ctx context.Context, collection string, limit int) ([]json.RawMessage, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("document store: nil db")
	}
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`
SELECT body FROM %s
WHERE collection_path = $1
ORDER BY created_at DESC
LIMIT $2`, s.table)
	rows, err := s.db.QueryContext(ctx, query, collection, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var documents []json.RawMessage
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		documents = append(documents, json.RawMessage(body))
	}
	return documents, rows.Err()
}
