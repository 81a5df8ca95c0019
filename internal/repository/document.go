package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"squad-planner/internal/db"

	"github.com/rs/zerolog"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrExists   = errors.New("document already exists")
)

type Document struct {
	Key       string
	Body      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Decode unmarshals the document body into out.
func (d Document) Decode(out any) error {
	return json.Unmarshal(d.Body, out)
}

// DocumentStore is a key-value store of JSON documents grouped by collection.
// Writes to one key are last-write-wins.
type DocumentStore struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewDocumentStore(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *DocumentStore {
	return &DocumentStore{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// Get decodes the document at (collection, key) into out. It reports false
// when the document does not exist.
func (s *DocumentStore) Get(ctx context.Context, collection, key string, out any) (bool, error) {
	doc, err := s.queries.GetDocument(ctx, db.GetDocumentParams{Collection: collection, Key: key})
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("collection", collection).Str("key", key).Msg("failed to get document")
		return false, fmt.Errorf("failed to get %s/%s: %w", collection, key, err)
	}
	if err := json.Unmarshal([]byte(doc.Body), out); err != nil {
		return false, fmt.Errorf("failed to decode %s/%s: %w", collection, key, err)
	}
	return true, nil
}

func (s *DocumentStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.queries.ListDocuments(ctx, collection)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", collection).Msg("failed to list documents")
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	docs := make([]Document, len(rows))
	for i, row := range rows {
		docs[i] = Document{
			Key:       row.Key,
			Body:      json.RawMessage(row.Body),
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		}
	}
	return docs, nil
}

// Set writes doc at (collection, key). With merge, the top-level fields of
// doc are laid over the stored object instead of replacing it.
func (s *DocumentStore) Set(ctx context.Context, collection, key string, doc any, merge bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.set(ctx, s.queries.WithTx(tx), collection, key, doc, merge, time.Time{}); err != nil {
		return err
	}
	return tx.Commit()
}

// set upserts one document. A stored row keeps its created_at; a new row
// takes createdAt, or the current time when createdAt is zero.
func (s *DocumentStore) set(ctx context.Context, q *db.Queries, collection, key string, doc any, merge bool, createdAt time.Time) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, key, err)
	}

	now := time.Now().UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	existing, err := q.GetDocument(ctx, db.GetDocumentParams{Collection: collection, Key: key})
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read %s/%s: %w", collection, key, err)
	default:
		createdAt = existing.CreatedAt
		if merge {
			body, err = mergeObjects([]byte(existing.Body), body)
			if err != nil {
				return fmt.Errorf("failed to merge %s/%s: %w", collection, key, err)
			}
		}
	}

	err = q.UpsertDocument(ctx, db.UpsertDocumentParams{
		Collection: collection,
		Key:        key,
		Body:       string(body),
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("collection", collection).Str("key", key).Msg("failed to write document")
		return fmt.Errorf("failed to write %s/%s: %w", collection, key, err)
	}

	s.logger.Debug().Str("collection", collection).Str("key", key).Bool("merge", merge).Msg("document written")
	return nil
}

// Delete removes (collection, key). Deleting a missing document is not an error.
func (s *DocumentStore) Delete(ctx context.Context, collection, key string) error {
	n, err := s.queries.DeleteDocument(ctx, db.DeleteDocumentParams{Collection: collection, Key: key})
	if err != nil {
		s.logger.Error().Err(err).Str("collection", collection).Str("key", key).Msg("failed to delete document")
		return fmt.Errorf("failed to delete %s/%s: %w", collection, key, err)
	}
	s.logger.Debug().Str("collection", collection).Str("key", key).Int64("rows", n).Msg("document deleted")
	return nil
}

// Rename copies the document at oldKey to newKey and deletes oldKey in one
// transaction. transform, when non-nil, may rewrite the body on the way.
func (s *DocumentStore) Rename(ctx context.Context, collection, oldKey, newKey string, transform func(json.RawMessage) (any, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	src, err := qtx.GetDocument(ctx, db.GetDocumentParams{Collection: collection, Key: oldKey})
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", collection, oldKey, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s/%s: %w", collection, oldKey, err)
	}

	taken, err := qtx.CountDocuments(ctx, db.CountDocumentsParams{Collection: collection, Key: newKey})
	if err != nil {
		return fmt.Errorf("failed to check %s/%s: %w", collection, newKey, err)
	}
	if taken > 0 {
		return fmt.Errorf("%s/%s: %w", collection, newKey, ErrExists)
	}

	var body any = json.RawMessage(src.Body)
	if transform != nil {
		if body, err = transform(json.RawMessage(src.Body)); err != nil {
			return fmt.Errorf("failed to rewrite %s/%s: %w", collection, oldKey, err)
		}
	}

	if err := s.set(ctx, qtx, collection, newKey, body, false, src.CreatedAt); err != nil {
		return err
	}
	if _, err := qtx.DeleteDocument(ctx, db.DeleteDocumentParams{Collection: collection, Key: oldKey}); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, oldKey, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rename: %w", err)
	}

	s.logger.Info().Str("collection", collection).Str("from", oldKey).Str("to", newKey).Msg("document renamed")
	return nil
}

func mergeObjects(base, overlay []byte) ([]byte, error) {
	var dst map[string]json.RawMessage
	if err := json.Unmarshal(base, &dst); err != nil || dst == nil {
		// stored value is not an object; the overlay replaces it
		return overlay, nil
	}
	var src map[string]json.RawMessage
	if err := json.Unmarshal(overlay, &src); err != nil {
		return nil, err
	}
	for k, v := range src {
		dst[k] = v
	}
	return json.Marshal(dst)
}
