package db

import (
	"context"
	"time"
)

const getDocument = `SELECT collection, key, body, created_at, updated_at
FROM documents
WHERE collection = ? AND key = ?`

type GetDocumentParams struct {
	Collection string
	Key        string
}

func (q *Queries) GetDocument(ctx context.Context, arg GetDocumentParams) (Document, error) {
	row := q.db.QueryRowContext(ctx, getDocument, arg.Collection, arg.Key)
	var i Document
	err := row.Scan(
		&i.Collection,
		&i.Key,
		&i.Body,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listDocuments = `SELECT collection, key, body, created_at, updated_at
FROM documents
WHERE collection = ?
ORDER BY key`

func (q *Queries) ListDocuments(ctx context.Context, collection string) ([]Document, error) {
	rows, err := q.db.QueryContext(ctx, listDocuments, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Document
	for rows.Next() {
		var i Document
		if err := rows.Scan(
			&i.Collection,
			&i.Key,
			&i.Body,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertDocument = `INSERT INTO documents (collection, key, body, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (collection, key) DO UPDATE SET
    body = excluded.body,
    updated_at = excluded.updated_at`

type UpsertDocumentParams struct {
	Collection string
	Key        string
	Body       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (q *Queries) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error {
	_, err := q.db.ExecContext(ctx, upsertDocument,
		arg.Collection,
		arg.Key,
		arg.Body,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const deleteDocument = `DELETE FROM documents
WHERE collection = ? AND key = ?`

type DeleteDocumentParams struct {
	Collection string
	Key        string
}

func (q *Queries) DeleteDocument(ctx context.Context, arg DeleteDocumentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteDocument, arg.Collection, arg.Key)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countDocuments = `SELECT COUNT(*) FROM documents
WHERE collection = ? AND key = ?`

type CountDocumentsParams struct {
	Collection string
	Key        string
}

func (q *Queries) CountDocuments(ctx context.Context, arg CountDocumentsParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countDocuments, arg.Collection, arg.Key)
	var count int64
	err := row.Scan(&count)
	return count, err
}
