package postgres

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/lanxat/internal/model"
	"github.com/and161185/lanxat/internal/repository"
)

const defaultRecentLimit = 50

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// SearchRepo implements SearchRepository using PostgreSQL.
type SearchRepo struct{ db *DB }

// NewSearchRepo constructs a search log repository.
func NewSearchRepo(db *DB) *SearchRepo { return &SearchRepo{db: db} }

// Append inserts one search entry, assigning id and timestamp when missing.
func (r *SearchRepo) Append(ctx context.Context, e model.SearchEntry) error {
	if e.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		e.ID = id
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	const q = `
INSERT INTO searches (id, user_id, created_at, source_text, target_text, lang_from, lang_to)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Pool.Exec(ctx, q, e.ID, e.UserID, e.Timestamp, e.SourceText, e.TargetText, e.ResolvedFrom, e.ResolvedTo)
	return err
}

// Recent lists entries newest first, filtered by user and time.
func (r *SearchRepo) Recent(ctx context.Context, f repository.SearchFilter) ([]model.SearchEntry, error) {
	b := psql.
		Select("id", "user_id", "created_at", "source_text", "target_text", "lang_from", "lang_to").
		From("searches")
	if f.UserID != 0 {
		b = b.Where(sq.Eq{"user_id": f.UserID})
	}
	if !f.Since.IsZero() {
		b = b.Where(sq.GtOrEq{"created_at": f.Since})
	}
	limit := f.Limit
	if limit == 0 {
		limit = defaultRecentLimit
	}
	sqlStr, args, err := b.OrderBy("created_at DESC").Limit(limit).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.SearchEntry, 0)
	for rows.Next() {
		var e model.SearchEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Timestamp, &e.SourceText, &e.TargetText, &e.ResolvedFrom, &e.ResolvedTo); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
