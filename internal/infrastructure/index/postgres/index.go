// Package postgres provides a Postgres full-text implementation of ports.DocumentIndex.
package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/ports"
)

const (
	table        = "papers"
	textSearchCf = "english"
)

// Schema creates the papers table with a generated tsvector over the abstract.
const Schema = `
CREATE TABLE IF NOT EXISTS papers (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	authors      TEXT[] NOT NULL DEFAULT '{}',
	abstract     TEXT NOT NULL,
	published_at TIMESTAMPTZ NOT NULL,
	link         TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	search       TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', abstract)) STORED
);
CREATE INDEX IF NOT EXISTS papers_search_idx ON papers USING GIN (search);
CREATE INDEX IF NOT EXISTS papers_published_idx ON papers (published_at);
`

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Index stores papers in Postgres. Writes are create-only.
type Index struct {
	pool    pool
	builder sq.StatementBuilderType
}

var _ ports.DocumentIndex = (*Index)(nil)

// Open connects a pgx pool and returns an Index.
func Open(ctx context.Context, dsn string, maxConns int32) (*Index, error) {
	if dsn == "" {
		return nil, fmt.Errorf("index.dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithPool(p), nil
}

// NewWithPool wraps an existing pool (primarily for testing).
func NewWithPool(p pool) *Index {
	return &Index{
		pool:    p,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// EnsureSchema creates the table and indexes if absent.
func (i *Index) EnsureSchema(ctx context.Context) error {
	if _, err := i.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure papers schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (i *Index) Close() {
	if i == nil || i.pool == nil {
		return
	}
	i.pool.Close()
}

// Create inserts doc unless its id already exists; existing rows are never touched.
func (i *Index) Create(ctx context.Context, doc domain.Document) (domain.WriteOutcome, error) {
	if doc.ID == "" {
		return domain.WriteFailed, fmt.Errorf("document id is required")
	}

	authors := doc.Authors
	if authors == nil {
		authors = []string{}
	}

	query, args, err := i.builder.
		Insert(table).
		Columns("id", "title", "authors", "abstract", "published_at", "link").
		Values(doc.ID, doc.Title, authors, doc.Abstract, doc.PublishedAt.UTC(), doc.Link).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return domain.WriteFailed, fmt.Errorf("build insert: %w", err)
	}

	tag, err := i.pool.Exec(ctx, query, args...)
	if err != nil {
		return domain.WriteFailed, fmt.Errorf("insert paper %s: %w", doc.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.WriteAlreadyExists, nil
	}
	return domain.WriteCreated, nil
}

// Search matches the keyword against the abstract and bounds published_at inclusively.
func (i *Index) Search(ctx context.Context, q domain.Query) ([]domain.Document, error) {
	if q.Keyword == "" || q.Limit <= 0 {
		return nil, nil
	}

	tsQuery := fmt.Sprintf("plainto_tsquery('%s', ?)", textSearchCf)
	query, args, err := i.builder.
		Select("id", "title", "authors", "abstract", "published_at", "link").
		From(table).
		Where(sq.Expr("search @@ "+tsQuery, q.Keyword)).
		Where(sq.GtOrEq{"published_at": q.From.UTC()}).
		Where(sq.LtOrEq{"published_at": q.To.UTC()}).
		OrderByClause("ts_rank(search, "+tsQuery+") DESC", q.Keyword).
		OrderBy("published_at DESC").
		Limit(uint64(q.Limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search: %w", err)
	}

	rows, err := i.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search papers: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			doc       domain.Document
			published time.Time
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Authors, &doc.Abstract, &published, &doc.Link); err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		doc.PublishedAt = published.UTC()
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return docs, nil
}
