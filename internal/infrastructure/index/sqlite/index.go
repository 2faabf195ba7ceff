// Package sqlite provides an embedded FTS5 implementation of ports.DocumentIndex.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS papers (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	authors      TEXT NOT NULL DEFAULT '[]',
	abstract     TEXT NOT NULL,
	published_at INTEGER NOT NULL,
	link         TEXT NOT NULL,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS papers_published_idx ON papers (published_at);
CREATE VIRTUAL TABLE IF NOT EXISTS papers_fts USING fts5(
	id UNINDEXED,
	abstract,
	tokenize = 'porter unicode61'
);
`

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// Index stores papers in a single SQLite file with an FTS5 table over abstracts.
type Index struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.DocumentIndex = (*Index)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("index.dsn is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// FTS writes and the papers insert share a transaction; a single
	// connection keeps SQLite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Index{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (i *Index) Close() error {
	return i.db.Close()
}

// Create inserts doc and its FTS row unless the id already exists.
func (i *Index) Create(ctx context.Context, doc domain.Document) (outcome domain.WriteOutcome, err error) {
	if doc.ID == "" {
		return domain.WriteFailed, fmt.Errorf("document id is required")
	}
	authors := doc.Authors
	if authors == nil {
		authors = []string{}
	}
	authorsJSON, err := json.Marshal(authors)
	if err != nil {
		return domain.WriteFailed, fmt.Errorf("encode authors: %w", err)
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WriteFailed, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := sq.Insert("papers").
		Columns("id", "title", "authors", "abstract", "published_at", "link", "created_at").
		Values(doc.ID, doc.Title, string(authorsJSON), doc.Abstract, doc.PublishedAt.UTC().UnixMilli(), doc.Link, i.now().UTC().UnixMilli()).
		Suffix("ON CONFLICT(id) DO NOTHING").
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		return domain.WriteFailed, fmt.Errorf("insert paper %s: %w", doc.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.WriteFailed, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		err = tx.Commit()
		if err != nil {
			return domain.WriteFailed, fmt.Errorf("commit: %w", err)
		}
		return domain.WriteAlreadyExists, nil
	}

	if _, err = sq.Insert("papers_fts").
		Columns("id", "abstract").
		Values(doc.ID, doc.Abstract).
		RunWith(tx).
		ExecContext(ctx); err != nil {
		return domain.WriteFailed, fmt.Errorf("index abstract %s: %w", doc.ID, err)
	}
	if err = tx.Commit(); err != nil {
		return domain.WriteFailed, fmt.Errorf("commit: %w", err)
	}
	return domain.WriteCreated, nil
}

// Search matches any keyword term against the abstract, ordered by bm25 rank.
func (i *Index) Search(ctx context.Context, q domain.Query) ([]domain.Document, error) {
	match := matchExpr(q.Keyword)
	if match == "" || q.Limit <= 0 {
		return nil, nil
	}

	rows, err := sq.Select("p.id", "p.title", "p.authors", "p.abstract", "p.published_at", "p.link").
		From("papers_fts").
		Join("papers p ON p.id = papers_fts.id").
		Where("papers_fts MATCH ?", match).
		Where(sq.GtOrEq{"p.published_at": q.From.UTC().UnixMilli()}).
		Where(sq.LtOrEq{"p.published_at": q.To.UTC().UnixMilli()}).
		OrderBy("bm25(papers_fts)", "p.published_at DESC").
		Limit(uint64(q.Limit)).
		RunWith(i.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("search papers: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			doc       domain.Document
			authors   string
			published int64
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &authors, &doc.Abstract, &published, &doc.Link); err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		if err := json.Unmarshal([]byte(authors), &doc.Authors); err != nil {
			return nil, fmt.Errorf("decode authors for %s: %w", doc.ID, err)
		}
		doc.PublishedAt = time.UnixMilli(published).UTC()
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return docs, nil
}

// matchExpr quotes each term so FTS5 operators in user keywords are literal.
func matchExpr(keyword string) string {
	terms := strings.Fields(keyword)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}
