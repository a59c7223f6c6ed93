package framestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	_ "github.com/marcboeker/go-duckdb"
)

const schema = `
CREATE TABLE IF NOT EXISTS frames (
	id          VARCHAR PRIMARY KEY,
	tag         VARCHAR,
	blob_key    VARCHAR NOT NULL,
	caption     VARCHAR NOT NULL,
	captured_at TIMESTAMP NOT NULL
)`

// Index keeps one row per stored frame in DuckDB. An empty path opens an
// in-memory database.
type Index struct {
	db *sql.DB
}

func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create frames table: %w", err)
	}

	return &Index{db: db}, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

func (ix *Index) Insert(ctx context.Context, ref Ref) error {
	_, err := ix.db.ExecContext(ctx,
		`INSERT INTO frames (id, tag, blob_key, caption, captured_at) VALUES (?, ?, ?, ?, ?)`,
		ref.ID, ref.Tag, ref.Key, ref.Caption, ref.CapturedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert frame %s: %w", ref.ID, err)
	}
	return nil
}

// Best returns the frame whose caption mentions the most words, newest first
// on ties. Frames matching none of the words are never returned.
func (ix *Index) Best(ctx context.Context, words []string) (Ref, error) {
	if len(words) == 0 {
		return Ref{}, ErrNoMatch
	}

	var (
		terms []string
		args  []any
	)
	for _, w := range words {
		w = strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}))
		if w == "" {
			continue
		}
		// whole words only: "car" must not score on "scarf"
		terms = append(terms, `(CASE WHEN list_contains(regexp_split_to_array(lower(caption), '[^\pL\pN]+'), ?) THEN 1 ELSE 0 END)`)
		args = append(args, w)
	}
	if len(terms) == 0 {
		return Ref{}, ErrNoMatch
	}

	query := `
SELECT id, tag, blob_key, caption, captured_at FROM (
	SELECT *, ` + strings.Join(terms, " + ") + ` AS score FROM frames
) WHERE score > 0
ORDER BY score DESC, captured_at DESC
LIMIT 1`

	var (
		ref Ref
		tag sql.NullString
		at  time.Time
	)
	err := ix.db.QueryRowContext(ctx, query, args...).Scan(&ref.ID, &tag, &ref.Key, &ref.Caption, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Ref{}, ErrNoMatch
	}
	if err != nil {
		return Ref{}, fmt.Errorf("search frames: %w", err)
	}

	ref.Tag = tag.String
	ref.CapturedAt = at
	return ref, nil
}

func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, `SELECT count(*) FROM frames`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count frames: %w", err)
	}
	return n, nil
}
