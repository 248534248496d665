// Package postgres provides the Postgres-backed article store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newsdesk/ft-harvester/internal/harvest"
)

// Schema is the article table DDL. The URL uniqueness constraint is the
// only structural invariant the upsert contract relies on.
const Schema = `
CREATE TABLE IF NOT EXISTS articles (
	id UUID PRIMARY KEY,
	url TEXT NOT NULL,
	title TEXT NOT NULL,
	subtitle TEXT,
	author TEXT,
	body TEXT NOT NULL,
	image_url TEXT,
	word_count INT NOT NULL DEFAULT 0,
	reading_time TEXT NOT NULL DEFAULT '',
	published_at TIMESTAMPTZ,
	scraped_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT uq_article_url UNIQUE (url)
);
CREATE INDEX IF NOT EXISTS idx_articles_scraped_at ON articles (scraped_at DESC);
CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles (published_at);
`

const articleColumns = `id, url, title, subtitle, author, body, image_url, word_count, reading_time, published_at, scraped_at, updated_at`

// db is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Store implements harvest.ArticleStore against Postgres. It is the
// sole writer of article rows.
type Store struct {
	pool  db
	clock harvest.Clock
	ids   harvest.IDGenerator
}

// NewStore connects a Store using the provided config.
func NewStore(ctx context.Context, cfg Config, clock harvest.Clock, ids harvest.IDGenerator) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, clock: clock, ids: ids}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewStoreWithPool(pool db, clock harvest.Clock, ids harvest.IDGenerator) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool, clock: clock, ids: ids}, nil
}

// EnsureSchema creates the article table and indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies store connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &harvest.PersistError{Kind: harvest.PersistConnectivityFailure, Err: err}
	}
	return nil
}

// Upsert decides insert vs. update vs. no-op for a candidate, keyed by
// canonical URL, inside one transaction scoped to that URL. A unique
// violation on insert means another writer won the race; the candidate
// is then re-evaluated against the committed row.
func (s *Store) Upsert(ctx context.Context, candidate harvest.CandidateRecord) (harvest.UpsertOutcome, error) {
	outcome, err := s.upsertOnce(ctx, candidate)
	if err != nil && isUniqueViolation(err) {
		return s.upsertOnce(ctx, candidate)
	}
	return outcome, err
}

func (s *Store) upsertOnce(ctx context.Context, candidate harvest.CandidateRecord) (harvest.UpsertOutcome, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", &harvest.PersistError{Kind: harvest.PersistConnectivityFailure, Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var existing harvest.Article
	row := tx.QueryRow(ctx,
		`SELECT id, title, subtitle, author, body, image_url, published_at FROM articles WHERE url = $1 FOR UPDATE`,
		candidate.URL,
	)
	err = row.Scan(
		&existing.ID,
		&existing.Title,
		&existing.Subtitle,
		&existing.Author,
		&existing.Body,
		&existing.ImageURL,
		&existing.PublishedAt,
	)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if insertErr := s.insert(ctx, tx, candidate); insertErr != nil {
			return "", insertErr
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return "", classify(commitErr)
		}
		return harvest.OutcomeInserted, nil

	case err != nil:
		return "", classify(err)

	default:
		if unchanged(existing, candidate) {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				return "", classify(commitErr)
			}
			return harvest.OutcomeUnchanged, nil
		}
		if updateErr := s.update(ctx, tx, existing.ID, candidate); updateErr != nil {
			return "", updateErr
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return "", classify(commitErr)
		}
		return harvest.OutcomeUpdated, nil
	}
}

func (s *Store) insert(ctx context.Context, tx pgx.Tx, candidate harvest.CandidateRecord) error {
	id, err := s.ids.NewID()
	if err != nil {
		return &harvest.PersistError{Kind: harvest.PersistConnectivityFailure, Err: err}
	}
	now := s.clock.Now()
	_, err = tx.Exec(ctx,
		`INSERT INTO articles (`+articleColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		id,
		candidate.URL,
		candidate.Title,
		candidate.Subtitle,
		candidate.Author,
		candidate.Body,
		candidate.ImageURL,
		candidate.WordCount,
		candidate.ReadingTime,
		candidate.PublishedAt,
		now,
		now,
	)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, tx pgx.Tx, id string, candidate harvest.CandidateRecord) error {
	_, err := tx.Exec(ctx,
		`UPDATE articles SET title = $1, subtitle = $2, author = $3, body = $4, image_url = $5, word_count = $6, reading_time = $7, published_at = $8, updated_at = $9 WHERE id = $10`,
		candidate.Title,
		candidate.Subtitle,
		candidate.Author,
		candidate.Body,
		candidate.ImageURL,
		candidate.WordCount,
		candidate.ReadingTime,
		candidate.PublishedAt,
		s.clock.Now(),
		id,
	)
	if err != nil {
		return classify(err)
	}
	return nil
}

// Query returns one page of articles matching the filters, sorted by
// scraped timestamp descending.
func (s *Store) Query(ctx context.Context, query harvest.ArticleQuery) (harvest.ArticlePage, error) {
	where, args := buildFilters(query)

	var total int
	countRow := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM articles`+where, args...)
	if err := countRow.Scan(&total); err != nil {
		return harvest.ArticlePage{}, classify(err)
	}

	offset := (query.Page - 1) * query.PageSize
	pageArgs := append(args, query.PageSize, offset)
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM articles%s ORDER BY scraped_at DESC LIMIT $%d OFFSET $%d`,
			articleColumns, where, len(args)+1, len(args)+2),
		pageArgs...,
	)
	if err != nil {
		return harvest.ArticlePage{}, classify(err)
	}
	defer rows.Close()

	items := make([]harvest.Article, 0, query.PageSize)
	for rows.Next() {
		article, scanErr := scanArticle(rows)
		if scanErr != nil {
			return harvest.ArticlePage{}, classify(scanErr)
		}
		items = append(items, article)
	}
	if err := rows.Err(); err != nil {
		return harvest.ArticlePage{}, classify(err)
	}

	return harvest.ArticlePage{
		Items:      items,
		Total:      total,
		Page:       query.Page,
		PageSize:   query.PageSize,
		TotalPages: (total + query.PageSize - 1) / query.PageSize,
	}, nil
}

// GetByID returns one article or harvest.ErrArticleNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (harvest.Article, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	article, err := scanArticle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return harvest.Article{}, harvest.ErrArticleNotFound
	}
	if err != nil {
		return harvest.Article{}, classify(err)
	}
	return article, nil
}

// buildFilters translates the query into a WHERE clause. The published
// date range excludes rows whose published timestamp is null.
func buildFilters(query harvest.ArticleQuery) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if query.Search != "" {
		p := arg("%" + query.Search + "%")
		conds = append(conds, fmt.Sprintf("(title ILIKE %s OR body ILIKE %s)", p, p))
	}
	if query.Author != "" {
		conds = append(conds, fmt.Sprintf("author ILIKE %s", arg("%"+query.Author+"%")))
	}
	if query.DateFrom != nil {
		conds = append(conds, fmt.Sprintf("published_at >= %s", arg(*query.DateFrom)))
	}
	if query.DateTo != nil {
		conds = append(conds, fmt.Sprintf("published_at <= %s", arg(*query.DateTo)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanArticle(row pgx.Row) (harvest.Article, error) {
	var a harvest.Article
	err := row.Scan(
		&a.ID,
		&a.URL,
		&a.Title,
		&a.Subtitle,
		&a.Author,
		&a.Body,
		&a.ImageURL,
		&a.WordCount,
		&a.ReadingTime,
		&a.PublishedAt,
		&a.ScrapedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return harvest.Article{}, err
	}
	return a, nil
}

// unchanged reports whether the candidate carries nothing new for the
// stored row. Scraped/updated timestamps are deliberately excluded.
func unchanged(existing harvest.Article, candidate harvest.CandidateRecord) bool {
	return existing.Title == candidate.Title &&
		existing.Body == candidate.Body &&
		equalStringPtr(existing.Subtitle, candidate.Subtitle) &&
		equalStringPtr(existing.Author, candidate.Author) &&
		equalStringPtr(existing.ImageURL, candidate.ImageURL) &&
		equalTimePtr(existing.PublishedAt, candidate.PublishedAt)
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// classify maps driver errors onto the persist error taxonomy. Data
// shape problems (constraint and data exceptions) are not retryable;
// everything else means the store is unreachable.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.Code
		if strings.HasPrefix(code, "22") || strings.HasPrefix(code, "23") {
			return &harvest.PersistError{Kind: harvest.PersistConstraintViolation, Err: err}
		}
	}
	return &harvest.PersistError{Kind: harvest.PersistConnectivityFailure, Err: err}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
