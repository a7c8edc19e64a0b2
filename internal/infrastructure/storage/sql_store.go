package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"newsmonitor/internal/config"
	"newsmonitor/internal/domain"
	"newsmonitor/internal/ports"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	processedTable = "processed_articles"

	pgUniqueViolation = "23505"
)

var recordColumns = []string{"article_id", "url", "title", "processed_at", "verdict_status", "issue_count"}

// SQLStore persists processed articles for deduplication and audit.
type SQLStore struct {
	db      *sql.DB
	driver  string
	builder sq.StatementBuilderType
}

var _ ports.DedupStore = (*SQLStore)(nil)

// StoreStats summarizes store contents for status reporting.
type StoreStats struct {
	Total           int
	Since           int
	LastProcessedAt time.Time
}

// Open connects to the configured backend and ensures the schema exists.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*SQLStore, error) {
	dsn := cfg.DSN
	if cfg.Driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	store := New(db, cfg.Driver)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// New wraps an existing connection; driver selects the placeholder dialect.
func New(db *sql.DB, driver string) *SQLStore {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == DriverPostgres {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &SQLStore{db: db, driver: driver, builder: builder}
}

// Migrate creates the processed_articles table when missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	tsType := "TIMESTAMP"
	if s.driver == DriverPostgres {
		tsType = "TIMESTAMPTZ"
	}

	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		article_id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		processed_at %s NOT NULL,
		verdict_status TEXT NOT NULL,
		issue_count INTEGER NOT NULL DEFAULT 0
	)`, processedTable, tsType)

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: create schema: %w", domain.ErrStoreFatal, err)
	}
	return nil
}

// IsProcessed reports whether a record exists for the article id.
func (s *SQLStore) IsProcessed(ctx context.Context, articleID string) (bool, error) {
	query, args, err := s.builder.
		Select("1").
		From(processedTable).
		Where(sq.Eq{"article_id": articleID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("%w: build lookup: %w", domain.ErrStoreFatal, err)
	}

	var found int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: lookup %s: %w", domain.ErrStoreFatal, articleID, err)
	}

	return true, nil
}

// MarkProcessed inserts the record. An existing id yields domain.ErrDuplicateRecord;
// every other failure yields domain.ErrStoreFatal.
func (s *SQLStore) MarkProcessed(ctx context.Context, record domain.ProcessedRecord) error {
	query, args, err := s.builder.
		Insert(processedTable).
		Columns(recordColumns...).
		Values(
			record.ArticleID,
			record.URL,
			record.Title,
			record.ProcessedAt.UTC(),
			string(record.Summary.Status),
			record.Summary.IssueCount,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build insert: %w", domain.ErrStoreFatal, err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateRecord, record.ArticleID)
		}
		return fmt.Errorf("%w: insert %s: %w", domain.ErrStoreFatal, record.ArticleID, err)
	}

	return nil
}

// Stats returns totals, the count processed at or after since, and the latest timestamp.
func (s *SQLStore) Stats(ctx context.Context, since time.Time) (StoreStats, error) {
	var stats StoreStats

	query, args, err := s.builder.Select("COUNT(*)").From(processedTable).ToSql()
	if err != nil {
		return stats, fmt.Errorf("build count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&stats.Total); err != nil {
		return stats, fmt.Errorf("count processed: %w", err)
	}

	query, args, err = s.builder.
		Select("COUNT(*)").
		From(processedTable).
		Where(sq.GtOrEq{"processed_at": since.UTC()}).
		ToSql()
	if err != nil {
		return stats, fmt.Errorf("build recent count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&stats.Since); err != nil {
		return stats, fmt.Errorf("count recent: %w", err)
	}

	query, args, err = s.builder.
		Select("processed_at").
		From(processedTable).
		OrderBy("processed_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return stats, fmt.Errorf("build last processed: %w", err)
	}
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&stats.LastProcessedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return stats, fmt.Errorf("last processed: %w", err)
	}

	return stats, nil
}

// Recent lists the newest records, newest first.
func (s *SQLStore) Recent(ctx context.Context, limit int) ([]domain.ProcessedRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	query, args, err := s.builder.
		Select(recordColumns...).
		From(processedTable).
		OrderBy("processed_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}

	var records []domain.ProcessedRecord
	for rows.Next() {
		var (
			rec    domain.ProcessedRecord
			status string
		)
		if err := rows.Scan(&rec.ArticleID, &rec.URL, &rec.Title, &rec.ProcessedAt, &status, &rec.Summary.IssueCount); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Summary.Status = domain.VerdictStatus(status)
		records = append(records, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return records, nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func sqliteDSN(dsn string) string {
	if dsn == ":memory:" || strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_busy_timeout=5000&_journal_mode=WAL"
}
