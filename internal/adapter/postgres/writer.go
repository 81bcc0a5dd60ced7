package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	_ "github.com/lib/pq"

	"github.com/couchcryptid/crime-district-report/internal/domain"
)

const (
	table       = "district_crime_report"
	batchSize   = 50
	insertArity = 8

	pingAttempts   = 6
	pingBackoff    = 500 * time.Millisecond
	maxPingBackoff = 5 * time.Second
)

// Writer replaces the contents of the report table on every run.
// It implements pipeline.Loader.
type Writer struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWriter opens a connection to PostgreSQL, waits for it to accept
// connections and creates the report table when missing.
func NewWriter(ctx context.Context, dsn string, logger *slog.Logger) (*Writer, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := waitReady(ctx, db, pingAttempts, pingBackoff, maxPingBackoff, logger); err != nil {
		db.Close()
		return nil, err
	}

	w := &Writer{db: db, logger: logger}
	if err := w.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return w, nil
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// waitReady pings the database with exponential backoff until it answers,
// attempts run out or ctx is canceled.
func waitReady(ctx context.Context, db pinger, attempts int, backoff, maxBackoff time.Duration, logger *slog.Logger) error {
	for attempt := 1; ; attempt++ {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		if attempt >= attempts {
			return fmt.Errorf("ping postgres after %d attempts: %w", attempt, err)
		}
		logger.Warn("postgres not ready", "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (w *Writer) migrate(ctx context.Context) error {
	_, err := w.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+table+` (
			district             TEXT             PRIMARY KEY,
			crimes_total         BIGINT           NOT NULL,
			crimes_monthly       BIGINT,
			lat                  DOUBLE PRECISION,
			lng                  DOUBLE PRECISION,
			frequent_crime_types TEXT,
			run_id               UUID             NOT NULL,
			generated_at         TIMESTAMPTZ      NOT NULL
		);
	`)
	return err
}

// LoadReport deletes the previous report and inserts the new rows in one
// transaction, so readers see either the old or the new report.
func (w *Writer) LoadReport(ctx context.Context, report domain.Report) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clear report table: %w", err)
	}

	for start := 0; start < len(report.Rows); start += batchSize {
		end := min(start+batchSize, len(report.Rows))
		query, args := insertStatement(report.Rows[start:end], report)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert report rows: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}
	w.logger.Info("report table replaced", "table", table, "rows", len(report.Rows), "run_id", report.RunID.String())
	return nil
}

// insertStatement builds a multi-row INSERT for batch with positional
// parameters. Nil pointers bind as NULL.
func insertStatement(batch []domain.ReportRow, report domain.Report) (string, []any) {
	placeholders := make([]string, 0, len(batch))
	args := make([]any, 0, len(batch)*insertArity)

	for i, row := range batch {
		base := i * insertArity
		placeholders = append(placeholders, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		args = append(args,
			row.District, row.CrimesTotal, row.CrimesMonthly, row.Lat, row.Lng, row.FrequentCrimeTypes,
			report.RunID.String(), report.GeneratedAt)
	}

	query := "INSERT INTO " + table +
		" (district, crimes_total, crimes_monthly, lat, lng, frequent_crime_types, run_id, generated_at) VALUES " +
		strings.Join(placeholders, ",")
	return query, args
}

func (w *Writer) Close() error {
	return w.db.Close()
}
