package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/volkan-m/ssh-mcp-server/internal/log"
	"github.com/volkan-m/ssh-mcp-server/internal/model"
	"github.com/volkan-m/ssh-mcp-server/internal/storage"
	"github.com/volkan-m/ssh-mcp-server/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.AuditRepository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

var _ storage.AuditRepository = &Repository{}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	schema, err := migrations.NewSchema(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create schema: %w", err)
	}
	if _, err := schema.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not apply schema: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// RecordExecution stores an execution audit record.
func (r *Repository) RecordExecution(ctx context.Context, rec model.AuditRecord) error {
	if rec.Operation == "" || rec.Outcome == "" {
		return fmt.Errorf("operation and outcome are required: %w", model.ErrNotValid)
	}
	if rec.ID == "" {
		rec.ID = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}

	query := `
		INSERT INTO executions (
			id, at, operation, target, command,
			outcome, exit_code, matched_pattern, reason, duration_ms
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.At.UnixMilli(),
		string(rec.Operation),
		rec.Target,
		rec.Command,
		string(rec.Outcome),
		rec.ExitCode,
		rec.MatchedPattern,
		rec.Reason,
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: executions.") {
			return fmt.Errorf("execution %s already recorded: %w", rec.ID, model.ErrNotValid)
		}
		return fmt.Errorf("could not insert execution: %w", err)
	}

	r.logger.Debugf("Recorded execution in repository: %s", rec.ID)
	return nil
}

// ListExecutions lists the latest execution records, newest first.
func (r *Repository) ListExecutions(ctx context.Context, limit int) ([]model.AuditRecord, error) {
	query := `
		SELECT
			id, at, operation, target, command,
			outcome, exit_code, matched_pattern, reason, duration_ms
		FROM executions
		ORDER BY at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query executions: %w", err)
	}
	defer rows.Close()

	records := []model.AuditRecord{}
	for rows.Next() {
		var (
			rec        model.AuditRecord
			at         int64
			operation  string
			outcome    string
			durationMs int64
		)
		err := rows.Scan(
			&rec.ID,
			&at,
			&operation,
			&rec.Target,
			&rec.Command,
			&outcome,
			&rec.ExitCode,
			&rec.MatchedPattern,
			&rec.Reason,
			&durationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("could not scan execution: %w", err)
		}

		rec.At = time.UnixMilli(at).UTC()
		rec.Operation = model.Operation(operation)
		rec.Outcome = model.Outcome(outcome)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return records, nil
}
