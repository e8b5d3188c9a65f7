// Package jobstore keeps a SQLite ledger of conversion runs: when each job
// ran, what it saw, the beam center it used and the artifacts it wrote.
package jobstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/cred.convert/internal/cred"
	"github.com/banshee-data/cred.convert/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a job id is not in the ledger.
var ErrNotFound = errors.New("job not found")

// Status is the lifecycle state of a job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job is one ledger row.
type Job struct {
	ID         uuid.UUID
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Frames     int
	Missing    int
	FirstIndex int
	LastIndex  int
	Beam       cred.BeamCenter // PerFrame is not stored
	Error      string
}

// Store wraps the ledger database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at path and migrates it to the
// latest schema.
func Open(path string) (*Store, error) {
	// DSN pragmas apply to every pooled connection.
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open job store %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open job store %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// MigrateUp runs all pending migrations. It is a no-op at the latest version.
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: that would close the shared database handle.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateTo migrates up or down to version.
func (s *Store) MigrateTo(version uint) error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	return nil
}

// Version returns the schema version and dirty state; 0 when no migration
// has been applied.
func (s *Store) Version() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// Begin records a new running job and returns its id.
func (s *Store) Begin(ctx context.Context, job Job) (uuid.UUID, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversion_jobs
			(job_id, status, started_at, frame_count, missing_count, first_index, last_index)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID.String(), string(StatusRunning), job.StartedAt.UnixNano(),
		job.Frames, job.Missing, job.FirstIndex, job.LastIndex,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("record job %s: %w", job.ID, err)
	}
	return job.ID, nil
}

// Finish stores the outcome of job id together with its artifacts.
// A non-nil runErr marks the job failed.
func (s *Store) Finish(ctx context.Context, id uuid.UUID, finishedAt time.Time, beam cred.BeamCenter, artifacts []string, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", id, err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE conversion_jobs
		SET status = ?, finished_at = ?, error = ?,
			beam_x = ?, beam_y = ?, beam_std_x = ?, beam_std_y = ?, beam_fallback = ?
		WHERE job_id = ?`,
		string(status), finishedAt.UnixNano(), msg,
		nullFloat(beam.Mean.X), nullFloat(beam.Mean.Y), nullFloat(beam.Std.X), nullFloat(beam.Std.Y),
		beam.Fallback, id.String(),
	)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish job %s: %w", id, ErrNotFound)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO conversion_artifacts (job_id, path) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", id, err)
	}
	defer stmt.Close()
	for _, p := range artifacts {
		if _, err := stmt.ExecContext(ctx, id.String(), p); err != nil {
			return fmt.Errorf("record artifact %s: %w", p, err)
		}
	}
	return tx.Commit()
}

const jobColumns = `job_id, status, started_at, finished_at, frame_count, missing_count,
	first_index, last_index, error, beam_x, beam_y, beam_std_x, beam_std_y, beam_fallback`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (Job, error) {
	var (
		j              Job
		id, status     string
		started        int64
		finished       sql.NullInt64
		first, last    sql.NullInt64
		bx, by, sx, sy sql.NullFloat64
		fallback       bool
	)
	if err := row.Scan(&id, &status, &started, &finished, &j.Frames, &j.Missing,
		&first, &last, &j.Error, &bx, &by, &sx, &sy, &fallback); err != nil {
		return Job{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Job{}, fmt.Errorf("job id %q: %w", id, err)
	}
	j.ID = parsed
	j.Status = Status(status)
	j.StartedAt = time.Unix(0, started)
	if finished.Valid {
		j.FinishedAt = time.Unix(0, finished.Int64)
	}
	j.FirstIndex, j.LastIndex = int(first.Int64), int(last.Int64)
	j.Beam = cred.BeamCenter{
		Mean:     cred.Point{X: floatOrNaN(bx), Y: floatOrNaN(by)},
		Std:      cred.Point{X: floatOrNaN(sx), Y: floatOrNaN(sy)},
		Fallback: fallback,
	}
	return j, nil
}

// Get returns job id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM conversion_jobs WHERE job_id = ?`, id.String())
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Job{}, fmt.Errorf("job %s: %w", id, err)
	}
	return j, nil
}

// Recent returns up to limit jobs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM conversion_jobs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Artifacts returns the sorted artifact paths of job id.
func (s *Store) Artifacts(ctx context.Context, id uuid.UUID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM conversion_artifacts WHERE job_id = ? ORDER BY path`, id.String())
	if err != nil {
		return nil, fmt.Errorf("artifacts of %s: %w", id, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
