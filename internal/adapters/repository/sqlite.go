package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/okian/patella/internal/domain/model"
	"github.com/okian/patella/internal/domain/report"
	"github.com/okian/patella/pkg/metrics"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps the history and the profile in a SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	limit int
}

// OpenSQLite opens dsn, applies the embedded migrations and returns the
// store. Use "file::memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, dsn string, opts ...Option) (*SQLiteStore, error) {
	cfg := newStoreConfig(opts)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps in-memory databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, limit: cfg.limit}
	if err := s.MigrateUp(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateHistoryRecords(n)
	}
	return s, nil
}

// MigrateUp runs all pending migrations.
func (s *SQLiteStore) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: that would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the applied schema version.
func (s *SQLiteStore) MigrateVersion() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *SQLiteStore) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

func (s *SQLiteStore) Append(ctx context.Context, r Record) error {
	var rep sql.NullString
	if r.Report != nil {
		raw, err := json.Marshal(r.Report)
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		rep = sql.NullString{String: string(raw), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO diagnoses (id, request_id, created_at, status, class, label, confidence, frames, representative, report, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RequestID, r.CreatedAt.UTC().UnixNano(), r.Status, int(r.Class), r.Label,
		r.Confidence, r.Frames, r.Representative, rep, r.Error,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("append %s: %w", r.ID, ErrDuplicateID)
		}
		return fmt.Errorf("insert diagnosis: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM diagnoses
		WHERE seq NOT IN (SELECT seq FROM diagnoses ORDER BY seq DESC LIMIT ?)`, s.limit); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM diagnoses`).Scan(&n); err != nil {
		return fmt.Errorf("count history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	metrics.UpdateHistoryRecords(n)
	return nil
}

const selectColumns = `id, request_id, created_at, status, class, label, confidence, frames, representative, report, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		r       Record
		created int64
		class   int
		rep     sql.NullString
	)
	if err := row.Scan(&r.ID, &r.RequestID, &created, &r.Status, &class, &r.Label,
		&r.Confidence, &r.Frames, &r.Representative, &rep, &r.Error); err != nil {
		return Record{}, err
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	r.Class = model.Severity(class)
	if rep.Valid {
		var decoded report.Report
		if err := json.Unmarshal([]byte(rep.String), &decoded); err != nil {
			return Record{}, fmt.Errorf("decode report of %s: %w", r.ID, err)
		}
		r.Report = &decoded
	}
	return r, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM diagnoses WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %s: %w", id, err)
	}
	return r, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("list %d: %w", limit, ErrInvalidLimit)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM diagnoses ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM diagnoses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadProfile(ctx context.Context, q queryRower) (Profile, error) {
	var (
		p     Profile
		photo sql.NullString
	)
	err := q.QueryRowContext(ctx, `SELECT name, breed, age, photo FROM profile WHERE id = 1`).
		Scan(&p.Name, &p.Breed, &p.Age, &photo)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultProfile(), nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}
	if photo.Valid {
		p.Photo = &photo.String
	}
	return p, nil
}

func (s *SQLiteStore) Profile(ctx context.Context) (Profile, error) {
	return loadProfile(ctx, s.db)
}

func (s *SQLiteStore) UpdateProfile(ctx context.Context, patch ProfilePatch) (Profile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("begin profile update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := loadProfile(ctx, tx)
	if err != nil {
		return Profile{}, err
	}
	p := patch.Apply(current)

	var photo sql.NullString
	if p.Photo != nil {
		photo = sql.NullString{String: *p.Photo, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profile (id, name, breed, age, photo) VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, breed = excluded.breed, age = excluded.age, photo = excluded.photo`,
		p.Name, p.Breed, p.Age, photo); err != nil {
		return Profile{}, fmt.Errorf("save profile: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Profile{}, fmt.Errorf("commit profile update: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
