package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/platinummonkey/protolink/pkg/storage")

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS protolink_snapshots (
	id          TEXT NOT NULL,
	name        TEXT NOT NULL,
	version     TEXT NOT NULL,
	created_at  %s NOT NULL,
	file_count  INTEGER NOT NULL,
	digest      TEXT NOT NULL,
	descriptor  %s NOT NULL,
	PRIMARY KEY (name, version)
)`

type dialect struct {
	name       string
	timeType   string
	binaryType string
}

var (
	postgresDialect = dialect{name: "postgresql", timeType: "TIMESTAMPTZ", binaryType: "BYTEA"}
	sqliteDialect   = dialect{name: "sqlite", timeType: "TIMESTAMP", binaryType: "BLOB"}
)

var placeholder = regexp.MustCompile(`\$\d+`)

// rebind turns $N placeholders into the form the dialect expects.
func (d dialect) rebind(query string) string {
	if d == sqliteDialect {
		return placeholder.ReplaceAllString(query, "?")
	}
	return query
}

// SQLStore keeps snapshots in a single table on PostgreSQL or SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewPostgresStore connects to PostgreSQL and creates the snapshot table.
func NewPostgresStore(ctx context.Context, config Config) (*SQLStore, error) {
	db, err := sql.Open("postgres", config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.PostgresMaxConns)
	db.SetMaxIdleConns(config.PostgresMinConns)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	timeout := config.PostgresTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store, err := NewSQLStore(ctx, db, TypePostgres)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore opens (or creates) the SQLite database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One connection keeps :memory: databases alive and writes serialized.
	db.SetMaxOpenConns(1)

	store, err := NewSQLStore(ctx, db, TypeSQLite)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an open database and creates the snapshot table.
// driver is TypePostgres or TypeSQLite.
func NewSQLStore(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	var d dialect
	switch driver {
	case TypePostgres:
		d = postgresDialect
	case TypeSQLite:
		d = sqliteDialect
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(createSnapshotsTable, d.timeType, d.binaryType)); err != nil {
		return nil, fmt.Errorf("failed to create snapshot table: %w", err)
	}
	return &SQLStore{db: db, dialect: d}, nil
}

func (s *SQLStore) startSpan(ctx context.Context, op, name, version string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "SQLStore."+op,
		trace.WithAttributes(
			attribute.String("db.system", s.dialect.name),
			attribute.String("snapshot.name", name),
			attribute.String("snapshot.version", version),
		),
	)
}

func fail(span trace.Span, err error) error {
	if err != nil && !errors.Is(err, ErrSnapshotNotFound) && !errors.Is(err, ErrSnapshotExists) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Put implements SnapshotWriter.Put
func (s *SQLStore) Put(ctx context.Context, snapshot *Snapshot) error {
	if err := validateSnapshot(snapshot); err != nil {
		return err
	}
	ctx, span := s.startSpan(ctx, "Put", snapshot.Name, snapshot.Version)
	defer span.End()

	data, err := marshalSet(snapshot.Files)
	if err != nil {
		return fail(span, err)
	}

	query := s.dialect.rebind(`
		INSERT INTO protolink_snapshots (id, name, version, created_at, file_count, digest, descriptor)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name, version) DO NOTHING
	`)
	result, err := s.db.ExecContext(ctx, query,
		snapshot.ID,
		snapshot.Name,
		snapshot.Version,
		snapshot.CreatedAt.UTC(),
		snapshot.FileCount,
		snapshot.Digest,
		data,
	)
	if err != nil {
		return fail(span, fmt.Errorf("failed to insert snapshot: %w", err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fail(span, fmt.Errorf("failed to insert snapshot: %w", err))
	}
	if n == 0 {
		return fail(span, exists(snapshot.Name, snapshot.Version))
	}
	return nil
}

func (s *SQLStore) scanSnapshot(row *sql.Row, name, version string) (*Snapshot, error) {
	var (
		snapshot Snapshot
		data     []byte
	)
	err := row.Scan(
		&snapshot.ID,
		&snapshot.Name,
		&snapshot.Version,
		&snapshot.CreatedAt,
		&snapshot.FileCount,
		&snapshot.Digest,
		&data,
	)
	if errors.Is(err, sql.ErrNoRows) {
		if version == "" {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
		return nil, notFound(name, version)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	if snapshot.Files, err = unmarshalSet(data); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Get implements SnapshotReader.Get
func (s *SQLStore) Get(ctx context.Context, name, version string) (*Snapshot, error) {
	if err := validateKey(name, version); err != nil {
		return nil, err
	}
	ctx, span := s.startSpan(ctx, "Get", name, version)
	defer span.End()

	query := s.dialect.rebind(`
		SELECT id, name, version, created_at, file_count, digest, descriptor
		FROM protolink_snapshots
		WHERE name = $1 AND version = $2
	`)
	snapshot, err := s.scanSnapshot(s.db.QueryRowContext(ctx, query, name, version), name, version)
	return snapshot, fail(span, err)
}

// Latest implements SnapshotReader.Latest
func (s *SQLStore) Latest(ctx context.Context, name string) (*Snapshot, error) {
	if err := validateKey(name, ""); err != nil {
		return nil, err
	}
	ctx, span := s.startSpan(ctx, "Latest", name, "")
	defer span.End()

	query := s.dialect.rebind(`
		SELECT id, name, version, created_at, file_count, digest, descriptor
		FROM protolink_snapshots
		WHERE name = $1
		ORDER BY created_at DESC, version DESC
		LIMIT 1
	`)
	snapshot, err := s.scanSnapshot(s.db.QueryRowContext(ctx, query, name), name, "")
	return snapshot, fail(span, err)
}

// List implements SnapshotReader.List
func (s *SQLStore) List(ctx context.Context, name string) ([]SnapshotInfo, error) {
	ctx, span := s.startSpan(ctx, "List", name, "")
	defer span.End()

	query := `SELECT id, name, version, created_at, file_count, digest FROM protolink_snapshots`
	var args []interface{}
	if name != "" {
		if err := validateKey(name, ""); err != nil {
			return nil, err
		}
		query += ` WHERE name = $1`
		args = append(args, name)
	}
	query += ` ORDER BY name, created_at, version`

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to list snapshots: %w", err))
	}
	defer rows.Close()

	infos := make([]SnapshotInfo, 0)
	for rows.Next() {
		var info SnapshotInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Version, &info.CreatedAt, &info.FileCount, &info.Digest); err != nil {
			return nil, fail(span, fmt.Errorf("failed to scan snapshot: %w", err))
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("failed to list snapshots: %w", err))
	}
	span.SetAttributes(attribute.Int("snapshot.count", len(infos)))
	return infos, nil
}

// Delete implements SnapshotWriter.Delete
func (s *SQLStore) Delete(ctx context.Context, name, version string) error {
	if err := validateKey(name, version); err != nil {
		return err
	}
	ctx, span := s.startSpan(ctx, "Delete", name, version)
	defer span.End()

	query := s.dialect.rebind(`DELETE FROM protolink_snapshots WHERE name = $1 AND version = $2`)
	result, err := s.db.ExecContext(ctx, query, name, version)
	if err != nil {
		return fail(span, fmt.Errorf("failed to delete snapshot: %w", err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fail(span, fmt.Errorf("failed to delete snapshot: %w", err))
	}
	if n == 0 {
		return fail(span, notFound(name, version))
	}
	return nil
}

// Ping checks database connectivity
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}
