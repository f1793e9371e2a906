// Package store provides the persistent result store for violette. It is the
// single source of truth for discovered host and port facts: the scan
// orchestrator writes through it, and the recency filter, live view and
// exporter read through it. The store is a single SQLite file accessed
// through sqlx, with WAL mode enabled so readers stay live during a scan.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/edgerunner0x01/violette/internal/errors"
	"github.com/edgerunner0x01/violette/internal/logging"
)

const (
	defaultBusyTimeout = 20 * time.Second
	defaultMaxOpenConn = 4
)

// Config holds store configuration.
type Config struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" json:"path" validate:"required"`

	// BusyTimeout is how long a writer waits on a locked database before
	// giving up.
	BusyTimeout time.Duration `yaml:"busy_timeout" json:"busy_timeout"`
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		Path:        "scanner.db",
		BusyTimeout: defaultBusyTimeout,
	}
}

// Store wraps the SQLite connection pool.
type Store struct {
	db   *sqlx.DB
	path string
}

// Open opens (or creates) the store at the configured path and ensures the
// schema exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}

	// _txlock=immediate makes every write transaction take the write lock at
	// BEGIN. Without it the deferred read-then-write upgrade inside SaveResult
	// returns SQLITE_BUSY immediately instead of waiting out the busy timeout,
	// and concurrent writers fail rather than queue.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_txlock=immediate",
		cfg.Path, busy.Milliseconds())

	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, errors.WrapStoreError(errors.CodeStoreOpen, "failed to open result store", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConn)

	s := &Store{db: db, path: cfg.Path}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logging.InfoStore("Result store opened", "path", cfg.Path)
	return s, nil
}

// New wraps an existing connection. Used by tests that inject a mock or an
// in-memory database.
func New(db *sqlx.DB, path string) *Store {
	return &Store{db: db, path: path}
}

// Path returns the store's file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// sanitizeError converts raw driver errors into typed store errors without
// leaking SQL text. The original error stays in Cause.
func sanitizeError(op string, err error) error {
	if err == nil {
		return nil
	}
	code := errors.CodeStoreQuery
	if se, ok := err.(sqlite3.Error); ok {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			code = errors.CodeStoreCommit
		case sqlite3.ErrConstraint:
			code = errors.CodeStoreCommit
		}
	}
	return errors.WrapStoreError(code, "store operation failed", err).WithOperation(op)
}

// UpsertHost inserts or updates the host row keyed by address and returns the
// stable row identity. A result carrying a last_scan older than the stored
// one leaves the row untouched (last_scan never moves backwards).
func (s *Store) UpsertHost(ctx context.Context, host *Host) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, sanitizeError("upsert host", err)
	}

	id, _, err := upsertHostTx(ctx, tx, host)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, sanitizeError("upsert host", err)
	}
	return id, nil
}

// upsertHostTx performs the upsert inside an existing transaction. The second
// return value reports whether the incoming result was stale (older than the
// stored last_scan) and therefore discarded.
func upsertHostTx(ctx context.Context, tx *sqlx.Tx, host *Host) (int64, bool, error) {
	var existing Host
	err := tx.GetContext(ctx, &existing,
		`SELECT id, address, hostname, last_scan, os_guess, status FROM hosts WHERE address = ?`,
		host.Address)

	switch {
	case err == sql.ErrNoRows:
		res, insErr := tx.ExecContext(ctx,
			`INSERT INTO hosts (address, hostname, last_scan, os_guess, status) VALUES (?, ?, ?, ?, ?)`,
			host.Address, host.Hostname, host.LastScan, host.OSGuess, host.Status)
		if insErr != nil {
			return 0, false, sanitizeError("insert host", insErr)
		}
		id, idErr := res.LastInsertId()
		if idErr != nil {
			return 0, false, sanitizeError("insert host", idErr)
		}
		return id, false, nil

	case err != nil:
		return 0, false, sanitizeError("lookup host", err)

	default:
		if host.LastScan.Before(existing.LastScan) {
			return existing.ID, true, nil
		}
		_, updErr := tx.ExecContext(ctx,
			`UPDATE hosts SET hostname = ?, last_scan = ?, os_guess = ?, status = ? WHERE id = ?`,
			host.Hostname, host.LastScan, host.OSGuess, host.Status, existing.ID)
		if updErr != nil {
			return 0, false, sanitizeError("update host", updErr)
		}
		return existing.ID, false, nil
	}
}

// ReplacePorts atomically swaps the host's port set for the given one. A
// failed commit leaves the old set intact.
func (s *Store) ReplacePorts(ctx context.Context, hostID int64, ports []Port) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return sanitizeError("replace ports", err)
	}
	if err := replacePortsTx(ctx, tx, hostID, ports); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return sanitizeError("replace ports", err)
	}
	return nil
}

func replacePortsTx(ctx context.Context, tx *sqlx.Tx, hostID int64, ports []Port) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM ports WHERE host_id = ?`, hostID); err != nil {
		return sanitizeError("clear ports", err)
	}
	for i := range ports {
		p := &ports[i]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ports (host_id, port_number, service, version) VALUES (?, ?, ?, ?)`,
			hostID, p.Number, p.Service, p.Version); err != nil {
			return sanitizeError("insert port", err)
		}
	}
	return nil
}

// SaveResult commits one completed probe result as a single transaction: the
// host upsert and the port-set replacement become visible together or not at
// all. Stale results (older last_scan than the stored row) are discarded
// without touching the existing port set.
func (s *Store) SaveResult(ctx context.Context, host *Host, ports []Port) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, sanitizeError("save result", err)
	}

	id, stale, err := upsertHostTx(ctx, tx, host)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if stale {
		_ = tx.Rollback()
		logging.Debug("Discarded stale probe result", "address", host.Address)
		return id, nil
	}
	if err := replacePortsTx(ctx, tx, id, ports); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, sanitizeError("save result", err)
	}
	return id, nil
}

// LatestChangeMarker returns an opaque token that advances whenever any
// host's last_scan changes. Pollers compare tokens instead of re-reading the
// whole table.
func (s *Store) LatestChangeMarker(ctx context.Context) (string, error) {
	var marker string
	err := s.db.GetContext(ctx, &marker, `SELECT COALESCE(MAX(last_scan), '') FROM hosts`)
	if err != nil {
		return "", sanitizeError("change marker", err)
	}
	return marker, nil
}

// GetHost returns the host row for an address, or nil when absent.
func (s *Store) GetHost(ctx context.Context, address string) (*Host, error) {
	var host Host
	err := s.db.GetContext(ctx, &host,
		`SELECT id, address, hostname, last_scan, os_guess, status FROM hosts WHERE address = ?`,
		address)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, sanitizeError("get host", err)
	}
	return &host, nil
}

// LastScanTime returns the recorded last_scan for an address. The second
// return value is false when the address has never been scanned.
func (s *Store) LastScanTime(ctx context.Context, address string) (time.Time, bool, error) {
	var last time.Time
	err := s.db.GetContext(ctx, &last, `SELECT last_scan FROM hosts WHERE address = ?`, address)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, sanitizeError("last scan time", err)
	}
	return last, true, nil
}

// hostPortRow is one row of the hosts-ports join used by ListHosts. Port
// columns are nullable because portless hosts still produce a row.
type hostPortRow struct {
	Host
	PortID     sql.NullInt64  `db:"port_id"`
	PortNumber sql.NullInt64  `db:"port_number"`
	Service    sql.NullString `db:"port_service"`
	Version    sql.NullString `db:"port_version"`
}

// ListHosts returns every host with its current port set, ordered by address.
// A single join statement reads both tables in one snapshot, so a commit
// landing mid-read can never pair a host row with another commit's port set.
func (s *Store) ListHosts(ctx context.Context) ([]HostRecord, error) {
	var rows []hostPortRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT h.id, h.address, h.hostname, h.last_scan, h.os_guess, h.status,
		        p.id AS port_id, p.port_number, p.service AS port_service, p.version AS port_version
		 FROM hosts h
		 LEFT JOIN ports p ON p.host_id = h.id
		 ORDER BY h.address, p.port_number`); err != nil {
		return nil, sanitizeError("list hosts", err)
	}

	records := make([]HostRecord, 0, len(rows))
	for _, r := range rows {
		if len(records) == 0 || records[len(records)-1].ID != r.Host.ID {
			records = append(records, HostRecord{Host: r.Host})
		}
		if r.PortID.Valid {
			rec := &records[len(records)-1]
			rec.Ports = append(rec.Ports, Port{
				ID:      r.PortID.Int64,
				HostID:  r.Host.ID,
				Number:  int(r.PortNumber.Int64),
				Service: r.Service.String,
				Version: r.Version.String,
			})
		}
	}
	return records, nil
}

// CountHosts returns the number of host rows.
func (s *Store) CountHosts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM hosts`); err != nil {
		return 0, sanitizeError("count hosts", err)
	}
	return n, nil
}
