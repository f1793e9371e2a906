package store

import (
	"context"

	"github.com/edgerunner0x01/violette/internal/errors"
)

// Schema for the result store. Hosts are keyed by address; ports reference
// their host and are only ever replaced as a whole set, never deleted
// individually, so the foreign key can never dangle.
const createSchema = `
CREATE TABLE IF NOT EXISTS hosts (
	id INTEGER PRIMARY KEY,
	address TEXT UNIQUE NOT NULL,
	hostname TEXT NOT NULL DEFAULT '',
	last_scan TIMESTAMP NOT NULL,
	os_guess TEXT NOT NULL DEFAULT 'Unknown',
	status TEXT NOT NULL DEFAULT 'unknown'
);

CREATE TABLE IF NOT EXISTS ports (
	id INTEGER PRIMARY KEY,
	host_id INTEGER NOT NULL REFERENCES hosts(id),
	port_number INTEGER NOT NULL,
	service TEXT NOT NULL DEFAULT '',
	version TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_hosts_address ON hosts(address);
CREATE INDEX IF NOT EXISTS idx_ports_host_id ON ports(host_id);
`

const dropSchema = `
DROP TABLE IF EXISTS ports;
DROP TABLE IF EXISTS hosts;
`

// EnsureSchema creates the hosts and ports tables if they do not exist.
// Safe to call on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createSchema); err != nil {
		return errors.WrapStoreError(errors.CodeStoreSchema, "failed to create schema", err).
			WithOperation("ensure schema")
	}
	return nil
}

// Reset drops all scan data and recreates the schema. This is the explicit,
// operator-triggered destructive operation; nothing in steady-state operation
// deletes rows.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, dropSchema); err != nil {
		return errors.WrapStoreError(errors.CodeStoreSchema, "failed to drop schema", err).
			WithOperation("reset")
	}
	return s.EnsureSchema(ctx)
}
