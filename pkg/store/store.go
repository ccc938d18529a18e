// Package store persists bridge domains, assignments, deployments, and
// drift events in SQLite.
//
// Transactional discipline: one bridge domain (with its interfaces) per
// transaction during discovery, so a failing record never loses the ones
// already persisted; assignment acquisition and deployment stage
// transitions are each atomic.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path. Database unavailability
// is fatal to the process; callers treat an error here accordingly.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection also keeps :memory:
	// databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS bridge_domains (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	source TEXT NOT NULL DEFAULT 'discovered',
	username TEXT,
	vlan_id INTEGER,
	outer_vlan INTEGER,
	inner_vlan INTEGER,
	topology_type TEXT,
	dnaas_type TEXT,
	scope TEXT,
	configuration_data TEXT,
	raw_cli_config TEXT,
	discovery_data TEXT,
	deployment_status TEXT NOT NULL DEFAULT 'discovered',
	deployed_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS bridge_domain_interfaces (
	id INTEGER PRIMARY KEY,
	bridge_domain_id INTEGER NOT NULL REFERENCES bridge_domains(id) ON DELETE CASCADE,
	device_name TEXT NOT NULL,
	interface_name TEXT NOT NULL,
	interface_type TEXT,
	interface_role TEXT,
	vlan_id INTEGER,
	outer_vlan INTEGER,
	inner_vlan INTEGER,
	admin_status TEXT,
	oper_status TEXT,
	l2_service_enabled INTEGER NOT NULL DEFAULT 0,
	discovered_at TEXT NOT NULL,
	UNIQUE(bridge_domain_id, device_name, interface_name)
);

CREATE TABLE IF NOT EXISTS device_interfaces (
	id INTEGER PRIMARY KEY,
	device_name TEXT NOT NULL,
	interface_name TEXT NOT NULL,
	admin_status TEXT,
	oper_status TEXT,
	vlan_id INTEGER,
	l2_service_enabled INTEGER NOT NULL DEFAULT 0,
	scanned_at TEXT NOT NULL,
	UNIQUE(device_name, interface_name)
);

CREATE TABLE IF NOT EXISTS assignments (
	id INTEGER PRIMARY KEY,
	bridge_domain_id INTEGER NOT NULL REFERENCES bridge_domains(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	reason TEXT,
	status TEXT NOT NULL DEFAULT 'assigned',
	assigned_at TEXT NOT NULL,
	released_at TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_active
	ON assignments(bridge_domain_id) WHERE status = 'assigned';

CREATE TABLE IF NOT EXISTS deployments (
	id INTEGER PRIMARY KEY,
	bridge_domain_id INTEGER NOT NULL REFERENCES bridge_domains(id) ON DELETE CASCADE,
	session_id TEXT NOT NULL,
	stage TEXT NOT NULL DEFAULT 'planned',
	plan TEXT,
	per_device_results TEXT,
	started_at TEXT NOT NULL,
	ended_at TEXT
);

CREATE TABLE IF NOT EXISTS drift_events (
	id INTEGER PRIMARY KEY,
	deployment_id INTEGER REFERENCES deployments(id) ON DELETE SET NULL,
	kind TEXT NOT NULL,
	device_name TEXT NOT NULL,
	interface_name TEXT,
	detection_source TEXT NOT NULL,
	severity TEXT NOT NULL DEFAULT 'warning',
	expected TEXT,
	observed TEXT,
	created_at TEXT NOT NULL
);
`

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// now returns the canonical stored-time representation.
func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// persistErr normalizes driver errors to the persistence kind, preserving
// uniqueness violations as ErrAlreadyAssigned where that is what they mean.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, util.ErrPersistence, err)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return persistErr("commit", err)
	}
	return nil
}
