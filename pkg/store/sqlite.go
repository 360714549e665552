/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/complianceops/escalation-engine/pkg/escalation"
)

const schema = `
CREATE TABLE IF NOT EXISTS chains (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	is_active  INTEGER NOT NULL DEFAULT 1,
	definition TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS instances (
	event_id TEXT PRIMARY KEY,
	id       TEXT NOT NULL,
	chain_id TEXT NOT NULL,
	status   TEXT NOT NULL,
	level    INTEGER NOT NULL,
	state    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	event_type  TEXT NOT NULL,
	facility_id TEXT NOT NULL DEFAULT '',
	due_date    TIMESTAMP NOT NULL,
	status      TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS assignees (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL,
	role  TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS audit_entries (
	seq      INTEGER PRIMARY KEY AUTOINCREMENT,
	id       TEXT NOT NULL,
	event_id TEXT NOT NULL,
	action   TEXT NOT NULL,
	ts       TIMESTAMP NOT NULL,
	entry    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_event ON audit_entries(event_id);
CREATE INDEX IF NOT EXISTS idx_events_status ON events(status);
`

// Open opens (and if necessary creates) the SQLite database at path and
// applies the schema.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create database directory %s", dir)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, errors.Wrap(err, "failed to enable foreign keys")
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	return db, nil
}

// SQLiteChainStore implements ChainStore with SQLite. The full chain
// definition is stored as JSON alongside indexed columns; rowid order is
// the definition order used for deterministic matching.
type SQLiteChainStore struct {
	db *sql.DB
}

func NewSQLiteChainStore(db *sql.DB) *SQLiteChainStore {
	return &SQLiteChainStore{db: db}
}

func (s *SQLiteChainStore) Save(ctx context.Context, chain *escalation.ChainDefinition) error {
	if chain == nil || chain.ID == "" {
		return errors.New("chain with id required")
	}
	raw, err := json.Marshal(chain)
	if err != nil {
		return errors.Wrap(err, "failed to marshal chain")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chains (id, name, is_active, definition, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			is_active = excluded.is_active,
			definition = excluded.definition,
			updated_at = excluded.updated_at`,
		chain.ID, chain.Name, boolToInt(chain.IsActive), string(raw), chain.CreatedAt.UTC(), chain.UpdatedAt.UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save chain %s", chain.ID)
	}
	return nil
}

func (s *SQLiteChainStore) Get(ctx context.Context, id string) (*escalation.ChainDefinition, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT definition FROM chains WHERE id = ?", id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "chain %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get chain %s", id)
	}
	return unmarshalChain(raw)
}

func (s *SQLiteChainStore) List(ctx context.Context) ([]*escalation.ChainDefinition, error) {
	return s.list(ctx, "SELECT definition FROM chains ORDER BY rowid")
}

func (s *SQLiteChainStore) ListActive(ctx context.Context) ([]*escalation.ChainDefinition, error) {
	return s.list(ctx, "SELECT definition FROM chains WHERE is_active = 1 ORDER BY rowid")
}

func (s *SQLiteChainStore) list(ctx context.Context, query string) ([]*escalation.ChainDefinition, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chains")
	}
	defer rows.Close()

	var chains []*escalation.ChainDefinition
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "failed to scan chain")
		}
		chain, err := unmarshalChain(raw)
		if err != nil {
			return nil, err
		}
		chains = append(chains, chain)
	}
	return chains, rows.Err()
}

func unmarshalChain(raw string) (*escalation.ChainDefinition, error) {
	var chain escalation.ChainDefinition
	if err := json.Unmarshal([]byte(raw), &chain); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal chain")
	}
	return &chain, nil
}

// SQLiteInstanceStore implements InstanceStore with SQLite.
type SQLiteInstanceStore struct {
	db *sql.DB
}

func NewSQLiteInstanceStore(db *sql.DB) *SQLiteInstanceStore {
	return &SQLiteInstanceStore{db: db}
}

func (s *SQLiteInstanceStore) Put(ctx context.Context, inst *escalation.Instance) error {
	if inst == nil || inst.EventID == "" {
		return errors.New("instance with event id required")
	}
	raw, err := json.Marshal(inst)
	if err != nil {
		return errors.Wrap(err, "failed to marshal instance")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO instances (event_id, id, chain_id, status, level, state)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET
			id = excluded.id,
			chain_id = excluded.chain_id,
			status = excluded.status,
			level = excluded.level,
			state = excluded.state`,
		inst.EventID, inst.ID, inst.ChainID, string(inst.Status), inst.CurrentLevel, string(raw),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save instance for event %s", inst.EventID)
	}
	return nil
}

func (s *SQLiteInstanceStore) GetByEvent(ctx context.Context, eventID string) (*escalation.Instance, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT state FROM instances WHERE event_id = ?", eventID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "instance for event %s", eventID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get instance for event %s", eventID)
	}
	var inst escalation.Instance
	if err := json.Unmarshal([]byte(raw), &inst); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal instance")
	}
	return &inst, nil
}

func (s *SQLiteInstanceStore) List(ctx context.Context) ([]*escalation.Instance, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT state FROM instances ORDER BY rowid")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list instances")
	}
	defer rows.Close()

	var instances []*escalation.Instance
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "failed to scan instance")
		}
		var inst escalation.Instance
		if err := json.Unmarshal([]byte(raw), &inst); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal instance")
		}
		instances = append(instances, &inst)
	}
	return instances, rows.Err()
}

// SQLiteEventStore implements EventStore with SQLite.
type SQLiteEventStore struct {
	db *sql.DB
}

func NewSQLiteEventStore(db *sql.DB) *SQLiteEventStore {
	return &SQLiteEventStore{db: db}
}

func (s *SQLiteEventStore) Put(ctx context.Context, event *escalation.DeadlineEvent) error {
	if event == nil || event.ID == "" {
		return errors.New("event with id required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, event_type, facility_id, due_date, status, title)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			event_type = excluded.event_type,
			facility_id = excluded.facility_id,
			due_date = excluded.due_date,
			status = excluded.status,
			title = excluded.title`,
		event.ID, string(event.EventType), event.FacilityID, event.DueDate.UTC(), event.Status, event.Title,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save event %s", event.ID)
	}
	return nil
}

func (s *SQLiteEventStore) Get(ctx context.Context, id string) (*escalation.DeadlineEvent, error) {
	event, err := scanEvent(s.db.QueryRowContext(ctx,
		"SELECT id, event_type, facility_id, due_date, status, title FROM events WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "event %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get event %s", id)
	}
	return event, nil
}

func (s *SQLiteEventStore) List(ctx context.Context) ([]*escalation.DeadlineEvent, error) {
	return s.list(ctx, "SELECT id, event_type, facility_id, due_date, status, title FROM events ORDER BY rowid")
}

func (s *SQLiteEventStore) ListOpen(ctx context.Context) ([]*escalation.DeadlineEvent, error) {
	return s.list(ctx, "SELECT id, event_type, facility_id, due_date, status, title FROM events WHERE status = 'open' ORDER BY rowid")
}

func (s *SQLiteEventStore) list(ctx context.Context, query string) ([]*escalation.DeadlineEvent, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}
	defer rows.Close()

	var events []*escalation.DeadlineEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan event")
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*escalation.DeadlineEvent, error) {
	var (
		event     escalation.DeadlineEvent
		eventType string
		dueDate   time.Time
	)
	if err := row.Scan(&event.ID, &eventType, &event.FacilityID, &dueDate, &event.Status, &event.Title); err != nil {
		return nil, err
	}
	event.EventType = escalation.EventType(eventType)
	event.DueDate = dueDate
	return &event, nil
}

// SQLiteAssigneeDirectory implements AssigneeDirectory with SQLite.
type SQLiteAssigneeDirectory struct {
	db *sql.DB
}

func NewSQLiteAssigneeDirectory(db *sql.DB) *SQLiteAssigneeDirectory {
	return &SQLiteAssigneeDirectory{db: db}
}

func (s *SQLiteAssigneeDirectory) Put(ctx context.Context, assignee *escalation.AssigneeRef) error {
	if assignee == nil || assignee.ID == "" {
		return errors.New("assignee with id required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assignees (id, name, role, email, phone)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			email = excluded.email,
			phone = excluded.phone`,
		assignee.ID, assignee.Name, assignee.Role, assignee.Email, assignee.Phone,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save assignee %s", assignee.ID)
	}
	return nil
}

func (s *SQLiteAssigneeDirectory) Get(ctx context.Context, id string) (*escalation.AssigneeRef, error) {
	var assignee escalation.AssigneeRef
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, role, email, phone FROM assignees WHERE id = ?", id).
		Scan(&assignee.ID, &assignee.Name, &assignee.Role, &assignee.Email, &assignee.Phone)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "assignee %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get assignee %s", id)
	}
	return &assignee, nil
}

func (s *SQLiteAssigneeDirectory) List(ctx context.Context) ([]*escalation.AssigneeRef, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, role, email, phone FROM assignees ORDER BY rowid")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list assignees")
	}
	defer rows.Close()

	var assignees []*escalation.AssigneeRef
	for rows.Next() {
		var assignee escalation.AssigneeRef
		if err := rows.Scan(&assignee.ID, &assignee.Name, &assignee.Role, &assignee.Email, &assignee.Phone); err != nil {
			return nil, errors.Wrap(err, "failed to scan assignee")
		}
		assignees = append(assignees, &assignee)
	}
	return assignees, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var (
	_ ChainStore        = (*SQLiteChainStore)(nil)
	_ InstanceStore     = (*SQLiteInstanceStore)(nil)
	_ EventStore        = (*SQLiteEventStore)(nil)
	_ AssigneeDirectory = (*SQLiteAssigneeDirectory)(nil)
)
