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

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/complianceops/escalation-engine/pkg/audit"
)

// SQLiteTrail is an audit.Trail backed by SQLite. Entries are append-only;
// the table has no update or delete path. The autoincrement rowid doubles
// as the append-order sequence number.
type SQLiteTrail struct {
	db *sql.DB
}

func NewSQLiteTrail(db *sql.DB) *SQLiteTrail {
	return &SQLiteTrail{db: db}
}

func (t *SQLiteTrail) Append(ctx context.Context, entry *audit.Entry) error {
	if entry == nil {
		return errors.New("entry required")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to marshal audit entry")
	}

	result, err := t.db.ExecContext(ctx,
		"INSERT INTO audit_entries (id, event_id, action, ts, entry) VALUES (?, ?, ?, ?, ?)",
		entry.ID, entry.EventID, string(entry.Action), entry.Timestamp.UTC(), string(raw),
	)
	if err != nil {
		return errors.Wrap(err, "failed to append audit entry")
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read audit sequence")
	}
	entry.Seq = uint64(seq)

	// Rewrite with the assigned sequence so the stored JSON is complete.
	raw, err = json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to marshal audit entry")
	}
	_, err = t.db.ExecContext(ctx, "UPDATE audit_entries SET entry = ? WHERE seq = ?", string(raw), seq)
	if err != nil {
		return errors.Wrap(err, "failed to finalize audit entry")
	}
	return nil
}

func (t *SQLiteTrail) Query(ctx context.Context, eventID string) ([]audit.Entry, error) {
	rows, err := t.db.QueryContext(ctx,
		"SELECT entry FROM audit_entries WHERE event_id = ? ORDER BY ts, seq", eventID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query audit entries")
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "failed to scan audit entry")
		}
		var entry audit.Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal audit entry")
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

var _ audit.Trail = (*SQLiteTrail)(nil)
