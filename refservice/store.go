// Package refservice is a small command service that implements the contract exercised by
// the test suite. It is used to check the suite itself.
package refservice

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/cmdhub/command-contract-tests/queue"
	"github.com/cmdhub/command-contract-tests/servicedef"
)

//go:embed schema.sql
var schemaSQL string

// Store keeps processed commands in SQLite.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path. ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection, so that an in-memory database is shared by every query.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert stores a processed command. payload is the decoded JSON document; it replaces
// entry.Payload, which may still be compressed.
func (s *Store) Insert(ctx context.Context, entry queue.Entry, payload []byte) (int64, error) {
	if !json.Valid(payload) {
		return 0, fmt.Errorf("payload of command %s is not valid JSON", entry.ID)
	}
	received := entry.Received
	if received.IsZero() {
		received = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO records (uuid, command, version, certname, producer_timestamp, payload, received)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Command, entry.Version, entry.Certname, entry.ProducerTimestamp,
		string(payload), received.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("insert command %s: %w", entry.ID, err)
	}
	return res.LastInsertId()
}

// Query returns one page of the records matching term, along with the number of records
// matching term across all pages. A limit of zero means no limit.
func (s *Store) Query(ctx context.Context, term ldvalue.Value, order []OrderBy, limit, offset int) ([]servicedef.Record, int, error) {
	where, args, err := compileTerm(term)
	if err != nil {
		return nil, 0, err
	}
	orderClause, err := compileOrder(order)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	sqlLimit := limit
	if sqlLimit <= 0 {
		sqlLimit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, uuid, command, version, certname, producer_timestamp, payload, received FROM records WHERE "+
			where+" ORDER BY "+orderClause+" LIMIT ? OFFSET ?",
		append(args, sqlLimit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []servicedef.Record{}
	for rows.Next() {
		var r servicedef.Record
		var payload string
		if err := rows.Scan(&r.ID, &r.UUID, &r.Command, &r.Version, &r.Certname, &r.ProducerTimestamp, &payload, &r.Received); err != nil {
			return nil, 0, fmt.Errorf("scan record: %w", err)
		}
		r.Payload = ldvalue.Parse([]byte(payload))
		records = append(records, r)
	}
	return records, total, rows.Err()
}
