package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"

	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/logging"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL DEFAULT '{}',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		id TEXT NOT NULL,
		author TEXT NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (session_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq)`,
}

// SQLiteStore persists sessions in a SQLite database. State and metadata are
// stored as JSON documents; events are stored one row per event in append
// order.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

// SQLiteOptions configures a SQLiteStore.
type SQLiteOptions struct {
	Logger logging.Logger
}

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:" for
// a private in-memory database.
func NewSQLiteStore(path string, optFns ...func(o *SQLiteOptions)) (*SQLiteStore, error) {
	opts := SQLiteOptions{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	dsn := "file::memory:?_pragma=foreign_keys(ON)"
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// single writer; also keeps a :memory: database alive on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
	}

	opts.Logger.Info("session.sqlite.open", "path", path)

	return &SQLiteStore{db: db, logger: opts.Logger}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Create inserts the session if it does not exist and returns it.
func (s *SQLiteStore) Create(sessionID string) (*core.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id must not be empty")
	}

	now := formatTime(time.Now())

	if _, err := s.db.Exec(
		`INSERT OR IGNORE INTO sessions (id, state, metadata, created_at, updated_at) VALUES (?, '{}', '{}', ?, ?)`,
		sessionID, now, now,
	); err != nil {
		return nil, fmt.Errorf("create session %s: %w", sessionID, err)
	}

	return s.Get(sessionID)
}

// Get loads the session and its full event history.
func (s *SQLiteStore) Get(sessionID string) (*core.Session, error) {
	var (
		stateJSON, metaJSON string
		created, updated    string
	)

	err := s.db.QueryRow(
		`SELECT state, metadata, created_at, updated_at FROM sessions WHERE id = ?`, sessionID,
	).Scan(&stateJSON, &metaJSON, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}

	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	sess := core.NewSession(sessionID)

	if err := decodeState(stateJSON, &sess.State); err != nil {
		return nil, fmt.Errorf("decode state of %s: %w", sessionID, err)
	}

	if err := json.Unmarshal([]byte(metaJSON), &sess.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata of %s: %w", sessionID, err)
	}

	sess.Created = parseTime(created)
	sess.Updated = parseTime(updated)

	rows, err := s.db.Query(`SELECT payload FROM events WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load events of %s: %w", sessionID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var ev core.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode event of %s: %w", sessionID, err)
		}

		sess.Events = append(sess.Events, ev)
	}

	return sess, rows.Err()
}

// List returns all session ids in lexical order.
func (s *SQLiteStore) List() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Delete removes the session and its events.
func (s *SQLiteStore) Delete(sessionID string) error {
	return s.tx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM events WHERE session_id = ?`, sessionID); err != nil {
			return err
		}

		res, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID)
		if err != nil {
			return err
		}

		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
		}

		return nil
	})
}

// AppendEvent stores ev after the last event of the session.
func (s *SQLiteStore) AppendEvent(sessionID string, ev core.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}

	return s.tx(func(tx *sql.Tx) error {
		return insertEvent(tx, sessionID, ev, payload)
	})
}

// ApplyDelta merges delta into the stored state. Nil values delete keys.
func (s *SQLiteStore) ApplyDelta(sessionID string, delta map[string]any) error {
	if len(delta) == 0 {
		return nil
	}

	return s.tx(func(tx *sql.Tx) error {
		return mergeState(tx, sessionID, delta)
	})
}

// CommitEvent appends ev and merges its state delta in one transaction.
func (s *SQLiteStore) CommitEvent(sessionID string, ev core.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}

	return s.tx(func(tx *sql.Tx) error {
		if err := insertEvent(tx, sessionID, ev, payload); err != nil {
			return err
		}

		if len(ev.Actions.StateDelta) == 0 {
			return nil
		}

		return mergeState(tx, sessionID, ev.Actions.StateDelta)
	})
}

func insertEvent(tx *sql.Tx, sessionID string, ev core.Event, payload []byte) error {
	if err := touch(tx, sessionID); err != nil {
		return err
	}

	_, err := tx.Exec(
		`INSERT INTO events (session_id, seq, id, author, payload)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM events WHERE session_id = ?), ?, ?, ?)`,
		sessionID, sessionID, ev.ID, ev.Author, string(payload),
	)

	return err
}

func mergeState(tx *sql.Tx, sessionID string, delta map[string]any) error {
	var stateJSON string

	err := tx.QueryRow(`SELECT state FROM sessions WHERE id = ?`, sessionID).Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}

	if err != nil {
		return err
	}

	state := map[string]any{}
	if err := decodeState(stateJSON, &state); err != nil {
		return fmt.Errorf("decode state of %s: %w", sessionID, err)
	}

	for k, v := range delta {
		if v == nil {
			delete(state, k)
			continue
		}

		state[k] = v
	}

	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	_, err = tx.Exec(`UPDATE sessions SET state = ?, updated_at = ? WHERE id = ?`,
		string(b), formatTime(time.Now()), sessionID)

	return err
}

func (s *SQLiteStore) tx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func touch(tx *sql.Tx, sessionID string) error {
	res, err := tx.Exec(`UPDATE sessions SET updated_at = ? WHERE id = ?`, formatTime(time.Now()), sessionID)
	if err != nil {
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}

	return nil
}

// decodeState keeps numbers as json.Number so integer counters survive the
// round trip; core.IntState reads either form.
func decodeState(raw string, out *map[string]any) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	m := map[string]any{}
	if err := dec.Decode(&m); err != nil {
		return err
	}

	*out = m

	return nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}

	return t
}
