package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/infrastructure/logging"
)

const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// recordTimeout bounds a single insert issued from a bus callback.
	recordTimeout = 5 * time.Second

	defaultRecentLimit = 50
	maxRecentLimit     = 200
)

// recordedKinds is the set of event kinds persisted to the history store.
// Map geometry streams are excluded: they are bulky, arrive in fragments
// and are reconstructable from a single refresh.
var recordedKinds = []event.Kind{
	event.KindAvailability,
	event.KindBattery,
	event.KindState,
	event.KindError,
	event.KindStats,
	event.KindTotalStats,
	event.KindCleanLog,
	event.KindLifeSpan,
	event.KindFanSpeed,
	event.KindWaterInfo,
	event.KindVolume,
	event.KindNetworkInfo,
}

// Entry is one persisted event.
type Entry struct {
	ID        int64
	Kind      string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Store persists selected bus events to SQLite.
//
// Events are stored as JSON in the event_history table, one row per
// delivery. The store is a passive observer: failures to record are
// logged and never propagate back into event delivery.
//
// Thread Safety: all methods are safe for concurrent use; writes are
// serialized by the single-connection pool.
type Store struct {
	db     *sql.DB
	log    *logging.Logger
	unsubs []func()
}

// Open creates the history store at the given path.
//
// It creates the database directory if needed, opens the file with WAL
// journaling and the given busy timeout, initializes the schema and
// verifies the connection.
//
// Parameters:
//   - path: Filesystem path to the SQLite database file
//   - busyTimeout: Maximum seconds to wait for a database lock
//   - log: Logger for recording failures (nil uses the default)
//
// Returns:
//   - *Store: Store ready for use
//   - error: If opening or schema setup fails
func Open(path string, busyTimeout int, log *logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.Default()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		path,
		busyTimeout*msPerSecond,
	)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying history database: %w", err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}

	// Ignore error - file might not exist yet on first run.
	_ = os.Chmod(path, filePermissions) //nolint:errcheck

	return &Store{
		db:  db,
		log: log.With("component", "history"),
	}, nil
}

// initSchema creates the event_history table and its indexes.
func initSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS event_history (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			kind       TEXT NOT NULL,
			payload    TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);
		CREATE INDEX IF NOT EXISTS idx_event_history_kind
			ON event_history (kind, id DESC);
	`)
	if err != nil {
		return fmt.Errorf("initializing history schema: %w", err)
	}
	return nil
}

// Record inserts one event into the history.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - e: Event to persist
//
// Returns:
//   - error: nil on success, otherwise the marshal or database error
func (s *Store) Record(ctx context.Context, e event.Event) error {
	if e == nil {
		return fmt.Errorf("event is required")
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO event_history (kind, payload) VALUES (?, ?)",
		e.Kind().String(),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("inserting event history: %w", err)
	}

	return nil
}

// Recent returns the newest entries for a kind, ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - kind: Event kind to query
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []Entry: History entries ordered by id DESC
//   - error: nil on success, otherwise the underlying query error
func (s *Store) Recent(ctx context.Context, kind event.Kind, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, payload, created_at
		 FROM event_history
		 WHERE kind = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		kind.String(),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying event history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var payload string
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.Kind, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event history: %w", err)
		}

		entry.Payload = json.RawMessage(payload)

		timestamp, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event history: %w", err)
	}

	return entries, nil
}

// Trim deletes older entries so at most retain rows remain per kind.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - retain: Number of newest entries to keep for each kind
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (s *Store) Trim(ctx context.Context, retain int) (int64, error) {
	if retain <= 0 {
		return 0, fmt.Errorf("retain must be positive")
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM event_history
		 WHERE id NOT IN (
			SELECT h.id FROM event_history AS h
			WHERE h.kind = event_history.kind
			ORDER BY h.id DESC
			LIMIT ?
		 )`,
		retain,
	)
	if err != nil {
		return 0, fmt.Errorf("trimming event history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// Attach subscribes the store to the recorded event kinds on the bus.
// Call Detach when the session shuts down.
func (s *Store) Attach(bus *event.Bus) {
	for _, kind := range recordedKinds {
		s.unsubs = append(s.unsubs, bus.Subscribe(kind, s.onEvent))
	}
}

// Detach unsubscribes the store from the bus.
func (s *Store) Detach() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
}

// onEvent records one delivered event. Errors are logged, never raised.
func (s *Store) onEvent(e event.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := s.Record(ctx, e); err != nil {
		s.log.Warn("recording event failed", "kind", e.Kind().String(), "error", err)
	}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing history database: %w", err)
	}
	return nil
}

// parseTimestamp parses a timestamp stored in SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02T15:04:05Z", value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
