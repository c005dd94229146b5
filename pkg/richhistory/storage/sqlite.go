package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	moderncsqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"mercator-hq/richhistory/pkg/richhistory"
)

const (
	// DriverModernc is the pure-Go SQLite driver (modernc.org/sqlite).
	DriverModernc = "sqlite"

	// DriverMattn is the cgo SQLite driver (github.com/mattn/go-sqlite3).
	DriverMattn = "sqlite3"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the database/sql driver: "sqlite" or "sqlite3".
	// Default: "sqlite"
	Driver string

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// MaxPageCount caps the database size in pages. Inserts that would grow
	// the file beyond it fail with ErrQuotaExceeded. Zero means no cap.
	MaxPageCount int64
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/richhistory.db",
		Driver:      DriverModernc,
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteBackend implements Backend and Searcher using SQLite.
type SQLiteBackend struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteBackend creates a new SQLite storage backend.
// It initializes the database schema and applies the configured pragmas.
func NewSQLiteBackend(config *SQLiteConfig) (*SQLiteBackend, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverModernc
	}
	if config.Driver != DriverModernc && config.Driver != DriverMattn {
		return nil, richhistory.NewStorageError("sqlite", "open", fmt.Errorf("unknown driver %q", config.Driver))
	}

	logger := slog.Default().With("component", "richhistory.storage.sqlite")

	if dir := filepath.Dir(config.Path); config.Path != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, richhistory.NewStorageError("sqlite", "open", err)
		}
	}

	// Open database connection
	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, richhistory.NewStorageError("sqlite", "open", err)
	}

	// Pragmas are per connection, so keep exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteBackend{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
		"max_page_count", config.MaxPageCount,
	)

	return s, nil
}

// initialize sets up pragmas and the database schema.
func (s *SQLiteBackend) initialize() error {
	// Enable WAL mode if configured
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return richhistory.NewStorageError("sqlite", "enable_wal", err)
		}
		s.logger.Debug("WAL mode enabled")
	}

	// Set busy timeout
	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return richhistory.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	// Create schema
	if _, err := s.db.Exec(Schema); err != nil {
		return richhistory.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return richhistory.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return richhistory.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return richhistory.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	// The cap cannot go below the current size; SQLite clamps it.
	if s.config.MaxPageCount > 0 {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA max_page_count=%d;", s.config.MaxPageCount)); err != nil {
			return richhistory.NewStorageError("sqlite", "set_max_page_count", err)
		}
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Name implements Backend.
func (s *SQLiteBackend) Name() string {
	return "sqlite"
}

// isFull reports whether err is SQLite's "database or disk is full".
func isFull(err error) bool {
	var me *moderncsqlite.Error
	if errors.As(err, &me) && me.Code()&0xff == sqlitelib.SQLITE_FULL {
		return true
	}
	return mattnIsFull(err)
}

// wrap classifies a driver error for the given operation.
func (s *SQLiteBackend) wrap(operation string, err error) error {
	if isFull(err) {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return richhistory.NewStorageError(s.Name(), operation, err)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRow scans a row selected with entryColumns.
func scanRow(row scanner) (richhistory.Entry, error) {
	var (
		e         richhistory.Entry
		createdAt int64
		queries   string
		starred   int
		comment   sql.NullString
	)
	if err := row.Scan(&e.ID, &createdAt, &e.DataSourceUID, &e.DataSourceName, &queries, &starred, &comment); err != nil {
		return richhistory.Entry{}, err
	}
	e.CreatedAt = fromMillis(createdAt)
	e.Queries = json.RawMessage(queries)
	e.Starred = starred != 0
	if comment.Valid {
		c := comment.String
		e.Comment = &c
	}
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableComment(c *string) any {
	if c == nil {
		return nil
	}
	return *c
}

// List implements Backend.
func (s *SQLiteBackend) List(ctx context.Context) ([]richhistory.Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+entryColumns+" FROM rich_history")
	if err != nil {
		return nil, s.wrap("list", err)
	}
	defer rows.Close()

	entries := []richhistory.Entry{}
	for rows.Next() {
		e, err := scanRow(rows)
		if err != nil {
			return nil, s.wrap("scan", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("list", err)
	}
	return entries, nil
}

// Get implements Backend.
func (s *SQLiteBackend) Get(ctx context.Context, id string) (richhistory.Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM rich_history WHERE id = ?", id)
	e, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return richhistory.Entry{}, notFound(id)
	}
	if err != nil {
		return richhistory.Entry{}, s.wrap("get", err)
	}
	return e, nil
}

// Commit implements Backend. Evictions and the insert share one transaction.
func (s *SQLiteBackend) Commit(ctx context.Context, entry richhistory.Entry, evict []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("commit", err)
	}
	defer tx.Rollback()

	for _, id := range evict {
		if _, err := tx.ExecContext(ctx, "DELETE FROM rich_history WHERE id = ?", id); err != nil {
			return s.wrap("evict", err)
		}
	}

	_, err = tx.ExecContext(ctx, insertEntry,
		entry.ID,
		toMillis(entry.CreatedAt),
		entry.DataSourceUID,
		entry.DataSourceName,
		string(entry.Queries),
		strings.ToLower(string(entry.Queries)),
		boolToInt(entry.Starred),
		nullableComment(entry.Comment),
	)
	if err != nil {
		return s.wrap("insert", err)
	}

	if err := tx.Commit(); err != nil {
		return s.wrap("commit", err)
	}
	return nil
}

// Update implements Backend.
func (s *SQLiteBackend) Update(ctx context.Context, entry richhistory.Entry) error {
	result, err := s.db.ExecContext(ctx, updateEntry,
		boolToInt(entry.Starred),
		nullableComment(entry.Comment),
		entry.ID,
	)
	if err != nil {
		return s.wrap("update", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return s.wrap("update", err)
	}
	if count == 0 {
		return notFound(entry.ID)
	}
	return nil
}

// Delete implements Backend.
func (s *SQLiteBackend) Delete(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.wrap("delete", err)
	}
	defer tx.Rollback()

	var total int64
	for _, id := range ids {
		result, err := tx.ExecContext(ctx, "DELETE FROM rich_history WHERE id = ?", id)
		if err != nil {
			return 0, s.wrap("delete", err)
		}
		count, err := result.RowsAffected()
		if err != nil {
			return 0, s.wrap("delete", err)
		}
		total += count
	}

	if err := tx.Commit(); err != nil {
		return 0, s.wrap("delete", err)
	}
	return total, nil
}

// Clear implements Backend.
func (s *SQLiteBackend) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM rich_history"); err != nil {
		return s.wrap("clear", err)
	}
	return nil
}

// buildWhereClause builds a SQL WHERE clause from search filters.
func buildWhereClause(f richhistory.SearchFilters, uids map[string]bool) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if f.StarredOnly {
		conditions = append(conditions, "starred = 1")
	}

	if uids != nil {
		placeholders := make([]string, 0, len(uids))
		for uid := range uids {
			placeholders = append(placeholders, "?")
			args = append(args, uid)
		}
		conditions = append(conditions, "datasource_uid IN ("+strings.Join(placeholders, ", ")+")")
	}

	// Stored times have millisecond precision: round the lower bound up and
	// the upper bound down so the comparison matches time.Time semantics.
	if f.From != nil {
		from := f.From.UnixMilli()
		if f.From.Sub(fromMillis(from)) > 0 {
			from++
		}
		conditions = append(conditions, "created_at >= ?")
		args = append(args, from)
	}
	if f.To != nil {
		to := f.To.UnixMilli()
		if f.To.Sub(fromMillis(to)) < 0 {
			to--
		}
		conditions = append(conditions, "created_at <= ?")
		args = append(args, to)
	}

	if f.Search != "" {
		conditions = append(conditions, "instr(search_text, ?) > 0")
		args = append(args, strings.ToLower(f.Search))
	}

	return strings.Join(conditions, " AND "), args
}

// orderClause maps a sort order onto SQL. It mirrors query.SortEntries.
func orderClause(order richhistory.SortOrder) string {
	switch order {
	case richhistory.SortOldest:
		return "created_at ASC, id ASC"
	case richhistory.SortDataSourceAsc:
		return "datasource_name ASC, created_at DESC, id DESC"
	case richhistory.SortDataSourceDesc:
		return "datasource_name DESC, created_at DESC, id DESC"
	default:
		return "created_at DESC, id DESC"
	}
}

// Search implements Searcher.
func (s *SQLiteBackend) Search(ctx context.Context, f richhistory.SearchFilters, uids map[string]bool) (richhistory.Results, error) {
	if uids != nil && len(uids) == 0 {
		return richhistory.Results{RichHistory: []richhistory.Entry{}}, nil
	}

	whereClause, args := buildWhereClause(f, uids)
	where := ""
	if whereClause != "" {
		where = " WHERE " + whereClause
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rich_history"+where, args...).Scan(&total); err != nil {
		return richhistory.Results{}, s.wrap("count", err)
	}

	limit := -1
	if f.Limit > 0 {
		limit = f.Limit
	}
	sqlQuery := fmt.Sprintf("SELECT %s FROM rich_history%s ORDER BY %s LIMIT %d OFFSET %d",
		entryColumns, where, orderClause(f.Sort), limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return richhistory.Results{}, s.wrap("search", err)
	}
	defer rows.Close()

	entries := []richhistory.Entry{}
	for rows.Next() {
		e, err := scanRow(rows)
		if err != nil {
			return richhistory.Results{}, s.wrap("scan", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return richhistory.Results{}, s.wrap("search", err)
	}

	return richhistory.Results{RichHistory: entries, Total: total}, nil
}

// LoadSettings implements SettingsStore.
func (s *SQLiteBackend) LoadSettings(ctx context.Context) (richhistory.Settings, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM settings WHERE id = 1").Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return richhistory.Settings{}, ErrNoSettings
	}
	if err != nil {
		return richhistory.Settings{}, s.wrap("load_settings", err)
	}

	var settings richhistory.Settings
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return richhistory.Settings{}, s.wrap("load_settings", err)
	}
	return settings, nil
}

// SaveSettings implements SettingsStore.
func (s *SQLiteBackend) SaveSettings(ctx context.Context, settings richhistory.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return s.wrap("save_settings", err)
	}
	if _, err := s.db.ExecContext(ctx, upsertSettings, string(data), toMillis(time.Now())); err != nil {
		return s.wrap("save_settings", err)
	}
	return nil
}

// Close releases resources held by the storage backend.
func (s *SQLiteBackend) Close() error {
	if err := s.db.Close(); err != nil {
		return richhistory.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}
