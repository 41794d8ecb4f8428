package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS strategies (
	owner_id   TEXT NOT NULL,
	name       TEXT NOT NULL,
	record     BLOB NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (owner_id, name)
);
`

// SQLiteStore persists strategy records in SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// OpenSQLite opens or creates the database file at path and applies the
// schema
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", sqliteSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initialize sqlite %s: %w", path, err)
		}
	}

	return &SQLiteStore{db: db, logger: logger.Named("sqlite"), now: time.Now}, nil
}

// Load returns every record saved for ownerID, ordered by name. Rows that
// do not decode are logged and skipped.
func (s *SQLiteStore) Load(ctx context.Context, ownerID string) ([]strategy.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, record FROM strategies WHERE owner_id = ? ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load strategies for %q: %w", ownerID, err)
	}
	defer rows.Close()

	var records []strategy.Record
	for rows.Next() {
		var (
			name string
			data []byte
		)
		if err := rows.Scan(&name, &data); err != nil {
			return nil, fmt.Errorf("scan strategy row: %w", err)
		}
		rec, err := decode(data)
		if err != nil {
			s.logger.Warn("skipping undecodable strategy",
				zap.String("owner", ownerID),
				zap.String("name", name),
				zap.Error(err),
			)
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load strategies for %q: %w", ownerID, err)
	}
	return records, nil
}

// Save stores rec for ownerID, replacing a record with the same name
func (s *SQLiteStore) Save(ctx context.Context, ownerID string, rec strategy.Record) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO strategies (owner_id, name, record, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (owner_id, name) DO UPDATE SET
			record = excluded.record,
			updated_at = excluded.updated_at`,
		ownerID, rec.Name, data, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save strategy %q for %q: %w", rec.Name, ownerID, err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
