package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kris-hansen/summaprompt/utils/config"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects driver name, schema and placeholder style for SQLStore
type Dialect struct {
	Driver      string
	Schema      []string
	Numbered    bool // $1, $2 placeholders instead of ?
	Description string
}

var (
	// DialectSQLite stores sessions in an embedded sqlite file (modernc.org/sqlite)
	DialectSQLite = Dialect{
		Driver: "sqlite",
		Schema: []string{
			`CREATE TABLE IF NOT EXISTS wizard_sessions (
				id TEXT PRIMARY KEY,
				current_step TEXT NOT NULL,
				data TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
		Description: "sqlite",
	}

	// DialectPostgres stores sessions in a PostgreSQL table (lib/pq)
	DialectPostgres = Dialect{
		Driver: "postgres",
		Schema: []string{
			`CREATE TABLE IF NOT EXISTS wizard_sessions (
				id TEXT PRIMARY KEY,
				current_step TEXT NOT NULL,
				data JSONB NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
		Numbered:    true,
		Description: "postgres",
	}
)

// SQLStore keeps each session as one row holding the JSON record
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLStore opens the database, verifies the connection and migrates the schema
func OpenSQLStore(dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, storageErr("open", "", fmt.Errorf("open database: %w", err))
	}
	if dialect.Driver == "sqlite" {
		// A single connection keeps :memory: databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	}

	store, err := NewSQLStore(db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an existing connection and migrates the schema
func NewSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if err := db.Ping(); err != nil {
		return nil, storageErr("open", "", fmt.Errorf("ping database: %w", err))
	}
	for _, stmt := range dialect.Schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, storageErr("migrate", "", err)
		}
	}
	config.DebugLog("[SQLStore] Opened %s session store", dialect.Description)
	return &SQLStore{db: db, dialect: dialect}, nil
}

// rebind rewrites ? placeholders for dialects that number them
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Create implements Store.
func (s *SQLStore) Create(ctx context.Context) (string, error) {
	return NewID(), nil
}

// Load implements Store.
func (s *SQLStore) Load(ctx context.Context, id string) (*Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT data FROM wizard_sessions WHERE id = ?`), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("load", id, fmt.Errorf("query session: %w", err))
	}
	sess, err := Decode([]byte(data))
	if err != nil {
		return nil, storageErr("load", id, err)
	}
	return sess, nil
}

// Save implements Store. The upsert is a single statement, so a failed save
// leaves the previous row untouched.
func (s *SQLStore) Save(ctx context.Context, sess *Session) error {
	if err := ValidateID(sess.ID); err != nil {
		return storageErr("save", sess.ID, err)
	}
	data, err := Encode(sess)
	if err != nil {
		return storageErr("save", sess.ID, err)
	}

	query := s.rebind(`INSERT INTO wizard_sessions (id, current_step, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			current_step = excluded.current_step,
			data = excluded.data,
			updated_at = excluded.updated_at`)

	_, err = s.db.ExecContext(ctx, query,
		sess.ID,
		sess.CurrentStep,
		string(data),
		sess.CreatedAt.UTC().Format(time.RFC3339Nano),
		sess.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return storageErr("save", sess.ID, fmt.Errorf("upsert session: %w", err))
	}
	return nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM wizard_sessions WHERE id = ?`), id); err != nil {
		return storageErr("delete", id, err)
	}
	return nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
