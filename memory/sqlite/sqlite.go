// Package sqlite provides a core.MemoryStore backed by a SQLite database,
// so pair memory survives restarts.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/hupe1980/encounter/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Options configure a Store.
type Options struct {
	// Cap is the number of records kept per pair.
	Cap int
}

// Store is a SQLite-backed MemoryStore.
type Store struct {
	db  *sql.DB
	cap int
}

// New opens (or creates) the database at dsn and runs migrations. Use
// ":memory:" for a throwaway database.
func New(dsn string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Cap: core.DefaultMemoryCap}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Cap <= 0 {
		opts.Cap = core.DefaultMemoryCap
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite is single-writer; one shared connection serializes callers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db, cap: opts.Cap}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Cap returns the per-pair record limit.
func (s *Store) Cap() int { return s.cap }

func (s *Store) runMigrations() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		body, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(body)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", name, err)
		}
	}
	return nil
}

// Recent returns the pair's newest records, oldest first.
func (s *Store) Recent(ctx context.Context, key core.PairKey) ([]core.ConversationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT participant_ids, turns, created_at
		FROM conversations
		WHERE pair_key = ?
		ORDER BY id DESC
		LIMIT ?
	`, key.String(), s.cap)
	if err != nil {
		return nil, fmt.Errorf("memory: recent %q: %w", key, err)
	}
	defer rows.Close()

	var recs []core.ConversationRecord
	for rows.Next() {
		var ids, turns, created string
		if err := rows.Scan(&ids, &turns, &created); err != nil {
			return nil, fmt.Errorf("memory: recent scan: %w", err)
		}
		rec := core.ConversationRecord{}
		if err := json.Unmarshal([]byte(ids), &rec.ParticipantIDs); err != nil {
			return nil, fmt.Errorf("memory: decode participants: %w", err)
		}
		if err := json.Unmarshal([]byte(turns), &rec.Turns); err != nil {
			return nil, fmt.Errorf("memory: decode turns: %w", err)
		}
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("memory: decode timestamp: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memory: recent rows: %w", err)
	}
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

// Append inserts rec and trims the pair to the cap in one transaction.
func (s *Store) Append(ctx context.Context, rec core.ConversationRecord) error {
	key := rec.Key()
	ids, err := json.Marshal(rec.ParticipantIDs)
	if err != nil {
		return fmt.Errorf("memory: encode participants: %w", err)
	}
	turns, err := json.Marshal(rec.Turns)
	if err != nil {
		return fmt.Errorf("memory: encode turns: %w", err)
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (pair_key, participant_ids, turns, created_at)
		VALUES (?, ?, ?, ?)
	`, key.String(), string(ids), string(turns), ts.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("memory: append %q: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM conversations
		WHERE pair_key = ? AND id NOT IN (
			SELECT id FROM conversations WHERE pair_key = ? ORDER BY id DESC LIMIT ?
		)
	`, key.String(), key.String(), s.cap); err != nil {
		return fmt.Errorf("memory: trim %q: %w", key, err)
	}
	return tx.Commit()
}

// Keys returns all pair keys with stored records, sorted.
func (s *Store) Keys(ctx context.Context) ([]core.PairKey, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT pair_key FROM conversations ORDER BY pair_key`)
	if err != nil {
		return nil, fmt.Errorf("memory: keys: %w", err)
	}
	defer rows.Close()
	var keys []core.PairKey
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("memory: keys scan: %w", err)
		}
		keys = append(keys, core.PairKey(k))
	}
	return keys, rows.Err()
}
