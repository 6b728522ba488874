package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS channels (
	name       TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Store persists channel stores in a single SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer; serializes Update transactions
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readChannel(ctx context.Context, q querier, channel string) (domain.Channel, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM channels WHERE name = ?`, channel).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Channel{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read channel %s: %w", channel, err)
	}

	ch := domain.Channel{}
	if err := json.Unmarshal([]byte(data), &ch); err != nil {
		return nil, fmt.Errorf("decode channel %s: %w", channel, err)
	}
	return ch, nil
}

func (s *Store) Load(ctx context.Context, channel string) (domain.Channel, error) {
	return readChannel(ctx, s.db, channel)
}

// Update reads, mutates and writes the channel in one transaction.
func (s *Store) Update(ctx context.Context, channel string, fn func(domain.Channel) error) (domain.Channel, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := readChannel(ctx, tx, channel)
	if err != nil {
		return nil, err
	}
	if err := fn(current); err != nil {
		return nil, err
	}

	if current.IsEmpty() {
		if _, err := tx.ExecContext(ctx, `DELETE FROM channels WHERE name = ?`, channel); err != nil {
			return nil, fmt.Errorf("delete channel %s: %w", channel, err)
		}
	} else {
		data, err := json.Marshal(current)
		if err != nil {
			return nil, fmt.Errorf("encode channel %s: %w", channel, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO channels (name, data, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			channel, string(data), time.Now().Unix())
		if err != nil {
			return nil, fmt.Errorf("write channel %s: %w", channel, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return current, nil
}

func (s *Store) Remove(ctx context.Context, channel string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE name = ?`, channel); err != nil {
		return fmt.Errorf("delete channel %s: %w", channel, err)
	}
	return nil
}

// ListChannels returns channel names in ascending order.
func (s *Store) ListChannels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM channels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// LastUpdate returns when a channel was last written, zero when the
// database holds none. Removals are not tracked.
func (s *Store) LastUpdate(ctx context.Context) (time.Time, error) {
	var at sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM channels`).Scan(&at); err != nil {
		return time.Time{}, fmt.Errorf("read last update: %w", err)
	}
	if !at.Valid {
		return time.Time{}, nil
	}
	return time.Unix(at.Int64, 0), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
