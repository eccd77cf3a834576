// Package sqlite keeps cache entries in a single-table sqlite database,
// so they outlive the process.
package sqlite

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/fluxcd/regbrowser/pkg/registry/cache"
)

// DBFilename is the database file created in a config dir.
const DBFilename = "cache.db"

const schema = `CREATE TABLE IF NOT EXISTS entries (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

type Storage struct {
	db *sql.DB
}

// Open opens, creating if necessary, the database at path.
func Open(path string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "creating cache directory")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening cache database %s", path)
	}
	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating cache table")
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM entries WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, cache.ErrNotCached
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", key)
	}
	return value, nil
}

func (s *Storage) Set(key string, value []byte) error {
	_, err := s.db.Exec(`INSERT INTO entries (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return errors.Wrapf(err, "writing %s", key)
}

func (s *Storage) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM entries WHERE key = ?`, key)
	return errors.Wrapf(err, "deleting %s", key)
}

func (s *Storage) Keys(prefix string) ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM entries WHERE substr(key, 1, ?) = ? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, errors.Wrap(err, "listing keys")
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.Wrap(err, "listing keys")
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
