package pagestore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hupe1980/simidx/internal/compress"
	"github.com/hupe1980/simidx/node"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pages (
	id   INTEGER PRIMARY KEY,
	data BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS header (
	id   INTEGER PRIMARY KEY CHECK (id = 1),
	data BLOB NOT NULL
);
`

// SQLite stores pages as rows of a pages(id, data) table.
type SQLite struct {
	db   *sql.DB
	opts Options

	mu    sync.Mutex
	alloc *allocator
}

// NewSQLite opens or creates a SQLite database at path. ":memory:" opens a
// private in-memory database.
func NewSQLite(path string, optFns ...Option) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("pagestore: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("pagestore: open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pagestore: enable WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pagestore: initialize schema: %w", err)
	}

	s := &SQLite{
		db:    db,
		opts:  buildOptions(Options{}, optFns),
		alloc: newAllocator(),
	}
	if err := s.scan(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) scan() error {
	rows, err := s.db.Query("SELECT id FROM pages")
	if err != nil {
		return fmt.Errorf("pagestore: scan pages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		s.alloc.mark(node.PageID(id))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	s.alloc.reclaim()
	return nil
}

// Read loads a page.
func (s *SQLite) Read(id node.PageID) (*node.Node, error) {
	var block []byte
	err := s.db.QueryRow("SELECT data FROM pages WHERE id = ?", int64(id)).Scan(&block)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPageNotFound, id)
		}
		return nil, err
	}

	data, err := compress.Decode(block)
	if err != nil {
		return nil, fmt.Errorf("pagestore: %s: %w", id, err)
	}
	return DecodeNode(id, data)
}

// Write stores a page.
func (s *SQLite) Write(n *node.Node) (node.PageID, error) {
	s.mu.Lock()
	err := s.alloc.assign(n)
	s.mu.Unlock()
	if err != nil {
		return node.NoPage, err
	}

	block, err := compress.Encode(EncodeNode(n), s.opts.Compression)
	if err != nil {
		return node.NoPage, err
	}

	_, err = s.db.Exec(
		"INSERT INTO pages (id, data) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data",
		int64(n.ID), block,
	)
	if err != nil {
		return node.NoPage, err
	}
	return n.ID, nil
}

// Free deletes a page.
func (s *SQLite) Free(id node.PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.alloc.contains(id) {
		return fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}
	if _, err := s.db.Exec("DELETE FROM pages WHERE id = ?", int64(id)); err != nil {
		return err
	}
	s.alloc.release(id)
	return nil
}

// ReadHeader loads the header.
func (s *SQLite) ReadHeader() (Header, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM header WHERE id = 1").Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Header{}, ErrNoHeader
		}
		return Header{}, err
	}

	var h Header
	if err := s.opts.Codec.Unmarshal(data, &h); err != nil {
		return Header{}, fmt.Errorf("pagestore: decode header: %w", err)
	}
	return h, nil
}

// WriteHeader stores the header.
func (s *SQLite) WriteHeader(h Header) error {
	s.mu.Lock()
	h.NextPage = s.alloc.next
	s.mu.Unlock()

	data, err := s.opts.Codec.Marshal(h)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		"INSERT INTO header (id, data) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data",
		data,
	)
	return err
}

// Pages returns the number of allocated pages.
func (s *SQLite) Pages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alloc.count()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
