package pagestore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/hupe1980/simidx/internal/compress"
	"github.com/hupe1980/simidx/node"
)

var (
	badgerPagePrefix = []byte("p/")
	badgerHeaderKey  = []byte("h")
)

// Badger stores pages in a badger key-value database under keys "p/<id>".
type Badger struct {
	db   *badger.DB
	opts Options

	mu    sync.Mutex
	alloc *allocator
}

// NewBadger opens a badger database in dir. An empty dir opens an in-memory database.
func NewBadger(dir string, optFns ...Option) (*Badger, error) {
	var bopts badger.Options
	if dir == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(dir)
	}
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("pagestore: open badger: %w", err)
	}
	return NewBadgerFromDB(db, optFns...)
}

// NewBadgerFromDB wraps an open database. Close closes db.
func NewBadgerFromDB(db *badger.DB, optFns ...Option) (*Badger, error) {
	s := &Badger{
		db:    db,
		opts:  buildOptions(Options{}, optFns),
		alloc: newAllocator(),
	}

	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: badgerPagePrefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			s.alloc.mark(pageFromKey(it.Item().Key()))
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pagestore: scan pages: %w", err)
	}
	s.alloc.reclaim()

	return s, nil
}

func pageKey(id node.PageID) []byte {
	key := make([]byte, len(badgerPagePrefix)+8)
	copy(key, badgerPagePrefix)
	binary.BigEndian.PutUint64(key[len(badgerPagePrefix):], uint64(id))
	return key
}

func pageFromKey(key []byte) node.PageID {
	return node.PageID(binary.BigEndian.Uint64(key[len(badgerPagePrefix):]))
}

// Read loads a page.
func (s *Badger) Read(id node.PageID) (*node.Node, error) {
	var block []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pageKey(id))
		if err != nil {
			return err
		}
		block, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPageNotFound, id)
		}
		if errors.Is(err, badger.ErrDBClosed) {
			return nil, ErrClosed
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
func (s *Badger) Write(n *node.Node) (node.PageID, error) {
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

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pageKey(n.ID), block)
	})
	if err != nil {
		return node.NoPage, err
	}
	return n.ID, nil
}

// Free deletes a page.
func (s *Badger) Free(id node.PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.alloc.contains(id) {
		return fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(pageKey(id))
	})
	if err != nil {
		return err
	}
	s.alloc.release(id)
	return nil
}

// ReadHeader loads the header.
func (s *Badger) ReadHeader() (Header, error) {
	var h Header
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerHeaderKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return s.opts.Codec.Unmarshal(val, &h)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Header{}, ErrNoHeader
	}
	return h, err
}

// WriteHeader stores the header.
func (s *Badger) WriteHeader(h Header) error {
	s.mu.Lock()
	h.NextPage = s.alloc.next
	s.mu.Unlock()

	data, err := s.opts.Codec.Marshal(h)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerHeaderKey, data)
	})
}

// Pages returns the number of allocated pages.
func (s *Badger) Pages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alloc.count()
}

// Close closes the database.
func (s *Badger) Close() error {
	return s.db.Close()
}
