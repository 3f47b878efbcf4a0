package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"splitdb/pkg/common"
)

// ErrBucketNotFound reports a load for a bucket id that was never saved.
var ErrBucketNotFound = errors.New("storage: bucket not found")

// BucketRecord is the durable image of a hash bucket. Save/load must
// round-trip ID, LocalDepth and the entry list unchanged.
type BucketRecord struct {
	ID         int
	LocalDepth int
	Entries    []common.Entry
}

// Meta records directory-level bookkeeping alongside the buckets.
type Meta struct {
	GlobalDepth  int
	NextBucketID int
}

// BucketStore persists hash buckets and directory metadata. The hash
// table treats the serialization format as opaque.
type BucketStore interface {
	SaveBucket(rec *BucketRecord) error
	LoadBucket(id int) (*BucketRecord, error)
	SaveMeta(meta Meta) error
	LoadMeta() (Meta, bool, error)
	Close() error
}

type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS buckets (
		id INTEGER PRIMARY KEY,
		local_depth INTEGER NOT NULL,
		entries BLOB
	);
	CREATE TABLE IF NOT EXISTS meta (
		id INTEGER PRIMARY KEY CHECK (id = 0),
		global_depth INTEGER NOT NULL,
		next_bucket_id INTEGER NOT NULL
	);`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	// journal tuning is best-effort
	db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
	`)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveBucket(rec *BucketRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob := encodeEntries(rec.Entries)
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO buckets (id, local_depth, entries) VALUES (?, ?, ?)",
		rec.ID, rec.LocalDepth, blob,
	)
	if err != nil {
		return fmt.Errorf("save bucket %d: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) LoadBucket(id int) (*BucketRecord, error) {
	var depth int
	var blob []byte
	err := s.db.QueryRow(
		"SELECT local_depth, entries FROM buckets WHERE id = ?", id,
	).Scan(&depth, &blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrBucketNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load bucket %d: %w", id, err)
	}
	entries, err := decodeEntries(blob)
	if err != nil {
		return nil, fmt.Errorf("decode bucket %d: %w", id, err)
	}
	return &BucketRecord{ID: id, LocalDepth: depth, Entries: entries}, nil
}

func (s *SQLiteStore) SaveMeta(meta Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO meta (id, global_depth, next_bucket_id) VALUES (0, ?, ?)",
		meta.GlobalDepth, meta.NextBucketID,
	)
	if err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadMeta() (Meta, bool, error) {
	var meta Meta
	err := s.db.QueryRow(
		"SELECT global_depth, next_bucket_id FROM meta WHERE id = 0",
	).Scan(&meta.GlobalDepth, &meta.NextBucketID)
	if err == sql.ErrNoRows {
		return Meta{}, false, nil
	}
	if err != nil {
		return Meta{}, false, fmt.Errorf("load meta: %w", err)
	}
	return meta, true, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MemStore keeps buckets in memory. It backs tests and runs without a
// configured data path. Records are copied both ways so callers never
// alias the stored state.
type MemStore struct {
	mu      sync.Mutex
	buckets map[int]*BucketRecord
	meta    Meta
	hasMeta bool
}

func NewMemStore() *MemStore {
	return &MemStore{buckets: make(map[int]*BucketRecord)}
}

func (m *MemStore) SaveBucket(rec *BucketRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[rec.ID] = copyRecord(rec)
	return nil
}

func (m *MemStore) LoadBucket(id int) (*BucketRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.buckets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrBucketNotFound, id)
	}
	return copyRecord(rec), nil
}

func (m *MemStore) SaveMeta(meta Meta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = meta
	m.hasMeta = true
	return nil
}

func (m *MemStore) LoadMeta() (Meta, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta, m.hasMeta, nil
}

func (m *MemStore) Close() error {
	return nil
}

func copyRecord(rec *BucketRecord) *BucketRecord {
	out := &BucketRecord{ID: rec.ID, LocalDepth: rec.LocalDepth}
	if rec.Entries != nil {
		out.Entries = make([]common.Entry, len(rec.Entries))
		for i, e := range rec.Entries {
			val := make(common.ValueType, len(e.Value))
			copy(val, e.Value)
			out.Entries[i] = common.Entry{Key: e.Key, Value: val}
		}
	}
	return out
}
