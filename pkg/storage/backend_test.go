package storage

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"splitdb/pkg/common"
)

func openStores(t *testing.T) map[string]BucketStore {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "buckets.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]BucketStore{
		"sqlite": sqlite,
		"memory": NewMemStore(),
	}
}

func TestBucketRoundTrip(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			rec := &BucketRecord{
				ID:         3,
				LocalDepth: 2,
				Entries: []common.Entry{
					{Key: 5, Value: []byte("value1")},
					{Key: 10, Value: []byte("value2")},
					{Key: -7, Value: []byte{}},
				},
			}
			if err := store.SaveBucket(rec); err != nil {
				t.Fatalf("SaveBucket: %v", err)
			}

			got, err := store.LoadBucket(3)
			if err != nil {
				t.Fatalf("LoadBucket: %v", err)
			}
			if got.ID != rec.ID || got.LocalDepth != rec.LocalDepth {
				t.Errorf("header mismatch: got id=%d depth=%d", got.ID, got.LocalDepth)
			}
			if len(got.Entries) != len(rec.Entries) {
				t.Fatalf("entry count: got %d want %d", len(got.Entries), len(rec.Entries))
			}
			for i, e := range rec.Entries {
				if got.Entries[i].Key != e.Key {
					t.Errorf("entry %d key: got %d want %d", i, got.Entries[i].Key, e.Key)
				}
				if string(got.Entries[i].Value) != string(e.Value) {
					t.Errorf("entry %d value: got %q want %q", i, got.Entries[i].Value, e.Value)
				}
			}
		})
	}
}

func TestSaveBucketOverwrites(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			first := &BucketRecord{ID: 0, LocalDepth: 1,
				Entries: []common.Entry{{Key: 1, Value: []byte("a")}}}
			if err := store.SaveBucket(first); err != nil {
				t.Fatal(err)
			}
			second := &BucketRecord{ID: 0, LocalDepth: 2,
				Entries: []common.Entry{{Key: 2, Value: []byte("b")}}}
			if err := store.SaveBucket(second); err != nil {
				t.Fatal(err)
			}
			got, err := store.LoadBucket(0)
			if err != nil {
				t.Fatal(err)
			}
			if got.LocalDepth != 2 || len(got.Entries) != 1 || got.Entries[0].Key != 2 {
				t.Errorf("overwrite not applied: %+v", got)
			}
		})
	}
}

func TestLoadBucketMissing(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.LoadBucket(42)
			if !errors.Is(err, ErrBucketNotFound) {
				t.Fatalf("expected ErrBucketNotFound, got %v", err)
			}
		})
	}
}

func TestMetaRoundTrip(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := store.LoadMeta(); err != nil || ok {
				t.Fatalf("fresh store meta: ok=%v err=%v", ok, err)
			}
			want := Meta{GlobalDepth: 3, NextBucketID: 9}
			if err := store.SaveMeta(want); err != nil {
				t.Fatalf("SaveMeta: %v", err)
			}
			got, ok, err := store.LoadMeta()
			if err != nil {
				t.Fatalf("LoadMeta: %v", err)
			}
			if !ok || got != want {
				t.Errorf("meta: got %+v ok=%v want %+v", got, ok, want)
			}
		})
	}
}

func TestMemStoreCopies(t *testing.T) {
	store := NewMemStore()
	rec := &BucketRecord{ID: 1, LocalDepth: 1,
		Entries: []common.Entry{{Key: 7, Value: []byte("orig")}}}
	if err := store.SaveBucket(rec); err != nil {
		t.Fatal(err)
	}
	// mutating the caller's record must not leak into the store
	rec.Entries[0].Value[0] = 'X'
	got, err := store.LoadBucket(1)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Entries[0].Value) != "orig" {
		t.Errorf("stored record aliased caller memory: %q", got.Entries[0].Value)
	}
}

func TestEntryCodec(t *testing.T) {
	entries := []common.Entry{
		{Key: 0, Value: nil},
		{Key: 1 << 40, Value: []byte("big key")},
		{Key: -1, Value: []byte("negative")},
	}
	got, err := decodeEntries(encodeEntries(entries))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("count: got %d want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i].Key != entries[i].Key {
			t.Errorf("key %d: got %d want %d", i, got[i].Key, entries[i].Key)
		}
		if !reflect.DeepEqual([]byte(got[i].Value), append([]byte{}, entries[i].Value...)) {
			t.Errorf("value %d: got %q want %q", i, got[i].Value, entries[i].Value)
		}
	}

	if _, err := decodeEntries([]byte{1, 0, 0, 0, 9}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
