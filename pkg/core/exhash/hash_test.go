package exhash

import (
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"splitdb/pkg/common"
	"splitdb/pkg/storage"
)

// identityHash hashes integers to themselves, making directory
// addressing predictable in tests.
func identityHash(k common.KeyType) uint32 {
	return uint32(uint64(k))
}

func newTestTable(t *testing.T, opts Options) *Table {
	t.Helper()
	tbl, err := New(storage.NewMemStore(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tbl
}

// checkDirectory verifies the structural invariants: directory size is
// 2^globalDepth, every bucket's local depth stays within the global
// depth, and each bucket is shared by exactly 2^(globalDepth-localDepth)
// slots.
func checkDirectory(t *testing.T, tbl *Table) {
	t.Helper()

	if tbl.DirSize() != 1<<tbl.GlobalDepth() {
		t.Fatalf("directory size %d, global depth %d", tbl.DirSize(), tbl.GlobalDepth())
	}

	slots := make(map[int]int)
	for _, id := range tbl.dir {
		slots[id]++
	}
	total := 0
	for id, count := range slots {
		b, ok := tbl.buckets[id]
		if !ok {
			rec, err := tbl.store.LoadBucket(id)
			if err != nil {
				t.Fatalf("load bucket %d: %v", id, err)
			}
			b = bucketFromRecord(rec)
		}
		if b.localDepth > tbl.globalDepth {
			t.Fatalf("bucket %d local depth %d exceeds global depth %d",
				id, b.localDepth, tbl.globalDepth)
		}
		if want := 1 << (tbl.globalDepth - b.localDepth); count != want {
			t.Fatalf("bucket %d referenced by %d slots, want %d", id, count, want)
		}
		total += count
	}
	if total != tbl.DirSize() {
		t.Fatalf("slot counts sum to %d, directory has %d", total, tbl.DirSize())
	}
}

func TestInsertAndSearch(t *testing.T) {
	tbl := newTestTable(t, Options{})

	keys := []int64{5, 10, 15, 42, -3, 77, 1024}
	for _, k := range keys {
		if err := tbl.Insert(common.KeyType(k), []byte(strconv.FormatInt(k, 10))); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	for _, k := range keys {
		val, ok, err := tbl.Search(common.KeyType(k))
		if err != nil {
			t.Fatalf("Search(%d): %v", k, err)
		}
		if !ok {
			t.Fatalf("Search(%d): not found", k)
		}
		if string(val) != strconv.FormatInt(k, 10) {
			t.Errorf("Search(%d): got %q", k, val)
		}
	}
	if _, ok, err := tbl.Search(9999); err != nil || ok {
		t.Errorf("Search(9999): ok=%v err=%v, want miss", ok, err)
	}
	if tbl.Len() != len(keys) {
		t.Errorf("Len: got %d want %d", tbl.Len(), len(keys))
	}
	checkDirectory(t, tbl)
}

func TestDuplicateKeyRejected(t *testing.T) {
	tbl := newTestTable(t, Options{})

	if err := tbl.Insert(5, []byte("value1")); err != nil {
		t.Fatal(err)
	}
	err := tbl.Insert(5, []byte("value2"))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	// the original value must be untouched
	val, ok, err := tbl.Search(5)
	if err != nil || !ok || string(val) != "value1" {
		t.Fatalf("Search(5): val=%q ok=%v err=%v", val, ok, err)
	}
	if tbl.Len() != 1 {
		t.Errorf("Len: got %d want 1", tbl.Len())
	}
}

// TestSplitScenario reproduces the canonical capacity-2 walkthrough:
// the third insert hits a full bucket, doubling the directory once and
// splitting once.
func TestSplitScenario(t *testing.T) {
	tbl := newTestTable(t, Options{BucketCapacity: 2, Hash: identityHash})

	for i, k := range []common.KeyType{5, 10, 15} {
		if err := tbl.Insert(k, []byte(fmt.Sprintf("value%d", i+1))); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	if tbl.Splits() != 1 {
		t.Errorf("splits: got %d want 1", tbl.Splits())
	}
	if tbl.Doublings() != 1 {
		t.Errorf("doublings: got %d want 1", tbl.Doublings())
	}
	if tbl.GlobalDepth() != 1 {
		t.Errorf("global depth: got %d want 1", tbl.GlobalDepth())
	}
	if tbl.Buckets() != 2 {
		t.Errorf("buckets: got %d want 2", tbl.Buckets())
	}
	for i, k := range []common.KeyType{5, 10, 15} {
		val, ok, err := tbl.Search(k)
		if err != nil || !ok {
			t.Fatalf("Search(%d): ok=%v err=%v", k, ok, err)
		}
		if want := fmt.Sprintf("value%d", i+1); string(val) != want {
			t.Errorf("Search(%d): got %q want %q", k, val, want)
		}
	}
	checkDirectory(t, tbl)
}

// TestCascadingSplit forces a redistribution that leaves the sibling
// full again, so a single insert needs two split rounds.
func TestCascadingSplit(t *testing.T) {
	tbl := newTestTable(t, Options{BucketCapacity: 2, Hash: identityHash})

	// 5, 7 and 9 are all odd: after the first split every entry moves
	// to the high-bit sibling, which is then full in turn.
	for _, k := range []common.KeyType{5, 7, 9} {
		if err := tbl.Insert(k, []byte("x")); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	if tbl.Splits() != 2 {
		t.Errorf("splits: got %d want 2", tbl.Splits())
	}
	if tbl.Doublings() != 2 {
		t.Errorf("doublings: got %d want 2", tbl.Doublings())
	}
	if tbl.GlobalDepth() != 2 {
		t.Errorf("global depth: got %d want 2", tbl.GlobalDepth())
	}
	for _, k := range []common.KeyType{5, 7, 9} {
		if _, ok, err := tbl.Search(k); err != nil || !ok {
			t.Fatalf("Search(%d): ok=%v err=%v", k, ok, err)
		}
	}
	checkDirectory(t, tbl)
}

// TestIndexExhausted drives two keys identical in their low MaxLocalDepth
// bits into a capacity-1 table: no amount of splitting separates them.
func TestIndexExhausted(t *testing.T) {
	tbl := newTestTable(t, Options{
		BucketCapacity: 1,
		MaxLocalDepth:  3,
		Hash:           identityHash,
	})

	if err := tbl.Insert(0, []byte("a")); err != nil {
		t.Fatal(err)
	}
	err := tbl.Insert(8, []byte("b")) // 8 & 0b111 == 0
	if !errors.Is(err, ErrIndexExhausted) {
		t.Fatalf("expected ErrIndexExhausted, got %v", err)
	}

	if _, ok, err := tbl.Search(0); err != nil || !ok {
		t.Errorf("Search(0) after exhaustion: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := tbl.Search(8); ok {
		t.Error("Search(8) should miss, insert failed")
	}
	if tbl.Len() != 1 {
		t.Errorf("Len: got %d want 1", tbl.Len())
	}
}

func TestDirectoryInvariantsUnderRandomLoad(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	tbl := newTestTable(t, Options{BucketCapacity: 2})

	inserted := make(map[int64]bool)
	for len(inserted) < 300 {
		k := int64(rng.Intn(100000))
		if inserted[k] {
			continue
		}
		inserted[k] = true
		if err := tbl.Insert(common.KeyType(k), []byte("v")); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	checkDirectory(t, tbl)
	for k := range inserted {
		if _, ok, err := tbl.Search(common.KeyType(k)); err != nil || !ok {
			t.Fatalf("Search(%d): ok=%v err=%v", k, ok, err)
		}
	}
}

func TestInitialGlobalDepth(t *testing.T) {
	tbl := newTestTable(t, Options{GlobalDepth: 2})
	if tbl.DirSize() != 4 {
		t.Fatalf("dir size: got %d want 4", tbl.DirSize())
	}
	if tbl.Buckets() != 4 {
		t.Fatalf("buckets: got %d want 4", tbl.Buckets())
	}
	checkDirectory(t, tbl)
}

func TestLazyLoadAndEviction(t *testing.T) {
	tbl := newTestTable(t, Options{
		BucketCapacity: 2,
		MaxResident:    1,
	})

	keys := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	for _, k := range keys {
		if err := tbl.Insert(common.KeyType(k), []byte(strconv.FormatInt(k, 10))); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	if resident := len(tbl.buckets); resident > 2 {
		t.Errorf("%d buckets resident, eviction cap is 1 (+touched)", resident)
	}
	// every key is still reachable through lazy loads
	for _, k := range keys {
		val, ok, err := tbl.Search(common.KeyType(k))
		if err != nil || !ok {
			t.Fatalf("Search(%d): ok=%v err=%v", k, ok, err)
		}
		if string(val) != strconv.FormatInt(k, 10) {
			t.Errorf("Search(%d): got %q", k, val)
		}
	}
}

// failingStore rejects bucket saves once armed, for exercising the
// fatal-IO path of Insert.
type failingStore struct {
	*storage.MemStore
	failSaves bool
}

func (f *failingStore) SaveBucket(rec *storage.BucketRecord) error {
	if f.failSaves {
		return errors.New("disk full")
	}
	return f.MemStore.SaveBucket(rec)
}

func TestInsertSurfacesStorageFailure(t *testing.T) {
	fs := &failingStore{MemStore: storage.NewMemStore()}
	tbl, err := New(fs, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if err := tbl.Insert(1, []byte("ok")); err != nil {
		t.Fatal(err)
	}

	fs.failSaves = true
	if err := tbl.Insert(2, []byte("lost")); err == nil {
		t.Fatal("expected storage failure to surface")
	}
	fs.failSaves = false

	if _, ok, _ := tbl.Search(2); ok {
		t.Error("failed insert left the key behind")
	}
	if tbl.Len() != 1 {
		t.Errorf("Len: got %d want 1", tbl.Len())
	}
}

func TestSQLiteBackedTable(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "buckets.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	tbl, err := New(store, Options{BucketCapacity: 2, MaxResident: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer tbl.Close()

	for k := int64(0); k < 50; k++ {
		if err := tbl.Insert(common.KeyType(k), []byte(strconv.FormatInt(k, 10))); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	for k := int64(0); k < 50; k++ {
		val, ok, err := tbl.Search(common.KeyType(k))
		if err != nil || !ok {
			t.Fatalf("Search(%d): ok=%v err=%v", k, ok, err)
		}
		if string(val) != strconv.FormatInt(k, 10) {
			t.Errorf("Search(%d): got %q", k, val)
		}
	}
	checkDirectory(t, tbl)
}

func TestDump(t *testing.T) {
	tbl := newTestTable(t, Options{BucketCapacity: 2, Hash: identityHash})
	for i, k := range []common.KeyType{5, 10, 15} {
		if err := tbl.Insert(k, []byte(fmt.Sprintf("value%d", i+1))); err != nil {
			t.Fatal(err)
		}
	}
	out, err := tbl.Dump()
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	for _, want := range []string{"Global Depth: 1", "Dir[0]", "Key: 5, Value: value1"} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump missing %q:\n%s", want, out)
		}
	}
}
