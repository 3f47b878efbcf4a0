package exhash

import (
	"errors"
	"fmt"
	"hash/fnv"

	"go.uber.org/zap"

	"splitdb/pkg/common"
	"splitdb/pkg/metrics"
	"splitdb/pkg/storage"
)

var (
	// ErrDuplicateKey reports an insert for a key already present.
	ErrDuplicateKey = errors.New("exhash: duplicate key")

	// ErrIndexExhausted reports a split chain that hit the local depth
	// ceiling, which means the hash cannot separate the colliding keys.
	ErrIndexExhausted = errors.New("exhash: max local depth reached")
)

const (
	DefaultBucketCapacity = 2
	DefaultMaxLocalDepth  = 20
)

// Options configure a Table. Zero values select the defaults.
type Options struct {
	BucketCapacity int
	GlobalDepth    int
	MaxLocalDepth  int
	// MaxResident caps how many buckets stay in memory; 0 keeps all.
	// Evicted buckets are reloaded from the store on demand.
	MaxResident int
	// Hash overrides the key hash, used by tests to force collisions.
	Hash   func(common.KeyType) uint32
	Logger *zap.Logger
}

// Table is an extendible hash table. The directory holds bucket IDs;
// the buckets themselves live in an in-memory arena backed by a
// BucketStore, so several directory slots may share one bucket.
// Not safe for concurrent use.
type Table struct {
	dir          []int
	buckets      map[int]*bucket
	globalDepth  int
	capacity     int
	maxDepth     int
	maxResident  int
	nextBucketID int
	entries      int
	splits       uint64
	doublings    uint64
	hash         func(common.KeyType) uint32
	store        storage.BucketStore
	logger       *zap.Logger
}

// New creates a table over store. A nil store runs fully in memory.
func New(store storage.BucketStore, opts Options) (*Table, error) {
	if store == nil {
		store = storage.NewMemStore()
	}
	if opts.BucketCapacity <= 0 {
		opts.BucketCapacity = DefaultBucketCapacity
	}
	if opts.MaxLocalDepth <= 0 {
		opts.MaxLocalDepth = DefaultMaxLocalDepth
	}
	if opts.GlobalDepth < 0 || opts.GlobalDepth > opts.MaxLocalDepth {
		return nil, fmt.Errorf("invalid global depth %d", opts.GlobalDepth)
	}
	if opts.Hash == nil {
		opts.Hash = hashKey
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	t := &Table{
		dir:         make([]int, 1<<opts.GlobalDepth),
		buckets:     make(map[int]*bucket),
		globalDepth: opts.GlobalDepth,
		capacity:    opts.BucketCapacity,
		maxDepth:    opts.MaxLocalDepth,
		maxResident: opts.MaxResident,
		hash:        opts.Hash,
		store:       store,
		logger:      opts.Logger,
	}

	// Starting above depth zero gives every slot its own bucket so the
	// slots-per-bucket invariant holds from the first insert.
	for slot := range t.dir {
		b := &bucket{id: t.nextBucketID, localDepth: opts.GlobalDepth}
		t.nextBucketID++
		t.buckets[b.id] = b
		t.dir[slot] = b.id
		if err := t.saveBucket(b); err != nil {
			return nil, err
		}
	}
	if err := t.saveMeta(); err != nil {
		return nil, err
	}
	return t, nil
}

// hashKey follows the usual treatment of int64 keys: FNV-1a over the
// key's eight little-endian bytes.
func hashKey(key common.KeyType) uint32 {
	h := fnv.New32a()
	n := int64(key)
	h.Write([]byte{
		byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24),
		byte(n >> 32), byte(n >> 40), byte(n >> 48), byte(n >> 56),
	})
	return h.Sum32()
}

// slotFor takes the low globalDepth bits of the key hash.
func (t *Table) slotFor(key common.KeyType) int {
	mask := (1 << t.globalDepth) - 1
	return int(t.hash(key)) & mask
}

// bucketAt returns the bucket addressed by slot, loading it from the
// store when it is not memory-resident.
func (t *Table) bucketAt(slot int) (*bucket, error) {
	id := t.dir[slot]
	if b, ok := t.buckets[id]; ok {
		return b, nil
	}
	rec, err := t.store.LoadBucket(id)
	if err != nil {
		return nil, fmt.Errorf("load bucket %d: %w", id, err)
	}
	b := bucketFromRecord(rec)
	t.buckets[id] = b
	return b, nil
}

func (t *Table) saveBucket(b *bucket) error {
	if err := t.store.SaveBucket(b.record()); err != nil {
		return fmt.Errorf("persist bucket %d: %w", b.id, err)
	}
	return nil
}

func (t *Table) saveMeta() error {
	meta := storage.Meta{GlobalDepth: t.globalDepth, NextBucketID: t.nextBucketID}
	if err := t.store.SaveMeta(meta); err != nil {
		return fmt.Errorf("persist metadata: %w", err)
	}
	return nil
}

// evict drops resident buckets above the MaxResident cap, sparing the
// just-touched ones. Every mutation is persisted before returning, so
// any bucket can be dropped and lazily reloaded.
func (t *Table) evict(touched ...int) {
	if t.maxResident <= 0 {
		return
	}
	keep := make(map[int]bool, len(touched))
	for _, id := range touched {
		keep[id] = true
	}
	for id := range t.buckets {
		if len(t.buckets) <= t.maxResident {
			return
		}
		if !keep[id] {
			delete(t.buckets, id)
		}
	}
}

// Insert adds (key, value). It fails with ErrDuplicateKey if the key is
// already present, and with ErrIndexExhausted if splitting cannot make
// room before the local depth ceiling. Storage failures abort the
// insert and are returned wrapped.
func (t *Table) Insert(key common.KeyType, value common.ValueType) error {
	for {
		slot := t.slotFor(key)
		b, err := t.bucketAt(slot)
		if err != nil {
			return err
		}

		if b.contains(key) {
			return fmt.Errorf("%w: %d", ErrDuplicateKey, key)
		}

		if len(b.entries) < t.capacity {
			b.entries = append(b.entries, common.Entry{Key: key, Value: value})
			if err := t.saveBucket(b); err != nil {
				b.entries = b.entries[:len(b.entries)-1]
				return err
			}
			t.entries++
			metrics.InsertsTotal.WithLabelValues("exhash").Inc()
			t.evict(b.id)
			return nil
		}

		// Full bucket: split and retry. Several rounds may be needed
		// when every key lands on the same side of the new bit.
		if err := t.splitBucket(slot); err != nil {
			return err
		}
	}
}

// splitBucket grows the addressed bucket's local depth by one, doubling
// the directory first when the bucket already uses every directory bit,
// then redistributes its entries with a new sibling.
func (t *Table) splitBucket(slot int) error {
	old, err := t.bucketAt(slot)
	if err != nil {
		return err
	}
	if old.localDepth >= t.maxDepth {
		return fmt.Errorf("%w: bucket %d at depth %d", ErrIndexExhausted, old.id, old.localDepth)
	}

	if old.localDepth == t.globalDepth {
		t.doubleDirectory()
	}

	old.localDepth++
	sibling := &bucket{id: t.nextBucketID, localDepth: old.localDepth}
	t.nextBucketID++
	t.buckets[sibling.id] = sibling

	// slots whose new distinguishing bit is set move to the sibling
	bit := 1 << (old.localDepth - 1)
	for i, id := range t.dir {
		if id == old.id && i&bit != 0 {
			t.dir[i] = sibling.id
		}
	}

	kept := old.entries[:0:0]
	for _, e := range old.entries {
		if int(t.hash(e.Key))&bit != 0 {
			sibling.entries = append(sibling.entries, e)
		} else {
			kept = append(kept, e)
		}
	}
	old.entries = kept

	// The sibling is persisted before the shrunken original: if either
	// save fails the original's durable image still holds every entry.
	if err := t.saveBucket(sibling); err != nil {
		return err
	}
	if err := t.saveBucket(old); err != nil {
		return err
	}
	if err := t.saveMeta(); err != nil {
		return err
	}

	t.splits++
	metrics.SplitsTotal.WithLabelValues("exhash").Inc()
	t.logger.Debug("bucket split",
		zap.Int("bucket", old.id),
		zap.Int("sibling", sibling.id),
		zap.Int("local_depth", old.localDepth),
		zap.Int("global_depth", t.globalDepth),
	)
	t.evict(old.id, sibling.id)
	return nil
}

// doubleDirectory duplicates every slot pointer into the new upper
// half: old slot i and new slot i+oldSize address the same bucket, so
// existing lookups are unchanged.
func (t *Table) doubleDirectory() {
	t.dir = append(t.dir, t.dir...)
	t.globalDepth++
	t.doublings++
	metrics.DirectoryDoublings.Inc()
	t.logger.Info("directory doubled", zap.Int("global_depth", t.globalDepth))
}

// Search returns the value stored under key. A miss is the normal
// (nil, false, nil) return; the error is only set when a lazy bucket
// load fails.
func (t *Table) Search(key common.KeyType) (common.ValueType, bool, error) {
	b, err := t.bucketAt(t.slotFor(key))
	if err != nil {
		return nil, false, err
	}
	val, ok := b.find(key)
	t.evict(b.id)
	return val, ok, nil
}

func (t *Table) GlobalDepth() int  { return t.globalDepth }
func (t *Table) DirSize() int      { return len(t.dir) }
func (t *Table) Len() int          { return t.entries }
func (t *Table) Splits() uint64    { return t.splits }
func (t *Table) Doublings() uint64 { return t.doublings }

// Buckets counts the distinct buckets addressed by the directory.
func (t *Table) Buckets() int {
	seen := make(map[int]bool)
	for _, id := range t.dir {
		seen[id] = true
	}
	return len(seen)
}

func (t *Table) Close() error {
	return t.store.Close()
}
