package exhash

import (
	"splitdb/pkg/common"
	"splitdb/pkg/storage"
)

// bucket is the in-memory form of a hash bucket. Entries keep insert
// order; capacity is enforced by the table.
type bucket struct {
	id         int
	localDepth int
	entries    []common.Entry
}

func (b *bucket) find(key common.KeyType) (common.ValueType, bool) {
	for _, e := range b.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func (b *bucket) contains(key common.KeyType) bool {
	_, ok := b.find(key)
	return ok
}

func (b *bucket) record() *storage.BucketRecord {
	return &storage.BucketRecord{
		ID:         b.id,
		LocalDepth: b.localDepth,
		Entries:    b.entries,
	}
}

func bucketFromRecord(rec *storage.BucketRecord) *bucket {
	return &bucket{
		id:         rec.ID,
		localDepth: rec.LocalDepth,
		entries:    rec.Entries,
	}
}
