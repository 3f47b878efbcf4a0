package exhash

import (
	"fmt"
	"sort"
	"strings"
)

// Dump renders the directory slots and every bucket's contents. Buckets
// outside memory are loaded from the store.
func (t *Table) Dump() (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Global Depth: %d\n", t.globalDepth)

	b.WriteString("\nDirectory:\n")
	ids := make([]int, 0, len(t.dir))
	seen := make(map[int]bool)
	for slot, id := range t.dir {
		fmt.Fprintf(&b, "  Dir[%d] -> Bucket-%d\n", slot, id)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	b.WriteString("\nBuckets:\n")
	for _, id := range ids {
		bkt, ok := t.buckets[id]
		if !ok {
			rec, err := t.store.LoadBucket(id)
			if err != nil {
				return "", fmt.Errorf("load bucket %d: %w", id, err)
			}
			bkt = bucketFromRecord(rec)
		}
		fmt.Fprintf(&b, "  Bucket-%d (Local Depth: %d):\n", id, bkt.localDepth)
		if len(bkt.entries) == 0 {
			b.WriteString("    Empty\n")
			continue
		}
		for _, e := range bkt.entries {
			fmt.Fprintf(&b, "    Key: %d, Value: %s\n", e.Key, e.Value)
		}
	}
	return b.String(), nil
}
