package common

import "fmt"

// KeyType is the key type shared by both indexes, fixed to int64.
type KeyType int64

// ValueType is the stored value payload.
type ValueType []byte

// Entry is the basic key/value unit held by tree leaves and hash buckets.
type Entry struct {
	Key   KeyType
	Value ValueType
}

// String helps with debug printing.
func (e *Entry) String() string {
	return fmt.Sprintf("Entry{Key: %d, ValLen: %d}", e.Key, len(e.Value))
}
