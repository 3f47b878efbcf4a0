package storage

import (
	"encoding/binary"
	"errors"

	"splitdb/pkg/common"
)

// Entry blob layout, little-endian:
// [Count 4B] then per entry [Key 8B] [ValSize 4B] [Value NB]

func encodeEntries(entries []common.Entry) []byte {
	size := 4
	for _, e := range entries {
		size += 8 + 4 + len(e.Value)
	}
	buf := make([]byte, 0, size)

	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(entries)))
	buf = append(buf, scratch[:4]...)

	for _, e := range entries {
		binary.LittleEndian.PutUint64(scratch[:8], uint64(e.Key))
		buf = append(buf, scratch[:8]...)
		binary.LittleEndian.PutUint32(scratch[:4], uint32(len(e.Value)))
		buf = append(buf, scratch[:4]...)
		buf = append(buf, e.Value...)
	}
	return buf
}

func decodeEntries(blob []byte) ([]common.Entry, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob) < 4 {
		return nil, errors.New("entry blob truncated")
	}
	count := int(binary.LittleEndian.Uint32(blob[:4]))
	pos := 4

	entries := make([]common.Entry, 0, count)
	for i := 0; i < count; i++ {
		if pos+12 > len(blob) {
			return nil, errors.New("entry header truncated")
		}
		key := common.KeyType(binary.LittleEndian.Uint64(blob[pos : pos+8]))
		vlen := int(binary.LittleEndian.Uint32(blob[pos+8 : pos+12]))
		pos += 12
		if pos+vlen > len(blob) {
			return nil, errors.New("entry value truncated")
		}
		val := make(common.ValueType, vlen)
		copy(val, blob[pos:pos+vlen])
		pos += vlen
		entries = append(entries, common.Entry{Key: key, Value: val})
	}
	return entries, nil
}
