package sstable

import (
	"bytes"
	"fmt"

	"github.com/box-hippopotamus/box-kv/internal/varint"
)

// indexEntry maps the last key of a data block to its location in the
// file, so a binary search over the index can find the owning data block
// for any key.
type indexEntry struct {
	lastKey []byte
	handle  BlockHandle
}

// appendIndexEntry serializes one index entry: varint(len(last_key)) |
// last_key | BlockHandle.
func appendIndexEntry(dst []byte, e indexEntry) []byte {
	dst = varint.Encode(dst, uint64(len(e.lastKey)))
	dst = append(dst, e.lastKey...)
	dst = e.handle.Encode(dst)
	return dst
}

// decodeIndexBlock parses the full sequence of index entries out of an
// uncompressed index block.
func decodeIndexBlock(data []byte) ([]indexEntry, error) {
	var entries []indexEntry
	off := 0
	for off < len(data) {
		keyLen, n, err := varint.Decode(data[off:])
		if err != nil {
			return nil, fmt.Errorf("sstable: index entry key_len: %w", err)
		}
		off += n
		if off+int(keyLen) > len(data) {
			return nil, fmt.Errorf("sstable: index entry key overruns block")
		}
		lastKey := append([]byte(nil), data[off:off+int(keyLen)]...)
		off += int(keyLen)

		handle, n, err := DecodeBlockHandle(data[off:])
		if err != nil {
			return nil, fmt.Errorf("sstable: index entry handle: %w", err)
		}
		off += n

		entries = append(entries, indexEntry{lastKey: lastKey, handle: handle})
	}
	return entries, nil
}

// findDataBlock returns the index of the first entry whose lastKey is >=
// key, i.e. the data block that may contain key. ok is false if key is
// greater than every last key in the index.
func findDataBlock(entries []indexEntry, key []byte) (int, bool) {
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(entries[mid].lastKey, key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == len(entries) {
		return 0, false
	}
	return lo, true
}

// bloomMetaKey names the single meta-index slot pointing at the bloom
// filter block.
const bloomMetaKey = "bloom"

func appendMetaIndexEntry(dst []byte, name string, handle BlockHandle) []byte {
	dst = varint.Encode(dst, uint64(len(name)))
	dst = append(dst, name...)
	dst = handle.Encode(dst)
	return dst
}

// decodeMetaIndexBlock parses the meta-index block into a name->handle map.
func decodeMetaIndexBlock(data []byte) (map[string]BlockHandle, error) {
	out := make(map[string]BlockHandle)
	off := 0
	for off < len(data) {
		nameLen, n, err := varint.Decode(data[off:])
		if err != nil {
			return nil, fmt.Errorf("sstable: meta index name_len: %w", err)
		}
		off += n
		if off+int(nameLen) > len(data) {
			return nil, fmt.Errorf("sstable: meta index name overruns block")
		}
		name := string(data[off : off+int(nameLen)])
		off += int(nameLen)

		handle, n, err := DecodeBlockHandle(data[off:])
		if err != nil {
			return nil, fmt.Errorf("sstable: meta index handle: %w", err)
		}
		off += n

		out[name] = handle
	}
	return out, nil
}
