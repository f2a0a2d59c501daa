package sstable

import (
	"fmt"

	"github.com/box-hippopotamus/box-kv/internal/kv"
	"github.com/box-hippopotamus/box-kv/internal/varint"
	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
)

// targetBlockSize is the uncompressed size a data block is built up to
// before it is sealed, compressed, and written out.
const targetBlockSize = 4 << 10

// checksumSize is the width of the xxhash64 trailer appended after the
// snappy-compressed block payload, validated before the block is parsed.
const checksumSize = 8

// appendDataEntry serializes one entry in the in-block format:
// varint(key_len) | key | varint(value_tag) | varint(serialized_value_len) |
// encoded value | varint(seq), and appends it to dst.
func appendDataEntry(dst []byte, e kv.Entry) []byte {
	dst = varint.Encode(dst, uint64(len(e.Key)))
	dst = append(dst, e.Key...)
	dst = varint.Encode(dst, uint64(e.Value.Tag))
	dst = varint.Encode(dst, uint64(e.Value.SerializedLen()))
	dst = e.Value.EncodeValueSection(dst)
	dst = varint.Encode(dst, e.Seq)
	return dst
}

// readDataEntry parses one entry from the front of data, returning the
// entry and the number of bytes consumed.
func readDataEntry(data []byte) (kv.Entry, int, error) {
	off := 0

	keyLen, n, err := varint.Decode(data[off:])
	if err != nil {
		return kv.Entry{}, 0, fmt.Errorf("sstable: data entry key_len: %w", err)
	}
	off += n
	if off+int(keyLen) > len(data) {
		return kv.Entry{}, 0, fmt.Errorf("sstable: data entry key overruns block")
	}
	key := append([]byte(nil), data[off:off+int(keyLen)]...)
	off += int(keyLen)

	tag, n, err := varint.Decode(data[off:])
	if err != nil {
		return kv.Entry{}, 0, fmt.Errorf("sstable: data entry tag: %w", err)
	}
	off += n

	valLen, n, err := varint.Decode(data[off:])
	if err != nil {
		return kv.Entry{}, 0, fmt.Errorf("sstable: data entry value_len: %w", err)
	}
	off += n
	if off+int(valLen) > len(data) {
		return kv.Entry{}, 0, fmt.Errorf("sstable: data entry value overruns block")
	}
	value, err := kv.DecodeValueSection(kv.ValueTag(tag), data[off:off+int(valLen)])
	if err != nil {
		return kv.Entry{}, 0, fmt.Errorf("sstable: data entry value: %w", err)
	}
	off += int(valLen)

	seq, n, err := varint.Decode(data[off:])
	if err != nil {
		return kv.Entry{}, 0, fmt.Errorf("sstable: data entry seq: %w", err)
	}
	off += n

	return kv.Entry{Key: key, Value: value, Seq: seq}, off, nil
}

// sealDataBlock compresses raw with snappy and appends an xxhash64
// checksum of the compressed bytes, so a reader can validate the block
// before attempting to decompress and parse it.
func sealDataBlock(raw []byte) []byte {
	compressed := snappy.Encode(nil, raw)
	sum := xxhash.Sum64(compressed)
	out := append([]byte(nil), compressed...)
	for i := 0; i < checksumSize; i++ {
		out = append(out, byte(sum>>(8*uint(i))))
	}
	return out
}

// openDataBlock validates the checksum trailer and decompresses sealed
// back into the entry stream produced by appendDataEntry.
func openDataBlock(sealed []byte) ([]byte, error) {
	if len(sealed) < checksumSize {
		return nil, fmt.Errorf("sstable: data block too short for checksum")
	}
	compressed := sealed[:len(sealed)-checksumSize]
	var want uint64
	for i := 0; i < checksumSize; i++ {
		want |= uint64(sealed[len(compressed)+i]) << (8 * uint(i))
	}
	if got := xxhash.Sum64(compressed); got != want {
		return nil, fmt.Errorf("sstable: data block checksum mismatch: want %x got %x", want, got)
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("sstable: data block decompress: %w", err)
	}
	return raw, nil
}
