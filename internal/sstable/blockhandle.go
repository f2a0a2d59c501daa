package sstable

import (
	"github.com/box-hippopotamus/box-kv/internal/varint"
)

// BlockHandle addresses a byte range within an SSTable file.
type BlockHandle struct {
	Offset uint64
	Size   uint64
}

// Encode appends the varint-encoded handle to dst.
func (h BlockHandle) Encode(dst []byte) []byte {
	dst = varint.Encode(dst, h.Offset)
	dst = varint.Encode(dst, h.Size)
	return dst
}

// EncodedSize returns the number of bytes Encode would produce.
func (h BlockHandle) EncodedSize() int {
	return varint.EncodedSize(h.Offset) + varint.EncodedSize(h.Size)
}

// DecodeBlockHandle decodes a BlockHandle from the front of data, returning
// the handle and the number of bytes consumed.
func DecodeBlockHandle(data []byte) (BlockHandle, int, error) {
	offset, n1, err := varint.Decode(data)
	if err != nil {
		return BlockHandle{}, 0, err
	}
	size, n2, err := varint.Decode(data[n1:])
	if err != nil {
		return BlockHandle{}, 0, err
	}
	return BlockHandle{Offset: offset, Size: size}, n1 + n2, nil
}
