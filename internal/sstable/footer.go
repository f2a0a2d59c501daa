package sstable

import (
	"encoding/binary"
	"fmt"
)

// FooterSize is the fixed size, in bytes, of every SSTable footer.
const FooterSize = 48

// MagicSize is the width of the trailing magic-number field.
const MagicSize = 8

// Magic is the fixed sentinel identifying the BoxKV SSTable format.
const Magic uint64 = 0xB00CC0FFEE000001

// Footer is the fixed 48-byte trailer written as the last bytes of every
// SSTable file.
type Footer struct {
	MetaIndexHandle BlockHandle
	IndexHandle     BlockHandle
	MagicNumber     uint64
}

// NewFooter builds a footer with the BoxKV magic constant.
func NewFooter(metaIndex, index BlockHandle) Footer {
	return Footer{MetaIndexHandle: metaIndex, IndexHandle: index, MagicNumber: Magic}
}

// Encode writes the footer into dst, which must be exactly FooterSize bytes.
func (f Footer) Encode(dst *[FooterSize]byte) {
	metaSize := f.MetaIndexHandle.EncodedSize()
	indexSize := f.IndexHandle.EncodedSize()
	if metaSize+indexSize+MagicSize > FooterSize {
		panic("sstable: encoded block handles do not fit in footer")
	}

	buf := dst[:0]
	buf = f.MetaIndexHandle.Encode(buf)
	buf = f.IndexHandle.Encode(buf)

	for i := len(buf); i < FooterSize-MagicSize; i++ {
		dst[i] = 0
	}

	binary.BigEndian.PutUint64(dst[FooterSize-MagicSize:], f.MagicNumber)
}

// DecodeFooter parses a footer from an exactly FooterSize-byte buffer.
func DecodeFooter(data []byte) (Footer, error) {
	if len(data) != FooterSize {
		return Footer{}, fmt.Errorf("sstable: decode footer: expected %d bytes, got %d", FooterSize, len(data))
	}

	metaIndexHandle, n, err := DecodeBlockHandle(data)
	if err != nil {
		return Footer{}, fmt.Errorf("sstable: decode footer: meta index handle: %w", err)
	}
	indexHandle, _, err := DecodeBlockHandle(data[n:])
	if err != nil {
		return Footer{}, fmt.Errorf("sstable: decode footer: index handle: %w", err)
	}

	magic := binary.BigEndian.Uint64(data[FooterSize-MagicSize:])

	return Footer{
		MetaIndexHandle: metaIndexHandle,
		IndexHandle:     indexHandle,
		MagicNumber:     magic,
	}, nil
}

// ValidateMagic reports whether the footer carries the expected magic constant.
func (f Footer) ValidateMagic() bool {
	return f.MagicNumber == Magic
}
