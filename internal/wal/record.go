// Package wal implements the BoxKV write-ahead log: a buffered append-only
// writer, a streaming forward-only reader, and the multi-file recovery scan
// that replays segments back into the memtable on startup.
package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/box-hippopotamus/box-kv/internal/kv"
)

const (
	crcSize        = 4
	payloadLenSize = 8
	valueTagSize   = 1
	seqSize        = 8
	headerSize     = crcSize + payloadLenSize + valueTagSize + seqSize // 21

	keyLenSize = 8

	// MaxKeyLen and MaxValueSectionLen guard against corrupted/malicious
	// headers requesting enormous allocations.
	MaxKeyLen          = 1 << 20 // 1 MiB
	MaxValueSectionLen = 64 << 20 // 64 MiB
)

// ErrCrcMismatch is returned when a record's stored CRC does not match the
// CRC recomputed from its bytes.
type ErrCrcMismatch struct {
	Expected uint32
	Actual   uint32
}

func (e *ErrCrcMismatch) Error() string {
	return fmt.Sprintf("wal: crc mismatch: expected %08x, got %08x", e.Expected, e.Actual)
}

// ErrInvalidRecordType is returned when a record's ValueTag byte does not
// correspond to a known variant.
type ErrInvalidRecordType struct {
	Tag byte
}

func (e *ErrInvalidRecordType) Error() string {
	return fmt.Sprintf("wal: invalid record type: %d", e.Tag)
}

// ErrPayloadTooLarge is returned when KeyLen or the derived value-section
// length exceeds the configured safety limits.
type ErrPayloadTooLarge struct {
	KeyLen, ValLen, MaxKey, MaxVal int
}

func (e *ErrPayloadTooLarge) Error() string {
	return fmt.Sprintf("wal: payload too large: key_len=%d val_len=%d (max_key=%d max_val=%d)",
		e.KeyLen, e.ValLen, e.MaxKey, e.MaxVal)
}

// Record is a single write-ahead log record: an Entry plus the framing
// needed to serialize and checksum it.
type Record struct {
	Seq   uint64
	Key   []byte
	Value kv.Value
}

// Entry converts the record to the shared kv.Entry representation.
func (r Record) Entry() kv.Entry {
	return kv.Entry{Key: r.Key, Value: r.Value, Seq: r.Seq}
}

// encode serializes r into a 21-byte header (CRC, payload length, value
// tag, sequence number) followed by the key-length-prefixed payload, and
// appends it to dst.
func encode(dst []byte, r Record) []byte {
	valueSection := r.Value.EncodeValueSection(nil)
	keyLen := uint64(len(r.Key))
	payloadLen := keyLenSize + keyLen + uint64(len(valueSection))

	// CRC covers PayloadLen, ValueTag, Seq, KeyLen, Key, and the value
	// section, in that order -- everything after the CRC field itself.
	crc := crc32.NewIEEE()
	var scratch [payloadLenSize]byte
	binary.BigEndian.PutUint64(scratch[:], payloadLen)
	crc.Write(scratch[:])
	crc.Write([]byte{byte(r.Value.Tag)})
	var seqBuf [seqSize]byte
	binary.BigEndian.PutUint64(seqBuf[:], r.Seq)
	crc.Write(seqBuf[:])
	var keyLenBuf [keyLenSize]byte
	binary.BigEndian.PutUint64(keyLenBuf[:], keyLen)
	crc.Write(keyLenBuf[:])
	crc.Write(r.Key)
	crc.Write(valueSection)

	dst = binary.BigEndian.AppendUint32(dst, crc.Sum32())
	dst = binary.BigEndian.AppendUint64(dst, payloadLen)
	dst = append(dst, byte(r.Value.Tag))
	dst = binary.BigEndian.AppendUint64(dst, r.Seq)
	dst = binary.BigEndian.AppendUint64(dst, keyLen)
	dst = append(dst, r.Key...)
	dst = append(dst, valueSection...)
	return dst
}

// readRecord reads and validates one record from r. It returns io.EOF only
// when zero bytes were read before any part of a record was seen -- a clean
// end of file between records. Any short read after that point, including
// one that happens to read zero bytes because the file ends exactly at a
// field boundary partway through a record, comes back as
// io.ErrUnexpectedEOF so the recovery scan can recognize a torn tail.
func readRecord(r io.Reader) (Record, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, err
	}

	storedCRC := binary.BigEndian.Uint32(header[0:crcSize])
	payloadLen := binary.BigEndian.Uint64(header[crcSize : crcSize+payloadLenSize])
	tag := header[crcSize+payloadLenSize]
	seq := binary.BigEndian.Uint64(header[crcSize+payloadLenSize+valueTagSize:])

	if payloadLen < keyLenSize {
		return Record{}, fmt.Errorf("wal: corrupt payload length %d", payloadLen)
	}

	keyLenBuf := make([]byte, keyLenSize)
	if _, err := readFullAfterHeader(r, keyLenBuf); err != nil {
		return Record{}, err
	}
	keyLen := binary.BigEndian.Uint64(keyLenBuf)

	valueSectionLen := payloadLen - keyLenSize - keyLen
	if keyLen > MaxKeyLen || valueSectionLen > MaxValueSectionLen {
		return Record{}, &ErrPayloadTooLarge{
			KeyLen: int(keyLen), ValLen: int(valueSectionLen),
			MaxKey: MaxKeyLen, MaxVal: MaxValueSectionLen,
		}
	}

	key := make([]byte, keyLen)
	if _, err := readFullAfterHeader(r, key); err != nil {
		return Record{}, err
	}

	valueSection := make([]byte, valueSectionLen)
	if _, err := readFullAfterHeader(r, valueSection); err != nil {
		return Record{}, err
	}

	crc := crc32.NewIEEE()
	crc.Write(header[crcSize:])
	crc.Write(keyLenBuf)
	crc.Write(key)
	crc.Write(valueSection)
	actual := crc.Sum32()
	if actual != storedCRC {
		return Record{}, &ErrCrcMismatch{Expected: storedCRC, Actual: actual}
	}

	if tag != byte(kv.TagNormal) && tag != byte(kv.TagTombstone) && tag != byte(kv.TagExpiring) {
		return Record{}, &ErrInvalidRecordType{Tag: tag}
	}

	value, err := kv.DecodeValueSection(kv.ValueTag(tag), valueSection)
	if err != nil {
		return Record{}, err
	}

	return Record{Seq: seq, Key: key, Value: value}, nil
}

// readFullAfterHeader reads into buf the way io.ReadFull does, except a
// bare io.EOF is promoted to io.ErrUnexpectedEOF: once the header has been
// read, any end of file before the rest of the record is a torn tail, even
// if it happens to land on a zero-byte read at a field boundary.
func readFullAfterHeader(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	if err == io.EOF {
		return n, io.ErrUnexpectedEOF
	}
	return n, err
}
