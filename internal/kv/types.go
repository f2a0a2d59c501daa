// Package kv holds the types shared by the WAL, memtable, and SSTable
// layers: the value-variant tagged union, the versioned Entry, and the
// ordering relation that ties them together under MVCC.
package kv

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ValueTag identifies which variant a Value holds; the numeric values are
// part of the on-disk/on-log encoding and must not change.
type ValueTag uint8

const (
	TagNormal    ValueTag = 0
	TagTombstone ValueTag = 1
	TagExpiring  ValueTag = 2
)

func (t ValueTag) String() string {
	switch t {
	case TagNormal:
		return "Normal"
	case TagTombstone:
		return "Tombstone"
	case TagExpiring:
		return "Expiring"
	default:
		return fmt.Sprintf("ValueTag(%d)", uint8(t))
	}
}

// Value is the tagged union of the three value variants: Normal, Tombstone,
// and Expiring. ExpireAt is only meaningful when Tag == TagExpiring.
type Value struct {
	Tag      ValueTag
	Data     []byte
	ExpireAt int64 // unix seconds, only valid when Tag == TagExpiring
}

// NewNormal builds a Normal value.
func NewNormal(data []byte) Value {
	return Value{Tag: TagNormal, Data: data}
}

// NewTombstone builds a Tombstone value.
func NewTombstone() Value {
	return Value{Tag: TagTombstone}
}

// NewExpiring builds an Expiring value with the given expire-at unix second.
func NewExpiring(data []byte, expireAt int64) Value {
	return Value{Tag: TagExpiring, Data: data, ExpireAt: expireAt}
}

// IsTombstone reports whether this value is a deletion marker.
func (v Value) IsTombstone() bool {
	return v.Tag == TagTombstone
}

// DataLen returns the number of bytes of user data (0 for a tombstone).
func (v Value) DataLen() int {
	return len(v.Data)
}

// MetaLen returns the number of bytes of variant-specific metadata: 0 for
// Normal/Tombstone, 8 for Expiring (the big-endian expire_at field).
func (v Value) MetaLen() int {
	if v.Tag == TagExpiring {
		return 8
	}
	return 0
}

// SerializedLen returns DataLen() + MetaLen(), the on-disk/on-log payload
// size contributed by the value alone (excluding the key and any framing).
func (v Value) SerializedLen() int {
	return v.DataLen() + v.MetaLen()
}

// EncodeValueSection writes the value-section bytes (tag-specific, no
// length prefix) used by the WAL payload and the SSTable data block: empty
// for Tombstone, raw bytes for Normal, and expire_at||data for Expiring.
func (v Value) EncodeValueSection(dst []byte) []byte {
	switch v.Tag {
	case TagNormal:
		return append(dst, v.Data...)
	case TagTombstone:
		return dst
	case TagExpiring:
		var expireBuf [8]byte
		binary.BigEndian.PutUint64(expireBuf[:], uint64(v.ExpireAt))
		dst = append(dst, expireBuf[:]...)
		return append(dst, v.Data...)
	default:
		panic(fmt.Sprintf("kv: unknown value tag %d", v.Tag))
	}
}

// DecodeValueSection parses a value-section according to tag. section must
// already be sliced to exactly ValueSectionLen bytes.
func DecodeValueSection(tag ValueTag, section []byte) (Value, error) {
	switch tag {
	case TagNormal:
		data := make([]byte, len(section))
		copy(data, section)
		return NewNormal(data), nil
	case TagTombstone:
		if len(section) != 0 {
			return Value{}, fmt.Errorf("kv: tombstone value section must be empty, got %d bytes", len(section))
		}
		return NewTombstone(), nil
	case TagExpiring:
		if len(section) < 8 {
			return Value{}, fmt.Errorf("kv: expiring value section too short: %d bytes", len(section))
		}
		expireAt := int64(binary.BigEndian.Uint64(section[:8]))
		data := make([]byte, len(section)-8)
		copy(data, section[8:])
		return NewExpiring(data, expireAt), nil
	default:
		return Value{}, fmt.Errorf("kv: invalid record type: %d", uint8(tag))
	}
}

// Entry is the versioned unit stored by the memtable and flushed to
// SSTables: a key, its value variant, and the sequence number that stamped
// the mutation.
type Entry struct {
	Key   []byte
	Value Value
	Seq   uint64
}

// IsTombstone reports whether the entry's value is a deletion marker.
func (e Entry) IsTombstone() bool {
	return e.Value.IsTombstone()
}

// Less implements the total order over entries: key ascending, then
// sequence number descending. Under this order the first match for a key
// during a forward scan is always the newest version.
func Less(a, b Entry) bool {
	if c := bytes.Compare(a.Key, b.Key); c != 0 {
		return c < 0
	}
	return a.Seq > b.Seq
}

// Equal follows the same projection as Less: two entries are equal iff
// their (key, seq) pairs agree. Value payload is not part of identity,
// because seq is globally unique per mutation.
func Equal(a, b Entry) bool {
	return bytes.Equal(a.Key, b.Key) && a.Seq == b.Seq
}
