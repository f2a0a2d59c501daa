package wal

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"testing"

	"github.com/box-hippopotamus/box-kv/internal/kv"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Record{
		{Seq: 1, Key: []byte("a"), Value: kv.NewNormal([]byte("hello"))},
		{Seq: 2, Key: []byte("b"), Value: kv.NewTombstone()},
		{Seq: 3, Key: []byte("c"), Value: kv.NewExpiring([]byte("ttl"), 1700000000)},
		{Seq: 4, Key: []byte{}, Value: kv.NewNormal(nil)},
	}
	for _, rec := range cases {
		buf := encode(nil, rec)
		got, err := readRecord(bytes.NewReader(buf))
		require.NoError(t, err)
		require.Equal(t, rec.Seq, got.Seq)
		require.True(t, bytes.Equal(rec.Key, got.Key))
		require.Equal(t, rec.Value.Tag, got.Value.Tag)
		require.True(t, bytes.Equal(rec.Value.Data, got.Value.Data))
		require.Equal(t, rec.Value.ExpireAt, got.Value.ExpireAt)
	}
}

func TestReadRecordCleanEOF(t *testing.T) {
	_, err := readRecord(bytes.NewReader(nil))
	require.ErrorIs(t, err, io.EOF)
}

func TestReadRecordCrcMismatch(t *testing.T) {
	rec := Record{Seq: 1, Key: []byte("k"), Value: kv.NewNormal([]byte("v"))}
	buf := encode(nil, rec)
	buf[0] ^= 0xff // corrupt the stored CRC
	_, err := readRecord(bytes.NewReader(buf))
	var crcErr *ErrCrcMismatch
	require.ErrorAs(t, err, &crcErr)
}

func TestReadRecordInvalidTag(t *testing.T) {
	rec := Record{Seq: 1, Key: []byte("k"), Value: kv.NewNormal([]byte("v"))}
	buf := encode(nil, rec)
	buf = recomputeWithTag(buf, 99)
	_, err := readRecord(bytes.NewReader(buf))
	var tagErr *ErrInvalidRecordType
	require.ErrorAs(t, err, &tagErr)
}

func TestReadRecordTornTail(t *testing.T) {
	rec := Record{Seq: 1, Key: []byte("key"), Value: kv.NewNormal([]byte("value"))}
	buf := encode(nil, rec)
	truncated := buf[:len(buf)-3]
	_, err := readRecord(bytes.NewReader(truncated))
	require.True(t, IsTornTail(err))
}

func TestReadRecordTornTailAtFieldBoundary(t *testing.T) {
	rec := Record{Seq: 1, Key: []byte("key"), Value: kv.NewNormal([]byte("value"))}
	buf := encode(nil, rec)
	// Cut exactly after the header: the next read (key_len) sees zero bytes
	// available, which must still count as a torn tail rather than a clean
	// end of file, since a full record was promised by the header.
	truncated := buf[:headerSize]
	_, err := readRecord(bytes.NewReader(truncated))
	require.True(t, IsTornTail(err))
	require.False(t, err == io.EOF)
}

// recomputeWithTag rewrites the tag byte of an already-encoded record and
// recomputes its CRC so the corruption under test is isolated to the
// "unknown tag" path rather than also tripping the CRC check.
func recomputeWithTag(buf []byte, tag byte) []byte {
	const tagOffset = crcSize + payloadLenSize
	out := append([]byte(nil), buf...)
	out[tagOffset] = tag

	crc := crc32.ChecksumIEEE(out[crcSize:])
	binary.BigEndian.PutUint32(out[0:crcSize], crc)
	return out
}
