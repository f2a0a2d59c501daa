package wal

import (
	"os"
	"testing"

	"github.com/box-hippopotamus/box-kv/internal/kv"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeSegment(t *testing.T, dir string, fileID uint64, recs []Record) {
	t.Helper()
	w, err := NewWriter(dir, fileID)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Append(r))
	}
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
}

func TestRecoverAcrossSegmentsFiltersByMinSeq(t *testing.T) {
	dir := t.TempDir()
	writeSegment(t, dir, 1, []Record{
		{Seq: 1, Key: []byte("a"), Value: kv.NewNormal([]byte("1"))},
		{Seq: 2, Key: []byte("b"), Value: kv.NewNormal([]byte("2"))},
	})
	writeSegment(t, dir, 2, []Record{
		{Seq: 3, Key: []byte("c"), Value: kv.NewNormal([]byte("3"))},
		{Seq: 4, Key: []byte("d"), Value: kv.NewTombstone()},
	})

	entries, maxSeq, err := Recover(dir, 2, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, uint64(4), maxSeq)
	require.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		require.LessOrEqual(t, entries[i-1].Seq, entries[i].Seq)
	}
}

func TestRecoverEmptyDirReturnsZeroSentinel(t *testing.T) {
	dir := t.TempDir()
	entries, maxSeq, err := Recover(dir, 0, zap.NewNop())
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Equal(t, uint64(0), maxSeq)
}

func TestRecoverIgnoresNonCanonicalStems(t *testing.T) {
	dir := t.TempDir()
	writeSegment(t, dir, 1, []Record{{Seq: 1, Key: []byte("a"), Value: kv.NewNormal([]byte("1"))}})
	require.NoError(t, os.WriteFile(dir+"/not-a-segment.wal", []byte("junk"), 0o644))
	require.NoError(t, os.WriteFile(dir+"/1.wal", []byte("junk"), 0o644))

	entries, _, err := Recover(dir, 0, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRecoverStopsAtTornTailAndContinues(t *testing.T) {
	dir := t.TempDir()
	writeSegment(t, dir, 1, []Record{{Seq: 1, Key: []byte("a"), Value: kv.NewNormal([]byte("1"))}})

	w, err := NewWriter(dir, 2)
	require.NoError(t, err)
	good := Record{Seq: 2, Key: []byte("b"), Value: kv.NewNormal([]byte("2"))}
	require.NoError(t, w.Append(good))
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	path := dir + "/" + FileName(2)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-4], 0o644))

	writeSegment(t, dir, 3, []Record{{Seq: 3, Key: []byte("c"), Value: kv.NewNormal([]byte("3"))}})

	entries, maxSeq, err := Recover(dir, 0, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, uint64(3), maxSeq)
	require.Len(t, entries, 2)
}
