package memtable

import (
	"testing"

	"github.com/box-hippopotamus/box-kv/internal/kv"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	m := New()
	m.Put(1, []byte("k"), []byte("v"))
	e, ok := m.Get([]byte("k"))
	require.True(t, ok)
	require.Equal(t, kv.TagNormal, e.Value.Tag)
	require.Equal(t, []byte("v"), e.Value.Data)
	require.Equal(t, uint64(1), e.Seq)
}

func TestDeleteYieldsTombstoneNotAbsence(t *testing.T) {
	m := New()
	m.Delete(1, []byte("never-existed"))
	e, ok := m.Get([]byte("never-existed"))
	require.True(t, ok)
	require.True(t, e.IsTombstone())
}

func TestEmptyKeyAndValueRoundTrip(t *testing.T) {
	m := New()
	m.Put(1, []byte{}, []byte{})
	e, ok := m.Get([]byte{})
	require.True(t, ok)
	require.Equal(t, []byte{}, e.Value.Data)
}

func TestOverwriteKeepsLatestOnly(t *testing.T) {
	m := New()
	m.Put(1, []byte("k"), []byte("old"))
	m.Put(2, []byte("k"), []byte("new"))
	e, ok := m.Get([]byte("k"))
	require.True(t, ok)
	require.Equal(t, uint64(2), e.Seq)
	require.Equal(t, []byte("new"), e.Value.Data)
	require.Equal(t, 1, m.Len())
}

func TestSizeAccountingExactSum(t *testing.T) {
	m := New()
	m.Put(1, []byte("abc"), []byte("defgh")) // 3 + 5 + 16 = 24
	require.Equal(t, int64(24), m.Size())

	m.Put(2, []byte("abc"), []byte("xy")) // delta: (3+2+16) - 24 = -3
	require.Equal(t, int64(21), m.Size())

	m.Delete(3, []byte("abc")) // delta: (3+0+16) - 21 = -2
	require.Equal(t, int64(19), m.Size())

	m.Put(4, []byte("z"), []byte("1")) // +18
	require.Equal(t, int64(37), m.Size())
}

func TestSizeNeverGoesNegative(t *testing.T) {
	m := New()
	m.Put(1, []byte("k"), make([]byte, 100))
	m.Put(2, []byte("k"), []byte{})
	require.GreaterOrEqual(t, m.Size(), int64(0))
}

func TestSnapshotIsKeyOrdered(t *testing.T) {
	m := New()
	m.Put(1, []byte("c"), []byte("3"))
	m.Put(2, []byte("a"), []byte("1"))
	m.Put(3, []byte("b"), []byte("2"))

	snap := m.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, []byte("a"), snap[0].Key)
	require.Equal(t, []byte("b"), snap[1].Key)
	require.Equal(t, []byte("c"), snap[2].Key)
}

func TestPutExpiringRoundTrip(t *testing.T) {
	m := New()
	m.PutExpiring(1, []byte("k"), []byte("v"), 1700000000)
	e, ok := m.Get([]byte("k"))
	require.True(t, ok)
	require.Equal(t, kv.TagExpiring, e.Value.Tag)
	require.Equal(t, int64(1700000000), e.Value.ExpireAt)
}

func TestGetMissingKey(t *testing.T) {
	m := New()
	_, ok := m.Get([]byte("nope"))
	require.False(t, ok)
}
