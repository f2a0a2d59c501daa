// Package memtable implements the ordered, in-memory mutation buffer sitting
// in front of SSTable flushes: a key-ordered map of the latest version per
// key, with approximate size accounting and a single reader-writer lock.
package memtable

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/box-hippopotamus/box-kv/internal/kv"
	"github.com/google/btree"
)

// perEntryOverhead is the fixed accounting overhead per entry: seq (8
// bytes) plus a reserved 8-byte field. It is a constant in the size count
// only; item stores seq but no reserved field.
const perEntryOverhead = 16

// item is the btree element: ordered by Key only, carrying the entry's
// current value and seq.
type item struct {
	key   []byte
	value kv.Value
	seq   uint64
}

func (a *item) Less(b btree.Item) bool {
	return bytes.Compare(a.key, b.(*item).key) < 0
}

func (it *item) contribution() int64 {
	return int64(len(it.key)) + int64(it.value.SerializedLen()) + perEntryOverhead
}

// Memtable is the ordered, in-memory mutation buffer. The zero value is not
// usable; construct with New.
type Memtable struct {
	mu   sync.RWMutex
	tree *btree.BTree
	size atomic.Int64
}

// New constructs an empty memtable backed by a B-Tree of fixed degree 32.
func New() *Memtable {
	return &Memtable{tree: btree.New(32)}
}

// Put writes or updates a Normal entry for key at sequence seq.
func (m *Memtable) Put(seq uint64, key, value []byte) {
	m.upsert(seq, key, kv.NewNormal(value))
}

// Delete writes or updates a Tombstone entry for key at sequence seq.
func (m *Memtable) Delete(seq uint64, key []byte) {
	m.upsert(seq, key, kv.NewTombstone())
}

// PutExpiring writes or updates an Expiring entry for key at sequence seq.
func (m *Memtable) PutExpiring(seq uint64, key, value []byte, expireAt int64) {
	m.upsert(seq, key, kv.NewExpiring(value, expireAt))
}

func (m *Memtable) upsert(seq uint64, key []byte, value kv.Value) {
	keyCopy := append([]byte(nil), key...)
	next := &item{key: keyCopy, value: value, seq: seq}

	m.mu.Lock()
	defer m.mu.Unlock()

	var delta int64
	if old := m.tree.ReplaceOrInsert(next); old != nil {
		delta = next.contribution() - old.(*item).contribution()
	} else {
		delta = next.contribution()
	}
	m.addSize(delta)
}

// addSize adjusts the atomic size counter by delta, saturating at zero
// rather than going negative. A negative running total would otherwise be
// possible here only through an accounting bug, and zero is the honest
// answer for "nothing in the memtable".
func (m *Memtable) addSize(delta int64) {
	for {
		cur := m.size.Load()
		next := cur + delta
		if next < 0 {
			next = 0
		}
		if m.size.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Get returns the stored entry for key, unchanged -- it may be a
// tombstone; the caller is responsible for interpreting that. The second
// return value is false if the key has never been written to this
// memtable.
func (m *Memtable) Get(key []byte) (kv.Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := m.tree.Get(&item{key: key})
	if found == nil {
		return kv.Entry{}, false
	}
	it := found.(*item)
	return kv.Entry{Key: append([]byte(nil), it.key...), Value: it.value, Seq: it.seq}, true
}

// Size returns the approximate current memory accounting. It is lock-free
// and may observe a value slightly stale relative to the ordered map.
func (m *Memtable) Size() int64 {
	return m.size.Load()
}

// Snapshot returns a consistent, key-ordered clone of every entry,
// suitable for an SSTable flush or a range scan.
func (m *Memtable) Snapshot() []kv.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]kv.Entry, 0, m.tree.Len())
	m.tree.Ascend(func(i btree.Item) bool {
		it := i.(*item)
		entries = append(entries, kv.Entry{
			Key:   append([]byte(nil), it.key...),
			Value: it.value,
			Seq:   it.seq,
		})
		return true
	})
	return entries
}

// Len returns the number of distinct keys currently held.
func (m *Memtable) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}
