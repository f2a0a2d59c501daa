// Package engine wires the WAL, memtable, and SSTable layers into a single
// store: it recovers on open, serializes writes through WAL append and
// memtable apply, and flushes the memtable to an SSTable once it grows past
// the configured threshold. Compaction and multi-level SSTable management
// are not implemented; flushed tables accumulate and are all consulted on
// every read.
package engine

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/box-hippopotamus/box-kv/internal/kv"
	"github.com/box-hippopotamus/box-kv/internal/memtable"
	"github.com/box-hippopotamus/box-kv/internal/sstable"
	"github.com/box-hippopotamus/box-kv/internal/storage"
	"github.com/box-hippopotamus/box-kv/internal/wal"
	"go.uber.org/zap"
)

// sstableHandle is a flushed table kept open for point lookups, newest
// first.
type sstableHandle struct {
	fileID uint64
	reader *sstable.Reader
}

// Engine is the thin orchestrator wiring the storage layers together. It
// is safe for concurrent use.
type Engine struct {
	log *zap.Logger

	provider       *storage.Provider
	memtableSizeMB int

	mu        sync.Mutex // guards seq allocation, WAL writer, memtable swap, sstables list
	seq       uint64     // next sequence number to allocate
	walFileID uint64
	walWriter  *wal.Writer
	mt         *memtable.Memtable
	sstables   []sstableHandle // newest last; Get scans in reverse
}

// Open recovers every WAL segment present in the data directory with a
// floor of 0, replays them into a fresh memtable, opens every existing
// SSTable for reads, and starts a new WAL segment for subsequent writes.
// No flushed-sequence floor is recorded: a segment is kept out of recovery
// only by being deleted at flush time, and one whose deletion failed is
// replayed again.
func Open(cfg storage.Config, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	p, err := storage.Open(cfg)
	if err != nil {
		return nil, err
	}

	entries, maxSeq, err := wal.Recover(p.DataDir(), 0, log)
	if err != nil {
		return nil, fmt.Errorf("engine: recover wal: %w", err)
	}

	mt := memtable.New()
	for _, e := range entries {
		applyToMemtable(mt, e)
	}

	sstIDs, err := p.SSTables()
	if err != nil {
		return nil, err
	}
	var handles []sstableHandle
	for _, id := range sstIDs {
		path := filepath.Join(p.DataDir(), sstable.FileName(id))
		r, err := sstable.Open(path)
		if err != nil {
			return nil, fmt.Errorf("engine: open sstable %d: %w", id, err)
		}
		handles = append(handles, sstableHandle{fileID: id, reader: r})
	}

	walFileID := p.NextFileID()
	w, err := wal.NewWriter(p.DataDir(), walFileID)
	if err != nil {
		return nil, fmt.Errorf("engine: open new wal segment: %w", err)
	}

	log.Info("engine: opened",
		zap.String("data_dir", p.DataDir()),
		zap.Uint64("recovered_max_seq", maxSeq),
		zap.Int("recovered_entries", len(entries)),
		zap.Int("sstables", len(handles)),
		zap.Uint64("wal_file_id", walFileID))

	return &Engine{
		log:            log,
		provider:       p,
		memtableSizeMB: cfg.MemtableSizeMB,
		seq:            maxSeq + 1,
		walFileID:      walFileID,
		walWriter:      w,
		mt:             mt,
		sstables:       handles,
	}, nil
}

func applyToMemtable(mt *memtable.Memtable, e kv.Entry) {
	switch e.Value.Tag {
	case kv.TagNormal:
		mt.Put(e.Seq, e.Key, e.Value.Data)
	case kv.TagTombstone:
		mt.Delete(e.Seq, e.Key)
	case kv.TagExpiring:
		mt.PutExpiring(e.Seq, e.Key, e.Value.Data, e.Value.ExpireAt)
	}
}

// Put writes a Normal value for key, durably, before returning.
func (e *Engine) Put(key, value []byte) error {
	return e.write(kv.NewNormal(value), key)
}

// Delete writes a Tombstone for key, durably, before returning.
func (e *Engine) Delete(key []byte) error {
	return e.write(kv.NewTombstone(), key)
}

// PutExpiring writes an Expiring value for key, durably, before returning.
func (e *Engine) PutExpiring(key, value []byte, expireAt int64) error {
	return e.write(kv.NewExpiring(value, expireAt), key)
}

// write allocates a sequence number, appends and syncs the WAL record,
// applies the mutation to the memtable, and triggers a flush if the
// memtable has grown past the configured threshold. Seq allocation,
// append, and memtable apply happen under the same mutex so that sequence
// numbers are assigned in the same order writes become visible.
func (e *Engine) write(value kv.Value, key []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	seq := e.seq
	e.seq++

	rec := wal.Record{Seq: seq, Key: key, Value: value}
	if err := e.walWriter.Append(rec); err != nil {
		return fmt.Errorf("engine: append: %w", err)
	}
	if err := e.walWriter.Sync(); err != nil {
		return fmt.Errorf("engine: sync: %w", err)
	}

	applyToMemtable(e.mt, rec.Entry())

	if e.mt.Size() > int64(e.memtableSizeMB)<<20 {
		if err := e.flushLocked(); err != nil {
			return fmt.Errorf("engine: flush: %w", err)
		}
	}
	return nil
}

// flushLocked snapshots the current memtable to a new SSTable, opens it
// for reads, rotates to a fresh WAL segment, deletes the now-redundant old
// segment, and resets the memtable. Caller must hold e.mu.
func (e *Engine) flushLocked() error {
	snapshot := e.mt.Snapshot()
	oldWALFileID := e.walFileID

	sstFileID := e.provider.NextFileID()
	path := filepath.Join(e.provider.DataDir(), sstable.FileName(sstFileID))
	if err := sstable.Write(path, snapshot); err != nil {
		return fmt.Errorf("write sstable: %w", err)
	}
	reader, err := sstable.Open(path)
	if err != nil {
		return fmt.Errorf("reopen sstable: %w", err)
	}

	newWALFileID := e.provider.NextFileID()
	newWriter, err := wal.NewWriter(e.provider.DataDir(), newWALFileID)
	if err != nil {
		reader.Close()
		return fmt.Errorf("open next wal segment: %w", err)
	}

	if err := e.walWriter.Close(); err != nil {
		e.log.Warn("engine: close old wal segment", zap.Error(err))
	}

	e.sstables = append(e.sstables, sstableHandle{fileID: sstFileID, reader: reader})
	e.walFileID = newWALFileID
	e.walWriter = newWriter
	e.mt = memtable.New()

	if err := wal.Delete(e.provider.DataDir(), oldWALFileID); err != nil {
		e.log.Warn("engine: delete flushed wal segment", zap.Error(err), zap.Uint64("file_id", oldWALFileID))
	}

	e.log.Info("engine: flushed memtable",
		zap.Uint64("sstable_file_id", sstFileID),
		zap.Int("entries", len(snapshot)),
		zap.Uint64("new_wal_file_id", newWALFileID))
	return nil
}

// Get returns value and true if key holds a live (non-tombstone) entry,
// checking the memtable first and then SSTables newest-first. A tombstone
// is translated into "not found" here, at the engine layer only -- the
// memtable and SSTable layers both return tombstones unchanged to their
// direct callers.
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	e.mu.Lock()
	mt := e.mt
	tables := e.sstables
	e.mu.Unlock()

	if entry, ok := mt.Get(key); ok {
		if entry.IsTombstone() {
			return nil, false, nil
		}
		return entry.Value.Data, true, nil
	}

	for i := len(tables) - 1; i >= 0; i-- {
		entry, err := tables[i].reader.Get(key)
		if err == sstable.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("engine: get from sstable %d: %w", tables[i].fileID, err)
		}
		if entry.IsTombstone() {
			return nil, false, nil
		}
		return entry.Value.Data, true, nil
	}
	return nil, false, nil
}

// Flush forces an immediate flush of the current memtable, regardless of
// its size. Useful for tests and the CLI's explicit "flush" subcommand.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mt.Len() == 0 {
		return nil
	}
	return e.flushLocked()
}

// Close flushes and closes the active WAL segment and every open SSTable
// reader.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	if err := e.walWriter.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	for _, h := range e.sstables {
		if err := h.reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
