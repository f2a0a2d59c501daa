package wal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// minBufferSize is the smallest buffered-writer capacity in front of the
// segment file; small enough to keep memory bounded, large enough that a
// typical record doesn't force a syscall on every Append.
const minBufferSize = 4 << 10

// FileName returns the canonical on-disk name for a WAL segment, a 9-digit
// zero-padded file_id followed by the ".wal" extension.
func FileName(fileID uint64) string {
	return fmt.Sprintf("%09d.wal", fileID)
}

// Writer appends records to a single WAL segment file. It owns a buffered
// writer in front of the file handle; callers must call Sync to make
// appended records durable and Close when done with the segment.
type Writer struct {
	f    *os.File
	bw   *bufio.Writer
	buf  []byte // scratch buffer reused across Append calls
	size int64  // bytes written to this segment so far
}

// NewWriter creates (or truncates, if the name is somehow already in use)
// the WAL segment for fileID inside dir, ready for a fresh sequence of
// Append calls. A segment name is only ever handed out once by the storage
// provider, so truncation here is a safety net, not the expected path.
func NewWriter(dir string, fileID uint64) (*Writer, error) {
	path := filepath.Join(dir, FileName(fileID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("wal: stat %s: %w", path, err)
	}
	return &Writer{
		f:    f,
		bw:   bufio.NewWriterSize(f, minBufferSize),
		size: info.Size(),
	}, nil
}

// Append serializes r and writes it to the buffered writer. The record is
// not guaranteed durable until Sync is called.
func (w *Writer) Append(r Record) error {
	w.buf = encode(w.buf[:0], r)
	n, err := w.bw.Write(w.buf)
	w.size += int64(n)
	if err != nil {
		return fmt.Errorf("wal: append: %w", err)
	}
	return nil
}

// Sync flushes the buffered writer and fsyncs the underlying file. Both
// steps must succeed for a record to be considered durable; a failure here
// leaves the segment's durability state unknown to the caller, who should
// treat the writer as unusable and open a fresh segment.
func (w *Writer) Sync() error {
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("wal: fsync: %w", err)
	}
	return nil
}

// Size returns the number of bytes appended to this segment so far
// (including any not yet flushed or synced).
func (w *Writer) Size() int64 {
	return w.size
}

// Close flushes and closes the segment file. It does not fsync; call Sync
// first if durability is required.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("wal: flush on close: %w", err)
	}
	return w.f.Close()
}
