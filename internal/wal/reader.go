package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Reader streams records out of a single WAL segment file, one at a time,
// in append order. It never seeks or loads the file as a whole: only the
// bytes of the record currently being parsed are held in memory.
type Reader struct {
	f  *os.File
	br *bufio.Reader
}

// OpenReader opens the WAL segment for fileID inside dir for sequential
// reading.
func OpenReader(dir string, fileID uint64) (*Reader, error) {
	path := filepath.Join(dir, FileName(fileID))
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	return &Reader{f: f, br: bufio.NewReaderSize(f, minBufferSize)}, nil
}

// Next returns the next record in the segment. It returns io.EOF when the
// segment ends cleanly on a record boundary. Any other error -- including
// io.ErrUnexpectedEOF from a torn final record -- is returned as-is so the
// caller (the recovery scan) can distinguish "stop reading this file" from
// "this file is corrupt".
func (r *Reader) Next() (Record, error) {
	return readRecord(r.br)
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}

// IsTornTail reports whether err signals an incomplete final record rather
// than a structural corruption: a short read partway through a record's
// header or payload, stopping before a full record could be assembled.
func IsTornTail(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF)
}
