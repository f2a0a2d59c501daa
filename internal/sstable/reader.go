package sstable

import (
	"errors"
	"fmt"
	"os"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/box-hippopotamus/box-kv/internal/kv"
)

// ErrNotFound is returned by Get when key appears in no data block of this
// table at all. A key whose only record here is a tombstone is found, not
// ErrNotFound -- Get returns that entry unchanged, tag and all, leaving the
// tombstone-to-absence translation to the engine layer.
var ErrNotFound = errors.New("sstable: key not found")

// Reader provides point lookups against a single SSTable file. It keeps
// the file open and loads the index and bloom filter eagerly on Open.
type Reader struct {
	f      *os.File
	index  []indexEntry
	filter *bloom.BloomFilter
}

// Open opens the SSTable at path and loads its footer, index block, and
// bloom filter into memory.
func Open(path string) (r *Reader, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sstable: open %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			f.Close()
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("sstable: stat %s: %w", path, err)
	}
	if info.Size() < FooterSize {
		return nil, fmt.Errorf("sstable: %s too small to contain a footer", path)
	}

	var footerBuf [FooterSize]byte
	if _, err := f.ReadAt(footerBuf[:], info.Size()-FooterSize); err != nil {
		return nil, fmt.Errorf("sstable: read footer: %w", err)
	}
	footer, err := DecodeFooter(footerBuf[:])
	if err != nil {
		return nil, err
	}
	if !footer.ValidateMagic() {
		return nil, fmt.Errorf("sstable: %s: bad magic", path)
	}

	indexRaw := make([]byte, footer.IndexHandle.Size)
	if _, err := f.ReadAt(indexRaw, int64(footer.IndexHandle.Offset)); err != nil {
		return nil, fmt.Errorf("sstable: read index block: %w", err)
	}
	index, err := decodeIndexBlock(indexRaw)
	if err != nil {
		return nil, err
	}

	metaRaw := make([]byte, footer.MetaIndexHandle.Size)
	if _, err := f.ReadAt(metaRaw, int64(footer.MetaIndexHandle.Offset)); err != nil {
		return nil, fmt.Errorf("sstable: read meta index block: %w", err)
	}
	meta, err := decodeMetaIndexBlock(metaRaw)
	if err != nil {
		return nil, err
	}

	var filter *bloom.BloomFilter
	if handle, ok := meta[bloomMetaKey]; ok {
		filterRaw := make([]byte, handle.Size)
		if _, err := f.ReadAt(filterRaw, int64(handle.Offset)); err != nil {
			return nil, fmt.Errorf("sstable: read bloom block: %w", err)
		}
		filter, err = decodeBloomFilter(filterRaw)
		if err != nil {
			return nil, err
		}
	}

	return &Reader{f: f, index: index, filter: filter}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}

// MayContain reports whether key could possibly be present, consulting the
// bloom filter. A false result is conclusive; a true result requires a
// data block read to confirm.
func (r *Reader) MayContain(key []byte) bool {
	if r.filter == nil {
		return true
	}
	return r.filter.Test(key)
}

// Get returns the entry stored for key, which may be a tombstone or an
// expiring value -- the caller interprets the variant, matching the
// memtable's Get contract.
func (r *Reader) Get(key []byte) (kv.Entry, error) {
	if !r.MayContain(key) {
		return kv.Entry{}, ErrNotFound
	}

	pos, ok := findDataBlock(r.index, key)
	if !ok {
		return kv.Entry{}, ErrNotFound
	}
	handle := r.index[pos].handle

	sealed := make([]byte, handle.Size)
	if _, err := r.f.ReadAt(sealed, int64(handle.Offset)); err != nil {
		return kv.Entry{}, fmt.Errorf("sstable: read data block: %w", err)
	}
	raw, err := openDataBlock(sealed)
	if err != nil {
		return kv.Entry{}, err
	}

	off := 0
	for off < len(raw) {
		e, n, err := readDataEntry(raw[off:])
		if err != nil {
			return kv.Entry{}, err
		}
		off += n
		if string(e.Key) == string(key) {
			return e, nil
		}
	}
	return kv.Entry{}, ErrNotFound
}
