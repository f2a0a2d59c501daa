package sstable

import (
	"bufio"
	"fmt"
	"os"

	"github.com/box-hippopotamus/box-kv/internal/kv"
)

// FileName returns the canonical on-disk name for an SSTable, mirroring
// the WAL's naming convention.
func FileName(fileID uint64) string {
	return fmt.Sprintf("%09d.sst", fileID)
}

// Write builds a complete SSTable file from a key-ordered sequence of
// entries (a memtable snapshot) and writes it to path. entries must
// already be sorted ascending by key, each key appearing once.
func Write(path string, entries []kv.Entry) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("sstable: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriterSize(f, minWriteBuffer)

	var offset uint64
	var indexBuf []byte
	var blockBuf []byte
	var keys [][]byte

	flushBlock := func() error {
		if len(blockBuf) == 0 {
			return nil
		}
		sealed := sealDataBlock(blockBuf)
		n, err := bw.Write(sealed)
		if err != nil {
			return fmt.Errorf("sstable: write data block: %w", err)
		}
		handle := BlockHandle{Offset: offset, Size: uint64(n)}
		offset += uint64(n)
		indexBuf = appendIndexEntry(indexBuf, indexEntry{lastKey: keys[len(keys)-1], handle: handle})
		blockBuf = blockBuf[:0]
		return nil
	}

	for _, e := range entries {
		keys = append(keys, e.Key)
		blockBuf = appendDataEntry(blockBuf, e)
		if len(blockBuf) >= targetBlockSize {
			if err := flushBlock(); err != nil {
				return err
			}
		}
	}
	if err := flushBlock(); err != nil {
		return err
	}

	filter := buildBloomFilter(keys)
	filterBytes, err := encodeBloomFilter(filter)
	if err != nil {
		return err
	}
	bloomHandle := BlockHandle{Offset: offset, Size: uint64(len(filterBytes))}
	if _, err := bw.Write(filterBytes); err != nil {
		return fmt.Errorf("sstable: write bloom block: %w", err)
	}
	offset += uint64(len(filterBytes))

	indexHandle := BlockHandle{Offset: offset, Size: uint64(len(indexBuf))}
	if _, err := bw.Write(indexBuf); err != nil {
		return fmt.Errorf("sstable: write index block: %w", err)
	}
	offset += uint64(len(indexBuf))

	var metaBuf []byte
	metaBuf = appendMetaIndexEntry(metaBuf, bloomMetaKey, bloomHandle)
	metaIndexHandle := BlockHandle{Offset: offset, Size: uint64(len(metaBuf))}
	if _, err := bw.Write(metaBuf); err != nil {
		return fmt.Errorf("sstable: write meta index block: %w", err)
	}

	footer := NewFooter(metaIndexHandle, indexHandle)
	var footerBuf [FooterSize]byte
	footer.Encode(&footerBuf)
	if _, err := bw.Write(footerBuf[:]); err != nil {
		return fmt.Errorf("sstable: write footer: %w", err)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("sstable: flush: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sstable: fsync: %w", err)
	}
	return nil
}

// minWriteBuffer matches the WAL writer's buffering in front of the file.
const minWriteBuffer = 4 << 10
