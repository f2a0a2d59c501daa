package wal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/box-hippopotamus/box-kv/internal/kv"
	"go.uber.org/zap"
)

// segmentIDWidth is the zero-padded digit width of the canonical file_id
// stem, "{file_id:09}.wal". Stems of any other width are non-canonical and
// ignored: accepting "1.wal" alongside "000000001.wal" would let two
// different byte-strings name the same logical file.
const segmentIDWidth = 9

// segmentID extracts the file_id from a directory entry's name, returning
// ok=false if the name does not match the canonical "{9 digits}.wal" stem.
func segmentID(name string) (uint64, bool) {
	stem, ok := strings.CutSuffix(name, ".wal")
	if !ok || len(stem) != segmentIDWidth {
		return 0, false
	}
	for _, r := range stem {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseUint(stem, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ListSegments returns the file_ids of every WAL segment in dir, sorted
// ascending.
func ListSegments(dir string) ([]uint64, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("wal: list segments: %w", err)
	}
	var ids []uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		if id, ok := segmentID(e.Name()); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Recover replays every WAL segment in dir whose entries carry seq >=
// minSeq. It returns the surviving entries sorted by seq ascending, and the
// highest seq observed (0 if none). A torn tail in one segment stops that
// segment's replay and moves on to the next rather than aborting recovery
// entirely, since a crash can only ever tear the last record of the last
// segment being written.
func Recover(dir string, minSeq uint64, log *zap.Logger) ([]kv.Entry, uint64, error) {
	ids, err := ListSegments(dir)
	if err != nil {
		return nil, 0, err
	}

	var entries []kv.Entry
	var maxSeq uint64

	for _, id := range ids {
		r, err := OpenReader(dir, id)
		if err != nil {
			return nil, 0, err
		}
		err = func() error {
			defer r.Close()
			for {
				rec, err := r.Next()
				if err != nil {
					if err == io.EOF {
						return nil
					}
					if IsTornTail(err) {
						if log != nil {
							log.Warn("wal: torn tail, stopping segment",
								zap.String("dir", dir), zap.Uint64("file_id", id))
						}
						return nil
					}
					return fmt.Errorf("wal: recover segment %s: %w", FileName(id), err)
				}
				if rec.Seq >= minSeq {
					if rec.Seq > maxSeq {
						maxSeq = rec.Seq
					}
					entries = append(entries, rec.Entry())
				}
			}
		}()
		if err != nil {
			return nil, 0, err
		}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries, maxSeq, nil
}

// Delete removes the WAL segment for fileID from dir. It is called only
// after the corresponding memtable snapshot has been written out as an
// SSTable, so nothing in this segment is needed for recovery anymore.
func Delete(dir string, fileID uint64) error {
	path := filepath.Join(dir, FileName(fileID))
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("wal: delete %s: %w", path, err)
	}
	return nil
}
