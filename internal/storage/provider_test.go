package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenCreatesDirAndAllocatesFromZero(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	p, err := Open(Config{DataDir: dir, MemtableSizeMB: 16})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	require.Equal(t, uint64(0), p.NextFileID())
	require.Equal(t, uint64(1), p.NextFileID())
}

func TestOpenSeedsCounterPastExistingSegments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000000003.wal"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000000007.sst"), nil, 0o644))

	p, err := Open(Config{DataDir: dir, MemtableSizeMB: 16})
	require.NoError(t, err)
	require.Equal(t, uint64(8), p.NextFileID())
}

func TestListIDsIgnoresNonCanonicalStems(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000000001.wal"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.wal"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "not-a-number.wal"), nil, 0o644))

	p, err := Open(Config{DataDir: dir, MemtableSizeMB: 16})
	require.NoError(t, err)

	ids, err := p.WALSegments()
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, ids)
}

func TestConfigValidateRejectsOutOfRangeMemtableSize(t *testing.T) {
	require.Error(t, Config{DataDir: "x", MemtableSizeMB: 0}.Validate())
	require.Error(t, Config{DataDir: "x", MemtableSizeMB: 1025}.Validate())
	require.NoError(t, Config{DataDir: "x", MemtableSizeMB: 1}.Validate())
}
