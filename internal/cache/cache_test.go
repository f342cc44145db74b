package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chtl/internal/diag"
)

func sampleRecords() []diag.Record {
	return []diag.Record{
		{Kind: diag.KindError, Message: "missing semicolon", Line: 10, Column: 5, Code: "E1",
			Related: []diag.Record{{Kind: diag.KindInfo, Message: "block opened here", Line: 8, Column: 1}}},
		{Kind: diag.KindWarning, Message: "generic"},
	}
}

func TestKeyOfSeparatesParts(t *testing.T) {
	assert.NotEqual(t, KeyOf("ab", "c"), KeyOf("a", "bc"))
	assert.Equal(t, KeyOf("x", "y"), KeyOf("x", "y"))
	assert.False(t, KeyOf().IsZero())
	assert.Len(t, KeyOf("x").String(), 64)
}

func TestDiskCacheRoundTrip(t *testing.T) {
	c, err := OpenDiskCacheDir(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	key := KeyOf("compiler", "content")

	var miss Entry
	ok, err := c.Get(key, &miss)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(key, &Entry{Success: false, ExitCode: 1, Records: sampleRecords()}))

	var got Entry
	ok, err = c.Get(key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleRecords(), got.Records)
	assert.Equal(t, 1, got.ExitCode)
	assert.NotZero(t, got.Created)

	entries, err := os.ReadDir(filepath.Join(c.Dir(), "results"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestDiskCacheDropAll(t *testing.T) {
	c, err := OpenDiskCacheDir(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	key := KeyOf("k")
	require.NoError(t, c.Put(key, &Entry{Success: true}))

	require.NoError(t, c.DropAll())

	var got Entry
	ok, err := c.Get(key, &got)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, c.Put(key, &Entry{Success: true}))
}

func TestDiskCacheCorruptEntry(t *testing.T) {
	c, err := OpenDiskCacheDir(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	key := KeyOf("k")
	p := c.pathFor(key)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte{0xc1, 0xc1}, 0o644))

	var got Entry
	ok, err := c.Get(key, &got)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestStoreEvictsOldest(t *testing.T) {
	s := NewStore(2, nil)
	require.NoError(t, s.Put(KeyOf("a"), Entry{Records: sampleRecords()[:1]}))
	require.NoError(t, s.Put(KeyOf("b"), Entry{}))
	require.NoError(t, s.Put(KeyOf("c"), Entry{}))

	assert.Equal(t, 2, s.Len())
	_, ok, err := s.Get(KeyOf("a"))
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, _ = s.Get(KeyOf("c"))
	assert.True(t, ok)
}

func TestStoreFallsBackToDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	disk, err := OpenDiskCacheDir(dir)
	require.NoError(t, err)
	key := KeyOf("page")
	require.NoError(t, NewStore(4, disk).Put(key, Entry{Records: sampleRecords()}))

	fresh := NewStore(4, disk)
	records, ok, err := fresh.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleRecords(), records)
	assert.Equal(t, 1, fresh.Len())
}

func TestNilStoreIsDisabled(t *testing.T) {
	var s *Store
	_, ok, err := s.Get(KeyOf("x"))
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, s.Put(KeyOf("x"), Entry{}))
}
