package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/webfont-splitter/internal/types"
)

type recordingMirror struct {
	mu      sync.Mutex
	entries []types.StoreEntry
	err     error
}

func (m *recordingMirror) UpsertEntry(_ context.Context, e types.StoreEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return m.err
}

func openStore(t *testing.T, dir string, opts Options) *Store {
	t.Helper()
	s, err := Open(dir, "https://cdn.example.com/fonts/", opts)
	require.NoError(t, err)
	return s
}

func TestHash_NixBase32(t *testing.T) {
	var zero Hash
	assert.Equal(t, strings.Repeat("0", 52), zero.String())

	h := HashBytes([]byte("hello"))
	s := h.String()
	assert.Len(t, s, 52)
	for _, c := range "etou" {
		assert.NotContains(t, s, string(c))
	}

	parsed, err := ParseHash(s)
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	var one Hash
	one[0] = 1
	assert.Equal(t, strings.Repeat("0", 51)+"1", one.String())
	var top Hash
	top[31] = 0x80
	assert.Equal(t, "1"+strings.Repeat("0", 51), top.String())
}

func TestParseHash_Invalid(t *testing.T) {
	_, err := ParseHash("short")
	assert.Error(t, err)
	_, err = ParseHash(strings.Repeat("e", 52))
	assert.ErrorContains(t, err, "invalid nix-base32 character")
	_, err = ParseHash("z" + strings.Repeat("0", 51))
	assert.ErrorContains(t, err, "overflows")
}

func TestPut_Idempotent(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir, Options{})
	ctx := context.Background()
	data := []byte("wOF2 pretend font bytes")

	first, err := s.Put(ctx, data)
	require.NoError(t, err)
	second, err := s.Put(ctx, data)
	require.NoError(t, err)

	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, s.UriFor(first), s.UriFor(second))
	assert.Equal(t, int64(1), s.Writes(), "file is written exactly once")
	assert.Equal(t, 1, second.RefCount)
	assert.Equal(t, first.Hash+FileExt, first.FileName)

	stored, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	other, err := s.Put(ctx, []byte("different bytes"))
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash, other.Hash)
	assert.Equal(t, int64(2), s.Writes())
}

func TestPut_ConcurrentSameBytes(t *testing.T) {
	s := openStore(t, t.TempDir(), Options{})
	data := []byte("shared subset")

	var wg sync.WaitGroup
	hashes := make([]string, 16)
	for i := range hashes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := s.Put(context.Background(), data)
			assert.NoError(t, err)
			hashes[i] = e.Hash
		}(i)
	}
	wg.Wait()

	for _, h := range hashes {
		assert.Equal(t, hashes[0], h)
	}
	assert.Equal(t, int64(1), s.Writes())
	require.Len(t, s.Entries(), 1)
	assert.Equal(t, 1, s.Entries()[0].RefCount)
}

func TestPut_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir, Options{})
	data := []byte("original")

	e, err := s.Put(context.Background(), data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(e.Path, []byte("tampered!!"), 0o644))

	_, err = s.Put(context.Background(), data)
	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)

	got, err := os.ReadFile(e.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte("tampered!!"), got, "existing entry is left untouched")
}

func TestPut_Empty(t *testing.T) {
	s := openStore(t, t.TempDir(), Options{})
	_, err := s.Put(context.Background(), nil)
	assert.ErrorContains(t, err, "empty data")
}

func TestUriFor(t *testing.T) {
	s := openStore(t, t.TempDir(), Options{})
	e := types.StoreEntry{FileName: "abc.woff2"}
	assert.Equal(t, "https://cdn.example.com/fonts/abc.woff2", s.UriFor(e))

	bare, err := Open(t.TempDir(), "", Options{})
	require.NoError(t, err)
	assert.Equal(t, "abc.woff2", bare.UriFor(e))
}

func TestRefCount_AcrossRuns(t *testing.T) {
	dir := t.TempDir()
	data := []byte("font")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for run := 1; run <= 3; run++ {
		s := openStore(t, dir, Options{Now: func() time.Time { return fixed }})
		e, err := s.Put(context.Background(), data)
		require.NoError(t, err)
		_, err = s.Put(context.Background(), data)
		require.NoError(t, err)
		assert.Equal(t, run, e.RefCount)
		assert.Equal(t, fixed, e.CreatedAt)
		require.NoError(t, s.Close())
	}

	s := openStore(t, dir, Options{})
	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].RefCount)
	assert.Equal(t, filepath.Join(dir, entries[0].FileName), entries[0].Path)
	assert.True(t, s.Has(entries[0].Hash))
}

func TestMemo_Reuse(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	key := MemoKey("source-digest", "U+41-5A", "woff2:q11:w22")
	assert.NotEqual(t, key, MemoKey("source-digest", "U+41-5A", "woff2:q4:w22"))
	assert.NotEqual(t, MemoKey("ab", "c"), MemoKey("a", "bc"))

	s := openStore(t, dir, Options{})
	_, hit, err := s.Reuse(ctx, key)
	require.NoError(t, err)
	assert.False(t, hit)

	e, err := s.Put(ctx, []byte("built"))
	require.NoError(t, err)
	s.Remember(key, e.Hash)
	require.NoError(t, s.Close())

	s = openStore(t, dir, Options{})
	reused, hit, err := s.Reuse(ctx, key)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, e.Hash, reused.Hash)
	assert.Equal(t, 2, reused.RefCount)
	assert.Zero(t, s.Writes())

	require.NoError(t, os.Remove(reused.Path))
	_, hit, err = s.Reuse(ctx, key)
	require.NoError(t, err)
	assert.False(t, hit, "missing files are rebuilt")
}

func TestMirror(t *testing.T) {
	m := &recordingMirror{}
	s := openStore(t, t.TempDir(), Options{Mirror: m})

	_, err := s.Put(context.Background(), []byte("x"))
	require.NoError(t, err)
	require.Len(t, m.entries, 1)

	m.err = errors.New("db down")
	_, err = s.Put(context.Background(), []byte("y"))
	assert.NoError(t, err, "mirror failures do not fail the put")
}

func TestClose(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir, Options{})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := os.Stat(filepath.Join(dir, "index.json"))
	assert.True(t, os.IsNotExist(err), "unmodified stores do not write an index")

	_, err = s.Put(context.Background(), []byte("late"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open("", "", Options{})
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte("{"), 0o644))
	_, err = Open(dir, "", Options{})
	assert.ErrorContains(t, err, "index is corrupt")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte(`{"version": 9}`), 0o644))
	_, err = Open(dir, "", Options{})
	assert.ErrorContains(t, err, "unsupported index version 9")
}

func TestClose_OverlappingRunsMerge(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a := openStore(t, dir, Options{})
	b := openStore(t, dir, Options{})

	shared, err := a.Put(ctx, []byte("shared"))
	require.NoError(t, err)
	_, err = b.Put(ctx, []byte("shared"))
	require.NoError(t, err)
	onlyA, err := a.Put(ctx, []byte("only a"))
	require.NoError(t, err)
	a.Remember("key-a", onlyA.Hash)
	b.Remember("key-b", shared.Hash)

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())

	s := openStore(t, dir, Options{})
	e, ok := s.Lookup(shared.Hash)
	require.True(t, ok)
	assert.Equal(t, 2, e.RefCount, "each run that produced the hash counts once")

	e, ok = s.Lookup(onlyA.Hash)
	require.True(t, ok, "entries of the first run to close survive the second")
	assert.Equal(t, 1, e.RefCount)

	_, hit, err := s.Reuse(ctx, "key-a")
	require.NoError(t, err)
	assert.True(t, hit)
	_, hit, err = s.Reuse(ctx, "key-b")
	require.NoError(t, err)
	assert.True(t, hit)

	_, err = os.Stat(filepath.Join(dir, "index.lock"))
	assert.True(t, os.IsNotExist(err), "the index lock is released")
}

func TestClose_BreaksStaleLock(t *testing.T) {
	dir := t.TempDir()
	lock := filepath.Join(dir, "index.lock")
	require.NoError(t, os.WriteFile(lock, []byte("1\n"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(lock, old, old))

	s := openStore(t, dir, Options{})
	_, err := s.Put(context.Background(), []byte("x"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = os.Stat(filepath.Join(dir, "index.json"))
	assert.NoError(t, err)
}
