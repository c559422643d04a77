// Package store persists encoded webfonts under names derived from their
// content hash. Entries are write-once; a JSON index next to the files keeps
// reference counts and the memo of previously built buckets.
package store

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/jonathan/webfont-splitter/internal/types"
)

const (
	// FileExt is appended to every stored file name
	FileExt = ".woff2"

	indexFile    = "index.json"
	lockFile     = "index.lock"
	tmpDir       = ".tmp"
	indexVersion = 1

	lockRetry = 25 * time.Millisecond
	lockWait  = 30 * time.Second
	// lockStale is how old a lock file must be before it is considered
	// left behind by a crashed process.
	lockStale = 2 * time.Minute
)

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("store is closed")

// Mirror receives every entry a run creates or references, e.g. a shared
// database catalogue
type Mirror interface {
	UpsertEntry(ctx context.Context, entry types.StoreEntry) error
}

// Options configures Open
type Options struct {
	Logger *zap.Logger
	Mirror Mirror
	// Now is used for CreatedAt; defaults to time.Now.
	Now func() time.Time
}

type index struct {
	Version int                          `json:"version"`
	Entries map[string]*types.StoreEntry `json:"entries"`
	Memo    map[string]string            `json:"memo,omitempty"`
}

// Store is a content-addressed directory of webfont files. It is opened at
// the start of a run and closed at its end; Close flushes the index. A
// Store is safe for concurrent use.
type Store struct {
	dir     string
	baseURI string
	logger  *zap.Logger
	mirror  Mirror
	now     func() time.Time

	locks keyedMutex

	mu   sync.Mutex
	idx  index
	seen map[string]bool
	// memo holds the memo entries this instance recorded; other runs may
	// have written their own to the index in the meantime.
	memo     map[string]string
	closed   bool
	modified bool

	writes atomic.Int64
}

// Open prepares dir and loads its index
func Open(dir, baseURI string, opts Options) (*Store, error) {
	if dir == "" {
		return nil, &Error{Op: "open", Message: "store directory is empty"}
	}
	if err := os.MkdirAll(filepath.Join(dir, tmpDir), 0o755); err != nil {
		return nil, &Error{Op: "open", Path: dir, Message: "failed to create store directory", Cause: err}
	}

	s := &Store{
		dir:     dir,
		baseURI: baseURI,
		logger:  opts.Logger,
		mirror:  opts.Mirror,
		now:     opts.Now,
		seen:    make(map[string]bool),
		memo:    make(map[string]string),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}

	idx, err := readIndex(dir)
	if err != nil {
		return nil, err
	}
	s.idx = idx

	s.logger.Debug("store opened", zap.String("dir", dir), zap.Int("entries", len(s.idx.Entries)))
	return s, nil
}

// readIndex loads index.json from dir; a missing file is an empty index
func readIndex(dir string) (index, error) {
	idx := index{
		Version: indexVersion,
		Entries: make(map[string]*types.StoreEntry),
		Memo:    make(map[string]string),
	}
	path := filepath.Join(dir, indexFile)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return idx, nil
	case err != nil:
		return idx, &Error{Op: "open", Path: dir, Message: "failed to read index", Cause: err}
	}

	var loaded index
	if err := json.Unmarshal(data, &loaded); err != nil {
		return idx, &Error{Op: "open", Path: path, Message: "index is corrupt", Cause: err}
	}
	if loaded.Version != indexVersion {
		return idx, &Error{Op: "open", Path: dir, Message: fmt.Sprintf("unsupported index version %d", loaded.Version)}
	}
	for hash, e := range loaded.Entries {
		e.Path = filepath.Join(dir, e.FileName)
		idx.Entries[hash] = e
	}
	for k, v := range loaded.Memo {
		idx.Memo[k] = v
	}
	return idx, nil
}

// Dir returns the store directory
func (s *Store) Dir() string {
	return s.dir
}

// Put stores data under its hash. Identical bytes always yield the same
// entry and the file is written at most once. The reference count of an
// entry grows by one the first time a run puts or reuses it.
func (s *Store) Put(ctx context.Context, data []byte) (types.StoreEntry, error) {
	if err := ctx.Err(); err != nil {
		return types.StoreEntry{}, err
	}
	if len(data) == 0 {
		return types.StoreEntry{}, &Error{Op: "put", Message: "refusing to store empty data"}
	}

	hash := HashBytes(data).String()
	unlock := s.locks.lock(hash)
	defer unlock()

	if s.isClosed() {
		return types.StoreEntry{}, ErrClosed
	}

	name := hash + FileExt
	path := filepath.Join(s.dir, name)

	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.Size() != int64(len(data)) {
			return types.StoreEntry{}, &Error{
				Op:      "put",
				Path:    path,
				Message: fmt.Sprintf("existing entry has %d bytes, expected %d", info.Size(), len(data)),
			}
		}
	case errors.Is(err, os.ErrNotExist):
		if err := s.writeFile(path, data); err != nil {
			return types.StoreEntry{}, err
		}
		info, err = os.Stat(path)
		if err != nil {
			return types.StoreEntry{}, &Error{Op: "put", Path: path, Message: "entry vanished after write", Cause: err}
		}
		s.logger.Debug("stored entry", zap.String("hash", hash), zap.Int("bytes", len(data)))
	default:
		return types.StoreEntry{}, &Error{Op: "put", Path: path, Message: "failed to stat entry", Cause: err}
	}

	entry := s.reference(hash, name, path, info)
	s.mirrorEntry(ctx, entry)
	return entry, nil
}

// writeFile writes through a temp file and an atomic rename, so readers
// never observe a partial entry.
func (s *Store) writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Join(s.dir, tmpDir), "entry-*"+FileExt)
	if err != nil {
		return &Error{Op: "put", Path: path, Message: "failed to create temp file", Cause: err}
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath) //nolint:errcheck
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return &Error{Op: "put", Path: path, Message: "failed to write temp file", Cause: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return &Error{Op: "put", Path: path, Message: "failed to sync temp file", Cause: err}
	}
	if err := tmp.Close(); err != nil {
		return &Error{Op: "put", Path: path, Message: "failed to close temp file", Cause: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return &Error{Op: "put", Path: path, Message: "failed to rename temp file", Cause: err}
	}

	success = true
	s.writes.Add(1)
	return nil
}

func (s *Store) reference(hash, name, path string, info os.FileInfo) types.StoreEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.idx.Entries[hash]
	if !ok {
		e = &types.StoreEntry{
			Hash:      hash,
			FileName:  name,
			Path:      path,
			Size:      info.Size(),
			CreatedAt: s.now().UTC(),
		}
		s.idx.Entries[hash] = e
		s.modified = true
	}
	if !s.seen[hash] {
		s.seen[hash] = true
		e.RefCount++
		s.modified = true
	}
	return *e
}

// mirrorEntry failures are logged only; the file itself is already stored.
func (s *Store) mirrorEntry(ctx context.Context, entry types.StoreEntry) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.UpsertEntry(ctx, entry); err != nil {
		s.logger.Warn("failed to mirror store entry", zap.String("hash", entry.Hash), zap.Error(err))
	}
}

// UriFor composes the public URI of an entry
func (s *Store) UriFor(entry types.StoreEntry) string {
	if s.baseURI == "" {
		return entry.FileName
	}
	return strings.TrimSuffix(s.baseURI, "/") + "/" + entry.FileName
}

// Lookup returns the entry for a nix-base32 hash
func (s *Store) Lookup(hash string) (types.StoreEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.idx.Entries[hash]
	if !ok {
		return types.StoreEntry{}, false
	}
	return *e, true
}

// Has reports whether an entry's file is present
func (s *Store) Has(hash string) bool {
	e, ok := s.Lookup(hash)
	if !ok {
		return false
	}
	_, err := os.Stat(e.Path)
	return err == nil
}

// Entries returns all indexed entries ordered by hash
func (s *Store) Entries() []types.StoreEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.StoreEntry, 0, len(s.idx.Entries))
	for _, e := range s.idx.Entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out
}

// Writes returns how many files this Store instance has written
func (s *Store) Writes() int64 {
	return s.writes.Load()
}

// MemoKey derives the key under which a built bucket is remembered. Parts
// must identify the source font, the bucket codepoints and every engine
// setting that affects the output.
func MemoKey(parts ...string) string {
	h := blake3.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s;", len(p), p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Remember records that the bucket identified by key produced hash
func (s *Store) Remember(key, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx.Memo[key] != hash {
		s.idx.Memo[key] = hash
		s.memo[key] = hash
		s.modified = true
	}
}

// Reuse returns the entry remembered for key when its file is still
// present, counting it as referenced by this run. Build and encode can be
// skipped on a hit.
func (s *Store) Reuse(ctx context.Context, key string) (types.StoreEntry, bool, error) {
	s.mu.Lock()
	hash, ok := s.idx.Memo[key]
	s.mu.Unlock()
	if !ok {
		return types.StoreEntry{}, false, nil
	}

	unlock := s.locks.lock(hash)
	defer unlock()
	if s.isClosed() {
		return types.StoreEntry{}, false, ErrClosed
	}

	e, ok := s.Lookup(hash)
	if !ok {
		return types.StoreEntry{}, false, nil
	}
	info, err := os.Stat(e.Path)
	if err != nil || info.Size() != e.Size {
		s.logger.Debug("memoized entry is missing", zap.String("hash", hash))
		return types.StoreEntry{}, false, nil
	}

	entry := s.reference(hash, e.FileName, e.Path, info)
	s.mirrorEntry(ctx, entry)
	return entry, true, nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close merges this run into the index on disk. Other Stores may have
// flushed to the same directory since Open, so the index is re-read under a
// lock file and this run's references are applied as increments.
// Further operations fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.modified {
		return nil
	}

	unlock, err := s.lockIndex()
	if err != nil {
		return err
	}
	defer unlock()

	merged, err := readIndex(s.dir)
	if err != nil {
		return &Error{Op: "close", Path: s.dir, Message: "failed to reload index", Cause: err}
	}
	for hash := range s.seen {
		e, ok := merged.Entries[hash]
		if !ok {
			own := *s.idx.Entries[hash]
			own.RefCount = 0
			e = &own
			merged.Entries[hash] = e
		}
		e.RefCount++
	}
	for k, v := range s.memo {
		merged.Memo[k] = v
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return &Error{Op: "close", Path: s.dir, Message: "failed to encode index", Cause: err}
	}
	path := filepath.Join(s.dir, indexFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &Error{Op: "close", Path: path, Message: "failed to write index", Cause: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return &Error{Op: "close", Path: path, Message: "failed to replace index", Cause: err}
	}
	s.idx = merged
	s.logger.Debug("store index flushed", zap.Int("entries", len(merged.Entries)))
	return nil
}

// lockIndex takes the cross-process index lock by creating index.lock
// exclusively. A lock older than lockStale is broken.
func (s *Store) lockIndex() (func(), error) {
	path := filepath.Join(s.dir, lockFile)
	deadline := time.Now().Add(lockWait)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid()) //nolint:errcheck
			f.Close()                            //nolint:errcheck
			return func() { os.Remove(path) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, &Error{Op: "close", Path: path, Message: "failed to create index lock", Cause: err}
		}
		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > lockStale {
			s.logger.Warn("breaking stale index lock", zap.String("path", path))
			os.Remove(path) //nolint:errcheck
			continue
		}
		if time.Now().After(deadline) {
			return nil, &Error{Op: "close", Path: path, Message: "timed out waiting for index lock"}
		}
		time.Sleep(lockRetry)
	}
}

// keyedMutex serializes work per key without a lock across keys.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
