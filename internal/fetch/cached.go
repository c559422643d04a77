package fetch

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/jonathan/webfont-splitter/internal/compress"
)

// DefaultCacheTTL is how long a downloaded file is served from the cache.
const DefaultCacheTTL = 7 * 24 * time.Hour

const cacheExt = ".cache"

// CachedFetcher wraps URL fetching with a disk cache. Cache entries are
// compress frames named by the blake3 hash of the URL.
type CachedFetcher struct {
	dir       string
	options   *Options
	cacheTTL  time.Duration
	tag       compress.Tag
	skipCache bool // For testing or forcing fresh fetches
	logger    *zap.Logger
	now       func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// CachedFetcherConfig holds configuration for the cached fetcher.
type CachedFetcherConfig struct {
	CacheTTL    time.Duration
	SkipCache   bool
	Compression compress.Tag
	Options     *Options
	Logger      *zap.Logger
	Now         func() time.Time
}

// DefaultCachedFetcherConfig returns sensible defaults.
func DefaultCachedFetcherConfig() *CachedFetcherConfig {
	return &CachedFetcherConfig{
		CacheTTL:    DefaultCacheTTL,
		Compression: compress.LZ4,
		Options:     DefaultOptions(),
	}
}

// NewCachedFetcher creates a cached fetcher storing entries under dir. An
// empty dir disables caching.
func NewCachedFetcher(dir string, config *CachedFetcherConfig) *CachedFetcher {
	if config == nil {
		config = DefaultCachedFetcherConfig()
	}
	if config.Options == nil {
		config.Options = DefaultOptions()
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &CachedFetcher{
		dir:       dir,
		options:   config.Options,
		cacheTTL:  config.CacheTTL,
		tag:       config.Compression,
		skipCache: config.SkipCache || dir == "",
		logger:    config.Logger,
		now:       config.Now,
	}
}

// CachedResult is a fetch body with cache metadata.
type CachedResult struct {
	URL       string
	Body      []byte
	FromCache bool
}

// Fetch retrieves a URL, using the cache if an entry is fresh.
func (f *CachedFetcher) Fetch(ctx context.Context, urlStr string) ([]byte, error) {
	result, err := f.FetchResult(ctx, urlStr)
	if err != nil {
		return nil, err
	}
	return result.Body, nil
}

// FetchResult is Fetch reporting whether the cache answered.
func (f *CachedFetcher) FetchResult(ctx context.Context, urlStr string) (*CachedResult, error) {
	if !f.skipCache {
		body, ok := f.readCache(urlStr)
		if ok {
			f.hits.Add(1)
			return &CachedResult{URL: urlStr, Body: body, FromCache: true}, nil
		}
	}
	f.misses.Add(1)

	result, err := URL(ctx, urlStr, f.options)
	if err != nil {
		return nil, err
	}

	if !f.skipCache {
		if err := f.writeCache(urlStr, result.Body); err != nil {
			// Log but don't fail - the fetch succeeded
			f.logger.Warn("failed to write cache entry", zap.String("url", urlStr), zap.Error(err))
		}
	}
	return &CachedResult{URL: urlStr, Body: result.Body}, nil
}

// Hits and Misses count cache outcomes since construction.
func (f *CachedFetcher) Hits() int64   { return f.hits.Load() }
func (f *CachedFetcher) Misses() int64 { return f.misses.Load() }

// InvalidateCache drops the cache entry for a URL, forcing a re-fetch.
func (f *CachedFetcher) InvalidateCache(urlStr string) error {
	if f.dir == "" {
		return nil
	}
	err := os.Remove(f.cachePath(urlStr))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return &Error{URL: urlStr, Message: "failed to remove cache entry", Cause: err}
	}
	return nil
}

func (f *CachedFetcher) cachePath(urlStr string) string {
	sum := blake3.Sum256([]byte(urlStr))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])+cacheExt)
}

func (f *CachedFetcher) readCache(urlStr string) ([]byte, bool) {
	path := f.cachePath(urlStr)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if f.now().Sub(info.ModTime()) > f.cacheTTL {
		return nil, false
	}

	frame, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	body, _, err := compress.Unpack(frame)
	if err != nil {
		f.logger.Warn("discarding corrupt cache entry", zap.String("url", urlStr), zap.Error(err))
		_ = os.Remove(path)
		return nil, false
	}
	return body, true
}

func (f *CachedFetcher) writeCache(urlStr string, body []byte) error {
	frame, err := compress.Pack(body, f.tag)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "fetch-*.tmp")
	if err != nil {
		return err
	}
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(frame); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), f.cachePath(urlStr)); err != nil {
		return err
	}
	success = true
	return nil
}
