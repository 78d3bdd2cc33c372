package msgtable

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/tekert/golang-msgtable/logsampler"
)

const defaultDiagnosticBurst = 5

// MessageFile is one message module and the records decoded from it. Log and
// source are the ones that first caused the module to be loaded.
type MessageFile struct {
	logName    string
	sourceName string
	rawPath    string
	path       ResolvedPath
	step       ResolveStep

	records []MessageRecord
	stats   DecodeStats
	loaded  bool
	err     error
}

// NewMessageFile creates an already loaded message file, for Cache.Add.
func NewMessageFile(logName, sourceName string, path ResolvedPath, records []MessageRecord) *MessageFile {
	return &MessageFile{
		logName:    logName,
		sourceName: sourceName,
		rawPath:    string(path),
		path:       path,
		records:    records,
		stats:      DecodeStats{Records: len(records)},
		loaded:     true,
	}
}

func (f *MessageFile) LogName() string    { return f.logName }
func (f *MessageFile) SourceName() string { return f.sourceName }
func (f *MessageFile) RawPath() string    { return f.rawPath }

// Path is the path the module was loaded from, or the expanded raw path when
// it could not be loaded.
func (f *MessageFile) Path() ResolvedPath { return f.path }
func (f *MessageFile) FileName() string   { return f.path.FileName() }

// Step tells which path repair made the module load.
func (f *MessageFile) Step() ResolveStep { return f.step }

// Loaded reports whether the module was found and decoded. A module without a
// message table is loaded with no records.
func (f *MessageFile) Loaded() bool       { return f.loaded }
func (f *MessageFile) Err() error         { return f.err }
func (f *MessageFile) Stats() DecodeStats { return f.stats }
func (f *MessageFile) Len() int           { return len(f.records) }

// Records returns a copy of the decoded records.
func (f *MessageFile) Records() []MessageRecord {
	return append([]MessageRecord(nil), f.records...)
}

func (f *MessageFile) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("path", string(f.path)),
		slog.String("log", f.logName),
		slog.String("source", f.sourceName),
		slog.Int("records", len(f.records)),
	}
	if f.err != nil {
		attrs = append(attrs, slog.String("error", f.err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// cacheHit stops a resolution when a candidate path is already cached.
type cacheHit struct {
	file *MessageFile
}

func (cacheHit) Error() string { return "message file already cached" }

type CacheOption func(*Cache)

// WithResolver replaces the resolver built from the process environment.
func WithResolver(r *Resolver) CacheOption {
	return func(c *Cache) {
		if r != nil {
			c.resolver = r
		}
	}
}

// WithDecodeOptions is applied to every decoded module.
func WithDecodeOptions(opts ...DecodeOption) CacheOption {
	return func(c *Cache) {
		c.decodeOpts = append(c.decodeOpts, opts...)
	}
}

// WithCacheSampler sets the sampler limiting malformed entry diagnostics. It
// is flushed after every module.
func WithCacheSampler(s logsampler.Sampler) CacheOption {
	return func(c *Cache) {
		if s != nil {
			c.sampler = s
		}
	}
}

// Cache loads every message module once. Modules are keyed by the path they
// loaded from, raw registry spellings resolving to the same module share the
// entry. Modules that fail to load are remembered and never retried.
//
// A Cache is safe for concurrent use. Loads are serialized, which also keeps
// WOW64 redirection changes from overlapping.
type Cache struct {
	reader     ModuleReader
	resolver   *Resolver
	decodeOpts []DecodeOption
	sampler    logsampler.Sampler

	// held for the whole check, load, insert sequence
	loadMu sync.Mutex

	mu       sync.RWMutex
	files    map[ResolvedPath]*MessageFile
	order    []*MessageFile
	aliases  map[ResolvedPath]ResolvedPath // expanded raw path -> loaded path
	failed   map[ResolvedPath]*MessageFile
	failures []*MessageFile
	loads    int
}

// NewCache creates an empty cache reading modules with reader.
func NewCache(reader ModuleReader, opts ...CacheOption) *Cache {
	c := &Cache{
		reader:  reader,
		files:   make(map[ResolvedPath]*MessageFile),
		aliases: make(map[ResolvedPath]ResolvedPath),
		failed:  make(map[ResolvedPath]*MessageFile),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.resolver == nil {
		c.resolver = NewResolver(EnvironmentFromOS())
	}
	if c.sampler == nil {
		c.sampler = logsampler.NewBurstSampler(defaultDiagnosticBurst, slogReporter{})
	}
	return c
}

func (c *Cache) Resolver() *Resolver {
	return c.resolver
}

// GetOrLoad returns the message file rawPath refers to, loading and decoding
// it on first use. The error is the one stored in the file: nil for a loaded
// module (with or without a message table), a *ResolveError when no path
// repair loaded, ErrCorruptImage or ErrCorruptTable when the module could not
// be decoded.
func (c *Cache) GetOrLoad(logName, sourceName, rawPath string) (*MessageFile, error) {
	key := c.resolver.Expand(rawPath)
	if key == "" {
		return nil, fmt.Errorf("%w: empty path", ErrUnresolvable)
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	if mf := c.lookup(key); mf != nil {
		LogTrace("message file cache hit", "raw", rawPath, "path", mf.path)
		return mf, mf.err
	}

	cand, data, err := c.resolver.resolve(rawPath, func(cand Candidate) ([]byte, error) {
		if mf := c.lookup(cand.Path); mf != nil {
			return nil, cacheHit{file: mf}
		}
		c.mu.Lock()
		c.loads++
		c.mu.Unlock()
		return c.reader.ReadMessageTable(cand)
	})

	var hit cacheHit
	if errors.As(err, &hit) {
		c.mu.Lock()
		c.aliases[key] = hit.file.path
		c.mu.Unlock()
		LogTrace("message file cache hit", "raw", rawPath, "path", hit.file.path)
		return hit.file, hit.file.err
	}

	mf := &MessageFile{
		logName:    logName,
		sourceName: sourceName,
		rawPath:    rawPath,
		path:       cand.Path,
		step:       cand.Step,
	}

	var rerr *ResolveError
	switch {
	case errors.As(err, &rerr):
		mf.path = key
		mf.err = err
		slog.Warn("unable to load message file", "raw", rawPath, "attempts", len(rerr.Attempts), "error", err)
		c.fail(key, mf)
		return mf, err

	case errors.Is(err, ErrNoMessageTable):
		slog.Debug("message file has no message table", "path", cand.Path)
		mf.loaded = true

	case err != nil:
		mf.err = err
		slog.Warn("unable to read message table", "path", cand.Path, "error", err)
		c.fail(key, mf)
		return mf, err

	default:
		opts := append([]DecodeOption{WithSampler(c.sampler), WithModuleName(string(cand.Path))}, c.decodeOpts...)
		records, stats, err := DecodeMessageTable(data, logName, sourceName, opts...)
		c.sampler.Flush()
		if err != nil {
			mf.err = fmt.Errorf("%s: %w", cand.Path, err)
			slog.Warn("unable to decode message table", "path", cand.Path, "error", err)
			c.fail(key, mf)
			return mf, mf.err
		}
		mf.records, mf.stats, mf.loaded = records, stats, true
		slog.Debug("message file decoded", "path", cand.Path, "stats", stats)
	}

	c.mu.Lock()
	c.files[mf.path] = mf
	c.order = append(c.order, mf)
	if key != mf.path {
		c.aliases[key] = mf.path
	}
	c.mu.Unlock()
	return mf, nil
}

// fail negative caches mf under key and the path it was read from. A module
// no candidate loaded is also cached under every attempted path, so other
// spellings of it are not retried.
func (c *Cache) fail(key ResolvedPath, mf *MessageFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed[key] = mf
	c.failed[mf.path] = mf
	var rerr *ResolveError
	if errors.As(mf.err, &rerr) {
		for _, a := range rerr.Attempts {
			c.failed[a.Path] = mf
		}
	}
	c.failures = append(c.failures, mf)
}

func (c *Cache) lookup(p ResolvedPath) *MessageFile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookupLocked(p)
}

func (c *Cache) lookupLocked(p ResolvedPath) *MessageFile {
	if mf, ok := c.files[p]; ok {
		return mf
	}
	if to, ok := c.aliases[p]; ok {
		p = to
		if mf, ok := c.files[p]; ok {
			return mf
		}
	}
	if mf, ok := c.failed[p]; ok {
		return mf
	}
	return nil
}

// Get returns the loaded message file path refers to. path may be a raw
// registry spelling.
func (c *Cache) Get(path string) (*MessageFile, bool) {
	p := c.resolver.Expand(path)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if mf, ok := c.files[p]; ok {
		return mf, true
	}
	if to, ok := c.aliases[p]; ok {
		mf, ok := c.files[to]
		return mf, ok
	}
	return nil, false
}

// Contains reports whether path refers to a loaded message file.
func (c *Cache) Contains(path string) bool {
	_, ok := c.Get(path)
	return ok
}

// Add inserts a message file built by the caller. It returns false and
// leaves the cache untouched when its path is empty or already present.
func (c *Cache) Add(mf *MessageFile) bool {
	if mf == nil {
		return false
	}
	key := NormalizePath(string(mf.path))
	if key == "" {
		slog.Info("message file without a path not cached", "source", mf.sourceName)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing := c.lookupLocked(key); existing != nil {
		slog.Info("message file already cached", "path", key, "source", existing.sourceName)
		return false
	}
	mf.path = key
	c.files[key] = mf
	c.order = append(c.order, mf)
	return true
}

// Files yields every loaded message file in load order.
func (c *Cache) Files() iter.Seq[*MessageFile] {
	c.mu.RLock()
	files := append([]*MessageFile(nil), c.order...)
	c.mu.RUnlock()

	return func(yield func(*MessageFile) bool) {
		for _, mf := range files {
			if !yield(mf) {
				return
			}
		}
	}
}

// Records yields the records of every loaded message file. Each module
// contributes once however many sources reference it.
func (c *Cache) Records() iter.Seq[MessageRecord] {
	return func(yield func(MessageRecord) bool) {
		for mf := range c.Files() {
			for _, r := range mf.records {
				if !yield(r) {
					return
				}
			}
		}
	}
}

// Failures returns the message files that could not be loaded or decoded.
func (c *Cache) Failures() []*MessageFile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*MessageFile(nil), c.failures...)
}

// Len returns the number of loaded message files.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Loads returns how many times the reader was asked to load a module.
func (c *Cache) Loads() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loads
}
