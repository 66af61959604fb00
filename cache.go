package main

import (
	"cmp"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// cacheVersion is bumped whenever the persisted layout or the search
// semantics change; older files are discarded on load.
const cacheVersion = 3

// SuggestionCache memoizes engine suggestions by (settings, stash, queue).
// A nil suggestion is cached like any other.
type SuggestionCache struct {
	engine *Engine
	group  singleflight.Group

	mu      sync.Mutex
	entries map[uint64]Combo
	last    Combo
	dirty   bool
	gen     uint64
}

func NewSuggestionCache(engine *Engine) *SuggestionCache {
	return &SuggestionCache{
		engine:  engine,
		entries: make(map[uint64]Combo),
	}
}

// Key hashes the inputs that determine a suggestion. Forbidden ids and stash
// entries are sorted and zero counts dropped, so equal inputs always hash
// the same. Display settings (hotkey, tiers) are not part of the key.
func (c *SuggestionCache) Key(settings *UserSettings, stash Stash, queue Queue) uint64 {
	var buf []byte
	putIDs := func(ids []ModifierID) {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ids)))
		for _, id := range ids {
			buf = append(buf, byte(id))
		}
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(settings.ComboCatalog)))
	for _, lc := range settings.ComboCatalog {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(lc.ID))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(lc.Label)))
		buf = append(buf, lc.Label...)
		putIDs(lc.Combo)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(settings.ComboRoster)))
	for _, id := range settings.ComboRoster {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(id))
	}
	forbidden := slices.Clone(settings.ForbiddenModifierIDs)
	slices.Sort(forbidden)
	putIDs(forbidden)

	ids := make([]ModifierID, 0, len(stash))
	for id, n := range stash {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ids)))
	for _, id := range ids {
		buf = append(buf, byte(id))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(stash[id]))
	}
	putIDs(queue)

	h := fnv.New64a()
	h.Write(buf)
	return h.Sum64()
}

// Suggest returns the cached suggestion for the inputs, computing and
// storing it on a miss. Concurrent misses on one key share a computation.
func (c *SuggestionCache) Suggest(settings *UserSettings, stash Stash, queue Queue) Combo {
	key := c.Key(settings, stash, queue)

	c.mu.Lock()
	if combo, ok := c.entries[key]; ok {
		c.last = combo
		c.mu.Unlock()
		logger.Debug("suggestion cache hit", zap.Uint64("key", key))
		return combo.Clone()
	}
	c.mu.Unlock()

	v, _, _ := c.group.Do(strconv.FormatUint(key, 16), func() (any, error) {
		c.mu.Lock()
		if combo, ok := c.entries[key]; ok {
			c.mu.Unlock()
			return combo, nil
		}
		c.mu.Unlock()

		combo := c.engine.Suggest(settings, stash, queue)

		c.mu.Lock()
		c.entries[key] = combo
		c.dirty = true
		c.gen++
		c.mu.Unlock()
		return combo, nil
	})
	combo := v.(Combo)

	c.mu.Lock()
	c.last = combo
	c.mu.Unlock()
	return combo.Clone()
}

// Last returns the most recent suggestion handed out, nil if none.
func (c *SuggestionCache) Last() Combo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.Clone()
}

// Dirty reports whether the cache changed since it was loaded or saved.
func (c *SuggestionCache) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

func (c *SuggestionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *SuggestionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]Combo)
	c.last = nil
	c.dirty = true
	c.gen++
}

// ── Persistence ─────────────────────────────────────────────────────

type cacheEntry struct {
	Key   uint64 `json:"key"`
	Combo Combo  `json:"combo"`
}

type cacheFile struct {
	Version       int          `json:"version"`
	CatalogDigest string       `json:"catalogDigest"`
	Entries       []cacheEntry `json:"entries"`
	Last          Combo        `json:"last"`
}

// Save writes the cache to path as zstd-compressed JSON. The file is
// replaced atomically.
func (c *SuggestionCache) Save(path string) error {
	c.mu.Lock()
	blob := cacheFile{
		Version:       cacheVersion,
		CatalogDigest: c.engine.Catalog().Digest(),
		Entries:       make([]cacheEntry, 0, len(c.entries)),
		Last:          c.last,
	}
	for k, v := range c.entries {
		blob.Entries = append(blob.Entries, cacheEntry{Key: k, Combo: v})
	}
	gen := c.gen
	c.mu.Unlock()
	slices.SortFunc(blob.Entries, func(a, b cacheEntry) int { return cmp.Compare(a.Key, b.Key) })

	data, err := json.Marshal(blob)
	if err != nil {
		return err
	}
	if err := writeCompressed(path, data); err != nil {
		return fmt.Errorf("cache %s: %w", path, err)
	}

	c.mu.Lock()
	if c.gen == gen {
		c.dirty = false
	}
	c.mu.Unlock()
	logger.Debug("saved suggestion cache", zap.String("path", path), zap.Int("entries", len(blob.Entries)))
	return nil
}

func writeCompressed(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".cache-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadSuggestionCache reads a cache saved by Save. A missing file yields an
// empty cache, as does a file from another cache version or catalog.
func LoadSuggestionCache(path string, engine *Engine) (*SuggestionCache, error) {
	c := NewSuggestionCache(engine)

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("cache %s: %w", path, err)
	}
	defer dec.Close()
	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("cache %s: %w", path, err)
	}

	var blob cacheFile
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("cache %s: %w", path, err)
	}
	if blob.Version != cacheVersion || blob.CatalogDigest != engine.Catalog().Digest() {
		logger.Info("discarding stale suggestion cache",
			zap.String("path", path),
			zap.Int("version", blob.Version),
			zap.Int("want", cacheVersion))
		return c, nil
	}

	for _, e := range blob.Entries {
		c.entries[e.Key] = e.Combo
	}
	c.last = blob.Last
	logger.Debug("loaded suggestion cache", zap.String("path", path), zap.Int("entries", len(c.entries)))
	return c, nil
}
