package data

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/model"
	"strategy-databank/internal/observability"
)

// CacheEntry represents a cached analysis result
type CacheEntry struct {
	Result    *analysis.Result
	ExpiresAt time.Time
}

// ReportCache memoizes per-strategy analyses. Clients typically resend the same
// strategy files with every portfolio request, so individual reports repeat.
// A nil *ReportCache is valid and caches nothing.
type ReportCache struct {
	mu    sync.RWMutex
	store map[string]*CacheEntry
	ttl   time.Duration
	done  chan struct{}
	once  sync.Once
}

// NewReportCache starts a cache whose entries live for ttl. A non-positive ttl
// disables caching and returns nil.
func NewReportCache(ttl time.Duration) *ReportCache {
	if ttl <= 0 {
		return nil
	}
	c := &ReportCache{
		store: make(map[string]*CacheEntry),
		ttl:   ttl,
		done:  make(chan struct{}),
	}
	go c.cleanup(min(ttl, 5*time.Minute))
	return c
}

// Get retrieves a cached result if available and not expired
func (c *ReportCache) Get(key string) (*analysis.Result, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.store[key]
	if !exists || time.Now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry.Result, true
}

// Set stores a result in the cache
func (c *ReportCache) Set(key string, res *analysis.Result) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store[key] = &CacheEntry{
		Result:    res,
		ExpiresAt: time.Now().Add(c.ttl),
	}
}

// Len counts stored entries, expired or not.
func (c *ReportCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Clear removes all entries from the cache
func (c *ReportCache) Clear() {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store = make(map[string]*CacheEntry)
}

// Close stops the cleanup goroutine.
func (c *ReportCache) Close() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.done) })
}

// Analyze returns the cached analysis of trades against bench, computing and
// storing it on a miss. Errors are not cached.
func (c *ReportCache) Analyze(trades []model.Trade, bench model.Benchmark, initialCapital float64) (*analysis.Result, error) {
	key := ""
	if c != nil {
		key = GenerateCacheKey(trades, bench, initialCapital)
		if res, ok := c.Get(key); ok {
			observability.RecordCacheLookup(true)
			return res, nil
		}
		observability.RecordCacheLookup(false)
	}

	start := time.Now()
	res, err := analysis.Analyze(trades, bench, analysis.WithInitialCapital(initialCapital))
	observability.RecordAnalysis("strategy", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	c.Set(key, res)
	return res, nil
}

// cleanup periodically removes expired entries
func (c *ReportCache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}
		c.mu.Lock()
		now := time.Now()
		for key, entry := range c.store {
			if now.After(entry.ExpiresAt) {
				delete(c.store, key)
			}
		}
		c.mu.Unlock()
	}
}

// GenerateCacheKey hashes the exact inputs of an analysis.
func GenerateCacheKey(trades []model.Trade, bench model.Benchmark, initialCapital float64) string {
	h := sha256.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	put(math.Float64bits(initialCapital))
	put(uint64(len(trades)))
	for _, t := range trades {
		put(uint64(t.EntryTime.UnixNano()))
		put(uint64(t.ExitTime.UnixNano()))
		put(math.Float64bits(t.PnL))
	}
	put(uint64(len(bench)))
	for _, p := range bench {
		put(uint64(p.Date.UnixNano()))
		put(math.Float64bits(p.Price))
	}
	return hex.EncodeToString(h.Sum(nil))
}
