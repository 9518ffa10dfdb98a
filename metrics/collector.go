// Package metrics provides per-process metrics collection for test runs.
//
// The Collector accumulates counters across a suite invocation. It is a
// leaf package with no internal dependencies. All increment methods are
// nil-receiver safe so callers never need to guard.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Safe to read concurrently after creation.
type Snapshot struct {
	// Test lifecycle
	TestsStarted int64
	TestsPassed  int64
	TestsFailed  int64

	// Setup
	SetupFailures int64
	CacheHits     int64
	CacheMisses   int64

	// Player
	PlayerLaunchSuccess int64
	PlayerLaunchFailure int64
	PlayerTimeouts      int64

	// Extraction
	ExtractRegex int64
	ExtractScan  int64
	ExtractMiss  int64

	// Dimensions (informational, set at construction)
	Domain string
	AppID  string
}

// Collector accumulates counters during a suite invocation.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	testsStarted int64
	testsPassed  int64
	testsFailed  int64

	setupFailures int64
	cacheHits     int64
	cacheMisses   int64

	playerLaunchSuccess int64
	playerLaunchFailure int64
	playerTimeouts      int64

	extractRegex int64
	extractScan  int64
	extractMiss  int64

	domain string
	appID  string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(domain, appID string) *Collector {
	return &Collector{domain: domain, appID: appID}
}

// --- Test lifecycle ---

// IncTestStarted records a test start.
func (c *Collector) IncTestStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.testsStarted++
	c.mu.Unlock()
}

// IncTestPassed records a passing test.
func (c *Collector) IncTestPassed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.testsPassed++
	c.mu.Unlock()
}

// IncTestFailed records a failing test.
func (c *Collector) IncTestFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.testsFailed++
	c.mu.Unlock()
}

// --- Setup ---

// IncSetupFailure records an artifact acquisition failure.
func (c *Collector) IncSetupFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.setupFailures++
	c.mu.Unlock()
}

// IncCacheHit records a workspace cache hit during setup.
func (c *Collector) IncCacheHit() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheHits++
	c.mu.Unlock()
}

// IncCacheMiss records a workspace cache miss during setup.
func (c *Collector) IncCacheMiss() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheMisses++
	c.mu.Unlock()
}

// --- Player ---

// IncPlayerLaunchSuccess records a successful player launch.
func (c *Collector) IncPlayerLaunchSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.playerLaunchSuccess++
	c.mu.Unlock()
}

// IncPlayerLaunchFailure records a failed player launch.
func (c *Collector) IncPlayerLaunchFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.playerLaunchFailure++
	c.mu.Unlock()
}

// IncPlayerTimeout records a player process killed at its deadline.
func (c *Collector) IncPlayerTimeout() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.playerTimeouts++
	c.mu.Unlock()
}

// --- Extraction ---

// IncExtractRegex records a form extracted by the regex pass.
func (c *Collector) IncExtractRegex() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.extractRegex++
	c.mu.Unlock()
}

// IncExtractScan records a form extracted by the line-scan fallback.
func (c *Collector) IncExtractScan() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.extractScan++
	c.mu.Unlock()
}

// IncExtractMiss records output with no extractable form.
func (c *Collector) IncExtractMiss() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.extractMiss++
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all counters.
// The Collector can continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		TestsStarted: c.testsStarted,
		TestsPassed:  c.testsPassed,
		TestsFailed:  c.testsFailed,

		SetupFailures: c.setupFailures,
		CacheHits:     c.cacheHits,
		CacheMisses:   c.cacheMisses,

		PlayerLaunchSuccess: c.playerLaunchSuccess,
		PlayerLaunchFailure: c.playerLaunchFailure,
		PlayerTimeouts:      c.playerTimeouts,

		ExtractRegex: c.extractRegex,
		ExtractScan:  c.extractScan,
		ExtractMiss:  c.extractMiss,

		Domain: c.domain,
		AppID:  c.appID,
	}
}
