// Package cache provides memoization for solvency proofs. Proof
// generation runs a Groth16 prover, so repeated requests against an
// unchanged balance table should not pay for it twice.
package cache

import (
	"crypto/sha256"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"github.com/crowdsale-xyz/go-crowdsale/prover"
)

// ProofCache caches solvency proofs keyed by a hash of the balance
// table. When the cache is full an arbitrary entry is evicted; the
// cache does not track access order.
type ProofCache struct {
	mu        sync.RWMutex
	cache     map[string]*prover.Proof
	maxSize   int
	hits      int64
	misses    int64
	evictions int64
}

// NewProofCache creates a cache with the given maximum size. Set
// maxSize to 0 for an unbounded cache.
func NewProofCache(maxSize int) *ProofCache {
	return &ProofCache{
		cache:   make(map[string]*prover.Proof),
		maxSize: maxSize,
	}
}

// hashBalances creates a deterministic hash of a balance table.
func hashBalances(balances map[string]*uint256.Int) string {
	keys := make([]string, 0, len(balances))
	for k := range balances {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		b := balances[k].Bytes32()
		h.Write(b[:])
	}
	return string(h.Sum(nil))
}

// Get retrieves a cached proof for the given balance table. Returns nil
// if not found.
func (c *ProofCache) Get(balances map[string]*uint256.Int) *prover.Proof {
	key := hashBalances(balances)

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.cache[key]; ok {
		c.hits++
		return p
	}
	c.misses++
	return nil
}

// Put stores a proof.
func (c *ProofCache) Put(balances map[string]*uint256.Int, p *prover.Proof) {
	key := hashBalances(balances)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize > 0 && len(c.cache) >= c.maxSize {
		for k := range c.cache {
			delete(c.cache, k)
			c.evictions++
			break
		}
	}
	c.cache[key] = p
}

// GetOrCompute retrieves from the cache or computes and caches the
// proof. Failed computations are not cached.
func (c *ProofCache) GetOrCompute(balances map[string]*uint256.Int, compute func() (*prover.Proof, error)) (*prover.Proof, error) {
	if p := c.Get(balances); p != nil {
		return p, nil
	}
	p, err := compute()
	if err != nil {
		return nil, err
	}
	c.Put(balances, p)
	return p, nil
}

// Clear removes all entries.
func (c *ProofCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*prover.Proof)
}

// Size returns the current number of cached proofs.
func (c *ProofCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Stats reports cache effectiveness.
type Stats struct {
	Size      int
	MaxSize   int
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64
}

// Stats returns cache statistics.
func (c *ProofCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Size:      len(c.cache),
		MaxSize:   c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		HitRate:   hitRate,
	}
}
