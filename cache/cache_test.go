package cache_test

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"

	"github.com/crowdsale-xyz/go-crowdsale/cache"
	"github.com/crowdsale-xyz/go-crowdsale/prover"
)

func balances(pairs map[string]uint64) map[string]*uint256.Int {
	out := make(map[string]*uint256.Int, len(pairs))
	for k, v := range pairs {
		out[k] = uint256.NewInt(v)
	}
	return out
}

func TestGetPut(t *testing.T) {
	c := cache.NewProofCache(10)
	table := balances(map[string]uint64{"a": 100, "b": 200})

	if c.Get(table) != nil {
		t.Errorf("unexpected hit on empty cache")
	}

	p := &prover.Proof{TotalSupply: big.NewInt(300)}
	c.Put(table, p)

	if got := c.Get(table); got != p {
		t.Errorf("cached proof not returned")
	}

	// A different balance table misses.
	if c.Get(balances(map[string]uint64{"a": 100, "b": 201})) != nil {
		t.Errorf("hit for a different balance table")
	}
}

func TestGetOrCompute(t *testing.T) {
	c := cache.NewProofCache(10)
	table := balances(map[string]uint64{"a": 1})

	calls := 0
	compute := func() (*prover.Proof, error) {
		calls++
		return &prover.Proof{TotalSupply: big.NewInt(1)}, nil
	}

	if _, err := c.GetOrCompute(table, compute); err != nil {
		t.Fatalf("compute: %v", err)
	}
	if _, err := c.GetOrCompute(table, compute); err != nil {
		t.Fatalf("cached: %v", err)
	}
	if calls != 1 {
		t.Errorf("compute ran %d times, want 1", calls)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit / 1 miss", stats)
	}
}

func TestEviction(t *testing.T) {
	c := cache.NewProofCache(2)
	p := &prover.Proof{}

	c.Put(balances(map[string]uint64{"a": 1}), p)
	c.Put(balances(map[string]uint64{"b": 2}), p)
	c.Put(balances(map[string]uint64{"c": 3}), p)

	if c.Size() != 2 {
		t.Errorf("size = %d, want 2", c.Size())
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("evictions = %d, want 1", c.Stats().Evictions)
	}
}
