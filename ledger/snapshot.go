package ledger

import "github.com/holiman/uint256"

// Snapshot is a consistent value copy of the ledger state, safe to read
// and serialize after the originating call returns.
type Snapshot struct {
	Owner       string                              `json:"owner"`
	TotalSupply *uint256.Int                        `json:"totalSupply"`
	SaleCap     *uint256.Int                        `json:"saleCap"`
	MaxCap      *uint256.Int                        `json:"maxCap"`
	Price       *uint256.Int                        `json:"price,omitempty"`
	Policy      string                              `json:"policy"`
	Balances    map[string]*uint256.Int             `json:"balances"`
	Allowances  map[string]map[string]*uint256.Int  `json:"allowances,omitempty"`
}

// Snapshot returns a deep copy of the current state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := Snapshot{
		Owner:       l.owner,
		TotalSupply: l.totalSupply.Clone(),
		SaleCap:     l.saleCap.Clone(),
		MaxCap:      l.maxCap.Clone(),
		Policy:      l.policy.String(),
		Balances:    make(map[string]*uint256.Int, len(l.balances)),
	}
	if l.price != nil {
		snap.Price = l.price.Clone()
	}
	for p, b := range l.balances {
		snap.Balances[p] = b.Clone()
	}
	if len(l.allowances) > 0 {
		snap.Allowances = make(map[string]map[string]*uint256.Int, len(l.allowances))
		for owner, row := range l.allowances {
			copied := make(map[string]*uint256.Int, len(row))
			for spender, a := range row {
				copied[spender] = a.Clone()
			}
			snap.Allowances[owner] = copied
		}
	}
	return snap
}
