// Package prover produces zero-knowledge solvency proofs for the token
// ledger: a Groth16 proof that a set of secret balances sums to the
// published total supply and matches a MiMC commitment, without
// revealing the balances themselves.
package prover

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// SolvencyCircuit proves sum(Balances) == TotalSupply and
// MiMC(Balances...) == Commitment. The balance slots are secret; the
// supply and the commitment are public.
type SolvencyCircuit struct {
	Balances []frontend.Variable

	TotalSupply frontend.Variable `gnark:",public"`
	Commitment  frontend.Variable `gnark:",public"`
}

// Define declares the circuit constraints.
func (c *SolvencyCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	sum := frontend.Variable(0)
	for _, b := range c.Balances {
		sum = api.Add(sum, b)
		h.Write(b)
	}
	api.AssertIsEqual(sum, c.TotalSupply)
	api.AssertIsEqual(h.Sum(), c.Commitment)
	return nil
}
