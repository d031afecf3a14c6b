package prover

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/holiman/uint256"
)

// ErrTooManyBalances is returned when a proof is requested over more
// balances than the circuit has slots.
var ErrTooManyBalances = errors.New("prover: balance count exceeds circuit slots")

// Prover compiles the solvency circuit for a fixed number of balance
// slots and generates Groth16 proofs over it. Compilation and trusted
// setup happen once, in New.
type Prover struct {
	slots int
	cs    constraint.ConstraintSystem
	pk    groth16.ProvingKey
	vk    groth16.VerifyingKey
}

// Proof is a solvency proof together with its public inputs.
type Proof struct {
	// TotalSupply is the public supply the balances sum to.
	TotalSupply *big.Int

	// Commitment is the public MiMC commitment over the balance slots.
	Commitment *big.Int

	proof  groth16.Proof
	public witness.Witness
}

// New compiles the circuit with the given number of balance slots and
// runs the trusted setup. Slot count is fixed per prover; shorter
// balance sets are zero-padded.
func New(slots int) (*Prover, error) {
	if slots <= 0 {
		return nil, fmt.Errorf("prover: slots must be positive, got %d", slots)
	}
	circuit := &SolvencyCircuit{Balances: make([]frontend.Variable, slots)}
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, fmt.Errorf("prover: compile circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, fmt.Errorf("prover: setup: %w", err)
	}
	return &Prover{slots: slots, cs: cs, pk: pk, vk: vk}, nil
}

// Slots returns the circuit's balance slot count.
func (p *Prover) Slots() int { return p.slots }

// ProveSolvency proves that balances sum to totalSupply. The commitment
// is computed here and carried in the proof's public inputs.
func (p *Prover) ProveSolvency(balances []*uint256.Int, totalSupply *uint256.Int) (*Proof, error) {
	if len(balances) > p.slots {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyBalances, len(balances), p.slots)
	}
	padded := pad(balances, p.slots)
	commitment, err := Commitment(balances, p.slots)
	if err != nil {
		return nil, err
	}

	supplyElem := toElement(totalSupply)
	assignment := &SolvencyCircuit{
		Balances:    make([]frontend.Variable, p.slots),
		TotalSupply: supplyElem.BigInt(new(big.Int)),
		Commitment:  commitment,
	}
	for i, b := range padded {
		e := toElement(b)
		assignment.Balances[i] = e.BigInt(new(big.Int))
	}

	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("prover: witness: %w", err)
	}
	proof, err := groth16.Prove(p.cs, p.pk, w)
	if err != nil {
		return nil, fmt.Errorf("prover: prove: %w", err)
	}
	public, err := w.Public()
	if err != nil {
		return nil, fmt.Errorf("prover: public witness: %w", err)
	}
	return &Proof{
		TotalSupply: supplyElem.BigInt(new(big.Int)),
		Commitment:  commitment,
		proof:       proof,
		public:      public,
	}, nil
}

// VerifySolvency checks a proof against this prover's verifying key.
func (p *Prover) VerifySolvency(proof *Proof) error {
	if err := groth16.Verify(proof.proof, p.vk, proof.public); err != nil {
		return fmt.Errorf("prover: verify: %w", err)
	}
	return nil
}

// Commitment computes the MiMC commitment over balances zero-padded to
// slots, matching the in-circuit hash.
func Commitment(balances []*uint256.Int, slots int) (*big.Int, error) {
	if len(balances) > slots {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyBalances, len(balances), slots)
	}
	h := mimc.NewMiMC()
	for _, b := range pad(balances, slots) {
		e := toElement(b)
		eb := e.Bytes()
		if _, err := h.Write(eb[:]); err != nil {
			return nil, fmt.Errorf("prover: commitment: %w", err)
		}
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out.BigInt(new(big.Int)), nil
}

// pad extends balances to length slots with zeros.
func pad(balances []*uint256.Int, slots int) []*uint256.Int {
	out := make([]*uint256.Int, slots)
	for i := range out {
		if i < len(balances) && balances[i] != nil {
			out[i] = balances[i]
		} else {
			out[i] = uint256.NewInt(0)
		}
	}
	return out
}

// toElement reduces x into the BN254 scalar field.
func toElement(x *uint256.Int) fr.Element {
	var e fr.Element
	b := x.Bytes32()
	e.SetBytes(b[:])
	return e
}
