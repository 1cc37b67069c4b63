package transition

import (
	"github.com/ethcore/beaconcore/containers"
	"github.com/ethcore/beaconcore/primitives"
)

// increaseBalance adds delta to validator index's balance.
func increaseBalance(s *containers.BeaconState, index primitives.ValidatorIndex, delta primitives.Gwei) {
	s.Balances[index] += delta
}

// decreaseBalance subtracts delta from validator index's balance,
// clamping at zero rather than underflowing (spec.md §4.E step 2:
// "balance never underflows").
func decreaseBalance(s *containers.BeaconState, index primitives.ValidatorIndex, delta primitives.Gwei) {
	s.Balances[index] = s.Balances[index].SatSub(delta)
}
