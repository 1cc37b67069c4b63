package orchestrator

import (
	"github.com/ethcore/beaconcore/primitives"
	"github.com/ethcore/beaconcore/store"
)

// computeDeltas implements the standard LMD-GHOST delta computation:
// for every validator whose latest message (VoteTracker.NextRoot) moved
// since the last time scores were applied, subtract its weight from the
// node its old vote pointed at and add it to the node its new vote
// points at, using the balance in effect at the time of each vote
// (oldBalances for the subtraction, newBalances for the addition) so a
// validator cannot gain extra weight by voting and then increasing its
// balance before the next score application. Proto-array nodes not yet
// known (a vote for a root outside the tree) are skipped rather than
// erroring, since a late or pruned vote is not itself invalid.
func computeDeltas(
	votes map[primitives.ValidatorIndex]store.VoteTracker,
	indices map[primitives.Bytes32]uint64,
	nodeCount int,
	oldBalances, newBalances []primitives.Gwei,
) ([]int64, map[primitives.ValidatorIndex]store.VoteTracker) {
	deltas := make([]int64, nodeCount)
	next := make(map[primitives.ValidatorIndex]store.VoteTracker, len(votes))

	for v, vote := range votes {
		if vote.CurrentRoot == vote.NextRoot {
			next[v] = vote
			continue
		}

		oldBalance := balanceOf(oldBalances, v)
		newBalance := balanceOf(newBalances, v)

		if !vote.CurrentRoot.IsZero() {
			if idx, ok := indices[vote.CurrentRoot]; ok {
				deltas[idx] -= int64(oldBalance)
			}
		}
		if !vote.NextRoot.IsZero() {
			if idx, ok := indices[vote.NextRoot]; ok {
				deltas[idx] += int64(newBalance)
			}
		}

		vote.CurrentRoot = vote.NextRoot
		next[v] = vote
	}
	return deltas, next
}

func balanceOf(balances []primitives.Gwei, v primitives.ValidatorIndex) primitives.Gwei {
	if uint64(v) >= uint64(len(balances)) {
		return 0
	}
	return balances[v]
}
