package transition

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/ethcore/beaconcore/containers"
	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
)

// shuffleRoundCount is the number of swap-or-not shuffle rounds phase-0
// uses to derive committee order from a seed (SPEC_FULL.md §4.E
// supplement: committee/proposer selection, folded by spec.md into the
// "domain data model" line item without naming the shuffle itself).
const shuffleRoundCount = 90

// maxRandomByte is the rejection-sampling ceiling compute_proposer_index
// uses when weighting candidates by effective balance.
const maxRandomByte = 255

// computeShuffledIndex implements the "swap or not" shuffle: index is
// repeatedly paired with its mirror across a pivot derived from
// hash(seed || round), and swapped when a derived bit says to.
func computeShuffledIndex(index, indexCount uint64, seed primitives.Bytes32) uint64 {
	for round := byte(0); round < shuffleRoundCount; round++ {
		pivot := hashSeedRound(seed, round, nil) % indexCount
		flip := (pivot + indexCount - index) % indexCount
		position := index
		if flip > position {
			position = flip
		}
		source := hashSeedRoundPosition(seed, round, position/256)
		byteVal := source[(position%256)/8]
		bit := (byteVal >> (position % 8)) & 1
		if bit == 1 {
			index = flip
		}
	}
	return index
}

func hashSeedRound(seed primitives.Bytes32, round byte, extra []byte) uint64 {
	h := sha256.New()
	h.Write(seed[:])
	h.Write([]byte{round})
	h.Write(extra)
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8])
}

func hashSeedRoundPosition(seed primitives.Bytes32, round byte, positionDiv256 uint64) []byte {
	h := sha256.New()
	h.Write(seed[:])
	h.Write([]byte{round})
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(positionDiv256))
	h.Write(buf[:])
	return h.Sum(nil)
}

// computeProposerIndex implements compute_proposer_index: repeatedly
// draws a candidate from indices (shuffled by an incrementing counter
// folded into the seed) and accepts it with probability proportional to
// its effective balance, using rejection sampling against a single
// random byte per draw.
func computeProposerIndex(s *containers.BeaconState, indices []primitives.ValidatorIndex, seed primitives.Bytes32, cfg *params.SpecConfig) (primitives.ValidatorIndex, error) {
	if len(indices) == 0 {
		return 0, errEmptyIndices
	}
	total := uint64(len(indices))
	i := uint64(0)
	for {
		candidateIndex := indices[computeShuffledIndex(i%total, total, seed)]
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], i/32)
		h := sha256.Sum256(append(append([]byte{}, seed[:]...), buf[:]...))
		randomByte := h[i%32]
		effectiveBalance := s.Validators[candidateIndex].EffectiveBalance
		if uint64(effectiveBalance)*maxRandomByte >= cfg.MaxEffectiveBalance*uint64(randomByte) {
			return candidateIndex, nil
		}
		i++
	}
}

// computeCommittee returns the subset of the shuffled index slice
// belonging to committee `index` of `count` equally sized committees.
func computeCommittee(indices []primitives.ValidatorIndex, seed primitives.Bytes32, index, count uint64) []primitives.ValidatorIndex {
	n := uint64(len(indices))
	start := (n * index) / count
	end := (n * (index + 1)) / count
	out := make([]primitives.ValidatorIndex, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, indices[computeShuffledIndex(i, n, seed)])
	}
	return out
}
