package ssz

import (
	bitfield "github.com/OffchainLabs/go-bitfield"
)

// bitlistBitLen returns the logical bit length encoded in a BitList's
// raw SSZ bytes (the position of the terminating sentinel bit),
// delegating to go-bitfield for BitVector/BitList manipulation.
func bitlistBitLen(data []byte) uint64 {
	return bitfield.Bitlist(data).Len()
}

// NewBitlist returns the raw SSZ encoding (bits LSB-first plus the
// terminating sentinel bit) of an all-zero BitList of the given length.
func NewBitlist(length uint64) []byte {
	return []byte(bitfield.NewBitlist(length))
}
