package mapstream

import "math/bits"

// Chunk size limits, as shifts.
//
// The default follows the address width: a 64-bit process can afford 1 GiB
// chunks, a 32-bit one 512 MiB. The maximum keeps a chunk length
// representable as an int (mapped regions are Go slices).
const (
	DefaultChunkShift = 29 + bits.UintSize/64

	MinChunkShift = 4

	MaxChunkShift = 30 + (bits.UintSize/64)*10
)

// DefaultShadowCapacity is the default number of soft-evicted chunks kept
// mapped for resurrection.
const DefaultShadowCapacity = 4

// Hardcoded implementation limits.
//
// They keep the slot table allocation bounded for tiny chunk sizes over huge
// files. Violations return ErrInvalidArgument.
const (
	// Maximum number of chunk slots in one table.
	maxChunkCount = 1 << 24

	// Maximum shadow cache size.
	maxShadowCapacity = 1 << 16
)
