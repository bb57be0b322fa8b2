package shape

import (
	"math/bits"

	"github.com/gridkit/compute/element"
)

// faceCount is the fixed expansion factor for cube-style shapes.
const faceCount = 6

// levelsForDim returns how many mip levels a single extent needs to
// reach 1: ceil(log2(d))+1. A zero extent needs none.
func levelsForDim(d uint32) int {
	if d == 0 {
		return 0
	}
	return bits.Len32(d-1) + 1
}

// computeLayout derives the level table for one mip chain. Each level
// records the current extents and the running byte offset, then every
// extent halves (floor, clamped to 1; zero stays zero) for the next.
// The offset past the last level is the mip-chain size. The six-face
// expansion is applied by the caller.
func computeLayout(e *element.Element, x, y, z uint32, mip bool) (levels []Level, mipChainSize uint64) {
	count := 1
	if mip {
		count = levelsForDim(x)
		if n := levelsForDim(y); n > count {
			count = n
		}
		if n := levelsForDim(z); n > count {
			count = n
		}
	}

	elemSize := uint64(e.SizeBytes())
	levels = make([]Level, count)
	tx, ty, tz := x, y, z
	var offset uint64
	for i := range levels {
		levels[i] = Level{X: tx, Y: ty, Z: tz, Offset: offset}
		offset += uint64(tx) * uint64(max(ty, 1)) * uint64(max(tz, 1)) * elemSize
		if tx > 1 {
			tx >>= 1
		}
		if ty > 1 {
			ty >>= 1
		}
		if tz > 1 {
			tz >>= 1
		}
	}
	return levels, offset
}
