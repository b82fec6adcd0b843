package location

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"absint/internal/variable"
)

// ScalarVar is the deterministic factory DESIGN NOTES demands: the same
// (base, offset, size, kind) tuple must always hash and compare equal
// through its scalar variable, or summary composition (section 4.11) could
// never equate a caller's write with a callee's read of the same cell.
//
// The tuple is hashed with blake2b (rather than Go's built-in map hashing,
// which is randomized per process and therefore useless for this
// cross-call determinism requirement) and the first 8 bytes of the digest,
// read big-endian, become the synthetic variable's id.
func ScalarVar(c Cell) variable.Variable {
	var buf [32]byte
	n := 0
	idx := c.Base.Index()
	binary.BigEndian.PutUint64(buf[n:], idx)
	n += 8
	off := c.Offset.BigInt().Bytes()
	binary.BigEndian.PutUint64(buf[n:], uint64(len(off)))
	n += 8
	digestInput := append(append([]byte{}, buf[:n]...), off...)
	digestInput = append(digestInput, byte(c.Size), byte(c.Size>>8), byte(c.Size>>16), byte(c.Size>>24))
	digestInput = append(digestInput, byte(c.Kind))

	sum := blake2b.Sum256(digestInput)
	id := binary.BigEndian.Uint64(sum[:8])

	width := c.Size * 8
	if width == 0 {
		width = 8
	}
	return variable.NewSynthetic(id, uint(width), 0)
}
