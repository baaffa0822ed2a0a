package bytecode

import (
	"encoding/binary"

	"github.com/chazu/slotvm/pkg/mem"
)

// slotWidth is the size of one slot cell: [tag:1][payload:8].
const slotWidth = 9

// slotTable is a dense array of value cells living in arena memory. A cell
// whose tag byte is zero has not been declared.
type slotTable struct {
	arena *mem.Arena
	block mem.Block
	n     int
}

func newSlotTable(arena *mem.Arena, n int) (slotTable, error) {
	block, err := arena.Alloc(n * slotWidth)
	if err != nil {
		return slotTable{}, err
	}
	return slotTable{arena: arena, block: block, n: n}, nil
}

func (t slotTable) len() int { return t.n }

func (t slotTable) cell(id int) []byte {
	off := id * slotWidth
	return t.arena.Bytes(t.block)[off : off+slotWidth]
}

// get returns the value in slot id and whether the slot is declared.
// id must be in range.
func (t slotTable) get(id int) (Value, bool) {
	c := t.cell(id)
	v := Value{tag: Tag(c[0]), bits: binary.BigEndian.Uint64(c[1:])}
	return v, v.tag != tagUndeclared
}

func (t slotTable) set(id int, v Value) {
	c := t.cell(id)
	c[0] = byte(v.tag)
	binary.BigEndian.PutUint64(c[1:], v.bits)
}
