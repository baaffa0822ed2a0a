// Package pool packs string and numeric literals into arena memory and
// hands out literal offsets that instructions use as operand references.
//
// Strings and numbers share a single offset space. Offsets are dense,
// assigned in append order, and never recomputed: an offset returned by
// DumpStrings or DumpNums keeps resolving to the same value until the
// backing arena is torn down.
//
// String entries are stored length-prefixed ([len:u16][bytes...]); numeric
// entries are fixed-width big-endian IEEE-754 float64 values.
package pool

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/chazu/slotvm/pkg/mem"
)

// Offset addresses a literal in the pool.
type Offset uint16

// MaxEntries caps the pool so the next free offset always fits an Offset.
const MaxEntries = math.MaxUint16

// NumWidth is the encoded width of a numeric entry in bytes.
const NumWidth = 8

// EntryKind tags a pool entry.
type EntryKind uint8

const (
	KindString EntryKind = 1
	KindNumber EntryKind = 2
)

// String returns a human-readable name for the kind.
func (k EntryKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	default:
		return fmt.Sprintf("EntryKind(%d)", k)
	}
}

var (
	// ErrLayout reports a dump whose placement or counts are inconsistent.
	ErrLayout = errors.New("pool: invalid layout")

	// ErrNoEntry is returned when looking up an offset nothing was dumped at.
	ErrNoEntry = errors.New("pool: no entry at offset")

	// ErrKindMismatch is returned when an offset is read as the wrong kind.
	ErrKindMismatch = errors.New("pool: entry kind mismatch")
)

type entry struct {
	kind  EntryKind
	block mem.Block // encoded bytes, length prefix excluded for strings
}

// Entry is a decoded snapshot of one literal.
type Entry struct {
	Offset Offset
	Kind   EntryKind
	Str    string
	Num    float64
}

// Pool is an append-only literal store. It is built once before execution
// and read-only while programs run. A Pool is not safe for concurrent use.
type Pool struct {
	arena   *mem.Arena
	entries []entry
}

// New returns an empty pool that allocates from arena.
func New(arena *mem.Arena) *Pool {
	return &Pool{arena: arena}
}

// Len returns the number of literal offsets handed out, which is also the
// next free offset.
func (p *Pool) Len() int { return len(p.entries) }

// Next returns the next free offset.
func (p *Pool) Next() Offset { return Offset(len(p.entries)) }

// DumpStrings appends strs in order and returns the offset of the first
// appended entry. Entry i of strs lives at base+i.
func (p *Pool) DumpStrings(strs []string) (Offset, error) {
	base := len(p.entries)
	if base+len(strs) > MaxEntries {
		return 0, fmt.Errorf("%w: %d strings at offset %d overflow the pool", ErrLayout, len(strs), base)
	}

	size := 0
	for i, s := range strs {
		if len(s) > math.MaxUint16 {
			return 0, fmt.Errorf("%w: string %d is %d bytes, max %d", ErrLayout, i, len(s), math.MaxUint16)
		}
		size += 2 + len(s)
	}

	blob, err := p.arena.Alloc(size)
	if err != nil {
		return 0, err
	}
	buf := p.arena.Bytes(blob)

	pos := 0
	for _, s := range strs {
		binary.BigEndian.PutUint16(buf[pos:], uint16(len(s)))
		pos += 2
		copy(buf[pos:], s)
		p.entries = append(p.entries, entry{
			kind:  KindString,
			block: mem.Block{Offset: blob.Offset + pos, Len: len(s)},
		})
		pos += len(s)
	}
	return Offset(base), nil
}

// DumpNums appends the first count values of nums as numeric entries at
// offsets start+stride, start+stride+1, and so on, and returns the next free
// offset. stride is the number of offsets the caller has already consumed
// after start, typically the number of strings a preceding DumpStrings call
// placed at start. The placement must continue the pool exactly: it may not
// overlap an existing entry or leave a gap.
func (p *Pool) DumpNums(nums []float64, count int, start Offset, stride int) (Offset, error) {
	if count < 0 || count > len(nums) {
		return 0, fmt.Errorf("%w: count %d with %d numbers", ErrLayout, count, len(nums))
	}
	if stride < 0 {
		return 0, fmt.Errorf("%w: negative stride %d", ErrLayout, stride)
	}

	at := int(start) + stride
	switch {
	case at < len(p.entries):
		return 0, fmt.Errorf("%w: numbers at offset %d collide with %d existing entries", ErrLayout, at, len(p.entries))
	case at > len(p.entries):
		return 0, fmt.Errorf("%w: numbers at offset %d leave a gap after %d entries", ErrLayout, at, len(p.entries))
	case at+count > MaxEntries:
		return 0, fmt.Errorf("%w: %d numbers at offset %d overflow the pool", ErrLayout, count, at)
	}

	blob, err := p.arena.Alloc(count * NumWidth)
	if err != nil {
		return 0, err
	}
	buf := p.arena.Bytes(blob)

	for i, n := range nums[:count] {
		binary.BigEndian.PutUint64(buf[i*NumWidth:], math.Float64bits(n))
		p.entries = append(p.entries, entry{
			kind:  KindNumber,
			block: mem.Block{Offset: blob.Offset + i*NumWidth, Len: NumWidth},
		})
	}
	return Offset(len(p.entries)), nil
}

// Kind reports the kind of the entry at off.
func (p *Pool) Kind(off Offset) (EntryKind, bool) {
	if int(off) >= len(p.entries) {
		return 0, false
	}
	return p.entries[off].kind, true
}

func (p *Pool) lookup(off Offset, want EntryKind) ([]byte, error) {
	if int(off) >= len(p.entries) {
		return nil, fmt.Errorf("%w %d (pool has %d)", ErrNoEntry, off, len(p.entries))
	}
	e := p.entries[off]
	if e.kind != want {
		return nil, fmt.Errorf("%w: offset %d holds a %s, not a %s", ErrKindMismatch, off, e.kind, want)
	}
	return p.arena.Bytes(e.block), nil
}

// String returns the string literal at off.
func (p *Pool) String(off Offset) (string, error) {
	b, err := p.lookup(off, KindString)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// StringLen returns the byte length of the string literal at off without
// copying it out of the arena.
func (p *Pool) StringLen(off Offset) (int, error) {
	b, err := p.lookup(off, KindString)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Number returns the numeric literal at off.
func (p *Pool) Number(off Offset) (float64, error) {
	b, err := p.lookup(off, KindNumber)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// Entries returns a decoded snapshot of every literal in offset order.
func (p *Pool) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	for i, e := range p.entries {
		out[i] = Entry{Offset: Offset(i), Kind: e.kind}
		switch e.kind {
		case KindString:
			out[i].Str = string(p.arena.Bytes(e.block))
		case KindNumber:
			out[i].Num = math.Float64frombits(binary.BigEndian.Uint64(p.arena.Bytes(e.block)))
		}
	}
	return out
}

// Load appends a previously captured snapshot, grouping consecutive runs of
// the same kind into single dumps. The snapshot's offsets must start at the
// pool's next free offset.
func (p *Pool) Load(entries []Entry) error {
	for i := 0; i < len(entries); {
		j := i
		for j < len(entries) && entries[j].Kind == entries[i].Kind {
			if int(entries[j].Offset) != len(p.entries)+(j-i) {
				return fmt.Errorf("%w: snapshot entry %d has offset %d, want %d", ErrLayout, j, entries[j].Offset, len(p.entries)+(j-i))
			}
			j++
		}
		run := entries[i:j]
		switch entries[i].Kind {
		case KindString:
			strs := make([]string, len(run))
			for k, e := range run {
				strs[k] = e.Str
			}
			if _, err := p.DumpStrings(strs); err != nil {
				return err
			}
		case KindNumber:
			nums := make([]float64, len(run))
			for k, e := range run {
				nums[k] = e.Num
			}
			if _, err := p.DumpNums(nums, len(nums), p.Next(), 0); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: snapshot entry %d has unknown kind %d", ErrLayout, i, entries[i].Kind)
		}
		i = j
	}
	return nil
}
