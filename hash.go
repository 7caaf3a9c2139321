package dwarfidx

import "github.com/pkg/errors"

// 2^17 slots: enough for the practical range of symbol counts in a
// single debug session while staying cache-friendly and avoiding a
// rehash during construction (this table never resizes).
const defaultHashCapacity = 1 << 17

type dieHashEntry struct {
	name      string
	tag       uint64
	cu        *CompilationUnit
	dieOffset uint64 // offset of the DIE's abbrev-code ULEB128 within cu.file's .debug_info
	used      bool
}

type hashIndex struct {
	entries []dieHashEntry
	mask    uint32
}

func newHashIndex(capacity int) *hashIndex {
	capacity = nextPowerOfTwo(capacity)
	return &hashIndex{
		entries: make([]dieHashEntry, capacity),
		mask:    uint32(capacity - 1),
	}
}

func nextPowerOfTwo(n int) int {
	if n < 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// djb2 hashes a name the way the index's C ancestor does: seed 5381,
// h = h*33 + c.
func djb2(name string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(name); i++ {
		h = h*33 + uint32(name[i])
	}
	return h
}

// insert treats a probe hitting an existing (tag, name) as a duplicate
// and keeps the first inserted entry; a probe that wraps back to its
// origin means the table is full.
func (h *hashIndex) insert(name string, tag uint64, cu *CompilationUnit, dieOffset uint64) error {
	orig := djb2(name) & h.mask
	i := orig
	for {
		e := &h.entries[i]
		if !e.used {
			e.name = name
			e.tag = tag
			e.cu = cu
			e.dieOffset = dieOffset
			e.used = true
			return nil
		}
		if e.tag == tag && e.name == name {
			return nil
		}
		i = (i + 1) & h.mask
		if i == orig {
			return errors.Wrap(ErrOutOfMemory, "hash table is full")
		}
	}
}

func (h *hashIndex) lookup(name string, tag uint64) (entry dieHashEntry, ok bool) {
	orig := djb2(name) & h.mask
	i := orig
	for {
		e := &h.entries[i]
		if !e.used {
			return dieHashEntry{}, false
		}
		if e.tag == tag && e.name == name {
			return *e, true
		}
		i = (i + 1) & h.mask
		if i == orig {
			return dieHashEntry{}, false
		}
	}
}
