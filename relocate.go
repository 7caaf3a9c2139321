package dwarfidx

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// applyRelocations patches target's bytes in-place using rela's packed
// Elf64_Rela records and symtab's Elf64_Sym records. Only R_X86_64_NONE/32/64
// are supported; anything else is ErrNotImplemented.
func applyRelocations(f *File, target *section, rela *section, symtab *section) (err error) {
	if rela.buf == nil {
		return nil
	}
	e := binary.LittleEndian

	numRelocs := len(rela.buf) / elf64RelaSize
	numSyms := len(symtab.buf) / elf64SymSize

	symValue := func(idx uint32) uint64 {
		off := int(idx) * elf64SymSize
		return e.Uint64(symtab.buf[off+8:])
	}

	for i := 0; i < numRelocs; i++ {
		r := rela.buf[i*elf64RelaSize : (i+1)*elf64RelaSize]
		rOffset := e.Uint64(r[0:8])
		rInfo := e.Uint64(r[8:16])
		rAddend := int64(e.Uint64(r[16:24]))

		rSym := uint32(rInfo >> 32)
		rType := uint32(rInfo & 0xffffffff)

		switch rType {
		case rX86_64None:
			continue
		case rX86_64_32:
			if rSym >= uint32(numSyms) {
				return errors.Wrapf(ErrELFFormat, "%s: invalid relocation symbol", f.path)
			}
			if rOffset > math.MaxUint64-4 || rOffset+4 > uint64(len(target.buf)) {
				return errors.Wrapf(ErrELFFormat, "%s: invalid relocation offset", f.path)
			}
			value := uint32(symValue(rSym)) + uint32(rAddend)
			e.PutUint32(target.buf[rOffset:], value)
		case rX86_64_64:
			if rSym >= uint32(numSyms) {
				return errors.Wrapf(ErrELFFormat, "%s: invalid relocation symbol", f.path)
			}
			if rOffset > math.MaxUint64-8 || rOffset+8 > uint64(len(target.buf)) {
				return errors.Wrapf(ErrELFFormat, "%s: invalid relocation offset", f.path)
			}
			value := symValue(rSym) + uint64(rAddend)
			e.PutUint64(target.buf[rOffset:], value)
		default:
			return errors.Wrapf(ErrNotImplemented, "%s: unimplemented relocation type %d", f.path, rType)
		}
	}
	return nil
}
