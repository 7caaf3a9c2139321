package dwarfidx

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// readSections validates the ELF header, locates the section header
// table and section-name string table, and fills in f.symtab,
// f.debugAbbrev/debugInfo/debugStr and their .rela counterparts.
func readSections(f *File) (err error) {
	data := f.data
	if len(data) < eiNident {
		return errors.Wrapf(ErrELFFormat, "%s: not an ELF file", f.path)
	}
	if data[eiMag0] != elfMag0 || data[eiMag1] != elfMag1 || data[eiMag2] != elfMag2 || data[eiMag3] != elfMag3 {
		return errors.Wrapf(ErrELFFormat, "%s: not an ELF file", f.path)
	}
	if data[eiVersion] != evCurrent {
		return errors.Wrapf(ErrELFFormat, "%s: ELF version %d is not EV_CURRENT", f.path, data[eiVersion])
	}
	if data[eiData] != elfData2LSB {
		// The host this package is built for is little-endian; a
		// big-endian object is a correct-but-unsupported input.
		return errors.Wrapf(ErrNotImplemented, "%s: ELF file endianness does not match host", f.path)
	}
	if data[eiClass] == elfClass32 {
		return errors.Wrapf(ErrNotImplemented, "%s: 32-bit ELF is not implemented", f.path)
	}
	if data[eiClass] != elfClass64 {
		return errors.Wrapf(ErrELFFormat, "%s: unknown ELF class %d", f.path, data[eiClass])
	}
	if len(data) < elf64EhdrSize {
		return errors.Wrapf(ErrELFFormat, "%s: ELF header is truncated", f.path)
	}

	e := binary.LittleEndian
	eShoff := e.Uint64(data[0x28:])
	eShentsize := e.Uint16(data[0x3a:])
	eShnum := e.Uint16(data[0x3c:])
	eShstrndx := e.Uint16(data[0x3e:])

	if eShnum == 0 {
		return errors.Wrapf(ErrELFFormat, "%s: ELF file has no sections", f.path)
	}
	if uint64(eShentsize) != elf64ShdrSize {
		return errors.Wrapf(ErrELFFormat, "%s: unexpected section header size %d", f.path, eShentsize)
	}
	shTableSize := uint64(elf64ShdrSize) * uint64(eShnum)
	if eShoff > math.MaxUint64-shTableSize || eShoff+shTableSize > uint64(len(data)) {
		return errors.Wrapf(ErrELFFormat, "%s: ELF section header table is beyond EOF", f.path)
	}

	shdr := func(i uint16) []byte {
		off := eShoff + uint64(i)*elf64ShdrSize
		return data[off : off+elf64ShdrSize]
	}
	shName := func(s []byte) uint32 { return e.Uint32(s[0x00:]) }
	shType := func(s []byte) uint32 { return e.Uint32(s[0x04:]) }
	shOffset := func(s []byte) uint64 { return e.Uint64(s[0x18:]) }
	shSize := func(s []byte) uint64 { return e.Uint64(s[0x20:]) }
	shLink := func(s []byte) uint32 { return e.Uint32(s[0x28:]) }
	shInfo := func(s []byte) uint32 { return e.Uint32(s[0x2c:]) }

	validate := func(s []byte) error {
		off, size := shOffset(s), shSize(s)
		if off > math.MaxUint64-size || off+size > uint64(len(data)) {
			return errors.Wrapf(ErrELFFormat, "%s: ELF section is beyond EOF", f.path)
		}
		return nil
	}

	shstrndx := eShstrndx
	if shstrndx == shnXindex {
		shstrndx = uint16(shLink(shdr(0)))
	}
	if shstrndx == shnUndef || shstrndx >= eShnum {
		return errors.Wrapf(ErrELFFormat, "%s: invalid section header string table index", f.path)
	}
	shstrtabHdr := shdr(shstrndx)
	if err = validate(shstrtabHdr); err != nil {
		return err
	}
	shstrtabOff, shstrtabSize := shOffset(shstrtabHdr), shSize(shstrtabHdr)
	shstrtab := data[shstrtabOff : shstrtabOff+shstrtabSize]

	sectionName := func(s []byte) (string, bool) {
		nameOff := shName(s)
		if nameOff == 0 || uint64(nameOff) >= shstrtabSize {
			return "", false
		}
		rest := shstrtab[nameOff:]
		nul := bytes.IndexByte(rest, 0)
		if nul == -1 {
			return "", false
		}
		return string(rest[:nul]), true
	}

	for i := uint16(0); i < eShnum; i++ {
		s := shdr(i)
		var target *section
		switch shType(s) {
		case shtProgbits:
			name, ok := sectionName(s)
			if !ok {
				continue
			}
			switch name {
			case ".debug_abbrev":
				target = &f.debugAbbrev
			case ".debug_info":
				target = &f.debugInfo
			case ".debug_str":
				target = &f.debugStr
			default:
				continue
			}
		case shtSymtab:
			if f.symtab.buf != nil {
				continue
			}
			target = &f.symtab
		default:
			continue
		}
		if err = validate(s); err != nil {
			return err
		}
		off, size := shOffset(s), shSize(s)
		target.shdrIndex = i
		target.buf = data[off : off+size]
	}

	if f.symtab.buf == nil {
		return errors.Wrapf(ErrDwarfFormat, "%s: missing .symtab", f.path)
	}
	for name, sec := range map[string]*section{
		".debug_abbrev": &f.debugAbbrev,
		".debug_info":   &f.debugInfo,
		".debug_str":    &f.debugStr,
	} {
		if sec.buf == nil {
			return errors.Wrapf(ErrDwarfFormat, "%s: missing %s", f.path, name)
		}
	}

	for i := uint16(0); i < eShnum; i++ {
		s := shdr(i)
		if shType(s) != shtRela {
			continue
		}
		info := uint16(shInfo(s))
		var target *section
		var have *bool
		switch info {
		case f.debugAbbrev.shdrIndex:
			target, have = &f.relaAbbrev, &f.haveRelaAbbrev
		case f.debugInfo.shdrIndex:
			target, have = &f.relaInfo, &f.haveRelaInfo
		case f.debugStr.shdrIndex:
			target, have = &f.relaStr, &f.haveRelaStr
		default:
			continue
		}
		if uint16(shLink(s)) != f.symtab.shdrIndex {
			return errors.Wrapf(ErrELFFormat, "%s: relocation symbol table section is not .symtab", f.path)
		}
		if err = validate(s); err != nil {
			return err
		}
		off, size := shOffset(s), shSize(s)
		target.shdrIndex = i
		target.buf = data[off : off+size]
		*have = true
	}
	return nil
}
