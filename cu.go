package dwarfidx

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// CompilationUnit is one compile unit's worth of DWARF, as discovered by
// walking .debug_info.
type CompilationUnit struct {
	file *File

	Offset uint64 // byte offset within file's .debug_info

	unitLength        uint64
	Version           uint16
	DebugAbbrevOffset uint64
	AddressSize       uint8
	Is64Bit           bool

	abbrevDecls []abbrevDecl
}

func (cu *CompilationUnit) File() *File { return cu.file }

func (cu *CompilationUnit) headerSize() int {
	if cu.Is64Bit {
		return 23
	}
	return 11
}

func (cu *CompilationUnit) end() uint64 {
	lengthFieldSize := uint64(4)
	if cu.Is64Bit {
		lengthFieldSize = 12
	}
	return cu.Offset + lengthFieldSize + cu.unitLength
}

func readCompilationUnitHeader(buf []byte, ptr int, end int) (cu *CompilationUnit, err error) {
	e := binary.LittleEndian
	cu = &CompilationUnit{Offset: uint64(ptr)}

	if ptr+4 > end {
		return nil, ErrEOF
	}
	tmp := e.Uint32(buf[ptr:])
	ptr += 4
	cu.Is64Bit = tmp == 0xffffffff
	if cu.Is64Bit {
		if ptr+8 > end {
			return nil, ErrEOF
		}
		cu.unitLength = e.Uint64(buf[ptr:])
		ptr += 8
	} else {
		cu.unitLength = uint64(tmp)
	}

	if ptr+2 > end {
		return nil, ErrEOF
	}
	cu.Version = e.Uint16(buf[ptr:])
	ptr += 2
	if cu.Version != 2 && cu.Version != 3 && cu.Version != 4 {
		return nil, errors.Wrapf(ErrDwarfFormat, "unknown DWARF version %d", cu.Version)
	}

	if cu.Is64Bit {
		if ptr+8 > end {
			return nil, ErrEOF
		}
		cu.DebugAbbrevOffset = e.Uint64(buf[ptr:])
		ptr += 8
	} else {
		if ptr+4 > end {
			return nil, ErrEOF
		}
		cu.DebugAbbrevOffset = uint64(e.Uint32(buf[ptr:]))
		ptr += 4
	}

	if ptr+1 > end {
		return nil, ErrEOF
	}
	cu.AddressSize = buf[ptr]

	return cu, nil
}

func readCUs(f *File) (err error) {
	info := f.debugInfo.buf
	abbrev := f.debugAbbrev.buf

	ptr := 0
	for ptr < len(info) {
		cu, err := readCompilationUnitHeader(info, ptr, len(info))
		if err != nil {
			return err
		}
		cu.file = f

		if cu.DebugAbbrevOffset > uint64(len(abbrev)) {
			return errors.Wrapf(ErrDwarfFormat, "%s: debug_abbrev_offset %d out of range", f.path, cu.DebugAbbrevOffset)
		}
		decls, err := readAbbrevTable(abbrev, int(cu.DebugAbbrevOffset), len(abbrev), cu)
		if err != nil {
			return err
		}
		cu.abbrevDecls = decls

		f.cus = append(f.cus, cu)
		ptr = int(cu.end())
	}
	return nil
}
