package dwarfidx

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Sibling jumping makes this ~linear in the number of top-level DIEs
// rather than in the number of all DIEs in the CU: a DW_AT_sibling on a
// structure or subprogram lets the walk skip its entire nested subtree.
func indexCU(idx *hashIndex, cu *CompilationUnit) (err error) {
	info := cu.file.debugInfo.buf
	debugStr := cu.file.debugStr.buf

	ptr := int(cu.Offset) + cu.headerSize()
	end := int(cu.end())
	e := binary.LittleEndian

	depth := 0
	for {
		dieOffset := ptr

		code, next, err := readULEB128(info, ptr, end)
		if err != nil {
			return err
		}
		ptr = next
		if code == 0 {
			depth--
			if depth == 0 {
				break
			}
			continue
		}
		if code < 1 || code > uint64(len(cu.abbrevDecls)) {
			return errors.Wrapf(ErrDwarfFormat, "unknown abbreviation code %d", code)
		}
		decl := &cu.abbrevDecls[code-1]

		var name *string
		var sibling int = -1

		cmds := decl.cmds
		for ci := 0; ci < len(cmds); {
			cmd := cmds[ci]
			ci++
			if cmd == 0 {
				break
			}

			switch {
			case cmd < attribMinCmd:
				skip := int(cmd)
				if ptr+skip > end {
					return ErrEOF
				}
				ptr += skip

			case cmd == attribBlock1:
				if ptr+1 > end {
					return ErrEOF
				}
				skip := int(info[ptr])
				ptr++
				if ptr+skip > end {
					return ErrEOF
				}
				ptr += skip

			case cmd == attribBlock2:
				if ptr+2 > end {
					return ErrEOF
				}
				skip := int(e.Uint16(info[ptr:]))
				ptr += 2
				if ptr+skip > end {
					return ErrEOF
				}
				ptr += skip

			case cmd == attribBlock4:
				if ptr+4 > end {
					return ErrEOF
				}
				skip := int(e.Uint32(info[ptr:]))
				ptr += 4
				if ptr+skip > end {
					return ErrEOF
				}
				ptr += skip

			case cmd == attribExprloc:
				skip, next, err := readULEB128(info, ptr, end)
				if err != nil {
					return err
				}
				ptr = next
				if ptr+int(skip) > end {
					return ErrEOF
				}
				ptr += int(skip)

			case cmd == attribLEB128:
				next, err := skipLEB128(info, ptr, end)
				if err != nil {
					return err
				}
				ptr = next

			case cmd == attribString || cmd == attribNameString:
				if ptr >= end {
					return ErrEOF
				}
				nul := bytes.IndexByte(info[ptr:end], 0)
				if nul == -1 {
					return ErrEOF
				}
				if cmd == attribNameString {
					s := string(info[ptr : ptr+nul])
					name = &s
				}
				ptr += nul + 1

			case cmd == attribSiblingRef1, cmd == attribSiblingRef2,
				cmd == attribSiblingRef4, cmd == attribSiblingRef8,
				cmd == attribSiblingRefUdata:
				var off uint64
				switch cmd {
				case attribSiblingRef1:
					if ptr+1 > end {
						return ErrEOF
					}
					off = uint64(info[ptr])
					ptr++
				case attribSiblingRef2:
					if ptr+2 > end {
						return ErrEOF
					}
					off = uint64(e.Uint16(info[ptr:]))
					ptr += 2
				case attribSiblingRef4:
					if ptr+4 > end {
						return ErrEOF
					}
					off = uint64(e.Uint32(info[ptr:]))
					ptr += 4
				case attribSiblingRef8:
					if ptr+8 > end {
						return ErrEOF
					}
					off = e.Uint64(info[ptr:])
					ptr += 8
				case attribSiblingRefUdata:
					v, next, err := readULEB128(info, ptr, end)
					if err != nil {
						return err
					}
					off, ptr = v, next
				}
				target := int(cu.Offset) + int(off)
				if target < int(cu.Offset) || target > end {
					return ErrEOF
				}
				sibling = target

			case cmd == attribNameStrp:
				var off uint64
				if cu.Is64Bit {
					if ptr+8 > end {
						return ErrEOF
					}
					off = e.Uint64(info[ptr:])
					ptr += 8
				} else {
					if ptr+4 > end {
						return ErrEOF
					}
					off = uint64(e.Uint32(info[ptr:]))
					ptr += 4
				}
				if off > uint64(len(debugStr)) {
					return ErrEOF
				}
				nul := bytes.IndexByte(debugStr[off:], 0)
				if nul == -1 {
					return ErrEOF
				}
				s := string(debugStr[off : off+uint64(nul)])
				name = &s

			default:
				return errors.Wrapf(ErrDwarfFormat, "unknown abbrev command %d", cmd)
			}
		}
		// Trailing tag and children bytes, appended by the compiler
		// after the terminating 0 command.
		tagByteIdx := len(cmds) - 2
		childrenByteIdx := len(cmds) - 1
		tag := uint64(cmds[tagByteIdx])
		children := cmds[childrenByteIdx] != 0

		if depth == 1 && name != nil && tag != 0 {
			if err := idx.insert(*name, tag, cu, uint64(dieOffset)); err != nil {
				return err
			}
		}

		if children {
			if sibling >= 0 {
				ptr = sibling
			} else {
				depth++
			}
		} else if depth == 0 {
			break
		}
	}
	return nil
}
