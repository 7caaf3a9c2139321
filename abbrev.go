package dwarfidx

import "github.com/pkg/errors"

// Values 0..242 mean "skip exactly N bytes of DIE payload"; only those
// are eligible for the additive fusion appendCmd performs.
const (
	attribBlock1           = 243
	attribBlock2           = 244
	attribBlock4           = 245
	attribExprloc          = 246
	attribLEB128           = 247
	attribString           = 248
	attribSiblingRef1      = 249
	attribSiblingRef2      = 250
	attribSiblingRef4      = 251
	attribSiblingRef8      = 252
	attribSiblingRefUdata  = 253
	attribNameStrp         = 254
	attribNameString       = 255
	attribMinCmd           = attribBlock1
)

// tag 0 means "not of interest": walk structurally, don't index.
type abbrevDecl struct {
	cmds     []byte
	tag      uint64
	children bool
}

func isIndexableTag(tag uint64) bool {
	switch tag {
	case dwTagBaseType, dwTagClassType, dwTagEnumerationType, dwTagStructureType,
		dwTagTypedef, dwTagUnionType, dwTagVariable:
		return true
	default:
		return false
	}
}

// readAbbrevTable requires abbreviation codes to be sequential starting
// at 1, true of every toolchain this package has been tested against.
func readAbbrevTable(buf []byte, ptr int, end int, cu *CompilationUnit) (decls []abbrevDecl, err error) {
	for {
		code, next, err := readULEB128(buf, ptr, end)
		if err != nil {
			return nil, err
		}
		ptr = next
		if code == 0 {
			return decls, nil
		}
		if code != uint64(len(decls))+1 {
			return nil, errors.Wrap(ErrNotImplemented, "abbreviation table is not sequential")
		}

		decl, next, err := compileAbbrevDecl(buf, ptr, end, cu)
		if err != nil {
			return nil, err
		}
		ptr = next
		decls = append(decls, decl)
	}
}

func compileAbbrevDecl(buf []byte, ptr int, end int, cu *CompilationUnit) (decl abbrevDecl, next int, err error) {
	tag, ptr, err := readULEB128(buf, ptr, end)
	if err != nil {
		return decl, 0, err
	}
	if !isIndexableTag(tag) {
		tag = 0
	}

	if ptr >= end {
		return decl, 0, ErrEOF
	}
	children := buf[ptr] != 0
	ptr++

	var cmds []byte
	for {
		name, next, err := readULEB128(buf, ptr, end)
		if err != nil {
			return decl, 0, err
		}
		ptr = next
		form, next, err := readULEB128(buf, ptr, end)
		if err != nil {
			return decl, 0, err
		}
		ptr = next
		if name == 0 && form == 0 {
			break
		}

		cmd, special, emit, err := compileAttrCmd(name, form, &tag, cu)
		if err != nil {
			return decl, 0, err
		}
		if !emit {
			// DW_FORM_flag_present: zero-length payload, nothing
			// to skip at DIE-walk time.
			continue
		}

		cmds = appendCmd(cmds, cmd, special)
	}

	cmds = append(cmds, 0, uint8(tag), boolToByte(children))
	decl.cmds = cmds
	decl.tag = tag
	decl.children = children
	return decl, ptr, nil
}

// special commands (block/exprloc/leb128/string/sibling/name) never
// participate in short-skip fusion; emit is false only for
// DW_FORM_flag_present, which has no payload to skip at DIE-walk time.
func compileAttrCmd(name, form uint64, tag *uint64, cu *CompilationUnit) (cmd uint8, special bool, emit bool, err error) {
	if name == dwAtSibling {
		switch form {
		case dwFormRef1:
			return attribSiblingRef1, true, true, nil
		case dwFormRef2:
			return attribSiblingRef2, true, true, nil
		case dwFormRef4:
			return attribSiblingRef4, true, true, nil
		case dwFormRef8:
			return attribSiblingRef8, true, true, nil
		case dwFormRefUdata:
			return attribSiblingRefUdata, true, true, nil
		}
	} else if name == dwAtName && *tag != 0 {
		switch form {
		case dwFormStrp:
			return attribNameStrp, true, true, nil
		case dwFormString:
			return attribNameString, true, true, nil
		}
	} else if name == dwAtDeclaration && *tag != dwTagVariable {
		// Ignore type declarations; in theory this could arrive as
		// DW_FORM_flag with value 0, but in practice toolchains
		// always use DW_FORM_flag_present.
		*tag = 0
	}

	switch form {
	case dwFormAddr:
		return cu.AddressSize, false, true, nil
	case dwFormData1, dwFormRef1, dwFormFlag:
		return 1, false, true, nil
	case dwFormData2, dwFormRef2:
		return 2, false, true, nil
	case dwFormData4, dwFormRef4:
		return 4, false, true, nil
	case dwFormData8, dwFormRef8, dwFormRefSig8:
		return 8, false, true, nil
	case dwFormBlock1:
		return attribBlock1, true, true, nil
	case dwFormBlock2:
		return attribBlock2, true, true, nil
	case dwFormBlock4:
		return attribBlock4, true, true, nil
	case dwFormExprloc:
		return attribExprloc, true, true, nil
	case dwFormSdata, dwFormUdata, dwFormRefUdata:
		return attribLEB128, true, true, nil
	case dwFormRefAddr, dwFormSecOffset, dwFormStrp:
		if cu.Is64Bit {
			return 8, false, true, nil
		}
		return 4, false, true, nil
	case dwFormString:
		return attribString, true, true, nil
	case dwFormFlagPresent:
		return 0, false, false, nil
	case dwFormIndirect:
		return 0, false, false, errors.Wrap(ErrNotImplemented, "DW_FORM_indirect is not implemented")
	default:
		return 0, false, false, errors.Wrapf(ErrDwarfFormat, "unknown attribute form %d", form)
	}
}

// appendCmd appends cmd to cmds, fusing it into the previous command when
// both are short-skip (non-special) commands whose sum stays below
// attribMinCmd. When the sum would reach or exceed attribMinCmd, the
// previous command is capped at attribMinCmd-1 and a new command carries
// the overflow, biased by +1 to keep the split reversible.
func appendCmd(cmds []byte, cmd uint8, special bool) []byte {
	if !special && len(cmds) > 0 && cmds[len(cmds)-1] < attribMinCmd {
		prev := cmds[len(cmds)-1]
		sum := uint16(prev) + uint16(cmd)
		if sum < attribMinCmd {
			cmds[len(cmds)-1] = uint8(sum)
			return cmds
		}
		cmds[len(cmds)-1] = attribMinCmd - 1
		cmd = uint8(sum - attribMinCmd + 1)
	}
	return append(cmds, cmd)
}

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
