package dwarfidx

import (
	"encoding/binary"
)

// secSpec describes one section to place in a synthetic ELF64 image built
// by buildELF. Tests use this instead of a real compiler + linker to get
// byte-exact control over the DWARF and relocation edge cases under test.
type secSpec struct {
	name string
	typ  uint32
	body []byte
	link uint32
	info uint32
}

// buildELF assembles a minimal but structurally valid little-endian
// ELF64 image: a null section, the caller's sections in order, and a
// trailing .shstrtab. It returns the full image plus each named
// section's header index, for tests that need to set sh_info on a RELA
// section after the fact.
func buildELF(specs []secSpec) (data []byte, shdrIndex map[string]uint16) {
	shdrIndex = map[string]uint16{}

	names := make([]string, 0, len(specs)+1)
	for _, s := range specs {
		names = append(names, s.name)
	}
	names = append(names, ".shstrtab")

	shstrtab := []byte{0x00}
	nameOff := map[string]uint32{"": 0}
	for _, n := range names {
		nameOff[n] = uint32(len(shstrtab))
		shstrtab = append(shstrtab, append([]byte(n), 0)...)
	}

	const ehdrSize = 64
	const shdrSize = 64

	type placed struct {
		spec   secSpec
		offset uint64
	}
	all := make([]placed, 0, len(specs)+2)
	// index 0 is the reserved null section, carries no body.
	off := uint64(ehdrSize)
	for _, s := range specs {
		all = append(all, placed{s, off})
		off += uint64(len(s.body))
	}
	shstrtabOff := off
	off += uint64(len(shstrtab))

	shoff := off
	shnum := uint16(len(specs) + 2)

	total := shoff + uint64(shnum)*shdrSize
	data = make([]byte, total)
	e := binary.LittleEndian

	// e_ident
	data[0], data[1], data[2], data[3] = 0x7f, 'E', 'L', 'F'
	data[4] = 2 // ELFCLASS64
	data[5] = 1 // ELFDATA2LSB
	data[6] = 1 // EV_CURRENT
	e.PutUint64(data[0x28:], shoff)
	e.PutUint16(data[0x3a:], shdrSize)
	e.PutUint16(data[0x3c:], shnum)
	e.PutUint16(data[0x3e:], uint16(len(specs)+1)) // shstrtab is the last section before shdrs

	for _, p := range all {
		copy(data[p.offset:], p.spec.body)
	}
	copy(data[shstrtabOff:], shstrtab)

	writeShdr := func(i uint16, name string, typ uint32, offset, size uint64, link, info uint32) {
		base := shoff + uint64(i)*shdrSize
		s := data[base : base+shdrSize]
		e.PutUint32(s[0x00:], nameOff[name])
		e.PutUint32(s[0x04:], typ)
		e.PutUint64(s[0x18:], offset)
		e.PutUint64(s[0x20:], size)
		e.PutUint32(s[0x28:], link)
		e.PutUint32(s[0x2c:], info)
	}

	writeShdr(0, "", 0, 0, 0, 0, 0)
	for i, p := range all {
		idx := uint16(i + 1)
		writeShdr(idx, p.spec.name, p.spec.typ, p.offset, uint64(len(p.spec.body)), p.spec.link, p.spec.info)
		shdrIndex[p.spec.name] = idx
	}
	writeShdr(uint16(len(specs)+1), ".shstrtab", 3 /* SHT_STRTAB */, shstrtabOff, uint64(len(shstrtab)), 0, 0)

	return data, shdrIndex
}

// oneCU builds a single-CU .debug_abbrev/.debug_info pair: a compile_unit
// root DIE with one DW_TAG_variable child named name.
func oneCU(name string) (abbrev, info []byte) {
	abbrev = []byte{
		0x01, 0x11, 0x01, 0x00, 0x00, // decl 1: compile_unit, children, no attrs
		0x02, 0x34, 0x00, // decl 2: variable, no children
		0x03, 0x08, // DW_AT_name, DW_FORM_string
		0x00, 0x00, // attr terminator
		0x00, // table terminator
	}
	return abbrev, buildCUInfo([]byte{0x02}, name)
}

// oneCUStructDecl builds a single-CU pair with one DW_TAG_structure_type
// child named name. When declaration is true the struct carries
// DW_AT_declaration (DW_FORM_flag_present), which the indexer must
// remap the tag to 0 for and exclude from insertion; structure_type is
// not exempted from the remap the way DW_TAG_variable is.
func oneCUStructDecl(name string, declaration bool) (abbrev, info []byte) {
	if declaration {
		abbrev = []byte{
			0x01, 0x11, 0x01, 0x00, 0x00,
			0x02, 0x13, 0x00, // decl 2: structure_type, no children
			0x03, 0x08, // DW_AT_name, DW_FORM_string
			0x3c, 0x19, // DW_AT_declaration, DW_FORM_flag_present
			0x00, 0x00,
			0x00,
		}
	} else {
		abbrev = []byte{
			0x01, 0x11, 0x01, 0x00, 0x00,
			0x02, 0x13, 0x00,
			0x03, 0x08,
			0x00, 0x00,
			0x00,
		}
	}
	return abbrev, buildCUInfo([]byte{0x02}, name)
}

// buildCUInfo assembles the .debug_info bytes for one CU whose root DIE
// (abbrev code 1) has a single named child. dieCode is the child's
// abbreviation code, encoded as a pre-built ULEB128 (single byte, since
// every code used in these tests is < 128).
func buildCUInfo(dieCode []byte, name string) []byte {
	body := []byte{0x01} // root DIE, abbrev code 1
	body = append(body, dieCode...)
	body = append(body, []byte(name)...)
	body = append(body, 0x00) // NUL terminates DW_FORM_string
	body = append(body, 0x00) // ends root's children list

	unitLength := uint32(2 + 4 + 1 + len(body))
	info := make([]byte, 0, 4+unitLength)
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, unitLength)
	info = append(info, lenBuf...)
	info = append(info, 0x04, 0x00)              // version 4
	info = append(info, 0x00, 0x00, 0x00, 0x00) // debug_abbrev_offset 0
	info = append(info, 0x08)                    // address_size 8
	info = append(info, body...)
	return info
}

// dwarfELF builds a complete synthetic ELF64 image carrying one CU's
// .debug_abbrev/.debug_info, an empty .symtab and a NUL-only .debug_str.
func dwarfELF(abbrev, info []byte) []byte {
	specs := []secSpec{
		{name: ".symtab", typ: 2 /* SHT_SYMTAB */, body: make([]byte, 24)},
		{name: ".debug_abbrev", typ: 1 /* SHT_PROGBITS */, body: abbrev},
		{name: ".debug_info", typ: 1, body: info},
		{name: ".debug_str", typ: 1, body: []byte{0x00}},
	}
	data, _ := buildELF(specs)
	return data
}

// packCU wraps body (everything after the address_size byte, i.e. the
// root DIE onward) in a 32-bit DWARF CU header.
func packCU(body []byte) []byte {
	unitLength := uint32(2 + 4 + 1 + len(body))
	info := make([]byte, 0, 4+unitLength)
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, unitLength)
	info = append(info, lenBuf...)
	info = append(info, 0x04, 0x00)
	info = append(info, 0x00, 0x00, 0x00, 0x00)
	info = append(info, 0x08)
	info = append(info, body...)
	return info
}

// siblingSkipCU builds a CU whose root has one DW_TAG_structure_type
// child ("Big") carrying DW_AT_sibling, followed by poison bytes where a
// nested member subtree would sit, followed by a DW_TAG_variable sibling
// ("After"). DW_AT_sibling's offset is computed to land exactly on
// "After"'s DIE, so a correct sibling jump never touches the poison
// bytes; a broken jump would try to parse them as DIEs and fail.
func siblingSkipCU() (abbrev, info []byte) {
	abbrev = []byte{
		0x01, 0x11, 0x01, 0x00, 0x00, // decl 1: compile_unit, children, no attrs
		0x02, 0x13, 0x01, // decl 2: structure_type, children
		0x01, 0x13, // DW_AT_sibling, DW_FORM_ref4
		0x03, 0x08, // DW_AT_name, DW_FORM_string
		0x00, 0x00,
		0x03, 0x34, 0x00, // decl 3: variable, no children
		0x03, 0x08, // DW_AT_name, DW_FORM_string
		0x00, 0x00,
		0x00, // table terminator
	}

	const headerSize = 11
	poison := []byte{0xee, 0xee, 0xee, 0xee, 0xee}
	prefix := append([]byte{0x01, 0x02}, 0, 0, 0, 0) // root code, struct code, sibling placeholder
	prefix = append(prefix, []byte("Big")...)
	prefix = append(prefix, 0x00)
	afterOffset := uint32(headerSize + len(prefix) + len(poison))

	body := []byte{0x01, 0x02}
	sib := make([]byte, 4)
	binary.LittleEndian.PutUint32(sib, afterOffset)
	body = append(body, sib...)
	body = append(body, []byte("Big")...)
	body = append(body, 0x00)
	body = append(body, poison...)
	body = append(body, 0x03)
	body = append(body, []byte("After")...)
	body = append(body, 0x00)
	body = append(body, 0x00) // ends root's children

	return abbrev, packCU(body)
}

// formsCU builds a CU with a single DW_TAG_variable child named name,
// carrying, after its name, one attribute each of a generic fixed-size
// skip (data4), block1, exprloc and LEB128 (udata),
// exercising index_cu.go's skip branches beyond the plain name/string
// path.
func formsCU(name string) (abbrev, info []byte) {
	abbrev = []byte{
		0x01, 0x11, 0x01, 0x00, 0x00, // decl 1: compile_unit, children, no attrs
		0x02, 0x34, 0x00, // decl 2: variable, no children
		0x03, 0x08, // DW_AT_name, DW_FORM_string
		0x10, 0x06, // arbitrary attr, DW_FORM_data4 (generic short skip)
		0x02, 0x0a, // DW_AT_location, DW_FORM_block1
		0x49, 0x18, // arbitrary attr, DW_FORM_exprloc
		0x37, 0x0f, // DW_AT_count, DW_FORM_udata
		0x00, 0x00,
		0x00,
	}

	die := []byte{0x02}
	die = append(die, []byte(name)...)
	die = append(die, 0x00)
	die = append(die, 0x11, 0x22, 0x33, 0x44) // data4 payload, skipped
	die = append(die, 0x03, 0xaa, 0xbb, 0xcc) // block1: length 3, payload
	die = append(die, 0x02, 0xdd, 0xee)       // exprloc: ULEB128 length 2, payload
	die = append(die, 0x05)                   // udata payload, skipped

	body := append([]byte{0x01}, die...)
	body = append(body, 0x00) // ends root's children

	return abbrev, packCU(body)
}

// nameStrpCU builds a CU with a single DW_TAG_variable child whose name
// comes from .debug_str via DW_FORM_strp rather than an inline
// DW_FORM_string, exercising attribNameStrp. strOff is the name's byte
// offset within the .debug_str section the caller builds.
func nameStrpCU(strOff uint32) (abbrev, info []byte) {
	abbrev = []byte{
		0x01, 0x11, 0x01, 0x00, 0x00,
		0x02, 0x34, 0x00, // decl 2: variable, no children
		0x03, 0x0e, // DW_AT_name, DW_FORM_strp
		0x00, 0x00,
		0x00,
	}

	off := make([]byte, 4)
	binary.LittleEndian.PutUint32(off, strOff)
	body := []byte{0x01, 0x02}
	body = append(body, off...)
	body = append(body, 0x00) // ends root's children

	return abbrev, packCU(body)
}

// debugStrWith lays out names one after another, each NUL-terminated,
// returning the section bytes plus each name's starting offset.
func debugStrWith(names ...string) (buf []byte, offsets []uint32) {
	buf = []byte{0x00} // offset 0 stays the empty string, as real toolchains leave it
	for _, n := range names {
		offsets = append(offsets, uint32(len(buf)))
		buf = append(buf, []byte(n)...)
		buf = append(buf, 0x00)
	}
	return buf, offsets
}

// oneCU64 builds the 64-bit-DWARF equivalent of oneCU: a compile_unit
// root with one DW_TAG_variable child named name, under the 64-bit
// header format (0xffffffff sentinel, 8-byte unit_length/offsets).
func oneCU64(name string) (abbrev, info []byte) {
	abbrev = []byte{
		0x01, 0x11, 0x01, 0x00, 0x00,
		0x02, 0x34, 0x00,
		0x03, 0x08,
		0x00, 0x00,
		0x00,
	}

	body := []byte{0x01, 0x02}
	body = append(body, []byte(name)...)
	body = append(body, 0x00)
	body = append(body, 0x00) // ends root's children

	unitLength := uint64(2 + 8 + 1 + len(body))
	info = make([]byte, 0, 12+unitLength)
	info = append(info, 0xff, 0xff, 0xff, 0xff) // 64-bit DWARF sentinel
	lenBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(lenBuf, unitLength)
	info = append(info, lenBuf...)
	info = append(info, 0x04, 0x00) // version 4
	abbrevOffBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(abbrevOffBuf, 0)
	info = append(info, abbrevOffBuf...)
	info = append(info, 0x08) // address_size
	info = append(info, body...)
	return abbrev, info
}
