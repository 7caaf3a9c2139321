// Package dwarfidx builds a read-only index over the DWARF debugging
// information in a set of ELF64 object files: (name, tag) pairs of
// top-level DIEs, looked up via Find. It does not decode DIE attribute
// payloads beyond DW_AT_name and DW_AT_sibling.
package dwarfidx
