package dwarfidx

// Locator is the opaque reference Find returns; a materializer decodes
// the DIE fully from it without this package ever touching the payload.
type Locator struct {
	File *File

	CUOffset uint64 // byte offset within File's .debug_info

	// DIEOffset is relative to CUOffset, not to the start of .debug_info.
	DIEOffset uint64

	Tag uint64 // e.g. DW_TAG_structure_type

	cu *CompilationUnit
}

func (l Locator) CompilationUnit() *CompilationUnit { return l.cu }
