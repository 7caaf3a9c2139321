package dwarfidx

import "github.com/pkg/errors"

var (
	ErrIO             = errors.New("io error")
	ErrELFFormat      = errors.New("elf format error")
	ErrDwarfFormat    = errors.New("dwarf format error")
	ErrNotImplemented = errors.New("not implemented")
	ErrEOF            = errors.New("unexpected eof")
	ErrOverflow       = errors.New("leb128 overflow")
	ErrOutOfMemory    = errors.New("out of memory")
	ErrNotFound       = errors.New("not found")
)
