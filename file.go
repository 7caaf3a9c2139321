package dwarfidx

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type section struct {
	shdrIndex uint16
	buf       []byte
}

// File owns a private, writable mmap of one ELF object's image plus the
// section views derived from it. Immutable once New has finished.
type File struct {
	path string
	data []byte

	symtab                           section
	debugAbbrev, debugInfo, debugStr section
	relaAbbrev, relaInfo, relaStr    section

	haveRelaAbbrev, haveRelaInfo, haveRelaStr bool

	cus []*CompilationUnit
}

func (f *File) Path() string { return f.path }

// DebugInfo returns the (possibly relocated) bytes of .debug_info, for an
// external materializer to decode a DIE at a Locator's offsets.
func (f *File) DebugInfo() []byte { return f.debugInfo.buf }

func (f *File) DebugAbbrev() []byte { return f.debugAbbrev.buf }

func (f *File) DebugStr() []byte { return f.debugStr.buf }

// openFile mmaps path PRIVATE/READ|WRITE so relocations can patch the
// in-memory view without touching the file on disk.
func openFile(path string) (f *File, err error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(ErrIO, err.Error())
	}
	defer fh.Close()

	st, err := fh.Stat()
	if err != nil {
		return nil, errors.Wrap(ErrIO, err.Error())
	}
	size := st.Size()
	if size == 0 {
		return nil, errors.Wrapf(ErrELFFormat, "%s: empty file", path)
	}

	data, err := unix.Mmap(int(fh.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(ErrIO, "%s: mmap: %s", path, err)
	}

	return &File{path: path, data: data}, nil
}

func (f *File) close() {
	if f.data != nil {
		_ = unix.Munmap(f.data)
		f.data = nil
	}
}
