package dwarfidx

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type DwarfIndex struct {
	files []*File
	hash  *hashIndex

	addressSize uint8
}

type Option func(*options)

type options struct {
	capacity int
}

func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// Each file is parsed in its own goroutine; hash insertion is serialized
// behind a mutex since it's the only shared mutable state files touch.
func New(paths []string, opts ...Option) (idx *DwarfIndex, err error) {
	o := options{capacity: defaultHashCapacity}
	for _, opt := range opts {
		opt(&o)
	}

	idx = &DwarfIndex{hash: newHashIndex(o.capacity)}

	files := make([]*File, len(paths))
	type result struct {
		i   int
		err error
	}
	results := make(chan result, len(paths))
	var mu sync.Mutex

	for i, path := range paths {
		go func(i int, path string) {
			f, ferr := buildFile(path)
			if ferr != nil {
				results <- result{i, ferr}
				return
			}
			mu.Lock()
			files[i] = f
			for _, cu := range f.cus {
				idx.addressSize = cu.AddressSize
				if ierr := indexCU(idx.hash, cu); ierr != nil {
					mu.Unlock()
					results <- result{i, ierr}
					return
				}
			}
			mu.Unlock()
			results <- result{i, nil}
		}(i, path)
	}

	var firstErr error
	for range paths {
		r := <-results
		if r.err != nil && firstErr == nil {
			firstErr = errors.WithMessage(r.err, paths[r.i])
		}
	}
	if firstErr != nil {
		for _, f := range files {
			if f != nil {
				f.close()
			}
		}
		return nil, firstErr
	}

	idx.files = files
	log.Debugf("dwarfidx: indexed %d file(s)", len(idx.files))
	return idx, nil
}

func buildFile(path string) (f *File, err error) {
	f, err = openFile(path)
	if err != nil {
		return nil, err
	}

	if err = readSections(f); err != nil {
		f.close()
		return nil, err
	}

	for _, reloc := range []struct {
		target *section
		rela   *section
		have   bool
	}{
		{&f.debugAbbrev, &f.relaAbbrev, f.haveRelaAbbrev},
		{&f.debugInfo, &f.relaInfo, f.haveRelaInfo},
		{&f.debugStr, &f.relaStr, f.haveRelaStr},
	} {
		if !reloc.have {
			continue
		}
		if err = applyRelocations(f, reloc.target, reloc.rela, &f.symtab); err != nil {
			f.close()
			return nil, err
		}
	}

	if len(f.debugStr.buf) == 0 || f.debugStr.buf[len(f.debugStr.buf)-1] != 0 {
		f.close()
		return nil, errors.Wrapf(ErrDwarfFormat, "%s: .debug_str is not null terminated", path)
	}

	if err = readCUs(f); err != nil {
		f.close()
		return nil, err
	}
	return f, nil
}

func (idx *DwarfIndex) AddressSize() uint8 { return idx.addressSize }

func (idx *DwarfIndex) Files() []*File { return idx.files }

func (idx *DwarfIndex) Find(name string, tag uint64) (Locator, error) {
	entry, ok := idx.hash.lookup(name, tag)
	if !ok {
		return Locator{}, errors.Wrapf(ErrNotFound, "name=%q tag=%#x", name, tag)
	}
	return Locator{
		File:      entry.cu.file,
		CUOffset:  entry.cu.Offset,
		DIEOffset: entry.dieOffset - entry.cu.Offset,
		Tag:       entry.tag,
		cu:        entry.cu,
	}, nil
}
