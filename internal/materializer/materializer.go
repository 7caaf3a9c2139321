// Package materializer turns a dwarfidx.Locator into a printable
// attribute bag, without decoding any DW_FORM value the index skipped.
package materializer

import (
	"fmt"
	"reflect"

	"github.com/ompluscator/dynamic-struct"
	"github.com/pkg/errors"

	"github.com/jschwinger233/dwarfidx"
)

// Bag is a name-keyed attribute set built at runtime with dynamicstruct,
// so callers don't need a fixed struct per tag.
type Bag interface{}

var tagName = map[uint64]string{
	0x24: "base_type",
	0x02: "class_type",
	0x04: "enumeration_type",
	0x13: "structure_type",
	0x16: "typedef",
	0x17: "union_type",
	0x34: "variable",
}

func ParseTag(s string) (uint64, bool) {
	for tag, label := range tagName {
		if label == s {
			return tag, true
		}
	}
	return 0, false
}

// Materialize does not reopen or reparse the file; loc.File must still
// be the one New(...) mmap'd.
func Materialize(name string, loc dwarfidx.Locator) (Bag, error) {
	if loc.File == nil {
		return nil, errors.Wrap(dwarfidx.ErrNotFound, "materialize: empty locator")
	}

	label, ok := tagName[loc.Tag]
	if !ok {
		label = fmt.Sprintf("unknown(%#x)", loc.Tag)
	}

	builder := dynamicstruct.NewStruct().
		AddField("Name", "", `json:"name"`).
		AddField("Tag", "", `json:"tag"`).
		AddField("File", "", `json:"file"`).
		AddField("CUOffset", uint64(0), `json:"cu_offset"`).
		AddField("DIEOffset", uint64(0), `json:"die_offset"`).
		AddField("AddressSize", uint8(0), `json:"address_size"`)

	instance := builder.Build().New()
	value := reflect.ValueOf(instance).Elem()

	value.FieldByName("Name").SetString(name)
	value.FieldByName("Tag").SetString(label)
	value.FieldByName("File").SetString(loc.File.Path())
	value.FieldByName("CUOffset").SetUint(loc.CUOffset)
	value.FieldByName("DIEOffset").SetUint(loc.DIEOffset)
	value.FieldByName("AddressSize").SetUint(uint64(loc.CompilationUnit().AddressSize))

	return instance, nil
}
