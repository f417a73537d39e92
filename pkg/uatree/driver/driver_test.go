package driver

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mtojek/uatree/pkg/uatree/container"
	"github.com/mtojek/uatree/pkg/uatree/value"
)

type fb struct{ buf []byte }

func (b *fb) u32(v uint32) *fb {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}
func (b *fb) i32(v int32) *fb  { return b.u32(uint32(v)) }
func (b *fb) u8(v uint8) *fb   { b.buf = append(b.buf, v); return b }
func (b *fb) u64(v uint64) *fb {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}
func (b *fb) fname(i uint32) *fb { return b.u32(i).u32(0) }
func (b *fb) str(s string) *fb {
	b.u32(uint32(len(s)))
	b.buf = append(b.buf, []byte(s)...)
	return b
}
func (b *fb) raw(d []byte) *fb { b.buf = append(b.buf, d...); return b }
func (b *fb) bytes() []byte    { return b.buf }

// writeFixture builds a one-export container file: export "Foo" holding a
// single BoolProperty(true), terminated by None. Names: Foo, BoolProperty,
// None.
func writeFixture(t *testing.T) string {
	t.Helper()

	names := []string{"Foo", "BoolProperty", "None"}
	nameTable := (&fb{}).str(names[0]).str(names[1]).str(names[2]).bytes()

	exportBody := (&fb{}).
		fname(0). // "Foo"
		fname(1). // "BoolProperty"
		u64(0).   // size=0
		u8(1).    // true
		u8(0).    // pad
		fname(2). // "None"
		u32(0).   // trailer
		bytes()

	const headerSize = container.HeaderSize
	nameTableOffset := uint32(headerSize)
	nameTableSize := uint32(len(nameTable))
	importTableOffset := nameTableOffset + nameTableSize
	exportTableOffset := importTableOffset // no imports
	exportTableEntrySize := uint32(8 + 4 + 8 + 8)
	exportBodyOffset := exportTableOffset + exportTableEntrySize

	exportTable := (&fb{}).
		fname(0). // export name index -> "Foo" ... reuses same table index
		i32(0).
		u64(uint64(len(exportBody))).
		u64(uint64(exportBodyOffset)).
		bytes()

	data := (&fb{}).
		raw(container.Magic[:]).
		u32(1). // version
		u32(nameTableOffset).
		u32(nameTableSize).
		u32(importTableOffset).
		u32(0). // import count
		u32(exportTableOffset).
		u32(1). // export count
		raw(nameTable).
		raw(exportTable).
		raw(exportBody).
		bytes()

	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.uatr")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDecodeFileDecodesExport(t *testing.T) {
	path := writeFixture(t)

	results, err := DecodeFile(path, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Equal(t, "Foo", results[0].Export)

	root, ok := results[0].Value.(*value.Struct)
	require.True(t, ok)
	v, ok := root.Get("Foo")
	require.True(t, ok)
	require.Equal(t, value.Bool(true), v)
}

func TestDecodeBatchCollectsPerFileErrors(t *testing.T) {
	good := writeFixture(t)
	bad := filepath.Join(t.TempDir(), "missing.uatr")

	results := DecodeBatch([]string{good, bad}, 2)
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
}

func TestReadExternalNameTableParsesHexIndexLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.txt")
	content := "0: Foo\n1: BoolProperty\n2: None\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	names, err := readExternalNameTable(path)
	require.NoError(t, err)
	require.Equal(t, 3, names.Len())
	require.Equal(t, "Foo", names.At(0))
	require.Equal(t, "BoolProperty", names.At(1))
	require.Equal(t, "None", names.At(2))
}

func TestReadExternalNameTableSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.txt")
	content := "0: Foo\n\n1: Bar\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	names, err := readExternalNameTable(path)
	require.NoError(t, err)
	require.Equal(t, 2, names.Len())
	require.Equal(t, "Bar", names.At(1))
}

func TestReadExternalNameTableRejectsNonContiguousIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.txt")
	content := "0: Foo\n2: Bar\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := readExternalNameTable(path)
	require.Error(t, err)
}

func TestDecodeFileUsesExternalNameTable(t *testing.T) {
	path := writeFixture(t)
	namesPath := filepath.Join(t.TempDir(), "names.txt")
	require.NoError(t, os.WriteFile(namesPath, []byte("0: Foo\n1: BoolProperty\n2: None\n"), 0o644))

	results, err := DecodeFile(path, namesPath)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
}
