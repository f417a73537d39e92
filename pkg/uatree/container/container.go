// Package container parses the outer container file: a fixed header,
// followed by a name table, an import table, and an export table that
// locates each export's raw property bytes. It is the collaborator
// spec.md's §4.5 elides in depth; the layout here is a concrete,
// self-consistent one built the way the teacher reads its own container
// format (a fixed header struct, then variable-length directories).
package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/mtojek/uatree/pkg/uatree/cursor"
	"github.com/mtojek/uatree/pkg/uatree/nametable"
	"github.com/mtojek/uatree/pkg/uatree/primitive"
)

// Magic identifies a container file.
var Magic = [4]byte{'U', 'A', 'T', 'R'}

// ErrTruncated is returned when the file is shorter than the fixed header,
// when the name table's declared end lies past the end of the file, or
// when an export's body lies past it. A read inside the import or export
// table that runs past the end fails with the cursor's own error instead.
var ErrTruncated = errors.New("container: truncated file")

// Header is the fixed-size prologue of a container file.
type Header struct {
	Magic             [4]byte
	Version           uint32
	NameTableOffset   uint32
	NameTableSize     uint32
	ImportTableOffset uint32
	ImportCount       uint32
	ExportTableOffset uint32
	ExportCount       uint32
}

// HeaderSize is the on-disk size of Header.
const HeaderSize = 4 + 4*7

// Import is one entry of the import table: the three fnames that
// identify an externally-referenced object.
type Import struct {
	ClassPackage string
	ClassName    string
	ObjectName   string
}

// Export describes one export's table entry and its raw property bytes.
type Export struct {
	Name         string
	ClassIndex   int32
	SerialSize   uint64
	SerialOffset uint64
	Data         []byte
}

// Asset is the fully-parsed container: a materialized name table and the
// export directory, ready for the property deserializer.
type Asset struct {
	Header  Header
	Names   *nametable.Table
	Imports []Import
	Exports []Export
}

func readHeader(r io.Reader) (Header, error) {
	var h Header
	if _, err := io.ReadFull(r, h.Magic[:]); err != nil {
		return Header{}, fmt.Errorf("container: read magic: %w", err)
	}
	if h.Magic != Magic {
		return Header{}, fmt.Errorf("container: bad magic %x", h.Magic)
	}
	fields := []struct {
		name string
		dst  *uint32
	}{
		{"Version", &h.Version},
		{"NameTableOffset", &h.NameTableOffset},
		{"NameTableSize", &h.NameTableSize},
		{"ImportTableOffset", &h.ImportTableOffset},
		{"ImportCount", &h.ImportCount},
		{"ExportTableOffset", &h.ExportTableOffset},
		{"ExportCount", &h.ExportCount},
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f.dst); err != nil {
			return Header{}, fmt.Errorf("container: read %s: %w", f.name, err)
		}
	}
	return h, nil
}

// Parse decodes a full container file: header, name table, import table,
// and export table (with each export's raw bytes sliced out of data).
func Parse(data []byte) (*Asset, error) {
	if len(data) < HeaderSize {
		return nil, errors.Wrapf(ErrTruncated, "file is %d bytes, need at least %d", len(data), HeaderSize)
	}
	hdr, err := readHeader(bytes.NewReader(data[:HeaderSize]))
	if err != nil {
		return nil, err
	}

	names, err := readNameTable(data, hdr)
	if err != nil {
		return nil, err
	}

	c := cursor.New(data)
	prim := primitive.New(c)
	resolver := nametable.NewResolver(names, prim)

	imports, err := readImportTable(c, resolver, hdr)
	if err != nil {
		return nil, err
	}

	exports, err := readExportTable(c, prim, resolver, hdr, data)
	if err != nil {
		return nil, err
	}

	return &Asset{Header: hdr, Names: names, Imports: imports, Exports: exports}, nil
}

func readNameTable(data []byte, hdr Header) (*nametable.Table, error) {
	end := int64(hdr.NameTableOffset) + int64(hdr.NameTableSize)
	if end > int64(len(data)) {
		return nil, errors.Wrapf(ErrTruncated, "name table end %d exceeds file size %d", end, len(data))
	}
	c := cursor.New(data)
	if _, err := c.Seek(int64(hdr.NameTableOffset), io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "container: seek to name table")
	}
	prim := primitive.New(c)

	var names []string
	for c.Tell() < end {
		s, err := prim.String(nil)
		if err != nil {
			return nil, errors.Wrap(err, "container: read name table entry")
		}
		names = append(names, s)
	}
	return nametable.New(names), nil
}

func readImportTable(c *cursor.Cursor, resolver *nametable.Resolver, hdr Header) ([]Import, error) {
	if _, err := c.Seek(int64(hdr.ImportTableOffset), io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "container: seek to import table")
	}
	imports := make([]Import, 0, hdr.ImportCount)
	for i := uint32(0); i < hdr.ImportCount; i++ {
		classPackage, err := resolver.FName()
		if err != nil {
			return nil, errors.Wrapf(err, "container: import %d class package", i)
		}
		className, err := resolver.FName()
		if err != nil {
			return nil, errors.Wrapf(err, "container: import %d class name", i)
		}
		objectName, err := resolver.FName()
		if err != nil {
			return nil, errors.Wrapf(err, "container: import %d object name", i)
		}
		imports = append(imports, Import{ClassPackage: classPackage, ClassName: className, ObjectName: objectName})
	}
	return imports, nil
}

func readExportTable(c *cursor.Cursor, prim *primitive.Reader, resolver *nametable.Resolver, hdr Header, data []byte) ([]Export, error) {
	if _, err := c.Seek(int64(hdr.ExportTableOffset), io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "container: seek to export table")
	}
	exports := make([]Export, 0, hdr.ExportCount)
	for i := uint32(0); i < hdr.ExportCount; i++ {
		name, err := resolver.FName()
		if err != nil {
			return nil, errors.Wrapf(err, "container: export %d name", i)
		}
		classIndex, err := prim.Int(4, true)
		if err != nil {
			return nil, errors.Wrapf(err, "container: export %d class index", i)
		}
		serialSize, err := prim.Int(8, false)
		if err != nil {
			return nil, errors.Wrapf(err, "container: export %d serial size", i)
		}
		serialOffset, err := prim.Int(8, false)
		if err != nil {
			return nil, errors.Wrapf(err, "container: export %d serial offset", i)
		}

		end := serialOffset + serialSize
		if end > int64(len(data)) {
			return nil, errors.Wrapf(ErrTruncated, "export %q body end %d exceeds file size %d", name, end, len(data))
		}
		exports = append(exports, Export{
			Name:         name,
			ClassIndex:   int32(classIndex),
			SerialSize:   uint64(serialSize),
			SerialOffset: uint64(serialOffset),
			Data:         data[serialOffset:end],
		})
	}
	return exports, nil
}
