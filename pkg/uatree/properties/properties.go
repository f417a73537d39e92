// Package properties implements the recursive tagged-property engine: it
// walks a length-prefixed, self-describing property stream and produces a
// value.Value tree, dispatching on property-type fnames and maintaining
// the declared-size/consumed-size contract at every struct, array, and
// map boundary.
package properties

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/mtojek/uatree/pkg/uatree/nametable"
	"github.com/mtojek/uatree/pkg/uatree/primitive"
	"github.com/mtojek/uatree/pkg/uatree/value"
)

// TextLayout selects which on-disk TextProperty layout a Deserializer
// expects. Two incompatible layouts are known to exist; TextLayoutModern
// is the one current samples use and is the default.
type TextLayout int

const (
	// TextLayoutModern is the {unk16, flag32} layout gated by the
	// 0xFF000000 empty sentinel.
	TextLayoutModern TextLayout = iota
	// TextLayoutLegacy is the older {unk32, flags32} layout gated by the
	// 255/256 flag values.
	TextLayoutLegacy
)

const textEmptySentinel = 0xFF000000

// Deserializer decodes one export's property stream into a value.Value
// tree. It is not safe for concurrent use; the driver creates one
// Deserializer per export.
type Deserializer struct {
	prim  *primitive.Reader
	names *nametable.Resolver

	// TextLayout picks the TextProperty wire form. Defaults to
	// TextLayoutModern (the zero value).
	TextLayout TextLayout

	Diagnostics []Diagnostic
}

// New builds a Deserializer over prim (the export's byte stream) resolving
// fnames against names.
func New(prim *primitive.Reader, names *nametable.Resolver) *Deserializer {
	return &Deserializer{prim: prim, names: names}
}

func (d *Deserializer) warn(kind DiagnosticKind, format string, args ...interface{}) {
	d.Diagnostics = append(d.Diagnostics, Diagnostic{
		Kind:    kind,
		Offset:  d.prim.Cursor().Tell(),
		Message: fmt.Sprintf(format, args...),
	})
}

func (d *Deserializer) requireSize(what string, declared, consumed int64) error {
	if declared != consumed {
		return errors.Wrapf(ErrSizeMismatch, "%s: declared %d bytes, consumed %d", what, declared, consumed)
	}
	return nil
}

// ReadExport decodes every top-level property in the export until the
// cursor reaches end-of-buffer, accumulating them into an ordered Struct
// under the repeated-key promotion rule shared with nested struct bodies.
func (d *Deserializer) ReadExport() (*value.Struct, error) {
	root := value.NewStruct()
	for !d.prim.Cursor().EOF() {
		name, val, err := d.ReadPropertyOnce()
		if err != nil {
			if errors.Is(err, ErrSuspiciousNoneTrailer) {
				break
			}
			return nil, err
		}
		if name == "" {
			continue
		}
		root.Set(name, val)
	}
	return root, nil
}

// ReadPropertyOnce reads one (name, type, value) property header and
// dispatches to its type reader. A name of "" with a nil value and nil
// error signals a clean end-of-list "None" marker; ErrSuspiciousNoneTrailer
// signals an end-of-list marker whose trailer was unexpectedly nonzero.
func (d *Deserializer) ReadPropertyOnce() (string, value.Value, error) {
	name, err := d.names.FName()
	if err != nil {
		return "", nil, err
	}
	if name == nametable.None {
		trailer, err := d.prim.Int(4, false)
		if err != nil {
			return "", nil, err
		}
		if trailer != 0 {
			d.warn(DiagSuspiciousNoneTrailer, "trailer was %d, expected 0", trailer)
			if err := d.prim.Cursor().Rewind(12); err != nil {
				return "", nil, err
			}
			return "", nil, ErrSuspiciousNoneTrailer
		}
		return "", nil, nil
	}
	propType, err := d.names.FName()
	if err != nil {
		return "", nil, err
	}
	val, err := d.readDataAsType(propType, name, 1, false)
	if err != nil {
		return "", nil, err
	}
	return name, val, nil
}

// peekNameOrRewind reads one fname; if it is not "None" the read is
// undone (rewind 8 bytes) so the caller sees it again. Used identically
// by the struct-body loop (to detect the terminating "None") and the
// map-property loop (to optionally swallow a stray trailing "None").
func (d *Deserializer) peekNameOrRewind() (string, error) {
	name, err := d.names.FName()
	if err != nil {
		return "", err
	}
	if name != nametable.None {
		if err := d.prim.Cursor().Rewind(8); err != nil {
			return "", err
		}
	}
	return name, nil
}

func (d *Deserializer) readDataAsType(valueType, elementName string, loopCount int, fromArray bool) (value.Value, error) {
	if width, signed, ok := parseIntKind(valueType); ok {
		return d.readIntProperty(width, signed, fromArray)
	}
	switch valueType {
	case "BoolProperty":
		return d.readBoolProperty(fromArray)
	case "ByteProperty":
		return d.readByteProperty(fromArray)
	case "FloatProperty":
		return d.readFloatOrDoubleProperty(fromArray, 4)
	case "DoubleProperty":
		return d.readFloatOrDoubleProperty(fromArray, 8)
	case "EnumProperty":
		return d.readEnumProperty(fromArray)
	case "StrProperty":
		return d.readStrProperty(fromArray)
	case "NameProperty":
		return d.readNameProperty(fromArray)
	case "TextProperty":
		return d.readTextProperty()
	case "SoftObjectProperty":
		return d.readSoftObjectProperty(fromArray)
	case "ObjectProperty":
		return d.readObjectProperty(elementName, fromArray)
	case "ArrayProperty":
		return d.readArrayProperty()
	case "MapProperty":
		return d.readMapProperty()
	case "StructProperty":
		return d.readStructProperty(loopCount)
	case "FieldPathProperty":
		return d.readFieldPathProperty(fromArray)
	default:
		return nil, errors.Wrapf(ErrUnknownProperty, "%q", valueType)
	}
}

// parseIntKind recognizes the IntXxProperty/UIntXxProperty family: the
// property-type name itself encodes signedness (a leading "U" means
// unsigned) and bit width (8/16/32/64, defaulting to 32 when the name
// carries none, e.g. plain "IntProperty").
func parseIntKind(name string) (width int, signed bool, ok bool) {
	if !strings.HasSuffix(name, "Property") {
		return 0, false, false
	}
	base := strings.TrimSuffix(name, "Property")
	signed = true
	if strings.HasPrefix(base, "U") {
		signed = false
		base = base[1:]
	}
	if !strings.HasPrefix(base, "Int") {
		return 0, false, false
	}
	bits := strings.TrimPrefix(base, "Int")
	switch bits {
	case "":
		width = 4
	case "8":
		width = 1
	case "16":
		width = 2
	case "32":
		width = 4
	case "64":
		width = 8
	default:
		return 0, false, false
	}
	return width, signed, true
}

func (d *Deserializer) readIntProperty(width int, signed, fromArray bool) (value.Value, error) {
	if fromArray {
		v, err := d.prim.Int(width, signed)
		if err != nil {
			return nil, err
		}
		return value.Int(v), nil
	}
	declaredSize, err := d.prim.Int(8, false)
	if err != nil {
		return nil, err
	}
	if _, err := d.prim.Int(1, false); err != nil { // padding
		return nil, err
	}
	v, err := d.prim.Int(width, signed)
	if err != nil {
		return nil, err
	}
	if int(declaredSize) != width {
		d.warn(DiagFieldSizeMismatch, "declared %d, width %d", declaredSize, width)
	}
	return value.Int(v), nil
}

func (d *Deserializer) readFloatOrDoubleProperty(fromArray bool, nameWidth int) (value.Value, error) {
	if fromArray {
		v, err := d.prim.Float(nameWidth)
		if err != nil {
			return nil, err
		}
		return value.Float(v), nil
	}
	declaredSize, err := d.prim.Int(8, false)
	if err != nil {
		return nil, err
	}
	if _, err := d.prim.Int(1, false); err != nil {
		return nil, err
	}
	v, err := d.prim.Float(int(declaredSize))
	if err != nil {
		return nil, err
	}
	return value.Float(v), nil
}

func (d *Deserializer) readBoolProperty(fromArray bool) (value.Value, error) {
	if fromArray {
		v, err := d.prim.Int(1, false)
		if err != nil {
			return nil, err
		}
		return value.Bool(v == 1), nil
	}
	if _, err := d.prim.Int(8, false); err != nil { // size
		return nil, err
	}
	v, err := d.prim.Int(1, false)
	if err != nil {
		return nil, err
	}
	if _, err := d.prim.Int(1, false); err != nil { // padding
		return nil, err
	}
	return value.Bool(v == 1), nil
}

func (d *Deserializer) readByteProperty(fromArray bool) (value.Value, error) {
	if fromArray {
		subType, err := d.names.FName()
		if err != nil {
			return nil, err
		}
		if subType == nametable.None {
			v, err := d.prim.Int(1, false)
			if err != nil {
				return nil, err
			}
			return value.Int(v), nil
		}
		name, err := d.names.FName()
		if err != nil {
			return nil, err
		}
		return value.Name(name), nil
	}
	declaredSize, err := d.prim.Int(8, false)
	if err != nil {
		return nil, err
	}
	subType, err := d.names.FName()
	if err != nil {
		return nil, err
	}
	if _, err := d.prim.Int(1, false); err != nil { // padding
		return nil, err
	}
	if subType == nametable.None {
		v, err := d.prim.Int(int(declaredSize), false)
		if err != nil {
			return nil, err
		}
		return value.Int(v), nil
	}
	name, err := d.names.FName()
	if err != nil {
		return nil, err
	}
	return value.Name(name), nil
}

func (d *Deserializer) readStrProperty(fromArray bool) (value.Value, error) {
	if fromArray {
		s, err := d.prim.String(nil)
		if err != nil {
			return nil, err
		}
		return value.Str(s), nil
	}
	if _, err := d.prim.Int(8, false); err != nil {
		return nil, err
	}
	if _, err := d.prim.Int(1, false); err != nil {
		return nil, err
	}
	s, err := d.prim.String(nil)
	if err != nil {
		return nil, err
	}
	return value.Str(s), nil
}

func (d *Deserializer) readNameProperty(fromArray bool) (value.Value, error) {
	if fromArray {
		name, err := d.names.FName()
		if err != nil {
			return nil, err
		}
		return value.Name(name), nil
	}
	if _, err := d.prim.Int(8, false); err != nil {
		return nil, err
	}
	if _, err := d.prim.Int(1, false); err != nil {
		return nil, err
	}
	name, err := d.names.FName()
	if err != nil {
		return nil, err
	}
	return value.Name(name), nil
}

func (d *Deserializer) readTextProperty() (value.Value, error) {
	if d.TextLayout == TextLayoutLegacy {
		return d.readTextPropertyLegacy()
	}
	if _, err := d.prim.Int(8, false); err != nil { // size
		return nil, err
	}
	if _, err := d.prim.Int(2, false); err != nil { // 16-bit unknown
		return nil, err
	}
	flag, err := d.prim.Int(4, false)
	if err != nil {
		return nil, err
	}
	if flag == textEmptySentinel {
		if _, err := d.prim.Int(4, false); err != nil { // trailing word
			return nil, err
		}
		return value.Text{}, nil
	}
	strs := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		s, err := d.prim.String(nil)
		if err != nil {
			return nil, err
		}
		strs = append(strs, s)
	}
	return value.Text(strs), nil
}

func (d *Deserializer) readTextPropertyLegacy() (value.Value, error) {
	if _, err := d.prim.Int(8, false); err != nil { // size
		return nil, err
	}
	if _, err := d.prim.Int(4, false); err != nil { // unknown
		return nil, err
	}
	flags, err := d.prim.Int(4, false)
	if err != nil {
		return nil, err
	}
	var count int
	switch flags {
	case 255:
		count = 0
		if _, err := d.prim.Int(1, false); err != nil {
			return nil, err
		}
	case 256:
		count = 2
		if _, err := d.prim.Int(2, false); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("properties: unknown legacy text property flags %d", flags)
	}
	strs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		s, err := d.prim.String(nil)
		if err != nil {
			return nil, err
		}
		strs = append(strs, s)
	}
	return value.Text(strs), nil
}

func (d *Deserializer) readSoftObjectProperty(fromArray bool) (value.Value, error) {
	if !fromArray {
		if _, err := d.prim.Int(8, false); err != nil {
			return nil, err
		}
		if _, err := d.prim.Int(1, false); err != nil {
			return nil, err
		}
	}
	path, err := d.names.FName()
	if err != nil {
		return nil, err
	}
	sub, err := d.prim.Int(4, true)
	if err != nil {
		return nil, err
	}
	return value.SoftObjectRef{Path: path, SubPath: int32(sub)}, nil
}

func (d *Deserializer) readFieldPathProperty(fromArray bool) (value.Value, error) {
	if !fromArray {
		if _, err := d.prim.Int(8, false); err != nil {
			return nil, err
		}
		if _, err := d.prim.Int(1, false); err != nil {
			return nil, err
		}
	}
	count, err := d.prim.Int(4, false)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		n, err := d.names.FName()
		if err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	owner, err := d.names.ObjectRef()
	if err != nil {
		return nil, err
	}
	return value.FieldPath{Names: names, Owner: toValueRef(owner)}, nil
}

func (d *Deserializer) readEnumProperty(fromArray bool) (value.Value, error) {
	if fromArray {
		name, err := d.names.FName()
		if err != nil {
			return nil, err
		}
		return value.Name(name), nil
	}
	classID, err := d.prim.Int(8, false)
	if err != nil {
		return nil, err
	}
	class, err := d.names.FName()
	if err != nil {
		return nil, err
	}
	valueID, err := d.prim.Int(1, false)
	if err != nil {
		return nil, err
	}
	val, err := d.names.FName()
	if err != nil {
		return nil, err
	}
	if classID == valueID {
		return nil, errors.Wrapf(ErrEnumAmbiguity, "both ids were %d", classID)
	}
	e := value.Enum{}
	assign := func(id int64, name string) {
		switch id {
		case 8:
			e.Class, e.HasClass = name, true
		case 0:
			e.Val, e.HasVal = name, true
		default:
			d.warn(DiagUnsupportedEnumID, "id %d (name %q)", id, name)
		}
	}
	assign(classID, class)
	assign(valueID, val)
	return e, nil
}

func (d *Deserializer) readArrayProperty() (value.Value, error) {
	declaredSize, err := d.prim.Int(8, false)
	if err != nil {
		return nil, err
	}
	elemType, err := d.names.FName()
	if err != nil {
		return nil, err
	}
	if _, err := d.prim.Int(1, false); err != nil { // flag byte
		return nil, err
	}
	start := d.prim.Cursor().Tell()
	count, err := d.prim.Int(4, false)
	if err != nil {
		return nil, err
	}

	var result value.Value
	if elemType == "StructProperty" {
		// array_struct_name, discarded: the struct reader below re-reads
		// its own framing header.
		if _, err := d.names.FName(); err != nil {
			return nil, err
		}
		innerType, err := d.names.FName()
		if err != nil {
			return nil, err
		}
		result, err = d.readDataAsType(innerType, "", int(count), false)
		if err != nil {
			return nil, err
		}
	} else {
		arr := value.NewArray()
		for i := 0; i < int(count); i++ {
			v, err := d.readDataAsType(elemType, "", 1, true)
			if err != nil {
				return nil, err
			}
			arr.Append(v)
		}
		result = arr
	}

	consumed := d.prim.Cursor().Tell() - start
	if err := d.requireSize(fmt.Sprintf("array of %s", elemType), int64(declaredSize), consumed); err != nil {
		return nil, err
	}
	return result, nil
}

func (d *Deserializer) readMapProperty() (value.Value, error) {
	declaredSize, err := d.prim.Int(8, false)
	if err != nil {
		return nil, err
	}
	keyType, err := d.names.FName()
	if err != nil {
		return nil, err
	}
	valueType, err := d.names.FName()
	if err != nil {
		return nil, err
	}
	if _, err := d.prim.Int(1, false); err != nil { // padding
		return nil, err
	}
	start := d.prim.Cursor().Tell()
	if _, err := d.prim.Int(4, false); err != nil { // unknown
		return nil, err
	}
	count, err := d.prim.Int(4, false)
	if err != nil {
		return nil, err
	}

	m := value.NewMap()
	for i := 0; i < int(count); i++ {
		key, err := d.readDataAsType(keyType, "", 1, true)
		if err != nil {
			return nil, err
		}
		val, err := d.readDataAsType(valueType, "", 1, true)
		if err != nil {
			return nil, err
		}
		m.Set(keyToString(key), val)
		if i < int(count)-1 {
			// Between entries only: guards against a stray "None" some
			// encoders insert as an entry separator. Peeking after the
			// final entry would risk swallowing the enclosing struct's
			// own terminator instead.
			if _, err := d.peekNameOrRewind(); err != nil {
				return nil, err
			}
		}
	}

	consumed := d.prim.Cursor().Tell() - start
	if err := d.requireSize(fmt.Sprintf("map %s->%s", keyType, valueType), int64(declaredSize), consumed); err != nil {
		return nil, err
	}
	return m, nil
}

// keyToString renders a decoded map key as a Go string suitable for
// value.Map's string-keyed index. Name and Str keys (the common case)
// render verbatim; anything else falls back to its JSON form.
func keyToString(v value.Value) string {
	switch t := v.(type) {
	case value.Name:
		return string(t)
	case value.Str:
		return string(t)
	case value.Int:
		return strconv.FormatInt(int64(t), 10)
	case value.Bool:
		return strconv.FormatBool(bool(t))
	default:
		b, err := v.MarshalJSON()
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

func isKnownStructType(t string) bool {
	switch t {
	case "DateTime", "Color", "LinearColor", "Timespan":
		return true
	default:
		return false
	}
}

func (d *Deserializer) readStructProperty(loopCount int) (value.Value, error) {
	declaredSize, err := d.prim.Int(4, false)
	if err != nil {
		return nil, err
	}
	if _, err := d.prim.Int(4, false); err != nil { // dup_id
		return nil, err
	}
	structType, err := d.names.FName()
	if err != nil {
		return nil, err
	}
	if _, err := d.prim.Int(1, false); err != nil { // padding
		return nil, err
	}
	if _, err := d.prim.Int(8, false); err != nil { // unknown word 1
		return nil, err
	}
	if _, err := d.prim.Int(8, false); err != nil { // unknown word 2
		return nil, err
	}

	if !isKnownStructType(structType) {
		d.warn(DiagUnknownStruct, "struct type %q not in the known set; decoding generically", structType)
	}

	start := d.prim.Cursor().Tell()
	loopData := make([]value.Value, 0, loopCount)
	for i := 0; i < loopCount; i++ {
		v, err := d.readStructAsType(structType)
		if err != nil {
			return nil, err
		}
		loopData = append(loopData, v)
	}
	consumed := d.prim.Cursor().Tell() - start
	if err := d.requireSize(fmt.Sprintf("struct %s", structType), int64(declaredSize), consumed); err != nil {
		return nil, err
	}

	if loopCount == 1 {
		if len(loopData) == 0 {
			return value.NewStruct(), nil
		}
		return loopData[0], nil
	}
	arr := value.NewArray()
	for _, v := range loopData {
		arr.Append(v)
	}
	return arr, nil
}

func (d *Deserializer) readStructAsType(structType string) (value.Value, error) {
	switch structType {
	case "DateTime":
		return d.readDateTimeStruct()
	case "Color":
		return d.readColorStruct()
	case "LinearColor":
		return d.readLinearColorStruct()
	case "Timespan":
		return d.readTimespanStruct()
	default:
		return d.readStructBody(false)
	}
}

func (d *Deserializer) readDateTimeStruct() (value.Value, error) {
	date, err := d.prim.Int(4, true)
	if err != nil {
		return nil, err
	}
	t, err := d.prim.Int(4, true)
	if err != nil {
		return nil, err
	}
	return value.DateTime{Date: int32(date), Time: int32(t)}, nil
}

func (d *Deserializer) readColorStruct() (value.Value, error) {
	raw, err := d.prim.Int(4, false)
	if err != nil {
		return nil, err
	}
	alpha := (raw >> 24) & 0xFF
	rgb := raw & 0xFFFFFF
	return value.Color(fmt.Sprintf("#%06x%02x", rgb, alpha)), nil
}

func (d *Deserializer) readLinearColorStruct() (value.Value, error) {
	var c [4]float64
	for i := range c {
		v, err := d.prim.Float(4)
		if err != nil {
			return nil, err
		}
		c[i] = v
	}
	return value.LinearColor(c), nil
}

func (d *Deserializer) readTimespanStruct() (value.Value, error) {
	ticks, err := d.prim.Int(8, false)
	if err != nil {
		return nil, err
	}
	return value.Timespan(uint64(ticks)), nil
}

// readStructBody reads nested properties until the terminating "None"
// fname, accumulating them into an ordered Struct. When hasSuper is true
// (the mPreReqStruct case), each property is preceded by a fname + object
// reference "super" framing pair that is read and discarded.
func (d *Deserializer) readStructBody(hasSuper bool) (*value.Struct, error) {
	s := value.NewStruct()
	for {
		name, err := d.peekNameOrRewind()
		if err != nil {
			return nil, err
		}
		if name == nametable.None {
			// peekNameOrRewind already consumed the terminator bytes
			// (it only rewinds when the name is not "None").
			break
		}
		if hasSuper {
			if _, err := d.names.FName(); err != nil { // super source, re-reads the rewound bytes
				return nil, err
			}
			if _, err := d.names.ObjectRef(); err != nil { // super reference
				return nil, err
			}
		}
		propName, propVal, err := d.ReadPropertyOnce()
		if err != nil {
			return nil, err
		}
		if propName == "" {
			continue
		}
		s.Set(propName, propVal)
	}
	return s, nil
}

func (d *Deserializer) readObjectProperty(elementName string, fromArray bool) (value.Value, error) {
	if fromArray {
		ref, err := d.names.ObjectRef()
		if err != nil {
			return nil, err
		}
		return toValueRef(ref), nil
	}
	if _, err := d.prim.Int(8, false); err != nil { // size
		return nil, err
	}
	if _, err := d.prim.Int(1, false); err != nil { // padding
		return nil, err
	}
	ref, err := d.names.ObjectRef()
	if err != nil {
		return nil, err
	}

	switch elementName {
	case "RowStruct":
		if _, err := d.names.FName(); err != nil { // super, discarded
			return nil, err
		}
		if _, err := d.names.FNameSigned(); err != nil { // file_name, discarded
			return nil, err
		}
		count, err := d.prim.Int(4, false)
		if err != nil {
			return nil, err
		}
		result := value.NewStruct()
		for i := 0; i < int(count); i++ {
			key, err := d.names.FName()
			if err != nil {
				return nil, err
			}
			body, err := d.readStructBody(false)
			if err != nil {
				return nil, err
			}
			result.Set(key, body)
		}
		return result, nil
	case "mLootStruct":
		if _, err := d.names.FName(); err != nil { // super, discarded
			return nil, err
		}
		name, val, err := d.ReadPropertyOnce()
		if err != nil {
			return nil, err
		}
		result := value.NewStruct()
		if name != "" {
			result.Set(name, val)
		}
		return result, nil
	case "ScriptStruct":
		if _, err := d.names.FName(); err != nil { // source, discarded
			return nil, err
		}
		if _, err := d.names.ObjectRef(); err != nil { // reference, discarded
			return nil, err
		}
		d.warn(DiagScriptStructApproximate, "dispatched by element_name %q, not referenced class", elementName)
		result := value.NewStruct()
		for i := 0; i < 3; i++ {
			name, val, err := d.ReadPropertyOnce()
			if err != nil {
				return nil, err
			}
			if name != "" {
				result.Set(name, val)
			}
		}
		return result, nil
	case "mPreReqStruct":
		return d.readStructBody(true)
	default:
		return toValueRef(ref), nil
	}
}

func toValueRef(ref nametable.ObjectRef) value.ObjectRef {
	return value.ObjectRef{Negative: ref.Negative, Index: ref.Index, Name: ref.Name}
}
