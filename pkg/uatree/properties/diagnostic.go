package properties

import "fmt"

// DiagnosticKind classifies a non-fatal condition encountered while
// decoding one export. Diagnostics never abort decoding; they are
// collected for the caller to inspect or log.
type DiagnosticKind int

const (
	// DiagUnknownStruct fires when a StructProperty's struct_type is not
	// one of the specially-handled names (DateTime, Color, LinearColor,
	// Timespan); the body is still read generically.
	DiagUnknownStruct DiagnosticKind = iota
	// DiagSuspiciousNoneTrailer fires when a top-level "None" property
	// name is followed by a nonzero 32-bit trailer.
	DiagSuspiciousNoneTrailer
	// DiagFieldSizeMismatch fires when an IntXx/UIntXx property's
	// declared size field disagrees with the width implied by its
	// property-type name. Unlike struct/array/map SizeMismatch this is
	// not fatal; the value is still read at its name-implied width.
	DiagFieldSizeMismatch
	// DiagUnsupportedEnumID fires when an EnumProperty id does not match
	// the known {0: value, 8: class} role table.
	DiagUnsupportedEnumID
	// DiagScriptStructApproximate fires every time a ScriptStruct is
	// decoded: dispatch is by element_name rather than the referenced
	// object's class, and the "exactly three properties" body shape is a
	// best-effort placeholder (see the design notes on ScriptStruct).
	DiagScriptStructApproximate
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagUnknownStruct:
		return "UnknownStruct"
	case DiagSuspiciousNoneTrailer:
		return "SuspiciousNoneTrailer"
	case DiagFieldSizeMismatch:
		return "FieldSizeMismatch"
	case DiagUnsupportedEnumID:
		return "UnsupportedEnumID"
	case DiagScriptStructApproximate:
		return "ScriptStructApproximate"
	default:
		return "Unknown"
	}
}

// Diagnostic is one recorded non-fatal condition, tagged with the cursor
// offset it occurred at so a caller can correlate it with surrounding
// output.
type Diagnostic struct {
	Kind   DiagnosticKind
	Offset int64
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s@%d: %s", d.Kind, d.Offset, d.Message)
}
