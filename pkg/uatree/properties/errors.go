package properties

import "github.com/pkg/errors"

var (
	// ErrUnknownProperty is returned when a property-type fname does not
	// match any known type. Fatal for the enclosing export.
	ErrUnknownProperty = errors.New("properties: unknown property type")
	// ErrSizeMismatch is returned when a struct, array, or map's declared
	// byte size disagrees with the bytes actually consumed by its body.
	// Fatal for the enclosing export.
	ErrSizeMismatch = errors.New("properties: declared size does not match consumed bytes")
	// ErrEnumAmbiguity is returned when an EnumProperty's two id fields
	// collide, so the class/value roles cannot be told apart.
	ErrEnumAmbiguity = errors.New("properties: enum id table did not resolve both class and value roles")
	// ErrSuspiciousNoneTrailer is returned by ReadPropertyOnce when a
	// top-level "None" property is followed by a nonzero trailer. The
	// cursor has already been rewound 12 bytes past the offending bytes;
	// the caller (the top-level export loop) decides how to proceed and
	// by convention stops reading further top-level properties for this
	// export, treating what has been decoded so far as the result.
	ErrSuspiciousNoneTrailer = errors.New("properties: top-level None property had a nonzero trailer")
)
