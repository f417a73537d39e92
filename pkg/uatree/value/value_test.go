package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestColorRoundTrip(t *testing.T) {
	c := Color("#1A2B3CFF")
	b, err := c.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `"#1A2B3CFF"`, string(b))
}

func TestNoneSentinelBecomesNull(t *testing.T) {
	b, err := Name("None").MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, "null", string(b))

	b2, err := Str("None").MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, "null", string(b2))
}

func TestStructPreservesKeyOrder(t *testing.T) {
	s := NewStruct()
	s.Set("b", Int(2))
	s.Set("a", Int(1))
	b, err := s.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `{"b":2,"a":1}`, string(b))
}

func TestStructRepeatedKeyPromotesToSequence(t *testing.T) {
	s := NewStruct()
	s.Set("Tag", Str("x"))
	s.Set("Tag", Str("y"))
	s.Set("Tag", Str("z"))

	v, ok := s.Get("Tag")
	require.True(t, ok)
	arr, ok := v.(*Array)
	require.True(t, ok)
	require.Equal(t, 3, arr.Len())

	b, err := s.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `{"Tag":["x","y","z"]}`, string(b))
}

func TestEmptyMappingIsPrunedFromParent(t *testing.T) {
	inner := NewStruct()
	outer := NewStruct()
	outer.Set("Kept", Int(1))
	outer.Set("Dropped", inner)

	b, err := outer.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `{"Kept":1}`, string(b))
}

func TestEmptyMapPruningIsIdempotent(t *testing.T) {
	// A struct containing only an empty nested struct renders as "{}" on
	// the first pass; marshaling that result again must still be "{}",
	// never panic or keep pruning forever.
	outer := NewStruct()
	outer.Set("Dropped", NewStruct())

	first, err := outer.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `{}`, string(first))

	wrapper := NewStruct()
	wrapper.Set("Outer", outer)
	second, err := wrapper.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `{}`, string(second))
}

func TestArrayDoesNotPruneEmptyElements(t *testing.T) {
	arr := NewArray()
	arr.Append(NewStruct())
	arr.Append(Int(1))

	b, err := arr.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `[{},1]`, string(b))
}

func TestValueSatisfiesJSONMarshaler(t *testing.T) {
	s := NewStruct()
	s.Set("n", Int(42))
	var v Value = s
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.Equal(t, `{"n":42}`, string(b))
}

func TestMapOverwritesKeepsPosition(t *testing.T) {
	m := NewMap()
	m.Set("k", Int(1))
	m.Set("other", Int(2))
	m.Set("k", Int(3))

	b, err := m.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `{"k":3,"other":2}`, string(b))
}
