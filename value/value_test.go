package value

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// point is a user-defined type crossing process boundaries.
type point struct{ x, y int32 }

func (p point) Equal(other Value) bool {
	o, ok := other.(point)
	return ok && o == p
}

func (p point) ExchangeHash() uint64 {
	b, _ := p.MarshalBinary()
	return HashBytes(b)
}

func (p point) String() string { return "point" }

func (p point) TypeName() string { return "test.point" }

func (p point) MarshalBinary() ([]byte, error) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b, uint32(p.x))
	binary.BigEndian.PutUint32(b[4:], uint32(p.y))
	return b, nil
}

func decodePoint(b []byte) (Value, error) {
	if len(b) != 8 {
		return nil, errors.New("bad point")
	}
	return point{int32(binary.BigEndian.Uint32(b)), int32(binary.BigEndian.Uint32(b[4:]))}, nil
}

func TestEqual(t *testing.T) {
	assert.True(t, String("a").Equal(String("a")))
	assert.False(t, String("a").Equal(String("b")))
	assert.False(t, Int(1).Equal(Float(1)), "different kinds are never equal")
	assert.True(t, Bytes("ab").Equal(Bytes("ab")))
	assert.True(t, Pair(String("k"), Int(1)).Equal(Tuple{String("k"), Int(1)}))
	assert.False(t, Pair(String("k"), Int(1)).Equal(Tuple{String("k")}))
	assert.True(t, None{}.Equal(None{}))
}

func TestExchangeHashFollowsEquality(t *testing.T) {
	pairs := [][2]Value{
		{String("key"), String("key")},
		{Int(42), Int(42)},
		{Float(0), Float(math.Copysign(0, -1))},
		{Bytes{1, 2}, Bytes{1, 2}},
		{Pair(String("a"), Int(1)), Pair(String("a"), Int(1))},
	}
	for _, p := range pairs {
		require.True(t, p[0].Equal(p[1]), "%s == %s", p[0], p[1])
		assert.Equal(t, p[0].ExchangeHash(), p[1].ExchangeHash(), "hash of %s", p[0])
	}

	assert.NotEqual(t, String("1").ExchangeHash(), Int(1).ExchangeHash())
	assert.NotEqual(t, Pair(Int(1), Int(2)).ExchangeHash(), Pair(Int(2), Int(1)).ExchangeHash())
}

func TestExchangeHashIsStable(t *testing.T) {
	// Routing depends on these values being identical in every process.
	first := String("stable").ExchangeHash()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, String("stable").ExchangeHash())
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	Register("test.point", decodePoint)

	values := []Value{
		String("hello"),
		Int(-7),
		Float(2.5),
		Bool(true),
		Bytes{0, 1, 2},
		None{},
		Tuple{},
		Pair(String("k"), Tuple{Int(1), Bool(false)}),
		point{3, -4},
	}
	for _, v := range values {
		b, err := Marshal(v)
		require.NoError(t, err, "marshal %s", v)
		got, err := Unmarshal(b)
		require.NoError(t, err, "unmarshal %s", v)
		assert.True(t, v.Equal(got), "want %s, got %s", v, got)
		assert.Equal(t, v.ExchangeHash(), got.ExchangeHash())
	}
}

func TestUnmarshalUnknownCustomType(t *testing.T) {
	b, err := Marshal(unregistered{})
	require.NoError(t, err)
	_, err = Unmarshal(b)
	assert.ErrorIs(t, err, ErrUnknownType)
}

type unregistered struct{ point }

func (unregistered) TypeName() string { return "test.unregistered" }

func TestSplitPair(t *testing.T) {
	k, v, err := SplitPair(Pair(String("k"), Int(3)))
	require.NoError(t, err)
	assert.Equal(t, String("k"), k)
	assert.Equal(t, Int(3), v)

	_, _, err = SplitPair(String("not a pair"))
	assert.ErrorIs(t, err, ErrNotPair)
	_, _, err = SplitPair(Tuple{Int(1), Int(2), Int(3)})
	assert.ErrorIs(t, err, ErrNotPair)
}

func TestString(t *testing.T) {
	assert.Equal(t, `("a", 1)`, Pair(String("a"), Int(1)).String())
	assert.Equal(t, "None", None{}.String())
	assert.True(t, IsNone(None{}))
	assert.False(t, IsNone(Int(0)))
}
