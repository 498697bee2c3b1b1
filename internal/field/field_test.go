package field

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceCanonical(t *testing.T) {
	c := NewContext(big.NewInt(7))
	assert.Equal(t, "3", c.Reduce(big.NewInt(10)).String())
	assert.Equal(t, "4", c.Reduce(big.NewInt(-3)).String())
}

func TestDivByZeroIsAFieldError(t *testing.T) {
	c := NewContext(big.NewInt(7))
	_, ok := c.Div(big.NewInt(3), big.NewInt(0))
	assert.False(t, ok)

	q, ok := c.Div(big.NewInt(3), big.NewInt(5))
	require.True(t, ok)
	// inverse of 5 mod 7 is 3 (5*3=15=1 mod 7), so q = 3*3 = 9 = 2 and q*5 = 10 = 3 (mod 7)
	assert.True(t, c.Eq(c.Mul(q, big.NewInt(5)), big.NewInt(3)))
}

func TestIntDivAndModOnRepresentatives(t *testing.T) {
	c := NewContext(big.NewInt(13))
	q, ok := c.IntDiv(big.NewInt(10), big.NewInt(3))
	require.True(t, ok)
	assert.Equal(t, "3", q.String())

	m, ok := c.Mod(big.NewInt(10), big.NewInt(3))
	require.True(t, ok)
	assert.Equal(t, "1", m.String())

	_, ok = c.IntDiv(big.NewInt(10), big.NewInt(0))
	assert.False(t, ok)
}

func TestSignedCompareSplitAtHalf(t *testing.T) {
	c := NewContext(big.NewInt(11)) // half = 5
	assert.False(t, c.Lt(big.NewInt(4), big.NewInt(0))) // 4 stays positive, below half
	assert.True(t, c.Lt(big.NewInt(9), big.NewInt(0)))  // 9 -> 9-11 = -2, negative
	assert.True(t, c.Gt(big.NewInt(0), big.NewInt(9)))  // 0 > -2
	assert.False(t, c.Lt(big.NewInt(4), big.NewInt(3)))
}

func TestAbsDistanceWrapsAroundModulus(t *testing.T) {
	c := NewContext(big.NewInt(11))
	// distance between 1 and 10 is min(9, 2) = 2
	d := c.AbsDistance(big.NewInt(1), big.NewInt(10))
	assert.Equal(t, "2", d.String())
}

func TestValueEquality(t *testing.T) {
	c := DefaultContext()
	a := NewArray([]Value{NewFieldInt64(1), NewFieldInt64(2)})
	b := NewArray([]Value{NewFieldInt64(1), NewFieldInt64(2)})
	d := NewArray([]Value{NewFieldInt64(1), NewFieldInt64(3)})
	assert.True(t, a.Equal(c, b))
	assert.False(t, a.Equal(c, d))
}

func TestInverseOfZeroFails(t *testing.T) {
	c := DefaultContext()
	_, ok := c.Inv(big.NewInt(0))
	assert.False(t, ok)
}

func TestDecimalStringEncoding(t *testing.T) {
	c := NewContext(big.NewInt(11))
	v := NewField(big.NewInt(-1))
	assert.Equal(t, "10", v.DecimalString(c))
}
