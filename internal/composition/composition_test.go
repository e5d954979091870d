package composition

import (
	"testing"

	"github.com/cyclus-sim/cyclus/internal/compmath"
	"github.com/stretchr/testify/require"
)

func TestUniqueIDs(t *testing.T) {
	c1, err := FromAtom(compmath.Vec{92235001: 1.0})
	require.NoError(t, err)
	c2, err := FromAtom(compmath.Vec{92235001: 1.0})
	require.NoError(t, err)
	require.NotEqual(t, c1.ID(), c2.ID())
}

func TestNegativeFractionRejected(t *testing.T) {
	_, err := FromAtom(compmath.Vec{92235001: -1.0})
	require.Error(t, err)
}

func TestAtomMassRoundTrip(t *testing.T) {
	c, err := FromMass(compmath.Vec{92235001: 0.9, 92238001: 0.1})
	require.NoError(t, err)

	mass, err := c.Mass()
	require.NoError(t, err)
	require.InDelta(t, 1.0, mass[92235001]+mass[92238001], compmath.Epsilon)

	atom, err := c.Atom()
	require.NoError(t, err)
	require.InDelta(t, 1.0, atom[92235001]+atom[92238001], compmath.Epsilon)
}

func TestDecayIdempotence(t *testing.T) {
	c, err := FromAtom(compmath.Vec{92235001: 1.0})
	require.NoError(t, err)

	c1, err := c.Decay(6)
	require.NoError(t, err)
	c2, err := c1.Decay(6)
	require.NoError(t, err)

	direct, err := c.Decay(12)
	require.NoError(t, err)

	require.Same(t, c2, direct, "c.Decay(a).Decay(b) must return the same object as c.Decay(a+b) once both lookups hit the chain")
}

func TestDecayMemoizedLookupIsPure(t *testing.T) {
	c, err := FromAtom(compmath.Vec{92235001: 1.0})
	require.NoError(t, err)

	first, err := c.Decay(3)
	require.NoError(t, err)
	second, err := c.Decay(3)
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestDecayNoOpReturnsSelf(t *testing.T) {
	c, err := FromAtom(compmath.Vec{92235001: 1.0})
	require.NoError(t, err)
	same, err := c.Decay(0)
	require.NoError(t, err)
	require.Same(t, c, same)
}

func TestMassFractionZeroGuard(t *testing.T) {
	c, err := FromAtom(compmath.Vec{92235001: 1.0})
	require.NoError(t, err)
	f, err := c.MassFraction(8016)
	require.NoError(t, err)
	require.Equal(t, 0.0, f)
}
