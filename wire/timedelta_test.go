package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embertrace/embertrace/errs"
)

func roundTripDelta(t *testing.T, delta uint32) (uint32, int) {
	t.Helper()

	var w Writer
	WriteTimeDelta(&w, delta)

	r := NewReader(w.Bytes())
	decoded, err := ReadTimeDelta(r)
	require.NoError(t, err)
	require.Equal(t, w.Len(), r.Pos())

	return decoded, w.Len()
}

func TestTimeDelta_RoundTrip_Exponents(t *testing.T) {
	for exp := 0; exp <= 32; exp++ {
		delta := uint32(uint64(1)<<exp - 1)
		decoded, size := roundTripDelta(t, delta)

		if exp <= 15 {
			require.Equal(t, 2, size, "delta %d should use short format", delta)
		} else {
			require.Equal(t, 4, size, "delta %d should use extended format", delta)
		}

		expected := delta
		if expected > MaxTimeDelta {
			expected = MaxTimeDelta
		}
		require.Equal(t, expected, decoded, "delta %d", delta)
	}
}

func TestTimeDelta_RoundTrip_Boundaries(t *testing.T) {
	cases := []struct {
		delta uint32
		size  int
	}{
		{0, 2},
		{1, 2},
		{MaxShortDelta, 2},
		{MaxShortDelta + 1, 4},
		{MaxShortDelta + 2, 4},
		{1 << 16, 4},
		{MaxTimeDelta, 4},
		{MaxTimeDelta + 1, 4}, // clamped
		{^uint32(0), 4},       // clamped
	}

	for _, tc := range cases {
		decoded, size := roundTripDelta(t, tc.delta)
		require.Equal(t, tc.size, size, "delta %d", tc.delta)

		expected := tc.delta
		if expected > MaxTimeDelta {
			expected = MaxTimeDelta
		}
		require.Equal(t, expected, decoded, "delta %d", tc.delta)
	}
}

func TestTimeDelta_AppendMatchesWriter(t *testing.T) {
	for _, delta := range []uint32{0, 500, MaxShortDelta, MaxShortDelta + 1, MaxTimeDelta} {
		var w Writer
		WriteTimeDelta(&w, delta)
		require.Equal(t, w.Bytes(), AppendTimeDelta(nil, delta))
	}
}

func TestTimeDelta_Truncated(t *testing.T) {
	var w Writer
	WriteTimeDelta(&w, MaxShortDelta+1)
	full := w.Bytes()

	for cut := 0; cut < len(full); cut++ {
		r := NewReader(full[:cut])
		_, err := ReadTimeDelta(r)
		require.ErrorIs(t, err, errs.ErrTruncatedInput, "cut at %d", cut)
	}
}
