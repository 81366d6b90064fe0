package spectrum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Analyzer_FindsDominantBin(t *testing.T) {
	const size = 1024
	a := New(size, 0) // no smoothing: the first spectrum is the answer

	// A full-scale sine exactly on bin 64.
	samples := make([]float32, size)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 64 * float64(i) / size))
	}
	a.Push(samples, 1)

	mags := a.Magnitudes()
	require.Len(t, mags, size/2)

	best := 0
	for i, m := range mags {
		if m > mags[best] {
			best = i
		}
	}
	assert.Equal(t, 64, best)
	assert.Greater(t, mags[64], 0.5)
}

func Test_Analyzer_Peak(t *testing.T) {
	a := New(256, 0.5)
	assert.Zero(t, a.Peak())

	a.Push([]float32{0.25, -0.75, 0.1}, 1)
	assert.InDelta(t, 0.75, a.Peak(), 1e-6)
}

func Test_Analyzer_DownmixesInterleaved(t *testing.T) {
	a := New(64, 0)
	// Opposite-phase stereo cancels to silence.
	a.Push([]float32{0.5, -0.5, 0.5, -0.5}, 2)
	assert.Zero(t, a.Peak())
}

func Test_Analyzer_RoundsUpToPowerOfTwo(t *testing.T) {
	a := New(1000, 0)
	assert.Equal(t, 1024, a.size)
}
