// Package spectrum computes smoothed FFT magnitudes from a rolling window
// of captured samples. It backs the level meter in the capture tool; the
// device layer never depends on it.
package spectrum

import (
	"math"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Analyzer keeps a history ring of mono samples and renders it as
// normalized frequency magnitudes. Push and Magnitudes may be called from
// different goroutines (capture callback vs. UI).
type Analyzer struct {
	mu      sync.Mutex
	size    int
	history []float64
	pos     int
	win     []float64
	smooth  []float64
	// smoothing blends each new spectrum into the previous one; 0 shows
	// raw frames, values near 1 decay slowly.
	smoothing float64
}

// New creates an analyzer over a window of size samples (rounded up to a
// power of two).
func New(size int, smoothing float64) *Analyzer {
	n := 1
	for n < size {
		n <<= 1
	}
	return &Analyzer{
		size:      n,
		history:   make([]float64, n),
		win:       window.Hamming(n),
		smooth:    make([]float64, n/2),
		smoothing: smoothing,
	}
}

// Push mixes interleaved samples down to mono and appends them to the
// history window.
func (a *Analyzer) Push(samples []float32, channels int) {
	if channels < 1 {
		return
	}
	a.mu.Lock()
	for i := 0; i+channels <= len(samples); i += channels {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i+c]
		}
		a.history[a.pos] = float64(sum) / float64(channels)
		a.pos = (a.pos + 1) % a.size
	}
	a.mu.Unlock()
}

// Magnitudes returns size/2 smoothed magnitudes normalized to [0, 1].
func (a *Analyzer) Magnitudes() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	input := make([]float64, a.size)
	for i := 0; i < a.size; i++ {
		input[i] = a.history[(a.pos+i)%a.size] * a.win[i]
	}
	coeffs := fft.FFTReal(input)

	out := make([]float64, a.size/2)
	scale := 2.0 / float64(a.size)
	for i := range out {
		m := cmplxAbs(coeffs[i]) * scale
		if m > 1 {
			m = 1
		}
		a.smooth[i] = a.smooth[i]*a.smoothing + m*(1-a.smoothing)
		out[i] = a.smooth[i]
	}
	return out
}

// Peak returns the largest absolute sample in the current window.
func (a *Analyzer) Peak() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	peak := 0.0
	for _, v := range a.history {
		if av := math.Abs(v); av > peak {
			peak = av
		}
	}
	return peak
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
