// Package dsp composes the per-device transformation chain: sample-format
// conversion, channel-count mixing, channel-layout reordering and
// sample-rate conversion, arranged behind a single lazy read operation.
package dsp

import "github.com/richinsley/gopcm/pcm"

// MixMode selects how channel counts are changed. All mixing happens in
// f32 space.
type MixMode int

const (
	// MixModeBlend averages down to mono and duplicates up from mono.
	// Channel-count pairs where neither side is mono fall back to
	// MixModeBasic behaviour.
	MixModeBlend MixMode = iota
	// MixModeBasic keeps the first channels on a down-mix and zero-fills
	// the new channels on an up-mix.
	MixModeBasic
)

// mixChannels rewrites frames of chIn channels in src as frames of chOut
// channels in dst. dst and src must not alias.
func mixChannels(dst, src []float32, frames, chIn, chOut int, mode MixMode) {
	switch {
	case chIn == chOut:
		copy(dst[:frames*chOut], src[:frames*chIn])
	case chOut < chIn:
		if mode == MixModeBlend && chOut == 1 {
			scale := 1.0 / float32(chIn)
			for f := 0; f < frames; f++ {
				var sum float32
				for i := 0; i < chIn; i++ {
					sum += src[f*chIn+i]
				}
				dst[f] = sum * scale
			}
			return
		}
		for f := 0; f < frames; f++ {
			copy(dst[f*chOut:(f+1)*chOut], src[f*chIn:f*chIn+chOut])
		}
	default: // chOut > chIn
		if mode == MixModeBlend && chIn == 1 {
			for f := 0; f < frames; f++ {
				s := src[f]
				for i := 0; i < chOut; i++ {
					dst[f*chOut+i] = s
				}
			}
			return
		}
		for f := 0; f < frames; f++ {
			copy(dst[f*chOut:], src[f*chIn:(f+1)*chIn])
			for i := chIn; i < chOut; i++ {
				dst[f*chOut+i] = 0
			}
		}
	}
}

// buildShuffle precomputes the remap table between the post-mix
// intermediate layout and the requested output layout: shuffle[i] = j means
// output channel i takes its sample from intermediate channel j, and -1
// means the requested channel has no source and reads silence.
func buildShuffle(intermediate, out pcm.ChannelMap) []int {
	table := make([]int, len(out))
	for i, want := range out {
		table[i] = -1
		for j, have := range intermediate {
			if have == want {
				table[i] = j
				break
			}
		}
	}
	return table
}

// applyShuffle permutes each frame of src through the table into dst.
// dst and src must not alias.
func applyShuffle(dst, src []float32, frames int, table []int, channels int) {
	for f := 0; f < frames; f++ {
		in := src[f*channels : (f+1)*channels]
		outBase := f * channels
		for i, j := range table {
			if j < 0 {
				dst[outBase+i] = 0
			} else {
				dst[outBase+i] = in[j]
			}
		}
	}
}
