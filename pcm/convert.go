package pcm

import (
	"encoding/binary"
	"math"
)

// Convert transcodes exactly count samples from src (in srcFormat) into dst
// (in dstFormat). dst and src must each hold at least count samples of
// their respective formats. When the formats match the operation is a pure
// byte copy.
//
// The integer<->integer rules are pure shifts with the u8 bias applied, so
// widening then narrowing is lossless. Float conversions clamp out-of-range
// input silently; clipping is not an error anywhere in the library.
func Convert(dst []byte, dstFormat Format, src []byte, srcFormat Format, count int) {
	if count <= 0 {
		return
	}
	if dstFormat == srcFormat {
		copy(dst[:count*dstFormat.SampleSize()], src[:count*srcFormat.SampleSize()])
		return
	}
	switch srcFormat {
	case FormatU8:
		convertFromU8(dst, dstFormat, src, count)
	case FormatS16:
		convertFromS16(dst, dstFormat, src, count)
	case FormatS24:
		convertFromS24(dst, dstFormat, src, count)
	case FormatS32:
		convertFromS32(dst, dstFormat, src, count)
	case FormatF32:
		convertFromF32(dst, dstFormat, src, count)
	}
}

func convertFromU8(dst []byte, dstFormat Format, src []byte, count int) {
	for i := 0; i < count; i++ {
		x := int32(src[i]) - 128
		switch dstFormat {
		case FormatS16:
			putS16(dst, i, int16(x<<8))
		case FormatS24:
			putS24(dst, i, x<<16)
		case FormatS32:
			putS32(dst, i, x<<24)
		case FormatF32:
			putF32(dst, i, float32(float64(src[i])*(1.0/127.5)-1.0))
		}
	}
}

func convertFromS16(dst []byte, dstFormat Format, src []byte, count int) {
	for i := 0; i < count; i++ {
		x := int32(int16(binary.LittleEndian.Uint16(src[i*2:])))
		switch dstFormat {
		case FormatU8:
			dst[i] = byte((x >> 8) + 128)
		case FormatS24:
			putS24(dst, i, x<<8)
		case FormatS32:
			putS32(dst, i, x<<16)
		case FormatF32:
			putF32(dst, i, float32((float64(x)+32768.0)/32767.5-1.0))
		}
	}
}

func convertFromS24(dst []byte, dstFormat Format, src []byte, count int) {
	for i := 0; i < count; i++ {
		x := getS24(src, i)
		switch dstFormat {
		case FormatU8:
			dst[i] = byte((x >> 16) + 128)
		case FormatS16:
			putS16(dst, i, int16(x>>8))
		case FormatS32:
			putS32(dst, i, x<<8)
		case FormatF32:
			putF32(dst, i, float32((float64(x)+8388608.0)/8388607.5-1.0))
		}
	}
}

func convertFromS32(dst []byte, dstFormat Format, src []byte, count int) {
	for i := 0; i < count; i++ {
		x := int32(binary.LittleEndian.Uint32(src[i*4:]))
		switch dstFormat {
		case FormatU8:
			dst[i] = byte((x >> 24) + 128)
		case FormatS16:
			putS16(dst, i, int16(x>>16))
		case FormatS24:
			putS24(dst, i, x>>8)
		case FormatF32:
			// Through double precision so the low bits survive the bias.
			putF32(dst, i, float32(((float64(x)+2147483648.0)+1.0)/4294967296.0*2.0-1.0))
		}
	}
}

func convertFromF32(dst []byte, dstFormat Format, src []byte, count int) {
	for i := 0; i < count; i++ {
		x := float64(math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:])))
		if x < -1 {
			x = -1
		} else if x > 1 {
			x = 1
		}
		switch dstFormat {
		case FormatU8:
			dst[i] = byte(math.Floor((x+1.0)*127.5 + 0.5))
		case FormatS16:
			putS16(dst, i, int16(math.Floor(x*32767.5)))
		case FormatS24:
			putS24(dst, i, int32(math.Floor(x*8388607.5)))
		case FormatS32:
			putS32(dst, i, int32(math.Floor(x*2147483647.5)))
		}
	}
}

func putS16(dst []byte, i int, v int16) {
	binary.LittleEndian.PutUint16(dst[i*2:], uint16(v))
}

func putS32(dst []byte, i int, v int32) {
	binary.LittleEndian.PutUint32(dst[i*4:], uint32(v))
}

func putF32(dst []byte, i int, v float32) {
	binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
}

// getS24 reads a packed little-endian 24-bit sample and sign-extends it.
func getS24(src []byte, i int) int32 {
	raw := uint32(src[i*3]) | uint32(src[i*3+1])<<8 | uint32(src[i*3+2])<<16
	return int32(raw<<8) >> 8
}

func putS24(dst []byte, i int, v int32) {
	dst[i*3] = byte(v)
	dst[i*3+1] = byte(v >> 8)
	dst[i*3+2] = byte(v >> 16)
}

// ToF32 decodes count samples of format f from src into out as float32.
// It is the mid-stage decode used by the resampler cache and the channel
// mixer, kept separate from Convert so f32 pipelines skip the byte round
// trip.
func ToF32(out []float32, src []byte, f Format, count int) {
	switch f {
	case FormatF32:
		for i := 0; i < count; i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
		}
	case FormatU8:
		for i := 0; i < count; i++ {
			out[i] = float32(float64(src[i])*(1.0/127.5) - 1.0)
		}
	case FormatS16:
		for i := 0; i < count; i++ {
			x := int32(int16(binary.LittleEndian.Uint16(src[i*2:])))
			out[i] = float32((float64(x)+32768.0)/32767.5 - 1.0)
		}
	case FormatS24:
		for i := 0; i < count; i++ {
			out[i] = float32((float64(getS24(src, i))+8388608.0)/8388607.5 - 1.0)
		}
	case FormatS32:
		for i := 0; i < count; i++ {
			x := int32(binary.LittleEndian.Uint32(src[i*4:]))
			out[i] = float32(((float64(x)+2147483648.0)+1.0)/4294967296.0*2.0 - 1.0)
		}
	}
}

// FromF32 encodes count float32 samples into dst in format f, applying the
// same clamping and rounding as Convert.
func FromF32(dst []byte, in []float32, f Format, count int) {
	switch f {
	case FormatF32:
		for i := 0; i < count; i++ {
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(in[i]))
		}
	default:
		for i := 0; i < count; i++ {
			x := float64(in[i])
			if x < -1 {
				x = -1
			} else if x > 1 {
				x = 1
			}
			switch f {
			case FormatU8:
				dst[i] = byte(math.Floor((x+1.0)*127.5 + 0.5))
			case FormatS16:
				putS16(dst, i, int16(math.Floor(x*32767.5)))
			case FormatS24:
				putS24(dst, i, int32(math.Floor(x*8388607.5)))
			case FormatS32:
				putS32(dst, i, int32(math.Floor(x*2147483647.5)))
			}
		}
	}
}
