package pcm

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func s16Bytes(vals ...int16) []byte {
	out := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func f32Bytes(vals ...float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func s16Of(t *testing.T, raw []byte) []int16 {
	require.Zero(t, len(raw)%2)
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return out
}

func Test_Convert_U8ToS16_RoundTrip(t *testing.T) {
	// Scenario S1.
	in := []byte{0, 128, 255}
	wide := make([]byte, 6)
	Convert(wide, FormatS16, in, FormatU8, 3)
	assert.Equal(t, []int16{-32768, 0, 32512}, s16Of(t, wide))

	back := make([]byte, 3)
	Convert(back, FormatU8, wide, FormatS16, 3)
	assert.Equal(t, in, back)
}

func Test_Convert_F32Clip(t *testing.T) {
	// Scenario S2: out-of-range floats clamp instead of wrapping.
	in := f32Bytes(-2.0, -1.0, 0.0, 1.0, 2.0)
	out := make([]byte, 10)
	Convert(out, FormatS16, in, FormatF32, 5)
	assert.Equal(t, []int16{-32768, -32768, 0, 32767, 32767}, s16Of(t, out))
}

func Test_Convert_SameFormatIsCopy(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOfN(rapid.Byte(), 3, 300).Draw(t, "raw")
		count := len(raw) / 3
		out := make([]byte, count*3)
		Convert(out, FormatS24, raw, FormatS24, count)
		assert.Equal(t, raw[:count*3], out)
	})
}

func Test_Convert_U8ShiftRules(t *testing.T) {
	in := []byte{0, 1, 128, 200, 255}
	s32 := make([]byte, len(in)*4)
	Convert(s32, FormatS32, in, FormatU8, len(in))
	for i, x := range in {
		got := int32(binary.LittleEndian.Uint32(s32[i*4:]))
		assert.Equal(t, (int32(x)-128)<<24, got)
	}

	s24 := make([]byte, len(in)*3)
	Convert(s24, FormatS24, in, FormatU8, len(in))
	for i, x := range in {
		assert.Equal(t, (int32(x)-128)<<16, getS24(s24, i))
	}
}

func Test_Convert_S16ShiftRules(t *testing.T) {
	vals := []int16{-32768, -1, 0, 1, 32767}
	in := s16Bytes(vals...)

	u8 := make([]byte, len(vals))
	Convert(u8, FormatU8, in, FormatS16, len(vals))
	for i, v := range vals {
		assert.Equal(t, byte((int32(v)>>8)+128), u8[i])
	}

	s32 := make([]byte, len(vals)*4)
	Convert(s32, FormatS32, in, FormatS16, len(vals))
	for i, v := range vals {
		got := int32(binary.LittleEndian.Uint32(s32[i*4:]))
		assert.Equal(t, int32(v)<<16, got)
	}
}

func Test_Convert_S24SignExtension(t *testing.T) {
	// 0x800000 is the most negative 24-bit value.
	in := []byte{0x00, 0x00, 0x80, 0xff, 0xff, 0x7f}
	s32 := make([]byte, 8)
	Convert(s32, FormatS32, in, FormatS24, 2)
	assert.Equal(t, int32(-8388608)<<8, int32(binary.LittleEndian.Uint32(s32[0:])))
	assert.Equal(t, int32(8388607)<<8, int32(binary.LittleEndian.Uint32(s32[4:])))
}

func Test_Convert_F32Endpoints(t *testing.T) {
	in := f32Bytes(-1.0, 0.0, 1.0)

	u8 := make([]byte, 3)
	Convert(u8, FormatU8, in, FormatF32, 3)
	assert.Equal(t, []byte{0, 128, 255}, u8)

	s24 := make([]byte, 9)
	Convert(s24, FormatS24, in, FormatF32, 3)
	assert.Equal(t, int32(-8388608), getS24(s24, 0))
	assert.Equal(t, int32(0), getS24(s24, 1))
	assert.Equal(t, int32(8388607), getS24(s24, 2))

	s32 := make([]byte, 12)
	Convert(s32, FormatS32, in, FormatF32, 3)
	assert.Equal(t, int32(math.MinInt32), int32(binary.LittleEndian.Uint32(s32[0:])))
	assert.Equal(t, int32(0), int32(binary.LittleEndian.Uint32(s32[4:])))
	assert.Equal(t, int32(math.MaxInt32), int32(binary.LittleEndian.Uint32(s32[8:])))
}

// Widening to any larger format and narrowing back must be lossless.
func Test_Convert_WidenNarrowRoundTrips(t *testing.T) {
	wide := []Format{FormatS16, FormatS24, FormatS32, FormatF32}

	rapid.Check(t, func(t *rapid.T) {
		in := rapid.SliceOfN(rapid.Byte(), 1, 64).Draw(t, "in")
		count := len(in)
		for _, w := range wide {
			mid := make([]byte, count*w.SampleSize())
			back := make([]byte, count)
			Convert(mid, w, in, FormatU8, count)
			Convert(back, FormatU8, mid, w, count)
			assert.Equalf(t, in, back, "u8 via %s", w)
		}
	})

	rapid.Check(t, func(t *rapid.T) {
		vals := rapid.SliceOfN(rapid.Int16(), 1, 64).Draw(t, "vals")
		in := s16Bytes(vals...)
		count := len(vals)
		for _, w := range wide[1:] {
			mid := make([]byte, count*w.SampleSize())
			back := make([]byte, count*2)
			Convert(mid, w, in, FormatS16, count)
			Convert(back, FormatS16, mid, w, count)
			assert.Equalf(t, in, back, "s16 via %s", w)
		}
	})
}

// s32 narrows through f32's 24-bit mantissa, so the round trip is only
// accurate to the precision f32 can carry.
func Test_Convert_S32ThroughF32Tolerance(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Int32().Draw(t, "v")
		in := make([]byte, 4)
		binary.LittleEndian.PutUint32(in, uint32(v))
		mid := make([]byte, 4)
		back := make([]byte, 4)
		Convert(mid, FormatF32, in, FormatS32, 1)
		Convert(back, FormatS32, mid, FormatF32, 1)
		got := int32(binary.LittleEndian.Uint32(back))
		assert.InDelta(t, float64(v), float64(got), 256)
	})
}

func Test_Silence(t *testing.T) {
	buf := make([]byte, 8)
	Silence(buf, FormatU8)
	assert.Equal(t, []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80}, buf)
	Silence(buf, FormatS16)
	assert.Equal(t, make([]byte, 8), buf)
}
