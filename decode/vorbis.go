package decode

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/jfreymuth/oggvorbis"

	"github.com/richinsley/gopcm/pcm"
)

type vorbisStream struct {
	f    *os.File
	r    *oggvorbis.Reader
	info Info
	// leftover samples from a read that split mid-frame
	carry []float32
}

func newVorbisStream(f *os.File) (Stream, error) {
	r, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s := &vorbisStream{
		f: f,
		r: r,
		info: Info{
			Format:     pcm.FormatF32,
			Channels:   r.Channels(),
			SampleRate: r.SampleRate(),
		},
	}
	if s.info.Channels < 1 || s.info.SampleRate < 1 {
		f.Close()
		return nil, pcm.ResultFormatNotSupported
	}
	return s, nil
}

func (s *vorbisStream) Info() Info { return s.info }

func (s *vorbisStream) ReadFrames(dst []byte, frameCount int) int {
	ch := s.info.Channels
	want := frameCount * ch
	samples := make([]float32, 0, want)
	samples = append(samples, s.carry...)
	s.carry = s.carry[:0]
	for len(samples) < want {
		buf := make([]float32, want-len(samples))
		n, err := s.r.Read(buf)
		samples = append(samples, buf[:n]...)
		if err != nil || n == 0 {
			break
		}
	}
	frames := len(samples) / ch
	if rem := len(samples) - frames*ch; rem > 0 {
		// Hold the split frame for the next read.
		s.carry = append(s.carry, samples[frames*ch:]...)
	}
	for i := 0; i < frames*ch; i++ {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(samples[i]))
	}
	return frames
}

func (s *vorbisStream) Close() error { return s.f.Close() }
