package decode

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/richinsley/gopcm/pcm"
)

type wavStream struct {
	f      *os.File
	dec    *wav.Decoder
	info   Info
	intBuf *audio.IntBuffer
}

func newWAVStream(f *os.File) (Stream, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, pcm.ResultFormatNotSupported
	}
	dec.ReadInfo()
	if dec.Err() != nil {
		f.Close()
		return nil, dec.Err()
	}
	var format pcm.Format
	switch dec.BitDepth {
	case 8:
		format = pcm.FormatU8
	case 16:
		format = pcm.FormatS16
	case 24:
		format = pcm.FormatS24
	case 32:
		format = pcm.FormatS32
	default:
		f.Close()
		return nil, pcm.ResultFormatNotSupported
	}
	s := &wavStream{
		f:   f,
		dec: dec,
		info: Info{
			Format:     format,
			Channels:   int(dec.NumChans),
			SampleRate: int(dec.SampleRate),
		},
	}
	if s.info.Channels < 1 || s.info.SampleRate < 1 {
		f.Close()
		return nil, pcm.ResultFormatNotSupported
	}
	return s, nil
}

func (s *wavStream) Info() Info { return s.info }

func (s *wavStream) ReadFrames(dst []byte, frameCount int) int {
	samples := frameCount * s.info.Channels
	if s.intBuf == nil || len(s.intBuf.Data) < samples {
		s.intBuf = &audio.IntBuffer{
			Format: &audio.Format{NumChannels: s.info.Channels, SampleRate: s.info.SampleRate},
			Data:   make([]int, samples),
		}
	}
	s.intBuf.Data = s.intBuf.Data[:samples]
	n, err := s.dec.PCMBuffer(s.intBuf)
	if err != nil || n <= 0 {
		return 0
	}
	frames := n / s.info.Channels
	packInts(dst, s.intBuf.Data[:frames*s.info.Channels], s.info.Format)
	return frames
}

func (s *wavStream) Close() error { return s.f.Close() }

// packInts writes decoder-native integers (u8 is already biased in WAV) as
// little-endian samples of the given format.
func packInts(dst []byte, data []int, format pcm.Format) {
	switch format {
	case pcm.FormatU8:
		for i, v := range data {
			dst[i] = byte(v)
		}
	case pcm.FormatS16:
		for i, v := range data {
			dst[i*2] = byte(v)
			dst[i*2+1] = byte(v >> 8)
		}
	case pcm.FormatS24:
		for i, v := range data {
			dst[i*3] = byte(v)
			dst[i*3+1] = byte(v >> 8)
			dst[i*3+2] = byte(v >> 16)
		}
	case pcm.FormatS32:
		for i, v := range data {
			dst[i*4] = byte(v)
			dst[i*4+1] = byte(v >> 8)
			dst[i*4+2] = byte(v >> 16)
			dst[i*4+3] = byte(v >> 24)
		}
	}
}
