package decode

import (
	"os"

	"github.com/mewkiz/flac"

	"github.com/richinsley/gopcm/pcm"
)

type flacStream struct {
	f      *os.File
	stream *flac.Stream
	info   Info
	shift  uint // left shift aligning decoded samples to the output format
	// pending holds interleaved, already-shifted samples from the last
	// parsed frame that the reader has not consumed yet.
	pending []int32
	offset  int
}

func newFLACStream(f *os.File) (Stream, error) {
	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	si := stream.Info
	s := &flacStream{
		f:      f,
		stream: stream,
		info: Info{
			Channels:   int(si.NChannels),
			SampleRate: int(si.SampleRate),
		},
	}
	bps := uint(si.BitsPerSample)
	switch {
	case bps <= 16:
		s.info.Format = pcm.FormatS16
		s.shift = 16 - bps
	case bps <= 24:
		s.info.Format = pcm.FormatS24
		s.shift = 24 - bps
	default:
		f.Close()
		return nil, pcm.ResultFormatNotSupported
	}
	if s.info.Channels < 1 || s.info.SampleRate < 1 {
		f.Close()
		return nil, pcm.ResultFormatNotSupported
	}
	return s, nil
}

func (s *flacStream) Info() Info { return s.info }

func (s *flacStream) ReadFrames(dst []byte, frameCount int) int {
	ch := s.info.Channels
	sampleSize := s.info.Format.SampleSize()
	produced := 0
	for produced < frameCount {
		if s.offset >= len(s.pending) {
			if !s.decodeNext() {
				break
			}
		}
		avail := (len(s.pending) - s.offset) / ch
		want := frameCount - produced
		if want > avail {
			want = avail
		}
		base := produced * ch * sampleSize
		for i := 0; i < want*ch; i++ {
			v := s.pending[s.offset+i]
			switch s.info.Format {
			case pcm.FormatS16:
				dst[base+i*2] = byte(v)
				dst[base+i*2+1] = byte(v >> 8)
			case pcm.FormatS24:
				dst[base+i*3] = byte(v)
				dst[base+i*3+1] = byte(v >> 8)
				dst[base+i*3+2] = byte(v >> 16)
			}
		}
		s.offset += want * ch
		produced += want
	}
	return produced
}

// decodeNext parses one FLAC frame and interleaves its subframes.
func (s *flacStream) decodeNext() bool {
	frame, err := s.stream.ParseNext()
	if err != nil {
		// io.EOF and a damaged tail frame end the stream the same way.
		return false
	}
	ch := len(frame.Subframes)
	if ch == 0 {
		return false
	}
	n := len(frame.Subframes[0].Samples)
	if cap(s.pending) < n*ch {
		s.pending = make([]int32, n*ch)
	}
	s.pending = s.pending[:n*ch]
	for c, sub := range frame.Subframes {
		for i, v := range sub.Samples {
			s.pending[i*ch+c] = v << s.shift
		}
	}
	s.offset = 0
	return true
}

func (s *flacStream) Close() error { return s.f.Close() }
