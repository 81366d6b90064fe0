package decode

import (
	"os"

	"github.com/tosone/minimp3"

	"github.com/richinsley/gopcm/pcm"
)

type mp3Stream struct {
	f    *os.File
	dec  *minimp3.Decoder
	info Info
}

func newMP3Stream(f *os.File) (Stream, error) {
	dec, err := minimp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	// The decoder learns the stream parameters from the first frame.
	<-dec.Started()
	s := &mp3Stream{
		f:   f,
		dec: dec,
		info: Info{
			Format:     pcm.FormatS16,
			Channels:   dec.Channels,
			SampleRate: dec.SampleRate,
		},
	}
	if s.info.Channels < 1 || s.info.SampleRate < 1 {
		dec.Close()
		f.Close()
		return nil, pcm.ResultFormatNotSupported
	}
	return s, nil
}

func (s *mp3Stream) Info() Info { return s.info }

func (s *mp3Stream) ReadFrames(dst []byte, frameCount int) int {
	frameSize := pcm.FrameSize(s.info.Format, s.info.Channels)
	want := frameCount * frameSize
	total := 0
	for total < want {
		n, err := s.dec.Read(dst[total:want])
		total += n
		if err != nil || n == 0 {
			break
		}
	}
	return total / frameSize
}

func (s *mp3Stream) Close() error {
	s.dec.Close()
	return s.f.Close()
}
