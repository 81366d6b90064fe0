// Package decode adapts file decoders to the pipeline's frame-source
// interface. Each decoder exposes the stream as interleaved frames of one
// of the library's sample formats, so a decoded file can feed a playback
// device directly and the device's pipeline does whatever conversion the
// hardware needs.
package decode

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/richinsley/gopcm/pcm"
)

// Info describes the frames a Stream produces.
type Info struct {
	Format     pcm.Format
	Channels   int
	SampleRate int
}

// Stream is a decoded audio source. ReadFrames returns fewer frames than
// asked only at end of stream.
type Stream interface {
	pcm.Reader
	Info() Info
	Close() error
}

// Open decodes path based on its extension. Supported: .wav, .flac, .mp3,
// .ogg.
func Open(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return newWAVStream(f)
	case ".flac":
		return newFLACStream(f)
	case ".mp3":
		return newMP3Stream(f)
	case ".ogg":
		return newVorbisStream(f)
	}
	f.Close()
	return nil, pcm.ResultFormatNotSupported
}
