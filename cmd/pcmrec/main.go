// pcmrec captures from a device into a WAV file, with an optional
// terminal level meter showing the peak sample level of the incoming audio.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/charmbracelet/log"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	flag "github.com/spf13/pflag"

	gopcm "github.com/richinsley/gopcm"
	"github.com/richinsley/gopcm/backend"
	_ "github.com/richinsley/gopcm/backend/alsa"
	_ "github.com/richinsley/gopcm/backend/paudio"
	"github.com/richinsley/gopcm/pcm"
	"github.com/richinsley/gopcm/spectrum"
)

func main() {
	backendName := flag.String("backend", "", "backend to use (default: best available)")
	deviceID := flag.String("device", "", "capture device ID (default: backend default)")
	outPath := flag.String("out", "capture.wav", "output WAV file")
	rate := flag.Int("rate", 48000, "sample rate")
	channels := flag.Int("channels", 2, "channel count")
	seconds := flag.Float64("duration", 5, "seconds to record")
	meter := flag.Bool("meter", true, "show a level meter while recording")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})

	var backends []string
	if *backendName != "" {
		backends = []string{*backendName}
	}
	ctx, err := gopcm.NewContext(backends, gopcm.ContextConfig{Log: logger})
	if err != nil {
		logger.Fatal("no usable backend", "err", err)
	}
	defer ctx.Uninit()

	frameSize := pcm.FrameSize(pcm.FormatS16, *channels)
	// A couple of seconds of slack between the capture callback and the
	// file writer.
	ring := backend.NewRing(*rate*2, frameSize)
	analyzer := spectrum.New(2048, 0.7)
	f32Buf := make([]float32, 0)

	cfg := gopcm.DeviceConfig{
		Format:     pcm.FormatS16,
		Channels:   *channels,
		SampleRate: *rate,
		OnRecv: func(d *gopcm.Device, in []byte, frames int) {
			ring.Write(in, frames)
			if *meter {
				if cap(f32Buf) < frames**channels {
					f32Buf = make([]float32, frames**channels)
				}
				f32Buf = f32Buf[:frames**channels]
				pcm.ToF32(f32Buf, in, pcm.FormatS16, frames**channels)
				analyzer.Push(f32Buf, *channels)
			}
		},
	}

	dev, err := ctx.OpenDevice(backend.Capture, *deviceID, cfg)
	if err != nil {
		logger.Fatal("failed to open capture device", "err", err)
	}
	defer dev.Uninit()

	out, err := os.Create(*outPath)
	if err != nil {
		logger.Fatal("failed to create output", "err", err)
	}
	enc := wav.NewEncoder(out, *rate, 16, *channels, 1)

	if err := dev.Start(); err != nil {
		logger.Fatal("failed to start device", "err", err)
	}
	logger.Info("recording", "file", *outPath, "rate", *rate, "channels", *channels, "seconds", *seconds)

	deadline := time.Now().Add(time.Duration(*seconds * float64(time.Second)))
	chunk := make([]byte, *rate/10*frameSize)
	intBuf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: *channels, SampleRate: *rate},
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		<-ticker.C
		drain(ring, chunk, frameSize, intBuf, enc)
		if *meter {
			drawMeter(analyzer.Peak())
		}
	}
	if err := dev.Stop(); err != nil {
		logger.Error("stop failed", "err", err)
	}
	drain(ring, chunk, frameSize, intBuf, enc)
	if *meter {
		fmt.Println()
	}
	if dropped := ring.Dropped(); dropped > 0 {
		logger.Warn("capture overran the writer", "droppedFrames", dropped)
	}
	if err := enc.Close(); err != nil {
		logger.Fatal("failed to finalize WAV", "err", err)
	}
	if err := out.Close(); err != nil {
		logger.Fatal("failed to close output", "err", err)
	}
	logger.Info("wrote capture", "file", *outPath)
}

// drain moves everything buffered in the ring into the encoder.
func drain(ring *backend.Ring, chunk []byte, frameSize int, intBuf *audio.IntBuffer, enc *wav.Encoder) {
	for {
		frames := ring.Read(chunk, len(chunk)/frameSize)
		if frames == 0 {
			return
		}
		samples := frames * intBuf.Format.NumChannels
		if cap(intBuf.Data) < samples {
			intBuf.Data = make([]int, samples)
		}
		intBuf.Data = intBuf.Data[:samples]
		for i := 0; i < samples; i++ {
			intBuf.Data[i] = int(int16(uint16(chunk[i*2]) | uint16(chunk[i*2+1])<<8))
		}
		if err := enc.Write(intBuf); err != nil {
			return
		}
	}
}

func drawMeter(peak float64) {
	const width = 40
	filled := int(peak * width)
	if filled > width {
		filled = width
	}
	fmt.Printf("\r[%-*s] %4.0f%%", width, strings.Repeat("=", filled), peak*100)
}
