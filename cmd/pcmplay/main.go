// pcmplay decodes an audio file (wav, flac, mp3, ogg) and plays it on a
// device of the selected backend.
package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	log "github.com/charmbracelet/log"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	gopcm "github.com/richinsley/gopcm"
	"github.com/richinsley/gopcm/backend"
	_ "github.com/richinsley/gopcm/backend/alsa"
	_ "github.com/richinsley/gopcm/backend/paudio"
	"github.com/richinsley/gopcm/decode"
)

// profile is the optional YAML config merged under the command-line flags.
type profile struct {
	Backend  string `yaml:"backend"`
	Device   string `yaml:"device"`
	BufferMS int    `yaml:"buffer_ms"`
	Periods  int    `yaml:"periods"`
}

func loadProfile(path string) (profile, error) {
	var p profile
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	err = yaml.Unmarshal(raw, &p)
	return p, err
}

func main() {
	backendName := flag.String("backend", "", "backend to use (default: best available)")
	deviceID := flag.String("device", "", "device ID from pcmdevices (default: backend default)")
	configPath := flag.String("config", "", "YAML profile with backend/device/buffer settings")
	bufferMS := flag.Int("buffer-ms", 0, "device buffer size in milliseconds")
	periods := flag.Int("periods", 0, "periods per buffer")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if flag.NArg() != 1 {
		logger.Fatal("usage: pcmplay [flags] <file>")
	}
	path := flag.Arg(0)

	prof, err := loadProfile(*configPath)
	if err != nil {
		logger.Fatal("failed to read profile", "err", err)
	}
	if *backendName == "" {
		*backendName = prof.Backend
	}
	if *deviceID == "" {
		*deviceID = prof.Device
	}
	if *bufferMS == 0 {
		*bufferMS = prof.BufferMS
	}
	if *periods == 0 {
		*periods = prof.Periods
	}

	stream, err := decode.Open(path)
	if err != nil {
		logger.Fatal("failed to decode", "file", path, "err", err)
	}
	defer stream.Close()
	info := stream.Info()
	logger.Info("playing", "file", path, "format", info.Format.String(),
		"channels", info.Channels, "rate", info.SampleRate)

	var backends []string
	if *backendName != "" {
		backends = []string{*backendName}
	}
	ctx, err := gopcm.NewContext(backends, gopcm.ContextConfig{Log: logger})
	if err != nil {
		logger.Fatal("no usable backend", "err", err)
	}
	defer ctx.Uninit()

	done := make(chan struct{})
	var eof atomic.Bool

	cfg := gopcm.DeviceConfig{
		Format:     info.Format,
		Channels:   info.Channels,
		SampleRate: info.SampleRate,
		Periods:    *periods,
		OnSend: func(d *gopcm.Device, out []byte, frames int) int {
			n := stream.ReadFrames(out, frames)
			if n < frames && !eof.Swap(true) {
				close(done)
			}
			return n
		},
	}
	if *bufferMS > 0 {
		cfg.BufferSizeInFrames = info.SampleRate / 1000 * *bufferMS
	}

	dev, err := ctx.OpenDevice(backend.Playback, *deviceID, cfg)
	if err != nil {
		logger.Fatal("failed to open device", "err", err)
	}
	defer dev.Uninit()
	logger.Debug("device geometry",
		"internalFormat", dev.InternalFormat().String(),
		"internalRate", dev.InternalSampleRate(),
		"internalChannels", dev.InternalChannels(),
		"passthrough", dev.Passthrough())

	if err := dev.Start(); err != nil {
		logger.Fatal("failed to start device", "err", err)
	}

	<-done
	// Let the device buffer drain before tearing the stream down.
	time.Sleep(time.Duration(dev.BufferSizeInFrames()) * time.Second / time.Duration(dev.SampleRate()))
	if err := dev.Stop(); err != nil {
		logger.Error("stop failed", "err", err)
	}
	fmt.Println("done")
}
