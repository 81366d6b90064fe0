package gopcm

import (
	log "github.com/charmbracelet/log"

	"github.com/richinsley/gopcm/backend"
	"github.com/richinsley/gopcm/dsp"
	"github.com/richinsley/gopcm/pcm"
	"github.com/richinsley/gopcm/resample"
)

// defaultBufferMilliseconds sizes the device buffer when the configuration
// leaves BufferSizeInFrames at zero.
const defaultBufferMilliseconds = 25

// defaultPeriods is used when the configuration leaves Periods at zero.
const defaultPeriods = 2

// maxSampleRate bounds accepted rates.
const maxSampleRate = 384000

// ContextConfig configures backend selection and the shared diagnostics
// sink.
type ContextConfig struct {
	// Log receives context, device and driver diagnostics. Nil means no
	// logging anywhere in the stack.
	Log *log.Logger

	// Per-backend tunables.
	Alsa backend.AlsaConfig
}

// SendProc produces playback data: fill up to frameCount interleaved
// frames of the device's application-facing format into out and return how
// many were written. Frames not written are zeroed by the core. Invoked
// once per period.
type SendProc func(d *Device, out []byte, frameCount int) int

// RecvProc consumes captured data: exactly frameCount interleaved frames
// of the application-facing format. Invoked once per period.
type RecvProc func(d *Device, in []byte, frameCount int)

// StopProc is invoked exactly once each time the device leaves STARTED,
// whether through Stop, Uninit or the backend ending the stream itself.
type StopProc func(d *Device)

// DeviceConfig is the application-facing description of a device to open.
// Format, Channels and SampleRate are mandatory; ChannelMap defaults to
// the standard layout for the channel count, BufferSizeInFrames to 25 ms
// worth of frames, and Periods to 2.
type DeviceConfig struct {
	Format     pcm.Format
	Channels   int
	SampleRate int
	ChannelMap pcm.ChannelMap

	BufferSizeInFrames  int
	Periods             int
	PreferExclusiveMode bool

	// MixMode and SrcAlgorithm tune the conversion pipeline between the
	// application format and whatever the backend grants.
	MixMode      dsp.MixMode
	SrcAlgorithm resample.Algorithm

	OnSend SendProc
	OnRecv RecvProc
	OnStop StopProc

	// UserData rides along on the Device for the callbacks' benefit.
	UserData any
}

// resolve validates cfg and fills the documented defaults in place.
func (cfg *DeviceConfig) resolve() error {
	if cfg.Format == pcm.FormatUnknown || cfg.Format.SampleSize() == 0 {
		return pcm.ResultInvalidDeviceConfig
	}
	if cfg.Channels < 1 || cfg.Channels > pcm.MaxChannels {
		return pcm.ResultInvalidDeviceConfig
	}
	if cfg.SampleRate < 1 || cfg.SampleRate > maxSampleRate {
		return pcm.ResultInvalidDeviceConfig
	}
	if len(cfg.ChannelMap) == 0 {
		cfg.ChannelMap = pcm.DefaultMap(cfg.Channels)
	} else {
		if len(cfg.ChannelMap) != cfg.Channels {
			return pcm.ResultInvalidDeviceConfig
		}
		if err := cfg.ChannelMap.Validate(); err != nil {
			return pcm.ResultInvalidDeviceConfig
		}
	}
	if cfg.BufferSizeInFrames == 0 {
		cfg.BufferSizeInFrames = cfg.SampleRate / 1000 * defaultBufferMilliseconds
	}
	if cfg.BufferSizeInFrames < 1 {
		cfg.BufferSizeInFrames = 1
	}
	if cfg.Periods == 0 {
		cfg.Periods = defaultPeriods
	}
	if cfg.Periods < 1 {
		return pcm.ResultInvalidDeviceConfig
	}
	return nil
}
