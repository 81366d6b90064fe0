// Package paudio implements the PortAudio backend driver. PortAudio is a
// push-style host API: once a stream starts, its own callback thread asks
// for (or delivers) each period, so this driver bypasses the device worker
// and pumps the session directly from the native callback.
//
// PortAudio's Initialize/Terminate pair is process-global, so the driver
// reference-counts it: the first context to initialize brings the engine
// up, the last one to uninit tears it down.
package paudio

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/gordonklaus/portaudio"

	"github.com/richinsley/gopcm/backend"
	"github.com/richinsley/gopcm/pcm"
)

// DriverName selects this backend in a context's priority list.
const DriverName = "portaudio"

func init() {
	backend.Register(DriverName, 50, func() backend.Driver { return &driver{} })
}

var engine struct {
	mu   sync.Mutex
	refs int
}

func engineAcquire() error {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.refs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("%w: portaudio: %v", pcm.ResultNoBackend, err)
		}
	}
	engine.refs++
	return nil
}

func engineRelease() {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.refs == 0 {
		return
	}
	engine.refs--
	if engine.refs == 0 {
		_ = portaudio.Terminate()
	}
}

type driver struct{}

type deviceState struct {
	stream *portaudio.Stream
}

func (d *driver) Name() string { return DriverName }

func (d *driver) ContextInit(cfg backend.ContextConfig) error { return engineAcquire() }
func (d *driver) ContextUninit() error {
	engineRelease()
	return nil
}

func (d *driver) Devices(t backend.DeviceType) ([]backend.Info, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: portaudio: %v", pcm.ResultNoDevice, err)
	}
	defIn, _ := portaudio.DefaultInputDevice()
	defOut, _ := portaudio.DefaultOutputDevice()

	var infos []backend.Info
	for _, dev := range devices {
		if t == backend.Playback && dev.MaxOutputChannels > 0 {
			infos = append(infos, backend.Info{ID: dev.Name, Name: dev.Name, IsDefault: dev == defOut})
		}
		if t == backend.Capture && dev.MaxInputChannels > 0 {
			infos = append(infos, backend.Info{ID: dev.Name, Name: dev.Name, IsDefault: dev == defIn})
		}
	}
	return infos, nil
}

func (d *driver) lookup(s *backend.Session) (*portaudio.DeviceInfo, error) {
	if s.DeviceID == "" {
		if s.Type == backend.Playback {
			return portaudio.DefaultOutputDevice()
		}
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name == s.DeviceID {
			return dev, nil
		}
	}
	return nil, pcm.ResultNoDevice
}

func (d *driver) OpenDevice(s *backend.Session) error {
	info, err := d.lookup(s)
	if err != nil {
		return fmt.Errorf("%w: portaudio: %v", pcm.ResultFailedToOpenBackendDevice, err)
	}

	channels := s.Channels
	maxCh := info.MaxOutputChannels
	if s.Type == backend.Capture {
		maxCh = info.MaxInputChannels
	}
	if maxCh < 1 {
		return pcm.ResultNoDevice
	}
	if channels > maxCh {
		channels = maxCh
	}

	latency := time.Duration(s.BufferSizeInFrames) * time.Second / time.Duration(s.SampleRate)
	params := portaudio.StreamParameters{
		SampleRate:      float64(s.SampleRate),
		FramesPerBuffer: s.PeriodSizeInFrames(),
	}
	devParams := portaudio.StreamDeviceParameters{Device: info, Channels: channels, Latency: latency}

	var stream *portaudio.Stream
	var openErr error
	if s.Type == backend.Playback {
		params.Output = devParams
		stream, openErr = portaudio.OpenStream(params, d.playbackCallback(s, channels))
	} else {
		params.Input = devParams
		stream, openErr = portaudio.OpenStream(params, d.captureCallback(s, channels))
	}
	if openErr != nil {
		// Retry at the device's native rate before giving up; the DSP
		// pipeline absorbs the difference.
		params.SampleRate = info.DefaultSampleRate
		if s.Type == backend.Playback {
			stream, openErr = portaudio.OpenStream(params, d.playbackCallback(s, channels))
		} else {
			stream, openErr = portaudio.OpenStream(params, d.captureCallback(s, channels))
		}
		if openErr != nil {
			return fmt.Errorf("%w: portaudio: %v", pcm.ResultFailedToOpenBackendDevice, openErr)
		}
	}

	s.GrantedFormat = pcm.FormatF32
	s.GrantedChannels = channels
	s.GrantedSampleRate = int(params.SampleRate)
	s.GrantedMap = pcm.DefaultMap(channels)
	s.Opaque = &deviceState{stream: stream}
	return nil
}

// playbackCallback pumps the session from PortAudio's callback thread.
// The slice is interleaved f32, exactly the granted format.
func (d *driver) playbackCallback(s *backend.Session, channels int) func(out []float32) {
	return func(out []float32) {
		if len(out) == 0 {
			return
		}
		frames := len(out) / channels
		raw := unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), len(out)*4)
		s.ReadPCM(raw, frames)
	}
}

func (d *driver) captureCallback(s *backend.Session, channels int) func(in []float32) {
	return func(in []float32) {
		if len(in) == 0 {
			return
		}
		frames := len(in) / channels
		raw := unsafe.Slice((*byte)(unsafe.Pointer(&in[0])), len(in)*4)
		s.WritePCM(raw, frames)
	}
}

func (d *driver) CloseDevice(s *backend.Session) error {
	st, _ := s.Opaque.(*deviceState)
	if st == nil || st.stream == nil {
		return nil
	}
	err := st.stream.Close()
	s.Opaque = nil
	if err != nil {
		return fmt.Errorf("%w: portaudio: %v", pcm.ResultError, err)
	}
	return nil
}

func (d *driver) Start(s *backend.Session) error {
	st := s.Opaque.(*deviceState)
	if err := st.stream.Start(); err != nil {
		return fmt.Errorf("%w: portaudio: %v", pcm.ResultFailedToStartBackendDevice, err)
	}
	return nil
}

func (d *driver) Stop(s *backend.Session) error {
	st := s.Opaque.(*deviceState)
	// Stop, not Abort: lets the fragment in flight play out.
	if err := st.stream.Stop(); err != nil {
		return fmt.Errorf("%w: portaudio: %v", pcm.ResultFailedToStopBackendDevice, err)
	}
	return nil
}

// BreakMainLoop and MainLoop are never invoked for push-class drivers.
func (d *driver) BreakMainLoop(s *backend.Session) error { return nil }
func (d *driver) MainLoop(s *backend.Session) error      { return nil }

func (d *driver) UsesWorker() bool { return false }
