//go:build linux

package alsa

import (
	"fmt"
	"sync/atomic"

	"github.com/ebitengine/purego"

	"github.com/richinsley/gopcm/backend"
	"github.com/richinsley/gopcm/pcm"
)

const defaultLibrary = "libasound.so.2"

func init() {
	backend.Register(DriverName, 100, func() backend.Driver { return &driver{} })
}

// snd_pcm_stream_t
const (
	streamPlayback = 0
	streamCapture  = 1
)

// snd_pcm_access_t
const accessRWInterleaved = 3

// snd_pcm_format_t values for the formats we can hand to snd_pcm_set_params.
const (
	fmtU8      = 1
	fmtS16LE   = 2
	fmtS32LE   = 10
	fmtFloatLE = 14
	fmtS24L3LE = 32 // packed 3-byte s24
)

// Errno magnitudes surfaced by the blocking I/O calls.
const (
	errnoEPIPE    = 32 // xrun
	errnoESTRPIPE = 86 // stream suspended
)

// procs holds the libasound entry points resolved at context init. The
// context exclusively owns these; devices only borrow them.
type procs struct {
	open      func(handle *uintptr, name string, stream int32, mode int32) int32
	close     func(handle uintptr) int32
	setParams func(handle uintptr, format, access int32, channels, rate uint32, softResample int32, latencyUS uint32) int32
	prepare   func(handle uintptr) int32
	start     func(handle uintptr) int32
	drop      func(handle uintptr) int32
	drain     func(handle uintptr) int32
	recover   func(handle uintptr, err int32, silent int32) int32
	writei    func(handle uintptr, buf *byte, frames uintptr) int
	readi     func(handle uintptr, buf *byte, frames uintptr) int
	strerror  func(code int32) string
}

type driver struct {
	lib uintptr
	fn  procs
}

type deviceState struct {
	handle uintptr
	buf    []byte
	brk    atomic.Bool
}

func (d *driver) Name() string { return DriverName }

func (d *driver) ContextInit(cfg backend.ContextConfig) error {
	name := cfg.Alsa.LibraryName
	if name == "" {
		name = defaultLibrary
	}
	lib, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return fmt.Errorf("%w: alsa: %v", pcm.ResultNoBackend, err)
	}
	d.lib = lib
	if err := d.resolve(); err != nil {
		_ = purego.Dlclose(lib)
		d.lib = 0
		return err
	}
	return nil
}

// resolve registers every entry point; RegisterLibFunc panics on a missing
// symbol, which we surface as an API error instead of crashing the probe.
func (d *driver) resolve() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: alsa: %v", pcm.ResultAPINotFound, r)
		}
	}()
	purego.RegisterLibFunc(&d.fn.open, d.lib, "snd_pcm_open")
	purego.RegisterLibFunc(&d.fn.close, d.lib, "snd_pcm_close")
	purego.RegisterLibFunc(&d.fn.setParams, d.lib, "snd_pcm_set_params")
	purego.RegisterLibFunc(&d.fn.prepare, d.lib, "snd_pcm_prepare")
	purego.RegisterLibFunc(&d.fn.start, d.lib, "snd_pcm_start")
	purego.RegisterLibFunc(&d.fn.drop, d.lib, "snd_pcm_drop")
	purego.RegisterLibFunc(&d.fn.drain, d.lib, "snd_pcm_drain")
	purego.RegisterLibFunc(&d.fn.recover, d.lib, "snd_pcm_recover")
	purego.RegisterLibFunc(&d.fn.writei, d.lib, "snd_pcm_writei")
	purego.RegisterLibFunc(&d.fn.readi, d.lib, "snd_pcm_readi")
	purego.RegisterLibFunc(&d.fn.strerror, d.lib, "snd_strerror")
	return nil
}

func (d *driver) ContextUninit() error {
	if d.lib != 0 {
		_ = purego.Dlclose(d.lib)
		d.lib = 0
	}
	return nil
}

func (d *driver) Devices(t backend.DeviceType) ([]backend.Info, error) {
	// Name hints need a second API family; the "default" PCM is always
	// addressable and routes through the user's configuration.
	return []backend.Info{{ID: "default", Name: "Default ALSA PCM", IsDefault: true}}, nil
}

func alsaFormat(f pcm.Format) int32 {
	switch f {
	case pcm.FormatU8:
		return fmtU8
	case pcm.FormatS16:
		return fmtS16LE
	case pcm.FormatS24:
		return fmtS24L3LE
	case pcm.FormatS32:
		return fmtS32LE
	case pcm.FormatF32:
		return fmtFloatLE
	}
	return -1
}

func (d *driver) OpenDevice(s *backend.Session) error {
	name := s.DeviceID
	if name == "" {
		name = "default"
	}
	stream := int32(streamPlayback)
	if s.Type == backend.Capture {
		stream = streamCapture
	}
	var handle uintptr
	if rc := d.fn.open(&handle, name, stream, 0); rc < 0 {
		return fmt.Errorf("%w: alsa: open %q: %s", pcm.ResultFailedToOpenBackendDevice, name, d.fn.strerror(rc))
	}

	granted := s.Format
	latencyUS := uint32(int64(s.BufferSizeInFrames) * 1_000_000 / int64(s.SampleRate))
	rc := d.fn.setParams(handle, alsaFormat(granted), accessRWInterleaved,
		uint32(s.Channels), uint32(s.SampleRate), 1, latencyUS)
	if rc < 0 && granted != pcm.FormatS16 {
		// Fall back to the one format every ALSA PCM accepts and let the
		// pipeline convert.
		s.Logf("alsa: %s rejected for %q, retrying as s16: %s", granted, name, d.fn.strerror(rc))
		granted = pcm.FormatS16
		rc = d.fn.setParams(handle, alsaFormat(granted), accessRWInterleaved,
			uint32(s.Channels), uint32(s.SampleRate), 1, latencyUS)
	}
	if rc < 0 {
		_ = d.fn.close(handle)
		return fmt.Errorf("%w: alsa: set_params on %q: %s", pcm.ResultFormatNotSupported, name, d.fn.strerror(rc))
	}

	s.GrantedFormat = granted
	s.GrantedChannels = s.Channels
	s.GrantedSampleRate = s.SampleRate // soft resampling honours the request
	s.GrantedMap = pcm.DefaultMap(s.Channels)

	frameSize := pcm.FrameSize(granted, s.Channels)
	period := s.PeriodSizeInFrames()
	if period < 1 {
		period = 1
	}
	s.Opaque = &deviceState{
		handle: handle,
		buf:    make([]byte, period*frameSize),
	}
	return nil
}

func (d *driver) CloseDevice(s *backend.Session) error {
	st, _ := s.Opaque.(*deviceState)
	if st == nil {
		return nil
	}
	rc := d.fn.close(st.handle)
	s.Opaque = nil
	if rc < 0 {
		return fmt.Errorf("%w: alsa: close: %s", pcm.ResultError, d.fn.strerror(rc))
	}
	return nil
}

func (d *driver) Start(s *backend.Session) error {
	st := s.Opaque.(*deviceState)
	st.brk.Store(false)
	if rc := d.fn.prepare(st.handle); rc < 0 {
		return fmt.Errorf("%w: alsa: prepare: %s", pcm.ResultFailedToStartBackendDevice, d.fn.strerror(rc))
	}
	period := len(st.buf) / s.GrantedFrameSize()
	if s.Type == backend.Playback {
		// Prime one full buffer; the first writei also starts the stream.
		for i := 0; i < s.Periods; i++ {
			s.ReadPCM(st.buf, period)
			if got := d.fn.writei(st.handle, &st.buf[0], uintptr(period)); got < 0 {
				rc := d.fn.recover(st.handle, int32(got), 1)
				if rc < 0 {
					return fmt.Errorf("%w: alsa: prime: %s", pcm.ResultFailedToStartBackendDevice, d.fn.strerror(rc))
				}
			}
		}
		return nil
	}
	if rc := d.fn.start(st.handle); rc < 0 {
		return fmt.Errorf("%w: alsa: start: %s", pcm.ResultFailedToStartBackendDevice, d.fn.strerror(rc))
	}
	return nil
}

func (d *driver) Stop(s *backend.Session) error {
	st := s.Opaque.(*deviceState)
	var rc int32
	if s.Type == backend.Playback {
		// Blocks until the queued fragment has played.
		rc = d.fn.drain(st.handle)
	} else {
		rc = d.fn.drop(st.handle)
	}
	if rc < 0 {
		return fmt.Errorf("%w: alsa: stop: %s", pcm.ResultFailedToStopBackendDevice, d.fn.strerror(rc))
	}
	return nil
}

func (d *driver) BreakMainLoop(s *backend.Session) error {
	st := s.Opaque.(*deviceState)
	st.brk.Store(true)
	// Dropping the stream forces the blocking writei/readi in MainLoop to
	// return immediately.
	d.fn.drop(st.handle)
	return nil
}

func (d *driver) MainLoop(s *backend.Session) error {
	st := s.Opaque.(*deviceState)
	frameSize := s.GrantedFrameSize()
	period := len(st.buf) / frameSize

	for !st.brk.Load() {
		if s.Type == backend.Playback {
			s.ReadPCM(st.buf, period)
			got := d.fn.writei(st.handle, &st.buf[0], uintptr(period))
			if got < 0 {
				if st.brk.Load() {
					return nil
				}
				if rc := d.fn.recover(st.handle, int32(got), 1); rc < 0 {
					return fmt.Errorf("%w: alsa: writei: %s", pcm.ResultFailedToSendDataToDevice, d.fn.strerror(rc))
				}
			}
			continue
		}
		got := d.fn.readi(st.handle, &st.buf[0], uintptr(period))
		if got < 0 {
			if st.brk.Load() {
				return nil
			}
			if rc := d.fn.recover(st.handle, int32(got), 1); rc < 0 {
				return fmt.Errorf("%w: alsa: readi: %s", pcm.ResultFailedToReadDataFromDevice, d.fn.strerror(rc))
			}
			continue
		}
		if got > 0 {
			s.WritePCM(st.buf[:got*frameSize], got)
		}
	}
	return nil
}

func (d *driver) UsesWorker() bool { return true }
