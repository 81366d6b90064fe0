// Package backend defines the contract every host-API driver implements
// and the session object the core hands it. The core calls these
// operations and nothing else; drivers never reach back into the device
// layer except through the session's pump functions.
//
// Two driver classes exist. Worker drivers (UsesWorker true) are pumped by
// the device's worker goroutine: Start begins streaming, MainLoop blocks
// moving data until BreakMainLoop is called from another goroutine. Push
// drivers are driven by the native API's own callback thread; they invoke
// the session pumps from that callback and implement Start/Stop as direct
// transitions, with MainLoop never entered.
package backend

import (
	"sort"

	log "github.com/charmbracelet/log"

	"github.com/richinsley/gopcm/pcm"
)

// DeviceType distinguishes the two data directions.
type DeviceType int

const (
	Playback DeviceType = iota
	Capture
)

func (t DeviceType) String() string {
	if t == Capture {
		return "capture"
	}
	return "playback"
}

// Info describes one enumerable device: an opaque backend-specific ID and
// a human-readable name.
type Info struct {
	ID        string
	Name      string
	IsDefault bool
}

// AlsaConfig tunes the ALSA driver.
type AlsaConfig struct {
	// LibraryName overrides the shared object dlopened at context init.
	// Empty means "libasound.so.2".
	LibraryName string
}

// ContextConfig is what a driver receives when it is probed.
type ContextConfig struct {
	// Log receives driver diagnostics. Nil disables them.
	Log  *log.Logger
	Alsa AlsaConfig
}

// Session is the per-device state shared between the core and a driver.
// The core resolves the requested geometry and wires the pump functions
// before OpenDevice; the driver fills the Granted fields from whatever the
// host API actually provided.
type Session struct {
	Type     DeviceType
	DeviceID string // empty means the backend's default device

	// Requested geometry.
	Format             pcm.Format
	Channels           int
	SampleRate         int
	ChannelMap         pcm.ChannelMap
	BufferSizeInFrames int
	Periods            int
	Exclusive          bool

	// Granted geometry, valid after a successful OpenDevice.
	GrantedFormat     pcm.Format
	GrantedChannels   int
	GrantedSampleRate int
	GrantedMap        pcm.ChannelMap

	// ReadPCM asks the core for up to frameCount frames of granted-format
	// playback data and returns how many were produced; the core zero-fills
	// shortfalls itself, so drivers may treat the return as frameCount.
	ReadPCM func(dst []byte, frameCount int) int
	// WritePCM hands frameCount granted-format captured frames to the core.
	WritePCM func(src []byte, frameCount int)
	// StopNotify tells the core the stream ended on the driver's own
	// initiative (end of stream, unrecoverable error). Only push drivers
	// and MainLoop implementations call it.
	StopNotify func()

	Log *log.Logger

	// Opaque holds driver-private state between Open and Close.
	Opaque any
}

// PeriodSizeInFrames is the granularity of one pump.
func (s *Session) PeriodSizeInFrames() int {
	p := s.Periods
	if p < 1 {
		p = 1
	}
	return s.BufferSizeInFrames / p
}

// GrantedFrameSize is the byte size of one frame in the granted format.
func (s *Session) GrantedFrameSize() int {
	return pcm.FrameSize(s.GrantedFormat, s.GrantedChannels)
}

// Logf logs through the session sink when one is set.
func (s *Session) Logf(format string, args ...any) {
	if s.Log != nil {
		s.Log.Debugf(format, args...)
	}
}

// Driver is the uniform operation set every backend implements. All
// operations are synchronous; failures are pcm.Result values, optionally
// wrapped.
type Driver interface {
	Name() string

	// ContextInit probes the host API and loads its runtime symbols.
	// A host without this API reports pcm.ResultNoBackend.
	ContextInit(cfg ContextConfig) error
	ContextUninit() error

	// Devices enumerates devices of one direction.
	Devices(t DeviceType) ([]Info, error)

	// OpenDevice opens the backend device described by the session and
	// fills the session's Granted fields.
	OpenDevice(s *Session) error
	CloseDevice(s *Session) error

	// Start begins streaming. Playback drivers prime the device with one
	// buffer's worth of frames before returning.
	Start(s *Session) error
	// Stop halts streaming; it may block until the fragment in flight
	// completes.
	Stop(s *Session) error

	// BreakMainLoop unblocks a MainLoop in progress. Called from a
	// goroutine other than the worker's.
	BreakMainLoop(s *Session) error
	// MainLoop pumps data until BreakMainLoop; worker drivers only.
	MainLoop(s *Session) error

	// UsesWorker reports the driver class.
	UsesWorker() bool
}

type registration struct {
	factory  func() Driver
	priority int
}

var registry = map[string]registration{}

// Register makes a driver constructible by name. Higher priority sorts
// earlier in DefaultPriority. Drivers register themselves from init.
func Register(name string, priority int, factory func() Driver) {
	registry[name] = registration{factory: factory, priority: priority}
}

// New constructs a registered driver.
func New(name string) (Driver, error) {
	reg, ok := registry[name]
	if !ok {
		return nil, pcm.ResultNoBackend
	}
	return reg.factory(), nil
}

// DefaultPriority lists the registered backends richest-first; this is the
// order a context tries when the caller expresses no preference.
func DefaultPriority() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := registry[names[i]], registry[names[j]]
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		return names[i] < names[j]
	})
	return names
}
