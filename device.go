package gopcm

import (
	"sync"
	"sync/atomic"

	"github.com/richinsley/gopcm/backend"
	"github.com/richinsley/gopcm/dsp"
	"github.com/richinsley/gopcm/pcm"
)

// State is the device lifecycle state. Between OpenDevice and Uninit a
// device is always in one of the four live states.
type State uint32

const (
	StateUninitialized State = iota
	StateStopped
	StateStarting
	StateStarted
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StateStopping:
		return "stopping"
	}
	return "uninitialized"
}

// Device is one open playback or capture stream. All methods are safe to
// call from any goroutine; the real-time callbacks run on the device
// worker or the backend's native thread.
type Device struct {
	ctx     *Context
	typ     backend.DeviceType
	cfg     DeviceConfig
	session *backend.Session

	// pipeline converts between the application representation and the
	// granted device representation (app→device for playback,
	// device→app for capture).
	pipeline *dsp.Pipeline

	state atomic.Uint32

	// mu serializes lifecycle transitions. The worker never takes it; it
	// observes state with atomic loads only.
	mu sync.Mutex

	// Auto-reset events: capacity-1 channels, non-blocking signal,
	// receiving consumes the signal.
	wakeupEvent chan struct{}
	startEvent  chan struct{}
	stopEvent   chan struct{}

	// workResult carries the worker's start_backend outcome across the
	// startEvent handshake.
	workResult error
	workerDone chan struct{}

	onSend atomic.Pointer[SendProc]
	onRecv atomic.Pointer[RecvProc]
	onStop atomic.Pointer[StopProc]

	// Capture delivery scratch, touched only by the pumping thread.
	capBuf       []byte
	capBufFrames int
	capSrc       []byte
	capOff       int
	capFrames    int

	// UserData is whatever DeviceConfig.UserData carried; the library
	// never touches it.
	UserData any
}

// OpenDevice opens a device of the given direction on the context's
// backend. deviceID selects a device from Devices; empty means the
// backend's default. The returned device is in StateStopped.
func (c *Context) OpenDevice(t backend.DeviceType, deviceID string, cfg DeviceConfig) (*Device, error) {
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	if err := c.deviceOpened(); err != nil {
		return nil, err
	}

	d := &Device{
		ctx:         c,
		typ:         t,
		cfg:         cfg,
		UserData:    cfg.UserData,
		wakeupEvent: make(chan struct{}, 1),
		startEvent:  make(chan struct{}, 1),
		stopEvent:   make(chan struct{}, 1),
		workerDone:  make(chan struct{}),
	}
	if cfg.OnSend != nil {
		cb := cfg.OnSend
		d.onSend.Store(&cb)
	}
	if cfg.OnRecv != nil {
		cb := cfg.OnRecv
		d.onRecv.Store(&cb)
	}
	if cfg.OnStop != nil {
		cb := cfg.OnStop
		d.onStop.Store(&cb)
	}

	sess := &backend.Session{
		Type:               t,
		DeviceID:           deviceID,
		Format:             cfg.Format,
		Channels:           cfg.Channels,
		SampleRate:         cfg.SampleRate,
		ChannelMap:         cfg.ChannelMap.Clone(),
		BufferSizeInFrames: cfg.BufferSizeInFrames,
		Periods:            cfg.Periods,
		Exclusive:          cfg.PreferExclusiveMode,
		Log:                c.cfg.Log,
	}
	d.session = sess
	if t == backend.Playback {
		sess.ReadPCM = d.readPlaybackFrames
	} else {
		sess.WritePCM = d.deliverCaptureFrames
	}
	sess.StopNotify = d.notifyBackendStopped

	if err := c.driver.OpenDevice(sess); err != nil {
		c.deviceClosed()
		return nil, err
	}

	// The backend must have granted a usable configuration.
	if sess.GrantedFormat.SampleSize() == 0 ||
		sess.GrantedChannels < 1 || sess.GrantedChannels > pcm.MaxChannels ||
		sess.GrantedSampleRate <= 0 {
		_ = c.driver.CloseDevice(sess)
		c.deviceClosed()
		return nil, pcm.ResultFailedToOpenBackendDevice
	}
	if sess.GrantedMap.Unspecified() {
		sess.GrantedMap = pcm.DefaultMap(sess.GrantedChannels)
	}
	if c.cfg.Log != nil &&
		(sess.GrantedFormat != cfg.Format || sess.GrantedChannels != cfg.Channels ||
			sess.GrantedSampleRate != cfg.SampleRate) {
		c.cfg.Log.Debug("backend granted a different configuration",
			"requested", cfg.Format.String(), "granted", sess.GrantedFormat.String(),
			"requestedRate", cfg.SampleRate, "grantedRate", sess.GrantedSampleRate,
			"requestedChannels", cfg.Channels, "grantedChannels", sess.GrantedChannels)
	}

	if err := d.buildPipeline(); err != nil {
		_ = c.driver.CloseDevice(sess)
		c.deviceClosed()
		return nil, err
	}

	if c.driver.UsesWorker() {
		go d.worker()
		// The worker parks in StateStopped before OpenDevice returns.
		<-d.stopEvent
	} else {
		d.state.Store(uint32(StateStopped))
	}
	return d, nil
}

func (d *Device) buildPipeline() error {
	sess := d.session
	var pcfg dsp.Config
	if d.typ == backend.Playback {
		pcfg = dsp.Config{
			FormatIn: d.cfg.Format, ChannelsIn: d.cfg.Channels,
			RateIn: d.cfg.SampleRate, MapIn: d.cfg.ChannelMap,
			FormatOut: sess.GrantedFormat, ChannelsOut: sess.GrantedChannels,
			RateOut: sess.GrantedSampleRate, MapOut: sess.GrantedMap,
			MixMode: d.cfg.MixMode, SrcAlgorithm: d.cfg.SrcAlgorithm,
		}
	} else {
		pcfg = dsp.Config{
			FormatIn: sess.GrantedFormat, ChannelsIn: sess.GrantedChannels,
			RateIn: sess.GrantedSampleRate, MapIn: sess.GrantedMap,
			FormatOut: d.cfg.Format, ChannelsOut: d.cfg.Channels,
			RateOut: d.cfg.SampleRate, MapOut: d.cfg.ChannelMap,
			MixMode: d.cfg.MixMode, SrcAlgorithm: d.cfg.SrcAlgorithm,
		}
	}
	var source pcm.Reader
	if d.typ == backend.Playback {
		source = pcm.ReaderFunc(d.appSourceRead)
	} else {
		source = pcm.ReaderFunc(d.captureSourceRead)
	}
	pl, err := dsp.New(pcfg, source)
	if err != nil {
		return err
	}
	d.pipeline = pl

	if d.typ == backend.Capture {
		appFrame := pcm.FrameSize(d.cfg.Format, d.cfg.Channels)
		scaled := int(int64(sess.PeriodSizeInFrames())*int64(d.cfg.SampleRate)/int64(sess.GrantedSampleRate)) + 16
		d.capBufFrames = scaled
		d.capBuf = make([]byte, scaled*appFrame)
	}
	return nil
}

// State returns the device's lifecycle state.
func (d *Device) State() State { return State(d.state.Load()) }

// IsStarted reports whether the device is actively streaming.
func (d *Device) IsStarted() bool { return d.State() == StateStarted }

// Context returns the owning context.
func (d *Device) Context() *Context { return d.ctx }

// Type returns the device direction.
func (d *Device) Type() backend.DeviceType { return d.typ }

// Format, Channels, SampleRate and ChannelMap describe the
// application-facing side of the stream.
func (d *Device) Format() pcm.Format         { return d.cfg.Format }
func (d *Device) Channels() int              { return d.cfg.Channels }
func (d *Device) SampleRate() int            { return d.cfg.SampleRate }
func (d *Device) ChannelMap() pcm.ChannelMap { return d.cfg.ChannelMap.Clone() }

// InternalFormat, InternalChannels, InternalSampleRate and
// InternalChannelMap describe what the backend actually granted; they may
// differ from the requested configuration.
func (d *Device) InternalFormat() pcm.Format         { return d.session.GrantedFormat }
func (d *Device) InternalChannels() int              { return d.session.GrantedChannels }
func (d *Device) InternalSampleRate() int            { return d.session.GrantedSampleRate }
func (d *Device) InternalChannelMap() pcm.ChannelMap { return d.session.GrantedMap.Clone() }

// BufferSizeInFrames and Periods return the resolved buffer geometry.
func (d *Device) BufferSizeInFrames() int { return d.cfg.BufferSizeInFrames }
func (d *Device) Periods() int            { return d.cfg.Periods }

// Passthrough reports whether the conversion pipeline is a no-op (the
// backend granted the requested configuration on all four axes).
func (d *Device) Passthrough() bool { return d.pipeline.Passthrough() }

// SetSendCallback replaces the playback data callback. Atomic; the pump
// loads the pointer once per invocation.
func (d *Device) SetSendCallback(cb SendProc) {
	if cb == nil {
		d.onSend.Store(nil)
		return
	}
	d.onSend.Store(&cb)
}

// SetRecvCallback replaces the capture data callback. Atomic.
func (d *Device) SetRecvCallback(cb RecvProc) {
	if cb == nil {
		d.onRecv.Store(nil)
		return
	}
	d.onRecv.Store(&cb)
}

// SetStopCallback replaces the stop notification callback. Atomic.
func (d *Device) SetStopCallback(cb StopProc) {
	if cb == nil {
		d.onStop.Store(nil)
		return
	}
	d.onStop.Store(&cb)
}

func (d *Device) driver() backend.Driver { return d.ctx.driver }

// Start begins streaming. It blocks until the worker reports the backend
// started (or failed to); a failed start leaves the device in
// StateStopped.
func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.State() {
	case StateUninitialized:
		return pcm.ResultDeviceNotInitialized
	case StateStarted:
		return pcm.ResultDeviceAlreadyStarted
	case StateStarting:
		return pcm.ResultDeviceAlreadyStarting
	case StateStopping:
		return pcm.ResultDeviceBusy
	}
	d.state.Store(uint32(StateStarting))

	if !d.driver().UsesWorker() {
		// Push-class backend: direct transition, no handshake.
		if err := d.driver().Start(d.session); err != nil {
			d.state.Store(uint32(StateStopped))
			return err
		}
		d.state.Store(uint32(StateStarted))
		return nil
	}

	drainEvent(d.startEvent)
	signalEvent(d.wakeupEvent)
	<-d.startEvent
	return d.workResult
}

// Stop halts streaming. It blocks until the worker has stopped the
// backend and invoked the stop callback.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.State() {
	case StateUninitialized:
		return pcm.ResultDeviceNotInitialized
	case StateStopped:
		return pcm.ResultDeviceAlreadyStopped
	case StateStopping:
		return pcm.ResultDeviceAlreadyStopping
	case StateStarting:
		return pcm.ResultDeviceBusy
	}
	d.state.Store(uint32(StateStopping))

	if !d.driver().UsesWorker() {
		err := d.driver().Stop(d.session)
		d.state.Store(uint32(StateStopped))
		d.invokeOnStop()
		return err
	}

	drainEvent(d.stopEvent)
	if err := d.driver().BreakMainLoop(d.session); err != nil {
		d.session.Logf("break_main_loop failed: %v", err)
	}
	<-d.stopEvent
	return nil
}

// Uninit closes the device, stopping it first if needed, and releases its
// backend resources. The device must not be used afterwards.
func (d *Device) Uninit() error {
	switch d.State() {
	case StateUninitialized:
		return pcm.ResultDeviceNotInitialized
	case StateStarted, StateStarting:
		_ = d.Stop()
	}

	d.mu.Lock()
	d.state.Store(uint32(StateUninitialized))
	d.mu.Unlock()

	if d.driver().UsesWorker() {
		signalEvent(d.wakeupEvent)
		<-d.workerDone
	}
	err := d.driver().CloseDevice(d.session)
	d.ctx.deviceClosed()
	return err
}

// worker is the per-device pump goroutine: it owns every backend
// start/stop so those always run on one known goroutine, and it decouples
// the application's Start/Stop calls from potentially slow backend work.
func (d *Device) worker() {
	defer close(d.workerDone)
	wasStarted := false
	for {
		if wasStarted {
			if err := d.driver().Stop(d.session); err != nil {
				d.session.Logf("stop_backend failed: %v", err)
			}
			wasStarted = false
			d.state.Store(uint32(StateStopped))
			d.invokeOnStop()
		} else {
			d.state.Store(uint32(StateStopped))
		}
		signalEvent(d.stopEvent)

		<-d.wakeupEvent
		if d.State() == StateUninitialized {
			return
		}

		// The only way to be woken outside teardown is a start handshake.
		err := d.driver().Start(d.session)
		d.workResult = err
		if err != nil {
			d.state.Store(uint32(StateStopped))
			signalEvent(d.startEvent)
			continue
		}
		d.state.Store(uint32(StateStarted))
		signalEvent(d.startEvent)

		if err := d.driver().MainLoop(d.session); err != nil {
			d.session.Logf("main_loop exited with error: %v", err)
		}
		wasStarted = true
	}
}

func (d *Device) invokeOnStop() {
	if cb := d.onStop.Load(); cb != nil && *cb != nil {
		(*cb)(d)
	}
}

// notifyBackendStopped handles a push-class driver reporting that the
// stream ended on its own (end of data, unrecoverable error).
func (d *Device) notifyBackendStopped() {
	d.mu.Lock()
	if d.State() != StateStarted {
		d.mu.Unlock()
		return
	}
	d.state.Store(uint32(StateStopped))
	d.mu.Unlock()
	d.invokeOnStop()
}

// readPlaybackFrames is the playback pump: it always produces frameCount
// frames in the granted format, zero-filling whatever the application and
// pipeline could not supply.
func (d *Device) readPlaybackFrames(dst []byte, frameCount int) int {
	fs := d.session.GrantedFrameSize()
	n := d.pipeline.ReadFrames(dst[:frameCount*fs], frameCount, false)
	if n < frameCount {
		pcm.Silence(dst[n*fs:frameCount*fs], d.session.GrantedFormat)
	}
	return frameCount
}

// appSourceRead feeds the playback pipeline from the application's send
// callback, zero-filling shortfalls so the stream never starves.
func (d *Device) appSourceRead(dst []byte, frameCount int) int {
	fs := pcm.FrameSize(d.cfg.Format, d.cfg.Channels)
	written := 0
	if cb := d.onSend.Load(); cb != nil && *cb != nil {
		written = (*cb)(d, dst[:frameCount*fs], frameCount)
		if written < 0 {
			written = 0
		}
		if written > frameCount {
			written = frameCount
		}
	}
	if written < frameCount {
		pcm.Silence(dst[written*fs:frameCount*fs], d.cfg.Format)
	}
	return frameCount
}

// deliverCaptureFrames pushes one backend chunk of granted-format frames
// through the capture pipeline and on to the receive callback.
func (d *Device) deliverCaptureFrames(src []byte, frameCount int) {
	d.capSrc, d.capOff, d.capFrames = src, 0, frameCount
	appFrame := pcm.FrameSize(d.cfg.Format, d.cfg.Channels)
	for {
		n := d.pipeline.ReadFrames(d.capBuf, d.capBufFrames, false)
		if n == 0 {
			break
		}
		if cb := d.onRecv.Load(); cb != nil && *cb != nil {
			(*cb)(d, d.capBuf[:n*appFrame], n)
		}
		if n < d.capBufFrames {
			break
		}
	}
	d.capSrc = nil
}

// captureSourceRead feeds the capture pipeline from the chunk currently
// being delivered.
func (d *Device) captureSourceRead(dst []byte, frameCount int) int {
	remain := d.capFrames - d.capOff
	if remain <= 0 {
		return 0
	}
	if frameCount > remain {
		frameCount = remain
	}
	fs := d.session.GrantedFrameSize()
	copy(dst[:frameCount*fs], d.capSrc[d.capOff*fs:])
	d.capOff += frameCount
	return frameCount
}

// signalEvent sets an auto-reset event; signalling an already-set event is
// a no-op, exactly like a Win32 auto-reset event.
func signalEvent(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// drainEvent clears a possibly stale signal before a fresh handshake.
func drainEvent(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}
