package backend

import (
	"sync"
	"time"

	"github.com/richinsley/gopcm/pcm"
)

// NullDriverName selects the hardware-free driver.
const NullDriverName = "null"

func init() {
	Register(NullDriverName, 0, func() Driver { return &nullDriver{} })
}

// nullDriver is a worker-class driver with no hardware behind it: playback
// frames are pulled at the right pace and discarded, capture frames are
// silence delivered at the right pace. It exists so the whole device
// lifecycle can run (and be tested) on any machine.
type nullDriver struct{}

type nullState struct {
	mu     sync.Mutex
	stop   chan struct{}
	broken bool
	buf    []byte
}

func (d *nullDriver) Name() string { return NullDriverName }

func (d *nullDriver) ContextInit(cfg ContextConfig) error { return nil }
func (d *nullDriver) ContextUninit() error                { return nil }

func (d *nullDriver) Devices(t DeviceType) ([]Info, error) {
	if t == Capture {
		return []Info{{ID: "null-capture", Name: "Null Capture Device", IsDefault: true}}, nil
	}
	return []Info{{ID: "null-playback", Name: "Null Playback Device", IsDefault: true}}, nil
}

func (d *nullDriver) OpenDevice(s *Session) error {
	if s.DeviceID != "" && s.DeviceID != "null-playback" && s.DeviceID != "null-capture" {
		return pcm.ResultNoDevice
	}
	// Grant exactly what was asked for.
	s.GrantedFormat = s.Format
	s.GrantedChannels = s.Channels
	s.GrantedSampleRate = s.SampleRate
	s.GrantedMap = s.ChannelMap.Clone()
	s.Opaque = &nullState{
		buf: make([]byte, s.PeriodSizeInFrames()*s.GrantedFrameSize()),
	}
	return nil
}

func (d *nullDriver) CloseDevice(s *Session) error {
	s.Opaque = nil
	return nil
}

func (d *nullDriver) Start(s *Session) error {
	st := s.Opaque.(*nullState)
	st.mu.Lock()
	st.stop = make(chan struct{})
	st.broken = false
	st.mu.Unlock()
	if s.Type == Playback {
		// Prime one buffer's worth before reporting started.
		frames := s.BufferSizeInFrames
		for frames > 0 {
			n := frames
			if max := len(st.buf) / s.GrantedFrameSize(); n > max {
				n = max
			}
			s.ReadPCM(st.buf[:n*s.GrantedFrameSize()], n)
			frames -= n
		}
	}
	return nil
}

func (d *nullDriver) Stop(s *Session) error { return nil }

func (d *nullDriver) BreakMainLoop(s *Session) error {
	st := s.Opaque.(*nullState)
	st.mu.Lock()
	if !st.broken && st.stop != nil {
		st.broken = true
		close(st.stop)
	}
	st.mu.Unlock()
	return nil
}

// MainLoop paces one period per tick, exactly like a sound card raising a
// buffer-complete event.
func (d *nullDriver) MainLoop(s *Session) error {
	st := s.Opaque.(*nullState)
	st.mu.Lock()
	stop := st.stop
	st.mu.Unlock()

	period := s.PeriodSizeInFrames()
	if period < 1 {
		period = 1
	}
	interval := time.Duration(period) * time.Second / time.Duration(s.GrantedSampleRate)
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	frameSize := s.GrantedFrameSize()
	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			if s.Type == Playback {
				s.ReadPCM(st.buf[:period*frameSize], period)
			} else {
				pcm.Silence(st.buf[:period*frameSize], s.GrantedFormat)
				s.WritePCM(st.buf[:period*frameSize], period)
			}
		}
	}
}

func (d *nullDriver) UsesWorker() bool { return true }
