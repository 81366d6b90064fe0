package gopcm_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gopcm "github.com/richinsley/gopcm"
	"github.com/richinsley/gopcm/backend"
	"github.com/richinsley/gopcm/pcm"
)

func newNullContext(t *testing.T) *gopcm.Context {
	t.Helper()
	ctx, err := gopcm.NewContext([]string{backend.NullDriverName}, gopcm.ContextConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Uninit() })
	return ctx
}

func Test_Device_StartStopLifecycle(t *testing.T) {
	// Scenario S7.
	ctx := newNullContext(t)

	var stops atomic.Int32
	dev, err := ctx.OpenDevice(backend.Playback, "", gopcm.DeviceConfig{
		Format:     pcm.FormatS16,
		Channels:   2,
		SampleRate: 8000,
		OnSend:     func(d *gopcm.Device, out []byte, frames int) int { return 0 },
		OnStop:     func(d *gopcm.Device) { stops.Add(1) },
	})
	require.NoError(t, err)
	defer dev.Uninit()

	assert.Equal(t, gopcm.StateStopped, dev.State())
	assert.Zero(t, stops.Load(), "construction must not fire onStop")

	require.NoError(t, dev.Start())
	assert.Equal(t, gopcm.StateStarted, dev.State())
	assert.True(t, dev.IsStarted())

	require.NoError(t, dev.Stop())
	assert.Equal(t, gopcm.StateStopped, dev.State())
	assert.Equal(t, int32(1), stops.Load(), "onStop fires exactly once")
}

func Test_Device_StateErrors(t *testing.T) {
	ctx := newNullContext(t)

	dev, err := ctx.OpenDevice(backend.Playback, "", gopcm.DeviceConfig{
		Format: pcm.FormatF32, Channels: 1, SampleRate: 8000,
	})
	require.NoError(t, err)
	defer dev.Uninit()

	assert.ErrorIs(t, dev.Stop(), pcm.ResultDeviceAlreadyStopped)

	require.NoError(t, dev.Start())
	assert.ErrorIs(t, dev.Start(), pcm.ResultDeviceAlreadyStarted)

	require.NoError(t, dev.Stop())
	assert.ErrorIs(t, dev.Stop(), pcm.ResultDeviceAlreadyStopped)
}

func Test_Device_RepeatedSessions(t *testing.T) {
	ctx := newNullContext(t)

	var stops atomic.Int32
	dev, err := ctx.OpenDevice(backend.Playback, "", gopcm.DeviceConfig{
		Format: pcm.FormatS16, Channels: 1, SampleRate: 8000,
		OnStop: func(d *gopcm.Device) { stops.Add(1) },
	})
	require.NoError(t, err)
	defer dev.Uninit()

	for i := 0; i < 3; i++ {
		require.NoError(t, dev.Start(), "session %d", i)
		require.NoError(t, dev.Stop(), "session %d", i)
	}
	assert.Equal(t, int32(3), stops.Load())
}

func Test_Device_UninitStopsImplicitly(t *testing.T) {
	ctx := newNullContext(t)

	var stops atomic.Int32
	dev, err := ctx.OpenDevice(backend.Playback, "", gopcm.DeviceConfig{
		Format: pcm.FormatS16, Channels: 1, SampleRate: 8000,
		OnStop: func(d *gopcm.Device) { stops.Add(1) },
	})
	require.NoError(t, err)

	require.NoError(t, dev.Start())
	require.NoError(t, dev.Uninit())
	assert.Equal(t, int32(1), stops.Load())
	assert.Equal(t, gopcm.StateUninitialized, dev.State())
	assert.ErrorIs(t, dev.Start(), pcm.ResultDeviceNotInitialized)
}

func Test_Context_UninitRequiresClosedDevices(t *testing.T) {
	ctx, err := gopcm.NewContext([]string{backend.NullDriverName}, gopcm.ContextConfig{})
	require.NoError(t, err)

	dev, err := ctx.OpenDevice(backend.Playback, "", gopcm.DeviceConfig{
		Format: pcm.FormatS16, Channels: 1, SampleRate: 8000,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, ctx.Uninit(), pcm.ResultDeviceBusy)
	require.NoError(t, dev.Uninit())
	assert.NoError(t, ctx.Uninit())
}

func Test_Context_UnknownBackend(t *testing.T) {
	_, err := gopcm.NewContext([]string{"does-not-exist"}, gopcm.ContextConfig{})
	assert.ErrorIs(t, err, pcm.ResultNoBackend)
}

func Test_Device_ConfigDefaults(t *testing.T) {
	ctx := newNullContext(t)

	dev, err := ctx.OpenDevice(backend.Playback, "", gopcm.DeviceConfig{
		Format: pcm.FormatS16, Channels: 2, SampleRate: 48000,
	})
	require.NoError(t, err)
	defer dev.Uninit()

	// 25 ms at 48 kHz, split over two periods.
	assert.Equal(t, 1200, dev.BufferSizeInFrames())
	assert.Equal(t, 2, dev.Periods())
	assert.Equal(t, pcm.DefaultMap(2), dev.ChannelMap())

	// Granted geometry is always usable after a successful open.
	assert.NotEqual(t, pcm.FormatUnknown, dev.InternalFormat())
	assert.Greater(t, dev.InternalSampleRate(), 0)
	assert.GreaterOrEqual(t, dev.InternalChannels(), 1)
	assert.LessOrEqual(t, dev.InternalChannels(), pcm.MaxChannels)
}

func Test_Device_ConfigValidation(t *testing.T) {
	ctx := newNullContext(t)

	_, err := ctx.OpenDevice(backend.Playback, "", gopcm.DeviceConfig{
		Format: pcm.FormatS16, Channels: 0, SampleRate: 8000,
	})
	assert.ErrorIs(t, err, pcm.ResultInvalidDeviceConfig)

	_, err = ctx.OpenDevice(backend.Playback, "", gopcm.DeviceConfig{
		Format: pcm.FormatUnknown, Channels: 2, SampleRate: 8000,
	})
	assert.ErrorIs(t, err, pcm.ResultInvalidDeviceConfig)

	_, err = ctx.OpenDevice(backend.Playback, "", gopcm.DeviceConfig{
		Format: pcm.FormatS16, Channels: 2, SampleRate: 500000,
	})
	assert.ErrorIs(t, err, pcm.ResultInvalidDeviceConfig)

	_, err = ctx.OpenDevice(backend.Playback, "", gopcm.DeviceConfig{
		Format: pcm.FormatS16, Channels: 2, SampleRate: 8000,
		ChannelMap: pcm.ChannelMap{pcm.ChannelFrontLeft, pcm.ChannelFrontLeft},
	})
	assert.ErrorIs(t, err, pcm.ResultInvalidDeviceConfig)
}

func Test_Device_PassthroughDetection(t *testing.T) {
	// Scenario S8 at device level: the null backend grants exactly what
	// was requested, so the pipeline must collapse.
	ctx := newNullContext(t)

	dev, err := ctx.OpenDevice(backend.Playback, "", gopcm.DeviceConfig{
		Format: pcm.FormatS16, Channels: 2, SampleRate: 48000,
	})
	require.NoError(t, err)
	defer dev.Uninit()

	assert.True(t, dev.Passthrough())
	assert.Equal(t, dev.Format(), dev.InternalFormat())
	assert.Equal(t, dev.SampleRate(), dev.InternalSampleRate())
	assert.Equal(t, dev.Channels(), dev.InternalChannels())
}

func Test_Device_PlaybackPullsSendCallback(t *testing.T) {
	ctx := newNullContext(t)

	var calls atomic.Int32
	dev, err := ctx.OpenDevice(backend.Playback, "", gopcm.DeviceConfig{
		Format: pcm.FormatS16, Channels: 1, SampleRate: 8000,
		BufferSizeInFrames: 160, Periods: 2,
		OnSend: func(d *gopcm.Device, out []byte, frames int) int {
			calls.Add(1)
			return frames
		},
	})
	require.NoError(t, err)
	defer dev.Uninit()

	require.NoError(t, dev.Start())
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, dev.Stop())

	// Priming plus roughly one call every 10 ms.
	assert.Greater(t, calls.Load(), int32(3))
}

func Test_Device_CaptureDeliversSilence(t *testing.T) {
	ctx := newNullContext(t)

	var frames atomic.Int64
	nonZero := atomic.Bool{}
	dev, err := ctx.OpenDevice(backend.Capture, "", gopcm.DeviceConfig{
		Format: pcm.FormatS16, Channels: 2, SampleRate: 8000,
		BufferSizeInFrames: 160, Periods: 2,
		OnRecv: func(d *gopcm.Device, in []byte, n int) {
			frames.Add(int64(n))
			for _, b := range in {
				if b != 0 {
					nonZero.Store(true)
				}
			}
		},
	})
	require.NoError(t, err)
	defer dev.Uninit()

	require.NoError(t, dev.Start())
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, dev.Stop())

	assert.Greater(t, frames.Load(), int64(0), "capture must deliver frames")
	assert.False(t, nonZero.Load(), "null capture is silence")
}

func Test_Device_CallbackReplacementIsLive(t *testing.T) {
	ctx := newNullContext(t)

	var first, second atomic.Int32
	dev, err := ctx.OpenDevice(backend.Playback, "", gopcm.DeviceConfig{
		Format: pcm.FormatS16, Channels: 1, SampleRate: 8000,
		BufferSizeInFrames: 160, Periods: 2,
		OnSend: func(d *gopcm.Device, out []byte, frames int) int {
			first.Add(1)
			return frames
		},
	})
	require.NoError(t, err)
	defer dev.Uninit()

	require.NoError(t, dev.Start())
	time.Sleep(50 * time.Millisecond)
	dev.SetSendCallback(func(d *gopcm.Device, out []byte, frames int) int {
		second.Add(1)
		return frames
	})
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, dev.Stop())

	assert.Greater(t, first.Load(), int32(0))
	assert.Greater(t, second.Load(), int32(0))
}

func Test_Device_SendCallbackFrameCountBounded(t *testing.T) {
	// The null backend grants the requested u8 mono stream unchanged, so
	// the pump calls the send callback directly; no call may ask for more
	// than one buffer's worth of frames.
	ctx := newNullContext(t)

	var maxFrames atomic.Int32
	dev, err := ctx.OpenDevice(backend.Playback, "", gopcm.DeviceConfig{
		Format: pcm.FormatU8, Channels: 1, SampleRate: 8000,
		BufferSizeInFrames: 160, Periods: 2,
		OnSend: func(d *gopcm.Device, out []byte, frames int) int {
			if int32(frames) > maxFrames.Load() {
				maxFrames.Store(int32(frames))
			}
			for i := 0; i < frames; i++ {
				out[i] = 0x80
			}
			return frames
		},
	})
	require.NoError(t, err)
	defer dev.Uninit()

	require.NoError(t, dev.Start())
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, dev.Stop())

	assert.LessOrEqual(t, maxFrames.Load(), int32(160), "callback sees at most one buffer per call")
	assert.Greater(t, maxFrames.Load(), int32(0))
}
