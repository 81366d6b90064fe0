// Package gopcm connects an application to a host audio device, playback
// or capture, over a backend-agnostic abstraction. A Context selects one
// backend driver and owns its runtime symbols; a Device owns a per-device
// worker goroutine, a five-state lifecycle machine, and a DSP pipeline
// that converts between the application's requested sample representation
// and whatever the device actually granted.
//
// The minimal playback loop:
//
//	ctx, err := gopcm.NewContext(nil, gopcm.ContextConfig{})
//	dev, err := ctx.OpenDevice(backend.Playback, "", gopcm.DeviceConfig{
//		Format:     pcm.FormatS16,
//		Channels:   2,
//		SampleRate: 48000,
//		OnSend: func(d *gopcm.Device, out []byte, frames int) int {
//			return fillSamples(out, frames)
//		},
//	})
//	dev.Start()
//	...
//	dev.Stop()
//	dev.Uninit()
//	ctx.Uninit()
//
// Real-time data callbacks run on the device worker (or on the native
// backend thread for push-style backends) and must not block.
package gopcm
