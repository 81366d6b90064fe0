// Package alsa implements the ALSA backend driver for Linux. The driver
// loads libasound at context initialization through purego, so the library
// builds and runs without cgo and degrades to the next backend in the
// priority list on systems without ALSA.
//
// This is a worker-class driver: the device worker goroutine calls
// MainLoop, which blocks in snd_pcm_writei/readi one period at a time
// until BreakMainLoop drops the stream from another goroutine.
package alsa

// DriverName selects this backend in a context's priority list. The
// driver registers itself on Linux only.
const DriverName = "alsa"
