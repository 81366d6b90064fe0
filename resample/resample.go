// Package resample implements the streaming sample-rate converter: a lazy
// stage that pulls frames from an upstream pcm.Reader at one rate and
// produces frames at another. Two algorithms are provided: a passthrough
// for equal rates (identity, apart from sample-format conversion) and a
// two-tap linear interpolator operating in f32 space.
//
// The converter never buffers more than its cache (at most 512 frames of
// f32 samples) plus the two-frame interpolation window, so it is safe to
// drive from a real-time pump.
package resample

import (
	"unsafe"

	"github.com/richinsley/gopcm/pcm"
)

// Algorithm selects the conversion strategy.
type Algorithm int

const (
	// AlgorithmNone passes frames through untouched. Only valid while the
	// input and output rates are equal.
	AlgorithmNone Algorithm = iota
	// AlgorithmLinear interpolates linearly between adjacent input frames.
	AlgorithmLinear
)

// MaxCacheFrames caps the f32 read cache.
const MaxCacheFrames = 512

// Config describes a resampler. FormatIn is the format the upstream Reader
// delivers; FormatOut is the format Read produces.
type Config struct {
	Channels    int
	RateIn      int
	RateOut     int
	FormatIn    pcm.Format
	FormatOut   pcm.Format
	Algorithm   Algorithm
	CacheFrames int // 0 or >MaxCacheFrames means MaxCacheFrames
}

// Resampler converts a lazy stream of frames from RateIn to RateOut.
type Resampler struct {
	cfg   Config
	src   pcm.Reader
	ratio float64 // RateIn / RateOut; advanced into alpha per output frame

	// f32 read cache shared by all algorithms.
	cache     []float32
	cacheCap  int // frames
	cacheLen  int // valid frames
	cacheNext int // next frame index to hand out
	staging   []byte

	// Linear interpolation window.
	prev       []float32
	next       []float32
	work       []float32
	alpha      float64
	prevLoaded bool
	nextLoaded bool
}

// New builds a Resampler pulling from src. Zero rates and out-of-range
// channel counts are rejected with pcm.ResultInvalidArgs.
func New(cfg Config, src pcm.Reader) (*Resampler, error) {
	if src == nil || cfg.Channels < 1 || cfg.Channels > pcm.MaxChannels {
		return nil, pcm.ResultInvalidArgs
	}
	if cfg.RateIn == 0 || cfg.RateOut == 0 {
		return nil, pcm.ResultInvalidArgs
	}
	if cfg.FormatIn.SampleSize() == 0 || cfg.FormatOut.SampleSize() == 0 {
		return nil, pcm.ResultFormatNotSupported
	}
	if cfg.CacheFrames <= 0 || cfg.CacheFrames > MaxCacheFrames {
		cfg.CacheFrames = MaxCacheFrames
	}
	r := &Resampler{
		cfg:      cfg,
		src:      src,
		ratio:    float64(cfg.RateIn) / float64(cfg.RateOut),
		cacheCap: cfg.CacheFrames,
		cache:    make([]float32, cfg.CacheFrames*cfg.Channels),
		prev:     make([]float32, cfg.Channels),
		next:     make([]float32, cfg.Channels),
		work:     make([]float32, cfg.Channels),
	}
	if cfg.FormatIn != pcm.FormatF32 {
		r.staging = make([]byte, cfg.CacheFrames*pcm.FrameSize(cfg.FormatIn, cfg.Channels))
	}
	return r, nil
}

// Config returns the current configuration, reflecting any dynamic rate
// changes made since construction.
func (r *Resampler) Config() Config { return r.cfg }

// SetRates changes the input and output rates between reads. Transitions
// into and out of passthrough are permitted; the interpolation window and
// any cached input are retained.
func (r *Resampler) SetRates(rateIn, rateOut int) error {
	if rateIn == 0 || rateOut == 0 {
		return pcm.ResultInvalidArgs
	}
	r.cfg.RateIn = rateIn
	r.cfg.RateOut = rateOut
	r.ratio = float64(rateIn) / float64(rateOut)
	return nil
}

// Passthrough reports whether reads currently bypass interpolation.
func (r *Resampler) Passthrough() bool {
	return r.cfg.Algorithm == AlgorithmNone || r.cfg.RateIn == r.cfg.RateOut
}

// Read produces up to frameCount frames of FormatOut into dst and returns
// the number written. With flush set, the final partial interpolation
// window is emitted against zero-padded input; without it the window is
// retained for subsequent reads.
func (r *Resampler) Read(dst []byte, frameCount int, flush bool) int {
	if frameCount <= 0 {
		return 0
	}
	if r.Passthrough() {
		return r.readPassthrough(dst, frameCount)
	}
	return r.readLinear(dst, frameCount, flush)
}

// readPassthrough forwards frames, converting format when the two sides
// disagree. It deliberately skips the f32 cache: equal-rate streams must
// stay bit-exact for integer formats.
func (r *Resampler) readPassthrough(dst []byte, frameCount int) int {
	ch := r.cfg.Channels
	if r.cfg.FormatIn == r.cfg.FormatOut {
		return r.src.ReadFrames(dst[:frameCount*pcm.FrameSize(r.cfg.FormatOut, ch)], frameCount)
	}
	if r.staging == nil {
		r.staging = make([]byte, r.cacheCap*pcm.FrameSize(r.cfg.FormatIn, ch))
	}
	inFrame := pcm.FrameSize(r.cfg.FormatIn, ch)
	outFrame := pcm.FrameSize(r.cfg.FormatOut, ch)
	total := 0
	for total < frameCount {
		want := frameCount - total
		if want > r.cacheCap {
			want = r.cacheCap
		}
		got := r.src.ReadFrames(r.staging[:want*inFrame], want)
		pcm.Convert(dst[total*outFrame:], r.cfg.FormatOut, r.staging, r.cfg.FormatIn, got*ch)
		total += got
		if got < want {
			break
		}
	}
	return total
}

func (r *Resampler) readLinear(dst []byte, frameCount int, flush bool) int {
	ch := r.cfg.Channels
	outFrame := pcm.FrameSize(r.cfg.FormatOut, ch)
	mixed := r.work

	produced := 0
	for produced < frameCount {
		if !r.prevLoaded {
			if !r.cacheRead(r.prev) {
				break
			}
			r.prevLoaded = true
		}
		if !r.nextLoaded {
			if r.cacheRead(r.next) {
				r.nextLoaded = true
			} else if !flush {
				// Input ran dry mid-window; keep prev and alpha for the
				// next read.
				break
			} else {
				// Flushing: emit the tail against a zero-padded next until
				// prev drains too.
				clear(r.next)
			}
		}

		for i := 0; i < ch; i++ {
			mixed[i] = r.prev[i]*float32(1-r.alpha) + r.next[i]*float32(r.alpha)
		}
		pcm.FromF32(dst[produced*outFrame:], mixed, r.cfg.FormatOut, ch)
		produced++

		r.alpha += r.ratio
		k := int(r.alpha)
		r.alpha -= float64(k)

		// Shift the window forward k frames. Downsampling ratios advance
		// several steps per output frame; each step still loads exactly one
		// new frame, which reproduces the source's low-quality walk.
		for step := 0; step < k; step++ {
			copy(r.prev, r.next)
			if r.cacheRead(r.next) {
				r.nextLoaded = true
				continue
			}
			if !flush {
				r.nextLoaded = false
				return produced
			}
			if !r.nextLoaded {
				// The zero pad has now been consumed into prev as well;
				// the stream is fully drained.
				r.prevLoaded = false
				return produced
			}
			r.nextLoaded = false
			clear(r.next)
		}
	}
	return produced
}

// cacheRead copies the next cached input frame into out, refilling the
// cache from the upstream Reader when it runs empty. Returns false once the
// upstream has nothing more to give.
func (r *Resampler) cacheRead(out []float32) bool {
	ch := r.cfg.Channels
	if r.cacheNext >= r.cacheLen {
		r.refill()
		if r.cacheLen == 0 {
			return false
		}
	}
	copy(out, r.cache[r.cacheNext*ch:(r.cacheNext+1)*ch])
	r.cacheNext++
	return true
}

func (r *Resampler) refill() {
	ch := r.cfg.Channels
	r.cacheNext = 0
	if r.cfg.FormatIn == pcm.FormatF32 {
		// f32 input lands in the cache directly.
		raw := unsafe.Slice((*byte)(unsafe.Pointer(&r.cache[0])), len(r.cache)*4)
		r.cacheLen = r.src.ReadFrames(raw, r.cacheCap)
		return
	}
	got := r.src.ReadFrames(r.staging, r.cacheCap)
	pcm.ToF32(r.cache, r.staging, r.cfg.FormatIn, got*ch)
	r.cacheLen = got
}
