package dsp

import (
	"unsafe"

	"github.com/richinsley/gopcm/pcm"
	"github.com/richinsley/gopcm/resample"
)

// maxStageFrames bounds how many frames move through the chain per chunk;
// it matches the resampler cache so one chunk never refills twice.
const maxStageFrames = resample.MaxCacheFrames

// Config fixes both sides of a pipeline. The "in" side is what the
// upstream source delivers, the "out" side is what ReadFrames produces.
// For a playback device the in side is the application and the out side is
// the backend; for capture the roles are reversed.
type Config struct {
	FormatIn   pcm.Format
	ChannelsIn int
	RateIn     int
	MapIn      pcm.ChannelMap

	FormatOut   pcm.Format
	ChannelsOut int
	RateOut     int
	MapOut      pcm.ChannelMap

	MixMode      MixMode
	SrcAlgorithm resample.Algorithm
	CacheFrames  int
}

// Pipeline is the lazy conversion chain:
//
//	source → [SRC] → [channel mix] → [channel remap] → [format convert] → dst
//
// Stages whose two sides agree are elided; when every axis agrees the whole
// chain collapses to a single direct read.
type Pipeline struct {
	cfg    Config
	source pcm.Reader
	src    *resample.Resampler // nil until a rate difference exists

	mixRequired     bool
	shuffleRequired bool
	passthrough     bool

	// Intermediate layout produced by the mix stage, and the remap table
	// from it to MapOut. Built once at init.
	postMixMap pcm.ChannelMap
	shuffle    []int

	// Ping-pong staging: two buffers of maxStageFrames × max(Cin,Cout) ×
	// the largest sample size. f32A/f32B alias them for the mid stages.
	stagingA []byte
	stagingB []byte
	f32A     []float32
	f32B     []float32
}

// New validates cfg and builds the pipeline around source.
func New(cfg Config, source pcm.Reader) (*Pipeline, error) {
	if source == nil {
		return nil, pcm.ResultInvalidArgs
	}
	if cfg.ChannelsIn < 1 || cfg.ChannelsIn > pcm.MaxChannels ||
		cfg.ChannelsOut < 1 || cfg.ChannelsOut > pcm.MaxChannels {
		return nil, pcm.ResultInvalidArgs
	}
	if cfg.RateIn <= 0 || cfg.RateOut <= 0 {
		return nil, pcm.ResultInvalidArgs
	}
	if cfg.FormatIn.SampleSize() == 0 || cfg.FormatOut.SampleSize() == 0 {
		return nil, pcm.ResultFormatNotSupported
	}
	if err := cfg.MapIn.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.MapOut.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg, source: source}

	maxCh := cfg.ChannelsIn
	if cfg.ChannelsOut > maxCh {
		maxCh = cfg.ChannelsOut
	}
	size := maxStageFrames * maxCh * pcm.MaxSampleSize
	p.stagingA = make([]byte, size)
	p.stagingB = make([]byte, size)
	p.f32A = unsafe.Slice((*float32)(unsafe.Pointer(&p.stagingA[0])), maxStageFrames*maxCh)
	p.f32B = unsafe.Slice((*float32)(unsafe.Pointer(&p.stagingB[0])), maxStageFrames*maxCh)

	p.recompute()
	if cfg.RateIn != cfg.RateOut {
		if err := p.buildResampler(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// recompute derives the stage-elision booleans from the current config.
func (p *Pipeline) recompute() {
	cfg := &p.cfg
	p.mixRequired = cfg.ChannelsIn != cfg.ChannelsOut

	if p.mixRequired {
		p.postMixMap = pcm.DefaultMap(cfg.ChannelsOut)
	} else {
		p.postMixMap = cfg.MapIn
	}
	p.shuffleRequired = false
	p.shuffle = nil
	if !p.postMixMap.Unspecified() && !cfg.MapOut.Unspecified() &&
		len(cfg.MapOut) == cfg.ChannelsOut && !p.postMixMap.Equal(cfg.MapOut) {
		p.shuffle = buildShuffle(p.postMixMap, cfg.MapOut)
		p.shuffleRequired = true
	}

	p.passthrough = cfg.FormatIn == cfg.FormatOut &&
		cfg.RateIn == cfg.RateOut &&
		!p.mixRequired && !p.shuffleRequired && p.src == nil
}

func (p *Pipeline) channelWork() bool { return p.mixRequired || p.shuffleRequired }

// srcOutFormat is what the embedded resampler emits: mid-stage f32 when
// channel work follows it, otherwise the final output format so the last
// conversion is elided.
func (p *Pipeline) srcOutFormat() pcm.Format {
	if p.channelWork() {
		return pcm.FormatF32
	}
	return p.cfg.FormatOut
}

func (p *Pipeline) buildResampler() error {
	alg := p.cfg.SrcAlgorithm
	if alg == resample.AlgorithmNone {
		alg = resample.AlgorithmLinear
	}
	src, err := resample.New(resample.Config{
		Channels:    p.cfg.ChannelsIn,
		RateIn:      p.cfg.RateIn,
		RateOut:     p.cfg.RateOut,
		FormatIn:    p.cfg.FormatIn,
		FormatOut:   p.srcOutFormat(),
		Algorithm:   alg,
		CacheFrames: p.cfg.CacheFrames,
	}, p.source)
	if err != nil {
		return err
	}
	p.src = src
	p.recompute()
	return nil
}

// Passthrough reports whether reads bypass every stage.
func (p *Pipeline) Passthrough() bool { return p.passthrough }

// Config returns the pipeline configuration, reflecting dynamic rate
// changes.
func (p *Pipeline) Config() Config { return p.cfg }

// SetRates changes the two rates between reads. A pipeline built without a
// resampler constructs one lazily on the first change that needs it; no
// drain is required, the new ratio simply applies from the next read.
func (p *Pipeline) SetRates(rateIn, rateOut int) error {
	if rateIn <= 0 || rateOut <= 0 {
		return pcm.ResultInvalidArgs
	}
	p.cfg.RateIn = rateIn
	p.cfg.RateOut = rateOut
	if p.src != nil {
		if err := p.src.SetRates(rateIn, rateOut); err != nil {
			return err
		}
	} else if rateIn != rateOut {
		if err := p.buildResampler(); err != nil {
			return err
		}
	}
	p.recompute()
	return nil
}

// ReadFrames pulls up to frameCount frames through the chain into dst
// (sized for the out side) and returns the number produced. flush is
// forwarded to the resampler stage; see resample.Resampler.Read.
func (p *Pipeline) ReadFrames(dst []byte, frameCount int, flush bool) int {
	if frameCount <= 0 {
		return 0
	}
	outFrame := pcm.FrameSize(p.cfg.FormatOut, p.cfg.ChannelsOut)
	if p.passthrough {
		return p.source.ReadFrames(dst[:frameCount*outFrame], frameCount)
	}
	total := 0
	for total < frameCount {
		want := frameCount - total
		if want > maxStageFrames {
			want = maxStageFrames
		}
		got := p.readChunk(dst[total*outFrame:], want, flush)
		total += got
		if got < want {
			break
		}
	}
	return total
}

func (p *Pipeline) readChunk(dst []byte, want int, flush bool) int {
	cfg := &p.cfg
	chIn, chOut := cfg.ChannelsIn, cfg.ChannelsOut
	inFrame := pcm.FrameSize(cfg.FormatIn, chIn)

	// Stage 1: acquire input frames.
	var got int
	if p.src != nil {
		if !p.channelWork() {
			// The resampler already emits the final format.
			return p.src.Read(dst, want, flush)
		}
		got = p.src.Read(p.stagingA[:want*chIn*4], want, flush)
	} else if !p.channelWork() {
		// Format-only path: one staging hop, no f32 mid stage.
		got = p.source.ReadFrames(p.stagingA[:want*inFrame], want)
		pcm.Convert(dst, cfg.FormatOut, p.stagingA, cfg.FormatIn, got*chIn)
		return got
	} else if cfg.FormatIn == pcm.FormatF32 {
		got = p.source.ReadFrames(p.stagingA[:want*inFrame], want)
	} else {
		got = p.source.ReadFrames(p.stagingB[:want*inFrame], want)
		pcm.ToF32(p.f32A, p.stagingB, cfg.FormatIn, got*chIn)
	}
	if got == 0 {
		return 0
	}

	// Stages 2+3: mix and remap, ping-ponging between the two stagings.
	cur, other := p.f32A, p.f32B
	if p.mixRequired {
		mixChannels(other, cur, got, chIn, chOut, cfg.MixMode)
		cur, other = other, cur
	}
	if p.shuffleRequired {
		applyShuffle(other, cur, got, p.shuffle, chOut)
		cur, other = other, cur
	}

	// Stage 4: narrow to the output format.
	pcm.FromF32(dst, cur, cfg.FormatOut, got*chOut)
	return got
}
