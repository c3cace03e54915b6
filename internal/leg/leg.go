package leg

import (
	"github.com/kf7mix/fanout-engine/internal/channel"
	"github.com/kf7mix/fanout-engine/internal/dsp"
	"github.com/kf7mix/fanout-engine/internal/forward"
	"github.com/kf7mix/fanout-engine/internal/frontend"
	"github.com/kf7mix/fanout-engine/internal/logging"
)

// Block is one leg's output: Lo baseband complex samples plus the n0
// and bb_power measurements the demodulator's AGC pass needs.
type Block struct {
	Samples []complex128
	N0      float64
	BBPower float64

	// GainRetarget is set when a queued UpdateOutput was applied this
	// block: the demodulator should snap its live gain register to the
	// channel's (now updated) Output.Gain before running its own AGC
	// pass.
	GainRetarget bool
}

// Leg is one channel's output filter: it owns a frequency-domain mask
// built from the channel's current Filter, extracts and masks the
// shared forward block every cycle, and inverse-transforms the result
// into a baseband block.
type Leg struct {
	fe     *frontend.FrontEnd
	ch     *channel.Channel
	logger logging.Logger

	sz      sizing
	binOff  int
	mask    []complex128
	inverse *dsp.LegInverse
}

// New constructs an output leg for ch, deriving its transform sizing
// and building its initial mask from ch's current Tuning and Filter.
func New(fe *frontend.FrontEnd, ch *channel.Channel, logger logging.Logger) (*Leg, error) {
	if logger == nil {
		logger = logging.Default()
	}
	sz, err := deriveSizing(fe, ch.Name, ch.Output.Fo)
	if err != nil {
		return nil, err
	}
	lg := &Leg{
		fe:      fe,
		ch:      ch,
		logger:  logger,
		sz:      sz,
		inverse: dsp.NewLegInverse(sz.No),
	}
	if err := lg.rebuildMask(); err != nil {
		lg.logger.Warn("leg mask clamped at construction", logging.Channel(ch.Name))
	}
	lg.retune()
	return lg, nil
}

func (lg *Leg) rebuildMask() error {
	mask, clamped, warn := buildMask(lg.sz, lg.ch.Output.Fo, lg.ch.Filter, lg.ch.Name)
	lg.mask = mask
	if clamped {
		return warn
	}
	return nil
}

func (lg *Leg) retune() {
	lg.binOff = freqToBin(lg.ch.Tuning.F0, lg.fe.N, lg.fe.SampleRate())
}

// binAt returns the shared forward block's coefficient at circular
// index k (which may be negative or >= N), reconstructing the
// conjugate-mirror negative-frequency half for a real-sampled front
// end, whose ForwardBlock only stores N/2+1 bins.
func binAt(n int, isComplex bool, bins []complex128, k int) complex128 {
	k = ((k % n) + n) % n
	if isComplex {
		return bins[k]
	}
	if k <= n/2 {
		return bins[k]
	}
	return complex(real(bins[n-k]), -imag(bins[n-k]))
}

// extract pulls this leg's No bins out of the shared block, centered
// on its tuned bin offset, wrapping circularly across DC. The slice is
// laid out in the mask's circular order: the tuned bin at index 0, the
// bins above it next, and the bins below it at the top end.
func (lg *Leg) extract(blk *forward.ForwardBlock) []complex128 {
	no := lg.sz.No
	out := make([]complex128, no)
	isComplex := lg.fe.IsComplex()
	for i := 0; i < no; i++ {
		d := i - no/2 // offset from the tuned bin
		out[((d%no)+no)%no] = binAt(lg.fe.N, isComplex, blk.Bins, lg.binOff+d)
	}
	return out
}

// Process drains any pending parameter updates, extracts and masks
// this leg's slice of blk, inverse-transforms it, and discards the
// overlap-save prefix, returning the Lo new baseband samples.
func (lg *Leg) Process(blk *forward.ForwardBlock) Block {
	rebuildMask, retune, gainRetarget := lg.ch.DrainUpdates()
	if rebuildMask {
		if err := lg.rebuildMask(); err != nil {
			lg.logger.Warn("leg mask clamped after parameter update",
				logging.Channel(lg.ch.Name))
		}
	}
	if retune {
		lg.retune()
	}

	extracted := lg.extract(blk)
	masked := make([]complex128, lg.sz.No)
	for i, v := range extracted {
		masked[i] = v * lg.mask[i]
	}

	full := lg.inverse.Inverse(masked)
	baseband := full[lg.sz.Mo-1:]

	var bbPower float64
	for _, s := range baseband {
		bbPower += real(s)*real(s) + imag(s)*imag(s)
	}
	if len(baseband) > 0 {
		bbPower /= float64(len(baseband))
	}

	return Block{Samples: baseband, N0: blk.N0, BBPower: bbPower, GainRetarget: gainRetarget}
}

// Lo returns the number of baseband samples this leg produces per
// block.
func (lg *Leg) Lo() int { return lg.sz.Lo }
