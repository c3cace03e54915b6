// Package demod implements the linear demodulator: PLL carrier
// recovery, post-detection frequency shift, AGC, output sample
// conversion, and the mute decision, run in order over one leg block.
package demod

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/kf7mix/fanout-engine/internal/channel"
	"github.com/kf7mix/fanout-engine/internal/dsp"
	"github.com/kf7mix/fanout-engine/internal/engineerr"
	"github.com/kf7mix/fanout-engine/internal/leg"
)

// PCM is Pass D/E's output: one block of converted samples in the
// channel's configured output format, plus the mute decision.
type PCM struct {
	Mono  []float64 // populated when Output.Channels == 1
	Left  []float64 // populated when Output.Channels == 2
	Right []float64
	Mute  bool
}

// state is the demodulator's own cross-block bookkeeping: the pieces
// of Pass A/C that must survive between blocks but aren't the PLL's
// internal loop-filter state (owned by dsp.PLL itself).
type state struct {
	wasOn     bool
	lockCount int
	pllLocked bool
	rotations int
	cphase    float64
	hangcount int
	gain      float64
}

// Demodulator runs the linear demodulator's passes for one channel. It
// is owned by exactly one goroutine; Process must not be called
// concurrently.
type Demodulator struct {
	ch        *channel.Channel
	pll       *dsp.PLL
	shift     *dsp.Oscillator
	lockLimit int

	st state
}

// New constructs a demodulator for ch. The PLL and shift oscillator
// run at the channel's output sample rate Fo.
func New(ch *channel.Channel) *Demodulator {
	d := &Demodulator{
		ch:    ch,
		pll:   dsp.NewPLL(ch.Output.Fo),
		shift: dsp.NewOscillator(),
	}
	d.lockLimit = int(ch.PLL.LockTime * ch.Output.Fo)
	d.st.gain = ch.Output.Gain
	return d
}

// Process runs Pass A through E over one baseband block and returns
// the resulting PCM block. An error return is fatal to this channel
// only: it reports an internal invariant the AGC pass asserts can
// never happen (spec §7's "zero gain_change" case), and the caller
// must stop feeding this Demodulator rather than treat its state as
// still consistent.
func (d *Demodulator) Process(blk leg.Block) (PCM, error) {
	if blk.GainRetarget {
		d.st.gain = d.ch.Output.Gain
	}

	samples := append([]complex128(nil), blk.Samples...)
	lo := len(samples)

	snr, foffset, pllLock := d.runPLLPass(samples, lo)
	d.runShiftPass(samples)
	gainChangePS, agcState, err := d.runAGCPass(blk, lo)
	if err != nil {
		return PCM{}, &engineerr.InternalInvariantViolation{Channel: d.ch.Name, Invariant: err.Error()}
	}
	pcm, outputPower := d.runOutputPass(samples, gainChangePS)
	pcm.Mute = outputPower == 0 || (d.ch.Flags.PLL && !pllLock) || d.ch.Tuning.F0 == 0

	d.ch.WithRuntime(func(r *channel.Runtime) {
		r.SNR = snr
		r.FOffset = foffset
		r.PLLLock = pllLock
		if pllLock {
			r.LockState = channel.Locked
		} else {
			r.LockState = channel.Unlocked
		}
		r.Rotations = d.st.rotations
		r.CPhase = d.st.cphase
		r.LockCount = d.st.lockCount
		r.Gain = d.st.gain
		r.Hangcount = d.st.hangcount
		r.AGCState = agcState
		r.N0 = blk.N0
		r.BBPower = blk.BBPower
	})
	return pcm, nil
}

// runPLLPass implements Pass A. It mutates samples in place, rotating
// each one into the VCO frame when the PLL is enabled.
func (d *Demodulator) runPLLPass(samples []complex128, lo int) (snr, foffset float64, pllLock bool) {
	if !d.ch.Flags.PLL {
		d.st.wasOn = false
		return 0, 0, false
	}
	if !d.st.wasOn {
		d.st.rotations = 0
		d.pll.Reset()
		d.st.wasOn = true
	}
	d.pll.SetParams(d.ch.PLL.LoopBWHz, d.ch.PLL.Damping)

	var signal, noise float64
	for n, s := range samples {
		rotated := s * cmplx.Conj(d.pll.Phasor())
		samples[n] = rotated

		var phase float64
		if d.ch.Flags.Square {
			sq := rotated * rotated
			phase = cmplx.Phase(sq)
		} else {
			phase = cmplx.Phase(rotated)
		}
		d.pll.Advance(phase)

		signal += real(rotated) * real(rotated)
		noise += imag(rotated) * imag(rotated)
	}

	if noise != 0 {
		snr = signal/noise - 1
		if snr < 0 {
			snr = 0
		}
	} else {
		snr = math.NaN()
	}

	switch {
	case snr < d.ch.PLL.SquelchClose:
		d.st.lockCount -= lo
		if d.st.lockCount <= -d.lockLimit {
			d.st.lockCount = -d.lockLimit
			d.st.pllLocked = false
		}
	case snr > d.ch.PLL.SquelchOpen:
		d.st.lockCount += lo
		if d.st.lockCount >= d.lockLimit {
			d.st.lockCount = d.lockLimit
			d.st.pllLocked = true
		}
	}
	pllLock = d.st.pllLocked

	phase := cmplx.Phase(d.pll.Phasor())
	phaseDiff := phase - d.st.cphase
	d.st.cphase = phase
	switch {
	case phaseDiff > math.Pi:
		d.st.rotations--
	case phaseDiff < -math.Pi:
		d.st.rotations++
	}
	foffset = d.pll.FreqHz()
	return snr, foffset, pllLock
}

// runShiftPass implements Pass B: a stepped oscillator applied after
// the PLL, whose phase persists across blocks.
func (d *Demodulator) runShiftPass(samples []complex128) {
	if d.ch.Tuning.Shift == 0 {
		return
	}
	d.shift.SetFreq(d.ch.Tuning.Shift / d.ch.Output.Fo)
	for n := range samples {
		samples[n] *= d.shift.Step()
	}
}

// runAGCPass implements Pass C, returning the per-sample gain change
// ratio to apply across Pass D's loop and the branch of the four-state
// AGC machine that fired, so Process can publish it to the status
// surface. It mutates d.st.hangcount but not d.st.gain; the gain
// itself is advanced sample-by-sample in Pass D so that the two stay
// exactly in step.
//
// An error return means one of the two gain-reduction branches
// computed a degenerate per-sample ratio (zero or negative gain on
// either side of the division) — the design asserts this can never
// happen, mirroring the hard assertion the original engine places
// after each gain-reduction branch.
func (d *Demodulator) runAGCPass(blk leg.Block, lo int) (float64, channel.AGCState, error) {
	if !d.ch.Flags.AGC || lo == 0 {
		return 1, channel.AGCRecover, nil
	}
	bw := math.Abs(d.ch.Filter.MaxIF - d.ch.Filter.MinIF)
	bn := math.Sqrt(bw * blk.N0)
	ampl := math.Sqrt(blk.BBPower)
	headroom := d.ch.Output.Headroom
	threshold := dbToLinear(d.ch.AGC.ThresholdDB)
	g := d.st.gain

	var gainChangePS float64
	var agcState channel.AGCState
	var err error
	switch {
	case ampl*g > headroom:
		newGain := headroom / ampl
		gainChangePS, err = perSampleRatio(newGain, g, lo)
		agcState = channel.AGCStrong
		d.st.hangcount = d.ch.AGC.HangTimeBlocks
	case bn*g > threshold*headroom:
		newGain := threshold * headroom / bn
		gainChangePS, err = perSampleRatio(newGain, g, lo)
		agcState = channel.AGCNoiseLimited
	case d.st.hangcount > 0:
		gainChangePS = 1
		agcState = channel.AGCHang
		d.st.hangcount--
	default:
		gainChangePS = dbToLinear(d.ch.AGC.RecoveryRateDB / d.ch.Output.Fo)
		agcState = channel.AGCRecover
	}
	if err != nil {
		return 0, agcState, err
	}
	return gainChangePS, agcState, nil
}

// perSampleRatio computes the per-sample multiplicative step that
// carries gain from gain to newGain across lo samples. Either input
// reaching zero or below means the gain change itself is degenerate
// (a zero or undefined gain_change), which is an invariant violation
// rather than a condition to silently no-op through.
func perSampleRatio(newGain, gain float64, lo int) (float64, error) {
	if newGain <= 0 || gain <= 0 {
		return 0, fmt.Errorf("zero gain_change: newGain=%v gain=%v", newGain, gain)
	}
	return math.Pow(newGain/gain, 1/float64(lo)), nil
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// runOutputPass implements Pass D: converts samples into the
// configured output format while advancing the gain geometrically,
// and reports the per-sample output power for Pass E's mute decision.
func (d *Demodulator) runOutputPass(samples []complex128, gainChangePS float64) (PCM, float64) {
	pcm := PCM{}
	var outputPower float64
	env := d.ch.Flags.Env

	if d.ch.Output.Channels == 1 {
		out := make([]float64, len(samples))
		for n, s := range samples {
			var y float64
			if env {
				y = cmplx.Abs(s) * d.st.gain
			} else {
				y = real(s) * d.st.gain
			}
			out[n] = y
			outputPower += y * y
			d.st.gain *= gainChangePS
		}
		pcm.Mono = out
	} else {
		left := make([]float64, len(samples))
		right := make([]float64, len(samples))
		for n, s := range samples {
			var l, r float64
			if env {
				l = real(s) * d.st.gain
				r = 2 * cmplx.Abs(s) * d.st.gain
			} else {
				l = real(s) * d.st.gain
				r = imag(s) * d.st.gain
			}
			left[n], right[n] = l, r
			outputPower += l*l + r*r
			d.st.gain *= gainChangePS
		}
		pcm.Left, pcm.Right = left, right
	}

	if len(samples) > 0 {
		outputPower /= float64(len(samples))
	}
	if d.ch.Output.Channels == 1 {
		outputPower *= 2
	}
	return pcm, outputPower
}
