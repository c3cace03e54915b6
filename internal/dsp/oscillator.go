package dsp

import "math"

// Oscillator is a numerically-controlled complex oscillator: it steps
// its phase by a fixed amount each call and returns the resulting unit
// phasor. Used for the demodulator's post-detection frequency shift,
// whose phase must persist across block boundaries.
type Oscillator struct {
	phase float64
	step  float64
}

// NewOscillator returns an oscillator at zero phase and zero frequency.
func NewOscillator() *Oscillator {
	return &Oscillator{}
}

// SetFreq sets the oscillator's step size from a frequency expressed in
// cycles per sample (freqHz / sampleRate).
func (o *Oscillator) SetFreq(cyclesPerSample float64) {
	o.step = 2 * math.Pi * cyclesPerSample
}

// Freq reports the oscillator's current step size in cycles per
// sample.
func (o *Oscillator) Freq() float64 {
	return o.step / (2 * math.Pi)
}

// Step advances the oscillator by one sample and returns its phasor
// before the advance (use, then step).
func (o *Oscillator) Step() complex128 {
	p := complex(math.Cos(o.phase), math.Sin(o.phase))
	o.phase = WrapPhase(o.phase + o.step)
	return p
}
