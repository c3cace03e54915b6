package dsp

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// RealForward wraps the shared forward transform for a real-sampled front
// end: an N-point real-to-complex FFT producing N/2+1 bins, per the
// ForwardBlock bin-count convention.
type RealForward struct {
	fft *fourier.FFT
	n   int
}

// NewRealForward constructs a forward transform for a real-valued front end
// of transform size n (n = L + M - 1 in overlap-save terms).
func NewRealForward(n int) *RealForward {
	return &RealForward{fft: fourier.NewFFT(n), n: n}
}

// Size returns the transform's input length N.
func (r *RealForward) Size() int { return r.n }

// Bins returns the number of frequency-domain bins this transform produces.
func (r *RealForward) Bins() int { return r.n/2 + 1 }

// Transform runs the forward FFT over n real time-domain samples.
func (r *RealForward) Transform(timeDomain []float64) []complex128 {
	return r.fft.Coefficients(nil, timeDomain)
}

// ComplexForward wraps the shared forward transform for a complex-sampled
// (I/Q) front end: an N-point complex-to-complex FFT producing N bins.
type ComplexForward struct {
	fft *fourier.CmplxFFT
	n   int
}

// NewComplexForward constructs a forward transform for a complex-valued
// front end of transform size n.
func NewComplexForward(n int) *ComplexForward {
	return &ComplexForward{fft: fourier.NewCmplxFFT(n), n: n}
}

// Size returns the transform's input length N.
func (c *ComplexForward) Size() int { return c.n }

// Bins returns the number of frequency-domain bins this transform produces.
func (c *ComplexForward) Bins() int { return c.n }

// Transform runs the forward FFT over n complex time-domain samples.
func (c *ComplexForward) Transform(timeDomain []complex128) []complex128 {
	return c.fft.Coefficients(nil, timeDomain)
}

// LegInverse wraps a per-channel inverse complex transform of size No,
// used by an output leg to turn its filtered, decimated frequency-domain
// slice back into a baseband block.
type LegInverse struct {
	fft *fourier.CmplxFFT
	n   int
}

// NewLegInverse constructs an inverse transform of size n (a channel's No).
func NewLegInverse(n int) *LegInverse {
	return &LegInverse{fft: fourier.NewCmplxFFT(n), n: n}
}

// Size returns the inverse transform's length No.
func (l *LegInverse) Size() int { return l.n }

// Inverse runs the inverse FFT over n frequency-domain bins, returning n
// time-domain complex samples. gonum's Sequence is unnormalized, so the
// result is scaled by 1/n here.
func (l *LegInverse) Inverse(freqDomain []complex128) []complex128 {
	out := l.fft.Sequence(nil, freqDomain)
	scale := complex(1/float64(l.n), 0)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// FFTShiftComplex rotates a circularly-ordered spectrum or impulse
// response so that index 0 (DC, or the IFFT's time-zero sample) moves
// to the middle of the slice, matching the centered layout a window
// function expects. Applying it twice is its own inverse for even n.
func FFTShiftComplex(v []complex128) []complex128 {
	n := len(v)
	out := make([]complex128, n)
	mid := n / 2
	copy(out[n-mid:], v[:mid])
	copy(out[:n-mid], v[mid:])
	return out
}

// TimeDomainForward runs a forward complex FFT purely to turn a
// time-domain prototype impulse response (already windowed) into its
// frequency-domain mask coefficients. Used once at leg-mask construction
// time, not in the per-block hot path.
func TimeDomainForward(n int, timeDomain []complex128) []complex128 {
	return fourier.NewCmplxFFT(n).Coefficients(nil, timeDomain)
}
