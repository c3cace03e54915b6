package leg

import (
	"math"

	"github.com/kf7mix/fanout-engine/internal/channel"
	"github.com/kf7mix/fanout-engine/internal/dsp"
	"github.com/kf7mix/fanout-engine/internal/engineerr"
)

// binFreq maps circular bin index k of an n-point transform at sample
// rate fs to its signed frequency in Hz, in (-fs/2, fs/2].
func binFreq(k, n int, fs float64) float64 {
	if k <= n/2 {
		return float64(k) * fs / float64(n)
	}
	return float64(k-n) * fs / float64(n)
}

// freqToBin is binFreq's inverse, rounded to the nearest bin, always
// returned in [0, n).
func freqToBin(freqHz float64, n int, fs float64) int {
	k := int(math.Round(freqHz * float64(n) / fs))
	return ((k % n) + n) % n
}

// buildMask computes a channel's frequency-domain filter mask: an
// ideal brick-wall response over [minIF, maxIF], inverse-transformed,
// Kaiser-windowed to Mo taps in the time domain, and forward-
// transformed back to No complex coefficients. It reports whether the
// requested passband had to be clamped to the leg's Nyquist range.
func buildMask(sz sizing, fo float64, filter channel.Filter, channelName string) ([]complex128, bool, error) {
	minIF, maxIF := filter.MinIF, filter.MaxIF
	nyquist := fo / 2
	clamped := false
	if minIF < -nyquist {
		minIF = -nyquist
		clamped = true
	}
	if maxIF > nyquist {
		maxIF = nyquist
		clamped = true
	}

	ideal := make([]complex128, sz.No)
	for k := 0; k < sz.No; k++ {
		f := binFreq(k, sz.No, fo)
		if f >= minIF && f <= maxIF {
			ideal[k] = complex(1, 0)
		}
	}

	timeDomain := dsp.NewLegInverse(sz.No).Inverse(ideal)
	centered := dsp.FFTShiftComplex(timeDomain)

	window := dsp.Kaiser(sz.Mo, filter.KaiserBeta)
	tapered := make([]complex128, sz.No)
	start := sz.No/2 - sz.Mo/2
	for i, w := range window {
		idx := start + i
		if idx >= 0 && idx < sz.No {
			tapered[idx] = centered[idx] * complex(w, 0)
		}
	}
	uncentered := dsp.FFTShiftComplex(tapered)
	mask := dsp.TimeDomainForward(sz.No, uncentered)

	var warn error
	if clamped {
		warn = &engineerr.PassbandOutOfRangeError{
			Channel: channelName,
			MinIF:   filter.MinIF,
			MaxIF:   filter.MaxIF,
			Fo:      fo,
		}
	}
	return mask, clamped, warn
}
