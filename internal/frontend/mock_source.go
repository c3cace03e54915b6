package frontend

import (
	"context"
	"math"
	"math/rand"
)

// ToneSource synthesizes a complex sinusoid plus Gaussian noise, in the
// style of the teacher's MockSDR: a deterministic, controllable stand-in
// for a real front-end socket, used by cmd/enginedemo.
type ToneSource struct {
	SampleRate float64
	ToneHz     float64
	NoiseSigma float64
	Rand       *rand.Rand

	phase float64
}

// NewToneSource builds a tone generator. If r is nil, a package-default
// deterministic source is used so tests are reproducible.
func NewToneSource(sampleRate, toneHz, noiseSigma float64, r *rand.Rand) *ToneSource {
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}
	return &ToneSource{SampleRate: sampleRate, ToneHz: toneHz, NoiseSigma: noiseSigma, Rand: r}
}

// Read implements SampleSource.
func (t *ToneSource) Read(_ context.Context, n int) ([]Sample, error) {
	out := make([]Sample, n)
	step := 2 * math.Pi * t.ToneHz / t.SampleRate
	for i := 0; i < n; i++ {
		i0, q0 := math.Cos(t.phase), math.Sin(t.phase)
		t.phase += step
		if t.phase > 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
		var ni, nq float64
		if t.NoiseSigma > 0 {
			ni = t.Rand.NormFloat64() * t.NoiseSigma
			nq = t.Rand.NormFloat64() * t.NoiseSigma
		}
		out[i] = Sample{I: i0 + ni, Q: q0 + nq}
	}
	return out, nil
}

// DCSource emits a constant I=1, Q=0 stream, used to test block-continuity
// (spec scenario 5: no gaps or drift across thousands of blocks).
type DCSource struct{}

// Read implements SampleSource.
func (DCSource) Read(_ context.Context, n int) ([]Sample, error) {
	out := make([]Sample, n)
	for i := range out {
		out[i] = Sample{I: 1, Q: 0}
	}
	return out, nil
}
