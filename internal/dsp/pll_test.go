package dsp

import (
	"math"
	"testing"
)

func TestPLLLocksToConstantPhaseOffset(t *testing.T) {
	const fs = 8000.0
	pll := NewPLL(fs)
	pll.SetParams(50, 1 / math.Sqrt2)

	// A steady 0.4 rad phase error, as if the input carrier is offset
	// in phase but not frequency. The loop should drive its own phase
	// toward that offset and hold it without runaway.
	target := 0.4
	var lastErr float64
	for i := 0; i < 20000; i++ {
		err := WrapPhase(target - pll.phase)
		lastErr = err
		pll.Advance(err)
	}
	if math.Abs(lastErr) > 1e-3 {
		t.Fatalf("expected PLL to converge on fixed phase offset, residual error %v", lastErr)
	}
}

func TestPLLTracksFrequencyOffset(t *testing.T) {
	const fs = 8000.0
	const trueFreq = 10.0 // Hz offset to track
	pll := NewPLL(fs)
	pll.SetParams(80, 1 / math.Sqrt2)

	truePhase := 0.0
	for i := 0; i < 40000; i++ {
		truePhase += 2 * math.Pi * trueFreq / fs
		err := WrapPhase(truePhase - pll.phase)
		pll.Advance(err)
	}
	got := pll.FreqHz()
	if math.Abs(got-trueFreq) > 0.5 {
		t.Fatalf("expected freq estimate near %v Hz, got %v", trueFreq, got)
	}
}

func TestResetZeroesState(t *testing.T) {
	pll := NewPLL(8000)
	pll.SetParams(50, 1 / math.Sqrt2)
	pll.Advance(0.3)
	pll.Advance(0.3)
	pll.Reset()
	if pll.phase != 0 || pll.integrator != 0 {
		t.Fatalf("expected Reset to zero phase and integrator, got phase=%v integrator=%v", pll.phase, pll.integrator)
	}
	if pll.Phasor() != complex(1, 0) {
		t.Fatalf("expected unit phasor after reset, got %v", pll.Phasor())
	}
}

func TestWrapPhaseRange(t *testing.T) {
	cases := []float64{0, math.Pi, -math.Pi, 3 * math.Pi, -3 * math.Pi, 0.1 - 4*math.Pi}
	for _, c := range cases {
		w := WrapPhase(c)
		if w <= -math.Pi || w > math.Pi {
			t.Fatalf("WrapPhase(%v) = %v out of (-pi, pi] range", c, w)
		}
	}
}
