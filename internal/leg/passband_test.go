package leg

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/kf7mix/fanout-engine/internal/channel"
	"github.com/kf7mix/fanout-engine/internal/forward"
	"github.com/kf7mix/fanout-engine/internal/frontend"
)

// driveTone feeds nBlocks of a complex tone at toneHz through a real
// forward stage and leg pair, returning the leg's baseband output from
// the final block once any filter-settling transient has passed.
func driveTone(t *testing.T, toneHz float64, filter channel.Filter) []complex128 {
	t.Helper()
	fe, err := frontend.New(frontend.Config{SampleRate: 48000, Complex: true, BlockTimeMs: 20, Overlap: 5})
	if err != nil {
		t.Fatalf("frontend.New: %v", err)
	}
	stage := forward.New(fe, nil)
	att := stage.Attach()

	ch := channel.New(channel.Prototype{
		Name:   "tone",
		Filter: filter,
		Output: channel.Output{Channels: 1, Fo: 48000, Headroom: 1, Gain: 1},
	})
	lg, err := New(fe, ch, nil)
	if err != nil {
		t.Fatalf("leg.New: %v", err)
	}

	phase := 0.0
	step := 2 * math.Pi * toneHz / fe.SampleRate()
	var last []complex128
	const nBlocks = 10
	for b := 0; b < nBlocks; b++ {
		samples := make([]complex128, fe.L)
		for i := range samples {
			samples[i] = complex(math.Cos(phase), math.Sin(phase))
			phase += step
		}
		if err := stage.IngestBlock(t.Context(), samples, 0); err != nil {
			t.Fatalf("IngestBlock: %v", err)
		}
		if b == 0 {
			continue // deferred attach: first block delivers nothing
		}
		blk := <-att.Notify
		out := lg.Process(blk)
		att.Ack <- struct{}{}
		last = out.Samples
	}
	return last
}

func meanAmplitude(samples []complex128) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += cmplx.Abs(s)
	}
	return sum / float64(len(samples))
}

func TestInBandTonePassesThroughNearUnityAmplitude(t *testing.T) {
	samples := driveTone(t, 500, channel.Filter{MinIF: -1500, MaxIF: 1500, KaiserBeta: 5})
	amp := meanAmplitude(samples)
	if amp < 0.85 || amp > 1.15 {
		t.Fatalf("expected in-band tone near unity amplitude after settling, got %v", amp)
	}
}

func TestOutOfBandToneIsAttenuated(t *testing.T) {
	inBand := meanAmplitude(driveTone(t, 500, channel.Filter{MinIF: -1500, MaxIF: 1500, KaiserBeta: 5}))
	outOfBand := meanAmplitude(driveTone(t, 8000, channel.Filter{MinIF: -1500, MaxIF: 1500, KaiserBeta: 5}))
	if outOfBand > inBand*0.2 {
		t.Fatalf("expected out-of-band tone strongly attenuated relative to in-band, got %v vs %v", outOfBand, inBand)
	}
}

// TestBlockContinuityOverManyBlocks drives a constant (DC) input through
// many overlap-save cycles and checks the leg's settled baseband output
// stays flat across block boundaries: a bug in the overlap-save history
// bookkeeping would show up as a periodic discontinuity at block edges,
// not as steady-state error within a block.
func TestBlockContinuityOverManyBlocks(t *testing.T) {
	fe, err := frontend.New(frontend.Config{SampleRate: 48000, Complex: true, BlockTimeMs: 20, Overlap: 5})
	if err != nil {
		t.Fatalf("frontend.New: %v", err)
	}
	stage := forward.New(fe, nil)
	att := stage.Attach()

	ch := channel.New(channel.Prototype{
		Name:   "dc",
		Filter: channel.Filter{MinIF: -1500, MaxIF: 1500, KaiserBeta: 5},
		Output: channel.Output{Channels: 1, Fo: 48000, Headroom: 1, Gain: 1},
	})
	lg, err := New(fe, ch, nil)
	if err != nil {
		t.Fatalf("leg.New: %v", err)
	}

	samples := make([]complex128, fe.L)
	for i := range samples {
		samples[i] = complex(1, 0)
	}

	const nBlocks = 60
	const settleBlocks = 20
	var means []float64
	for b := 0; b < nBlocks; b++ {
		if err := stage.IngestBlock(t.Context(), samples, 0); err != nil {
			t.Fatalf("IngestBlock: %v", err)
		}
		if b == 0 {
			continue
		}
		blk := <-att.Notify
		out := lg.Process(blk)
		att.Ack <- struct{}{}
		if b >= settleBlocks {
			means = append(means, meanAmplitude(out.Samples))
		}
	}

	if len(means) < 2 {
		t.Fatalf("expected multiple settled blocks to compare, got %d", len(means))
	}
	for i := 1; i < len(means); i++ {
		if math.Abs(means[i]-means[i-1]) > 0.05 {
			t.Fatalf("block %d amplitude %v jumped from block %d amplitude %v: discontinuity at block boundary",
				i+settleBlocks, means[i], i-1+settleBlocks, means[i-1])
		}
	}
}
