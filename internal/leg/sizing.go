// Package leg implements the output leg: the per-channel frequency
// mask built once (or rebuilt on a filter parameter change) and the
// per-block extraction, multiply, and inverse transform that turns a
// shared ForwardBlock into a baseband block for one channel.
package leg

import (
	"math"

	"github.com/kf7mix/fanout-engine/internal/engineerr"
	"github.com/kf7mix/fanout-engine/internal/frontend"
)

// sizing holds one channel's derived transform dimensions: No (the
// leg's own transform size), Mo (its impulse-response length), and Lo
// (new baseband samples produced per block).
type sizing struct {
	No, Mo, Lo int
}

const integerTolerance = 1e-6

func isNearInteger(f float64) bool {
	return math.Abs(f-math.Round(f)) < integerTolerance
}

// deriveSizing scales the front end's N and overlap prefix M-1 down by
// Fo/Fs, per the channel's output sample rate, so that Lo = No - Mo + 1
// equals L*Fo/Fs. It fails with SampleRateMismatchError if either scaled
// value isn't integer-exact.
func deriveSizing(fe *frontend.FrontEnd, channelName string, fo float64) (sizing, error) {
	fs := fe.SampleRate()
	ratio := fo / fs
	noF := float64(fe.N) * ratio
	moF := float64(fe.M-1)*ratio + 1
	if !isNearInteger(noF) || !isNearInteger(moF) {
		return sizing{}, &engineerr.SampleRateMismatchError{Channel: channelName, Fs: fs, Fo: fo}
	}
	no := int(math.Round(noF))
	mo := int(math.Round(moF))
	if no <= 0 || mo <= 0 || mo > no {
		return sizing{}, &engineerr.SampleRateMismatchError{Channel: channelName, Fs: fs, Fo: fo}
	}
	return sizing{No: no, Mo: mo, Lo: no - mo + 1}, nil
}
