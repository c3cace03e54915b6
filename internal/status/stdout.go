package status

import "github.com/kf7mix/fanout-engine/internal/logging"

// StdoutReporter logs each snapshot through the engine's structured
// logger, for local runs without a web surface attached.
type StdoutReporter struct {
	logger logging.Logger
}

// NewStdoutReporter builds a stdout reporter using logger, or the
// process default if nil.
func NewStdoutReporter(logger logging.Logger) StdoutReporter {
	if logger == nil {
		logger = logging.Default()
	}
	return StdoutReporter{logger: logger}
}

// Report implements Reporter.
func (r StdoutReporter) Report(snap Snapshot) {
	r.logger.Info("channel status",
		logging.Channel(snap.Channel),
		logging.Block(snap.BlockIndex),
		logging.Field{Key: "snr", Value: snap.SNR},
		logging.Field{Key: "foffset", Value: snap.FOffset},
		logging.Field{Key: "gain", Value: snap.Gain},
		logging.Field{Key: "lock_state", Value: snap.LockState},
		logging.Field{Key: "agc_state", Value: snap.AGCState},
	)
}

// MultiReporter fans a snapshot out to multiple reporters, e.g. both
// the web Hub and StdoutReporter at once.
type MultiReporter []Reporter

// Report forwards to every non-nil reporter.
func (m MultiReporter) Report(snap Snapshot) {
	for _, r := range m {
		if r != nil {
			r.Report(snap)
		}
	}
}
