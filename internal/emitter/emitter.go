// Package emitter defines the boundary between a channel's
// demodulator and whatever carries its audio out of the process. RTP
// framing and transport live outside this module; this package only
// ships the interface and two in-memory senders useful for tests and
// the example command.
package emitter

import "context"

// PCMBlock is one channel's converted output: mono or stereo float
// samples plus the mute flag Pass E decided.
type PCMBlock struct {
	SSRC       uint32
	BlockIndex uint64
	Mono       []float64
	Left       []float64
	Right      []float64
	Mute       bool
}

// Sender is the boundary a demodulator hands finished blocks to. A
// real implementation would frame PCMBlock as RTP and write it to a
// multicast socket; that framing is an external collaborator and is
// not implemented here.
type Sender interface {
	Send(ctx context.Context, block PCMBlock) error
}
