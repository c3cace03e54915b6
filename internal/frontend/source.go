package frontend

import "context"

// Sample is one I/Q pair as delivered by the front end's sample stream.
// For a real-valued front end, Q is always zero.
type Sample struct {
	I, Q float64
}

// SampleSource is the narrow boundary between the ingester and the actual
// upstream transport (a multicast socket in production, a synthetic
// generator in tests). The ingester does not interpret transport framing
// beyond the sample count it is handed.
type SampleSource interface {
	// Read blocks until n samples are available, the context is canceled,
	// or the source's own read timeout elapses. A short read (fewer than
	// n samples, nil error) is treated as a partial delivery; the caller
	// retries for the remainder.
	Read(ctx context.Context, n int) ([]Sample, error)
}
