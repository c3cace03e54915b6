package emitter

import (
	"context"

	"github.com/kf7mix/fanout-engine/internal/engineerr"
	"github.com/kf7mix/fanout-engine/internal/logging"
)

// LoggingSender wraps another Sender, logging a send failure as a
// NetworkError and then returning the underlying error to the caller:
// per the error-handling design, a single channel's send failure is
// reported and retried on the next block, never fatal to the pipeline.
type LoggingSender struct {
	Channel string
	Next    Sender
	Logger  logging.Logger
}

// Send forwards to the wrapped sender and logs any failure.
func (s *LoggingSender) Send(ctx context.Context, block PCMBlock) error {
	err := s.Next.Send(ctx, block)
	if err != nil {
		netErr := &engineerr.NetworkError{Channel: s.Channel, Cause: err}
		s.Logger.Warn("output send failed", logging.Err(netErr), logging.Block(block.BlockIndex))
	}
	return err
}
