package frontend

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/kf7mix/fanout-engine/internal/engineerr"
	"github.com/kf7mix/fanout-engine/internal/logging"
)

// BlockSink receives one freshly-ingested block of L new samples, plus the
// front end's scalar noise spectral density estimate for that block. It is
// satisfied by the forward transform stage; the ingester depends only on
// this narrow interface so the two packages don't import each other.
type BlockSink interface {
	IngestBlock(ctx context.Context, samples []complex128, n0 float64) error
}

// IngesterConfig tunes the ingester's stall-recovery behavior.
type IngesterConfig struct {
	// StallTimeout is how long the ingester waits for a short read to be
	// completed before treating the source as stalled. Defaults to 2*T.
	StallTimeout time.Duration
	// MaxStallRetries bounds the number of backoff retries before a stall
	// escalates to a resync. Zero means 5.
	MaxStallRetries int
}

// Ingester reads I/Q samples from a SampleSource in the front end's native
// format, accumulates them into L-sample blocks, and hands each block to a
// BlockSink. It never panics or exits the process on a transport failure:
// stalls are retried with backoff, and a FrontEndResyncError is returned to
// the caller (who is expected to pause the forward stage and retry Run).
type Ingester struct {
	fe     *FrontEnd
	src    SampleSource
	sink   BlockSink
	cfg    IngesterConfig
	logger logging.Logger
}

// NewIngester constructs an ingester for the given front end, reading from
// src and delivering blocks to sink.
func NewIngester(fe *FrontEnd, src SampleSource, sink BlockSink, cfg IngesterConfig, logger logging.Logger) *Ingester {
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = time.Duration(2*fe.Config().BlockTimeMs) * time.Millisecond
	}
	if cfg.MaxStallRetries <= 0 {
		cfg.MaxStallRetries = 5
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Ingester{fe: fe, src: src, sink: sink, cfg: cfg, logger: logger}
}

// Run drives the block clock until ctx is canceled or an unrecoverable
// resync error occurs. The caller decides whether to call Run again after
// a FrontEndResyncError; repeated stalls are the caller's responsibility to
// surface as status events per the error propagation rules.
func (ing *Ingester) Run(ctx context.Context) error {
	l := ing.fe.L
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		samples, err := ing.readBlockWithRetry(ctx, l)
		if err != nil {
			return err
		}

		complexSamples := make([]complex128, l)
		var power float64
		for i, s := range samples {
			complexSamples[i] = complex(s.I, s.Q)
			power += s.I*s.I + s.Q*s.Q
		}
		n0 := (power / float64(l)) / ing.fe.SampleRate()

		if err := ing.sink.IngestBlock(ctx, complexSamples, n0); err != nil {
			return err
		}
	}
}

// readBlockWithRetry reads exactly n samples, retrying short/stalled reads
// with exponential backoff before escalating to a resync error.
func (ing *Ingester) readBlockWithRetry(ctx context.Context, n int) ([]Sample, error) {
	out := make([]Sample, 0, n)
	attempts := 0

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = ing.cfg.StallTimeout / 4
	bo.MaxInterval = ing.cfg.StallTimeout
	bo.MaxElapsedTime = ing.cfg.StallTimeout * time.Duration(ing.cfg.MaxStallRetries)
	bo.Reset()

	for len(out) < n {
		readCtx, cancel := context.WithTimeout(ctx, ing.cfg.StallTimeout)
		chunk, err := ing.src.Read(readCtx, n-len(out))
		cancel()

		if err == nil && len(chunk) > 0 {
			out = append(out, chunk...)
			bo.Reset()
			attempts = 0
			continue
		}

		attempts++
		wait := bo.NextBackOff()
		if wait == backoff.Stop || attempts > ing.cfg.MaxStallRetries {
			return nil, &engineerr.FrontEndResyncError{Attempts: attempts, Cause: err}
		}

		stalled := &engineerr.FrontEndStalledError{Timeout: ing.cfg.StallTimeout.String(), Cause: err}
		ing.logger.Warn("front end stalled, retrying", logging.Err(stalled), logging.Field{Key: "attempt", Value: attempts})

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return out, nil
}
