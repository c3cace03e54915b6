package coordinator

import (
	"context"

	"github.com/kf7mix/fanout-engine/internal/forward"
)

// GatedSink wraps the forward stage so the shared transform only runs
// once at least one output leg is attached, per the coordinator's
// contract with the forward stage. With no legs attached, the block
// is simply dropped: the ingester keeps draining the front end (so it
// never stalls and resyncs), but the expensive forward FFT is skipped.
type GatedSink struct {
	Stage *forward.Stage
}

// IngestBlock implements frontend.BlockSink.
func (g *GatedSink) IngestBlock(ctx context.Context, samples []complex128, n0 float64) error {
	if g.Stage.LegCount() == 0 {
		return nil
	}
	return g.Stage.IngestBlock(ctx, samples, n0)
}
