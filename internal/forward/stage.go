package forward

import (
	"context"
	"sync"
	"time"

	"github.com/kf7mix/fanout-engine/internal/dsp"
	"github.com/kf7mix/fanout-engine/internal/frontend"
	"github.com/kf7mix/fanout-engine/internal/logging"
)

// Attachment is what Stage.Attach hands back to a newly-attached leg: a
// channel the leg receives published blocks on, and a channel it must send
// on once it has finished consuming each block.
type Attachment struct {
	ID     int
	Notify <-chan *ForwardBlock
	Ack    chan<- struct{}
}

type legHandle struct {
	id     int
	notify chan *ForwardBlock
	ack    chan struct{}
	laggy  bool
}

// pendingChange represents a deferred attach/detach request: per spec,
// changes submitted during block k take effect starting at block k+1.
type pendingChange struct {
	attach   *legHandle // non-nil to attach this leg
	detachID int        // >0 to detach this id
}

// Stage is the shared forward-transform barrier. It owns the overlap-save
// sample history and the published ForwardBlock; it is read-only after
// publication, so no lock is required on block data itself. The
// attachment list is guarded by a short-held mutex.
type Stage struct {
	fe     *frontend.FrontEnd
	logger logging.Logger

	realFFT    *dsp.RealForward
	complexFFT *dsp.ComplexForward

	history []complex128 // last M-1 samples retained as the overlap prefix

	mu            sync.Mutex
	legs          map[int]*legHandle
	nextLegID     int
	pending       []pendingChange
	blockIndex    uint64
	attachedCount int // updated immediately at Attach/Detach, for coordinator visibility

	blockDeadline time.Duration
}

// New constructs a forward transform stage for the given front end.
func New(fe *frontend.FrontEnd, logger logging.Logger) *Stage {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Stage{
		fe:            fe,
		logger:        logger,
		history:       make([]complex128, fe.M-1),
		legs:          make(map[int]*legHandle),
		blockDeadline: time.Duration(fe.Config().BlockTimeMs) * time.Millisecond,
	}
	if fe.IsComplex() {
		s.complexFFT = dsp.NewComplexForward(fe.N)
	} else {
		s.realFFT = dsp.NewRealForward(fe.N)
	}
	return s
}

// BlockIndex returns the most recently published block's index.
func (s *Stage) BlockIndex() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockIndex
}

// Attach registers a new output leg. The call currently in flight (if
// any) never sees it; the leg becomes eligible starting with the
// IngestBlock call after that one, so a leg is always live for at
// least one full block before it can receive anything.
func (s *Stage) Attach() Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLegID++
	id := s.nextLegID
	lh := &legHandle{
		id:     id,
		notify: make(chan *ForwardBlock, 1),
		ack:    make(chan struct{}, 1),
	}
	s.pending = append(s.pending, pendingChange{attach: lh})
	s.attachedCount++
	return Attachment{ID: id, Notify: lh.notify, Ack: lh.ack}
}

// Detach removes an output leg. Like Attach, it is deferred to the next
// block boundary.
func (s *Stage) Detach(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, pendingChange{detachID: id})
	s.attachedCount--
}

// LegCount returns the number of attached legs, including ones pending
// attachment at the next block boundary. Used by the coordinator's
// GatedSink to skip the forward transform while no leg is attached.
func (s *Stage) LegCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachedCount
}

// legsSnapshot copies the currently live leg set, as settled by every
// attach/detach applied through the end of the previous IngestBlock call.
func (s *Stage) legsSnapshot() map[int]*legHandle {
	snapshot := make(map[int]*legHandle, len(s.legs))
	for id, lh := range s.legs {
		snapshot[id] = lh
	}
	return snapshot
}

// applyPendingChanges materializes queued attach/detach requests into the
// live leg map. Called only from IngestBlock, after that call's own
// snapshot has already been taken, so a request queued during block k only
// becomes visible starting block k+1's snapshot.
func (s *Stage) applyPendingChanges() {
	for _, p := range s.pending {
		if p.attach != nil {
			s.legs[p.attach.id] = p.attach
		}
		if p.detachID > 0 {
			delete(s.legs, p.detachID)
		}
	}
	s.pending = nil
}

// IngestBlock implements frontend.BlockSink. It runs the forward transform
// over the overlap-save window and fans the result out to every leg
// attached as of this block.
func (s *Stage) IngestBlock(ctx context.Context, samples []complex128, n0 float64) error {
	s.mu.Lock()
	legs := s.legsSnapshot()
	s.applyPendingChanges()
	s.mu.Unlock()

	window := s.advanceHistory(samples)
	bins := s.transform(window)

	s.mu.Lock()
	s.blockIndex++
	idx := s.blockIndex
	s.mu.Unlock()

	blk := &ForwardBlock{Index: idx, Bins: bins, N0: n0}
	s.publish(ctx, legs, blk)
	return nil
}

// advanceHistory builds the N-sample overlap-save window (M-1 retained
// prefix + L new samples) and updates the retained prefix for next time.
func (s *Stage) advanceHistory(newSamples []complex128) []complex128 {
	n := s.fe.N
	window := make([]complex128, n)
	copy(window, s.history)
	copy(window[len(s.history):], newSamples)

	prefixLen := s.fe.M - 1
	if prefixLen > 0 {
		s.history = append(s.history[:0:0], window[n-prefixLen:]...)
	}
	return window
}

func (s *Stage) transform(window []complex128) []complex128 {
	if s.complexFFT != nil {
		return s.complexFFT.Transform(window)
	}
	timeDomain := make([]float64, len(window))
	for i, v := range window {
		timeDomain[i] = real(v)
	}
	return s.realFFT.Transform(timeDomain)
}

// publish delivers blk to every currently-attached leg, waiting up to one
// block time for each to acknowledge consumption. A leg that misses the
// deadline is only marked laggy (see LegLaggy); its output is not
// altered. A leg whose Notify slot is still full when a later block is
// published does not receive that block.
func (s *Stage) publish(ctx context.Context, legs map[int]*legHandle, blk *ForwardBlock) {
	var waiting []*legHandle
	for _, lh := range legs {
		select {
		case lh.notify <- blk:
			waiting = append(waiting, lh)
		default:
			s.setLaggy(lh, true)
			s.logger.Warn("leg missed forward block, channel still full",
				logging.Block(blk.Index), logging.Field{Key: "leg", Value: lh.id})
		}
	}
	if len(waiting) == 0 {
		return
	}

	acked := make(map[int]bool, len(waiting))
	results := make(chan int, len(waiting))
	for _, lh := range waiting {
		go func(lh *legHandle) {
			select {
			case <-lh.ack:
				results <- lh.id
			case <-time.After(s.blockDeadline * 2):
			}
		}(lh)
	}

	timer := time.NewTimer(s.blockDeadline)
	defer timer.Stop()
collect:
	for len(acked) < len(waiting) {
		select {
		case id := <-results:
			acked[id] = true
		case <-timer.C:
			break collect
		case <-ctx.Done():
			break collect
		}
	}

	for _, lh := range waiting {
		s.setLaggy(lh, !acked[lh.id])
	}
}

func (s *Stage) setLaggy(lh *legHandle, laggy bool) {
	s.mu.Lock()
	lh.laggy = laggy
	s.mu.Unlock()
}

// LegLaggy reports whether the given leg missed its last consumption
// deadline.
func (s *Stage) LegLaggy(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lh, ok := s.legs[id]; ok {
		return lh.laggy
	}
	return false
}
