// Package coordinator manages channel creation and teardown: wiring
// a channel's leg, demodulator, and emitter goroutine together,
// gating the forward stage on leg count, and reaping channels whose
// goroutine has exited after a cooperative stop request.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kf7mix/fanout-engine/internal/channel"
	"github.com/kf7mix/fanout-engine/internal/demod"
	"github.com/kf7mix/fanout-engine/internal/emitter"
	"github.com/kf7mix/fanout-engine/internal/engineerr"
	"github.com/kf7mix/fanout-engine/internal/forward"
	"github.com/kf7mix/fanout-engine/internal/frontend"
	"github.com/kf7mix/fanout-engine/internal/leg"
	"github.com/kf7mix/fanout-engine/internal/logging"
	"github.com/kf7mix/fanout-engine/internal/status"
)

type handle struct {
	ch         *channel.Channel
	attachment forward.Attachment
	cancel     context.CancelFunc
	done       chan struct{}
}

// Coordinator owns the set of live channels attached to a shared
// forward stage.
type Coordinator struct {
	fe       *frontend.FrontEnd
	stage    *forward.Stage
	logger   logging.Logger
	reporter status.Reporter

	mu       sync.Mutex
	channels map[string]*handle
}

// New constructs a Coordinator over stage. reporter may be nil.
func New(fe *frontend.FrontEnd, stage *forward.Stage, logger logging.Logger, reporter status.Reporter) *Coordinator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{
		fe:       fe,
		stage:    stage,
		logger:   logger,
		reporter: reporter,
		channels: make(map[string]*handle),
	}
}

// AddChannel builds a channel from proto, attaches its leg to the
// shared forward stage, and starts its demodulator/emitter goroutine.
func (c *Coordinator) AddChannel(ctx context.Context, proto channel.Prototype, sender emitter.Sender) (*channel.Channel, error) {
	ch := channel.New(proto)

	c.mu.Lock()
	if _, exists := c.channels[ch.Name]; exists {
		c.mu.Unlock()
		return nil, &engineerr.ConfigError{Subject: ch.Name, Field: "name", Cause: fmt.Errorf("channel already exists")}
	}
	c.mu.Unlock()

	lg, err := leg.New(c.fe, ch, c.logger)
	if err != nil {
		return nil, err
	}
	dm := demod.New(ch)
	att := c.stage.Attach()

	runCtx, cancel := context.WithCancel(ctx)
	h := &handle{ch: ch, attachment: att, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	c.channels[ch.Name] = h
	c.mu.Unlock()

	go c.run(runCtx, h, lg, dm, sender)
	return ch, nil
}

func (c *Coordinator) run(ctx context.Context, h *handle, lg *leg.Leg, dm *demod.Demodulator, sender emitter.Sender) {
	defer close(h.done)
	defer c.stage.Detach(h.attachment.ID)

	for {
		select {
		case <-ctx.Done():
			return
		case blk, ok := <-h.attachment.Notify:
			if !ok {
				return
			}
			if !c.processBlock(ctx, h, lg, dm, sender, blk) {
				return
			}
			select {
			case h.attachment.Ack <- struct{}{}:
			default:
			}
		}
	}
}

// processBlock runs one channel's leg and demodulator over blk and
// emits the result. It returns false when the demodulator raised an
// internal invariant violation, telling run to stop this channel's
// goroutine; other channels are unaffected.
func (c *Coordinator) processBlock(ctx context.Context, h *handle, lg *leg.Leg, dm *demod.Demodulator, sender emitter.Sender, blk *forward.ForwardBlock) bool {
	legBlock := lg.Process(blk)
	pcm, err := dm.Process(legBlock)
	if err != nil {
		c.logger.Error("channel demodulator raised an internal invariant violation, stopping channel",
			logging.Channel(h.ch.Name), logging.Err(err))
		return false
	}

	h.ch.WithRuntime(func(r *channel.Runtime) { r.BlockIndex = blk.Index })

	if c.reporter != nil {
		c.reporter.Report(status.FromChannel(h.ch, time.Now()))
	}

	out := emitter.PCMBlock{
		SSRC:       h.ch.Output.SSRC,
		BlockIndex: blk.Index,
		Mono:       pcm.Mono,
		Left:       pcm.Left,
		Right:      pcm.Right,
		Mute:       pcm.Mute,
	}
	if err := sender.Send(ctx, out); err != nil {
		c.logger.Warn("channel emitter send failed",
			logging.Channel(h.ch.Name), logging.Err(err))
	}
	return true
}

// RemoveChannel cancels channel's goroutine and blocks until it has
// detached from the forward stage.
func (c *Coordinator) RemoveChannel(name string) {
	c.mu.Lock()
	h, ok := c.channels[name]
	if ok {
		delete(c.channels, name)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	h.cancel()
	<-h.done
}

// ChannelCount returns the number of currently live channels.
func (c *Coordinator) ChannelCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.channels)
}

// Channel returns a live channel by name, if any.
func (c *Coordinator) Channel(name string) (*channel.Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.channels[name]
	if !ok {
		return nil, false
	}
	return h.ch, true
}

// Shutdown cancels every live channel's goroutine and waits for all to
// exit.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	handles := make([]*handle, 0, len(c.channels))
	for _, h := range c.channels {
		handles = append(handles, h)
	}
	c.channels = make(map[string]*handle)
	c.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
	for _, h := range handles {
		<-h.done
	}
}
