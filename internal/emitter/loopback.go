package emitter

import (
	"context"
	"sync"
)

// LoopbackSender buffers every block it receives in memory, in
// arrival order. Used by tests and the example command in place of a
// real network sender.
type LoopbackSender struct {
	mu     sync.Mutex
	blocks []PCMBlock
}

// NewLoopbackSender returns an empty LoopbackSender.
func NewLoopbackSender() *LoopbackSender {
	return &LoopbackSender{}
}

// Send records block and always succeeds.
func (s *LoopbackSender) Send(_ context.Context, block PCMBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, block)
	return nil
}

// Blocks returns a copy of every block recorded so far.
func (s *LoopbackSender) Blocks() []PCMBlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PCMBlock, len(s.blocks))
	copy(out, s.blocks)
	return out
}
