// Package status exposes live channel telemetry: a per-channel
// snapshot history, an HTTP/SSE surface for watching it, and a
// stdout reporter for local runs. The wire encoding used by the
// upstream control/status protocol (TLV-framed, per spec) is an
// external collaborator and is not implemented here; this package
// only defines the in-process snapshot and its JSON rendering.
package status

import (
	"sync"
	"time"

	"github.com/kf7mix/fanout-engine/internal/channel"
)

// Snapshot is one channel's published status sample.
type Snapshot struct {
	Channel    string    `json:"channel"`
	Timestamp  time.Time `json:"timestamp"`
	BlockIndex uint64    `json:"blockIndex"`
	SNR        float64   `json:"snr"`
	FOffset    float64   `json:"foffset"`
	Gain       float64   `json:"gain"`
	PLLLock    bool      `json:"pllLock"`
	LockState  string    `json:"lockState"`
	Rotations  int       `json:"rotations"`
	AGCState   string    `json:"agcState"`
	N0         float64   `json:"n0"`
}

// FromChannel builds a Snapshot from a channel's current runtime
// state, taking its own lock-guarded copy.
func FromChannel(ch *channel.Channel, stamp time.Time) Snapshot {
	r := ch.Snapshot()
	return Snapshot{
		Channel:    ch.Name,
		Timestamp:  stamp,
		BlockIndex: r.BlockIndex,
		SNR:        r.SNR,
		FOffset:    r.FOffset,
		Gain:       r.Gain,
		PLLLock:    r.PLLLock,
		LockState:  r.LockState.String(),
		Rotations:  r.Rotations,
		AGCState:   r.AGCState.String(),
		N0:         r.N0,
	}
}

// Reporter captures a status snapshot. Hub and StdoutReporter both
// implement it so callers can fan a snapshot out to both without
// caring which.
type Reporter interface {
	Report(snap Snapshot)
}

// Hub collects per-channel snapshot history and fans live updates out
// to subscribers, the same shape as a typical status/telemetry
// aggregator: bounded history ring per key, buffered subscriber
// channels, lock held only long enough to append and fan out.
type Hub struct {
	mu           sync.RWMutex
	history      map[string][]Snapshot
	historyLimit int
	subscribers  map[chan Snapshot]struct{}
}

// NewHub constructs a Hub retaining up to historyLimit snapshots per
// channel.
func NewHub(historyLimit int) *Hub {
	if historyLimit <= 0 {
		historyLimit = 200
	}
	return &Hub{
		history:      make(map[string][]Snapshot),
		historyLimit: historyLimit,
		subscribers:  make(map[chan Snapshot]struct{}),
	}
}

// Report implements Reporter: records snap and notifies subscribers.
func (h *Hub) Report(snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := append(h.history[snap.Channel], snap)
	if len(list) > h.historyLimit {
		list = list[len(list)-h.historyLimit:]
	}
	h.history[snap.Channel] = list
	for ch := range h.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}

// History returns a copy of the recorded snapshots for one channel.
func (h *Hub) History(channelName string) []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	src := h.history[channelName]
	out := make([]Snapshot, len(src))
	copy(out, src)
	return out
}

// Latest returns the most recent snapshot recorded for every channel.
func (h *Hub) Latest() []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Snapshot, 0, len(h.history))
	for _, list := range h.history {
		if len(list) > 0 {
			out = append(out, list[len(list)-1])
		}
	}
	return out
}

// Subscribe registers a listener for live snapshot updates, returning
// the channel and a cancel function that unregisters and closes it.
func (h *Hub) Subscribe() (chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		close(ch)
		h.mu.Unlock()
	}
	return ch, cancel
}
