// Package channel defines the per-receiver data model shared by the
// output leg, the linear demodulator, and the status surface: tuning,
// filter, output, and linear-demod parameter groups plus the runtime
// state each block updates.
package channel

import "sync"

// Tuning holds the channel's frequency parameters. All fields are
// mutable; changes become effective at the next block.
type Tuning struct {
	// F0 is the absolute center frequency, Hz.
	F0 float64
	// Shift is the post-detection frequency shift, Hz.
	Shift float64
	// DopplerRate and DopplerOffset track a moving target's Doppler pair.
	DopplerRate   float64
	DopplerOffset float64
}

// Filter holds the pre-detection filter's passband and window shape,
// relative to F0.
type Filter struct {
	MinIF, MaxIF float64 // Hz, relative to F0; MinIF <= MaxIF after normalization
	KaiserBeta   float64
	Conjugate    bool // ISB/conjugate flag
}

// Normalize swaps MinIF/MaxIF if they arrived inverted, enforcing the
// MinIF <= MaxIF invariant.
func (f Filter) Normalize() Filter {
	if f.MinIF > f.MaxIF {
		f.MinIF, f.MaxIF = f.MaxIF, f.MinIF
	}
	return f
}

// Output holds the channel's output format and level parameters.
type Output struct {
	Channels int     // 1 (mono) or 2 (stereo)
	Fo       float64 // output sample rate, Hz; Fs/Fo must be an integer
	Headroom float64 // target max output amplitude, linear, <= 1.0
	Gain     float64 // linear gain, >= 0
	SSRC     uint32
}

// AGCConfig holds the automatic gain control's tunable parameters.
type AGCConfig struct {
	ThresholdDB    float64 // AGC threshold, dB relative to headroom
	RecoveryRateDB float64 // recovery rate, dB/s
	HangTimeBlocks int     // hang duration, in blocks
}

// PLLConfig holds the carrier-recovery loop's tunable parameters.
type PLLConfig struct {
	LoopBWHz float64
	Damping  float64
	LockTime float64 // seconds above/below threshold SNR required to lock/unlock

	// SquelchClose and SquelchOpen are lock-detector hysteresis
	// thresholds on the linear in-phase/quadrature power ratio SNR;
	// below SquelchClose the lock counter decays toward unlocked,
	// above SquelchOpen it climbs toward locked.
	SquelchClose float64
	SquelchOpen  float64
}

// Flags selects which linear-demod passes run.
type Flags struct {
	PLL    bool
	Square bool
	Env    bool
	AGC    bool
}

// LockState is the PLL's two-state lock machine (spec §4.6).
type LockState int

const (
	Unlocked LockState = iota
	Locked
)

func (s LockState) String() string {
	if s == Locked {
		return "locked"
	}
	return "unlocked"
}

// AGCState is the AGC's four-state machine (spec §4.6).
type AGCState int

const (
	AGCRecover AGCState = iota
	AGCStrong
	AGCNoiseLimited
	AGCHang
)

func (s AGCState) String() string {
	switch s {
	case AGCStrong:
		return "strong"
	case AGCNoiseLimited:
		return "noise_limited"
	case AGCHang:
		return "hang"
	default:
		return "recover"
	}
}

// Runtime holds per-block state that only the attached demodulator
// goroutine writes; reads by the status reporter go through Channel's
// lock-guarded Snapshot.
type Runtime struct {
	WasOn      bool // PLL edge detect
	LockCount  int  // saturating in +/- lock_limit
	PLLLock    bool
	LockState  LockState
	Rotations  int
	CPhase     float64
	SNR        float64
	N0         float64
	BBPower    float64
	Hangcount  int
	AGCState   AGCState
	Gain       float64 // current linear gain
	FOffset    float64
	BlockIndex uint64
}

// Channel is one receiver's complete, owned state. Per the ownership
// rules, a Channel never shares mutable state with any other channel;
// only its own leg and demodulator goroutine mutate it. The runtime
// state is guarded by mu; the parameter groups are updated by
// DrainUpdates without taking it.
type Channel struct {
	Name string

	Tuning Tuning
	Filter Filter
	Output Output
	AGC    AGCConfig
	PLL    PLLConfig
	Flags  Flags

	mu      sync.Mutex
	runtime Runtime
	updates chan ParameterUpdate
}

// New constructs a Channel from a Prototype, normalizing its filter and
// seeding runtime state (unlocked, starting gain from Output.Gain).
func New(proto Prototype) *Channel {
	c := &Channel{
		Name:   proto.Name,
		Tuning: proto.Tuning,
		Filter: proto.Filter.Normalize(),
		Output: proto.Output,
		AGC:    proto.AGC,
		PLL:    proto.PLL,
		Flags:  proto.Flags,

		updates: make(chan ParameterUpdate, 16),
	}
	c.runtime.Gain = proto.Output.Gain
	c.runtime.LockState = Unlocked
	c.runtime.AGCState = AGCRecover
	return c
}

// Snapshot returns a lock-guarded copy of the channel's runtime state,
// safe to read concurrently with the demodulator's per-block updates.
func (c *Channel) Snapshot() Runtime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runtime
}

// WithRuntime runs fn with exclusive access to the channel's runtime
// state, used by the demodulator to publish updates at the end of a
// block. fn must not block.
func (c *Channel) WithRuntime(fn func(*Runtime)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.runtime)
}
