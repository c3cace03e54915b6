package channel

// UpdateKind distinguishes the parameter groups a ParameterUpdate may
// carry, so the output leg can decide whether a mask rebuild is needed
// without inspecting every field.
type UpdateKind int

const (
	UpdateRetune UpdateKind = iota
	UpdateFilter
	UpdatePLL
	UpdateOutput
)

// ParameterUpdate is one change request queued against a channel. Only
// the field matching Kind is populated.
type ParameterUpdate struct {
	Kind   UpdateKind
	Tuning *Tuning
	Filter *Filter
	PLL    *PLLConfig
	Output *Output
}

// RequiresMaskRebuild reports whether applying this update means the
// leg's frequency-domain mask must be recomputed.
func (u ParameterUpdate) RequiresMaskRebuild() bool {
	return u.Kind == UpdateFilter
}

// RequiresRetune reports whether applying this update means the leg's
// bin offset into the shared forward block must be recomputed.
func (u ParameterUpdate) RequiresRetune() bool {
	return u.Kind == UpdateRetune
}

// RequiresGainRetarget reports whether applying this update means the
// demodulator's live gain register must be snapped to the channel's
// new Output.Gain at the start of its next block, the same way a
// retune takes effect immediately rather than converging through the
// AGC's own geometric ramp.
func (u ParameterUpdate) RequiresGainRetarget() bool {
	return u.Kind == UpdateOutput
}

// Enqueue submits an update for application at the start of the
// channel's next block. It never blocks: if the queue is full the
// update is rejected and the caller should retry.
func (c *Channel) Enqueue(u ParameterUpdate) bool {
	select {
	case c.updates <- u:
		return true
	default:
		return false
	}
}

// DrainUpdates applies every update currently queued, in submission
// order, and reports whether any of them requires a mask rebuild, a
// retune, or a gain retarget, so the caller (the output leg, which
// owns the queue but forwards the gain signal on to the demodulator
// via the returned leg.Block) can act once rather than per update.
func (c *Channel) DrainUpdates() (rebuildMask, retune, gainRetarget bool) {
	for {
		select {
		case u := <-c.updates:
			c.apply(u)
			rebuildMask = rebuildMask || u.RequiresMaskRebuild()
			retune = retune || u.RequiresRetune()
			gainRetarget = gainRetarget || u.RequiresGainRetarget()
		default:
			return rebuildMask, retune, gainRetarget
		}
	}
}

func (c *Channel) apply(u ParameterUpdate) {
	switch u.Kind {
	case UpdateRetune:
		if u.Tuning != nil {
			c.Tuning = *u.Tuning
		}
	case UpdateFilter:
		if u.Filter != nil {
			c.Filter = u.Filter.Normalize()
		}
	case UpdatePLL:
		if u.PLL != nil {
			c.PLL = *u.PLL
		}
	case UpdateOutput:
		if u.Output != nil {
			c.Output = *u.Output
		}
	}
}
