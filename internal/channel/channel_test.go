package channel

import "testing"

func testPrototype() Prototype {
	return Prototype{
		Name:   "20m-usb",
		Tuning: Tuning{F0: 14200000},
		Filter: Filter{MinIF: 300, MaxIF: 2700, KaiserBeta: 5},
		Output: Output{Channels: 1, Fo: 8000, Headroom: 0.9, Gain: 1},
		AGC:    AGCConfig{ThresholdDB: -20, RecoveryRateDB: 20, HangTimeBlocks: 5},
		PLL:    PLLConfig{LoopBWHz: 50, Damping: 0.707, LockTime: 0.5},
		Flags:  Flags{PLL: true, AGC: true},
	}
}

func TestNewSeedsRuntimeFromPrototype(t *testing.T) {
	c := New(testPrototype())
	snap := c.Snapshot()
	if snap.Gain != 1 {
		t.Fatalf("expected initial gain 1, got %v", snap.Gain)
	}
	if snap.LockState != Unlocked {
		t.Fatalf("expected new channel to start unlocked")
	}
}

func TestFilterNormalizeSwapsInverted(t *testing.T) {
	f := Filter{MinIF: 2700, MaxIF: 300}.Normalize()
	if f.MinIF != 300 || f.MaxIF != 2700 {
		t.Fatalf("expected normalize to swap inverted bounds, got %+v", f)
	}
}

func TestPrototypeCloneDoesNotMutateReceiver(t *testing.T) {
	tmpl := Prototype{Name: "template"}
	if !tmpl.IsTemplate() {
		t.Fatalf("expected zero-F0 prototype to be a template")
	}
	clone := tmpl.Clone("20m-usb", 14200000)
	if tmpl.Tuning.F0 != 0 {
		t.Fatalf("Clone must not mutate the receiver")
	}
	if clone.Tuning.F0 != 14200000 || clone.Name != "20m-usb" {
		t.Fatalf("unexpected clone: %+v", clone)
	}
}

func TestDrainUpdatesAppliesInOrderAndReportsFlags(t *testing.T) {
	c := New(testPrototype())
	c.Enqueue(ParameterUpdate{Kind: UpdateRetune, Tuning: &Tuning{F0: 7100000}})
	c.Enqueue(ParameterUpdate{Kind: UpdateFilter, Filter: &Filter{MinIF: 100, MaxIF: 2900}})
	c.Enqueue(ParameterUpdate{Kind: UpdatePLL, PLL: &PLLConfig{LoopBWHz: 75, Damping: 1, LockTime: 1}})

	rebuild, retune, gainRetarget := c.DrainUpdates()
	if !rebuild || !retune {
		t.Fatalf("expected both rebuildMask and retune flags set, got rebuild=%v retune=%v", rebuild, retune)
	}
	if gainRetarget {
		t.Fatalf("expected no gain retarget without a queued UpdateOutput")
	}
	if c.Tuning.F0 != 7100000 {
		t.Fatalf("retune not applied, got %+v", c.Tuning)
	}
	if c.Filter.MinIF != 100 || c.Filter.MaxIF != 2900 {
		t.Fatalf("filter update not applied, got %+v", c.Filter)
	}
	if c.PLL.LoopBWHz != 75 {
		t.Fatalf("pll update not applied, got %+v", c.PLL)
	}

	rebuild, retune, gainRetarget = c.DrainUpdates()
	if rebuild || retune || gainRetarget {
		t.Fatalf("expected drained queue to report no pending work")
	}
}

func TestDrainUpdatesReportsGainRetargetOnUpdateOutput(t *testing.T) {
	c := New(testPrototype())
	c.Enqueue(ParameterUpdate{Kind: UpdateOutput, Output: &Output{Channels: 1, Fo: 8000, Headroom: 0.9, Gain: 0.4}})

	_, _, gainRetarget := c.DrainUpdates()
	if !gainRetarget {
		t.Fatalf("expected UpdateOutput to report a gain retarget")
	}
	if c.Output.Gain != 0.4 {
		t.Fatalf("expected Output.Gain applied, got %v", c.Output.Gain)
	}
}

func TestEnqueueRejectsWhenQueueFull(t *testing.T) {
	c := New(testPrototype())
	ok := true
	for i := 0; i < 32 && ok; i++ {
		ok = c.Enqueue(ParameterUpdate{Kind: UpdatePLL, PLL: &PLLConfig{}})
	}
	if ok {
		t.Fatalf("expected Enqueue to eventually reject once the queue fills")
	}
}

func TestWithRuntimePublishesUnderLock(t *testing.T) {
	c := New(testPrototype())
	c.WithRuntime(func(r *Runtime) {
		r.SNR = 12.5
		r.PLLLock = true
		r.LockState = Locked
	})
	snap := c.Snapshot()
	if snap.SNR != 12.5 || !snap.PLLLock || snap.LockState != Locked {
		t.Fatalf("unexpected snapshot after WithRuntime: %+v", snap)
	}
}
