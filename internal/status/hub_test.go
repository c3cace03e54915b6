package status

import (
	"testing"
	"time"

	"github.com/kf7mix/fanout-engine/internal/channel"
)

func TestFromChannelCarriesAGCState(t *testing.T) {
	ch := channel.New(channel.Prototype{
		Name:   "20m-usb",
		Output: channel.Output{Channels: 1, Fo: 8000, Headroom: 0.9, Gain: 1},
	})
	ch.WithRuntime(func(r *channel.Runtime) { r.AGCState = channel.AGCHang })

	snap := FromChannel(ch, time.Now())
	if snap.AGCState != "hang" {
		t.Fatalf("expected AGCState=hang carried into snapshot, got %q", snap.AGCState)
	}
}

func TestReportAppendsAndTrimsHistory(t *testing.T) {
	h := NewHub(2)
	h.Report(Snapshot{Channel: "a", BlockIndex: 1})
	h.Report(Snapshot{Channel: "a", BlockIndex: 2})
	h.Report(Snapshot{Channel: "a", BlockIndex: 3})

	hist := h.History("a")
	if len(hist) != 2 {
		t.Fatalf("expected history trimmed to 2, got %d", len(hist))
	}
	if hist[0].BlockIndex != 2 || hist[1].BlockIndex != 3 {
		t.Fatalf("expected oldest entry dropped, got %+v", hist)
	}
}

func TestLatestReturnsOnePerChannel(t *testing.T) {
	h := NewHub(10)
	h.Report(Snapshot{Channel: "a", BlockIndex: 1})
	h.Report(Snapshot{Channel: "b", BlockIndex: 5})
	h.Report(Snapshot{Channel: "a", BlockIndex: 2})

	latest := h.Latest()
	if len(latest) != 2 {
		t.Fatalf("expected 2 channels represented, got %d", len(latest))
	}
	byChannel := map[string]uint64{}
	for _, s := range latest {
		byChannel[s.Channel] = s.BlockIndex
	}
	if byChannel["a"] != 2 || byChannel["b"] != 5 {
		t.Fatalf("expected latest block per channel, got %+v", byChannel)
	}
}

func TestSubscribeReceivesLiveReports(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Report(Snapshot{Channel: "a", BlockIndex: 1})
	select {
	case snap := <-ch:
		if snap.BlockIndex != 1 {
			t.Fatalf("expected block 1, got %d", snap.BlockIndex)
		}
	default:
		t.Fatalf("expected subscriber to receive the report")
	}
}
