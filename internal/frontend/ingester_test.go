package frontend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	blocks [][]complex128
	n0s    []float64
}

func (r *recordingSink) IngestBlock(_ context.Context, samples []complex128, n0 float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks = append(r.blocks, samples)
	r.n0s = append(r.n0s, n0)
	if len(r.blocks) >= 3 {
		return errStop
	}
	return nil
}

var errStop = errors.New("stop after N blocks")

func TestIngesterDeliversBlocksOfSizeL(t *testing.T) {
	fe, err := New(Config{SampleRate: 48000, Complex: true, BlockTimeMs: 10, Overlap: 2})
	if err != nil {
		t.Fatalf("frontend.New: %v", err)
	}
	sink := &recordingSink{}
	ing := NewIngester(fe, DCSource{}, sink, IngesterConfig{}, nil)

	err = ing.Run(context.Background())
	if !errors.Is(err, errStop) {
		t.Fatalf("expected errStop, got %v", err)
	}
	if len(sink.blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(sink.blocks))
	}
	for _, b := range sink.blocks {
		if len(b) != fe.L {
			t.Fatalf("expected block length %d, got %d", fe.L, len(b))
		}
		for _, s := range b {
			if s != complex(1, 0) {
				t.Fatalf("expected DC 1+0i, got %v", s)
			}
		}
	}
}

type flakySource struct {
	failCount int
	calls     int
}

func (f *flakySource) Read(_ context.Context, n int) ([]Sample, error) {
	f.calls++
	if f.calls <= f.failCount {
		return nil, errors.New("transient read failure")
	}
	out := make([]Sample, n)
	return out, nil
}

func TestIngesterRetriesStallsBeforeDelivering(t *testing.T) {
	fe, err := New(Config{SampleRate: 48000, Complex: true, BlockTimeMs: 5, Overlap: 2})
	if err != nil {
		t.Fatalf("frontend.New: %v", err)
	}
	sink := &recordingSink{}
	src := &flakySource{failCount: 2}
	ing := NewIngester(fe, src, sink, IngesterConfig{StallTimeout: 10 * time.Millisecond, MaxStallRetries: 5}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = ing.Run(ctx)
	if !errors.Is(err, errStop) {
		t.Fatalf("expected errStop after recovering from stalls, got %v", err)
	}
	if src.calls <= src.failCount {
		t.Fatalf("expected source to be retried past its failures, got %d calls", src.calls)
	}
}
