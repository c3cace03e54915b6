// Command enginedemo wires a synthetic front end, the shared forward
// transform stage, and one demodulated channel together and runs them
// until interrupted. It exists to exercise the engine end-to-end
// without a real SDR front end or RTP output; both remain external
// collaborators per the module's scope.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/kf7mix/fanout-engine/internal/channel"
	"github.com/kf7mix/fanout-engine/internal/coordinator"
	"github.com/kf7mix/fanout-engine/internal/emitter"
	"github.com/kf7mix/fanout-engine/internal/forward"
	"github.com/kf7mix/fanout-engine/internal/frontend"
	"github.com/kf7mix/fanout-engine/internal/logging"
	"github.com/kf7mix/fanout-engine/internal/status"
)

func main() {
	var (
		sampleRate  = flag.Float64("sample-rate", 48000, "front end sample rate, Hz")
		blockTimeMs = flag.Float64("block-time-ms", 20, "nominal block duration, ms")
		overlap     = flag.Int("overlap", 5, "overlap-save factor")
		toneHz      = flag.Float64("tone-hz", 1000, "synthetic carrier offset from DC, Hz")
		noiseSigma  = flag.Float64("noise-sigma", 0.05, "synthetic per-sample Gaussian noise sigma")
		outputFo    = flag.Float64("output-rate", 8000, "channel output sample rate, Hz")
		minIF       = flag.Float64("min-if", 300, "channel passband lower edge, Hz")
		maxIF       = flag.Float64("max-if", 2700, "channel passband upper edge, Hz")
		webAddr     = flag.String("web-addr", "", "status HTTP address, e.g. :8090 (empty disables)")
		logLevel    = flag.String("log-level", "info", "debug|info|warn|error")
	)
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("log level: %v", err)
	}
	logger := logging.New(level, logging.Text, os.Stderr)
	logging.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fe, err := frontend.New(frontend.Config{
		SampleRate:  *sampleRate,
		Complex:     true,
		BlockTimeMs: *blockTimeMs,
		Overlap:     *overlap,
	})
	if err != nil {
		log.Fatalf("front end: %v", err)
	}

	stage := forward.New(fe, logger)

	hub := status.NewHub(500)
	var reporter status.Reporter = hub
	if *webAddr != "" {
		go status.NewWebServer(*webAddr, hub).Start(ctx)
		fmt.Printf("status interface: http://localhost%s/api/status\n", *webAddr)
	} else {
		reporter = status.MultiReporter{hub, status.NewStdoutReporter(logger)}
	}

	co := coordinator.New(fe, stage, logger, reporter)

	proto := channel.Prototype{
		Name:   "demo",
		Tuning: channel.Tuning{F0: *toneHz},
		Filter: channel.Filter{MinIF: *minIF, MaxIF: *maxIF, KaiserBeta: 5},
		Output: channel.Output{Channels: 1, Fo: *outputFo, Headroom: 0.9, Gain: 1, SSRC: 1},
		AGC:    channel.AGCConfig{ThresholdDB: -15, RecoveryRateDB: 20, HangTimeBlocks: 50},
		PLL:    channel.PLLConfig{LoopBWHz: 20, Damping: 1 / math.Sqrt2,LockTime: 0.05, SquelchOpen: 3, SquelchClose: 1},
		Flags:  channel.Flags{AGC: true},
	}

	sender := &emitter.LoggingSender{Channel: proto.Name, Next: emitter.NewLoopbackSender(), Logger: logger}
	if _, err := co.AddChannel(ctx, proto, sender); err != nil {
		log.Fatalf("add channel: %v", err)
	}

	src := frontend.NewToneSource(*sampleRate, *toneHz, *noiseSigma, nil)
	sink := &coordinator.GatedSink{Stage: stage}
	ing := frontend.NewIngester(fe, src, sink, frontend.IngesterConfig{}, logger)

	logger.Info("enginedemo starting", logging.Field{Key: "sample_rate", Value: *sampleRate})
	if err := ing.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("ingester: %v", err)
	}

	co.Shutdown()
	logger.Info("enginedemo stopped")
}
