// Command lockstep-server runs the authoritative arbiter for one
// two-player lockstep session: it binds a TCP listener, accepts exactly
// two connections, performs the shared-start handshake, and then
// broadcasts the authoritative per-tick inputs until the process is
// signalled to stop.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Abcight/lockstep/internal/config"
	"github.com/Abcight/lockstep/internal/logging"
	"github.com/Abcight/lockstep/internal/metrics"
	"github.com/Abcight/lockstep/netcode/arbiter"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4000", "address to listen on")
	flag.Parse()

	if err := config.Load(); err != nil {
		logging.Init(logging.Options{Level: "info", Console: true})
		logging.L().Fatalw("config load failed", "err", err)
	}
	cfg := config.Global

	logging.Init(logging.Options{Level: cfg.Log.Level, Path: cfg.Log.Path, Console: cfg.Log.Console})
	log := logging.L()

	var metricsSrv *http.Server
	if cfg.Metrics != "" {
		metricsSrv = metrics.StartHTTP(cfg.Metrics)
		log.Infow("metrics server started", "addr", cfg.Metrics)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := arbiter.New(arbiter.Config{
		TPS:        cfg.Net.TPS,
		LeadTicks:  cfg.Net.LeadTicks,
		DMax:       cfg.Net.DMax,
		StartDelay: time.Duration(cfg.Net.StartDelayMs) * time.Millisecond,
	})

	go logRender(log, a)

	log.Infow("arbiter starting", "addr", *addr)
	if err := a.Run(ctx, *addr); err != nil {
		log.Errorw("arbiter exited", "err", err)
	}

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		metrics.Shutdown(shutdownCtx, metricsSrv)
	}
}

// logRender drains the arbiter's own telemetry channel and logs a
// heartbeat every few hundred ticks. There is no GUI in this repo
// (rendering stays an external collaborator per spec §1 non-goals) — this
// is the server's entire view of the match.
func logRender(log *zap.SugaredLogger, a *arbiter.Arbiter) {
	for r := range a.Render() {
		if r.Tick%300 == 0 {
			log.Debugw("arbiter tick", "tick", r.Tick, "players", r.State.Players)
		}
	}
}
