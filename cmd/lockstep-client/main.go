// Command lockstep-client connects to a lockstep-server, predicts ahead
// of the authoritative tick stream, rolls back on mismatch, and logs its
// own rendered state. It has no GUI (see spec.md §1 non-goals); keyboard
// capture is stubbed out the same way, so the demo is driven purely by
// remote/authoritative inputs unless --runtime=malicious is set, which
// exercises the local-only render tamper instead.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Abcight/lockstep/core/geom"
	"github.com/Abcight/lockstep/internal/config"
	"github.com/Abcight/lockstep/internal/logging"
	"github.com/Abcight/lockstep/internal/metrics"
	"github.com/Abcight/lockstep/netcode/netio"
	"github.com/Abcight/lockstep/netcode/predictor"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4000", "server address to connect to")
	runtime := flag.String("runtime", "client", "client or malicious")
	delayMs := flag.Uint("delay-ms", 0, "initial artificial latency in milliseconds")
	flag.Parse()

	if err := config.Load(); err != nil {
		logging.Init(logging.Options{Level: "info", Console: true})
		logging.L().Fatalw("config load failed", "err", err)
	}
	cfg := config.Global

	logging.Init(logging.Options{Level: cfg.Log.Level, Path: cfg.Log.Path, Console: cfg.Log.Console})
	log := logging.L()

	if cfg.Metrics != "" {
		srv := metrics.StartHTTP(cfg.Metrics)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metrics.Shutdown(shutdownCtx, srv)
		}()
		log.Infow("metrics server started", "addr", cfg.Metrics)
	}

	malicious := *runtime == "malicious"

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalw("connect failed", "addr", *addr, "err", err)
	}
	defer conn.Close()
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	events := make(chan netio.NetEvent, 256)
	outCmds := make(chan netio.SendInputCmd, 256)

	go func() {
		if err := netio.Reader(conn, events); err != nil {
			log.Warnw("reader terminated", "err", err)
		}
	}()
	go func() {
		if err := netio.Writer(conn, outCmds); err != nil {
			log.Warnw("writer terminated", "err", err)
		}
	}()

	// Keyboard capture remains an external collaborator (spec §1); this
	// demo always contributes zero local input bits.
	localInput := func() uint8 { return 0 }

	p := predictor.New(predictor.Config{
		TPS:           cfg.Net.TPS,
		LeadTicks:     cfg.Net.LeadTicks,
		DMax:          cfg.Net.DMax,
		History:       cfg.Net.History,
		CatchupBudget: cfg.Net.CatchupBudget,
	}, events, outCmds, localInput, malicious)
	p.SetDelay(uint32(*delayMs))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Infow("client starting", "addr", *addr, "runtime", *runtime)

	ticker := time.NewTicker(time.Second / time.Duration(cfg.Net.TPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			frame := p.Step(now)
			if frame.Waiting {
				continue
			}
			if frame.LocalTick%300 == 0 {
				me := frame.State.Players[frame.MyID]
				mePrev := frame.PrevState.Players[frame.MyID]
				renderPos := geom.Vector2{X: mePrev.X, Y: mePrev.Y}.Lerp(geom.Vector2{X: me.X, Y: me.Y}, frame.Alpha)
				renderVel := geom.Vector2{X: mePrev.VX, Y: mePrev.VY}.Lerp(geom.Vector2{X: me.VX, Y: me.VY}, frame.Alpha)
				log.Debugw("client frame", "me", frame.MyID, "local_tick", frame.LocalTick,
					"server_tick", frame.ServerTick, "render_pos", renderPos, "render_speed", renderVel.Magnitude(),
					"render_heading", renderVel.Normalize(), "players", frame.State.Players)
			}
		}
	}
}
