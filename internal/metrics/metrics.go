// Package metrics exposes the Prometheus counters and gauges for both the
// server arbiter and the client predictor. Grounded on the pack's
// can-server metrics package: package-level promauto registrations, a
// StartHTTP helper serving /metrics and /ready, and stable label
// constants so error-reason cardinality stays bounded.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server-side metrics.
var (
	ServerTicksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lockstep_server_ticks_total",
		Help: "Total ticks advanced by the server arbiter.",
	})
	ServerInputsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lockstep_server_inputs_dropped_total",
		Help: "Total per-tick input records dropped by the arbiter, labeled by reason.",
	}, []string{"reason"})
	ServerConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lockstep_server_connected_clients",
		Help: "Current number of connected client sockets.",
	})
	ServerBroadcastErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lockstep_server_broadcast_errors_total",
		Help: "Total failed sends to a client during broadcast (connection then dropped).",
	})
)

// Drop reason label values for ServerInputsDropped (spec §7).
const (
	DropStale       = "stale"
	DropOutOfWindow = "out_of_window"
	DropDuplicate   = "duplicate_tick"
)

// Client-side metrics.
var (
	ClientRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lockstep_client_rollbacks_total",
		Help: "Total rollbacks applied by the client predictor.",
	})
	ClientRollbackHorizonExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lockstep_client_rollback_horizon_exceeded_total",
		Help: "Total rollbacks silently dropped because the snapshot fell outside the history horizon.",
	})
	ClientPredictedTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lockstep_client_predicted_ticks_total",
		Help: "Total ticks simulated using predicted (non-authoritative) inputs.",
	})
	ClientCatchupStepsLastFrame = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lockstep_client_catchup_steps_last_frame",
		Help: "Number of simulation steps taken in the most recent rendered frame.",
	})
)

// StartHTTP serves Prometheus metrics at /metrics and a liveness probe at
// /ready on addr. The caller is responsible for shutting srv down.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}

// Shutdown gracefully stops srv, ignoring a nil server.
func Shutdown(ctx context.Context, srv *http.Server) {
	if srv == nil {
		return
	}
	_ = srv.Shutdown(ctx)
}
