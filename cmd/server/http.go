package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"tilefactory.io/internal/persistence/snapshot"
	"tilefactory.io/internal/sim/world"
	"tilefactory.io/internal/transport/observer"
)

type networkState struct {
	ID        uint32  `json:"id"`
	Members   int     `json:"members"`
	Offered   float64 `json:"offered"`
	Delivered float64 `json:"delivered"`
	Stored    float64 `json:"stored"`
}

type stateResponse struct {
	WorldID   string          `json:"world_id"`
	Tick      uint64          `json:"tick"`
	GameSpeed int             `json:"game_speed"`
	Stats     world.TickStats `json:"stats"`
	Networks  []networkState  `json:"networks"`
}

func newMux(w *world.World, obs *observer.Server, snapCh chan<- snapshot.SnapshotV1, log *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, w.ID(), w.Frame().Stats, w.GameSpeed())
	})

	if envBool("TF_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			var resp stateResponse
			err := w.Call(ctx, func(w *world.World) {
				resp = stateResponse{
					WorldID:   w.ID(),
					Tick:      w.Tick(),
					GameSpeed: w.GameSpeed(),
					Stats:     w.LastStats(),
					Networks:  []networkState{},
				}
				for _, n := range w.Networks() {
					resp.Networks = append(resp.Networks, networkState{
						ID: n.ID, Members: n.Members.Size(), Offered: n.Offered, Delivered: n.Delivered, Stored: n.Stored,
					})
				}
			})
			if err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			var snap snapshot.SnapshotV1
			err := w.Call(ctx, func(w *world.World) { snap = w.ExportSnapshot() })
			if err == nil {
				select {
				case snapCh <- snap:
				case <-ctx.Done():
					err = ctx.Err()
				}
			}
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": snap.Header.Tick})
		})
		mux.HandleFunc("/admin/v1/speed", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			speed, err := strconv.Atoi(r.URL.Query().Get("speed"))
			if err != nil || speed < 0 {
				http.Error(rw, "bad speed", http.StatusBadRequest)
				return
			}
			w.SetGameSpeed(speed)
			log.Info("game speed changed", zap.Int("speed", speed))
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "game_speed": w.GameSpeed()})
		})
		mux.HandleFunc("/observer/bootstrap", obs.BootstrapHandler())
		mux.HandleFunc("/observer/ws", obs.WSHandler())
	} else {
		log.Info("admin endpoints disabled (TF_ENABLE_ADMIN_HTTP=false)")
	}

	if envBool("TF_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

// writeMetrics emits the minimal Prometheus exposition format.
func writeMetrics(rw http.ResponseWriter, worldID string, st world.TickStats, speed int) {
	gauge := func(name, help string, v any) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
		fmt.Fprintf(rw, "%s{world=%q} %v\n", name, worldID, v)
	}
	gauge("tilefactory_world_tick", "Last completed world tick.", st.Tick)
	gauge("tilefactory_world_game_speed", "Game speed multiplier; 0 is paused.", speed)
	gauge("tilefactory_world_structures", "Placed structures including cables.", st.Structures)
	gauge("tilefactory_world_items_in_transit", "Items riding belts and routers.", st.ItemsInTransit)
	gauge("tilefactory_power_networks", "Power networks.", st.Networks)
	gauge("tilefactory_power_offered", "Power offered by producers last tick.", st.PowerOffered)
	gauge("tilefactory_power_delivered", "Power delivered to consumers last tick.", st.PowerDelivered)
	gauge("tilefactory_world_step_us", "Last tick step duration in microseconds.", st.DurationMicros)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
