// pkg/server/server.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package server exposes a control tower over HTTP. All access to the
// tower goes through a single mutex so that ticks and driver operations
// never interleave.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/brunoga/deep"
	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/iancoleman/orderedmap"
	"github.com/mmp/towersim/pkg/log"
	"github.com/mmp/towersim/pkg/save"
	"github.com/mmp/towersim/pkg/tower"
	"github.com/mmp/towersim/pkg/util"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultHistorySize = 256
	historyTTL         = 2 * time.Hour
	// Largest number of ticks a single request may ask for.
	MaxTicksPerRequest = 10000
)

type Server struct {
	mu      util.LoggingMutex
	ct      *tower.ControlTower
	history *expirable.LRU[int64, tower.State]
	paused  util.AtomicBool
	start   time.Time
	lg      *log.Logger
}

// New returns a server for ct that remembers the state after each of the
// most recent historySize ticks.
func New(ct *tower.ControlTower, historySize int, lg *log.Logger) *Server {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	s := &Server{
		ct:      ct,
		history: expirable.NewLRU[int64, tower.State](historySize, nil, historyTTL),
		start:   time.Now(),
		lg:      lg,
	}
	s.record(ct.State())
	return s
}

func (s *Server) record(st tower.State) {
	s.history.Add(st.TicksElapsed, st)
}

// Tick advances the tower n times and returns the resulting state.
func (s *Server) Tick(n int) (tower.State, error) {
	if n < 1 || n > MaxTicksPerRequest {
		return tower.State{}, fmt.Errorf("%d: %w", n, ErrInvalidTickCount)
	}

	s.mu.Lock(s.lg)
	defer s.mu.Unlock(s.lg)

	start := time.Now()
	var st tower.State
	for range n {
		s.ct.Tick()
		st = s.ct.State()
		s.record(st)
	}
	s.lg.Debug("ticked", slog.Int("count", n), slog.Int64("tick", st.TicksElapsed),
		slog.Duration("elapsed", time.Since(start)))
	return st, nil
}

// State returns the tower's current state.
func (s *Server) State() tower.State {
	s.mu.Lock(s.lg)
	defer s.mu.Unlock(s.lg)
	return s.ct.State()
}

// HistoricState returns the state recorded after the given tick, if it is
// still held.
func (s *Server) HistoricState(tick int64) (tower.State, error) {
	st, ok := s.history.Get(tick)
	if !ok {
		return tower.State{}, fmt.Errorf("tick %d: %w", tick, ErrNoHistory)
	}
	return deep.MustCopy(st), nil
}

// with runs f with exclusive access to the tower.
func (s *Server) with(f func(ct *tower.ControlTower) error) error {
	s.mu.Lock(s.lg)
	defer s.mu.Unlock(s.lg)
	return f(s.ct)
}

func (s *Server) Pause()       { s.paused.Store(true) }
func (s *Server) Resume()      { s.paused.Store(false) }
func (s *Server) Paused() bool { return s.paused.Load() }

///////////////////////////////////////////////////////////////////////////
// HTTP

// Handler returns the HTTP routes for the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/state/{tick}", s.handleHistoricState)
		r.Post("/tick", s.handleTick)
		r.Post("/pause", s.handlePause)
		r.Post("/resume", s.handleResume)
		r.Post("/aircraft", s.handleAddAircraft)
		r.Post("/aircraft/{callsign}/emergency", s.handleAircraftEmergency(true))
		r.Delete("/aircraft/{callsign}/emergency", s.handleAircraftEmergency(false))
		r.Post("/terminals/{number}/emergency", s.handleTerminalEmergency(true))
		r.Delete("/terminals/{number}/emergency", s.handleTerminalEmergency(false))
		r.Get("/loading", s.handleLoading)
		r.Get("/checkpoint", s.handleCheckpoint)
		r.Get("/stats", s.handleStats)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.State())
}

func (s *Server) handleHistoricState(w http.ResponseWriter, r *http.Request) {
	tick, err := strconv.ParseInt(chi.URLParam(r, "tick"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "tick must be an integer")
		return
	}
	st, err := s.HistoricState(tick)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	n := 1
	if c := r.URL.Query().Get("count"); c != "" {
		var err error
		if n, err = strconv.Atoi(c); err != nil {
			writeJSONError(w, http.StatusBadRequest, "count must be an integer")
			return
		}
	}

	st, err := s.Tick(n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.Pause()
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.Resume()
	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

// handleAddAircraft takes {"aircraft": "<encoded aircraft>"} using the
// same line format as saved state.
func (s *Server) handleAddAircraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Aircraft string `json:"aircraft"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Aircraft == "" {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}

	ac, err := save.DecodeAircraft(req.Aircraft)
	if err != nil {
		writeError(w, err)
		return
	}
	var st tower.State
	if err := s.with(func(ct *tower.ControlTower) error {
		if err := ct.AddAircraft(ac); err != nil {
			return err
		}
		st = ct.State()
		return nil
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleAircraftEmergency(declare bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callsign := chi.URLParam(r, "callsign")
		err := s.with(func(ct *tower.ControlTower) error {
			if declare {
				return ct.DeclareAircraftEmergency(callsign)
			}
			return ct.ClearAircraftEmergency(callsign)
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"callsign": callsign, "emergency": declare})
	}
}

func (s *Server) handleTerminalEmergency(declare bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number, err := strconv.Atoi(chi.URLParam(r, "number"))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "terminal number must be an integer")
			return
		}
		err = s.with(func(ct *tower.ControlTower) error {
			if declare {
				return ct.DeclareTerminalEmergency(number)
			}
			return ct.ClearTerminalEmergency(number)
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"terminal": number, "emergency": declare})
	}
}

// handleLoading returns the loading registry as a JSON object from
// callsign to remaining ticks, with keys in callsign order.
func (s *Server) handleLoading(w http.ResponseWriter, r *http.Request) {
	m := orderedmap.New()
	for _, e := range s.State().Loading {
		m.Set(e.Callsign, e.Remaining)
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	var tick int64
	if err := s.with(func(ct *tower.ControlTower) error {
		tick = ct.TicksElapsed()
		return save.WriteCheckpoint(&buf, ct)
	}); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="tower-%d.ckpt"`, tick))
	w.Write(buf.Bytes())
}

type serverStats struct {
	Uptime           string  `json:"uptime"`
	TicksElapsed     int64   `json:"ticks_elapsed"`
	Paused           bool    `json:"paused"`
	HistoryLen       int     `json:"history_len"`
	CPUUsage         int     `json:"cpu_usage"`
	AllocMemory      uint64  `json:"alloc_mb"`
	TotalAllocMemory uint64  `json:"total_alloc_mb"`
	SysMemory        uint64  `json:"sys_mb"`
	HostMemoryUsed   float64 `json:"host_memory_used_percent"`
	NumGC            uint32  `json:"num_gc"`
	NumGoRoutines    int     `json:"goroutines"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := serverStats{
		Uptime:           time.Since(s.start).Round(time.Second).String(),
		TicksElapsed:     s.State().TicksElapsed,
		Paused:           s.Paused(),
		HistoryLen:       s.history.Len(),
		AllocMemory:      m.Alloc / (1024 * 1024),
		TotalAllocMemory: m.TotalAlloc / (1024 * 1024),
		SysMemory:        m.Sys / (1024 * 1024),
		NumGC:            m.NumGC,
		NumGoRoutines:    runtime.NumGoroutine(),
	}
	// Usage since the previous call; these may be unavailable in
	// containers, in which case they are left zero.
	if usage, err := cpu.Percent(0, false); err == nil && len(usage) > 0 {
		stats.CPUUsage = int(math.Round(usage[0]))
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.HostMemoryUsed = vm.UsedPercent
	}

	writeJSON(w, http.StatusOK, stats)
}

///////////////////////////////////////////////////////////////////////////

// Run listens on addr and serves until ctx is cancelled. If tickInterval
// is positive, the tower is also advanced once per interval while not
// paused.
func (s *Server) Run(ctx context.Context, addr string, tickInterval time.Duration) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l, tickInterval)
}

// Serve is like Run but uses an existing listener, which it closes.
func (s *Server) Serve(ctx context.Context, l net.Listener, tickInterval time.Duration) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		s.lg.Infof("Listening on %s", l.Addr())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if tickInterval > 0 {
		eg.Go(func() error {
			t := time.NewTicker(tickInterval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
					if !s.Paused() {
						if _, err := s.Tick(1); err != nil {
							return err
						}
					}
				}
			}
		})
	}

	err := eg.Wait()
	s.lg.Info("server stopped", slog.Any("error", err))
	return err
}
