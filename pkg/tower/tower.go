// pkg/tower/tower.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package tower implements the control tower: it owns the aircraft under
// its jurisdiction, the terminals and their gates, the runway queues and
// the loading registry, and advances all of them one tick at a time.
package tower

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mmp/towersim/pkg/aircraft"
	"github.com/mmp/towersim/pkg/ground"
	"github.com/mmp/towersim/pkg/log"
	"github.com/mmp/towersim/pkg/tasks"
)

// ControlTower is not safe for concurrent use; callers that share one
// must serialize access to it.
type ControlTower struct {
	ticksElapsed int64
	aircraft     []aircraft.Aircraft
	terminals    []*ground.Terminal

	landing *Queue
	takeoff *Queue
	loading *LoadingRegistry

	lg *log.Logger
}

func NewControlTower(lg *log.Logger) *ControlTower {
	return RestoreControlTower(0, nil, NewLandingQueue(), NewTakeoffQueue(), NewLoadingRegistry(), lg)
}

// RestoreControlTower returns a tower that resumes from previously saved
// state. The aircraft are assumed to already be parked at their gates;
// terminals are added afterwards with AddTerminal. Nil queues or registry
// are replaced with empty ones.
func RestoreControlTower(ticks int64, acs []aircraft.Aircraft, landing, takeoff *Queue,
	loading *LoadingRegistry, lg *log.Logger) *ControlTower {
	if landing == nil {
		landing = NewLandingQueue()
	}
	if takeoff == nil {
		takeoff = NewTakeoffQueue()
	}
	if loading == nil {
		loading = NewLoadingRegistry()
	}
	return &ControlTower{
		ticksElapsed: ticks,
		aircraft:     slices.Clone(acs),
		landing:      landing,
		takeoff:      takeoff,
		loading:      loading,
		lg:           lg,
	}
}

func (ct *ControlTower) AddTerminal(t *ground.Terminal) {
	ct.terminals = append(ct.terminals, t)
}

// Terminals returns the tower's terminals in the order they were added.
func (ct *ControlTower) Terminals() []*ground.Terminal {
	return slices.Clone(ct.terminals)
}

// ValidateCallsign checks that callsign can be written out and read back
// unambiguously: it must be non-empty, must not contain the separators used
// in saved state and must not be the token that marks an empty gate.
func ValidateCallsign(callsign string) error {
	switch {
	case callsign == "":
		return fmt.Errorf("empty callsign: %w", ErrInvalidCallsign)
	case strings.ContainsAny(callsign, ",:@"):
		return fmt.Errorf("%q: contains one of ',', ':' or '@': %w", callsign, ErrInvalidCallsign)
	case strings.ContainsAny(callsign, " \t\r\n"):
		return fmt.Errorf("%q: contains whitespace: %w", callsign, ErrInvalidCallsign)
	case callsign == ground.EmptyGateToken:
		return fmt.Errorf("%q: reserved for empty gates: %w", callsign, ErrInvalidCallsign)
	}
	return nil
}

// AddAircraft places ac under the tower's control. Aircraft that are
// waiting or loading need a gate right away; if none is available
// ErrNoSuitableGate is returned and the aircraft is not added.
func (ct *ControlTower) AddAircraft(ac aircraft.Aircraft) error {
	if err := ValidateCallsign(ac.Callsign()); err != nil {
		return err
	}
	if ct.AircraftByCallsign(ac.Callsign()) != nil {
		return fmt.Errorf("%s: %w", ac.Callsign(), ErrDuplicateAircraft)
	}

	if ty := ac.TaskList().Current().Type; ty == tasks.Wait || ty == tasks.Load {
		gate, ok := ct.FindUnoccupiedGate(ac)
		if !ok {
			return fmt.Errorf("%s: %w", ac.Callsign(), ErrNoSuitableGate)
		}
		ct.park(gate, ac)
	}

	ct.aircraft = append(ct.aircraft, ac)
	ct.PlaceAircraftInQueues(ac)
	ct.lg.Info("added aircraft", slog.String("callsign", ac.Callsign()),
		slog.String("task", ac.TaskList().Current().String()))
	return nil
}

// Aircraft returns all aircraft under the tower's control in the order
// they were added.
func (ct *ControlTower) Aircraft() []aircraft.Aircraft {
	return slices.Clone(ct.aircraft)
}

func (ct *ControlTower) AircraftByCallsign(callsign string) aircraft.Aircraft {
	if idx := slices.IndexFunc(ct.aircraft, func(ac aircraft.Aircraft) bool {
		return ac.Callsign() == callsign
	}); idx != -1 {
		return ct.aircraft[idx]
	}
	return nil
}

func (ct *ControlTower) TerminalByNumber(number int) *ground.Terminal {
	for _, t := range ct.terminals {
		if t.Number == number {
			return t
		}
	}
	return nil
}

// FindUnoccupiedGate returns the first free gate, in terminal order, of a
// terminal that serves ac's type and is not under emergency.
func (ct *ControlTower) FindUnoccupiedGate(ac aircraft.Aircraft) (*ground.Gate, bool) {
	ty := ac.Characteristics().Type
	for _, t := range ct.terminals {
		if t.HasEmergency() || !t.Accepts(ty) {
			continue
		}
		if g := t.FindUnoccupiedGate(); g != nil {
			return g, true
		}
	}
	return nil, false
}

// FindGateOfAircraft returns the gate where ac is parked, or nil.
func (ct *ControlTower) FindGateOfAircraft(ac aircraft.Aircraft) *ground.Gate {
	for _, t := range ct.terminals {
		for _, g := range t.Gates() {
			if parked := g.Aircraft(); parked != nil && parked.Callsign() == ac.Callsign() {
				return g
			}
		}
	}
	return nil
}

// park is only ever called with a gate that was just reported free, so
// failure means the tower's bookkeeping is broken.
func (ct *ControlTower) park(g *ground.Gate, ac aircraft.Aircraft) {
	if err := g.Park(ac); err != nil {
		ct.lg.Error("unable to park at unoccupied gate", slog.Any("error", err),
			slog.String("callsign", ac.Callsign()), slog.Int("gate", g.Number))
		panic(err)
	}
}

func (ct *ControlTower) TicksElapsed() int64 {
	return ct.ticksElapsed
}

func (ct *ControlTower) LandingQueue() *Queue {
	return ct.landing
}

func (ct *ControlTower) TakeoffQueue() *Queue {
	return ct.takeoff
}

func (ct *ControlTower) Loading() *LoadingRegistry {
	return ct.loading
}

// Tick advances the simulation by one step: aircraft update themselves
// and leave AWAY/WAIT, loading counts down, one runway movement is
// attempted and finally every aircraft is filed where its task says it
// belongs. Even ticks prefer a landing and fall back to a takeoff; odd
// ticks only try a takeoff.
func (ct *ControlTower) Tick() {
	ct.ticksElapsed++
	ct.lg.Debug("tick", slog.Int64("tick", ct.ticksElapsed))

	for _, ac := range ct.aircraft {
		ac.Tick()
		if ty := ac.TaskList().Current().Type; ty == tasks.Away || ty == tasks.Wait {
			ac.TaskList().Advance()
		}
	}

	ct.loading.Tick(ct.finishLoading)

	if ct.LandingPreferred() {
		if !ct.TryLand() {
			ct.TryTakeoff()
		}
	} else {
		ct.TryTakeoff()
	}

	ct.PlaceAllAircraftInQueues()
}

// LandingPreferred reports whether the current tick count gives landing
// traffic first use of the runway.
func (ct *ControlTower) LandingPreferred() bool {
	return ct.ticksElapsed%2 == 0
}

func (ct *ControlTower) finishLoading(ac aircraft.Aircraft) {
	if g := ct.FindGateOfAircraft(ac); g != nil {
		g.Release()
	} else {
		ct.lg.Warn("loaded aircraft was not at a gate", slog.String("callsign", ac.Callsign()))
	}
	ac.TaskList().Advance()
	ct.lg.Info("loading complete", slog.String("callsign", ac.Callsign()),
		slog.Int("occupancy", ac.OccupancyLevel()))
}

// TryLand lands the next aircraft in the landing queue if there is a free
// gate for it. The aircraft stays where it is in the queue otherwise.
func (ct *ControlTower) TryLand() bool {
	ac := ct.landing.PeekNext()
	if ac == nil {
		return false
	}
	gate, ok := ct.FindUnoccupiedGate(ac)
	if !ok {
		ct.lg.Debug("no gate for landing", slog.String("callsign", ac.Callsign()))
		return false
	}

	ct.landing.DequeueNext()
	ct.park(gate, ac)
	ac.Unload()
	ac.TaskList().Advance()
	ct.lg.Info("landed", slog.String("callsign", ac.Callsign()), slog.Int("gate", gate.Number))
	return true
}

// TryTakeoff departs the aircraft at the head of the takeoff queue, if
// any.
func (ct *ControlTower) TryTakeoff() {
	if ac := ct.takeoff.DequeueNext(); ac != nil {
		ac.TaskList().Advance()
		ct.lg.Info("took off", slog.String("callsign", ac.Callsign()))
	}
}

func (ct *ControlTower) PlaceAllAircraftInQueues() {
	for _, ac := range ct.aircraft {
		ct.PlaceAircraftInQueues(ac)
	}
}

// PlaceAircraftInQueues files ac with the landing queue, takeoff queue or
// loading registry according to its current task, unless it is already
// there.
func (ct *ControlTower) PlaceAircraftInQueues(ac aircraft.Aircraft) {
	switch ac.TaskList().Current().Type {
	case tasks.Land:
		if !ct.landing.Contains(ac) {
			ct.landing.Enqueue(ac)
		}
	case tasks.Takeoff:
		if !ct.takeoff.Contains(ac) {
			ct.takeoff.Enqueue(ac)
		}
	case tasks.Load:
		ct.loading.Register(ac)
	}
}

///////////////////////////////////////////////////////////////////////////
// Emergencies

func (ct *ControlTower) DeclareAircraftEmergency(callsign string) error {
	return ct.withAircraft(callsign, aircraft.Aircraft.DeclareEmergency)
}

func (ct *ControlTower) ClearAircraftEmergency(callsign string) error {
	return ct.withAircraft(callsign, aircraft.Aircraft.ClearEmergency)
}

func (ct *ControlTower) withAircraft(callsign string, f func(aircraft.Aircraft)) error {
	ac := ct.AircraftByCallsign(callsign)
	if ac == nil {
		return fmt.Errorf("%s: %w", callsign, ErrUnknownAircraft)
	}
	f(ac)
	ct.lg.Info("aircraft emergency", slog.String("callsign", callsign), slog.Bool("emergency", ac.HasEmergency()))
	return nil
}

func (ct *ControlTower) DeclareTerminalEmergency(number int) error {
	return ct.withTerminal(number, (*ground.Terminal).DeclareEmergency)
}

func (ct *ControlTower) ClearTerminalEmergency(number int) error {
	return ct.withTerminal(number, (*ground.Terminal).ClearEmergency)
}

func (ct *ControlTower) withTerminal(number int, f func(*ground.Terminal)) error {
	t := ct.TerminalByNumber(number)
	if t == nil {
		return fmt.Errorf("terminal %d: %w", number, ErrUnknownTerminal)
	}
	f(t)
	ct.lg.Info("terminal emergency", slog.Int("terminal", number), slog.Bool("emergency", t.HasEmergency()))
	return nil
}

func (ct *ControlTower) String() string {
	return fmt.Sprintf("ControlTower: %d terminals, %d total aircraft (%d LAND, %d TAKEOFF, %d LOAD)",
		len(ct.terminals), len(ct.aircraft), ct.landing.Len(), ct.takeoff.Len(), ct.loading.Len())
}
