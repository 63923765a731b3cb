// pkg/tower/state.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package tower

import (
	"github.com/mmp/towersim/pkg/aircraft"
	"github.com/mmp/towersim/pkg/util"
)

// State is a self-contained snapshot of a tower. It shares nothing with
// the tower it was taken from and holds only plain exported data, so it
// can be copied, serialized, and handed to other goroutines freely.
type State struct {
	TicksElapsed  int64           `json:"ticks_elapsed"`
	NextTickLands bool            `json:"next_tick_lands"`
	Summary       string          `json:"summary"`
	Aircraft      []AircraftState `json:"aircraft"`
	Terminals     []TerminalState `json:"terminals"`
	LandingQueue  []string        `json:"landing_queue"`
	TakeoffQueue  []string        `json:"takeoff_queue"`
	Loading       []LoadingEntry  `json:"loading"`
}

type AircraftState struct {
	Callsign    string  `json:"callsign"`
	Model       string  `json:"model"`
	Type        string  `json:"type"`
	Class       string  `json:"class"`
	Task        string  `json:"task"`
	Tasks       string  `json:"tasks"`
	Fuel        float64 `json:"fuel"`
	FuelPercent int     `json:"fuel_percent"`
	Emergency   bool    `json:"emergency"`
	Cargo       int     `json:"cargo"`
	Occupancy   int     `json:"occupancy"`
	Weight      float64 `json:"weight"`
	Gate        int     `json:"gate,omitempty"`
}

type TerminalState struct {
	Number    int         `json:"number"`
	Class     string      `json:"class"`
	Emergency bool        `json:"emergency"`
	Occupancy int         `json:"occupancy"`
	Gates     []GateState `json:"gates"`
}

type GateState struct {
	Number   int    `json:"number"`
	Aircraft string `json:"aircraft,omitempty"`
}

// State returns a snapshot of the tower. The landing queue is listed in
// the order aircraft would be landed.
func (ct *ControlTower) State() State {
	s := State{
		TicksElapsed:  ct.ticksElapsed,
		NextTickLands: (ct.ticksElapsed+1)%2 == 0,
		Summary:       ct.String(),
		LandingQueue:  callsigns(ct.landing.Ordered()),
		TakeoffQueue:  callsigns(ct.takeoff.Ordered()),
		Loading:       ct.loading.Entries(),
	}

	gateOf := make(map[string]int)
	for _, t := range ct.terminals {
		ts := TerminalState{
			Number:    t.Number,
			Class:     t.Class.String(),
			Emergency: t.HasEmergency(),
			Occupancy: t.OccupancyLevel(),
		}
		for _, g := range t.Gates() {
			gs := GateState{Number: g.Number}
			if ac := g.Aircraft(); ac != nil {
				gs.Aircraft = ac.Callsign()
				gateOf[gs.Aircraft] = g.Number
			}
			ts.Gates = append(ts.Gates, gs)
		}
		s.Terminals = append(s.Terminals, ts)
	}

	s.Aircraft = util.MapSlice(ct.aircraft, func(ac aircraft.Aircraft) AircraftState {
		ch := ac.Characteristics()
		return AircraftState{
			Callsign:    ac.Callsign(),
			Model:       ch.Name,
			Type:        ch.Type.String(),
			Class:       ac.Class().String(),
			Task:        ac.TaskList().Current().String(),
			Tasks:       ac.TaskList().Encode(),
			Fuel:        ac.FuelAmount(),
			FuelPercent: ac.FuelPercentRemaining(),
			Emergency:   ac.HasEmergency(),
			Cargo:       ac.CargoAmount(),
			Occupancy:   ac.OccupancyLevel(),
			Weight:      ac.TotalWeight(),
			Gate:        gateOf[ac.Callsign()],
		}
	})

	return s
}
