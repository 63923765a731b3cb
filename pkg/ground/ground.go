// pkg/ground/ground.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package ground holds the airport's terminals and the gates within them.
package ground

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mmp/towersim/pkg/aircraft"
)

// MaxGates is the largest number of gates a single terminal may have.
const MaxGates = 6

///////////////////////////////////////////////////////////////////////////
// Gate

// Gate is a numbered parking spot that holds at most one aircraft.
type Gate struct {
	Number   int
	aircraft aircraft.Aircraft
}

func NewGate(number int) *Gate {
	return &Gate{Number: number}
}

// Park places ac at the gate. It fails with ErrGateOccupied if another
// aircraft is already there.
func (g *Gate) Park(ac aircraft.Aircraft) error {
	if g.aircraft != nil {
		return fmt.Errorf("gate %d holds %s: %w", g.Number, g.aircraft.Callsign(), ErrGateOccupied)
	}
	g.aircraft = ac
	return nil
}

func (g *Gate) Release() {
	g.aircraft = nil
}

func (g *Gate) Occupied() bool {
	return g.aircraft != nil
}

// Aircraft returns the parked aircraft or nil if the gate is empty.
func (g *Gate) Aircraft() aircraft.Aircraft {
	return g.aircraft
}

// EmptyGateToken stands in for a callsign in the encoding of an
// unoccupied gate.
const EmptyGateToken = "empty"

func (g *Gate) Encode() string {
	if g.aircraft == nil {
		return strconv.Itoa(g.Number) + ":" + EmptyGateToken
	}
	return strconv.Itoa(g.Number) + ":" + g.aircraft.Callsign()
}

func (g *Gate) String() string {
	if g.aircraft == nil {
		return fmt.Sprintf("Gate %d [empty]", g.Number)
	}
	return fmt.Sprintf("Gate %d [%s]", g.Number, g.aircraft.Callsign())
}

///////////////////////////////////////////////////////////////////////////
// Terminal

// Class is the kind of terminal, which decides the type of aircraft it
// serves.
type Class int

const (
	AirplaneTerminal Class = iota
	HelicopterTerminal
)

func (c Class) String() string {
	switch c {
	case AirplaneTerminal:
		return "AirplaneTerminal"
	case HelicopterTerminal:
		return "HelicopterTerminal"
	default:
		return "Class(" + strconv.Itoa(int(c)) + ")"
	}
}

func ParseClass(s string) (Class, bool) {
	switch s {
	case "AirplaneTerminal":
		return AirplaneTerminal, true
	case "HelicopterTerminal":
		return HelicopterTerminal, true
	default:
		return 0, false
	}
}

// ClassFor returns the terminal class that serves aircraft of the given
// type.
func ClassFor(t aircraft.Type) Class {
	if t == aircraft.Helicopter {
		return HelicopterTerminal
	}
	return AirplaneTerminal
}

type Terminal struct {
	Class     Class
	Number    int
	emergency bool
	gates     []*Gate
}

func NewTerminal(class Class, number int) *Terminal {
	return &Terminal{Class: class, Number: number}
}

// AddGate appends g to the terminal's gates; it returns ErrTerminalFull
// once MaxGates have been added.
func (t *Terminal) AddGate(g *Gate) error {
	if len(t.gates) >= MaxGates {
		return fmt.Errorf("terminal %d: %w", t.Number, ErrTerminalFull)
	}
	t.gates = append(t.gates, g)
	return nil
}

// Gates returns the terminal's gates in the order they were added. The
// slice is a copy but the gates are shared.
func (t *Terminal) Gates() []*Gate {
	return append([]*Gate(nil), t.gates...)
}

// FindUnoccupiedGate returns the first empty gate, or nil if all of them
// are occupied.
func (t *Terminal) FindUnoccupiedGate() *Gate {
	for _, g := range t.gates {
		if !g.Occupied() {
			return g
		}
	}
	return nil
}

// Accepts reports whether aircraft of the given type may use this
// terminal's gates.
func (t *Terminal) Accepts(ty aircraft.Type) bool {
	return ClassFor(ty) == t.Class
}

func (t *Terminal) DeclareEmergency()  { t.emergency = true }
func (t *Terminal) ClearEmergency()    { t.emergency = false }
func (t *Terminal) HasEmergency() bool { return t.emergency }

// OccupancyLevel returns the percentage of gates that are occupied.
func (t *Terminal) OccupancyLevel() int {
	if len(t.gates) == 0 {
		return 0
	}
	n := 0
	for _, g := range t.gates {
		if g.Occupied() {
			n++
		}
	}
	return int(math.Round(float64(n) * 100 / float64(len(t.gates))))
}

// Encode returns the terminal header line followed by one line per gate.
func (t *Terminal) Encode() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:%d:%t:%d", t.Class, t.Number, t.emergency, len(t.gates))
	for _, g := range t.gates {
		sb.WriteByte('\n')
		sb.WriteString(g.Encode())
	}
	return sb.String()
}

func (t *Terminal) String() string {
	s := fmt.Sprintf("%s %d, %d gates", t.Class, t.Number, len(t.gates))
	if t.emergency {
		s += " (EMERGENCY)"
	}
	return s
}
