// pkg/aircraft/aircraft.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package aircraft models the passenger and freight aircraft that the
// tower schedules. The scheduler only relies on the Aircraft interface;
// the fuel and cargo arithmetic stays in here.
package aircraft

import (
	"fmt"
	"math"

	"github.com/mmp/towersim/pkg/tasks"
	"github.com/mmp/towersim/pkg/util"
)

// Class distinguishes passenger-carrying aircraft from freighters; it is
// used by the landing queue to break ties.
type Class int

const (
	Passenger Class = iota
	Freight
)

func (c Class) String() string {
	if c == Passenger {
		return "passenger"
	}
	return "freight"
}

const (
	// Weight of a single passenger including baggage, kg.
	PassengerWeight = 90
	// Weight of one litre of fuel, kg.
	FuelDensity = 0.8
	// Fraction of the fuel capacity burnt per tick while away.
	AwayFuelBurn = 0.1
)

type Aircraft interface {
	Callsign() string
	Characteristics() Characteristics
	TaskList() *tasks.TaskList

	FuelAmount() float64
	// FuelPercentRemaining returns the fuel on board as a rounded
	// percentage of capacity, in [0, 100].
	FuelPercentRemaining() int

	HasEmergency() bool
	DeclareEmergency()
	ClearEmergency()

	Class() Class
	// CargoAmount returns passengers on board for passenger aircraft and
	// kilograms of freight for freight aircraft.
	CargoAmount() int
	OccupancyLevel() int
	// LoadingTime returns the number of ticks needed to complete the
	// current load task.
	LoadingTime() int
	Unload()

	TotalWeight() float64

	// Tick updates fuel and cargo for one unit of time according to the
	// current task. It does not advance the task list.
	Tick()

	Encode() string
	String() string
}

// New returns a passenger or freight aircraft depending on the model's
// capacities; cargo is interpreted accordingly.
func New(callsign string, ch Characteristics, tl *tasks.TaskList, fuel float64, cargo int) (Aircraft, error) {
	if ch.PassengerCapacity > 0 {
		return NewPassengerAircraft(callsign, ch, tl, fuel, cargo)
	}
	return NewFreightAircraft(callsign, ch, tl, fuel, cargo)
}

///////////////////////////////////////////////////////////////////////////
// common

type base struct {
	callsign  string
	ch        Characteristics
	tasks     *tasks.TaskList
	fuel      float64
	emergency bool
}

func makeBase(callsign string, ch Characteristics, tl *tasks.TaskList, fuel float64) (base, error) {
	if fuel < 0 || fuel > ch.FuelCapacity || math.IsNaN(fuel) {
		return base{}, fmt.Errorf("%s: %.2f litres for capacity %.0f: %w", callsign, fuel,
			ch.FuelCapacity, ErrInvalidFuelAmount)
	}
	return base{callsign: callsign, ch: ch, tasks: tl, fuel: fuel}, nil
}

func (b *base) Callsign() string                 { return b.callsign }
func (b *base) Characteristics() Characteristics { return b.ch }
func (b *base) TaskList() *tasks.TaskList        { return b.tasks }
func (b *base) FuelAmount() float64              { return b.fuel }
func (b *base) HasEmergency() bool               { return b.emergency }
func (b *base) DeclareEmergency()                { b.emergency = true }
func (b *base) ClearEmergency()                  { b.emergency = false }

func (b *base) FuelPercentRemaining() int {
	return int(math.Round(b.fuel * 100 / b.ch.FuelCapacity))
}

func (b *base) baseWeight() float64 {
	return float64(b.ch.EmptyWeight) + b.fuel*FuelDensity
}

// tickFuel burns fuel while away and refuels in equal parts over the
// loading time while loading.
func (b *base) tickFuel(loadingTime int) {
	switch b.tasks.Current().Type {
	case tasks.Away:
		b.fuel = max(0, b.fuel-AwayFuelBurn*b.ch.FuelCapacity)
	case tasks.Load:
		b.fuel = util.Clamp(b.fuel+b.ch.FuelCapacity/float64(loadingTime), 0, b.ch.FuelCapacity)
	}
}

func (b *base) encode() string {
	return fmt.Sprintf("%s:%s:%s:%.2f:%t", b.callsign, b.ch.Name, b.tasks.Encode(), b.fuel, b.emergency)
}

func (b *base) String() string {
	s := fmt.Sprintf("%s %s %s %s", b.ch.Type, b.callsign, b.ch.Name, b.tasks.Current().Type)
	if b.emergency {
		s += " (EMERGENCY)"
	}
	return s
}

// amountToLoad returns how much of capacity the current load task asks
// for.
func (b *base) amountToLoad(capacity int) int {
	return int(math.Round(float64(capacity) * float64(b.tasks.Current().LoadPercent) / 100))
}

func percent(amount, capacity int) int {
	if capacity == 0 {
		return 0
	}
	return int(math.Round(float64(amount) * 100 / float64(capacity)))
}

///////////////////////////////////////////////////////////////////////////
// PassengerAircraft

type PassengerAircraft struct {
	base
	passengers int
}

func NewPassengerAircraft(callsign string, ch Characteristics, tl *tasks.TaskList, fuel float64,
	passengers int) (*PassengerAircraft, error) {
	b, err := makeBase(callsign, ch, tl, fuel)
	if err != nil {
		return nil, err
	}
	if passengers < 0 || passengers > ch.PassengerCapacity {
		return nil, fmt.Errorf("%s: %d passengers for capacity %d: %w", callsign, passengers,
			ch.PassengerCapacity, ErrInvalidCargoAmount)
	}
	return &PassengerAircraft{base: b, passengers: passengers}, nil
}

func (p *PassengerAircraft) Class() Class        { return Passenger }
func (p *PassengerAircraft) CargoAmount() int    { return p.passengers }
func (p *PassengerAircraft) Unload()             { p.passengers = 0 }
func (p *PassengerAircraft) OccupancyLevel() int { return percent(p.passengers, p.ch.PassengerCapacity) }

func (p *PassengerAircraft) TotalWeight() float64 {
	return p.baseWeight() + float64(p.passengers*PassengerWeight)
}

// LoadingTime is the rounded base-10 logarithm of the number of
// passengers to board, but never less than one tick.
func (p *PassengerAircraft) LoadingTime() int {
	n := p.amountToLoad(p.ch.PassengerCapacity)
	if n <= 1 {
		return 1
	}
	return max(1, int(math.Round(math.Log10(float64(n)))))
}

func (p *PassengerAircraft) Tick() {
	lt := p.LoadingTime()
	p.tickFuel(lt)
	if p.tasks.Current().Type == tasks.Load {
		perTick := int(math.Round(float64(p.amountToLoad(p.ch.PassengerCapacity)) / float64(lt)))
		p.passengers = util.Clamp(p.passengers+perTick, 0, p.ch.PassengerCapacity)
	}
}

func (p *PassengerAircraft) Encode() string {
	return fmt.Sprintf("%s:%d", p.encode(), p.passengers)
}

///////////////////////////////////////////////////////////////////////////
// FreightAircraft

type FreightAircraft struct {
	base
	freight int
}

func NewFreightAircraft(callsign string, ch Characteristics, tl *tasks.TaskList, fuel float64,
	freight int) (*FreightAircraft, error) {
	b, err := makeBase(callsign, ch, tl, fuel)
	if err != nil {
		return nil, err
	}
	if freight < 0 || freight > ch.FreightCapacity {
		return nil, fmt.Errorf("%s: %d kg of freight for capacity %d: %w", callsign, freight,
			ch.FreightCapacity, ErrInvalidCargoAmount)
	}
	return &FreightAircraft{base: b, freight: freight}, nil
}

func (f *FreightAircraft) Class() Class        { return Freight }
func (f *FreightAircraft) CargoAmount() int    { return f.freight }
func (f *FreightAircraft) Unload()             { f.freight = 0 }
func (f *FreightAircraft) OccupancyLevel() int { return percent(f.freight, f.ch.FreightCapacity) }

func (f *FreightAircraft) TotalWeight() float64 {
	return f.baseWeight() + float64(f.freight)
}

func (f *FreightAircraft) LoadingTime() int {
	switch n := f.amountToLoad(f.ch.FreightCapacity); {
	case n < 1000:
		return 1
	case n <= 50000:
		return 2
	default:
		return 3
	}
}

func (f *FreightAircraft) Tick() {
	lt := f.LoadingTime()
	f.tickFuel(lt)
	if f.tasks.Current().Type == tasks.Load {
		perTick := int(math.Round(float64(f.amountToLoad(f.ch.FreightCapacity)) / float64(lt)))
		f.freight = util.Clamp(f.freight+perTick, 0, f.ch.FreightCapacity)
	}
}

func (f *FreightAircraft) Encode() string {
	return fmt.Sprintf("%s:%d", f.encode(), f.freight)
}
