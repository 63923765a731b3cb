// pkg/aircraft/characteristics.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aircraft

import (
	"slices"
	"strconv"
)

// Type is the broad category of an aircraft; terminals only accept
// aircraft of their own type.
type Type int

const (
	Airplane Type = iota
	Helicopter
)

func (t Type) String() string {
	switch t {
	case Airplane:
		return "AIRPLANE"
	case Helicopter:
		return "HELICOPTER"
	default:
		return "Type(" + strconv.Itoa(int(t)) + ")"
	}
}

// Characteristics describes a particular aircraft model. Weights are in
// kilograms and fuel capacity in litres. Exactly one of PassengerCapacity
// and FreightCapacity is non-zero.
type Characteristics struct {
	Name              string
	Type              Type
	EmptyWeight       int
	MaxTakeoffWeight  int
	FuelCapacity      float64
	PassengerCapacity int
	FreightCapacity   int
}

var catalogue = []Characteristics{
	{Name: "AIRBUS_A320", Type: Airplane, EmptyWeight: 42600, MaxTakeoffWeight: 78000,
		FuelCapacity: 27200, PassengerCapacity: 150},
	{Name: "BOEING_747_8F", Type: Airplane, EmptyWeight: 197131, MaxTakeoffWeight: 447700,
		FuelCapacity: 226117, FreightCapacity: 137756},
	{Name: "BOEING_787", Type: Airplane, EmptyWeight: 119950, MaxTakeoffWeight: 227930,
		FuelCapacity: 126206, PassengerCapacity: 242},
	{Name: "FOKKER_100", Type: Airplane, EmptyWeight: 24375, MaxTakeoffWeight: 44450,
		FuelCapacity: 13365, PassengerCapacity: 97},
	{Name: "ROBINSON_R44", Type: Helicopter, EmptyWeight: 658, MaxTakeoffWeight: 1134,
		FuelCapacity: 190, PassengerCapacity: 4},
	{Name: "SIKORSKY_SKYCRANE", Type: Helicopter, EmptyWeight: 8724, MaxTakeoffWeight: 19050,
		FuelCapacity: 3328, FreightCapacity: 9100},
}

// LookupCharacteristics returns the characteristics of the named model.
func LookupCharacteristics(name string) (Characteristics, bool) {
	idx := slices.IndexFunc(catalogue, func(c Characteristics) bool { return c.Name == name })
	if idx == -1 {
		return Characteristics{}, false
	}
	return catalogue[idx], true
}

// Models returns the names of all known models in catalogue order.
func Models() []string {
	var names []string
	for _, c := range catalogue {
		names = append(names, c.Name)
	}
	return names
}

func (c Characteristics) String() string {
	return c.Name
}
