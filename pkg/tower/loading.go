// pkg/tower/loading.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package tower

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/mmp/towersim/pkg/aircraft"

	"github.com/iancoleman/orderedmap"
)

type loadingEntry struct {
	ac        aircraft.Aircraft
	remaining int
}

// LoadingEntry is an exported snapshot of one registry entry.
type LoadingEntry struct {
	Callsign  string `json:"callsign"`
	Remaining int    `json:"remaining"`
}

// LoadingRegistry tracks how many ticks each parked aircraft still needs
// to finish loading. Entries are kept sorted by callsign so that Tick's
// side effects happen in the same order on every run.
type LoadingRegistry struct {
	m *orderedmap.OrderedMap
}

func NewLoadingRegistry() *LoadingRegistry {
	return &LoadingRegistry{m: orderedmap.New()}
}

func (r *LoadingRegistry) get(callsign string) (*loadingEntry, bool) {
	v, ok := r.m.Get(callsign)
	if !ok {
		return nil, false
	}
	return v.(*loadingEntry), true
}

// Register adds ac with its current loading time unless it is already
// registered.
func (r *LoadingRegistry) Register(ac aircraft.Aircraft) {
	if r.Contains(ac) {
		return
	}
	r.Set(ac, ac.LoadingTime())
}

// Set registers ac with the given number of remaining ticks, replacing any
// existing entry.
func (r *LoadingRegistry) Set(ac aircraft.Aircraft, remaining int) {
	r.m.Set(ac.Callsign(), &loadingEntry{ac: ac, remaining: remaining})
	r.m.SortKeys(sort.Strings)
}

func (r *LoadingRegistry) Contains(ac aircraft.Aircraft) bool {
	_, ok := r.m.Get(ac.Callsign())
	return ok
}

// Remaining returns the ticks left for the aircraft with the given
// callsign.
func (r *LoadingRegistry) Remaining(callsign string) (int, bool) {
	if e, ok := r.get(callsign); ok {
		return e.remaining, true
	}
	return 0, false
}

func (r *LoadingRegistry) Len() int {
	return len(r.m.Keys())
}

// Aircraft returns the registered aircraft in callsign order.
func (r *LoadingRegistry) Aircraft() []aircraft.Aircraft {
	var acs []aircraft.Aircraft
	for _, cs := range r.m.Keys() {
		e, _ := r.get(cs)
		acs = append(acs, e.ac)
	}
	return acs
}

// Entries returns the registry contents in callsign order.
func (r *LoadingRegistry) Entries() []LoadingEntry {
	var entries []LoadingEntry
	for _, cs := range r.m.Keys() {
		e, _ := r.get(cs)
		entries = append(entries, LoadingEntry{Callsign: cs, Remaining: e.remaining})
	}
	return entries
}

// Tick counts every entry down by one. Aircraft that reach zero are
// removed and passed to done, in callsign order.
func (r *LoadingRegistry) Tick(done func(aircraft.Aircraft)) {
	// Keys() returns the map's own slice, which Delete rearranges.
	for _, cs := range slices.Clone(r.m.Keys()) {
		e, _ := r.get(cs)
		e.remaining--
		if e.remaining <= 0 {
			r.m.Delete(cs)
			done(e.ac)
		}
	}
}

// Encode returns the "LoadingAircraft:N" header followed, when N > 0, by
// a line of comma-separated callsign:ticks pairs.
func (r *LoadingRegistry) Encode() string {
	entries := r.Entries()
	s := fmt.Sprintf("LoadingAircraft:%d", len(entries))
	if len(entries) > 0 {
		var pairs []string
		for _, e := range entries {
			pairs = append(pairs, fmt.Sprintf("%s:%d", e.Callsign, e.Remaining))
		}
		s += "\n" + strings.Join(pairs, ",")
	}
	return s
}
