// pkg/tower/queue.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package tower

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mmp/towersim/pkg/aircraft"
	"github.com/mmp/towersim/pkg/util"
)

// Policy decides which member of a queue is served next.
type Policy interface {
	// Select returns the index in members (which are in insertion order)
	// of the aircraft to serve next, or -1 if members is empty.
	Select(members []aircraft.Aircraft) int
}

// FIFOPolicy always serves the earliest-inserted aircraft.
type FIFOPolicy struct{}

func (FIFOPolicy) Select(members []aircraft.Aircraft) int {
	if len(members) == 0 {
		return -1
	}
	return 0
}

// LowFuelPercent is the fuel level at or below which an aircraft gets
// landing priority over non-emergency traffic.
const LowFuelPercent = 20

// UrgencyPolicy serves aircraft in emergency first, then those low on
// fuel, then passenger aircraft, then everyone else; ties go to the
// earliest inserted. Nothing is cached, so changes in fuel or emergency
// status take effect on the next call.
type UrgencyPolicy struct{}

func (UrgencyPolicy) Select(members []aircraft.Aircraft) int {
	if len(members) == 0 {
		return -1
	}
	tiers := []func(aircraft.Aircraft) bool{
		func(ac aircraft.Aircraft) bool { return ac.HasEmergency() },
		func(ac aircraft.Aircraft) bool { return ac.FuelPercentRemaining() <= LowFuelPercent },
		func(ac aircraft.Aircraft) bool { return ac.Class() == aircraft.Passenger },
	}
	for _, pred := range tiers {
		if idx := slices.IndexFunc(members, pred); idx != -1 {
			return idx
		}
	}
	return 0
}

// Queue is an ordered list of aircraft waiting for the runway. It does not
// own the aircraft it holds.
type Queue struct {
	name    string
	policy  Policy
	members []aircraft.Aircraft
}

func NewQueue(name string, policy Policy) *Queue {
	return &Queue{name: name, policy: policy}
}

func NewTakeoffQueue() *Queue {
	return NewQueue("TakeoffQueue", FIFOPolicy{})
}

func NewLandingQueue() *Queue {
	return NewQueue("LandingQueue", UrgencyPolicy{})
}

func (q *Queue) Name() string {
	return q.name
}

// Enqueue adds ac at the tail of the queue. A nil aircraft is ignored.
func (q *Queue) Enqueue(ac aircraft.Aircraft) {
	if ac == nil {
		return
	}
	q.members = append(q.members, ac)
}

// PeekNext returns the aircraft that DequeueNext would return, or nil if
// the queue is empty.
func (q *Queue) PeekNext() aircraft.Aircraft {
	if idx := q.policy.Select(q.members); idx != -1 {
		return q.members[idx]
	}
	return nil
}

// DequeueNext removes and returns the next aircraft to be served, or nil
// if the queue is empty.
func (q *Queue) DequeueNext() aircraft.Aircraft {
	idx := q.policy.Select(q.members)
	if idx == -1 {
		return nil
	}
	ac := q.members[idx]
	q.members = util.DeleteSliceElement(q.members, idx)
	return ac
}

// Ordered returns all members in the order DequeueNext would yield them.
// The queue itself is not modified.
func (q *Queue) Ordered() []aircraft.Aircraft {
	work := slices.Clone(q.members)
	ordered := make([]aircraft.Aircraft, 0, len(work))
	for len(work) > 0 {
		idx := q.policy.Select(work)
		ordered = append(ordered, work[idx])
		work = slices.Delete(work, idx, idx+1)
	}
	return ordered
}

// Members returns the members in insertion order.
func (q *Queue) Members() []aircraft.Aircraft {
	return slices.Clone(q.members)
}

// Contains reports whether an aircraft with ac's callsign is queued.
func (q *Queue) Contains(ac aircraft.Aircraft) bool {
	return ac != nil && q.ContainsCallsign(ac.Callsign())
}

func (q *Queue) ContainsCallsign(callsign string) bool {
	return slices.ContainsFunc(q.members, func(m aircraft.Aircraft) bool { return m.Callsign() == callsign })
}

func (q *Queue) Len() int {
	return len(q.members)
}

func callsigns(acs []aircraft.Aircraft) []string {
	return util.MapSlice(acs, func(ac aircraft.Aircraft) string { return ac.Callsign() })
}

func (q *Queue) String() string {
	return fmt.Sprintf("%s [%s]", q.name, strings.Join(callsigns(q.Ordered()), ", "))
}

// Encode returns the "Name:N" header, followed when N > 0 by a second line
// with the callsigns in insertion order so that a decoded queue serves
// aircraft in exactly the same order.
func (q *Queue) Encode() string {
	s := fmt.Sprintf("%s:%d", q.name, len(q.members))
	if len(q.members) > 0 {
		s += "\n" + strings.Join(callsigns(q.members), ",")
	}
	return s
}
