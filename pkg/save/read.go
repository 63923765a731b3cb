// pkg/save/read.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package save reads and writes a control tower's state. The text form
// has four independently validated sections (tick, aircraft, terminals
// with their gates, queues with the loading registry); a checkpoint
// bundles all four into a single compressed file.
package save

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/mmp/towersim/pkg/aircraft"
	"github.com/mmp/towersim/pkg/ground"
	"github.com/mmp/towersim/pkg/log"
	"github.com/mmp/towersim/pkg/tasks"
	"github.com/mmp/towersim/pkg/tower"
)

const (
	SectionTick      = "tick"
	SectionAircraft  = "aircraft"
	SectionTerminals = "terminals"
	SectionQueues    = "queues"
)

type lineReader struct {
	section string
	sc      *bufio.Scanner
	line    int
}

func newLineReader(section string, r io.Reader) *lineReader {
	return &lineReader{section: section, sc: bufio.NewScanner(r)}
}

// next returns the next line; ok is false at EOF.
func (lr *lineReader) next() (string, bool, error) {
	if !lr.sc.Scan() {
		if err := lr.sc.Err(); err != nil {
			return "", false, fmt.Errorf("%s: %w", lr.section, err)
		}
		return "", false, nil
	}
	lr.line++
	return lr.sc.Text(), true, nil
}

// mustNext is next for lines that have to be there.
func (lr *lineReader) mustNext(what string) (string, error) {
	line, ok, err := lr.next()
	if err != nil {
		return "", err
	} else if !ok {
		return "", &MalformedError{Section: lr.section, Line: lr.line + 1,
			Msg: fmt.Sprintf("expected %s, found end of input", what)}
	}
	return line, nil
}

func (lr *lineReader) errorf(msg string, args ...any) error {
	return &MalformedError{Section: lr.section, Line: lr.line, Msg: fmt.Sprintf(msg, args...)}
}

// annotate fills in the current position for errors from the Decode*
// functions, which do not know where their input came from.
func (lr *lineReader) annotate(err error) error {
	var me *MalformedError
	if errors.As(err, &me) && me.Line == 0 {
		me.Section = lr.section
		me.Line = lr.line
	}
	return err
}

// readCount reads a line holding a non-negative count.
func (lr *lineReader) readCount(what string) (int, error) {
	line, err := lr.mustNext(what)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, lr.errorf("%s %q is not an integer", what, line)
	} else if n < 0 {
		return 0, lr.errorf("%s %d is negative", what, n)
	}
	return n, nil
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// fleet indexes aircraft by callsign for resolving references.
type fleet map[string]aircraft.Aircraft

func makeFleet(acs []aircraft.Aircraft) fleet {
	f := make(fleet, len(acs))
	for _, ac := range acs {
		f[ac.Callsign()] = ac
	}
	return f
}

///////////////////////////////////////////////////////////////////////////
// Tick

// ReadTick reads the tick section: a single non-negative integer.
func ReadTick(r io.Reader) (int64, error) {
	lr := newLineReader(SectionTick, r)
	line, err := lr.mustNext("tick count")
	if err != nil {
		return 0, err
	}
	tick, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return 0, lr.errorf("tick count %q is not an integer", line)
	} else if tick < 0 {
		return 0, lr.errorf("tick count %d is negative", tick)
	}
	return tick, nil
}

///////////////////////////////////////////////////////////////////////////
// Aircraft

// ReadAircraft reads the aircraft section: a count followed by exactly
// that many encoded aircraft.
func ReadAircraft(r io.Reader) ([]aircraft.Aircraft, error) {
	lr := newLineReader(SectionAircraft, r)
	n, err := lr.readCount("aircraft count")
	if err != nil {
		return nil, err
	}

	var acs []aircraft.Aircraft
	seen := make(map[string]bool)
	for {
		line, ok, err := lr.next()
		if err != nil {
			return nil, err
		} else if !ok {
			break
		}

		ac, err := DecodeAircraft(line)
		if err != nil {
			return nil, lr.annotate(err)
		}
		if seen[ac.Callsign()] {
			return nil, lr.errorf("duplicate callsign %q", ac.Callsign())
		}
		seen[ac.Callsign()] = true
		acs = append(acs, ac)
	}

	if len(acs) != n {
		return nil, lr.errorf("expected %d aircraft, found %d", n, len(acs))
	}
	return acs, nil
}

// DecodeAircraft parses a single line of the form
// callsign:MODEL:tasks:fuel:emergency:cargo.
func DecodeAircraft(line string) (aircraft.Aircraft, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 6 {
		return nil, malformed(SectionAircraft, nil, "expected 6 colon-separated fields, found %d", len(fields))
	}
	callsign, model, taskStr, fuelStr, emergencyStr, cargoStr :=
		fields[0], fields[1], fields[2], fields[3], fields[4], fields[5]

	if err := tower.ValidateCallsign(callsign); err != nil {
		return nil, malformed(SectionAircraft, err, "bad callsign")
	}
	ch, ok := aircraft.LookupCharacteristics(model)
	if !ok {
		return nil, malformed(SectionAircraft, aircraft.ErrUnknownModel, "%s: %q", callsign, model)
	}
	fuel, err := strconv.ParseFloat(fuelStr, 64)
	if err != nil {
		return nil, malformed(SectionAircraft, nil, "%s: fuel amount %q is not a number", callsign, fuelStr)
	}
	cargo, err := strconv.Atoi(cargoStr)
	if err != nil {
		return nil, malformed(SectionAircraft, nil, "%s: cargo amount %q is not an integer", callsign, cargoStr)
	}
	tl, err := DecodeTaskList(taskStr)
	if err != nil {
		return nil, err
	}
	emergency, ok := parseBool(emergencyStr)
	if !ok {
		return nil, malformed(SectionAircraft, nil, "%s: emergency state %q is not true or false", callsign, emergencyStr)
	}

	ac, err := aircraft.New(callsign, ch, tl, fuel, cargo)
	if err != nil {
		return nil, malformed(SectionAircraft, err, "invalid aircraft")
	}
	if emergency {
		ac.DeclareEmergency()
	}
	return ac, nil
}

// DecodeTaskList parses a comma-separated list of tasks. The first task
// becomes the current one.
func DecodeTaskList(s string) (*tasks.TaskList, error) {
	var ts []tasks.Task
	for _, tok := range strings.Split(s, ",") {
		name, pct, hasPct := strings.Cut(tok, "@")
		ty, ok := tasks.ParseTaskType(name)
		if !ok {
			return nil, malformed(SectionAircraft, nil, "unknown task %q", tok)
		}
		if !hasPct {
			ts = append(ts, tasks.MakeTask(ty))
			continue
		}

		if ty != tasks.Load {
			return nil, malformed(SectionAircraft, nil, "load percentage given for %s task", ty)
		}
		if strings.Contains(pct, "@") {
			return nil, malformed(SectionAircraft, nil, "more than one '@' in task %q", tok)
		}
		n, err := strconv.Atoi(pct)
		if err != nil {
			return nil, malformed(SectionAircraft, nil, "load percentage %q is not an integer", pct)
		} else if n < 0 {
			return nil, malformed(SectionAircraft, nil, "load percentage %d is negative", n)
		}
		ts = append(ts, tasks.MakeLoadTask(n))
	}

	tl, err := tasks.NewTaskList(ts)
	if err != nil {
		return nil, malformed(SectionAircraft, err, "invalid task list %q", s)
	}
	return tl, nil
}

///////////////////////////////////////////////////////////////////////////
// Terminals

// ReadTerminals reads the terminals section, parking aircraft from acs at
// the gates that name them.
func ReadTerminals(r io.Reader, acs []aircraft.Aircraft) ([]*ground.Terminal, error) {
	lr := newLineReader(SectionTerminals, r)
	n, err := lr.readCount("terminal count")
	if err != nil {
		return nil, err
	}

	f := makeFleet(acs)
	parkedAt := make(map[string]int)
	var terminals []*ground.Terminal
	for {
		line, ok, err := lr.next()
		if err != nil {
			return nil, err
		} else if !ok {
			break
		}

		term, ngates, err := decodeTerminalHeader(line)
		if err != nil {
			return nil, lr.annotate(err)
		}
		if slices.ContainsFunc(terminals, func(t *ground.Terminal) bool { return t.Number == term.Number }) {
			return nil, lr.errorf("duplicate terminal number %d", term.Number)
		}

		for range ngates {
			line, err := lr.mustNext("gate")
			if err != nil {
				return nil, err
			}
			g, err := f.decodeGate(line)
			if err != nil {
				return nil, lr.annotate(err)
			}
			if slices.ContainsFunc(term.Gates(), func(o *ground.Gate) bool { return o.Number == g.Number }) {
				return nil, lr.errorf("duplicate gate number %d in terminal %d", g.Number, term.Number)
			}
			if ac := g.Aircraft(); ac != nil {
				if other, ok := parkedAt[ac.Callsign()]; ok {
					return nil, lr.errorf("%s is already parked at gate %d", ac.Callsign(), other)
				}
				parkedAt[ac.Callsign()] = g.Number
			}
			if err := term.AddGate(g); err != nil {
				return nil, lr.annotate(malformed(SectionTerminals, err, "unable to add gate"))
			}
		}
		terminals = append(terminals, term)
	}

	if len(terminals) != n {
		return nil, lr.errorf("expected %d terminals, found %d", n, len(terminals))
	}
	return terminals, nil
}

func decodeTerminalHeader(line string) (*ground.Terminal, int, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 4 {
		return nil, 0, malformed(SectionTerminals, nil, "expected 4 colon-separated fields, found %d", len(fields))
	}

	class, ok := ground.ParseClass(fields[0])
	if !ok {
		return nil, 0, malformed(SectionTerminals, nil, "unknown terminal type %q", fields[0])
	}
	number, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, 0, malformed(SectionTerminals, nil, "terminal number %q is not an integer", fields[1])
	} else if number < 1 {
		return nil, 0, malformed(SectionTerminals, nil, "terminal number %d is less than 1", number)
	}
	emergency, ok := parseBool(fields[2])
	if !ok {
		return nil, 0, malformed(SectionTerminals, nil, "emergency state %q is not true or false", fields[2])
	}
	ngates, err := strconv.Atoi(fields[3])
	if err != nil {
		return nil, 0, malformed(SectionTerminals, nil, "gate count %q is not an integer", fields[3])
	} else if ngates < 0 || ngates > ground.MaxGates {
		return nil, 0, malformed(SectionTerminals, nil, "gate count %d not in [0, %d]", ngates, ground.MaxGates)
	}

	term := ground.NewTerminal(class, number)
	if emergency {
		term.DeclareEmergency()
	}
	return term, ngates, nil
}

// DecodeGate parses a gate line "number:callsign", where the callsign is
// either "empty" or names one of acs.
func DecodeGate(line string, acs []aircraft.Aircraft) (*ground.Gate, error) {
	return makeFleet(acs).decodeGate(line)
}

func (f fleet) decodeGate(line string) (*ground.Gate, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 2 {
		return nil, malformed(SectionTerminals, nil, "expected 2 colon-separated gate fields, found %d", len(fields))
	}
	number, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, malformed(SectionTerminals, nil, "gate number %q is not an integer", fields[0])
	} else if number < 1 {
		return nil, malformed(SectionTerminals, nil, "gate number %d is less than 1", number)
	}

	g := ground.NewGate(number)
	if fields[1] != ground.EmptyGateToken {
		ac, ok := f[fields[1]]
		if !ok {
			return nil, malformed(SectionTerminals, nil, "gate %d: unknown aircraft %q", number, fields[1])
		}
		if err := g.Park(ac); err != nil {
			return nil, malformed(SectionTerminals, err, "gate %d", number)
		}
	}
	return g, nil
}

///////////////////////////////////////////////////////////////////////////
// Queues

// ReadQueues reads the takeoff queue, landing queue and loading registry
// blocks, in that order. Every callsign must name one of acs.
func ReadQueues(r io.Reader, acs []aircraft.Aircraft) (takeoff, landing *tower.Queue,
	loading *tower.LoadingRegistry, err error) {
	lr := newLineReader(SectionQueues, r)
	f := makeFleet(acs)

	takeoff = tower.NewTakeoffQueue()
	if err = f.readQueue(lr, takeoff); err != nil {
		return nil, nil, nil, err
	}
	landing = tower.NewLandingQueue()
	if err = f.readQueue(lr, landing); err != nil {
		return nil, nil, nil, err
	}
	if loading, err = f.readLoading(lr); err != nil {
		return nil, nil, nil, err
	}

	// Anything after the last block is an error rather than silently
	// ignored.
	for {
		line, ok, err := lr.next()
		if err != nil {
			return nil, nil, nil, err
		} else if !ok {
			break
		} else if line != "" {
			return nil, nil, nil, lr.errorf("unexpected trailing input %q", line)
		}
	}
	return
}

// readBlock reads "name:N" and, when N > 0, the line that follows it,
// returning that line's comma-separated items.
func (lr *lineReader) readBlock(name string) ([]string, error) {
	line, err := lr.mustNext(name + " header")
	if err != nil {
		return nil, err
	}
	fields := strings.Split(line, ":")
	if len(fields) != 2 {
		return nil, lr.errorf("expected %s:count, found %q", name, line)
	} else if fields[0] != name {
		return nil, lr.errorf("expected %s block, found %q", name, fields[0])
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, lr.errorf("%s count %q is not an integer", name, fields[1])
	} else if n < 0 {
		return nil, lr.errorf("%s count %d is negative", name, n)
	} else if n == 0 {
		return nil, nil
	}

	line, err = lr.mustNext(name + " entries")
	if err != nil {
		return nil, err
	}
	items := strings.Split(line, ",")
	if len(items) != n {
		return nil, lr.errorf("%s: expected %d entries, found %d", name, n, len(items))
	}
	return items, nil
}

func (f fleet) readQueue(lr *lineReader, q *tower.Queue) error {
	items, err := lr.readBlock(q.Name())
	if err != nil {
		return err
	}
	for _, cs := range items {
		ac, ok := f[cs]
		if !ok {
			return lr.errorf("%s: unknown aircraft %q", q.Name(), cs)
		} else if q.Contains(ac) {
			return lr.errorf("%s: %s listed more than once", q.Name(), cs)
		}
		q.Enqueue(ac)
	}
	return nil
}

const loadingBlockName = "LoadingAircraft"

func (f fleet) readLoading(lr *lineReader) (*tower.LoadingRegistry, error) {
	items, err := lr.readBlock(loadingBlockName)
	if err != nil {
		return nil, err
	}

	reg := tower.NewLoadingRegistry()
	for _, item := range items {
		fields := strings.Split(item, ":")
		if len(fields) != 2 {
			return nil, lr.errorf("expected callsign:ticks, found %q", item)
		}
		ticks, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, lr.errorf("%s: remaining ticks %q is not an integer", fields[0], fields[1])
		} else if ticks < 1 {
			return nil, lr.errorf("%s: remaining ticks %d is less than 1", fields[0], ticks)
		}
		ac, ok := f[fields[0]]
		if !ok {
			return nil, lr.errorf("%s: unknown aircraft %q", loadingBlockName, fields[0])
		} else if reg.Contains(ac) {
			return nil, lr.errorf("%s: %s listed more than once", loadingBlockName, fields[0])
		}
		reg.Set(ac, ticks)
	}
	return reg, nil
}

///////////////////////////////////////////////////////////////////////////

// LoadControlTower reads all four sections and assembles a tower from
// them. Nothing is returned unless every section is valid.
func LoadControlTower(tick, acs, queues, terminals io.Reader, lg *log.Logger) (*tower.ControlTower, error) {
	ticks, err := ReadTick(tick)
	if err != nil {
		return nil, err
	}
	all, err := ReadAircraft(acs)
	if err != nil {
		return nil, err
	}
	terms, err := ReadTerminals(terminals, all)
	if err != nil {
		return nil, err
	}
	takeoff, landing, loading, err := ReadQueues(queues, all)
	if err != nil {
		return nil, err
	}

	ct := tower.RestoreControlTower(ticks, all, landing, takeoff, loading, lg)
	for _, t := range terms {
		ct.AddTerminal(t)
	}
	lg.Infof("restored tower at tick %d: %s", ticks, ct)
	return ct, nil
}
