// pkg/tower/helpers_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package tower

import (
	"testing"

	"github.com/mmp/towersim/pkg/aircraft"
	"github.com/mmp/towersim/pkg/ground"
	"github.com/mmp/towersim/pkg/tasks"

	"github.com/stretchr/testify/require"
)

var (
	away    = tasks.MakeTask(tasks.Away)
	land    = tasks.MakeTask(tasks.Land)
	wait    = tasks.MakeTask(tasks.Wait)
	takeoff = tasks.MakeTask(tasks.Takeoff)
)

func load(pct int) tasks.Task { return tasks.MakeLoadTask(pct) }

// makeAircraft returns an aircraft of the given model with the given fuel
// as a percentage of capacity.
func makeAircraft(t *testing.T, callsign, model string, fuelPercent float64, ts ...tasks.Task) aircraft.Aircraft {
	t.Helper()
	ch, ok := aircraft.LookupCharacteristics(model)
	require.True(t, ok, model)
	tl, err := tasks.NewTaskList(ts)
	require.NoError(t, err)
	ac, err := aircraft.New(callsign, ch, tl, ch.FuelCapacity*fuelPercent/100, 0)
	require.NoError(t, err)
	return ac
}

// landing returns a passenger airplane that is waiting to land.
func landing(t *testing.T, callsign string) aircraft.Aircraft {
	return makeAircraft(t, callsign, "AIRBUS_A320", 100, land, wait, load(50), takeoff, away)
}

func departing(t *testing.T, callsign string) aircraft.Aircraft {
	return makeAircraft(t, callsign, "AIRBUS_A320", 100, takeoff, away, land, load(50))
}

func makeTerminal(t *testing.T, class ground.Class, number int, gates ...int) *ground.Terminal {
	t.Helper()
	term := ground.NewTerminal(class, number)
	for _, g := range gates {
		require.NoError(t, term.AddGate(ground.NewGate(g)))
	}
	return term
}
