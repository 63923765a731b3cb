// pkg/save/save_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package save

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/mmp/towersim/pkg/aircraft"
	"github.com/mmp/towersim/pkg/ground"
	"github.com/mmp/towersim/pkg/log"
	"github.com/mmp/towersim/pkg/tasks"
	"github.com/mmp/towersim/pkg/tower"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	qfa481 = "QFA481:AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@60,TAKEOFF,AWAY:10000.00:false:132"
	utd302 = "UTD302:BOEING_787:WAIT,LOAD@100,TAKEOFF,AWAY,AWAY,AWAY,LAND:10000.00:false:0"
	ups119 = "UPS119:BOEING_747_8F:WAIT,LOAD@50,TAKEOFF,AWAY,AWAY,AWAY,LAND:4000.00:false:0"
	vhbfk  = "VH-BFK:ROBINSON_R44:LAND,WAIT,LOAD@75,TAKEOFF,AWAY,AWAY:40.00:false:4"

	tickText      = "5\n"
	aircraftText  = "4\n" + qfa481 + "\n" + utd302 + "\n" + ups119 + "\n" + vhbfk + "\n"
	terminalsText = `2
AirplaneTerminal:1:false:3
1:UTD302
2:UPS119
3:empty
HelicopterTerminal:2:false:1
4:empty
`
	queuesText = `TakeoffQueue:0
LandingQueue:1
VH-BFK
LoadingAircraft:0
`
)

func loadFixture(t *testing.T) *tower.ControlTower {
	t.Helper()
	ct, err := LoadControlTower(strings.NewReader(tickText), strings.NewReader(aircraftText),
		strings.NewReader(queuesText), strings.NewReader(terminalsText), log.Discard())
	require.NoError(t, err)
	return ct
}

func fixtureAircraft(t *testing.T) []aircraft.Aircraft {
	t.Helper()
	acs, err := ReadAircraft(strings.NewReader(aircraftText))
	require.NoError(t, err)
	return acs
}

func encodeAll(t *testing.T, ct *tower.ControlTower) [4]string {
	t.Helper()
	var tick, acs, terms, queues strings.Builder
	require.NoError(t, WriteControlTower(ct, &tick, &acs, &terms, &queues))
	return [4]string{tick.String(), acs.String(), terms.String(), queues.String()}
}

// withoutFuel drops the fields that lose precision in the two-decimal text
// encoding of fuel.
func withoutFuel(s tower.State) tower.State {
	for i := range s.Aircraft {
		s.Aircraft[i].Fuel = 0
		s.Aircraft[i].Weight = 0
	}
	return s
}

func requireMalformed(t *testing.T, err error, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	assert.True(t, errors.Is(err, ErrMalformedSave), "%v", err)
	var me *MalformedError
	assert.True(t, errors.As(err, &me), "%v", err)
}

func TestReadTick(t *testing.T) {
	n, err := ReadTick(strings.NewReader("42\n"))
	require.NoError(t, err)
	assert.EqualValues(t, 42, n)

	n, err = ReadTick(strings.NewReader("0"))
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	for _, s := range []string{"", "-1", "abc", "12.5", " 7"} {
		_, err := ReadTick(strings.NewReader(s))
		requireMalformed(t, err, "%q", s)
	}
}

func TestDecodeAircraft(t *testing.T) {
	ac, err := DecodeAircraft(qfa481)
	require.NoError(t, err)
	assert.Equal(t, "QFA481", ac.Callsign())
	assert.Equal(t, aircraft.Passenger, ac.Class())
	assert.Equal(t, 132, ac.CargoAmount())
	assert.Equal(t, 10000.0, ac.FuelAmount())
	assert.Equal(t, 8, ac.TaskList().Len())
	assert.Equal(t, tasks.Away, ac.TaskList().Current().Type)
	assert.Equal(t, qfa481, ac.Encode())

	ac, err = DecodeAircraft(ups119)
	require.NoError(t, err)
	assert.Equal(t, aircraft.Freight, ac.Class())

	ac, err = DecodeAircraft(strings.Replace(vhbfk, "false", "true", 1))
	require.NoError(t, err)
	assert.True(t, ac.HasEmergency())
}

func TestDecodeMalformedAircraft(t *testing.T) {
	for _, line := range []string{
		"",
		qfa481 + ":extra",
		strings.TrimSuffix(qfa481, ":132"),
		"QFA481:AIRBUS_A321:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@60,TAKEOFF,AWAY:10000.00:false:132",
		"QFA481:AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@60,TAKEOFF,AWAY:2720X:false:132",
		"QFA481:AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@60,TAKEOFF,AWAY:-1000:false:132",
		"QFA481:AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@60,TAKEOFF,AWAY:300000:false:132",
		"QFA481:AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@60,TAKEOFF,AWAY:NaN:false:132",
		"QFA481:AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@60,TAKEOFF,AWAY:10000.00:false:100x",
		"QFA481:AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@60,TAKEOFF,AWAY:10000.00:false:500",
		"QFA481:AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@60,TAKEOFF,AWAY:10000.00:false:-100",
		"QFA481:AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@60,TAKEOFF,AWAY:10000.00:maybe:132",
		"QFA481:AIRBUS_A320:Land,AWAY,LAND,WAIT,WAIT,LOAD@60,TAKEOFF,AWAY:10000.00:false:132",
		"QFA481:AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@35.4,TAKEOFF,AWAY:10000.00:false:132",
		"QFA481:AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@-50,TAKEOFF,AWAY:10000.00:false:132",
		"QFA481:AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@@100,TAKEOFF,AWAY:10000.00:false:132",
		"QFA481:AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@,TAKEOFF,AWAY:10000.00:false:132",
		"QFA481:AIRBUS_A320:AWAY,AWAY,LAND,WAIT@3,WAIT,LOAD@60,TAKEOFF,AWAY:10000.00:false:132",
		"QFA481:AIRBUS_A320:WAIT,LAND,WAIT,LOAD@60,TAKEOFF,AWAY:10000.00:false:132",
		"QFA481:AIRBUS_A320::10000.00:false:132",
		":AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@60,TAKEOFF,AWAY:10000.00:false:132",
		"QF,481:AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@60,TAKEOFF,AWAY:10000.00:false:132",
		"QF@481:AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@60,TAKEOFF,AWAY:10000.00:false:132",
		"QF 481:AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@60,TAKEOFF,AWAY:10000.00:false:132",
		"empty:AIRBUS_A320:AWAY,AWAY,LAND,WAIT,WAIT,LOAD@60,TAKEOFF,AWAY:10000.00:false:132",
	} {
		_, err := DecodeAircraft(line)
		requireMalformed(t, err, "%q", line)
	}
}

func TestMalformedCausesReachable(t *testing.T) {
	_, err := DecodeTaskList("WAIT,LAND,WAIT,LOAD@60,TAKEOFF,AWAY")
	assert.ErrorIs(t, err, ErrMalformedSave)
	assert.ErrorIs(t, err, tasks.ErrInvalidTaskSequence)

	_, err = DecodeAircraft("QFA481:AIRBUS_A320:AWAY,LAND,LOAD@10,TAKEOFF:99999:false:0")
	assert.ErrorIs(t, err, aircraft.ErrInvalidFuelAmount)

	_, err = DecodeAircraft("QFA481:AIRBUS_A321:AWAY,LAND,LOAD@10,TAKEOFF:0:false:0")
	assert.ErrorIs(t, err, aircraft.ErrUnknownModel)

	_, err = DecodeAircraft("AB,C:AIRBUS_A320:LAND,WAIT,LOAD@10,TAKEOFF,AWAY:0:false:0")
	assert.ErrorIs(t, err, tower.ErrInvalidCallsign)
}

// Every callsign a tower accepts has to survive a checkpoint, including
// ones next to the separators and the empty-gate token.
func TestCallsignsSurviveCheckpoint(t *testing.T) {
	ct := tower.NewControlTower(log.Discard())
	term := ground.NewTerminal(ground.AirplaneTerminal, 1)
	require.NoError(t, term.AddGate(ground.NewGate(1)))
	ct.AddTerminal(term)

	parked, err := DecodeAircraft("EMPTY1:AIRBUS_A320:WAIT,LOAD@10,TAKEOFF,AWAY,LAND:0.00:false:0")
	require.NoError(t, err)
	require.NoError(t, ct.AddAircraft(parked))
	lander, err := DecodeAircraft("VH-A.B_C:AIRBUS_A320:LAND,WAIT,LOAD@10,TAKEOFF,AWAY:100.00:false:0")
	require.NoError(t, err)
	require.NoError(t, ct.AddAircraft(lander))

	var buf bytes.Buffer
	require.NoError(t, WriteCheckpoint(&buf, ct))
	restored, err := ReadCheckpoint(&buf, log.Discard())
	require.NoError(t, err)
	assert.Equal(t, encodeAll(t, ct), encodeAll(t, restored))
	require.Len(t, restored.Terminals(), 1)
	assert.True(t, restored.Terminals()[0].Gates()[0].Occupied())
	assert.Equal(t, []string{"VH-A.B_C"}, restored.State().LandingQueue)

	for _, cs := range []string{"AB,C", "empty", "A@B"} {
		ac, err := aircraft.New(cs, parked.Characteristics(), tasks.MustNewTaskList(
			tasks.MakeTask(tasks.Land), tasks.MakeTask(tasks.Wait), tasks.MakeLoadTask(10),
			tasks.MakeTask(tasks.Takeoff), tasks.MakeTask(tasks.Away)), 0, 0)
		require.NoError(t, err)
		assert.ErrorIs(t, ct.AddAircraft(ac), tower.ErrInvalidCallsign, cs)
	}
	assert.Len(t, ct.Aircraft(), 2)
}

func TestDecodeTaskList(t *testing.T) {
	tl, err := DecodeTaskList("LOAD@100,TAKEOFF,AWAY,LAND")
	require.NoError(t, err)
	assert.Equal(t, tasks.MakeLoadTask(100), tl.Current())

	tl, err = DecodeTaskList("LOAD,TAKEOFF,AWAY,LAND")
	require.NoError(t, err)
	assert.Equal(t, tasks.MakeLoadTask(0), tl.Current())

	tl, err = DecodeTaskList("AWAY")
	require.NoError(t, err)
	assert.Equal(t, 1, tl.Len())
}

func TestReadAircraft(t *testing.T) {
	acs := fixtureAircraft(t)
	require.Len(t, acs, 4)
	assert.Equal(t, "VH-BFK", acs[3].Callsign())

	acs, err := ReadAircraft(strings.NewReader("0\n"))
	require.NoError(t, err)
	assert.Empty(t, acs)

	for _, s := range []string{
		"",
		"4x\n" + qfa481,
		"2\n" + qfa481 + "\n",
		"1\n" + qfa481 + "\n" + utd302 + "\n",
		"2\n" + qfa481 + "\n" + qfa481 + "\n",
		"-1\n",
		"1\n" + qfa481 + "\n\n",
	} {
		_, err := ReadAircraft(strings.NewReader(s))
		requireMalformed(t, err, "%q", s)
	}
}

func TestMalformedErrorPosition(t *testing.T) {
	_, err := ReadAircraft(strings.NewReader("2\n" + qfa481 + "\nQFA1:AIRBUS_A320:AWAY:x:false:0\n"))
	var me *MalformedError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, SectionAircraft, me.Section)
	assert.Equal(t, 3, me.Line)
	assert.Contains(t, err.Error(), "aircraft line 3: ")
}

func TestReadTerminals(t *testing.T) {
	acs := fixtureAircraft(t)
	terms, err := ReadTerminals(strings.NewReader(terminalsText), acs)
	require.NoError(t, err)
	require.Len(t, terms, 2)

	assert.Equal(t, 1, terms[0].Number)
	require.Len(t, terms[0].Gates(), 3)
	assert.Equal(t, acs[1], terms[0].Gates()[0].Aircraft())
	assert.Equal(t, acs[2], terms[0].Gates()[1].Aircraft())
	assert.False(t, terms[0].Gates()[2].Occupied())
	assert.Len(t, terms[1].Gates(), 1)

	terms, err = ReadTerminals(strings.NewReader("1\nHelicopterTerminal:7:true:0\n"), acs)
	require.NoError(t, err)
	assert.True(t, terms[0].HasEmergency())

	for _, s := range []string{
		"",
		"x\n",
		"2\nAirplaneTerminal:1:false:0\n",
		"1\nAirplaneTerminal:1:false:1\n",
		"1\nBoatTerminal:1:false:0\n",
		"1\nAirplaneTerminal:0:false:0\n",
		"1\nAirplaneTerminal:one:false:0\n",
		"1\nAirplaneTerminal:1:false:7\n",
		"1\nAirplaneTerminal:1:false:-1\n",
		"1\nAirplaneTerminal:1:false\n",
		"1\nAirplaneTerminal:1:maybe:0\n",
		"2\nAirplaneTerminal:1:false:0\nHelicopterTerminal:1:false:0\n",
		"1\nAirplaneTerminal:1:false:1\n0:empty\n",
		"1\nAirplaneTerminal:1:false:1\nx:empty\n",
		"1\nAirplaneTerminal:1:false:1\n1:NOPE\n",
		"1\nAirplaneTerminal:1:false:1\n1:UTD302:x\n",
		"1\nAirplaneTerminal:1:false:2\n1:UTD302\n2:UTD302\n",
		"1\nAirplaneTerminal:1:false:2\n1:UTD302\n1:empty\n",
		"1\nAirplaneTerminal:1:false:2\n3:empty\n3:empty\n",
	} {
		_, err := ReadTerminals(strings.NewReader(s), acs)
		requireMalformed(t, err, "%q", s)
	}
}

func TestDecodeGate(t *testing.T) {
	acs := fixtureAircraft(t)
	g, err := DecodeGate("12:QFA481", acs)
	require.NoError(t, err)
	assert.Equal(t, 12, g.Number)
	assert.Equal(t, acs[0], g.Aircraft())

	g, err = DecodeGate("8:empty", acs)
	require.NoError(t, err)
	assert.Nil(t, g.Aircraft())
	assert.Equal(t, "8:empty", g.Encode())
}

func TestReadQueues(t *testing.T) {
	acs := fixtureAircraft(t)
	takeoff, landing, loading, err := ReadQueues(strings.NewReader(`TakeoffQueue:2
UTD302,QFA481
LandingQueue:1
VH-BFK
LoadingAircraft:2
UPS119:3,QFA481:1
`), acs)
	require.NoError(t, err)
	assert.Equal(t, []aircraft.Aircraft{acs[1], acs[0]}, takeoff.Ordered())
	assert.Equal(t, []aircraft.Aircraft{acs[3]}, landing.Ordered())
	assert.Equal(t, []tower.LoadingEntry{{Callsign: "QFA481", Remaining: 1}, {Callsign: "UPS119", Remaining: 3}},
		loading.Entries())

	for _, s := range []string{
		"",
		"TakeoffQueue:0\nLandingQueue:0\n",
		"LandingQueue:0\nTakeoffQueue:0\nLoadingAircraft:0\n",
		"TakeoffQueue:1\nLandingQueue:0\nLoadingAircraft:0\n",
		"TakeoffQueue:2\nQFA481\nLandingQueue:0\nLoadingAircraft:0\n",
		"TakeoffQueue:1\nNOPE\nLandingQueue:0\nLoadingAircraft:0\n",
		"TakeoffQueue:2\nQFA481,QFA481\nLandingQueue:0\nLoadingAircraft:0\n",
		"TakeoffQueue:x\nLandingQueue:0\nLoadingAircraft:0\n",
		"TakeoffQueue:-1\nLandingQueue:0\nLoadingAircraft:0\n",
		"TakeoffQueue\nLandingQueue:0\nLoadingAircraft:0\n",
		"TakeoffQueue:0\nLandingQueue:1\n",
		"TakeoffQueue:0\nLandingQueue:0\nLoadingAircraft:1\nQFA481:0\n",
		"TakeoffQueue:0\nLandingQueue:0\nLoadingAircraft:1\nQFA481\n",
		"TakeoffQueue:0\nLandingQueue:0\nLoadingAircraft:1\nQFA481:x\n",
		"TakeoffQueue:0\nLandingQueue:0\nLoadingAircraft:1\nNOPE:2\n",
		"TakeoffQueue:0\nLandingQueue:0\nLoadingAircraft:2\nQFA481:1,QFA481:2\n",
		"TakeoffQueue:0\nLandingQueue:0\nLoadingAircraft:1\nQFA481:1,UPS119:2\n",
		"TakeoffQueue:0\nLandingQueue:0\nLoadingAircraft:0\nextra\n",
	} {
		_, _, _, err := ReadQueues(strings.NewReader(s), acs)
		requireMalformed(t, err, "%q", s)
	}
}

func TestLoadControlTower(t *testing.T) {
	ct := loadFixture(t)
	assert.EqualValues(t, 5, ct.TicksElapsed())
	assert.Len(t, ct.Aircraft(), 4)
	assert.Equal(t, "ControlTower: 2 terminals, 4 total aircraft (1 LAND, 0 TAKEOFF, 0 LOAD)", ct.String())

	ct.Tick()
	vh := ct.AircraftByCallsign("VH-BFK")
	require.NotNil(t, vh)
	assert.Equal(t, 4, ct.FindGateOfAircraft(vh).Number)
	assert.Equal(t, 0, vh.CargoAmount())
	assert.Equal(t, tasks.Wait, vh.TaskList().Current().Type)
	assert.Equal(t, []tower.LoadingEntry{{Callsign: "UPS119", Remaining: 3}, {Callsign: "UTD302", Remaining: 2}},
		ct.Loading().Entries())
}

func TestLoadControlTowerRejectsBadSection(t *testing.T) {
	_, err := LoadControlTower(strings.NewReader(tickText), strings.NewReader(aircraftText),
		strings.NewReader("TakeoffQueue:1\nNOPE\nLandingQueue:0\nLoadingAircraft:0\n"),
		strings.NewReader(terminalsText), log.Discard())
	requireMalformed(t, err)

	_, err = LoadControlTower(strings.NewReader("-3"), strings.NewReader(aircraftText),
		strings.NewReader(queuesText), strings.NewReader(terminalsText), log.Discard())
	var me *MalformedError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, SectionTick, me.Section)
}

func TestWriteMatchesInput(t *testing.T) {
	ct := loadFixture(t)
	assert.Equal(t, [4]string{tickText, aircraftText, terminalsText, queuesText}, encodeAll(t, ct))
}

func TestRoundTrip(t *testing.T) {
	ct := loadFixture(t)
	for range 9 {
		ct.Tick()

		enc := encodeAll(t, ct)
		restored, err := LoadControlTower(strings.NewReader(enc[0]), strings.NewReader(enc[1]),
			strings.NewReader(enc[3]), strings.NewReader(enc[2]), log.Discard())
		require.NoError(t, err)

		assert.Equal(t, enc, encodeAll(t, restored))
		assert.Equal(t, withoutFuel(ct.State()), withoutFuel(restored.State()))

		// Both continue identically.
		ct.Tick()
		restored.Tick()
		assert.Equal(t, withoutFuel(ct.State()), withoutFuel(restored.State()))
	}
}

func TestSaveLoadDir(t *testing.T) {
	ct := loadFixture(t)
	ct.Tick()
	ct.Tick()

	dir := t.TempDir()
	require.NoError(t, SaveDir(dir, ct))
	restored, err := LoadDir(dir, log.Discard())
	require.NoError(t, err)
	assert.Equal(t, encodeAll(t, ct), encodeAll(t, restored))

	_, err = LoadDir(t.TempDir(), log.Discard())
	assert.Error(t, err)
}

func TestCheckpoint(t *testing.T) {
	ct := loadFixture(t)
	ct.Tick()

	var buf bytes.Buffer
	require.NoError(t, WriteCheckpoint(&buf, ct))
	restored, err := ReadCheckpoint(&buf, log.Discard())
	require.NoError(t, err)
	assert.Equal(t, encodeAll(t, ct), encodeAll(t, restored))

	c, err := MakeCheckpoint(ct)
	require.NoError(t, err)
	c.Version = 99
	_, err = c.Restore(log.Discard())
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	c.Version = CheckpointVersion
	c.Queues = "garbage"
	_, err = c.Restore(log.Discard())
	assert.ErrorIs(t, err, ErrMalformedSave)

	_, err = ReadCheckpoint(strings.NewReader("not a checkpoint"), log.Discard())
	assert.Error(t, err)
}

func TestLocalStorageBackend(t *testing.T) {
	ct := loadFixture(t)
	dir := t.TempDir()

	sb, path, err := MakeStorageBackend(t.Context(), dir+"/sub/tower.ckpt")
	require.NoError(t, err)
	defer sb.Close()
	assert.IsType(t, LocalBackend{}, sb)

	n, err := SaveCheckpoint(sb, path, ct)
	require.NoError(t, err)
	assert.Greater(t, n, int64(0))

	restored, err := LoadCheckpoint(sb, path, log.Discard())
	require.NoError(t, err)
	assert.Equal(t, encodeAll(t, ct), encodeAll(t, restored))

	_, err = LoadCheckpoint(LocalBackend{Root: dir}, "missing.ckpt", log.Discard())
	assert.Error(t, err)
}

func TestRemoteBackendURIs(t *testing.T) {
	t.Setenv("TOWERSIM_GCS_CREDENTIALS", "")
	t.Setenv("TOWERSIM_S3_ACCESS_KEY_ID", "")
	t.Setenv("TOWERSIM_S3_SECRET_ACCESS_KEY", "")

	_, _, err := MakeStorageBackend(t.Context(), "gs://bucket/tower.ckpt")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	_, _, err = MakeStorageBackend(t.Context(), "s3://bucket/tower.ckpt")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	for _, uri := range []string{"gs://", "gs://bucket", "gs://bucket/", "gs:///obj",
		"s3://", "s3://bucket", "s3:///key"} {
		_, _, err := MakeStorageBackend(t.Context(), uri)
		assert.Error(t, err, uri)
		assert.NotErrorIs(t, err, ErrMissingCredentials, uri)
	}
}

func TestS3Backend(t *testing.T) {
	t.Setenv("TOWERSIM_S3_ACCESS_KEY_ID", "id")
	t.Setenv("TOWERSIM_S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("TOWERSIM_S3_ENDPOINT", "http://127.0.0.1:1")

	sb, path, err := MakeStorageBackend(t.Context(), "s3://towers/runs/tower.ckpt")
	require.NoError(t, err)
	defer sb.Close()
	assert.Equal(t, "runs/tower.ckpt", path)
	assert.IsType(t, &S3Backend{}, sb)
}
