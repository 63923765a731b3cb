// pkg/tower/errors.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package tower

import "errors"

var (
	ErrDuplicateAircraft = errors.New("Aircraft with that callsign already under control")
	ErrInvalidCallsign   = errors.New("Invalid callsign")
	ErrNoSuitableGate    = errors.New("No suitable gate available")
	ErrUnknownAircraft   = errors.New("Unknown aircraft")
	ErrUnknownTerminal   = errors.New("Unknown terminal")
)
