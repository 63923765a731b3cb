// pkg/ground/errors.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package ground

import "errors"

var (
	ErrGateOccupied = errors.New("Gate is already occupied")
	ErrTerminalFull = errors.New("Terminal has no room for more gates")
)
