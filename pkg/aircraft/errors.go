// pkg/aircraft/errors.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aircraft

import "errors"

var (
	ErrInvalidFuelAmount  = errors.New("Invalid fuel amount")
	ErrInvalidCargoAmount = errors.New("Invalid cargo amount")
	ErrUnknownModel       = errors.New("Unknown aircraft model")
)
