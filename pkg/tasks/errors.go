// pkg/tasks/errors.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package tasks

import "errors"

var ErrInvalidTaskSequence = errors.New("Invalid task sequence")
