// pkg/save/errors.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package save

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedSave      = errors.New("Malformed saved state")
	ErrUnsupportedVersion = errors.New("Unsupported checkpoint version")
	ErrMissingCredentials = errors.New("Storage credentials not set")
)

// MalformedError describes a problem with saved text. It matches
// ErrMalformedSave under errors.Is and unwraps to the underlying cause,
// if there is one.
type MalformedError struct {
	Section string
	Line    int // 1-based; zero if not known
	Msg     string
	Err     error
}

func (e *MalformedError) Error() string {
	s := e.Section
	if e.Line > 0 {
		s += fmt.Sprintf(" line %d", e.Line)
	}
	s += ": " + e.Msg
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedSave
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

func malformed(section string, err error, msg string, args ...any) *MalformedError {
	return &MalformedError{Section: section, Msg: fmt.Sprintf(msg, args...), Err: err}
}
