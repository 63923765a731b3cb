// pkg/server/errors.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mmp/towersim/pkg/save"
	"github.com/mmp/towersim/pkg/tower"
)

var (
	ErrInvalidTickCount = errors.New("Invalid tick count")
	ErrNoHistory        = errors.New("No state recorded for that tick")
)

// statusForError maps errors from the tower and the save codec to HTTP
// status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, tower.ErrUnknownAircraft), errors.Is(err, tower.ErrUnknownTerminal),
		errors.Is(err, ErrNoHistory):
		return http.StatusNotFound
	case errors.Is(err, tower.ErrNoSuitableGate), errors.Is(err, tower.ErrDuplicateAircraft):
		return http.StatusConflict
	case errors.Is(err, save.ErrMalformedSave), errors.Is(err, ErrInvalidTickCount),
		errors.Is(err, tower.ErrInvalidCallsign):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSONError(w, statusForError(err), err.Error())
}
