// pkg/save/write.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package save

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mmp/towersim/pkg/log"
	"github.com/mmp/towersim/pkg/tower"
)

// File names used by SaveDir and LoadDir.
const (
	TickFile      = "tick.txt"
	AircraftFile  = "aircraft.txt"
	TerminalsFile = "terminalsWithGates.txt"
	QueuesFile    = "queues.txt"
)

// WriteControlTower writes the four sections of ct's state to the given
// writers in the form the Read functions accept.
func WriteControlTower(ct *tower.ControlTower, tick, acs, terminals, queues io.Writer) error {
	if _, err := fmt.Fprintf(tick, "%d\n", ct.TicksElapsed()); err != nil {
		return err
	}

	aw := bufio.NewWriter(acs)
	fmt.Fprintf(aw, "%d\n", len(ct.Aircraft()))
	for _, ac := range ct.Aircraft() {
		fmt.Fprintln(aw, ac.Encode())
	}
	if err := aw.Flush(); err != nil {
		return err
	}

	tw := bufio.NewWriter(terminals)
	fmt.Fprintf(tw, "%d\n", len(ct.Terminals()))
	for _, t := range ct.Terminals() {
		fmt.Fprintln(tw, t.Encode())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	qw := bufio.NewWriter(queues)
	fmt.Fprintln(qw, ct.TakeoffQueue().Encode())
	fmt.Fprintln(qw, ct.LandingQueue().Encode())
	fmt.Fprintln(qw, ct.Loading().Encode())
	return qw.Flush()
}

// SaveDir writes ct to the four section files in dir, creating dir if
// necessary.
func SaveDir(dir string, ct *tower.ControlTower) (err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	var files []*os.File
	defer func() {
		for _, f := range files {
			err = errors.Join(err, f.Close())
		}
	}()
	for _, name := range []string{TickFile, AircraftFile, TerminalsFile, QueuesFile} {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		files = append(files, f)
	}

	return WriteControlTower(ct, files[0], files[1], files[2], files[3])
}

// LoadDir reads a tower saved with SaveDir.
func LoadDir(dir string, lg *log.Logger) (*tower.ControlTower, error) {
	var readers []io.Reader
	for _, name := range []string{TickFile, AircraftFile, QueuesFile, TerminalsFile} {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		readers = append(readers, f)
	}

	return LoadControlTower(readers[0], readers[1], readers[2], readers[3], lg)
}
