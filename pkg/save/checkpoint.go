// pkg/save/checkpoint.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package save

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/mmp/towersim/pkg/log"
	"github.com/mmp/towersim/pkg/tower"
	"github.com/vmihailenco/msgpack/v5"
)

const CheckpointVersion = 1

// Checkpoint holds all four text sections of a tower in one value. On
// disk it is msgpack-encoded and zstd-compressed.
type Checkpoint struct {
	Version   int    `msgpack:"version"`
	Tick      string `msgpack:"tick"`
	Aircraft  string `msgpack:"aircraft"`
	Terminals string `msgpack:"terminals"`
	Queues    string `msgpack:"queues"`
}

func MakeCheckpoint(ct *tower.ControlTower) (Checkpoint, error) {
	var tick, acs, terminals, queues strings.Builder
	if err := WriteControlTower(ct, &tick, &acs, &terminals, &queues); err != nil {
		return Checkpoint{}, err
	}
	return Checkpoint{
		Version:   CheckpointVersion,
		Tick:      tick.String(),
		Aircraft:  acs.String(),
		Terminals: terminals.String(),
		Queues:    queues.String(),
	}, nil
}

// Restore validates the checkpoint's sections exactly as LoadControlTower
// does and returns the resulting tower.
func (c Checkpoint) Restore(lg *log.Logger) (*tower.ControlTower, error) {
	if c.Version != CheckpointVersion {
		return nil, fmt.Errorf("%d: %w", c.Version, ErrUnsupportedVersion)
	}
	return LoadControlTower(strings.NewReader(c.Tick), strings.NewReader(c.Aircraft),
		strings.NewReader(c.Queues), strings.NewReader(c.Terminals), lg)
}

// WriteCheckpoint writes a compressed checkpoint of ct to w.
func WriteCheckpoint(w io.Writer, ct *tower.ControlTower) error {
	c, err := MakeCheckpoint(ct)
	if err != nil {
		return err
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return err
	}
	if err := msgpack.NewEncoder(zw).Encode(&c); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// ReadCheckpoint reads a checkpoint written by WriteCheckpoint.
func ReadCheckpoint(r io.Reader, lg *log.Logger) (*tower.ControlTower, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var c Checkpoint
	if err := msgpack.NewDecoder(zr).Decode(&c); err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	return c.Restore(lg)
}

// SaveCheckpoint stores a checkpoint of ct at path in the given backend.
func SaveCheckpoint(sb StorageBackend, path string, ct *tower.ControlTower) (int64, error) {
	var buf bytes.Buffer
	if err := WriteCheckpoint(&buf, ct); err != nil {
		return 0, err
	}
	return sb.Store(path, &buf)
}

func LoadCheckpoint(sb StorageBackend, path string, lg *log.Logger) (*tower.ControlTower, error) {
	r, err := sb.OpenRead(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return ReadCheckpoint(r, lg)
}
