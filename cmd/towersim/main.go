// cmd/towersim/main.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

// towersim loads a saved control tower, optionally advances it some
// number of ticks, and then saves it, checkpoints it, prints it, or serves
// it over HTTP.

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goforj/godump"
	"github.com/mmp/towersim/pkg/log"
	"github.com/mmp/towersim/pkg/save"
	"github.com/mmp/towersim/pkg/server"
	"github.com/mmp/towersim/pkg/tower"
	"github.com/mmp/towersim/pkg/util"
)

var (
	logLevel        = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir          = flag.String("logdir", "", "log file directory")
	cpuprofile      = flag.String("cpuprofile", "", "write CPU profile to file")
	memprofile      = flag.String("memprofile", "", "write memory profile to this file")
	loadDir         = flag.String("load", "", "directory holding tick.txt, aircraft.txt, terminalsWithGates.txt and queues.txt")
	loadCheckpoint  = flag.String("checkpoint", "", "checkpoint to resume from (local path, gs://bucket/object or s3://bucket/key)")
	numTicks        = flag.Int("ticks", 0, "number of ticks to run after loading")
	saveDir         = flag.String("save", "", "directory to save the tower to when done")
	writeCheckpoint = flag.String("write-checkpoint", "", "checkpoint to write when done (local path, gs://bucket/object or s3://bucket/key)")
	lint            = flag.Bool("lint", false, "check the saved towers in the directories given as arguments")
	dump            = flag.Bool("dump", false, "print the tower's full state when done")
	serve           = flag.String("serve", "", "address to serve the HTTP API on; \"port\" uses $PORT")
	tickRate        = flag.Duration("tickrate", 0, "when serving, advance the tower this often (0 to only tick on request)")
	historySize     = flag.Int("history", server.DefaultHistorySize, "number of past states the server keeps")
)

// saveTimeout bounds the final save and checkpoint upload.
const saveTimeout = 2 * time.Minute

// errUsage is returned for invalid combinations of flags.
var errUsage = errors.New("usage")

func main() {
	flag.Parse()

	lg := log.New(*serve != "", *logLevel, *logDir)

	profiler, err := util.CreateProfiler(*cpuprofile, *memprofile)
	if err != nil {
		lg.Errorf("%v", err)
	}

	err = run(lg)
	if perr := profiler.Cleanup(); perr != nil {
		lg.Errorf("%v", perr)
	}

	if errors.Is(err, errUsage) {
		fmt.Fprintf(os.Stderr, "towersim: %v\n", err)
		os.Exit(2)
	} else if err != nil {
		lg.Errorf("%v", err)
		fmt.Fprintf(os.Stderr, "towersim: %v\n", err)
		os.Exit(1)
	}
}

func run(lg *log.Logger) error {
	if *lint {
		return lintDirs(flag.Args(), lg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ct, err := loadTower(ctx, lg)
	if err != nil {
		return err
	}

	if *numTicks > 0 {
		start := time.Now()
		for range *numTicks {
			ct.Tick()
		}
		lg.Infof("ran %d ticks in %s", *numTicks, time.Since(start))
	}

	if *serve != "" {
		addr := *serve
		if addr == "port" {
			port := os.Getenv("PORT")
			if port == "" {
				port = "8080"
			}
			addr = net.JoinHostPort("", port)
		}

		srv := server.New(ct, *historySize, lg)
		if err := srv.Run(ctx, addr, *tickRate); err != nil {
			return err
		}
		// The tower is no longer shared once the server has stopped.
	}

	return finish(ct)
}

// lintDirs loads each saved tower in dirs and reports every one that fails.
func lintDirs(dirs []string, lg *log.Logger) error {
	if len(dirs) == 0 {
		return fmt.Errorf("-lint requires one or more directories: %w", errUsage)
	}

	var e util.ErrorLogger
	for _, dir := range dirs {
		e.Push(dir)
		if ct, err := save.LoadDir(dir, log.Discard()); err != nil {
			e.Error(err)
		} else {
			fmt.Printf("%s: %s\n", dir, ct)
		}
		e.Pop()
	}
	if e.HaveErrors() {
		e.PrintErrors(os.Stderr, lg)
		return fmt.Errorf("%d of %d saved towers are invalid", len(e.Errors()), len(dirs))
	}
	return nil
}

func loadTower(ctx context.Context, lg *log.Logger) (*tower.ControlTower, error) {
	switch {
	case *loadDir != "" && *loadCheckpoint != "":
		return nil, fmt.Errorf("only one of -load and -checkpoint may be given: %w", errUsage)

	case *loadDir != "":
		return save.LoadDir(*loadDir, lg)

	case *loadCheckpoint != "":
		sb, path, err := save.MakeStorageBackend(ctx, *loadCheckpoint)
		if err != nil {
			return nil, err
		}
		defer sb.Close()
		return save.LoadCheckpoint(sb, path, lg)

	default:
		lg.Info("no saved tower given; starting empty")
		return tower.NewControlTower(lg), nil
	}
}

// finish saves, checkpoints and prints ct as requested. It runs after a
// server has stopped, so it uses its own context rather than the signal one.
func finish(ct *tower.ControlTower) error {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if *saveDir != "" {
		if err := save.SaveDir(*saveDir, ct); err != nil {
			return err
		}
	}

	if *writeCheckpoint != "" {
		sb, path, err := save.MakeStorageBackend(ctx, *writeCheckpoint)
		if err != nil {
			return err
		}
		defer sb.Close()
		if _, err := save.SaveCheckpoint(sb, path, ct); err != nil {
			return err
		}
	}

	if *dump {
		godump.Dump(ct.State())
	} else {
		fmt.Println(ct)
	}
	return nil
}
