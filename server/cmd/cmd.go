/*
   plugchain - extension-point runtime
   Copyright (C) 2025  the plugchain Contributors

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as published by
   the Free Software Foundation, version 3.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package cmd

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"

	"plugchain/server"
)

var (
	configFile = flag.String("config", "", "config file")
	logLevel   = flag.String("log", "", "log level")
	cpuProf    = flag.Bool("cpuprof", false, "enable CPU profiling")
	memProf    = flag.Bool("memprof", false, "enable mem profiling")
)

var cpuFile *os.File

var Sigmap = map[os.Signal]func(){
	syscall.SIGUSR2: func() {
		cpuFile = StartCPUProf(*cpuProf, cpuFile)
		WriteMemProf(*memProf)
	},
}

// Init handles common command line flags, logging, profiling etc. for all CLI commands.
// The caller MUST import "flag" and call flag.Parse() before calling Init().
func Init(isServer bool) *server.Settings {
	settings, err := LoadSettings(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration file '%s'.\n", *configFile)
		Die(err)
	}

	if *logLevel != "" {
		settings.LogLevel = *logLevel
	}
	if !isServer {
		level, err := log.ParseLevel(strings.ToLower(settings.LogLevel))
		if err != nil {
			log.Warningf("invalid LogLevel=%q: %v", settings.LogLevel, err)
		} else {
			log.SetLevel(level)
		}
	}

	cpuFile = StartCPUProf(*cpuProf, nil)
	return settings
}

// LoadSettings reads and parses a settings file. An empty path yields the
// defaults.
func LoadSettings(path string) (*server.Settings, error) {
	if path == "" {
		settings := server.DefaultSettings()
		return &settings, nil
	}
	conf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return server.ParseSettings(string(conf))
}

// HandleSignals dispatches every signal in Sigmap to its handler.
func HandleSignals() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, maps.Keys(Sigmap)...)
	go func() {
		// This goroutine lives as long as the process does and runs a
		// handler each time its signal arrives, not just the first time.
		for {
			select {
			case sig := <-c:
				if handler := Sigmap[sig]; handler != nil {
					handler()
				}
			}
		}
	}()
}

// Die prints the error with its stack and exits non-zero, or exits cleanly
// when err is nil.
func Die(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}

// profileDir is where CPU and heap profiles are written.
var profileDir = os.TempDir()

// publishProfile moves a finished profile to its final name, replacing the
// previous one.
func publishProfile(partial, name string) {
	final := filepath.Join(profileDir, name)
	if err := os.Rename(partial, final); err != nil {
		log.WithFields(log.Fields{
			"profile": final,
			"err":     err,
		}).Warning("failed to publish profile")
		return
	}
	log.Infof("Profile written to %q", final)
}

// StartCPUProf stops the profile recorded into prior, if any, and starts a
// new one when enabled. It returns the file the new profile records into.
func StartCPUProf(enabled bool, prior *os.File) *os.File {
	if prior != nil {
		pprof.StopCPUProfile()
		prior.Close()
		publishProfile(prior.Name(), "plugchain-cpu.prof")
	}
	if !enabled {
		return nil
	}
	f, err := os.Create(filepath.Join(profileDir, "plugchain-cpu.prof.part"))
	if err != nil {
		Die(errors.WithStack(err))
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		log.Warningf("failed to start CPU profile: %v", err)
		return nil
	}
	return f
}

// WriteMemProf snapshots the heap to plugchain-mem.prof when enabled.
func WriteMemProf(enabled bool) {
	if !enabled {
		return
	}
	f, err := os.CreateTemp(profileDir, "plugchain-mem.prof.*")
	if err != nil {
		log.Warningf("failed to create heap profile: %v", err)
		return
	}
	err = pprof.WriteHeapProfile(f)
	f.Close()
	if err != nil {
		log.Warningf("failed to write heap profile: %v", err)
		os.Remove(f.Name())
		return
	}
	publishProfile(f.Name(), "plugchain-mem.prof")
}
