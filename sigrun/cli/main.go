// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cli is the main entrypoint for sigrun.
package cli

import (
	"context"
	"flag"
	"io"
	"os"
	"runtime"

	"github.com/google/subcommands"
	"gvisor.dev/sigkern/pkg/log"
	"gvisor.dev/sigkern/pkg/sentry/strace"
	"gvisor.dev/sigkern/pkg/sentry/syscalls/linux"
	"gvisor.dev/sigkern/sigrun/cmd"
	"gvisor.dev/sigkern/sigrun/config"
)

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	// Create a new Config from the flags.
	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		cmd.Fatalf("%v", err)
	}

	subcommand := flag.CommandLine.Arg(0)

	// Set up logging.
	if conf.Debug {
		log.SetLevel(log.Debug)
	}
	var logFile io.Writer = os.Stderr
	if f, err := log.OpenFile(conf.LogFile, subcommand); err != nil {
		cmd.Fatalf("error opening log file %q: %v", conf.LogFile, err)
	} else if f != nil {
		logFile = f
		cmd.ErrorLogger = io.MultiWriter(os.Stderr, f)
	}
	e, err := log.EmitterForFormat(&log.Writer{Next: logFile}, conf.LogFormat)
	if err != nil {
		cmd.Fatalf("%v", err)
	}
	log.SetTarget(e)

	const delimString = `**************** sigrun ****************`
	log.Infof(delimString)
	log.Infof("%s, %s, %d CPUs, %s, PID %d", runtime.Version(), runtime.GOARCH, runtime.NumCPU(), runtime.GOOS, os.Getpid())
	log.Infof("Args: %v", os.Args)
	log.Infof("Syscall table: %d syscalls for %v/%v", len(linux.RISCV64.Table), linux.RISCV64.OS, linux.RISCV64.Arch)
	conf.Log()
	log.Infof(delimString)

	if conf.Strace {
		strace.Initialize()
	}

	// Call the subcommand and pass in the configuration.
	subcmdCode := subcommands.Execute(context.Background(), conf)
	if subcmdCode != subcommands.ExitSuccess {
		log.Warningf("Failure to execute command, err: %v", subcmdCode)
	}
	os.Exit(int(subcmdCode))
}

// forEachCmd invokes the passed callback for each command supported by
// sigrun.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	cb(new(cmd.Run), "")

	const infoGroup = "information"
	cb(new(cmd.Syscalls), infoGroup)
	cb(new(cmd.Signals), infoGroup)
}
