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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"gvisor.dev/sigkern/pkg/log"
	"gvisor.dev/sigkern/sigrun/config"
	"gvisor.dev/sigkern/sigrun/scenario"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	timeout time.Duration
	quiet   bool
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "run a signal scenario and check its expectations"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [flags] <scenario.yaml> - run a signal scenario. Use - to read it from stdin.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&r.timeout, "timeout", time.Minute, "abort the scenario after this long. 0 means no limit.")
	f.BoolVar(&r.quiet, "quiet", false, "only print failing steps.")
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	sc, err := loadScenario(f.Arg(0))
	if err != nil {
		Fatalf("%v", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	log.Infof("Running scenario %q: %d threads, %d steps", f.Arg(0), sc.Threads, len(sc.Steps))
	rep, err := scenario.Run(ctx, sc, conf.KernelOptions())
	if rep == nil {
		Fatalf("running scenario: %v", err)
	}
	if werr := writeReport(os.Stdout, sc, rep, r.quiet); werr != nil {
		Fatalf("Error writing output: %v", werr)
	}
	if err != nil {
		Errorf("FAIL: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func loadScenario(path string) (*scenario.Scenario, error) {
	if path == "-" {
		return scenario.Parse(os.Stdin)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening scenario: %w", err)
	}
	defer file.Close()
	sc, err := scenario.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// writeReport prints one line per step and a summary.
func writeReport(w io.Writer, sc *scenario.Scenario, rep *scenario.Report, quiet bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "STEP\tTHREAD\tOP\tRESULT\tSTATUS\n")
	skipped := 0
	for _, res := range rep.Results {
		status := "ok"
		switch {
		case !res.Ran:
			status = "skipped"
			skipped++
		case res.Err != nil:
			status = "FAIL: " + res.Err.Error()
		case quiet:
			continue
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", res.Step, res.Thread, res.Op, result(&sc.Steps[res.Step], &res), status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	exit := "running"
	if rep.Exited {
		exit = fmt.Sprintf("exited with status %d", rep.ExitStatus)
	}
	_, err := fmt.Fprintf(w, "\n%d steps, %d failed, %d skipped; process %s\n", len(rep.Results), rep.Failed(), skipped, exit)
	return err
}

func result(s *scenario.Step, res *scenario.Result) string {
	switch {
	case !res.Ran:
		return "-"
	case s.Op == scenario.OpTrapReturn:
		if res.Outcome.Signal == 0 {
			return res.Outcome.Kind.String()
		}
		return fmt.Sprintf("%v %v", res.Outcome.Kind, res.Outcome.Signal)
	case res.Errno != "":
		return res.Errno
	default:
		return "0"
	}
}
