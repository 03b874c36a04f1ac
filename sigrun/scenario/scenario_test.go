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

package scenario

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/sigkern/pkg/abi/linux"
	"gvisor.dev/sigkern/pkg/sentry/kernel"
)

const testTrampoline = 0x1000

func runString(t *testing.T, doc string, opts kernel.Options) (*Report, error) {
	t.Helper()
	sc, err := ParseString(doc)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if opts.SigreturnTrampoline == 0 {
		opts.SigreturnTrampoline = testTrampoline
	}
	return Run(context.Background(), sc, opts)
}

func TestTestdata(t *testing.T) {
	files, err := filepath.Glob("testdata/*.yaml")
	if err != nil || len(files) == 0 {
		t.Fatalf("Glob = %v, %v", files, err)
	}
	for _, file := range files {
		for _, sched := range []struct {
			name  string
			sched kernel.Scheduler
		}{
			{"yield", kernel.GoScheduler{}},
			{"backoff", kernel.NewBackoffScheduler(time.Microsecond, time.Millisecond)},
		} {
			t.Run(filepath.Base(file)+"/"+sched.name, func(t *testing.T) {
				f, err := os.Open(file)
				if err != nil {
					t.Fatalf("Open: %v", err)
				}
				defer f.Close()
				sc, err := Parse(f)
				if err != nil {
					t.Fatalf("Parse: %v", err)
				}
				rep, err := Run(context.Background(), sc, kernel.Options{
					SigreturnTrampoline: testTrampoline,
					Scheduler:           sched.sched,
				})
				if err != nil {
					t.Fatalf("Run: %v", err)
				}
				for _, res := range rep.Results {
					if !res.Ran {
						t.Errorf("step %d did not run", res.Step)
					}
				}
			})
		}
	}
}

func TestTerminateReport(t *testing.T) {
	rep, err := runString(t, `
steps:
  - {op: kill, signal: SIGSEGV}
  - {op: trap-return, outcome: terminate}
`, kernel.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Exited || rep.ExitStatus != 128+int(linux.SIGSEGV) {
		t.Errorf("report exit = %t, %d, want %d", rep.Exited, rep.ExitStatus, 128+int(linux.SIGSEGV))
	}
	want := kernel.SignalOutcome{Kind: kernel.SignalTerminate, Signal: linux.SIGSEGV}
	if diff := cmp.Diff(want, rep.Results[1].Outcome); diff != "" {
		t.Errorf("outcome mismatch (-want +got):\n%s", diff)
	}
}

func TestFailedExpectation(t *testing.T) {
	rep, err := runString(t, `
steps:
  - {op: sigaction, signal: SIGKILL, handler: 0x2000}
  - {op: expect-mask, set: []}
`, kernel.Options{})
	if err == nil {
		t.Fatalf("Run succeeded, want error")
	}
	if got := rep.Failed(); got != 1 {
		t.Errorf("Failed() = %d, want 1", got)
	}
	if got := rep.Results[0].Errno; got != "EPERM" {
		t.Errorf("errno = %q, want EPERM", got)
	}
	if rep.Results[1].Ran {
		t.Errorf("step after failure ran")
	}
}

func TestFailureInterruptsSuspend(t *testing.T) {
	rep, err := runString(t, `
threads: 2
steps:
  - {thread: 1, op: sigsuspend}
  - {thread: 0, op: expect-pending, set: [SIGUSR1]}
`, kernel.Options{})
	if err == nil {
		t.Fatalf("Run succeeded, want error")
	}
	if got := rep.Results[0].Errno; got != "EINTR" {
		t.Errorf("sigsuspend errno = %q, want EINTR", got)
	}
	if rep.Results[1].Err == nil {
		t.Errorf("expect-pending passed with nothing pending")
	}
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
	}{
		{"unknown field", "steps: [{op: kill, bogus: 1}]"},
		{"unknown op", "steps: [{op: fork}]"},
		{"thread out of range", "threads: 2\nsteps: [{thread: 2, op: sigreturn}]"},
		{"negative threads", "threads: -1"},
		{"after later step", "steps: [{op: sigreturn, after: 0}]"},
		{"bad signal", "steps: [{op: kill, signal: SIGFOO}]"},
		{"bad realtime signal", "steps: [{op: kill, signal: SIGRT40}]"},
		{"bad handler", "steps: [{op: sigaction, handler: SIG_HOLD}]"},
		{"bad flag", "steps: [{op: sigaction, flags: [SA_FOO]}]"},
		{"bad how", "steps: [{op: sigprocmask, how: mask}]"},
		{"tkill without target", "steps: [{op: tkill, signal: 10}]"},
		{"tkill target out of range", "steps: [{op: tkill, target: 3}]"},
		{"bad outcome", "steps: [{op: trap-return, outcome: crashed}]"},
		{"expect without set", "steps: [{op: expect-mask}]"},
		{"expect errno on check", "steps: [{op: expect-mask, set: [], expect: EINVAL}]"},
		{"unaligned mapping", "mappings: [{addr: 0x10010, length: 4096}]"},
		{"empty mapping", "mappings: [{addr: 0x10000}]"},
		{"bad address", "mappings: [{addr: here, length: 4096}]"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if sc, err := ParseString(tc.doc); err == nil {
				t.Errorf("ParseString(%q) = %+v, want error", tc.doc, sc)
			}
		})
	}
}

func TestParse(t *testing.T) {
	sc, err := ParseString(`
steps:
  - op: sigaction
    signal: usr1
    handler: 0x2000
    flags: [SA_RESTORER, sa_nodefer]
    restorer: 0x3000
    mask: [SIGINT, 34]
`)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	h := Handler(0x2000)
	want := &Scenario{
		Threads: 1,
		Steps: []Step{{
			Op:       OpSigaction,
			Signal:   Signal(linux.SIGUSR1),
			Handler:  &h,
			Flags:    ActionFlags(linux.SA_RESTORER | linux.SA_NODEFER),
			Restorer: 0x3000,
			Mask:     SignalList{Signal(linux.SIGINT), 34},
		}},
	}
	if diff := cmp.Diff(want, sc); diff != "" {
		t.Errorf("scenario mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSignal(t *testing.T) {
	for in, want := range map[string]linux.Signal{
		"SIGUSR1": linux.SIGUSR1,
		"term":    linux.SIGTERM,
		"iot":     linux.SIGABRT,
		"SIGRT0":  32,
		"SIGRT32": 64,
		"9":       linux.SIGKILL,
		"0x40":    64,
		"-3":      -3,
	} {
		got, err := ParseSignal(in)
		if err != nil || got != want {
			t.Errorf("ParseSignal(%q) = %d, %v, want %d", in, got, err, want)
		}
	}
}

func TestSignalListSetSkipsInvalid(t *testing.T) {
	l := SignalList{Signal(linux.SIGHUP), 0, 65, Signal(linux.SIGKILL)}
	if got, want := l.Set(), linux.MakeSignalSet(linux.SIGHUP, linux.SIGKILL); got != want {
		t.Errorf("Set() = %v, want %v", got, want)
	}
}
