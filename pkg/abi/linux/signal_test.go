// Copyright 2026 The gVisor Authors.
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

package linux

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSigActionWireLayout(t *testing.T) {
	act := SigAction{
		Handler:  0x1122334455667788,
		Flags:    SA_RESTORER | SA_SIGINFO,
		Restorer: 0xdeadbeef,
		Mask:     MakeSignalSet(SIGINT, SIGUSR1),
	}
	buf := make([]byte, act.SizeBytes())
	if rest := act.MarshalBytes(buf); len(rest) != 0 {
		t.Fatalf("MarshalBytes left %d bytes", len(rest))
	}
	want := []byte{
		0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11, // handler
		0x04, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00, // flags
		0xef, 0xbe, 0xad, 0xde, 0x00, 0x00, 0x00, 0x00, // restorer
		0x02, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // mask: bits 1 and 9
	}
	if !bytes.Equal(buf, want) {
		t.Fatalf("MarshalBytes = %x, want %x", buf, want)
	}

	var got SigAction
	got.UnmarshalBytes(buf)
	if diff := cmp.Diff(act, got); diff != "" {
		t.Errorf("UnmarshalBytes mismatch (-want +got):\n%s", diff)
	}
}

func TestSignalSetLowest(t *testing.T) {
	for _, tc := range []struct {
		set    SignalSet
		want   Signal
		wantOK bool
	}{
		{0, 0, false},
		{SignalSetOf(SIGHUP), SIGHUP, true},
		{MakeSignalSet(SIGTERM, SIGUSR1), SIGUSR1, true},
		{SignalSetOf(Signal(SignalMaximum)), Signal(SignalMaximum), true},
	} {
		got, ok := tc.set.Lowest()
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("%v.Lowest() = %v, %v, want %v, %v", tc.set, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestForEachSignal(t *testing.T) {
	var got []Signal
	ForEachSignal(MakeSignalSet(SIGTERM, SIGHUP, SIGKILL), func(sig Signal) {
		got = append(got, sig)
	})
	if diff := cmp.Diff([]Signal{SIGHUP, SIGKILL, SIGTERM}, got); diff != "" {
		t.Errorf("ForEachSignal mismatch (-want +got):\n%s", diff)
	}
}

func TestSignalString(t *testing.T) {
	for sig, want := range map[Signal]string{
		SIGKILL:       "SIGKILL",
		SIGUSR1:       "SIGUSR1",
		SIGSTKFLT:     "SIGSTKFLT",
		SIGPWR:        "SIGPWR",
		SIGSYS:        "SIGSYS",
		FirstRTSignal: "SIGRT0",
		0:             "signal 0",
		65:            "signal 65",
	} {
		if got := sig.String(); got != want {
			t.Errorf("Signal(%d).String() = %q, want %q", int(sig), got, want)
		}
	}
}

func TestSignalByName(t *testing.T) {
	for sig := Signal(FirstStdSignal); sig <= LastStdSignal; sig++ {
		got, ok := SignalByName(sig.String())
		if !ok || got != sig {
			t.Errorf("SignalByName(%q) = (%d, %t), want (%d, true)", sig.String(), got, ok, sig)
		}
	}
	for name, want := range map[string]Signal{"SIGIOT": SIGABRT, "SIGCLD": SIGCHLD, "SIGPOLL": SIGIO} {
		if got, ok := SignalByName(name); !ok || got != want {
			t.Errorf("SignalByName(%q) = (%d, %t), want (%d, true)", name, got, ok, want)
		}
	}
	if _, ok := SignalByName("SIGINFO"); ok {
		t.Errorf("SignalByName(SIGINFO) succeeded")
	}
}

func TestDefaultAction(t *testing.T) {
	for _, tc := range []struct {
		sig   Signal
		want  SignalDefault
		fatal bool
	}{
		{SIGHUP, SignalDefaultTerminate, true},
		{SIGKILL, SignalDefaultTerminate, true},
		{SIGSEGV, SignalDefaultCoreDump, true},
		{SIGCHLD, SignalDefaultIgnore, false},
		{SIGTSTP, SignalDefaultStop, false},
		{SIGCONT, SignalDefaultContinue, false},
		{FirstRTSignal + 3, SignalDefaultTerminate, true},
	} {
		got := DefaultAction(tc.sig)
		if got != tc.want {
			t.Errorf("DefaultAction(%v) = %v, want %v", tc.sig, got, tc.want)
		}
		if got.IsFatal() != tc.fatal {
			t.Errorf("DefaultAction(%v).IsFatal() = %t, want %t", tc.sig, got.IsFatal(), tc.fatal)
		}
	}
}
