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

package log

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	want := []string{
		"line 1\n",
		"line 2\n",
		"\n*** Dropped 2 log messages ***\n",
	}
	if diff := cmp.Diff(want, tw.lines); diff != "" {
		t.Errorf("unexpected lines (-want +got):\n%s", diff)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := &BasicLogger{Level: Info, Emitter: &Writer{Next: &buf}}

	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)
	l.Warningf("shown %d", 3)
	if got, want := buf.String(), "shown 2\nshown 3\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	buf.Reset()
	l.SetLevel(Debug)
	l.Debugf("now shown")
	if got, want := buf.String(), "now shown\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestGoogleEmitterFormat(t *testing.T) {
	var buf bytes.Buffer
	e := GoogleEmitter{&Writer{Next: &buf}}
	ts := time.Date(2026, time.May, 7, 13, 4, 5, 6000, time.UTC)
	e.Emit(0, Warning, ts, "sig %d", 10)

	got := buf.String()
	if !strings.HasPrefix(got, "W0507 13:04:05.000006 ") {
		t.Errorf("unexpected header in %q", got)
	}
	if !strings.Contains(got, "log_test.go:") || !strings.HasSuffix(got, "] sig 10\n") {
		t.Errorf("unexpected caller or message in %q", got)
	}
}

func TestRateLimitedLogger(t *testing.T) {
	var buf bytes.Buffer
	base := &BasicLogger{Level: Debug, Emitter: &Writer{Next: &buf}}
	rl := RateLimitedLogger(base, time.Hour)
	for i := 0; i < 5; i++ {
		rl.Warningf("dropped %d", i)
	}
	if got, want := buf.String(), "dropped 0\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !rl.IsLogging(Debug) {
		t.Errorf("IsLogging should defer to the wrapped logger")
	}
}

func TestEmitterForFormat(t *testing.T) {
	for _, format := range []string{"", "text", "json", "logrus"} {
		if _, err := EmitterForFormat(&Writer{Next: &bytes.Buffer{}}, format); err != nil {
			t.Errorf("EmitterForFormat(%q) failed: %v", format, err)
		}
	}
	if _, err := EmitterForFormat(&Writer{Next: &bytes.Buffer{}}, "xml"); err == nil {
		t.Errorf("EmitterForFormat(xml) should fail")
	}
}

func TestLogrusEmitter(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	e := NewLogrusEmitter(l)
	e.Emit(0, Debug, time.Now(), "delivered %s", "SIGUSR1")

	got := buf.String()
	for _, want := range []string{`"level":"debug"`, `"msg":"delivered SIGUSR1"`, `"caller":"log_test.go:`} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q does not contain %q", got, want)
		}
	}
}
