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

package kernel

import (
	"time"

	"github.com/cenkalti/backoff"
	"gvisor.dev/sigkern/pkg/sync"
)

// Scheduler is the yield primitive used by blocking syscalls. Callers never
// hold a lock across Yield.
type Scheduler interface {
	// Yield gives up the CPU on behalf of t.
	Yield(t *Task)

	// Reset is called when t stops waiting, so that per-task state can be
	// discarded.
	Reset(t *Task)
}

// GoScheduler yields to the Go runtime scheduler.
type GoScheduler struct{}

// Yield implements Scheduler.Yield.
func (GoScheduler) Yield(*Task) {
	sync.Goyield()
}

// Reset implements Scheduler.Reset.
func (GoScheduler) Reset(*Task) {}

// BackoffScheduler sleeps for an exponentially increasing interval on each
// consecutive Yield by the same task, up to MaxInterval. It trades wakeup
// latency for CPU when many tasks wait in sigsuspend.
type BackoffScheduler struct {
	// InitialInterval is the first sleep duration.
	InitialInterval time.Duration

	// MaxInterval caps the sleep duration.
	MaxInterval time.Duration

	mu sync.Mutex

	// +checklocks:mu
	waiters map[ThreadID]*backoff.ExponentialBackOff
}

// NewBackoffScheduler returns a BackoffScheduler with the given bounds.
func NewBackoffScheduler(initial, maxInterval time.Duration) *BackoffScheduler {
	return &BackoffScheduler{
		InitialInterval: initial,
		MaxInterval:     maxInterval,
		waiters:         make(map[ThreadID]*backoff.ExponentialBackOff),
	}
}

func (s *BackoffScheduler) backoffFor(tid ThreadID) *backoff.ExponentialBackOff {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.waiters[tid]; ok {
		return b
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.InitialInterval
	b.MaxInterval = s.MaxInterval
	// Never give up: sigsuspend has no timeout.
	b.MaxElapsedTime = 0
	b.Reset()
	s.waiters[tid] = b
	return b
}

// Yield implements Scheduler.Yield.
func (s *BackoffScheduler) Yield(t *Task) {
	d := s.backoffFor(t.tid).NextBackOff()
	if d == backoff.Stop || d <= 0 {
		sync.Goyield()
		return
	}
	time.Sleep(d)
}

// Reset implements Scheduler.Reset.
func (s *BackoffScheduler) Reset(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiters, t.tid)
}

// Waiters returns the number of tasks with backoff state.
func (s *BackoffScheduler) Waiters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}
