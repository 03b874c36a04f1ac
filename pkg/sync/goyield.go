// Copyright 2026 The gVisor Authors.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file or at
// https://developers.google.com/open-source/licenses/bsd.

package sync

import (
	"runtime"
)

// Goyield gives up the processor to other goroutines, placing the caller back
// on a run queue. It is the cooperative yield point used by kernel loops that
// wait for state owned by other goroutines.
//
// The caller must not hold any kernel locks.
func Goyield() {
	runtime.Gosched()
}
