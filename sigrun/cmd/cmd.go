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

// Package cmd holds implementations of the sigrun commands.
package cmd

import (
	"fmt"
	"io"
	"os"

	"gvisor.dev/sigkern/pkg/log"
)

// ErrorLogger is where error messages should be written to. These messages
// are consumed by the caller and may be attached to a test report.
var ErrorLogger io.Writer = os.Stderr

// Errorf logs error to the log target and ErrorLogger.
func Errorf(format string, args ...any) {
	// Don't use log.Warningf: its depth is wrong here.
	log.Log().WarningfAtDepth(1, format, args...)
	fmt.Fprintf(ErrorLogger, format+"\n", args...)
}

// Fatalf logs to Errorf and exits with error code 128, a code unlikely to
// come from the emulated process.
func Fatalf(format string, args ...any) {
	Errorf(format, args...)
	os.Exit(128)
}
