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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// OpenFile opens a log file for appending. The following variables in
// logPattern are replaced: %TIMESTAMP% and %COMMAND%. An empty pattern
// returns a nil file and no error.
func OpenFile(logPattern, command string) (*os.File, error) {
	if len(logPattern) == 0 {
		return nil, nil
	}

	logPath := strings.ReplaceAll(logPattern, "%TIMESTAMP%", time.Now().Format("20060102-150405.000000"))
	logPath = strings.ReplaceAll(logPath, "%COMMAND%", command)

	// Create parent directory if it doesn't exist.
	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0775); err != nil {
		return nil, fmt.Errorf("error creating dir %q: %v", dir, err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0664)
	if err != nil {
		return nil, fmt.Errorf("error opening file %q: %v", logPath, err)
	}
	return f, nil
}

// EmitterForFormat returns an emitter writing to w in the given format: text,
// json or logrus.
func EmitterForFormat(w *Writer, format string) (Emitter, error) {
	switch format {
	case "text", "":
		return GoogleEmitter{w}, nil
	case "json":
		return JSONEmitter{w}, nil
	case "logrus":
		l := newLogrusLogger(w)
		return NewLogrusEmitter(l), nil
	default:
		return nil, fmt.Errorf("invalid log format %q, must be 'text', 'json' or 'logrus'", format)
	}
}
