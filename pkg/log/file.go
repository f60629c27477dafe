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

// BuildPath expands the variables supported in log file patterns:
// %COMMAND% is replaced by command and %TIMESTAMP% by start in a file name
// friendly format. A pattern ending in '/' names a directory, and a default
// file name is appended.
func BuildPath(pattern, command string, start time.Time) string {
	if strings.HasSuffix(pattern, "/") {
		pattern += "mpboard.%TIMESTAMP%.%COMMAND%.log"
	}
	r := strings.NewReplacer(
		"%COMMAND%", command,
		"%TIMESTAMP%", start.Format("20060102-150405.000000"),
	)
	return r.Replace(pattern)
}

// OpenFile opens a log file for appending, creating parent directories as
// needed. An empty pattern returns a nil file and no error.
func OpenFile(pattern, command string, start time.Time) (*os.File, error) {
	if len(pattern) == 0 {
		return nil, nil
	}
	logPath := BuildPath(pattern, command, start)

	// Create parent directory if it doesn't exist.
	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0775); err != nil {
		return nil, fmt.Errorf("error creating dir %q: %w", dir, err)
	}

	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0664)
	if err != nil {
		return nil, fmt.Errorf("error opening file %q: %w", logPath, err)
	}
	return f, nil
}
