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
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogrusEmitter emits log statements through a logrus logger. Level filtering
// is done by BasicLogger, so the logrus logger itself accepts everything.
type LogrusEmitter struct {
	Logger *logrus.Logger
}

// NewTextEmitter returns an emitter writing human readable lines to w.
func NewTextEmitter(w io.Writer) LogrusEmitter {
	return newLogrusEmitter(w, &logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "0102 15:04:05.000000",
	})
}

// NewJSONEmitter returns an emitter writing one JSON object per line to w.
func NewJSONEmitter(w io.Writer) LogrusEmitter {
	return newLogrusEmitter(w, &logrus.JSONFormatter{})
}

func newLogrusEmitter(w io.Writer, f logrus.Formatter) LogrusEmitter {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(f)
	l.SetLevel(logrus.TraceLevel)
	return LogrusEmitter{Logger: l}
}

// Emit implements Emitter.Emit.
func (e LogrusEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	entry := e.Logger.WithTime(timestamp)
	if _, file, line, ok := runtime.Caller(depth + 1); ok {
		if slash := strings.LastIndexByte(file, byte('/')); slash >= 0 {
			file = file[slash+1:] // Trim any directory path from the file.
		}
		entry = entry.WithField("caller", fmt.Sprintf("%s:%d", file, line))
	}
	entry.Logf(logrusLevel(level), format, v...)
}

func logrusLevel(level Level) logrus.Level {
	switch level {
	case Warning:
		return logrus.WarnLevel
	case Info:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}
