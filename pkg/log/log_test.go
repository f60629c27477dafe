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
	if got := w.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	want := []string{
		"line 1\n",
		"\n*** Dropped 2 log messages ***\n",
		"line 2\n",
	}
	if diff := cmp.Diff(want, tw.lines); diff != "" {
		t.Errorf("Writer output mismatch (-want +got):\n%s", diff)
	}
	if got := w.Dropped(); got != 0 {
		t.Errorf("Dropped() = %d after recovery, want 0", got)
	}
}

type recordingEmitter struct {
	msgs []string
}

func (r *recordingEmitter) Emit(_ int, level Level, _ time.Time, format string, v ...any) {
	r.msgs = append(r.msgs, level.String()+": "+fmt.Sprintf(format, v...))
}

func TestLevelFiltering(t *testing.T) {
	e := &recordingEmitter{}
	l := &BasicLogger{Level: Info, Emitter: e}
	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)
	l.Warningf("shown %d", 3)

	want := []string{"Info: shown 2", "Warning: shown 3"}
	if diff := cmp.Diff(want, e.msgs); diff != "" {
		t.Errorf("emitted messages mismatch (-want +got):\n%s", diff)
	}

	l.SetLevel(Debug)
	if !l.IsLogging(Debug) {
		t.Errorf("IsLogging(Debug) = false after SetLevel(Debug)")
	}
}

func TestRateLimitedLogger(t *testing.T) {
	e := &recordingEmitter{}
	l := RateLimitedLogger(&BasicLogger{Level: Debug, Emitter: e}, time.Hour, 2)
	for i := 0; i < 10; i++ {
		l.Warningf("fault %d", i)
	}
	want := []string{"Warning: fault 0", "Warning: fault 1"}
	if diff := cmp.Diff(want, e.msgs); diff != "" {
		t.Errorf("rate limited output mismatch (-want +got):\n%s", diff)
	}
}

func TestTextEmitter(t *testing.T) {
	var buf bytes.Buffer
	l := &BasicLogger{Level: Info, Emitter: NewTextEmitter(&buf)}
	l.Infof("booted %s", "board")
	out := buf.String()
	for _, want := range []string{"booted board", "level=info", "log_test.go:"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output %q does not contain %q", out, want)
		}
	}
}

func TestJSONEmitter(t *testing.T) {
	var buf bytes.Buffer
	l := &BasicLogger{Level: Info, Emitter: NewJSONEmitter(&buf)}
	l.Warningf("fault in %q", "blink")
	out := buf.String()
	for _, want := range []string{`"level":"warning"`, `fault in \"blink\"`} {
		if !strings.Contains(out, want) {
			t.Errorf("json output %q does not contain %q", out, want)
		}
	}
}

func TestBuildPath(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, tc := range []struct {
		pattern string
		want    string
	}{
		{pattern: "/tmp/boot.log", want: "/tmp/boot.log"},
		{pattern: "/tmp/%COMMAND%.log", want: "/tmp/boot.log"},
		{pattern: "/tmp/logs/", want: "/tmp/logs/mpboard.20260102-030405.000000.boot.log"},
	} {
		if got := BuildPath(tc.pattern, "boot", start); got != tc.want {
			t.Errorf("BuildPath(%q) = %q, want %q", tc.pattern, got, tc.want)
		}
	}
}
