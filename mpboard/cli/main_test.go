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

package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/subcommands"
	"gvisor.dev/mpboard/pkg/log"
)

func TestCommands(t *testing.T) {
	var got []string
	forEachCmd(func(c subcommands.Command, _ string) {
		got = append(got, c.Name())
	})
	want := []string{"help", "flags", "boot", "drivers", "regions", "memusage"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestEmitter(t *testing.T) {
	for _, tc := range []struct {
		format string
		want   string
	}{
		{format: "text", want: "msg=\"hello 42\""},
		{format: "json", want: `"msg":"hello 42"`},
	} {
		t.Run(tc.format, func(t *testing.T) {
			var buf bytes.Buffer
			e := newEmitter(tc.format, &buf)
			e.Emit(0, log.Info, time.Now(), "hello %d", 42)
			if !strings.Contains(buf.String(), tc.want) {
				t.Errorf("output %q does not contain %q", buf.String(), tc.want)
			}
		})
	}
}
