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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newFlags(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(testFlags)
	if err := testFlags.Parse(args); err != nil {
		t.Fatalf("Parse(%v): %v", args, err)
	}
	return testFlags
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "board.toml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newFlags(t))
	if err != nil {
		t.Fatal(err)
	}
	if flags := c.ToFlags(); len(flags) > 0 {
		t.Errorf("default flags not set correctly for: %s", flags)
	}
	if c.NumProcs != 8 || c.FaultPolicy != FaultStopWithDebug || c.ConsoleBaud != 115200 {
		t.Errorf("unexpected kernel defaults: %+v", c)
	}
	if c.PANID != 0xABCD || c.DstMAC != 49138 || c.USBVendorID != 0x2341 || c.USBProductID != 0x005a {
		t.Errorf("unexpected peripheral defaults: %+v", c)
	}
	if diff := cmp.Diff(DefaultRegions(), c.Regions); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}
}

func TestFromFlags(t *testing.T) {
	c, err := NewFromFlags(newFlags(t, "--debug", "--num-procs=4", "--fault-policy=restart", "--pan-id=0x1234"))
	if err != nil {
		t.Fatal(err)
	}
	if want := true; c.Debug != want {
		t.Errorf("Debug=%v, want: %v", c.Debug, want)
	}
	if want := 4; c.NumProcs != want {
		t.Errorf("NumProcs=%v, want: %v", c.NumProcs, want)
	}
	if want := FaultRestart; c.FaultPolicy != want {
		t.Errorf("FaultPolicy=%v, want: %v", c.FaultPolicy, want)
	}
	if want := uint(0x1234); c.PANID != want {
		t.Errorf("PANID=%#x, want: %#x", c.PANID, want)
	}
	want := []string{"--debug=true", "--num-procs=4", "--fault-policy=restart", "--pan-id=4660"}
	if diff := cmp.Diff(want, c.ToFlags()); diff != "" {
		t.Errorf("ToFlags mismatch (-want +got):\n%s", diff)
	}
}

func TestFileBeneathFlags(t *testing.T) {
	path := writeConfig(t, `
num_procs = 2
fault_policy = "panic"
channel = 15

[memory]
app_flash_start = 0x50000
app_flash_end = 0x60000
app_mem_start = 0x20010000
app_mem_end = 0x20020000

[[region]]
app = "solo"
width = 128
height = 64
`)
	c, err := NewFromFlags(newFlags(t, "--config="+path, "--num-procs=6"))
	if err != nil {
		t.Fatal(err)
	}
	if c.NumProcs != 6 {
		t.Errorf("NumProcs=%d, want the flag value 6", c.NumProcs)
	}
	if c.FaultPolicy != FaultPanic || c.Channel != 15 {
		t.Errorf("file values not applied: policy %v channel %d", c.FaultPolicy, c.Channel)
	}
	wantMem := Memory{AppFlashStart: 0x50000, AppFlashEnd: 0x60000, AppMemStart: 0x20010000, AppMemEnd: 0x20020000}
	if diff := cmp.Diff(wantMem, c.Memory); diff != "" {
		t.Errorf("memory mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Region{{App: "solo", Width: 128, Height: 64}}, c.Regions); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
		file string
		want string
	}{
		{name: "procs", args: []string{"--num-procs=0"}, want: "num-procs"},
		{name: "log format", args: []string{"--log-format=xml"}, want: "log format"},
		{name: "channel", args: []string{"--channel=5"}, want: "channel"},
		{name: "pan", args: []string{"--pan-id=0x10000"}, want: "16 bit"},
		{name: "unknown key", file: "bogus = 1\n", want: "unknown keys"},
		{
			name: "overlapping regions",
			file: "[[region]]\napp = \"a\"\nwidth = 64\nheight = 64\n[[region]]\napp = \"b\"\nx = 32\nwidth = 64\nheight = 64\n",
			want: "invalid display regions",
		},
		{
			name: "off screen",
			file: "[[region]]\napp = \"a\"\nx = 100\nwidth = 64\nheight = 64\n",
			want: "invalid display regions",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			args := tc.args
			if tc.file != "" {
				args = append(args, "--config="+writeConfig(t, tc.file))
			}
			_, err := NewFromFlags(newFlags(t, args...))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("NewFromFlags(%v) = %v, want error containing %q", args, err, tc.want)
			}
		})
	}
}

func TestFaultPolicy(t *testing.T) {
	for _, name := range []string{"stop-debug", "stop", "restart", "panic"} {
		var p FaultPolicy
		if err := p.Set(name); err != nil {
			t.Errorf("Set(%q): %v", name, err)
			continue
		}
		if got := p.String(); got != name {
			t.Errorf("String() = %q, want %q", got, name)
		}
	}
	var p FaultPolicy
	if err := p.Set("ignore"); err == nil {
		t.Errorf("Set(ignore) succeeded")
	}
}
