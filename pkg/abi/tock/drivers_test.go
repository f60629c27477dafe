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

package tock

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAllDriversSorted(t *testing.T) {
	want := []DriverNum{
		DriverAlarm,
		DriverConsole,
		DriverLED,
		DriverButton,
		DriverGPIO,
		DriverADC,
		DriverIPC,
		DriverBLEAdvertising,
		DriverIEEE802154,
		DriverUDP,
		DriverRNG,
		DriverScreen,
	}
	if diff := cmp.Diff(want, AllDrivers()); diff != "" {
		t.Errorf("AllDrivers() mismatch (-want +got):\n%s", diff)
	}
}

func TestDriverNames(t *testing.T) {
	for _, d := range AllDrivers() {
		got, ok := DriverByName(d.String())
		if !ok || got != d {
			t.Errorf("DriverByName(%q) = %v, %v; want %v, true", d.String(), got, ok, d)
		}
	}
	if DriverNum(0x90002).Known() {
		t.Errorf("0x90002 reported as known")
	}
	if got, want := DriverNum(0x90002).String(), "DriverNum(0x90002)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestCommandReturn(t *testing.T) {
	for _, tc := range []struct {
		r    CommandReturn
		ok   bool
		want string
	}{
		{r: Success(), ok: true, want: "Success"},
		{r: SuccessU32(7), ok: true, want: "SuccessU32(7)"},
		{r: SuccessU32U32(1, 2), ok: true, want: "SuccessU32U32(1, 2)"},
		{r: Failure(NODEVICE), ok: false, want: "Failure(NODEVICE)"},
	} {
		if got := tc.r.IsSuccess(); got != tc.ok {
			t.Errorf("%v.IsSuccess() = %v, want %v", tc.r, got, tc.ok)
		}
		if got := tc.r.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}
