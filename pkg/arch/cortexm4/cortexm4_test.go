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

package cortexm4

import (
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"
)

func TestSysTick(t *testing.T) {
	s := NewWithCalibration(64 * physic.MegaHertz)
	if _, ok := s.Remaining(); ok {
		t.Errorf("Remaining on stopped timer reported time left")
	}
	s.Start(10 * time.Millisecond)
	s.Arm()
	if fired := s.Elapse(4 * time.Millisecond); fired {
		t.Errorf("Elapse(4ms) of 10ms fired")
	}
	if got, ok := s.Remaining(); !ok || got != 6*time.Millisecond {
		t.Errorf("Remaining = %v, %t; want 6ms, true", got, ok)
	}
	if fired := s.Elapse(6 * time.Millisecond); !fired {
		t.Errorf("Elapse to expiry did not fire")
	}
	if _, ok := s.Remaining(); ok {
		t.Errorf("Remaining after expiry reported time left")
	}
}

func TestSysTickDisarmed(t *testing.T) {
	s := NewWithCalibration(64 * physic.MegaHertz)
	s.Start(time.Millisecond)
	if fired := s.Elapse(time.Second); fired {
		t.Errorf("disarmed timer fired")
	}
}

func TestSysTickClamp(t *testing.T) {
	s := NewWithCalibration(64 * physic.MegaHertz)
	s.Start(time.Second)
	got, _ := s.Remaining()
	if want := time.Duration(maxReload) * time.Second / 64000000; got != want {
		t.Errorf("Remaining after clamp = %v, want %v", got, want)
	}
}

func TestSCBReset(t *testing.T) {
	called := 0
	scb := NewSCB(func() { called++ })
	scb.Reset()
	if called != 1 || scb.Resets() != 1 {
		t.Errorf("handler called %d times, Resets() = %d; want 1, 1", called, scb.Resets())
	}
}
