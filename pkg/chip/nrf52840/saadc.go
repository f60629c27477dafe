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

package nrf52840

import (
	"fmt"
	"sync"
)

// AnalogInput is a SAADC input pin.
type AnalogInput uint8

// Analog inputs.
const (
	AnalogInput0 AnalogInput = iota
	AnalogInput1
	AnalogInput2
	AnalogInput3
	AnalogInput4
	AnalogInput5
	AnalogInput6
	AnalogInput7
	NumAnalogInputs
)

// String implements fmt.Stringer.
func (a AnalogInput) String() string {
	return fmt.Sprintf("AIN%d", uint8(a))
}

// SAADC is the successive approximation ADC. Input levels are set with
// SetInput; readings are 12 bit.
type SAADC struct {
	mu         sync.Mutex
	calibrated bool
	inputs     [NumAnalogInputs]uint16
	channels   []AnalogInput
}

// Calibrate runs offset calibration.
func (a *SAADC) Calibrate() {
	a.mu.Lock()
	a.calibrated = true
	a.mu.Unlock()
}

// Calibrated returns true after Calibrate.
func (a *SAADC) Calibrated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calibrated
}

// SetInput sets the level seen on an analog input.
func (a *SAADC) SetInput(in AnalogInput, v uint16) {
	a.mu.Lock()
	a.inputs[in] = v & 0x0fff
	a.mu.Unlock()
}

// SetupChannels maps logical channels, in order, to analog inputs.
func (a *SAADC) SetupChannels(inputs ...AnalogInput) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.channels = append(a.channels[:0], inputs...)
}

// Channels implements hal.ADC.Channels.
func (a *SAADC) Channels() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.channels)
}

// Sample implements hal.ADC.Sample.
func (a *SAADC) Sample(ch int) (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ch < 0 || ch >= len(a.channels) {
		return 0, fmt.Errorf("no ADC channel %d", ch)
	}
	return a.inputs[a.channels[ch]], nil
}
