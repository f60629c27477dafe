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

package capsules

import (
	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/hal"
	"gvisor.dev/mpboard/pkg/kernel"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// ADC commands.
const (
	adcChannels = 0
	adcSample   = 1
)

// adcSingleSample is the first upcall argument for a single sample.
const adcSingleSample = 0

// ADC samples analog channels. A sample is delivered as upcall 0 with
// (mode, channel, value) where value is left-aligned to 16 bits.
type ADC struct {
	adc  hal.ADC
	apps *grantTable[struct{}]
}

var _ kernel.Driver = (*ADC)(nil)

// NewADC returns a driver for adc.
func NewADC(adc hal.ADC, g *kernel.Grant) *ADC {
	return &ADC{adc: adc, apps: newGrantTable[struct{}](g)}
}

// Command implements kernel.Driver.Command. Command 0 returns the number of
// channels.
func (a *ADC) Command(cmd, arg1, _ uint32, pid process.ID) tock.CommandReturn {
	switch cmd {
	case adcChannels:
		return tock.SuccessU32(uint32(a.adc.Channels()))
	case adcSample:
		if a.apps.get(pid) == nil {
			return tock.Failure(tock.FAIL)
		}
		if int(arg1) >= a.adc.Channels() {
			return tock.Failure(tock.INVAL)
		}
		v, err := a.adc.Sample(int(arg1))
		if err != nil {
			return tock.Failure(tock.FAIL)
		}
		a.apps.schedule(pid, 0, adcSingleSample, arg1, uint32(v)<<4)
		return tock.Success()
	default:
		return tock.Failure(tock.NOSUPPORT)
	}
}
