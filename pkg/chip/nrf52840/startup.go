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

	"gvisor.dev/mpboard/pkg/log"
)

// StartupConfig is the reset and power configuration shared by nRF boards.
type StartupConfig struct {
	// ResetPinEnabled routes the pin reset to ResetPin.
	ResetPinEnabled bool

	// ResetPin is the pin wired to the reset button.
	ResetPin Pin

	// Regulator is the REG0 output voltage.
	Regulator Regulator0Output
}

// Apply writes the configuration into UICR. It returns true if the part
// must be reset for the change to take effect.
func (c StartupConfig) Apply(nvmc *NVMC) (bool, error) {
	changed, err := nvmc.UpdateUICR(func(u *UICR) {
		if c.ResetPinEnabled {
			u.PSELReset = [2]int32{int32(c.ResetPin), int32(c.ResetPin)}
		}
		u.Regulator0 = c.Regulator
	})
	if err != nil {
		return false, fmt.Errorf("applying startup config: %w", err)
	}
	if changed {
		log.Infof("UICR updated (reset pin enabled=%t pin=%v regulator=%d); reset required", c.ResetPinEnabled, c.ResetPin, c.Regulator)
	}
	return changed, nil
}
