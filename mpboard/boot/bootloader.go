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

package boot

import (
	"gvisor.dev/mpboard/pkg/hal"
	"gvisor.dev/mpboard/pkg/log"
)

// BootloaderMagic tells the bootloader to stay in DFU mode instead of
// starting the kernel. The bootloader reads it from GPREGRET after reset.
const BootloaderMagic = 0x90

// BootloaderBaud is the CDC line rate at which a host asks for the
// bootloader.
const BootloaderBaud = 1200

// EnterBootloader writes BootloaderMagic to the retained register and
// resets the system.
func EnterBootloader(reg hal.RetainedRegister, r hal.Resetter) {
	log.Infof("Entering bootloader")
	reg.SetGPRegRet(BootloaderMagic)
	r.Reset()
}
