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

import "sync/atomic"

// ResetHandler is called when software requests a system reset.
type ResetHandler func()

// SCB is the System Control Block.
type SCB struct {
	handler ResetHandler
	resets  atomic.Int32
}

// NewSCB returns an SCB that calls h on reset.
func NewSCB(h ResetHandler) *SCB {
	return &SCB{handler: h}
}

// Reset requests a system reset (AIRCR.SYSRESETREQ).
func (s *SCB) Reset() {
	s.resets.Add(1)
	if s.handler != nil {
		s.handler()
	}
}

// Resets returns the number of resets requested.
func (s *SCB) Resets() int {
	return int(s.resets.Load())
}
