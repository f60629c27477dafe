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
	"crypto/rand"
	"io"
	"sync"

	"gvisor.dev/mpboard/pkg/hal"
)

// TRNG is the random number generator. Bytes come from Source, which
// defaults to the host's cryptographic generator.
type TRNG struct {
	mu     sync.Mutex
	Source io.Reader
}

var _ hal.Entropy = (*TRNG)(nil)

// Read implements hal.Entropy.Read.
func (t *TRNG) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	src := t.Source
	if src == nil {
		src = rand.Reader
	}
	return io.ReadFull(src, p)
}
