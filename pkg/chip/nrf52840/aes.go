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
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"sync"

	"gvisor.dev/mpboard/pkg/hal"
)

// AESECB is the AES electronic codebook engine.
type AESECB struct {
	nvic *NVIC

	mu     sync.Mutex
	block  cipher.Block
	client func()
}

var _ hal.AES128 = (*AESECB)(nil)

// SetKey implements hal.AES128.SetKey.
func (e *AESECB) SetKey(key []byte) error {
	if len(key) != aes.BlockSize {
		return fmt.Errorf("ecb: key must be %d bytes, got %d", aes.BlockSize, len(key))
	}
	b, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.block = b
	e.mu.Unlock()
	return nil
}

// Encrypt implements hal.AES128.Encrypt. Completion is signalled to the
// client through the ECB interrupt.
func (e *AESECB) Encrypt(dst, src []byte) error {
	e.mu.Lock()
	b := e.block
	e.mu.Unlock()
	if b == nil {
		return fmt.Errorf("ecb: no key")
	}
	if len(src) != aes.BlockSize || len(dst) < aes.BlockSize {
		return fmt.Errorf("ecb: bad block length")
	}
	b.Encrypt(dst, src)
	e.nvic.Raise(IRQECB)
	return nil
}

// SetClient registers fn to be called when an operation completes.
func (e *AESECB) SetClient(fn func()) {
	e.mu.Lock()
	e.client = fn
	e.mu.Unlock()
}

func (e *AESECB) handleInterrupt() {
	e.mu.Lock()
	fn := e.client
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}
