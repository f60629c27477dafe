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
	"errors"
	"fmt"
	"sync"

	"gvisor.dev/mpboard/pkg/hal"
)

const (
	// ACKBufSize is the size of the IEEE 802.15.4 acknowledgement buffer.
	ACKBufSize = 6

	// MaxFrameSize is the largest IEEE 802.15.4 PSDU.
	MaxFrameSize = 127

	// ackWaitMicros is how long the radio waits for an acknowledgement.
	ackWaitMicros = 864

	// airLogSize is the number of transmitted packets remembered.
	airLogSize = 16
)

// Packet is a packet seen on the air.
type Packet struct {
	Kind    string
	Channel int
	Data    []byte
}

// Air remembers the most recent packets transmitted by the radios.
type Air struct {
	mu    sync.Mutex
	ring  [airLogSize]Packet
	next  int
	count int
}

func (a *Air) record(kind string, channel int, data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ring[a.next] = Packet{Kind: kind, Channel: channel, Data: append([]byte(nil), data...)}
	a.next = (a.next + 1) % airLogSize
	a.count++
}

// Packets returns the remembered packets, oldest first.
func (a *Air) Packets() []Packet {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.count
	if n > airLogSize {
		n = airLogSize
	}
	out := make([]Packet, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, a.ring[(a.next-n+i+airLogSize)%airLogSize])
	}
	return out
}

// Count returns the number of packets ever transmitted.
func (a *Air) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// BLERadio is the radio in Bluetooth Low Energy mode.
type BLERadio struct {
	air *Air
}

var _ hal.BLERadio = (*BLERadio)(nil)

// Advertise implements hal.BLERadio.Advertise.
func (r *BLERadio) Advertise(channel int, payload []byte) error {
	if channel < 37 || channel > 39 {
		return fmt.Errorf("ble: %d is not an advertising channel", channel)
	}
	if len(payload) > 31 {
		return fmt.Errorf("ble: advertising payload of %d bytes exceeds 31", len(payload))
	}
	r.air.record("ble", channel, payload)
	return nil
}

// Frame control bits.
const (
	frameTypeMask = 0x7
	frameTypeAck  = 0x2
	frameAckReq   = 1 << 5
)

// IEEE802154Radio is the radio in IEEE 802.15.4 mode.
type IEEE802154Radio struct {
	nvic   *NVIC
	air    *Air
	ackBuf []byte
	timer  *Timer
	aes    *AESECB

	mu        sync.Mutex
	pan       uint16
	short     uint16
	long      [8]byte
	channel   int
	awaitSeq  int
	txPending bool
	txAcked   bool
	rxFrame   [MaxFrameSize]byte
	rxLen     int
	rxClient  func([]byte)
	txClient  func(acked bool)
	cryptDone int
}

var _ hal.Radio802154 = (*IEEE802154Radio)(nil)

// ErrBusy is returned when a transmission is already in progress.
var ErrBusy = errors.New("radio busy")

// Configure implements hal.Radio802154.Configure.
func (r *IEEE802154Radio) Configure(pan, short uint16, long [8]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pan, r.short, r.long = pan, short, long
}

// Config returns the PAN and addresses.
func (r *IEEE802154Radio) Config() (pan, short uint16, long [8]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pan, r.short, r.long
}

// SetChannel selects the channel, 11 to 26.
func (r *IEEE802154Radio) SetChannel(ch int) error {
	if ch < 11 || ch > 26 {
		return fmt.Errorf("802.15.4: no channel %d", ch)
	}
	r.mu.Lock()
	r.channel = ch
	r.mu.Unlock()
	return nil
}

// Channel returns the channel.
func (r *IEEE802154Radio) Channel() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channel
}

// SetTransmitClient registers fn to be called when a transmission
// completes.
func (r *IEEE802154Radio) SetTransmitClient(fn func(acked bool)) {
	r.mu.Lock()
	r.txClient = fn
	r.mu.Unlock()
}

// SetReceiveClient implements hal.Radio802154.SetReceiveClient.
func (r *IEEE802154Radio) SetReceiveClient(fn func([]byte)) {
	r.mu.Lock()
	r.rxClient = fn
	r.mu.Unlock()
}

// Transmit implements hal.Radio802154.Transmit. Frames that request an
// acknowledgement wait for one on TIMER0.
func (r *IEEE802154Radio) Transmit(frame []byte) error {
	if len(frame) < 3 || len(frame) > MaxFrameSize {
		return fmt.Errorf("802.15.4: bad frame length %d", len(frame))
	}
	r.mu.Lock()
	if r.txPending {
		r.mu.Unlock()
		return ErrBusy
	}
	r.txPending = true
	r.txAcked = false
	ackReq := frame[0]&frameAckReq != 0
	if ackReq {
		r.awaitSeq = int(frame[2])
	} else {
		r.awaitSeq = -1
	}
	ch := r.channel
	r.mu.Unlock()

	r.air.record("802.15.4", ch, frame)
	if ackReq {
		r.timer.Start(ackWaitMicros)
	} else {
		r.nvic.Raise(IRQRadio)
	}
	return nil
}

// Deliver models a frame arriving from the air. Acknowledgements are kept
// in the ACK buffer; other frames go to the receive client.
func (r *IEEE802154Radio) Deliver(frame []byte) {
	if len(frame) < 3 || len(frame) > MaxFrameSize {
		return
	}
	r.mu.Lock()
	if frame[0]&frameTypeMask == frameTypeAck {
		n := copy(r.ackBuf, frame)
		if r.txPending && r.awaitSeq == int(r.ackBuf[2]) && n >= 3 {
			r.txAcked = true
			r.timer.Stop()
		}
	} else {
		r.rxLen = copy(r.rxFrame[:], frame)
	}
	r.mu.Unlock()
	r.nvic.Raise(IRQRadio)
}

func (r *IEEE802154Radio) finishTx() {
	r.mu.Lock()
	if !r.txPending {
		r.mu.Unlock()
		return
	}
	acked := r.txAcked || r.awaitSeq < 0
	r.txPending = false
	fn := r.txClient
	r.mu.Unlock()
	if fn != nil {
		fn(acked)
	}
}

// ackTimeout is the TIMER0 client.
func (r *IEEE802154Radio) ackTimeout() {
	r.finishTx()
}

// cryptComplete is the ECB client.
func (r *IEEE802154Radio) cryptComplete() {
	r.mu.Lock()
	r.cryptDone++
	r.mu.Unlock()
}

func (r *IEEE802154Radio) handleInterrupt() {
	r.mu.Lock()
	var rx []byte
	if r.rxLen > 0 {
		rx = append([]byte(nil), r.rxFrame[:r.rxLen]...)
		r.rxLen = 0
	}
	acked := r.txPending && (r.awaitSeq < 0 || r.txAcked)
	fn := r.rxClient
	r.mu.Unlock()
	if acked {
		r.finishTx()
	}
	if rx != nil && fn != nil {
		fn(rx)
	}
}
