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
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

func newTestChip(t *testing.T) *Chip {
	t.Helper()
	p := NewPeripherals(make([]byte, ACKBufSize))
	p.Init()
	return NewChip(p)
}

func TestInitResolvesReferences(t *testing.T) {
	p := NewPeripherals(make([]byte, ACKBufSize))
	if p.IEEE802154.timer != nil || p.Usbd.power != nil || p.Power.usbd != nil || p.IEEE802154.aes != nil {
		t.Fatalf("references wired before Init")
	}
	p.Init()
	if p.IEEE802154.timer != p.Timer0 {
		t.Errorf("radio timer not wired to TIMER0")
	}
	if p.Usbd.power != p.Power || p.Power.usbd != p.Usbd {
		t.Errorf("USBD and POWER not wired to each other")
	}
	if p.IEEE802154.aes != p.ECB {
		t.Errorf("radio not wired to the AES engine")
	}
}

func TestInitTwicePanics(t *testing.T) {
	p := NewPeripherals(make([]byte, ACKBufSize))
	p.Init()
	defer func() {
		if recover() == nil {
			t.Errorf("second Init did not panic")
		}
	}()
	p.Init()
}

func TestNewChipBeforeInitPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("NewChip before Init did not panic")
		}
	}()
	NewChip(NewPeripherals(make([]byte, ACKBufSize)))
}

func TestRTCAlarmFastForward(t *testing.T) {
	c := newTestChip(t)
	rtc := c.p.RTC
	rtc.Start()
	fired := 0
	rtc.SetAlarmClient(func() { fired++ })
	rtc.SetAlarm(rtc.Now(), 3277)
	c.Sleep()
	if !c.HasPendingInterrupts() {
		t.Fatalf("alarm did not raise an interrupt")
	}
	c.ServicePendingInterrupts()
	if fired != 1 {
		t.Errorf("alarm client called %d times, want 1", fired)
	}
	if got := rtc.Now(); got != 3277 {
		t.Errorf("counter = %d, want 3277", got)
	}
	if rtc.IsArmed() {
		t.Errorf("alarm still armed after firing")
	}
}

func TestRTCAlarmInPast(t *testing.T) {
	c := newTestChip(t)
	c.p.RTC.Start()
	c.p.RTC.Advance(100)
	c.p.RTC.SetAlarm(0, 50)
	if !c.HasPendingInterrupts() {
		t.Errorf("alarm in the past did not fire immediately")
	}
}

func TestGPIOTE(t *testing.T) {
	c := newTestChip(t)
	pin := c.p.GPIO.At(P1_15)
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		t.Fatalf("In: %v", err)
	}
	events := 0
	c.p.GPIOTE.SetClient(P1_15, func() { events++ })
	pin.Drive(gpio.Low)
	pin.Drive(gpio.High)
	c.ServicePendingInterrupts()
	if events != 1 {
		t.Errorf("events = %d, want 1", events)
	}
	if pin.Read() != gpio.High {
		t.Errorf("pin level = %v, want High", pin.Read())
	}
}

func TestUsbdAttachWaitsForPower(t *testing.T) {
	c := newTestChip(t)
	u := c.p.Usbd
	u.Enable()
	u.Attach()
	if u.Attached() {
		t.Fatalf("attached without USB power")
	}
	c.p.Power.SetUSBSupply(true)
	c.ServicePendingInterrupts()
	if !u.Attached() {
		t.Fatalf("not attached after USB power came up")
	}

	var host bytes.Buffer
	if n, _ := u.Transmit([]byte("x")); n != 0 {
		t.Errorf("Transmit without host accepted %d bytes", n)
	}
	u.SetHost(&host)
	if n, err := u.Transmit([]byte("hello")); n != 5 || err != nil {
		t.Errorf("Transmit = %d, %v; want 5, nil", n, err)
	}
	if host.String() != "hello" {
		t.Errorf("host received %q", host.String())
	}
}

func TestUsbdReceive(t *testing.T) {
	c := newTestChip(t)
	u := c.p.Usbd
	var got []byte
	var bauds []uint32
	u.SetReceiveClient(func(p []byte) { got = append(got, p...) })
	u.SetBaudRateClient(func(b uint32) { bauds = append(bauds, b) })

	u.HostWrite([]byte("ls\r"))
	u.HostSetLineCoding(1200)
	c.ServicePendingInterrupts()
	if string(got) != "ls\r" {
		t.Errorf("received %q, want %q", got, "ls\r")
	}
	if diff := cmp.Diff([]uint32{1200}, bauds); diff != "" {
		t.Errorf("baud changes mismatch (-want +got):\n%s", diff)
	}

	big := bytes.Repeat([]byte{'a'}, usbRxBufferSize+10)
	if n := u.HostWrite(big); n != usbRxBufferSize {
		t.Errorf("HostWrite accepted %d bytes, want %d", n, usbRxBufferSize)
	}
}

func TestIEEE802154Transmit(t *testing.T) {
	c := newTestChip(t)
	r := c.p.IEEE802154
	var results []bool
	r.SetTransmitClient(func(acked bool) { results = append(results, acked) })

	// No acknowledgement requested.
	if err := r.Transmit([]byte{0x41, 0x88, 1, 0xcd, 0xab}); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	if err := r.Transmit([]byte{0x41, 0x88, 2}); !errors.Is(err, ErrBusy) {
		t.Errorf("Transmit while busy = %v, want %v", err, ErrBusy)
	}
	c.ServicePendingInterrupts()

	// Acknowledgement requested, none arrives.
	r.Transmit([]byte{0x61, 0x88, 7, 0xcd, 0xab})
	c.ServicePendingInterrupts()

	// Acknowledgement requested and delivered.
	r.Transmit([]byte{0x61, 0x88, 8, 0xcd, 0xab})
	r.Deliver([]byte{0x02, 0x00, 8})
	c.ServicePendingInterrupts()

	if diff := cmp.Diff([]bool{true, false, true}, results); diff != "" {
		t.Errorf("transmit results mismatch (-want +got):\n%s", diff)
	}
	if got := c.p.Air.Count(); got != 3 {
		t.Errorf("air count = %d, want 3", got)
	}
}

func TestIEEE802154Channel(t *testing.T) {
	c := newTestChip(t)
	r := c.p.IEEE802154
	if err := r.SetChannel(10); err == nil {
		t.Errorf("SetChannel(10) succeeded")
	}
	if err := r.SetChannel(15); err != nil {
		t.Fatalf("SetChannel(15): %v", err)
	}
	r.Transmit([]byte{0x41, 0x88, 1})
	if got := c.p.Air.Packets()[0].Channel; got != 15 {
		t.Errorf("frame sent on channel %d, want 15", got)
	}
}

func TestBLEAdvertise(t *testing.T) {
	c := newTestChip(t)
	if err := c.p.BLERadio.Advertise(36, nil); err == nil {
		t.Errorf("Advertise on data channel succeeded")
	}
	if err := c.p.BLERadio.Advertise(37, []byte{2, 1, 6}); err != nil {
		t.Fatalf("Advertise: %v", err)
	}
	want := []Packet{{Kind: "ble", Channel: 37, Data: []byte{2, 1, 6}}}
	if diff := cmp.Diff(want, c.p.Air.Packets()); diff != "" {
		t.Errorf("air mismatch (-want +got):\n%s", diff)
	}
}

func TestAESECB(t *testing.T) {
	c := newTestChip(t)
	dst := make([]byte, 16)
	if err := c.p.ECB.Encrypt(dst, make([]byte, 16)); err == nil {
		t.Errorf("Encrypt without key succeeded")
	}
	if err := c.p.ECB.SetKey(make([]byte, 16)); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if err := c.p.ECB.Encrypt(dst, make([]byte, 16)); err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	// FIPS-197 AES-128 with an all-zero key and block.
	want := []byte{0x66, 0xe9, 0x4b, 0xd4, 0xef, 0x8a, 0x2c, 0x3b, 0x88, 0x4c, 0xfa, 0x59, 0xca, 0x34, 0x2b, 0x2e}
	if diff := cmp.Diff(want, dst); diff != "" {
		t.Errorf("ciphertext mismatch (-want +got):\n%s", diff)
	}
	c.ServicePendingInterrupts()
	if c.p.IEEE802154.cryptDone != 1 {
		t.Errorf("radio saw %d AES completions, want 1", c.p.IEEE802154.cryptDone)
	}
}

func TestTWI(t *testing.T) {
	c := newTestChip(t)
	twi := c.p.TWI1
	twi.Configure(P0_27, P0_26)
	if err := twi.Tx(0x3c, nil, make([]byte, 1)); !errors.Is(err, ErrNACK) {
		t.Errorf("read without device = %v, want %v", err, ErrNACK)
	}
	rec := &i2ctest.Record{}
	twi.Backend = rec
	if err := twi.Tx(0x3c, []byte{0x00, 0xae}, nil); err != nil {
		t.Fatalf("Tx: %v", err)
	}
	want := []i2ctest.IO{{Addr: 0x3c, W: []byte{0x00, 0xae}}}
	if diff := cmp.Diff(want, rec.Ops); diff != "" {
		t.Errorf("bus ops mismatch (-want +got):\n%s", diff)
	}
	if err := twi.SetSpeed(400 * physic.KiloHertz); err != nil {
		t.Errorf("SetSpeed(400kHz): %v", err)
	}
	if err := twi.SetSpeed(1 * physic.MegaHertz); err == nil {
		t.Errorf("SetSpeed(1MHz) succeeded")
	}
	if got := twi.SCL().Name(); got != "P0.27" {
		t.Errorf("SCL = %q, want P0.27", got)
	}
}

func TestSAADC(t *testing.T) {
	c := newTestChip(t)
	a := c.p.SAADC
	a.SetupChannels(AnalogInput2, AnalogInput3)
	a.SetInput(AnalogInput3, 0x1234)
	if got, err := a.Sample(1); err != nil || got != 0x234 {
		t.Errorf("Sample(1) = %#x, %v; want 0x234, nil", got, err)
	}
	if _, err := a.Sample(2); err == nil {
		t.Errorf("Sample of unconfigured channel succeeded")
	}
}

func TestStartupConfig(t *testing.T) {
	c := newTestChip(t)
	cfg := StartupConfig{ResetPinEnabled: true, ResetPin: P0_18, Regulator: Regulator0Default}
	changed, err := cfg.Apply(c.p.NVMC)
	if err != nil || !changed {
		t.Fatalf("first Apply = %t, %v; want true, nil", changed, err)
	}
	changed, err = cfg.Apply(c.p.NVMC)
	if err != nil || changed {
		t.Errorf("second Apply = %t, %v; want false, nil", changed, err)
	}
	if got := c.p.NVMC.UICR().PSELReset; got != [2]int32{18, 18} {
		t.Errorf("PSELRESET = %v, want [18 18]", got)
	}
	if c.p.NVMC.Writes() != 1 {
		t.Errorf("flash writes = %d, want 1", c.p.NVMC.Writes())
	}
}

func TestFICR(t *testing.T) {
	f := NewFICR([8]byte{1, 2, 3, 4, 5, 6, 7, 8}, [6]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0xc6})
	if got, want := f.AddressString(), "c6:05:04:03:02:01"; got != want {
		t.Errorf("AddressString = %q, want %q", got, want)
	}
	if len(DefaultFICR.AddressString()) != 17 {
		t.Errorf("address string %q is not 17 bytes", DefaultFICR.AddressString())
	}
}

func TestWriteState(t *testing.T) {
	c := newTestChip(t)
	c.p.Power.SetGPRegRet(0x90)
	c.p.Power.SetUSBSupply(true)
	c.ServicePendingInterrupts()
	var buf bytes.Buffer
	c.WriteState(&buf)
	for _, want := range []string{"GPREGRET: 0x90", "POWER_CLOCK=1"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("state %q missing %q", buf.String(), want)
		}
	}
}
