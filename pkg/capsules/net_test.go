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
	"encoding/binary"
	"errors"
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// fakeRadio records transmitted frames. Completion is triggered by the test.
type fakeRadio struct {
	frames [][]byte
	busy   bool
	tx     func(acked bool)
	rx     func([]byte)
	pan    uint16
	short  uint16
}

func (r *fakeRadio) Configure(pan, short uint16, _ [8]byte) { r.pan, r.short = pan, short }
func (r *fakeRadio) SetTransmitClient(fn func(acked bool))   { r.tx = fn }
func (r *fakeRadio) SetReceiveClient(fn func([]byte))        { r.rx = fn }

func (r *fakeRadio) Transmit(frame []byte) error {
	if r.busy {
		return errors.New("busy")
	}
	r.busy = true
	r.frames = append(r.frames, append([]byte(nil), frame...))
	return nil
}

func (r *fakeRadio) complete(acked bool) {
	r.busy = false
	r.tx(acked)
}

// frame builds a data frame as the MAC would.
func frame(pan, dst, src uint16, payload []byte) []byte {
	f := make([]byte, macHeaderLen)
	f[0], f[1] = fcDataFrame|fcPANCompress, fcShortAddrs
	binary.LittleEndian.PutUint16(f[3:], pan)
	binary.LittleEndian.PutUint16(f[5:], dst)
	binary.LittleEndian.PutUint16(f[7:], src)
	return append(f, payload...)
}

func newTestMac() (*fakeRadio, *MacMux) {
	r := &fakeRadio{}
	m := NewMacMux(r, 26)
	m.Configure(0xabcd, 0x1234, [8]byte{1, 2, 3, 4, 5, 6, 7, 8})
	return r, m
}

func TestMacMuxFraming(t *testing.T) {
	r, m := newTestMac()
	if r.pan != 0xabcd || r.short != 0x1234 {
		t.Fatalf("radio configured with pan %#x short %#x", r.pan, r.short)
	}
	a, b := m.NewDevice(), m.NewDevice()
	var doneA, doneB []bool
	a.SetTransmitClient(func(acked bool) { doneA = append(doneA, acked) })
	b.SetTransmitClient(func(acked bool) { doneB = append(doneB, acked) })

	if err := a.Transmit(49138, []byte{0xaa}); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	if err := b.Transmit(BroadcastAddr, []byte{0xbb}); !errors.Is(err, ErrMACBusy) {
		t.Errorf("Transmit while busy = %v, want %v", err, ErrMACBusy)
	}
	r.complete(false)
	if err := b.Transmit(BroadcastAddr, []byte{0xbb}); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	r.complete(true)

	want := [][]byte{
		{0x61, 0x88, 0, 0xcd, 0xab, 0xf2, 0xbf, 0x34, 0x12, 0xaa},
		{0x41, 0x88, 1, 0xcd, 0xab, 0xff, 0xff, 0x34, 0x12, 0xbb},
	}
	if diff := cmp.Diff(want, r.frames); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{false}, doneA); diff != "" {
		t.Errorf("a completions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{true}, doneB); diff != "" {
		t.Errorf("b completions mismatch (-want +got):\n%s", diff)
	}
	if err := a.Transmit(1, make([]byte, MaxMACPayload+1)); err == nil {
		t.Errorf("oversized payload accepted")
	}
}

func TestMacMuxReceiveFilter(t *testing.T) {
	r, m := newTestMac()
	d := m.NewDevice()
	var got []uint16
	d.SetReceiveClient(func(src uint16, _ []byte) { got = append(got, src) })
	r.rx(frame(0xabcd, 0x1234, 1, nil))
	r.rx(frame(0xabcd, 0x9999, 2, nil))
	r.rx(frame(0x1111, 0x1234, 3, nil))
	r.rx(frame(0xabcd, BroadcastAddr, 4, nil))
	r.rx([]byte{0x41, 0x88})
	if diff := cmp.Diff([]uint16{1, 4}, got); diff != "" {
		t.Errorf("accepted sources mismatch (-want +got):\n%s", diff)
	}
}

func TestIEEE802154Driver(t *testing.T) {
	k, ps := newTestKernel(t, "a")
	r, m := newTestMac()
	d := NewIEEE802154(m.NewDevice(), grant(k, tock.DriverIEEE802154))
	pid := ps[0].ID()
	rec := recordUpcalls(t, ps[0], tock.DriverIEEE802154, radioTxDone, radioReceived)

	if got := d.Command(radioGetPAN, 0, 0, pid); got != tock.SuccessU32(0xabcd) {
		t.Errorf("pan = %v", got)
	}
	d.Command(radioSetShort, 0x4242, 0, pid)
	if got := d.Command(radioGetShort, 0, 0, pid); got != tock.SuccessU32(0x1234) {
		t.Errorf("short before commit = %v", got)
	}
	d.Command(radioCommit, 0, 0, pid)
	if got := d.Command(radioGetShort, 0, 0, pid); got != tock.SuccessU32(0x4242) || r.short != 0x4242 {
		t.Errorf("short after commit = %v (radio %#x)", got, r.short)
	}
	if got := d.Command(radioGetChan, 0, 0, pid); got != tock.SuccessU32(26) {
		t.Errorf("channel = %v", got)
	}

	d.AllowReadOnly(pid, 0, []byte("ping"))
	if got := d.Command(radioTransmit, 7, 5, pid); got != tock.Failure(tock.SIZE) {
		t.Errorf("transmit beyond buffer = %v", got)
	}
	if got := d.Command(radioTransmit, 7, 4, pid); got != tock.Success() {
		t.Fatalf("transmit = %v", got)
	}
	if got := d.Command(radioTransmit, 7, 4, pid); got != tock.Failure(tock.BUSY) {
		t.Errorf("second transmit = %v", got)
	}
	r.complete(false)

	rx := make([]byte, 8)
	d.AllowReadWrite(pid, 0, rx)
	r.rx(frame(0xabcd, 0x4242, 9, []byte("pong")))

	want := []upcall{
		{Num: radioTxDone, A: uint32(tock.NOACK)},
		{Num: radioReceived, A: 4, B: 9},
	}
	if diff := cmp.Diff(want, rec.deliver(t)); diff != "" {
		t.Errorf("upcalls mismatch (-want +got):\n%s", diff)
	}
	if string(rx[:4]) != "pong" {
		t.Errorf("received %q", rx[:4])
	}
}

func sockaddrs(local netip.Addr, localPort uint16, remote netip.Addr, remotePort uint16) []byte {
	b := make([]byte, 2*sockaddrLen)
	l, r := local.As16(), remote.As16()
	copy(b, l[:])
	binary.BigEndian.PutUint16(b[16:], localPort)
	copy(b[sockaddrLen:], r[:])
	binary.BigEndian.PutUint16(b[sockaddrLen+16:], remotePort)
	return b
}

func TestUDPDriver(t *testing.T) {
	k, ps := newTestKernel(t, "a", "b")
	r, m := newTestMac()
	ifaces := []netip.Addr{netip.MustParseAddr("fe80::ff:fe00:1234")}
	d := NewUDPDriver(m.NewDevice(), 49138, ifaces, grant(k, tock.DriverUDP))
	a, b := ps[0].ID(), ps[1].ID()
	recA := recordUpcalls(t, ps[0], tock.DriverUDP, udpReceived, udpSent)

	cfg := make([]byte, 16)
	d.AllowReadWrite(a, 1, cfg)
	if got := d.Command(udpInterfaces, 0, 0, a); got != tock.SuccessU32(1) {
		t.Errorf("interfaces = %v", got)
	}
	if got := netip.AddrFrom16([16]byte(cfg)); got != ifaces[0] {
		t.Errorf("interface address = %v, want %v", got, ifaces[0])
	}

	remote := netip.MustParseAddr("fe80::1")
	d.AllowReadWrite(a, 1, sockaddrs(ifaces[0], 5000, remote, 6000))
	d.AllowReadWrite(b, 1, sockaddrs(netip.IPv6Unspecified(), 5000, remote, 6000))
	if got := d.Command(udpSend, 0, 0, a); got != tock.Failure(tock.RESERVE) {
		t.Errorf("send before bind = %v", got)
	}
	if got := d.Command(udpBind, 0, 0, a); got != tock.Success() {
		t.Errorf("bind = %v", got)
	}
	if got := d.Command(udpBind, 0, 0, b); got != tock.Failure(tock.BUSY) {
		t.Errorf("bind of used port = %v", got)
	}
	d.AllowReadWrite(b, 1, sockaddrs(netip.MustParseAddr("fe80::99"), 5001, remote, 6000))
	if got := d.Command(udpBind, 0, 0, b); got != tock.Failure(tock.INVAL) {
		t.Errorf("bind to foreign address = %v", got)
	}

	d.AllowReadOnly(a, 0, []byte("hi"))
	if got := d.Command(udpSend, 0, 0, a); got != tock.Success() {
		t.Fatalf("send = %v", got)
	}
	r.complete(true)
	if len(r.frames) != 1 {
		t.Fatalf("%d frames sent, want 1", len(r.frames))
	}
	f := r.frames[0]
	if dst := binary.LittleEndian.Uint16(f[5:]); dst != 49138 {
		t.Errorf("MAC destination = %d, want 49138", dst)
	}
	wantDgram := []byte{0x13, 0x88, 0x17, 0x70, 0, 10, 0, 0, 'h', 'i'}
	if diff := cmp.Diff(wantDgram, f[macHeaderLen:]); diff != "" {
		t.Errorf("datagram mismatch (-want +got):\n%s", diff)
	}

	rx := make([]byte, 4)
	d.AllowReadWrite(a, 0, rx)
	dgram := []byte{0x17, 0x70, 0x13, 0x88, 0, 11, 0, 0, 'y', 'o', 'u'}
	r.rx(frame(0xabcd, 0x1234, 77, dgram))
	dgram[3] = 0x89
	r.rx(frame(0xabcd, 0x1234, 77, dgram))

	want := []upcall{
		{Num: udpSent},
		{Num: udpReceived, A: 3, B: 6000, C: 77},
	}
	if diff := cmp.Diff(want, recA.deliver(t)); diff != "" {
		t.Errorf("upcalls mismatch (-want +got):\n%s", diff)
	}
	if string(rx[:3]) != "you" {
		t.Errorf("received %q", rx[:3])
	}
}

func TestPortTableReclaimsDeadOwners(t *testing.T) {
	dead := map[process.ID]bool{}
	pt := NewPortTable(func(pid process.ID) bool { return !dead[pid] })
	a, b := process.ID{Index: 0, Unique: 1}, process.ID{Index: 1, Unique: 1}
	if err := pt.Bind(80, a); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := pt.Bind(80, b); !errors.Is(err, ErrPortInUse) {
		t.Errorf("Bind of used port = %v, want %v", err, ErrPortInUse)
	}
	dead[a] = true
	if _, ok := pt.Owner(80); ok {
		t.Errorf("dead owner still owns the port")
	}
	if err := pt.Bind(80, b); err != nil {
		t.Errorf("Bind after owner died: %v", err)
	}
	for i := 0; i < MaxBoundPorts-1; i++ {
		if err := pt.Bind(uint16(1000+i), process.ID{Index: 2 + i, Unique: 1}); err != nil {
			t.Fatalf("Bind %d: %v", i, err)
		}
	}
	if err := pt.Bind(9999, process.ID{Index: 99}); !errors.Is(err, ErrPortTableFull) {
		t.Errorf("Bind to full table = %v, want %v", err, ErrPortTableFull)
	}
}

type fakeBLE struct {
	channels []int
}

func (r *fakeBLE) Advertise(ch int, _ []byte) error {
	r.channels = append(r.channels, ch)
	return nil
}

func TestBLEAdvertising(t *testing.T) {
	k, ps := newTestKernel(t, "a")
	radio := &fakeBLE{}
	hw := &fakeAlarm{}
	b := NewBLE(radio, NewAlarmMux(hw).NewVirtualAlarm(), grant(k, tock.DriverBLEAdvertising))
	pid := ps[0].ID()

	if got := b.Command(bleStart, 100, 0, pid); got != tock.Failure(tock.RESERVE) {
		t.Errorf("start without data = %v", got)
	}
	if got := b.AllowReadOnly(pid, 0, make([]byte, MaxAdvertisingData+1)); got != tock.Failure(tock.SIZE) {
		t.Errorf("oversized data = %v", got)
	}
	b.AllowReadOnly(pid, 0, []byte{2, 1, 6})
	if got := b.Command(bleStart, 10, 0, pid); got != tock.Failure(tock.INVAL) {
		t.Errorf("start with short interval = %v", got)
	}
	if got := b.Command(bleStart, 100, 0, pid); got != tock.Success() {
		t.Fatalf("start = %v", got)
	}
	if diff := cmp.Diff([]int{37, 38, 39}, radio.channels); diff != "" {
		t.Errorf("channels mismatch (-want +got):\n%s", diff)
	}
	// 100ms at 32768Hz is 3276 ticks.
	hw.advance(3275)
	if b.Sent() != 1 {
		t.Errorf("advertised %d times before the interval, want 1", b.Sent())
	}
	hw.advance(1)
	if b.Sent() != 2 {
		t.Errorf("advertised %d times after one interval, want 2", b.Sent())
	}
	b.Command(bleStop, 0, 0, pid)
	hw.advance(10000)
	if b.Sent() != 2 {
		t.Errorf("advertised %d times after stop, want 2", b.Sent())
	}
}
