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
	"fmt"
	"image"

	periphdisplay "periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/display"
	"gvisor.dev/mpboard/pkg/kernel"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// Screen commands.
const (
	screenResolution = 1
	screenSetFrame   = 100
	screenWrite      = 200
)

type screenApp struct {
	buf   []byte
	frame image.Rectangle
}

// SharedScreen partitions one monochrome panel between processes. Each
// process may draw only inside the region bound to its identity; processes
// with no region get NOSUPPORT for everything except command 0.
//
// A process selects a write frame relative to its region with command 100
// (arg1 = x<<16|y, arg2 = width<<16|height), shares pixel data with
// read-only allow 0 and calls command 200. Pixels are one bit each, row
// major, most significant bit first. Completion is upcall 0.
type SharedScreen struct {
	panel   periphdisplay.Drawer
	regions *display.Allocator
	frame   *image1bit.VerticalLSB
	apps    *grantTable[screenApp]
}

var (
	_ kernel.Driver          = (*SharedScreen)(nil)
	_ kernel.ReadOnlyAllower = (*SharedScreen)(nil)
)

// NewSharedScreen returns a driver drawing to panel.
func NewSharedScreen(panel periphdisplay.Drawer, regions *display.Allocator, g *kernel.Grant) *SharedScreen {
	return &SharedScreen{
		panel:   panel,
		regions: regions,
		frame:   image1bit.NewVerticalLSB(panel.Bounds()),
		apps:    newGrantTable[screenApp](g),
	}
}

// Init clears the panel.
func (s *SharedScreen) Init() error {
	b := s.panel.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			s.frame.SetBit(x, y, image1bit.Off)
		}
	}
	if err := s.panel.Draw(b, s.frame, b.Min); err != nil {
		return fmt.Errorf("clearing %s: %w", s.panel, err)
	}
	return nil
}

// Frame returns the panel contents as last drawn.
func (s *SharedScreen) Frame() image.Image { return s.frame }

// region returns the region of the process pid.
func (s *SharedScreen) region(pid process.ID) (display.AppRegion, bool) {
	p := s.apps.grant.Process(pid)
	if p == nil {
		return display.AppRegion{}, false
	}
	return s.regions.RegionFor(uint32(p.ShortID()))
}

// AllowReadOnly implements kernel.ReadOnlyAllower.AllowReadOnly.
func (s *SharedScreen) AllowReadOnly(pid process.ID, num uint32, buf []byte) tock.CommandReturn {
	if _, ok := s.region(pid); !ok {
		return tock.Failure(tock.NOSUPPORT)
	}
	if num != 0 {
		return tock.Failure(tock.NOSUPPORT)
	}
	s.apps.get(pid).buf = buf
	return tock.Success()
}

// Command implements kernel.Driver.Command.
func (s *SharedScreen) Command(cmd, arg1, arg2 uint32, pid process.ID) tock.CommandReturn {
	if cmd == tock.CommandExists {
		return tock.Success()
	}
	r, ok := s.region(pid)
	if !ok {
		return tock.Failure(tock.NOSUPPORT)
	}
	app := s.apps.get(pid)
	switch cmd {
	case screenResolution:
		return tock.SuccessU32U32(uint32(r.Width), uint32(r.Height))
	case screenSetFrame:
		x, y := int(arg1>>16), int(arg1&0xffff)
		w, h := int(arg2>>16), int(arg2&0xffff)
		f := image.Rect(x, y, x+w, y+h)
		if f.Empty() || !f.In(image.Rect(0, 0, r.Width, r.Height)) {
			return tock.Failure(tock.INVAL)
		}
		app.frame = f
		return tock.Success()
	case screenWrite:
		if app.frame.Empty() {
			return tock.Failure(tock.INVAL)
		}
		n := min(int(arg1), len(app.buf))
		if n*8 < app.frame.Dx()*app.frame.Dy() {
			return tock.Failure(tock.SIZE)
		}
		dst := app.frame.Add(image.Pt(r.X, r.Y))
		s.blit(dst, app.buf[:n])
		if err := s.panel.Draw(dst, s.frame, dst.Min); err != nil {
			return tock.Failure(tock.FAIL)
		}
		s.apps.schedule(pid, 0, 0, 0, 0)
		return tock.Success()
	default:
		return tock.Failure(tock.NOSUPPORT)
	}
}

// blit copies the packed pixels in buf into dst of the frame buffer.
func (s *SharedScreen) blit(dst image.Rectangle, buf []byte) {
	i := 0
	for y := dst.Min.Y; y < dst.Max.Y; y++ {
		for x := dst.Min.X; x < dst.Max.X; x++ {
			on := buf[i/8]&(0x80>>(i%8)) != 0
			s.frame.SetBit(x, y, image1bit.Bit(on))
			i++
		}
	}
}
