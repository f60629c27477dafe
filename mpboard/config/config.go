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

// Package config holds the board configuration. Values come from flag
// defaults, an optional TOML file, and flags set on the command line, in
// increasing order of precedence.
package config

import (
	"fmt"
	"image"
	"strings"
	"time"

	"gvisor.dev/mpboard/pkg/display"
)

// Screen is the size of the board display.
var Screen = image.Rect(0, 0, 128, 64)

// MaxProcs bounds NumProcs.
const MaxProcs = 64

// Config holds configuration that is not part of the compiled-in board
// constants.
type Config struct {
	// Debug enables debug logging.
	Debug bool `flag:"debug" toml:"debug"`

	// LogFilename is the file to write logs to. Empty means stderr.
	LogFilename string `flag:"log" toml:"log"`

	// LogFormat is the log format: text or json.
	LogFormat string `flag:"log-format" toml:"log_format"`

	// NumProcs is the size of the process array.
	NumProcs int `flag:"num-procs" toml:"num_procs"`

	// FaultPolicy is applied to every faulted process.
	FaultPolicy FaultPolicy `flag:"fault-policy" toml:"fault_policy"`

	// RestartThreshold is how many restarts the restart policy allows.
	RestartThreshold int `flag:"restart-threshold" toml:"restart_threshold"`

	// ConsoleBaud is the console UART rate.
	ConsoleBaud uint `flag:"console-baud" toml:"console_baud"`

	// PANID is the IEEE 802.15.4 PAN identifier.
	PANID uint `flag:"pan-id" toml:"pan_id"`

	// DstMAC is the short address UDP datagrams are sent to.
	DstMAC uint `flag:"dst-mac" toml:"dst_mac"`

	// Channel is the IEEE 802.15.4 channel.
	Channel int `flag:"channel" toml:"channel"`

	// USBVendorID and USBProductID identify the CDC-ACM device.
	USBVendorID  uint `flag:"usb-vid" toml:"usb_vid"`
	USBProductID uint `flag:"usb-pid" toml:"usb_pid"`

	// USBManufacturer and USBProduct are the USB string descriptors. The
	// serial number is always the device address.
	USBManufacturer string `flag:"usb-manufacturer" toml:"usb_manufacturer"`
	USBProduct      string `flag:"usb-product" toml:"usb_product"`

	// SysTickHz is the SysTick calibration frequency.
	SysTickHz uint64 `flag:"systick-hz" toml:"systick_hz"`

	// StepCost is the virtual time charged per program step.
	StepCost time.Duration `flag:"step-cost" toml:"step_cost"`

	// Iterations stops the kernel loop after this many iterations. Zero
	// runs until interrupted.
	Iterations uint64 `flag:"iterations" toml:"iterations"`

	// Pace runs alarms in real time instead of fast-forwarding them.
	Pace bool `flag:"pace" toml:"pace"`

	// Regions partitions the display between applications.
	Regions []Region `toml:"region"`

	// Memory is the application memory layout.
	Memory Memory `toml:"memory"`
}

// Region is one display region, keyed by application name.
type Region struct {
	App    string `toml:"app"`
	X      int    `toml:"x"`
	Y      int    `toml:"y"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// Memory describes where applications live.
type Memory struct {
	AppFlashStart uint32 `toml:"app_flash_start"`
	AppFlashEnd   uint32 `toml:"app_flash_end"`
	AppMemStart   uint32 `toml:"app_mem_start"`
	AppMemEnd     uint32 `toml:"app_mem_end"`
}

// DefaultRegions are the regions of the demo applications.
func DefaultRegions() []Region {
	return []Region{
		{App: "circle", X: 0, Y: 0, Width: 64, Height: 64},
		{App: "count", X: 64, Y: 0, Width: 64, Height: 32},
		{App: "tock-scroll", X: 64, Y: 32, Width: 64, Height: 32},
	}
}

// DefaultMemory is the nRF52840 layout with the bootloader at the top of
// flash.
var DefaultMemory = Memory{
	AppFlashStart: 0x00040000,
	AppFlashEnd:   0x000f4000,
	AppMemStart:   0x20008000,
	AppMemEnd:     0x20040000,
}

// DisplayRegions returns the validated display regions. An invalid list is
// an error; the board must not boot with it.
func (c *Config) DisplayRegions() ([]display.AppRegion, error) {
	regions := make([]display.AppRegion, 0, len(c.Regions))
	for _, r := range c.Regions {
		if r.App == "" {
			return nil, fmt.Errorf("display region %v has no application name", r)
		}
		regions = append(regions, display.NewAppRegion(r.App, r.X, r.Y, r.Width, r.Height))
	}
	if err := display.Validate(regions, Screen); err != nil {
		return nil, fmt.Errorf("invalid display regions: %w", err)
	}
	return regions, nil
}

func (c *Config) validate() error {
	if c.NumProcs < 1 || c.NumProcs > MaxProcs {
		return fmt.Errorf("num-procs must be between 1 and %d, got %d", MaxProcs, c.NumProcs)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	if c.ConsoleBaud == 0 {
		return fmt.Errorf("console-baud must not be zero")
	}
	if c.PANID > 0xffff || c.DstMAC > 0xffff || c.USBVendorID > 0xffff || c.USBProductID > 0xffff {
		return fmt.Errorf("PAN ID, MAC and USB IDs are 16 bit values")
	}
	if c.Channel < 11 || c.Channel > 26 {
		return fmt.Errorf("channel must be between 11 and 26, got %d", c.Channel)
	}
	if c.SysTickHz == 0 {
		return fmt.Errorf("systick-hz must not be zero")
	}
	m := c.Memory
	if m.AppFlashEnd <= m.AppFlashStart || m.AppMemEnd <= m.AppMemStart {
		return fmt.Errorf("empty application memory layout %+v", m)
	}
	if _, err := c.DisplayRegions(); err != nil {
		return err
	}
	return nil
}

// FaultPolicy selects what happens to a faulted process.
type FaultPolicy int

const (
	// FaultStopWithDebug stops the process and prints its state.
	FaultStopWithDebug FaultPolicy = iota

	// FaultStop stops the process silently.
	FaultStop

	// FaultRestart restarts the process up to RestartThreshold times.
	FaultRestart

	// FaultPanic panics the kernel.
	FaultPanic
)

func faultPolicyPtr(p FaultPolicy) *FaultPolicy {
	return &p
}

// Set implements flag.Value.
func (p *FaultPolicy) Set(v string) error {
	switch strings.ToLower(v) {
	case "stop-debug":
		*p = FaultStopWithDebug
	case "stop":
		*p = FaultStop
	case "restart":
		*p = FaultRestart
	case "panic":
		*p = FaultPanic
	default:
		return fmt.Errorf("invalid fault policy %q", v)
	}
	return nil
}

// Get implements flag.Getter.
func (p *FaultPolicy) Get() any {
	return *p
}

// String implements flag.Value.
func (p FaultPolicy) String() string {
	switch p {
	case FaultStopWithDebug:
		return "stop-debug"
	case FaultStop:
		return "stop"
	case FaultRestart:
		return "restart"
	case FaultPanic:
		return "panic"
	}
	panic(fmt.Sprintf("Invalid fault policy %d", int(p)))
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML.
func (p *FaultPolicy) UnmarshalText(b []byte) error {
	return p.Set(string(b))
}
