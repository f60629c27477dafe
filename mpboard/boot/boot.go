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

// Package boot is the composition root of the MakePython nRF52840 board. It
// brings up the chip, builds every syscall driver and assembles them into
// the Platform the kernel loop queries.
package boot

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/netip"

	periphdisplay "periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ssd1306"

	"gvisor.dev/mpboard/mpboard/config"
	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/arch/cortexm4"
	"gvisor.dev/mpboard/pkg/capsules"
	"gvisor.dev/mpboard/pkg/chip/nrf52840"
	"gvisor.dev/mpboard/pkg/cleanup"
	"gvisor.dev/mpboard/pkg/display"
	"gvisor.dev/mpboard/pkg/hal"
	"gvisor.dev/mpboard/pkg/kernel"
	"gvisor.dev/mpboard/pkg/kernel/capabilities"
	"gvisor.dev/mpboard/pkg/kernel/debug"
	"gvisor.dev/mpboard/pkg/kernel/process"
	"gvisor.dev/mpboard/pkg/log"
)

// Board pins.
const (
	LEDPin    = nrf52840.P1_11
	ButtonPin = nrf52840.P1_15
	ResetPin  = nrf52840.P0_18
	SCLPin    = nrf52840.P0_27
	SDAPin    = nrf52840.P0_26
	UARTTXPin = nrf52840.P0_06
	UARTRXPin = nrf52840.P0_08
)

// GPIOPins are the pins exposed through the GPIO driver, D0 to D3.
var GPIOPins = []nrf52840.Pin{nrf52840.P0_23, nrf52840.P0_12, nrf52840.P0_09, nrf52840.P0_07}

// ADCInputs maps the ADC driver channels A0 to A7 to analog inputs.
var ADCInputs = []nrf52840.AnalogInput{
	nrf52840.AnalogInput2,
	nrf52840.AnalogInput3,
	nrf52840.AnalogInput6,
	nrf52840.AnalogInput5,
	nrf52840.AnalogInput7,
	nrf52840.AnalogInput0,
	nrf52840.AnalogInput4,
	nrf52840.AnalogInput1,
}

// Options are host-side hooks. The zero value boots the board as built.
type Options struct {
	// Apps are loaded into the process array at the end of boot.
	Apps []process.App

	// Panel replaces the SSD1306 on TWI1.
	Panel periphdisplay.Drawer

	// FICR replaces the factory information of the part.
	FICR *nrf52840.FICR

	// Reset is called when the system resets.
	Reset func()

	// Halt is called at the end of the panic path.
	Halt func()
}

// Board is a booted board.
type Board struct {
	Config      *config.Config
	Slots       *Slots
	Peripherals *nrf52840.Peripherals
	Chip        *nrf52840.Chip
	Kernel      *kernel.Kernel
	Platform    *Platform
	Console     *capsules.ProcessConsole
	DebugWriter *debug.Writer
	UartMux     *capsules.UartMux
	MacMux      *capsules.MacMux
	SCB         *cortexm4.SCB
	Panic       *PanicHook
	Layout      MemoryLayout

	// Phases lists the boot steps in the order they ran.
	Phases []string

	// Loaded is the number of processes loaded.
	Loaded int

	ackBuf   [nrf52840.ACKBufSize]byte
	mainLoop capabilities.MainLoop
}

func (b *Board) phase(name string) {
	b.Phases = append(b.Phases, name)
	log.Debugf("boot: %s", name)
}

// Start brings the board up. Any error is fatal: the board must not run.
// slots must be fresh; they are sealed on success.
func Start(conf *config.Config, slots *Slots, opts Options) (*Board, error) {
	b := &Board{Config: conf, Slots: slots}
	memCap := capabilities.NewMemoryAllocation()
	debugCap := capabilities.NewSetDebugWriter()
	manageCap := capabilities.NewProcessManagement()

	layout := LayoutFrom(conf.Memory)
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid memory layout: %w", err)
	}
	b.Layout = layout
	regions, err := conf.DisplayRegions()
	if err != nil {
		return nil, err
	}

	b.phase("chip init")
	nrf52840.Init()

	b.phase("peripherals")
	p := nrf52840.NewPeripherals(b.ackBuf[:])
	if opts.FICR != nil {
		p.FICR = *opts.FICR
	}
	b.Peripherals = p

	b.phase("peripheral references")
	p.Init()
	if err := slots.Power.Set(p.Power); err != nil {
		return nil, fmt.Errorf("saving power handle: %w", err)
	}

	b.phase("processes")
	procs := process.NewArray(conf.NumProcs)
	if err := slots.Processes.Set(procs); err != nil {
		return nil, fmt.Errorf("saving process array: %w", err)
	}
	b.Kernel = kernel.New(procs, kernel.Options{
		StepCost:      conf.StepCost,
		MaxIterations: conf.Iterations,
	})

	b.phase("startup")
	startup := nrf52840.StartupConfig{
		ResetPinEnabled: false,
		ResetPin:        ResetPin,
		Regulator:       nrf52840.Regulator0Default,
	}
	if _, err := startup.Apply(p.NVMC); err != nil {
		return nil, err
	}

	b.phase("chip")
	b.Chip = nrf52840.NewChip(p)
	b.Chip.Pace = conf.Pace
	if err := slots.Chip.Set(b.Chip); err != nil {
		return nil, fmt.Errorf("saving chip: %w", err)
	}
	b.SCB = cortexm4.NewSCB(opts.Reset)

	cu := cleanup.Make(func() { debug.AssignGPIOs() })
	defer cu.Clean()

	b.phase("debug gpio")
	debug.AssignGPIOs(p.GPIO.At(LEDPin))

	b.phase("gpio")
	gpioPins := make([]hal.InterruptPin, 0, len(GPIOPins))
	for _, pin := range GPIOPins {
		gpioPins = append(gpioPins, p.GPIO.At(pin))
	}
	gpioDriver := capsules.NewGPIO(b.Kernel.CreateGrant(tock.DriverGPIO, memCap), gpioPins...)

	b.phase("led")
	led := capsules.NewLED(true, p.GPIO.At(LEDPin))

	b.phase("button")
	button, err := capsules.NewButton(b.Kernel.CreateGrant(tock.DriverButton, memCap), capsules.ButtonPin{
		Pin:       p.GPIO.At(ButtonPin),
		ActiveLow: true,
		Pull:      gpio.PullUp,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating button driver: %w", err)
	}

	b.phase("alarm")
	p.RTC.Start()
	alarmMux := capsules.NewAlarmMux(p.RTC)
	alarm := capsules.NewAlarmDriver(alarmMux.NewVirtualAlarm(), b.Kernel.CreateGrant(tock.DriverAlarm, memCap))

	b.phase("cdc")
	p.Usbd.SetDescriptor(nrf52840.DeviceDescriptor{
		VendorID:     uint16(conf.USBVendorID),
		ProductID:    uint16(conf.USBProductID),
		Manufacturer: conf.USBManufacturer,
		Product:      conf.USBProduct,
		SerialNumber: p.FICR.AddressString(),
	})
	p.Usbd.SetBaudRateClient(func(baud uint32) {
		if baud == BootloaderBaud {
			EnterBootloader(p.Power, b.SCB)
		}
	})
	if err := slots.CDC.Set(p.Usbd); err != nil {
		return nil, fmt.Errorf("saving CDC: %w", err)
	}
	printer := process.TextPrinter{}
	if err := slots.ProcessPrinter.Set(printer); err != nil {
		return nil, fmt.Errorf("saving process printer: %w", err)
	}

	b.phase("console")
	b.UartMux = capsules.NewUartMux(p.Usbd, uint32(conf.ConsoleBaud))
	b.DebugWriter = debug.NewWriter(b.UartMux.NewDevice("debug"))
	fault := faultPolicy(conf, printer, b.DebugWriter)
	b.Console = capsules.NewProcessConsole(b.UartMux.NewDevice("process console"), capsules.ProcessConsoleConfig{
		Processes:  procs,
		Printer:    printer,
		Fault:      fault,
		Chip:       b.Chip,
		Reset:      b.SCB.Reset,
		Bootloader: func() { EnterBootloader(p.Power, b.SCB) },
	}, manageCap)
	console := capsules.NewConsole(b.UartMux.NewDevice("console"), b.Kernel.CreateGrant(tock.DriverConsole, memCap))
	debug.SetWriter(b.DebugWriter, debugCap)
	cu.Add(func() { debug.SetWriter(nil, debugCap) })
	if err := slots.DebugWriter.Set(b.DebugWriter); err != nil {
		return nil, fmt.Errorf("saving debug writer: %w", err)
	}

	b.phase("rng")
	rng := capsules.NewRNG(p.TRNG, b.Kernel.CreateGrant(tock.DriverRNG, memCap))

	b.phase("adc")
	p.SAADC.Calibrate()
	p.SAADC.SetupChannels(ADCInputs...)
	adc := capsules.NewADC(p.SAADC, b.Kernel.CreateGrant(tock.DriverADC, memCap))

	b.phase("screen")
	p.TWI1.Configure(SCLPin, SDAPin)
	panel := opts.Panel
	if panel == nil {
		dev, err := ssd1306.NewI2C(p.TWI1, &ssd1306.DefaultOpts)
		if err != nil {
			return nil, fmt.Errorf("error creating ssd1306: %w", err)
		}
		panel = dev
	}
	screen := capsules.NewSharedScreen(panel, display.NewAllocator(regions), b.Kernel.CreateGrant(tock.DriverScreen, memCap))

	b.phase("wireless")
	ble := capsules.NewBLE(p.BLERadio, alarmMux.NewVirtualAlarm(), b.Kernel.CreateGrant(tock.DriverBLEAdvertising, memCap))
	if err := p.IEEE802154.SetChannel(conf.Channel); err != nil {
		return nil, fmt.Errorf("error configuring radio: %w", err)
	}
	id := p.FICR.ID()
	short := binary.LittleEndian.Uint16(id[:2])
	b.MacMux = capsules.NewMacMux(p.IEEE802154, conf.Channel)
	b.MacMux.Configure(uint16(conf.PANID), short, id)
	radio := capsules.NewIEEE802154(b.MacMux.NewDevice(), b.Kernel.CreateGrant(tock.DriverIEEE802154, memCap))
	udp := capsules.NewUDPDriver(b.MacMux.NewDevice(), uint16(conf.DstMAC), Interfaces(short), b.Kernel.CreateGrant(tock.DriverUDP, memCap))

	b.phase("loader")
	flash, mem := layout.Regions()
	n, err := process.LoadSequential(procs, flash, mem, opts.Apps)
	b.Loaded = n
	if err != nil {
		// A bad application does not stop the kernel.
		log.Warningf("Error loading processes: %v", err)
		debug.Printf("Error loading processes!\n")
	}

	b.phase("clocks")
	p.Clock.StartHigh()
	p.Clock.StartLow()

	b.phase("platform")
	b.Platform = &Platform{
		console:    console,
		gpio:       gpioDriver,
		alarm:      alarm,
		led:        led,
		button:     button,
		adc:        adc,
		rng:        rng,
		screen:     screen,
		ble:        ble,
		ieee802154: radio,
		udp:        udp,
		ipc:        kernel.NewIPC(b.Kernel, memCap),
		scheduler:  process.NewRoundRobin(procs),
		systick:    cortexm4.NewWithCalibration(physic.Frequency(conf.SysTickHz) * physic.Hertz),
		fault:      fault,
	}

	b.phase("cdc attach")
	p.Usbd.Enable()
	p.Usbd.Attach()

	b.Panic = NewPanicHook(slots, opts.Halt)
	b.Kernel.SetPanicHandler(b.Panic.Handle)
	debug.Printf("Initialization complete. Entering main loop.\n")
	b.Console.Start()
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("error initializing screen: %w", err)
	}

	slots.Seal()
	b.mainLoop = capabilities.NewMainLoop()
	cu.Release()
	log.Infof("Board started: %d/%d processes loaded, %v, kernel stack %#x", n, procs.Cap(), layout, StackSize)
	return b, nil
}

// Run runs the kernel loop until ctx is done, the iteration limit is
// reached or the kernel panics.
func (b *Board) Run(ctx context.Context) error {
	return b.Kernel.Loop(ctx, b.Platform, b.Chip, b.Platform.ipc, b.mainLoop)
}

// EnterBootloader resets the board into the bootloader.
func (b *Board) EnterBootloader() {
	EnterBootloader(b.Peripherals.Power, b.SCB)
}

// Interfaces returns the UDP interface addresses of a node with the given
// short MAC address: two fixed addresses and the link-local address derived
// from the MAC.
func Interfaces(short uint16) []netip.Addr {
	var a, c [16]byte
	for i := range a {
		a[i] = byte(i)
		c[i] = byte(0x10 + i)
	}
	ll := [16]byte{0: 0xfe, 1: 0x80, 11: 0xff, 12: 0xfe}
	binary.BigEndian.PutUint16(ll[14:], short)
	return []netip.Addr{netip.AddrFrom16(a), netip.AddrFrom16(c), netip.AddrFrom16(ll)}
}

func faultPolicy(conf *config.Config, printer process.TextPrinter, out *debug.Writer) process.FaultPolicy {
	switch conf.FaultPolicy {
	case config.FaultStop:
		return kernel.NoProcessFault{}
	case config.FaultRestart:
		return process.RestartFaultPolicy{Threshold: conf.RestartThreshold}
	case config.FaultPanic:
		return process.PanicFaultPolicy{}
	default:
		return &process.StopWithDebugFaultPolicy{Printer: printer, Out: out}
	}
}
