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

package config

import (
	"flag"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "path to a TOML configuration file. Flags set on the command line take precedence over it.")

	// Logging flags.
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("log", "", "file path where internal debug information is written, default is stderr.")
	flagSet.String("log-format", "text", "log format: text (default), json.")

	// Kernel flags.
	flagSet.Int("num-procs", 8, "size of the process array.")
	flagSet.Var(faultPolicyPtr(FaultStopWithDebug), "fault-policy", "what to do with a faulted process: stop-debug (default), stop, restart, panic.")
	flagSet.Int("restart-threshold", 3, "number of restarts allowed by --fault-policy=restart.")
	flagSet.Uint64("systick-hz", 64000000, "SysTick calibration frequency in Hz.")
	flagSet.Duration("step-cost", time.Millisecond, "virtual time charged for each application step.")
	flagSet.Uint64("iterations", 0, "stop the kernel loop after this many iterations. 0 runs until interrupted.")
	flagSet.Bool("pace", false, "wait for alarms in real time instead of fast-forwarding the clock.")

	// Peripheral flags.
	flagSet.Uint("console-baud", 115200, "console baud rate.")
	flagSet.Uint("pan-id", 0xABCD, "IEEE 802.15.4 PAN ID.")
	flagSet.Uint("dst-mac", 49138, "short MAC address UDP datagrams are sent to.")
	flagSet.Int("channel", 26, "IEEE 802.15.4 channel.")
	flagSet.Uint("usb-vid", 0x2341, "USB vendor ID.")
	flagSet.Uint("usb-pid", 0x005a, "USB product ID.")
	flagSet.String("usb-manufacturer", "MakePython", "USB manufacturer string.")
	flagSet.String("usb-product", "NRF52840 - TockOS", "USB product string.")
}

// fields maps flag names to Config field indices.
func fields() map[string]int {
	m := make(map[string]int)
	st := reflect.TypeOf(Config{})
	for i := 0; i < st.NumField(); i++ {
		if name, ok := st.Field(i).Tag.Lookup("flag"); ok {
			m[name] = i
		}
	}
	return m
}

func setFromFlag(conf *Config, flagSet *flag.FlagSet, name string, field int) {
	fl := flagSet.Lookup(name)
	if fl == nil {
		panic(fmt.Sprintf("Flag %q not found", name))
	}
	getter, ok := fl.Value.(flag.Getter)
	if !ok {
		panic(fmt.Sprintf("Flag %q does not implement flag.Getter", name))
	}
	reflect.ValueOf(conf).Elem().Field(field).Set(reflect.ValueOf(getter.Get()))
}

// NewFromFlags creates a new Config with values coming from the given
// flags. The configuration file named by --config, if any, is applied
// beneath flags explicitly set on the command line.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{
		Regions: DefaultRegions(),
		Memory:  DefaultMemory,
	}
	fs := fields()
	for name, i := range fs {
		setFromFlag(conf, flagSet, name, i)
	}

	if fl := flagSet.Lookup("config"); fl != nil && fl.Value.String() != "" {
		if err := conf.decodeFile(fl.Value.String()); err != nil {
			return nil, err
		}
		flagSet.Visit(func(fl *flag.Flag) {
			if i, ok := fs[fl.Name]; ok {
				setFromFlag(conf, flagSet, fl.Name, i)
			}
		})
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) decodeFile(path string) error {
	// Regions in the file replace the defaults rather than merging with
	// them.
	regions := c.Regions
	c.Regions = nil
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("reading config %q: %w", path, err)
	}
	if c.Regions == nil {
		c.Regions = regions
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown keys in config %q: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// ToFlags returns a slice of flags that correspond to the given Config,
// omitting values equal to the defaults.
func (c *Config) ToFlags() []string {
	defaults := flag.NewFlagSet("defaults", flag.ContinueOnError)
	RegisterFlags(defaults)

	var rv []string
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			continue
		}
		val := fmt.Sprintf("%v", obj.Field(i).Interface())
		if def := defaults.Lookup(name); def != nil && def.DefValue == val {
			continue
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", name, val))
	}
	return rv
}
