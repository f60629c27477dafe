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

package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"gvisor.dev/mpboard/mpboard/boot"
	"gvisor.dev/mpboard/mpboard/config"
)

// Drivers implements subcommands.Command for the "drivers" command.
type Drivers struct {
	output string
}

// DriverDoc describes one syscall driver of the board.
type DriverDoc struct {
	Num     uint32 `json:"num"`
	Name    string `json:"name"`
	Capsule string `json:"capsule"`
}

type driversOutputFunc func(io.Writer, []DriverDoc) error

var driversOutputMap = map[string]driversOutputFunc{
	"table": driversTable,
	"json":  driversJSON,
	"csv":   driversCSV,
}

// Name implements subcommands.Command.Name.
func (*Drivers) Name() string {
	return "drivers"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Drivers) Synopsis() string {
	return "Print the syscall drivers of the board."
}

// Usage implements subcommands.Command.Usage.
func (*Drivers) Usage() string {
	return `drivers [options] - Print the syscall drivers of the board.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (d *Drivers) SetFlags(f *flag.FlagSet) {
	f.StringVar(&d.output, "o", "table", "Output format (table, csv, json).")
}

// Execute implements subcommands.Command.Execute.
func (d *Drivers) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	out, ok := driversOutputMap[d.output]
	if !ok {
		return Errorf("Unsupported output format %q", d.output)
	}
	conf := args[0].(*config.Config)
	b, err := boot.Start(conf, boot.NewSlots(), boot.Options{})
	if err != nil {
		return Errorf("error booting board: %v", err)
	}
	if err := out(os.Stdout, driverDocs(b.Platform)); err != nil {
		return Errorf("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// driverDocs lists the drivers p resolves.
func driverDocs(p *boot.Platform) []DriverDoc {
	var docs []DriverDoc
	for _, num := range p.Drivers() {
		drv, _ := p.Lookup(num)
		docs = append(docs, DriverDoc{
			Num:     uint32(num),
			Name:    num.String(),
			Capsule: fmt.Sprintf("%T", drv),
		})
	}
	return docs
}

func driversTable(w io.Writer, docs []DriverDoc) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "NUM\tNAME\tCAPSULE\n"); err != nil {
		return err
	}
	for _, d := range docs {
		if _, err := fmt.Fprintf(tw, "%#x\t%s\t%s\n", d.Num, d.Name, d.Capsule); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func driversJSON(w io.Writer, docs []DriverDoc) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(docs)
}

func driversCSV(w io.Writer, docs []DriverDoc) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"num", "name", "capsule"}); err != nil {
		return err
	}
	for _, d := range docs {
		if err := cw.Write([]string{fmt.Sprintf("%#x", d.Num), d.Name, d.Capsule}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
