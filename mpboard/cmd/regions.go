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
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"gvisor.dev/mpboard/mpboard/config"
	"gvisor.dev/mpboard/pkg/display"
)

// Regions implements subcommands.Command for the "regions" command.
type Regions struct {
	hash string
}

// Name implements subcommands.Command.Name.
func (*Regions) Name() string {
	return "regions"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Regions) Synopsis() string {
	return "list and validate the display regions"
}

// Usage implements subcommands.Command.Usage.
func (*Regions) Usage() string {
	return `regions [--hash NAME] - list the configured display regions with the
identity each application name maps to, and check that they fit the panel
without overlapping. With --hash, print the identity of NAME instead.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Regions) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.hash, "hash", "", "print the identity of an application name.")
}

// Execute implements subcommands.Command.Execute.
func (r *Regions) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if r.hash != "" {
		fmt.Printf("0x%08x\n", display.Identity(r.hash))
		return subcommands.ExitSuccess
	}
	conf := args[0].(*config.Config)
	if err := writeRegions(os.Stdout, conf.Regions); err != nil {
		return Errorf("%v", err)
	}
	return subcommands.ExitSuccess
}

// writeRegions prints regions followed by the validation result. It
// returns the validation error, if any.
func writeRegions(w io.Writer, regions []config.Region) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "APP\tIDENTITY\tX\tY\tWIDTH\tHEIGHT\n")
	appRegions := make([]display.AppRegion, 0, len(regions))
	for _, r := range regions {
		ar := display.NewAppRegion(r.App, r.X, r.Y, r.Width, r.Height)
		appRegions = append(appRegions, ar)
		fmt.Fprintf(tw, "%s\t0x%08x\t%d\t%d\t%d\t%d\n", r.App, ar.ID, r.X, r.Y, r.Width, r.Height)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if err := display.Validate(appRegions, config.Screen); err != nil {
		fmt.Fprintf(w, "\ninvalid: %v\n", err)
		return fmt.Errorf("invalid display regions: %w", err)
	}
	fmt.Fprintf(w, "\n%d regions fit the %dx%d panel\n", len(regions), config.Screen.Dx(), config.Screen.Dy())
	return nil
}
