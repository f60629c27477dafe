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
	"debug/elf"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
)

// MemUsage implements subcommands.Command for the "memusage" command.
type MemUsage struct {
	depth int
	top   int
}

// Name implements subcommands.Command.Name.
func (*MemUsage) Name() string {
	return "memusage"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*MemUsage) Synopsis() string {
	return "summarize the flash and RAM use of a kernel image"
}

// Usage implements subcommands.Command.Usage.
func (*MemUsage) Usage() string {
	return `memusage [flags] <elf> - print the size of the sections of a kernel
ELF image and the space taken by its symbols, grouped by name prefix.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (m *MemUsage) SetFlags(f *flag.FlagSet) {
	f.IntVar(&m.depth, "depth", 1, "group symbols by the first n components of their name.")
	f.IntVar(&m.top, "top", 20, "number of groups to print per section, 0 for all.")
}

// Execute implements subcommands.Command.Execute.
func (m *MemUsage) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	ef, err := elf.Open(f.Arg(0))
	if err != nil {
		return Errorf("%v", err)
	}
	defer ef.Close()
	u, err := summarize(ef, m.depth)
	if err != nil {
		return Errorf("%s: %v", f.Arg(0), err)
	}
	if err := u.write(os.Stdout, m.top); err != nil {
		return Errorf("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// Kernel section names. Sections not listed are counted by their flags.
const (
	sectionText     = ".text"
	sectionRelocate = ".relocate"
	sectionStack    = ".stack"
	sectionSRAM     = ".sram"
	sectionApps     = ".app_memory"
)

// memUsage is the memory use of an image.
type memUsage struct {
	// Flash is code and read-only data. Relocate is initialized data,
	// stored in flash and copied to RAM. Stack, BSS and Apps are RAM only.
	Flash, Relocate, Stack, BSS, Apps uint64

	// Groups maps a section class to symbol groups.
	Groups map[string][]symbolGroup
}

// symbolGroup is the space taken by symbols sharing a name prefix.
type symbolGroup struct {
	Prefix string
	Size   uint64
	Count  int
}

// summarize computes the memory use of f. Symbols are grouped by the first
// depth components of their name.
func summarize(f *elf.File, depth int) (*memUsage, error) {
	u := &memUsage{Groups: make(map[string][]symbolGroup)}
	for _, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 {
			continue
		}
		switch {
		case s.Name == sectionStack:
			u.Stack += s.Size
		case s.Name == sectionApps:
			u.Apps += s.Size
		case s.Name == sectionSRAM || s.Type == elf.SHT_NOBITS:
			u.BSS += s.Size
		case s.Name == sectionRelocate || s.Flags&elf.SHF_WRITE != 0:
			u.Relocate += s.Size
		default:
			u.Flash += s.Size
		}
	}

	syms, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("reading symbols: %w", err)
	}
	groups := make(map[string]map[string]*symbolGroup)
	for _, sym := range syms {
		if sym.Size == 0 || sym.Section == elf.SHN_UNDEF || int(sym.Section) >= len(f.Sections) {
			continue
		}
		class := "data"
		switch {
		case elf.ST_TYPE(sym.Info) == elf.STT_FUNC:
			class = "functions"
		case f.Sections[sym.Section].Type == elf.SHT_NOBITS:
			class = "bss"
		}
		if groups[class] == nil {
			groups[class] = make(map[string]*symbolGroup)
		}
		prefix := symbolPrefix(sym.Name, depth)
		g, ok := groups[class][prefix]
		if !ok {
			g = &symbolGroup{Prefix: prefix}
			groups[class][prefix] = g
		}
		g.Size += sym.Size
		g.Count++
	}
	for class, m := range groups {
		list := make([]symbolGroup, 0, len(m))
		for _, g := range m {
			list = append(list, *g)
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].Size != list[j].Size {
				return list[i].Size > list[j].Size
			}
			return list[i].Prefix < list[j].Prefix
		})
		u.Groups[class] = list
	}
	return u, nil
}

// symbolPrefix returns the first depth components of a symbol name. Names
// are split on "::" when present and on "." otherwise; a package path before
// the last "/" is part of the first component.
func symbolPrefix(name string, depth int) string {
	if depth <= 0 {
		return "*"
	}
	sep := "."
	if strings.Contains(name, "::") {
		sep = "::"
	}
	dir, base := "", name
	if i := strings.LastIndex(name, "/"); i >= 0 && sep == "." {
		dir, base = name[:i+1], name[i+1:]
	}
	parts := strings.Split(base, sep)
	if len(parts) <= depth {
		return name
	}
	return dir + strings.Join(parts[:depth], sep) + sep + "*"
}

func (u *memUsage) write(w io.Writer, top int) error {
	fmt.Fprintf(w, "Kernel occupies %d bytes of flash\n", u.Flash+u.Relocate)
	fmt.Fprintf(w, "  %8d\tcode and constant data\n", u.Flash)
	fmt.Fprintf(w, "  %8d\tvariable initializers\n", u.Relocate)
	fmt.Fprintf(w, "Kernel occupies %d bytes of RAM\n", u.Stack+u.BSS+u.Relocate)
	fmt.Fprintf(w, "  %8d\tstack\n", u.Stack)
	fmt.Fprintf(w, "  %8d\tuninitialized variables\n", u.BSS)
	fmt.Fprintf(w, "  %8d\tinitialized variables\n", u.Relocate)
	fmt.Fprintf(w, "Applications allocated %d bytes of RAM\n", u.Apps)

	for _, class := range []string{"functions", "data", "bss"} {
		list := u.Groups[class]
		if len(list) == 0 {
			continue
		}
		var total uint64
		for _, g := range list {
			total += g.Size
		}
		fmt.Fprintf(w, "\n%s: %d bytes\n", class, total)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		for i, g := range list {
			if top > 0 && i == top {
				fmt.Fprintf(tw, "\t...\t%d more\t\n", len(list)-top)
				break
			}
			fmt.Fprintf(tw, "\t%d\t%d\t%s\n", g.Size, g.Count, g.Prefix)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
