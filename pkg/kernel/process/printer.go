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

package process

import (
	"fmt"
	"io"
)

// TextPrinter writes a human readable description of a process.
type TextPrinter struct{}

// Print writes the state, counters and memory layout of p to w.
func (TextPrinter) Print(w io.Writer, p *Process) {
	st := p.Stats()
	fmt.Fprintf(w, "App: %s   -   [%v]\n", p.name, p.state)
	fmt.Fprintf(w, " ShortID: %v   ID: %v\n", p.shortID, p.id)
	fmt.Fprintf(w, " Events Queued: %d   Syscall Count: %d   Dropped Upcall Count: %d\n",
		st.PendingUpcalls, st.Syscalls, st.DroppedUpcalls)
	fmt.Fprintf(w, " Restart Count: %d   Timeslice Expirations: %d   Faults: %d\n",
		st.Restarts, st.TimesliceExpirations, st.Faults)
	fmt.Fprintf(w, " Last Syscall: %v\n", st.LastSyscall)
	if p.lastErr != nil {
		fmt.Fprintf(w, " Last Fault: %v\n", p.lastErr)
	}
	fmt.Fprintf(w, " Flash: 0x%08x-0x%08x (%d bytes)\n", p.flash.Start, p.flash.End(), len(p.flash.Data))
	fmt.Fprintf(w, " RAM:   0x%08x-0x%08x (%d bytes)\n", p.memory.Start, p.memory.End(), len(p.memory.Data))
}

// PrintSummary writes one line per process in a.
func (TextPrinter) PrintSummary(w io.Writer, a *Array) {
	fmt.Fprintf(w, " PID    Name                Quanta  Syscalls  Restarts  Grants  State\n")
	a.Each(func(p *Process) {
		st := p.Stats()
		fmt.Fprintf(w, " %-6v %-20s %6d %9d %9d %7d  %v\n",
			p.id, p.name, st.TimesliceExpirations, st.Syscalls, st.Restarts, p.subscriptionCount(), p.state)
	})
}

func (p *Process) subscriptionCount() int {
	n := 0
	for _, s := range p.subs {
		if s.used {
			n++
		}
	}
	return n
}
