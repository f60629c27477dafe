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

	"gvisor.dev/mpboard/pkg/log"
)

// App describes an application to load.
type App struct {
	// Name is the application name. It determines the ShortID.
	Name string

	// New returns a fresh instance of the program.
	New func() Program
}

// blockAlign is the alignment of per-process memory blocks.
const blockAlign = 8

// LoadSequential places apps into a in order. Flash is divided evenly among
// the apps; RAM is divided into Cap() equal blocks so that every slot has the
// same budget whether or not it is occupied. It returns the number of loaded
// processes.
//
// Two applications whose names hash to the same ShortID are rejected.
func LoadSequential(a *Array, flash, memory Region, apps []App) (int, error) {
	if len(apps) == 0 {
		return 0, nil
	}
	if len(apps) > a.Cap() {
		return 0, fmt.Errorf("%d apps exceed process array capacity %d", len(apps), a.Cap())
	}
	flashBlock := len(flash.Data) / len(apps)
	memBlock := (len(memory.Data) / a.Cap()) &^ (blockAlign - 1)
	if flashBlock == 0 || memBlock == 0 {
		return 0, fmt.Errorf("app regions too small: flash %d bytes, memory %d bytes for %d slots",
			len(flash.Data), len(memory.Data), a.Cap())
	}

	loaded := 0
	for i, app := range apps {
		if app.New == nil {
			return loaded, fmt.Errorf("app %q has no program", app.Name)
		}
		sid, ok := FixedFromName(app.Name)
		if !ok {
			return loaded, fmt.Errorf("app %q has a zero identity", app.Name)
		}
		if other := a.ByShortID(sid); other != nil {
			return loaded, fmt.Errorf("app %q identity %v collides with %q", app.Name, sid, other.name)
		}
		slot, err := a.FreeSlot()
		if err != nil {
			return loaded, err
		}
		f := Region{
			Start: flash.Start + uint32(i*flashBlock),
			Data:  flash.Data[i*flashBlock : (i+1)*flashBlock : (i+1)*flashBlock],
		}
		m := Region{
			Start: memory.Start + uint32(slot*memBlock),
			Data:  memory.Data[slot*memBlock : (slot+1)*memBlock : (slot+1)*memBlock],
		}
		p := New(ID{Index: slot, Unique: 1}, app.Name, sid, app.New, f, m)
		if err := a.Put(p); err != nil {
			return loaded, err
		}
		log.Debugf("Loaded process %q in slot %d: flash 0x%08x ram 0x%08x", app.Name, slot, f.Start, m.Start)
		loaded++
	}
	return loaded, nil
}
