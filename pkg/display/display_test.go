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

package display

import (
	"errors"
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var screen = image.Rect(0, 0, 128, 64)

func boardRegions() []AppRegion {
	return []AppRegion{
		NewAppRegion("circle", 0, 0, 64, 64),
		NewAppRegion("count", 64, 0, 64, 32),
		NewAppRegion("tock-scroll", 64, 32, 64, 32),
	}
}

func TestRegionForStable(t *testing.T) {
	a := NewAllocator(boardRegions())
	for _, name := range []string{"circle", "count", "tock-scroll"} {
		first, ok := a.RegionFor(Identity(name))
		if !ok {
			t.Fatalf("RegionFor(%q) absent", name)
		}
		second, ok := a.RegionFor(Identity(name))
		if !ok {
			t.Fatalf("second RegionFor(%q) absent", name)
		}
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("RegionFor(%q) not stable (-first +second):\n%s", name, diff)
		}
		if first.ID != Identity(name) {
			t.Errorf("RegionFor(%q).ID = %#x, want %#x", name, first.ID, Identity(name))
		}
	}
}

func TestRegionForUnknown(t *testing.T) {
	a := NewAllocator(boardRegions())
	for _, name := range []string{"", "blink", "Circle", "tock-scroll "} {
		if r, ok := a.RegionFor(Identity(name)); ok {
			t.Errorf("RegionFor(%q) = %v, want absent", name, r)
		}
	}
}

func TestAllocatorCopiesInput(t *testing.T) {
	in := boardRegions()
	a := NewAllocator(in)
	in[0].Width = 1
	r, _ := a.RegionFor(Identity("circle"))
	if r.Width != 64 {
		t.Errorf("allocator observed caller mutation: width %d", r.Width)
	}
}

func TestBoardRegionsValid(t *testing.T) {
	if err := Validate(boardRegions(), screen); err != nil {
		t.Errorf("Validate(board regions) = %v", err)
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		regions []AppRegion
		want    []error
	}{
		{
			name:    "empty list",
			regions: nil,
		},
		{
			name: "overlap",
			regions: []AppRegion{
				NewAppRegion("a", 0, 0, 64, 64),
				NewAppRegion("b", 63, 0, 10, 10),
			},
			want: []error{ErrOverlap},
		},
		{
			name: "touching is fine",
			regions: []AppRegion{
				NewAppRegion("a", 0, 0, 64, 64),
				NewAppRegion("b", 64, 0, 64, 64),
			},
		},
		{
			name:    "out of bounds",
			regions: []AppRegion{NewAppRegion("a", 100, 0, 64, 64)},
			want:    []error{ErrOutOfBounds},
		},
		{
			name:    "negative origin",
			regions: []AppRegion{NewAppRegion("a", -1, 0, 8, 8)},
			want:    []error{ErrOutOfBounds},
		},
		{
			name:    "zero size",
			regions: []AppRegion{NewAppRegion("a", 0, 0, 0, 8)},
			want:    []error{ErrEmpty},
		},
		{
			name:    "zero id",
			regions: []AppRegion{{ID: 0, Width: 8, Height: 8}},
			want:    []error{ErrZeroID},
		},
		{
			name: "duplicate id",
			regions: []AppRegion{
				NewAppRegion("a", 0, 0, 8, 8),
				NewAppRegion("a", 8, 0, 8, 8),
			},
			want: []error{ErrDuplicateID},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.regions, screen)
			if len(tc.want) == 0 {
				if err != nil {
					t.Errorf("Validate = %v, want nil", err)
				}
				return
			}
			for _, want := range tc.want {
				if !errors.Is(err, want) {
					t.Errorf("Validate = %v, want %v", err, want)
				}
			}
		})
	}
}
