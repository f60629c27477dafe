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

// Package display partitions one physical screen among applications.
//
// Each application is bound to a fixed rectangle by its identity, a CRC-32
// of its name. The binding is decided at boot and never changes; an
// application without a region has no access to the screen.
package display

import (
	"errors"
	"fmt"
	"image"

	"gvisor.dev/mpboard/pkg/checksum"
)

// Identity returns the identity of an application name.
func Identity(name string) uint32 {
	return checksum.String(name)
}

// AppRegion is a rectangle of the screen owned by one application.
type AppRegion struct {
	ID     uint32
	X      int
	Y      int
	Width  int
	Height int
}

// NewAppRegion returns the region for the named application.
func NewAppRegion(name string, x, y, width, height int) AppRegion {
	return AppRegion{ID: Identity(name), X: x, Y: y, Width: width, Height: height}
}

// Rect returns the region as an image rectangle.
func (r AppRegion) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// String implements fmt.Stringer.
func (r AppRegion) String() string {
	return fmt.Sprintf("0x%08x@(%d,%d %dx%d)", r.ID, r.X, r.Y, r.Width, r.Height)
}

// Allocator maps application identities to their regions.
//
// The region list is copied at construction and searched linearly. The
// allocator does not check the list; use Validate when building it.
type Allocator struct {
	regions []AppRegion
}

// NewAllocator returns an allocator over a copy of regions.
func NewAllocator(regions []AppRegion) *Allocator {
	return &Allocator{regions: append([]AppRegion(nil), regions...)}
}

// RegionFor returns the region bound to id.
func (a *Allocator) RegionFor(id uint32) (AppRegion, bool) {
	for _, r := range a.regions {
		if r.ID == id {
			return r, true
		}
	}
	return AppRegion{}, false
}

// Regions returns a copy of the region list.
func (a *Allocator) Regions() []AppRegion {
	return append([]AppRegion(nil), a.regions...)
}

// Validation errors.
var (
	ErrZeroID      = errors.New("region has zero identity")
	ErrDuplicateID = errors.New("identity bound to more than one region")
	ErrEmpty       = errors.New("region is empty")
	ErrOutOfBounds = errors.New("region exceeds display bounds")
	ErrOverlap     = errors.New("regions overlap")
)

// Validate checks that every region is non-empty, lies within bounds, has a
// unique non-zero identity, and overlaps no other region. All problems are
// reported.
func Validate(regions []AppRegion, bounds image.Rectangle) error {
	var errs []error
	for i, r := range regions {
		if r.ID == 0 {
			errs = append(errs, fmt.Errorf("region %d %v: %w", i, r, ErrZeroID))
		}
		if r.Width <= 0 || r.Height <= 0 {
			errs = append(errs, fmt.Errorf("region %d %v: %w", i, r, ErrEmpty))
			continue
		}
		if !r.Rect().In(bounds) {
			errs = append(errs, fmt.Errorf("region %d %v not in %v: %w", i, r, bounds, ErrOutOfBounds))
		}
		for j := 0; j < i; j++ {
			o := regions[j]
			if o.ID == r.ID && r.ID != 0 {
				errs = append(errs, fmt.Errorf("regions %d and %d: %w", j, i, ErrDuplicateID))
			}
			if o.Width > 0 && o.Height > 0 && o.Rect().Overlaps(r.Rect()) {
				errs = append(errs, fmt.Errorf("regions %d %v and %d %v: %w", j, o, i, r, ErrOverlap))
			}
		}
	}
	return errors.Join(errs...)
}
