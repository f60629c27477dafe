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

package tock

import "fmt"

// ReturnVariant identifies the shape of a CommandReturn.
type ReturnVariant uint8

// Return variants.
const (
	VariantFailure ReturnVariant = iota
	VariantSuccess
	VariantSuccessU32
	VariantSuccessU32U32
)

// CommandReturn is the value a driver returns from a command system call.
type CommandReturn struct {
	Variant ReturnVariant
	Err     ErrorCode
	R1      uint32
	R2      uint32
}

// Success returns a CommandReturn with no data.
func Success() CommandReturn {
	return CommandReturn{Variant: VariantSuccess}
}

// SuccessU32 returns a CommandReturn carrying one value.
func SuccessU32(v uint32) CommandReturn {
	return CommandReturn{Variant: VariantSuccessU32, R1: v}
}

// SuccessU32U32 returns a CommandReturn carrying two values.
func SuccessU32U32(a, b uint32) CommandReturn {
	return CommandReturn{Variant: VariantSuccessU32U32, R1: a, R2: b}
}

// Failure returns a failed CommandReturn.
func Failure(err ErrorCode) CommandReturn {
	return CommandReturn{Variant: VariantFailure, Err: err}
}

// IsSuccess returns true for every success variant.
func (r CommandReturn) IsSuccess() bool {
	return r.Variant != VariantFailure
}

// String implements fmt.Stringer.
func (r CommandReturn) String() string {
	switch r.Variant {
	case VariantFailure:
		return fmt.Sprintf("Failure(%v)", r.Err)
	case VariantSuccess:
		return "Success"
	case VariantSuccessU32:
		return fmt.Sprintf("SuccessU32(%d)", r.R1)
	case VariantSuccessU32U32:
		return fmt.Sprintf("SuccessU32U32(%d, %d)", r.R1, r.R2)
	default:
		return fmt.Sprintf("CommandReturn(%d)", r.Variant)
	}
}

// CommandExists is command 0, which every driver implements to let a process
// probe for its presence.
const CommandExists = 0
