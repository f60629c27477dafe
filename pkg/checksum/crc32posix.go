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

// Package checksum provides the CRC-32/POSIX checksum used to derive stable
// application identities from application names.
//
// The algorithm is the non-reflected CRC-32 with polynomial 0x04C11DB7, zero
// initial value and an inverted result, without the length suffix that the
// cksum utility appends. The standard library only implements the reflected
// variants.
package checksum

const posixPoly = 0x04C11DB7

var posixTable = makePOSIXTable()

func makePOSIXTable() *[256]uint32 {
	var t [256]uint32
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&(1<<31) != 0 {
				crc = (crc << 1) ^ posixPoly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return &t
}

// UpdatePOSIX returns the result of adding the bytes in p to a running
// (non-inverted) crc.
func UpdatePOSIX(crc uint32, p []byte) uint32 {
	for _, b := range p {
		crc = (crc << 8) ^ posixTable[byte(crc>>24)^b]
	}
	return crc
}

// CRC32POSIX returns the CRC-32/POSIX checksum of p.
func CRC32POSIX(p []byte) uint32 {
	return ^UpdatePOSIX(0, p)
}

// String returns the CRC-32/POSIX checksum of s.
func String(s string) uint32 {
	return CRC32POSIX([]byte(s))
}
