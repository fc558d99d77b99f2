// Copyright 2017-2022 Daniel Swarbrick. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nvme

import "math/big"

// Uint128 is a little-endian 128-bit unsigned integer, as used by the eight
// wide counters in the SMART/Health log page. It is kept as two uint64 words
// rather than math/big so that the decode path stays allocation-free; Big
// converts to an arbitrary-precision value only when a caller asks for one.
type Uint128 struct {
	Lo uint64
	Hi uint64
}

func uint128FromLE(buf [16]byte) Uint128 {
	return Uint128{
		Lo: leUint64(buf[0:8]),
		Hi: leUint64(buf[8:16]),
	}
}

// Float64 converts the counter to a float64, matching the exporter's wire
// format which emits all counters as floating point values; precision above
// 2^53 is lost, per the NVMe exporter design notes.
func (v Uint128) Float64() float64 {
	if v.Hi == 0 {
		return float64(v.Lo)
	}
	return float64(v.Hi)*18446744073709551616.0 + float64(v.Lo)
}

// Big returns the exact value as a *big.Int, for callers that want
// arbitrary-precision text emission instead of the lossy float64 form.
func (v Uint128) Big() *big.Int {
	hi := new(big.Int).SetUint64(v.Hi)
	hi.Lsh(hi, 64)
	return hi.Or(hi, new(big.Int).SetUint64(v.Lo))
}

func (v Uint128) String() string {
	return v.Big().String()
}
