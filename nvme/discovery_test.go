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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsControllerName(t *testing.T) {
	assert.True(t, IsControllerName("nvme0"))
	assert.True(t, IsControllerName("nvme12"))

	assert.False(t, IsControllerName("nvme0n1"))
	assert.False(t, IsControllerName("sda"))
	assert.False(t, IsControllerName("nvme"))
	assert.False(t, IsControllerName(""))
}

func TestParseNamespaceName(t *testing.T) {
	cases := []struct {
		controller string
		namespace  string
		wantNSID   uint32
		wantOK     bool
	}{
		{"nvme0", "nvme0n1", 1, true},
		{"nvme12", "nvme12n25", 25, true},
		{"nvme0", "nvme0np1", 0, false},
		{"nvme0", "nvme0", 0, false},
		{"nvme0", "nvme1n1", 0, false},
		{"nvme0", "nvme0n", 0, false},
	}

	for _, tc := range cases {
		nsid, ok := ParseNamespaceName(tc.controller, tc.namespace)
		assert.Equal(t, tc.wantOK, ok, "controller=%s namespace=%s", tc.controller, tc.namespace)
		if tc.wantOK {
			assert.Equal(t, tc.wantNSID, nsid, "controller=%s namespace=%s", tc.controller, tc.namespace)
		}
	}
}
