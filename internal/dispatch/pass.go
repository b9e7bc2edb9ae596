/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dispatch

import (
	"strconv"
	"strings"
)

// Pass is a coarse dispatch phase. Ordering is by integer value; the gaps
// between canonical values are free for custom passes.
type Pass int32

const (
	PassPre    Pass = -1000
	PassNormal Pass = 0
	PassLate   Pass = 1000
	PassPost   Pass = 2000
	PassForce  Pass = 1_000_000
)

func (p Pass) String() string {
	switch p {
	case PassPre:
		return "pre"
	case PassNormal:
		return "normal"
	case PassLate:
		return "late"
	case PassPost:
		return "post"
	case PassForce:
		return "force"
	default:
		return strconv.FormatInt(int64(p), 10)
	}
}

// ParsePass accepts a canonical pass name or a raw integer.
func ParsePass(s string) (Pass, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pre":
		return PassPre, true
	case "normal":
		return PassNormal, true
	case "late":
		return PassLate, true
	case "post":
		return PassPost, true
	case "force":
		return PassForce, true
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, false
	}
	return Pass(n), true
}

// Subpass is a fine-grained phase within a pass. SubpassAfterChildren is the
// threshold at which Invoke must already have visited every child.
type Subpass int32

const (
	SubpassPre            Subpass = -1000
	SubpassBeforeChildren Subpass = 0
	SubpassAfterChildren  Subpass = 1000
	SubpassLate           Subpass = 2000
	SubpassPost           Subpass = 3000
	SubpassForce          Subpass = 1_000_000
)

func (s Subpass) String() string {
	switch s {
	case SubpassPre:
		return "pre"
	case SubpassBeforeChildren:
		return "before_children"
	case SubpassAfterChildren:
		return "after_children"
	case SubpassLate:
		return "late"
	case SubpassPost:
		return "post"
	case SubpassForce:
		return "force"
	default:
		return strconv.FormatInt(int64(s), 10)
	}
}

// AfterChildren reports whether s is at or beyond the child-recursion threshold.
func (s Subpass) AfterChildren() bool { return s >= SubpassAfterChildren }
