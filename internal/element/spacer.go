/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package element

import "framepass/internal/dispatch"

// Spacer is an empty leaf. It declares nothing of its own; the base snap
// handler still applies.
type Spacer struct{ Node }

func NewSpacer(name string, size Size, grow float32) *Spacer {
	s := &Spacer{}
	s.Desired = size
	s.Grow = grow
	s.setup(s, name)
	return s
}

func (s *Spacer) Embedded() dispatch.Element { return &s.Node }
