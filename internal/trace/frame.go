/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package trace records which handlers ran during a frame and keeps a
// bounded history of recent frames per root element.
package trace

import (
	"fmt"
	"strings"
	"time"

	"framepass/internal/dispatch"

	"github.com/google/uuid"
)

// Step is one callback invocation in a frame.
type Step struct {
	Element string           `json:"element"`
	Type    string           `json:"type"`
	Pass    dispatch.Pass    `json:"pass"`
	Subpass dispatch.Subpass `json:"subpass"`
	Handler string           `json:"handler"`
}

func (s Step) String() string {
	return fmt.Sprintf("%s/%s %s.%s", s.Pass, s.Subpass, s.Element, s.Handler)
}

// Frame is everything dispatched on one root during one tick.
type Frame struct {
	ID        uuid.UUID     `json:"id"`
	Root      string        `json:"root"`
	Number    uint64        `json:"number"`
	Steps     []Step        `json:"steps"`
	TS        time.Time     `json:"ts"`
	Duration  time.Duration `json:"duration"`
	Cancelled bool          `json:"cancelled"`
	// Repeats counts identical frames folded into this one.
	Repeats int `json:"repeats,omitempty"`
}

// Size estimates the memory held by f.
func (f Frame) Size() int {
	n := 64 + len(f.Root)
	for _, s := range f.Steps {
		n += 16 + len(s.Element) + len(s.Type) + len(s.Handler)
	}
	return n
}

// SameSteps reports whether both frames ran the same handlers in the same order.
func (f Frame) SameSteps(o Frame) bool {
	if f.Root != o.Root || f.Cancelled != o.Cancelled || len(f.Steps) != len(o.Steps) {
		return false
	}
	for i := range f.Steps {
		if f.Steps[i] != o.Steps[i] {
			return false
		}
	}
	return true
}

// Summary is a one-line description for logs and crash reports.
func (f Frame) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "frame %d root=%s steps=%d", f.Number, f.Root, len(f.Steps))
	if f.Cancelled {
		b.WriteString(" cancelled")
	}
	if f.Repeats > 0 {
		fmt.Fprintf(&b, " repeats=%d", f.Repeats)
	}
	return b.String()
}

// Recorder collects steps for the frame being dispatched.
type Recorder struct {
	steps []Step
}

// Trace implements dispatch.Tracer.
func (r *Recorder) Trace(s dispatch.Step) {
	name := ""
	if s.Callback != nil {
		name = s.Callback.Name
	}
	r.steps = append(r.steps, Step{
		Element: dispatch.ElementName(s.Element),
		Type:    fmt.Sprintf("%T", s.Element),
		Pass:    s.Pass,
		Subpass: s.Subpass,
		Handler: name,
	})
}

// Steps returns the steps recorded so far.
func (r *Recorder) Steps() []Step { return r.steps }

// Frame closes the current frame and starts a new one.
func (r *Recorder) Frame(root string, number uint64, start time.Time, cancelled bool) Frame {
	f := Frame{
		ID:        uuid.New(),
		Root:      root,
		Number:    number,
		Steps:     r.steps,
		TS:        start,
		Duration:  time.Since(start),
		Cancelled: cancelled,
	}
	r.steps = nil
	return f
}
