/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dispatch

import (
	"fmt"
	"log/slog"

	applog "framepass/internal/log"
)

// Force is the requested force level. The engine carries it; handlers decide
// whether an already applied pass must run again.
type Force uint8

const (
	ForceNone Force = iota
	ForceOne
	ForceAll
)

func (f Force) String() string {
	switch f {
	case ForceNone:
		return "none"
	case ForceOne:
		return "one"
	case ForceAll:
		return "all"
	default:
		return fmt.Sprintf("force(%d)", uint8(f))
	}
}

// Status is the completion status a handler leaves on the event.
type Status uint8

const (
	StatusNormal Status = iota
	StatusFinished
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusFinished:
		return "finished"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// FinishedPolicy selects what StatusFinished does during Invoke.
type FinishedPolicy uint8

const (
	// FinishedContinue treats Finished exactly like Normal.
	FinishedContinue FinishedPolicy = iota
	// FinishedSkipSubpass skips the remaining callbacks of the current subpass.
	FinishedSkipSubpass
)

// Step describes one callback invocation.
type Step struct {
	Element  Element
	Pass     Pass
	Subpass  Subpass
	Callback *Callback
}

// Tracer observes every callback invocation right before it runs.
type Tracer interface {
	Trace(s Step)
}

// Event is the mutable record threaded through one traversal. It is created
// by the caller, reused between passes of a frame, and reset in place by the
// engine between callbacks.
type Event struct {
	Force     Force
	Recursive bool
	Pass      Pass
	Subpass   Subpass
	// Target is the element the outermost Invoke was called on.
	Target Element
	// Element is the element whose callback is running.
	Element Element
	Status  Status

	Finished FinishedPolicy
	Tracer   Tracer
	// OnCancel runs once, where the cancellation was raised.
	OnCancel func(s Step)

	log    *slog.Logger
	active bool
}

// EventOption configures NewEvent.
type EventOption func(*Event)

func WithForce(f Force) EventOption             { return func(e *Event) { e.Force = f } }
func WithRecursive(r bool) EventOption          { return func(e *Event) { e.Recursive = r } }
func WithTracer(t Tracer) EventOption           { return func(e *Event) { e.Tracer = t } }
func WithFinished(p FinishedPolicy) EventOption { return func(e *Event) { e.Finished = p } }
func WithLogger(l *slog.Logger) EventOption     { return func(e *Event) { e.log = l } }
func WithOnCancel(fn func(Step)) EventOption    { return func(e *Event) { e.OnCancel = fn } }

// NewEvent returns a recursive event for pass.
func NewEvent(p Pass, opts ...EventOption) *Event {
	e := &Event{Pass: p, Recursive: true}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Reset restores StatusNormal and clears Target and Element. Pass, Subpass,
// Force and Recursive are kept.
func (e *Event) Reset() {
	e.Status = StatusNormal
	e.Target = nil
	e.Element = nil
}

// Prepare resets the event and retargets it at pass.
func (e *Event) Prepare(p Pass) {
	e.Reset()
	e.Pass = p
	e.Subpass = 0
}

// Finish marks the running callback as finished.
func (e *Event) Finish() {
	if e.Status == StatusNormal {
		e.Status = StatusFinished
	}
}

// Cancel aborts the whole traversal once the running callback returns. It is
// not control flow: the tree is left partially laid out. Calling it outside
// a running dispatch, twice, or after Finish is a usage error.
func (e *Event) Cancel() error {
	if !e.active {
		return fmt.Errorf("%w: cancel outside a running dispatch", ErrInvalidDispatchState)
	}
	if e.Status != StatusNormal {
		return fmt.Errorf("%w: cancel with status %s", ErrInvalidDispatchState, e.Status)
	}
	e.Status = StatusCancelled
	return nil
}

// Active reports whether a traversal is running with this event.
func (e *Event) Active() bool { return e.active }

func (e *Event) logger() *slog.Logger {
	if e.log != nil {
		return e.log
	}
	return applog.WithComponent("dispatch")
}
