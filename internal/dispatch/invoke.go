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
)

// Named is implemented by elements that have a display name for logs and traces.
type Named interface {
	Name() string
}

// ElementName returns the display name of el, or its type.
func ElementName(el Element) string {
	if n, ok := el.(Named); ok && n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("%T", el)
}

// Invoke runs the pass stored in ev on el. With ev.Recursive set, the
// children are visited right before the first subpass at or after
// SubpassAfterChildren, or after the last subpass when there is none, so that
// before-children callbacks of a node precede every descendant callback and
// after-children callbacks follow all of them. Elements without handlers for
// the pass still forward it to their children.
//
// A cancelled callback stops the whole traversal; the returned error wraps
// ErrCancelled and ev keeps StatusCancelled.
func Invoke(el Element, ev *Event) error {
	if ev.active {
		return ErrReentrantDispatch
	}
	ev.active = true
	defer func() { ev.active = false }()
	ev.Reset()
	return invoke(el, el, ev)
}

func invoke(root, el Element, ev *Event) error {
	reg := el.Registry()
	list, ok := reg.List(ev.Pass)
	if !ok {
		reg.markApplied(ev.Pass)
		return invokeChildren(root, el, ev)
	}

	visited := false
	for _, sl := range list.sublists {
		if !visited && sl.subpass.AfterChildren() {
			visited = true
			if err := invokeChildren(root, el, ev); err != nil {
				return err
			}
		}
		if err := runSublist(root, el, ev, sl); err != nil {
			return err
		}
	}
	if !visited {
		if err := invokeChildren(root, el, ev); err != nil {
			return err
		}
	}

	reg.markApplied(ev.Pass)
	ev.Reset()
	return nil
}

func invokeChildren(root, el Element, ev *Event) error {
	if !ev.Recursive {
		return nil
	}
	for _, c := range el.Children() {
		if err := invoke(root, c, ev); err != nil {
			return err
		}
	}
	return nil
}

// InvokeAll runs every registered pass and subpass of el in ascending order,
// without visiting children. ev.Pass is overwritten per list; the last one is
// marked applied.
func InvokeAll(el Element, ev *Event) error {
	if ev.active {
		return ErrReentrantDispatch
	}
	ev.active = true
	defer func() { ev.active = false }()
	ev.Reset()

	reg := el.Registry()
	for _, l := range reg.lists {
		ev.Pass = l.pass
		for _, sl := range l.sublists {
			if err := runSublist(el, el, ev, sl); err != nil {
				return err
			}
		}
	}
	reg.markApplied(ev.Pass)
	ev.Reset()
	return nil
}

func runSublist(root, el Element, ev *Event, sl *HandlerSublist) error {
	for _, cb := range sl.callbacks {
		ev.Reset()
		ev.Subpass = sl.subpass
		ev.Target = root
		ev.Element = el
		step := Step{Element: el, Pass: ev.Pass, Subpass: sl.subpass, Callback: cb}
		if ev.Tracer != nil {
			ev.Tracer.Trace(step)
		}
		if cb.Fn != nil {
			cb.Fn(ev)
		}
		switch ev.Status {
		case StatusFinished:
			// Finished behaves like Normal unless the policy ends the subpass.
			if ev.Finished == FinishedSkipSubpass {
				return nil
			}
		case StatusCancelled:
			return ev.abort(step)
		}
	}
	return nil
}

// abort reports a cancellation where it was raised. The layout is left
// partially applied, so this is logged as an error.
func (e *Event) abort(s Step) error {
	e.logger().Error("dispatch cancelled",
		slog.String("element", ElementName(s.Element)),
		slog.String("pass", s.Pass.String()),
		slog.String("subpass", s.Subpass.String()),
		slog.String("handler", s.Callback.Name),
	)
	if e.OnCancel != nil {
		e.OnCancel(s)
	}
	return fmt.Errorf("%w: %s %s/%s in %q", ErrCancelled, ElementName(s.Element), s.Pass, s.Subpass, s.Callback.Name)
}
