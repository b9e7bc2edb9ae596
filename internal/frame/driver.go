/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package frame drives dispatch passes over an element tree once per tick
// and records what ran.
package frame

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"framepass/internal/dispatch"
	"framepass/internal/element"
	applog "framepass/internal/log"
	"framepass/internal/telemetry"
	"framepass/internal/trace"
	"framepass/internal/tracestore"
)

// Options configures a Driver. Zero values fall back to the normal, late and
// post passes, recursive events and a default-sized history.
type Options struct {
	Passes    []dispatch.Pass
	Finished  dispatch.FinishedPolicy
	Recursive *bool
	// Viewport is the root size. Zero means the root's measured size.
	Viewport  element.Size
	History   *trace.History
	Sink      tracestore.Sink
	Telemetry *telemetry.Client
	CrashDir  string
}

// DefaultPasses is the order used when Options.Passes is empty.
var DefaultPasses = []dispatch.Pass{dispatch.PassNormal, dispatch.PassLate, dispatch.PassPost}

// Driver runs frames on one root. It is not safe for concurrent use.
type Driver struct {
	root   dispatch.Element
	name   string
	opts   Options
	number uint64
	rec    trace.Recorder
	log    *slog.Logger
}

func New(root dispatch.Element, opts Options) *Driver {
	if len(opts.Passes) == 0 {
		opts.Passes = DefaultPasses
	}
	if opts.History == nil {
		opts.History = trace.NewHistory(trace.Config{})
	}
	name := dispatch.ElementName(root)
	return &Driver{
		root: root,
		name: name,
		opts: opts,
		log:  applog.WithComponent("frame").With(slog.String("root", name)),
	}
}

func (d *Driver) Root() dispatch.Element  { return d.root }
func (d *Driver) History() *trace.History { return d.opts.History }
func (d *Driver) Frames() uint64          { return d.number }

func (d *Driver) recursive() bool { return d.opts.Recursive == nil || *d.opts.Recursive }

func (d *Driver) newEvent(force dispatch.Force) *dispatch.Event {
	return dispatch.NewEvent(d.opts.Passes[0],
		dispatch.WithForce(force),
		dispatch.WithRecursive(d.recursive()),
		dispatch.WithTracer(&d.rec),
		dispatch.WithFinished(d.opts.Finished),
		dispatch.WithLogger(d.log),
		dispatch.WithOnCancel(func(s dispatch.Step) {
			d.opts.Telemetry.DispatchCancelled(fmt.Sprintf("%T", s.Element), s.Pass.String(), s.Subpass.String())
		}),
	)
}

// placeRoot gives the root its bounds once it has been measured.
func (d *Driver) placeRoot() {
	n, ok := element.BaseOf(d.root)
	if !ok {
		return
	}
	size := d.opts.Viewport
	if size.W <= 0 || size.H <= 0 {
		size = n.Desired
	}
	n.Bounds = element.Rect{X: n.Bounds.X, Y: n.Bounds.Y, W: size.W, H: size.H}
}

// Tick runs every configured pass on the root, in order, with one event.
// The recorded frame is returned even when a callback cancelled it.
func (d *Driver) Tick(ctx context.Context, force dispatch.Force) (trace.Frame, error) {
	d.number++
	ctx = applog.ContextWithFrame(ctx, d.number)
	start := time.Now()
	ev := d.newEvent(force)

	var runErr error
	placed := false
	for _, p := range d.opts.Passes {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if p > dispatch.PassNormal && !placed {
			d.placeRoot()
			placed = true
		}
		ev.Prepare(p)
		if err := dispatch.Invoke(d.root, ev); err != nil {
			runErr = err
			break
		}
		d.log.DebugContext(applog.ContextWithPass(ctx, p.String()), "pass done")
	}
	return d.finish(ctx, start, runErr)
}

// Relayout re-runs every registered handler of every element with ForceAll.
// Elements are visited children first so that measurements are fresh; the
// passes after PassNormal are then replayed from the root to settle
// positions.
func (d *Driver) Relayout(ctx context.Context) (trace.Frame, error) {
	d.number++
	ctx = applog.ContextWithFrame(ctx, d.number)
	start := time.Now()
	ev := d.newEvent(dispatch.ForceAll)

	runErr := postOrder(d.root, func(el dispatch.Element) error {
		return dispatch.InvokeAll(el, ev)
	})
	if runErr == nil {
		d.placeRoot()
		for _, p := range d.opts.Passes {
			if p <= dispatch.PassNormal {
				continue
			}
			ev.Prepare(p)
			if err := dispatch.Invoke(d.root, ev); err != nil {
				runErr = err
				break
			}
		}
	}
	d.opts.Telemetry.Event(telemetry.EventRelayout, nil)
	return d.finish(ctx, start, runErr)
}

func postOrder(el dispatch.Element, fn func(dispatch.Element) error) error {
	for _, c := range el.Children() {
		if err := postOrder(c, fn); err != nil {
			return err
		}
	}
	return fn(el)
}

func (d *Driver) finish(ctx context.Context, start time.Time, runErr error) (trace.Frame, error) {
	cancelled := errors.Is(runErr, dispatch.ErrCancelled)
	f := d.rec.Frame(d.name, d.number, start, cancelled)
	d.opts.History.Push(f)
	d.opts.Telemetry.Frame(len(f.Steps), len(d.opts.Passes), f.Duration)

	if d.opts.Sink != nil {
		if err := d.opts.Sink.SaveFrames(ctx, []trace.Frame{f}); err != nil {
			d.log.ErrorContext(ctx, "store frame failed", slog.Any("err", err))
			if runErr == nil {
				runErr = fmt.Errorf("frame: store: %w", err)
			}
		}
	}
	if runErr != nil {
		d.log.WarnContext(ctx, "frame incomplete", slog.Int("steps", len(f.Steps)), slog.Any("err", runErr))
		return f, runErr
	}
	d.log.DebugContext(ctx, "frame done", slog.Int("steps", len(f.Steps)), slog.Duration("took", f.Duration))
	return f, nil
}

// CrashDir implements crash.Source.
func (d *Driver) CrashDir() string { return d.opts.CrashDir }

// LastFrame implements crash.Source.
func (d *Driver) LastFrame() string {
	f, ok := d.opts.History.Latest()
	if !ok {
		return ""
	}
	return f.Summary()
}

// WriteFrames implements crash.Source.
func (d *Driver) WriteFrames(w io.Writer) error { return d.opts.History.WriteJSON(w) }
