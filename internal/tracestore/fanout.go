/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tracestore

import (
	"context"
	"errors"

	"framepass/internal/trace"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Fanout writes every batch to all sinks concurrently.
type Fanout struct {
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	var s []Sink
	for _, k := range sinks {
		if k != nil {
			s = append(s, k)
		}
	}
	return &Fanout{sinks: s}
}

// Len returns the number of sinks.
func (f *Fanout) Len() int { return len(f.sinks) }

// SaveFrames returns the first sink error; the other sinks see a cancelled context.
func (f *Fanout) SaveFrames(ctx context.Context, frames []trace.Frame) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range f.sinks {
		s := s
		g.Go(func() error { return s.SaveFrames(gctx, frames) })
	}
	return g.Wait()
}

// Close closes every sink and joins their errors.
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Push copies unpushed frames from the local store to dst in batches and
// marks them. It returns the number of frames copied.
func Push(ctx context.Context, src *Store, dst Sink, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	total := 0
	for {
		frames, err := src.Unpushed(ctx, batch)
		if err != nil {
			return total, err
		}
		if len(frames) == 0 {
			return total, nil
		}
		if err := dst.SaveFrames(ctx, frames); err != nil {
			return total, err
		}
		ids := make([]uuid.UUID, len(frames))
		for i, f := range frames {
			ids[i] = f.ID
		}
		if err := src.MarkPushed(ctx, ids); err != nil {
			return total, err
		}
		total += len(frames)
	}
}
