/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package trace

import (
	"encoding/json"
	"io"
	"sort"
	"sync"
	"time"
)

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older frames are pruned when exceeded.
	MaxBytes int
	// MaxPerRoot limits frames kept per root (0 means unlimited).
	MaxPerRoot int
	// MinInterval folds a frame into the previous one of the same root when
	// both ran the same steps within the interval. 0 disables folding.
	MinInterval time.Duration
}

// History keeps recent frames per root. It is safe for concurrent use.
type History struct {
	cfg        Config
	mu         sync.Mutex
	frames     map[string][]Frame
	totalBytes int
}

func NewHistory(cfg Config) *History {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 4 * 1024 * 1024
	}
	return &History{cfg: cfg, frames: make(map[string][]Frame)}
}

// Push records f. An identical frame within MinInterval of the last one
// replaces it and bumps its repeat count.
func (h *History) Push(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	stack := h.frames[f.Root]
	if n := len(stack); n > 0 && h.cfg.MinInterval > 0 {
		last := stack[n-1]
		if f.TS.Sub(last.TS) < h.cfg.MinInterval && f.SameSteps(last) {
			f.Repeats = last.Repeats + 1
			h.totalBytes += f.Size() - last.Size()
			stack[n-1] = f
			h.enforceCapsLocked(f.Root)
			return
		}
	}
	h.frames[f.Root] = append(stack, f)
	h.totalBytes += f.Size()
	h.enforceCapsLocked(f.Root)
}

// Last returns the newest frame of root.
func (h *History) Last(root string) (Frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	stack := h.frames[root]
	if len(stack) == 0 {
		return Frame{}, false
	}
	return stack[len(stack)-1], true
}

// Latest returns the newest frame across all roots.
func (h *History) Latest() (Frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out Frame
	found := false
	for _, stack := range h.frames {
		if len(stack) == 0 {
			continue
		}
		if f := stack[len(stack)-1]; !found || f.TS.After(out.TS) {
			out, found = f, true
		}
	}
	return out, found
}

// Frames returns a copy of the frames of root, oldest first.
func (h *History) Frames(root string) []Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Frame(nil), h.frames[root]...)
}

// All returns every retained frame ordered by timestamp.
func (h *History) All() []Frame {
	h.mu.Lock()
	var out []Frame
	for _, stack := range h.frames {
		out = append(out, stack...)
	}
	h.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })
	return out
}

// ClearRoot drops the frames of root.
func (h *History) ClearRoot(root string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, f := range h.frames[root] {
		h.totalBytes -= f.Size()
	}
	delete(h.frames, root)
	if h.totalBytes < 0 {
		h.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (h *History) Stats() (totalBytes int, roots int, totalFrames int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	roots = len(h.frames)
	for _, v := range h.frames {
		totalFrames += len(v)
	}
	return h.totalBytes, roots, totalFrames
}

// WriteJSON dumps every retained frame as a JSON array.
func (h *History) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	frames := h.All()
	if frames == nil {
		frames = []Frame{}
	}
	return enc.Encode(frames)
}

func (h *History) enforceCapsLocked(root string) {
	if h.cfg.MaxPerRoot > 0 {
		stack := h.frames[root]
		if len(stack) > h.cfg.MaxPerRoot {
			toDrop := len(stack) - h.cfg.MaxPerRoot
			for i := 0; i < toDrop; i++ {
				h.totalBytes -= stack[i].Size()
			}
			h.frames[root] = append([]Frame{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune oldest across all roots
	for h.cfg.MaxBytes > 0 && h.totalBytes > h.cfg.MaxBytes {
		oldestRoot := ""
		found := false
		var oldestTS time.Time
		for r, stack := range h.frames {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldestRoot, oldestTS, found = r, stack[0].TS, true
			}
		}
		if !found {
			break
		}
		stack := h.frames[oldestRoot]
		h.totalBytes -= stack[0].Size()
		h.frames[oldestRoot] = stack[1:]
		if len(h.frames[oldestRoot]) == 0 {
			delete(h.frames, oldestRoot)
		}
	}
}
