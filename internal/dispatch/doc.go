/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package dispatch implements the multi-phase layout/event dispatch engine.
//
// Every element owns a Registry: a two-level sorted index of callbacks keyed
// by coarse Pass and fine-grained Subpass. Invoke walks an element tree once
// per pass and interleaves "before children" and "after children" callbacks
// across the whole subtree in a single traversal: the first subpass at or
// beyond SubpassAfterChildren triggers recursion into the children before its
// own callbacks run. InvokeAll runs every registered pass for one element.
//
// Element types declare their handlers once per type with Declare; registries
// replay the cached declarations for every new instance.
//
// The engine is frame-synchronous and single-threaded. An Event must not be
// shared between concurrent traversals, and handlers must not re-enter the
// dispatcher with the event they were called with.
package dispatch
