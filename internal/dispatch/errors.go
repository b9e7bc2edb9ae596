/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dispatch

import "errors"

// Dispatch errors.
var (
	// ErrDuplicateLayoutData indicates a second auxiliary entry for a tag already present on a registry.
	ErrDuplicateLayoutData = errors.New("dispatch: duplicate layout data")

	// ErrInvalidDispatchState indicates Cancel was used outside a legitimately cancellable dispatch.
	ErrInvalidDispatchState = errors.New("dispatch: invalid dispatch state")

	// ErrCancelled indicates a handler cancelled the traversal.
	ErrCancelled = errors.New("dispatch: traversal cancelled")

	// ErrReentrantDispatch indicates an event was passed to Invoke while already in flight.
	ErrReentrantDispatch = errors.New("dispatch: event already in flight")

	// ErrInvalidBinding indicates a malformed handler declaration for an element type.
	ErrInvalidBinding = errors.New("dispatch: invalid handler binding")
)
