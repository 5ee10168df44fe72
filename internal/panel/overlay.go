/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package panel

import "sync"

// overlay is the terminal stand-in for the floating pause modal.
type overlay struct {
	mu     sync.Mutex
	paused bool
	count  int
}

func (o *overlay) Paused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

func (o *overlay) HideModal() {
	o.mu.Lock()
	o.paused = false
	o.mu.Unlock()
}

func (o *overlay) ShowModal(pauseCount int) {
	o.mu.Lock()
	o.paused, o.count = true, pauseCount
	o.mu.Unlock()
}

func (o *overlay) snapshot() (bool, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused, o.count
}
