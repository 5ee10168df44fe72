/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package playback

import (
	"context"
	"time"

	"gopcrclicker/internal/settings"
)

// Overlay is the floating window layer that shows the pause modal.
type Overlay interface {
	Paused() bool
	HideModal()
	ShowModal(pauseCount int)
}

// PauseGame runs a pause macro: close the pause modal if it is open, wait, tap blank to
// resume the battle, optionally wait again, then show the modal with pauseCount.
func PauseGame(ctx context.Context, o Overlay, cl Clicker, pauseCount int, a settings.PauseAction, blank settings.Position) error {
	if o.Paused() {
		o.HideModal()
	}
	if err := sleepCtx(ctx, time.Duration(a.ClosePauseWindowDelayTime)*time.Millisecond); err != nil {
		return err
	}
	if cl != nil {
		cl.PerformClick(blank.X, blank.Y, 0)
	}
	if a.PauseBattleDelayTime > 0 {
		if err := sleepCtx(ctx, time.Duration(a.PauseBattleDelayTime)*time.Millisecond); err != nil {
			return err
		}
	}
	o.ShowModal(pauseCount)
	return nil
}
