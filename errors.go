/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ringrt

import "github.com/pkg/errors"

// ErrCancelled is returned by a suspension point observed after the
// calling fiber was cancelled.
//
// Declared with errors.New and compared via errors.Is, the same
// sentinel-error convention the teacher's xbuf/bufiox-style packages
// use for their own ErrXReadBufferNotEnough-shaped sentinels.
var ErrCancelled = errors.New("ringrt: fiber cancelled")

func toError(recovered interface{}) error {
	if err, ok := recovered.(error); ok {
		return err
	}
	return errors.Errorf("%v", recovered)
}
