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

// Package rtlog is the runtime's internal diagnostic logger: a
// package-level logrus.FieldLogger with a sane default, overridable via
// SetLogger from within this module, following the same "sane default + Set* override" shape
// as concurrency/gopool.SetPanicHandler in the teacher repo.
package rtlog

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var logger atomic.Value // holds holder

// holder gives every stored logger the same concrete type, as
// atomic.Value requires.
type holder struct{ l logrus.FieldLogger }

var once sync.Once

func initDefault() {
	once.Do(func() {
		logger.Store(holder{logrus.StandardLogger()})
	})
}

// SetLogger overrides the logger used for the runtime's internal
// diagnostics. Safe to call before ringrt.Start.
func SetLogger(l logrus.FieldLogger) {
	initDefault()
	logger.Store(holder{l})
}

// L returns the current logger, falling back to logrus's standard
// logger if none was installed.
func L() logrus.FieldLogger {
	initDefault()
	return logger.Load().(holder).l
}
