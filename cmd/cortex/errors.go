// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import "errors"

// usageError marks a UsageError (bad flag, missing argument): exit 1.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func newUsageError(msg string) error { return &usageError{msg: msg} }

// transientError marks a ResourceExhausted/TransientExternal condition at
// the CLI boundary: exit 2, skip and continue.
type transientError struct{ msg string }

func (e *transientError) Error() string { return e.msg }

func newTransientError(msg string) error { return &transientError{msg: msg} }

// exitCode maps an error returned from a command's RunE to the process
// exit code per the CLI surface's 0/1/2 contract. nil maps to 0 by the
// caller never invoking this function.
func exitCode(err error) int {
	var usage *usageError
	if errors.As(err, &usage) {
		return 1
	}
	var transient *transientError
	if errors.As(err, &transient) {
		return 2
	}
	return 1
}
