/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package escalation

import (
	"fmt"
	"strings"
)

// ValidationError reports why a chain definition was rejected at save time.
// All problems are collected so the admin UI can show them at once.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid escalation chain: %s", strings.Join(e.Problems, "; "))
}

// PreconditionError reports an operation attempted against an instance in a
// state that does not permit it, e.g. snoozing a resolved instance. The
// caller (UI) is expected to gate these actions; the error is surfaced at
// the boundary and no state is mutated.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}
