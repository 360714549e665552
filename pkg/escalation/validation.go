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

// Validate checks a chain definition against the save-time rules: non-empty
// name, at least one applicable event type, 1..4 steps with contiguous
// levels starting at 1, strictly increasing trigger thresholds, and a
// non-empty assignee set on every step. The evaluator assumes chains passed
// to it already satisfy these rules.
func (c *ChainDefinition) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Name) == "" {
		problems = append(problems, "name must not be empty")
	}
	if len(c.AppliesToEventTypes) == 0 {
		problems = append(problems, "at least one applicable event type is required")
	}

	switch {
	case len(c.Steps) == 0:
		problems = append(problems, "at least one step is required")
	case len(c.Steps) > MaxLevel:
		problems = append(problems, fmt.Sprintf("at most %d steps are allowed, got %d", MaxLevel, len(c.Steps)))
	}

	prevTrigger := -1
	for i, step := range c.Steps {
		wantLevel := i + 1
		if step.Level != wantLevel {
			problems = append(problems, fmt.Sprintf("step %d: levels must be contiguous starting at 1, got level %d", i, step.Level))
		}
		if step.TriggerDaysOverdue < 0 {
			problems = append(problems, fmt.Sprintf("step %d: triggerDaysOverdue must not be negative", i))
		}
		if step.TriggerDaysOverdue <= prevTrigger {
			problems = append(problems, fmt.Sprintf("step %d: triggerDaysOverdue must be strictly increasing (%d after %d)", i, step.TriggerDaysOverdue, prevTrigger))
		}
		prevTrigger = step.TriggerDaysOverdue

		if len(step.Assignees) == 0 {
			problems = append(problems, fmt.Sprintf("step %d: assignee set must not be empty", i))
		}
		for j, a := range step.Assignees {
			if a.ID == "" {
				problems = append(problems, fmt.Sprintf("step %d: assignee %d has no id", i, j))
			}
		}
		if len(step.Channels) == 0 {
			problems = append(problems, fmt.Sprintf("step %d: at least one notification channel is required", i))
		}
		for _, ch := range step.Channels {
			if !validChannel(ch) {
				problems = append(problems, fmt.Sprintf("step %d: unknown channel %q", i, ch))
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func validChannel(ch Channel) bool {
	switch ch {
	case ChannelEmail, ChannelSlack, ChannelInApp, ChannelCalendar:
		return true
	default:
		return false
	}
}
