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

import "golang.org/x/exp/slices"

// Match selects the chain that governs the given event: the first active
// chain, in declaration order, whose event types contain the event's type
// and whose facility list is empty or contains the event's facility.
// Returns nil when no chain applies, meaning the event is never
// auto-escalated. Callers keep at most one applicable chain per
// (event type, facility) pair; overlaps resolve by first match.
func Match(event DeadlineEvent, chains []*ChainDefinition) *ChainDefinition {
	for _, c := range chains {
		if c == nil || !c.IsActive {
			continue
		}
		if !slices.Contains(c.AppliesToEventTypes, event.EventType) {
			continue
		}
		if len(c.AppliesToFacilityIDs) > 0 && !slices.Contains(c.AppliesToFacilityIDs, event.FacilityID) {
			continue
		}
		return c
	}
	return nil
}
