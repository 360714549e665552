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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	broad := &ChainDefinition{
		ID:                  "chain-broad",
		IsActive:            true,
		AppliesToEventTypes: []EventType{"permit_renewal", "covenant_deadline"},
	}
	scoped := &ChainDefinition{
		ID:                   "chain-scoped",
		IsActive:             true,
		AppliesToEventTypes:  []EventType{"permit_renewal"},
		AppliesToFacilityIDs: []string{"fac-2"},
	}
	inactive := &ChainDefinition{
		ID:                  "chain-off",
		IsActive:            false,
		AppliesToEventTypes: []EventType{"inspection"},
	}

	event := func(et EventType, facility string) DeadlineEvent {
		return DeadlineEvent{ID: "evt-1", EventType: et, FacilityID: facility, DueDate: time.Now()}
	}

	tests := []struct {
		name   string
		event  DeadlineEvent
		chains []*ChainDefinition
		want   string
	}{
		{
			name:   "first declared match wins",
			event:  event("permit_renewal", "fac-2"),
			chains: []*ChainDefinition{broad, scoped},
			want:   "chain-broad",
		},
		{
			name:   "facility scoped chain",
			event:  event("permit_renewal", "fac-2"),
			chains: []*ChainDefinition{scoped, broad},
			want:   "chain-scoped",
		},
		{
			name:   "facility mismatch skips scoped chain",
			event:  event("permit_renewal", "fac-9"),
			chains: []*ChainDefinition{scoped, broad},
			want:   "chain-broad",
		},
		{
			name:   "inactive chains never match",
			event:  event("inspection", "fac-1"),
			chains: []*ChainDefinition{inactive},
			want:   "",
		},
		{
			name:   "unknown event type",
			event:  event("tax_filing", "fac-1"),
			chains: []*ChainDefinition{broad, scoped},
			want:   "",
		},
		{
			name:   "nil entries are skipped",
			event:  event("covenant_deadline", "fac-1"),
			chains: []*ChainDefinition{nil, broad},
			want:   "chain-broad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.event, tt.chains)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.Equal(t, tt.want, got.ID)
			}
		})
	}
}
