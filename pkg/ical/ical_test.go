package ical

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/complianceops/escalation-engine/pkg/escalation"
)

func TestCalendarRendersEvent(t *testing.T) {
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	out := Calendar(now, []Event{{
		UID:                "evt-1",
		Summary:            "Operating permit renewal",
		Description:        "Escalation chain: Permit renewals",
		Location:           "fac-north",
		Due:                time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		ReminderDaysBefore: []int{7, 0},
	}})

	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "UID:evt-1")
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20260310")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20260311")
	assert.Contains(t, out, "TRIGGER:-P7D")
	assert.Contains(t, out, "TRIGGER:PT0S")
	assert.Contains(t, out, "END:VCALENDAR")

	// All content lines must be CRLF terminated.
	for _, line := range strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n") {
		assert.False(t, strings.HasSuffix(line, "\r"), "stray CR in %q", line)
	}
}

func TestCalendarEscapesText(t *testing.T) {
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	out := Calendar(now, []Event{{
		UID:     "evt-2",
		Summary: "Waste audit; phase 1, final",
		Due:     time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}})

	assert.Contains(t, out, "Waste audit\\; phase 1\\, final")
}

func TestFromDeadline(t *testing.T) {
	chain := &escalation.ChainDefinition{ID: "chain-a", Name: "Permit renewals"}
	ev := FromDeadline(escalation.DeadlineEvent{
		ID:         "evt-1",
		EventType:  "permit_renewal",
		FacilityID: "fac-north",
		DueDate:    time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}, chain)

	assert.Equal(t, "evt-1", ev.UID)
	assert.Equal(t, "Compliance deadline evt-1", ev.Summary)
	assert.Equal(t, "fac-north", ev.Location)
	assert.Contains(t, ev.Description, "Permit renewals")
	assert.Equal(t, []int{0}, ev.ReminderDaysBefore)
}

func TestLineFolding(t *testing.T) {
	long := strings.Repeat("x", 200)
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	out := Calendar(now, []Event{{UID: "evt-3", Summary: long, Due: now}})

	for _, line := range strings.Split(out, "\r\n") {
		assert.LessOrEqual(t, len(line), 76, "line exceeds fold limit: %q", line)
	}
}
