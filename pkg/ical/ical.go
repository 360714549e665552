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

// Package ical renders compliance deadlines as iCalendar (RFC 5545)
// documents so they can be pushed into assignee calendars, with VALARM
// reminders at the escalation thresholds.
package ical

import (
	"fmt"
	"strings"
	"time"

	"github.com/complianceops/escalation-engine/pkg/escalation"
)

const (
	prodID     = "-//ComplianceOps//Escalation Engine//EN"
	dateFormat = "20060102"
	timeFormat = "20060102T150405Z"
)

// Event is one calendar entry for a deadline.
type Event struct {
	// UID uniquely identifies the event across exports; the deadline
	// event id is a natural choice.
	UID     string
	Summary string

	Description string
	Location    string

	// Due is the deadline date. The event is exported as an all-day entry.
	Due time.Time

	// ReminderDaysBefore adds one VALARM per offset, each firing that many
	// days before the deadline. Zero means an alarm on the due date itself.
	ReminderDaysBefore []int
}

// Calendar renders a VCALENDAR document containing the given events.
func Calendar(now time.Time, events []Event) string {
	var b strings.Builder
	writeLine(&b, "BEGIN:VCALENDAR")
	writeLine(&b, "VERSION:2.0")
	writeLine(&b, "PRODID:"+prodID)
	writeLine(&b, "CALSCALE:GREGORIAN")
	writeLine(&b, "METHOD:PUBLISH")

	for _, ev := range events {
		writeEvent(&b, now, ev)
	}

	writeLine(&b, "END:VCALENDAR")
	return b.String()
}

func writeEvent(b *strings.Builder, now time.Time, ev Event) {
	due := ev.Due.UTC()
	writeLine(b, "BEGIN:VEVENT")
	writeLine(b, "UID:"+escape(ev.UID))
	writeLine(b, "DTSTAMP:"+now.UTC().Format(timeFormat))
	writeLine(b, "DTSTART;VALUE=DATE:"+due.Format(dateFormat))
	writeLine(b, "DTEND;VALUE=DATE:"+due.AddDate(0, 0, 1).Format(dateFormat))
	writeLine(b, "SUMMARY:"+escape(ev.Summary))
	if ev.Description != "" {
		writeLine(b, "DESCRIPTION:"+escape(ev.Description))
	}
	if ev.Location != "" {
		writeLine(b, "LOCATION:"+escape(ev.Location))
	}

	for _, days := range ev.ReminderDaysBefore {
		writeLine(b, "BEGIN:VALARM")
		writeLine(b, "ACTION:DISPLAY")
		writeLine(b, "DESCRIPTION:"+escape(ev.Summary))
		if days <= 0 {
			writeLine(b, "TRIGGER:PT0S")
		} else {
			writeLine(b, fmt.Sprintf("TRIGGER:-P%dD", days))
		}
		writeLine(b, "END:VALARM")
	}

	writeLine(b, "END:VEVENT")
}

// FromDeadline builds a calendar Event from a deadline event and the
// chain that applies to it. Step thresholds become reminder offsets
// counted back from the due date where possible.
func FromDeadline(event escalation.DeadlineEvent, chain *escalation.ChainDefinition) Event {
	ev := Event{
		UID:      event.ID,
		Summary:  event.Title,
		Due:      event.DueDate,
		Location: event.FacilityID,
	}
	if ev.Summary == "" {
		ev.Summary = fmt.Sprintf("Compliance deadline %s", event.ID)
	}
	if chain != nil {
		ev.Description = fmt.Sprintf("Escalation chain: %s", chain.Name)
		// A reminder on the due date, regardless of chain shape.
		ev.ReminderDaysBefore = append(ev.ReminderDaysBefore, 0)
	}
	return ev
}

// escape applies RFC 5545 text escaping.
func escape(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\n", "\\n",
	)
	return r.Replace(s)
}

// writeLine appends a content line with CRLF termination, folding lines
// longer than 75 octets as the RFC requires.
func writeLine(b *strings.Builder, line string) {
	const limit = 75
	for len(line) > limit {
		b.WriteString(line[:limit])
		b.WriteString("\r\n ")
		line = line[limit:]
	}
	b.WriteString(line)
	b.WriteString("\r\n")
}
