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

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/complianceops/escalation-engine/pkg/escalation"
	"github.com/complianceops/escalation-engine/pkg/ical"
	"github.com/complianceops/escalation-engine/pkg/mail"
)

// MailQueue is the subset of the mail queue used by the email channel.
type MailQueue interface {
	Enqueue(id string, receivers []string, subject, body string) error
}

// EmailChannel delivers notifications through the SMTP queue using the
// escalation mail template.
type EmailChannel struct {
	queue        MailQueue
	baseURL      string
	brandingName string
}

func NewEmailChannel(queue MailQueue, baseURL, brandingName string) *EmailChannel {
	return &EmailChannel{queue: queue, baseURL: baseURL, brandingName: brandingName}
}

func (c *EmailChannel) Channel() escalation.Channel { return escalation.ChannelEmail }

func (c *EmailChannel) Send(_ context.Context, msg Message) error {
	receivers := make([]string, 0, len(msg.Assignees))
	for _, a := range msg.Assignees {
		if a.Email != "" {
			receivers = append(receivers, a.Email)
		}
	}
	if len(receivers) == 0 {
		return errors.Errorf("no assignee has an email address for event %s level %d", msg.Event.ID, msg.Level)
	}

	url := ""
	if c.baseURL != "" {
		url = fmt.Sprintf("%s/events/%s", c.baseURL, msg.Event.ID)
	}

	body, err := mail.RenderEscalation(mail.EscalationMailParams{
		EventTitle:           msg.Event.Title,
		EventID:              msg.Event.ID,
		EventType:            string(msg.Event.EventType),
		FacilityID:           msg.Event.FacilityID,
		DueDate:              msg.Event.DueDate.Format("2006-01-02"),
		DaysOverdue:          msg.DaysOverdue,
		Level:                msg.Level,
		ChainName:            msg.ChainName,
		PreviousAssigneeName: msg.PreviousAssigneeName,
		URL:                  url,
		BrandingName:         c.brandingName,
	})
	if err != nil {
		return errors.Wrap(err, "failed to render escalation mail")
	}

	subject := fmt.Sprintf("[Level %d] Compliance deadline overdue: %s", msg.Level, msg.Event.ID)
	if msg.Event.Title != "" {
		subject = fmt.Sprintf("[Level %d] Compliance deadline overdue: %s", msg.Level, msg.Event.Title)
	}

	id := fmt.Sprintf("%s-level-%d", msg.Event.ID, msg.Level)
	return c.queue.Enqueue(id, receivers, subject, body)
}

// WebhookChannel POSTs a JSON payload to an HTTP endpoint. It backs both
// the slack and in-app channels, differing only in payload shape.
type WebhookChannel struct {
	channel escalation.Channel
	url     string
	client  *http.Client
	payload func(Message) any
}

// NewSlackChannel posts slack-compatible webhook payloads.
func NewSlackChannel(webhookURL string) *WebhookChannel {
	return &WebhookChannel{
		channel: escalation.ChannelSlack,
		url:     webhookURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		payload: func(msg Message) any {
			return map[string]string{"text": msg.Text}
		},
	}
}

// NewInAppChannel posts the full message to the in-app notification
// service, which owns per-user fan-out.
func NewInAppChannel(webhookURL string) *WebhookChannel {
	return &WebhookChannel{
		channel: escalation.ChannelInApp,
		url:     webhookURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		payload: func(msg Message) any {
			ids := make([]string, 0, len(msg.Assignees))
			for _, a := range msg.Assignees {
				ids = append(ids, a.ID)
			}
			return map[string]any{
				"eventId":     msg.Event.ID,
				"eventTitle":  msg.Event.Title,
				"level":       msg.Level,
				"daysOverdue": msg.DaysOverdue,
				"assigneeIds": ids,
				"text":        msg.Text,
			}
		},
	}
}

func (c *WebhookChannel) Channel() escalation.Channel { return c.channel }

func (c *WebhookChannel) Send(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(c.payload(msg))
	if err != nil {
		return errors.Wrap(err, "failed to marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "failed to build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "webhook post to %s failed", c.url)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("webhook post to %s returned status %d", c.url, resp.StatusCode)
	}
	return nil
}

// CalendarChannel pushes an iCalendar document for the deadline to a
// calendar integration endpoint.
type CalendarChannel struct {
	url    string
	client *http.Client
	now    func() time.Time
}

func NewCalendarChannel(webhookURL string) *CalendarChannel {
	return &CalendarChannel{
		url:    webhookURL,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

func (c *CalendarChannel) Channel() escalation.Channel { return escalation.ChannelCalendar }

func (c *CalendarChannel) Send(ctx context.Context, msg Message) error {
	ev := ical.Event{
		UID:                msg.Event.ID,
		Summary:            msg.Event.Title,
		Description:        fmt.Sprintf("Escalation level %d: %s", msg.Level, msg.Text),
		Location:           msg.Event.FacilityID,
		Due:                msg.Event.DueDate,
		ReminderDaysBefore: []int{0},
	}
	if ev.Summary == "" {
		ev.Summary = fmt.Sprintf("Compliance deadline %s", msg.Event.ID)
	}
	body := ical.Calendar(c.now(), []ical.Event{ev})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader([]byte(body)))
	if err != nil {
		return errors.Wrap(err, "failed to build calendar request")
	}
	req.Header.Set("Content-Type", "text/calendar")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "calendar post to %s failed", c.url)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("calendar post to %s returned status %d", c.url, resp.StatusCode)
	}
	return nil
}
