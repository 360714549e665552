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

// Package notify fans escalation notifications out to the configured
// delivery channels. Delivery is fire-and-forget: failures are logged
// and counted but never propagate back into the escalation state.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/complianceops/escalation-engine/pkg/escalation"
	"github.com/complianceops/escalation-engine/pkg/metrics"
)

// deliveryTimeout bounds a single channel delivery attempt.
const deliveryTimeout = 15 * time.Second

// Message is one notification ready for delivery, carrying everything a
// channel needs to render it.
type Message struct {
	Event       escalation.DeadlineEvent
	ChainName   string
	Level       int
	DaysOverdue int
	Assignees   []escalation.AssigneeRef

	// PreviousAssigneeName is set on level increases.
	PreviousAssigneeName string

	// Text is the plain one-line summary used by channels without their
	// own rendering.
	Text string
}

// ChannelSender delivers a message on one channel type.
type ChannelSender interface {
	Channel() escalation.Channel
	Send(ctx context.Context, msg Message) error
}

// Dispatcher routes messages to channel senders.
type Dispatcher struct {
	log     *zap.SugaredLogger
	senders map[escalation.Channel]ChannelSender
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher for the given senders. Channels
// without a registered sender are skipped with a warning at dispatch time.
func NewDispatcher(log *zap.SugaredLogger, senders ...ChannelSender) *Dispatcher {
	m := make(map[escalation.Channel]ChannelSender, len(senders))
	for _, s := range senders {
		m[s.Channel()] = s
	}
	return &Dispatcher{log: log, senders: m}
}

// Dispatch delivers msg on each requested channel asynchronously and
// returns immediately.
func (d *Dispatcher) Dispatch(msg Message, channels []escalation.Channel) {
	for _, ch := range channels {
		sender, ok := d.senders[ch]
		if !ok {
			d.log.Warnw("No sender configured for notification channel, skipping",
				"channel", ch,
				"event", msg.Event.ID,
				"level", msg.Level)
			continue
		}

		d.wg.Add(1)
		go func(ch escalation.Channel, sender ChannelSender) {
			defer d.wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
			defer cancel()

			if err := sender.Send(ctx, msg); err != nil {
				metrics.NotificationFailures.WithLabelValues(string(ch)).Inc()
				d.log.Errorw("Notification delivery failed",
					"channel", ch,
					"event", msg.Event.ID,
					"level", msg.Level,
					"error", err)
				return
			}
			metrics.NotificationsDispatched.WithLabelValues(string(ch)).Inc()
			d.log.Debugw("Notification delivered",
				"channel", ch,
				"event", msg.Event.ID,
				"level", msg.Level,
				"assignees", len(msg.Assignees))
		}(ch, sender)
	}
}

// Wait blocks until all in-flight deliveries have finished. Used on
// shutdown and in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
