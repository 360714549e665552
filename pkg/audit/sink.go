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

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Sink is a destination for exported audit entries. Export is best-effort
// observability; the trail itself remains the source of truth and a failed
// export never rolls back a committed state transition.
type Sink interface {
	// Write sends an audit entry to the sink.
	Write(ctx context.Context, entry *Entry) error

	// Close releases any resources held by the sink.
	Close() error

	// Name returns the sink's identifier.
	Name() string
}

// LogSink writes audit entries to a structured logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a new LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

// Write logs the audit entry.
func (s *LogSink) Write(_ context.Context, entry *Entry) error {
	fields := []zap.Field{
		zap.String("entry_id", entry.ID),
		zap.String("action", string(entry.Action)),
		zap.String("severity", string(entry.Severity)),
		zap.Time("timestamp", entry.Timestamp),
		zap.String("escalation_id", entry.EscalationID),
		zap.String("event_id", entry.EventID),
	}
	if entry.PerformedBy != "" {
		fields = append(fields, zap.String("performed_by", entry.PerformedBy))
	} else {
		fields = append(fields, zap.String("performed_by", "system"))
	}
	if entry.PreviousLevel != nil {
		fields = append(fields, zap.Int("previous_level", *entry.PreviousLevel))
	}
	if entry.NewLevel != nil {
		fields = append(fields, zap.Int("new_level", *entry.NewLevel))
	}
	if entry.NewAssignee != nil {
		fields = append(fields, zap.String("new_assignee", entry.NewAssignee.Name))
	}
	if entry.SnoozeReason != "" {
		fields = append(fields, zap.String("snooze_reason", entry.SnoozeReason))
	}
	if len(entry.NotificationChannels) > 0 {
		fields = append(fields, zap.Strings("channels", entry.NotificationChannels))
	}
	if entry.Details != "" {
		fields = append(fields, zap.String("details", entry.Details))
	}

	s.logger.Info("audit_entry", fields...)
	return nil
}

// Close is a no-op for LogSink.
func (s *LogSink) Close() error {
	return nil
}

// Name returns the sink identifier.
func (s *LogSink) Name() string {
	return "log"
}

// WebhookSink posts audit entries to an external HTTP endpoint, e.g. a
// SIEM collector run by the compliance team.
type WebhookSink struct {
	name          string
	url           string
	httpClient    *http.Client
	headers       map[string]string
	logger        *zap.Logger
	entriesSent   int64
	entriesFailed int64
}

// WebhookSinkConfig configures a WebhookSink.
type WebhookSinkConfig struct {
	Name    string
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

// NewWebhookSink creates a new WebhookSink.
func NewWebhookSink(cfg WebhookSinkConfig, logger *zap.Logger) *WebhookSink {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	sink := &WebhookSink{
		name:       cfg.Name,
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
		headers:    cfg.Headers,
		logger:     logger.Named("webhook-sink"),
	}

	sink.logger.Info("webhook audit sink created",
		zap.String("name", cfg.Name),
		zap.String("url", cfg.URL),
		zap.Duration("timeout", timeout))

	return sink
}

// Write posts the audit entry to the webhook.
func (s *WebhookSink) Write(ctx context.Context, entry *Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		s.entriesFailed++
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		s.entriesFailed++
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.entriesFailed++
		s.logger.Debug("webhook request failed",
			zap.String("url", s.url),
			zap.String("entry_id", entry.ID),
			zap.String("error", err.Error()))
		return fmt.Errorf("failed to send audit entry to %s: %w", s.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		s.entriesFailed++
		s.logger.Debug("webhook returned error",
			zap.String("url", s.url),
			zap.String("entry_id", entry.ID),
			zap.Int("status_code", resp.StatusCode))
		return fmt.Errorf("webhook %s returned error status: %d", s.url, resp.StatusCode)
	}

	s.entriesSent++
	return nil
}

// Stats returns sent/failed counters.
func (s *WebhookSink) Stats() (sent, failed int64) {
	return s.entriesSent, s.entriesFailed
}

// Close is a no-op for WebhookSink.
func (s *WebhookSink) Close() error {
	s.logger.Info("closing webhook audit sink",
		zap.String("name", s.name),
		zap.Int64("entries_sent", s.entriesSent),
		zap.Int64("entries_failed", s.entriesFailed))
	return nil
}

// Name returns the sink identifier.
func (s *WebhookSink) Name() string {
	if s.name != "" {
		return s.name
	}
	return "webhook"
}

// MultiSink fans an entry out to several sinks. A failing sink does not
// stop delivery to the others.
type MultiSink struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewMultiSink creates a sink that writes to multiple destinations.
func NewMultiSink(sinks []Sink, logger *zap.Logger) *MultiSink {
	return &MultiSink{sinks: sinks, logger: logger}
}

// Write sends the entry to all sinks and returns the last error seen.
func (s *MultiSink) Write(ctx context.Context, entry *Entry) error {
	var lastErr error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, entry); err != nil {
			s.logger.Warn("audit sink write failed",
				zap.String("sink", sink.Name()),
				zap.String("error", err.Error()))
			lastErr = err
		}
	}
	return lastErr
}

// Close closes all sinks.
func (s *MultiSink) Close() error {
	var lastErr error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Name returns the sink identifier.
func (s *MultiSink) Name() string {
	return "multi"
}
