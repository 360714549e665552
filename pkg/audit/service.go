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

// Package audit provides the append-only audit trail and its export
// pipeline. The Trail is the queryable source of truth for "what happened
// and why"; the Service/Manager stream copies of every entry to configured
// sinks (Kafka, webhook, log) for downstream compliance tooling.
//
// Usage:
//
//	svc := audit.NewService(cfg.Audit, logger)
//	svc.Emit(ctx, &audit.Entry{...})
//	defer svc.Close()
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/complianceops/escalation-engine/pkg/config"
)

// Service wires config-declared sinks into a Manager and exposes a
// thread-safe Emit. With no sinks configured, export is disabled and Emit
// is a no-op; trail appends are unaffected either way.
type Service struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	manager *Manager
	sinks   []Sink
	enabled bool
}

// NewService builds the export pipeline from configuration.
func NewService(cfg config.Audit, logger *zap.Logger) *Service {
	s := &Service{logger: logger.Named("audit-service")}

	if !cfg.Enabled || len(cfg.Sinks) == 0 {
		s.logger.Info("audit export disabled (no sinks configured)")
		return s
	}

	var sinks []Sink
	for _, sinkCfg := range cfg.Sinks {
		sink, err := s.buildSink(sinkCfg)
		if err != nil {
			s.logger.Warn("failed to build audit sink, skipping",
				zap.String("name", sinkCfg.Name),
				zap.String("type", sinkCfg.Type),
				zap.String("error", err.Error()))
			continue
		}
		sinks = append(sinks, sink)
	}

	if len(sinks) == 0 {
		s.logger.Warn("no usable audit sinks, export disabled")
		return s
	}

	managerCfg := DefaultManagerConfig()
	if cfg.Queue.Size > 0 {
		managerCfg.QueueSize = cfg.Queue.Size
	}
	if cfg.Queue.Workers > 0 {
		managerCfg.WorkerCount = cfg.Queue.Workers
	}
	managerCfg.DropOnFull = cfg.Queue.DropOnFull

	var sink Sink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else {
		sink = NewMultiSink(sinks, s.logger)
	}

	s.manager = NewManager(sink, managerCfg, s.logger)
	s.sinks = sinks
	s.enabled = true

	s.logger.Info("audit export configured",
		zap.Int("sinks", len(sinks)),
		zap.Int("queue_size", managerCfg.QueueSize),
		zap.Int("workers", managerCfg.WorkerCount))

	return s
}

func (s *Service) buildSink(sinkCfg config.AuditSink) (Sink, error) {
	switch sinkCfg.Type {
	case "log":
		return NewLogSink(s.logger), nil

	case "kafka":
		if len(sinkCfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("kafka config required for kafka sink")
		}
		return NewKafkaSink(KafkaSinkConfig{
			Name:         sinkCfg.Name,
			Brokers:      sinkCfg.Kafka.Brokers,
			Topic:        sinkCfg.Kafka.Topic,
			BatchSize:    sinkCfg.Kafka.BatchSize,
			BatchTimeout: time.Duration(sinkCfg.Kafka.BatchTimeoutSeconds) * time.Second,
			RequiredAcks: sinkCfg.Kafka.RequiredAcks,
			Async:        sinkCfg.Kafka.Async,
		}, s.logger)

	case "webhook":
		if sinkCfg.Webhook.URL == "" {
			return nil, fmt.Errorf("webhook URL required for webhook sink")
		}
		return NewWebhookSink(WebhookSinkConfig{
			Name:    sinkCfg.Name,
			URL:     sinkCfg.Webhook.URL,
			Headers: sinkCfg.Webhook.Headers,
			Timeout: time.Duration(sinkCfg.Webhook.TimeoutSeconds) * time.Second,
		}, s.logger), nil

	default:
		return nil, fmt.Errorf("unknown sink type: %s", sinkCfg.Type)
	}
}

// Emit streams an audit entry to the export sinks asynchronously.
func (s *Service) Emit(ctx context.Context, entry *Entry) {
	s.mu.RLock()
	manager := s.manager
	enabled := s.enabled
	s.mu.RUnlock()

	if !enabled || manager == nil {
		return
	}

	manager.Emit(ctx, entry)
}

// IsEnabled reports whether export is active.
func (s *Service) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Close shuts down the export pipeline.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var closeErr error
	if s.manager != nil {
		closeErr = s.manager.Close()
		s.manager = nil
	}
	s.enabled = false

	s.logger.Info("audit service closed")
	return closeErr
}
