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
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/complianceops/escalation-engine/pkg/metrics"
)

// Manager distributes audit entries to export sinks without blocking the
// evaluation path. Emit never blocks: when the queue is full the entry is
// dropped from the export stream (the trail already holds it).
type Manager struct {
	sink       Sink
	asyncQueue chan *Entry
	logger     *zap.Logger
	wg         sync.WaitGroup
	closed     atomic.Bool

	queued    atomic.Int64
	dropped   atomic.Int64
	processed atomic.Int64

	// Circuit breaker state. Opened after consecutive sink failures,
	// reset attempts are spaced by CircuitBreakerResetTime.
	consecutiveFails atomic.Int32
	circuitOpen      atomic.Bool
	lastResetAttempt atomic.Int64 // Unix timestamp

	config ManagerConfig

	batchSink BatchSink
}

// BatchSink is an optional interface for sinks that support batch writes.
type BatchSink interface {
	Sink
	WriteBatch(ctx context.Context, entries []*Entry) error
}

// ManagerConfig configures the audit Manager.
type ManagerConfig struct {
	// QueueSize is the size of the async entry queue. Default: 10000.
	QueueSize int

	// WorkerCount is the number of async processing workers. Default: 2.
	WorkerCount int

	// BatchSize is the number of entries to batch before flushing.
	// Only used with BatchSink implementations. Default: 100.
	BatchSize int

	// BatchTimeout is the maximum wait before flushing a partial batch.
	// Default: 100ms.
	BatchTimeout time.Duration

	// DropOnFull silences the warning normally logged when an entry is
	// dropped because the queue is full. Entries are dropped either way;
	// Emit never blocks.
	DropOnFull bool

	// WriteTimeout is the timeout for writing to sinks. Default: 5s.
	WriteTimeout time.Duration

	// CircuitBreakerThreshold is the number of consecutive sink failures
	// before the circuit opens and entries are dropped instead of queued.
	// Default: 5.
	CircuitBreakerThreshold int

	// CircuitBreakerResetTime is how long to wait before attempting to
	// close an open circuit. Default: 30s.
	CircuitBreakerResetTime time.Duration
}

// DefaultManagerConfig returns the default manager configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		QueueSize:    10000,
		WorkerCount:  2,
		BatchSize:    100,
		BatchTimeout: 100 * time.Millisecond,
		DropOnFull:   true,
		WriteTimeout: 5 * time.Second,

		CircuitBreakerThreshold: 5,
		CircuitBreakerResetTime: 30 * time.Second,
	}
}

// NewManager creates a new audit Manager and starts its workers.
func NewManager(sink Sink, cfg ManagerConfig, logger *zap.Logger) *Manager {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10000
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 100 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.CircuitBreakerThreshold <= 0 {
		cfg.CircuitBreakerThreshold = 5
	}
	if cfg.CircuitBreakerResetTime <= 0 {
		cfg.CircuitBreakerResetTime = 30 * time.Second
	}

	m := &Manager{
		sink:       sink,
		asyncQueue: make(chan *Entry, cfg.QueueSize),
		logger:     logger.Named("audit-manager"),
		config:     cfg,
	}

	if batchSink, ok := sink.(BatchSink); ok {
		m.batchSink = batchSink
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		m.wg.Add(1)
		if m.batchSink != nil {
			go m.processBatchQueue(i)
		} else {
			go m.processQueue(i)
		}
	}

	logger.Info("audit manager started",
		zap.Int("queue_size", cfg.QueueSize),
		zap.Int("workers", cfg.WorkerCount),
		zap.Bool("batch_enabled", m.batchSink != nil))

	return m
}

// Emit queues an audit entry for export. Non-blocking; drops when full.
func (m *Manager) Emit(_ context.Context, entry *Entry) {
	if m.closed.Load() {
		return
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Severity == "" {
		entry.Severity = SeverityForAction(entry.Action)
	}

	if m.circuitOpen.Load() {
		lastReset := m.lastResetAttempt.Load()
		now := time.Now().Unix()
		if now-lastReset >= int64(m.config.CircuitBreakerResetTime.Seconds()) {
			if m.lastResetAttempt.CompareAndSwap(lastReset, now) {
				m.logger.Info("attempting to close audit circuit breaker")
				m.circuitOpen.Store(false)
				m.consecutiveFails.Store(0)
			}
		} else {
			m.dropped.Add(1)
			metrics.AuditEntriesDropped.Inc()
			return
		}
	}

	select {
	case m.asyncQueue <- entry:
		m.queued.Add(1)
	default:
		m.dropped.Add(1)
		metrics.AuditEntriesDropped.Inc()
		if !m.config.DropOnFull {
			m.logger.Warn("audit export queue full, dropping entry",
				zap.String("action", string(entry.Action)),
				zap.String("entry_id", entry.ID))
		}
	}
}

// EmitSync writes an audit entry to the sink synchronously. Use sparingly.
func (m *Manager) EmitSync(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Severity == "" {
		entry.Severity = SeverityForAction(entry.Action)
	}
	return m.sink.Write(ctx, entry)
}

// processQueue handles entries from the async queue one at a time.
func (m *Manager) processQueue(workerID int) {
	defer m.wg.Done()

	for entry := range m.asyncQueue {
		ctx, cancel := context.WithTimeout(context.Background(), m.config.WriteTimeout)
		if err := m.sink.Write(ctx, entry); err != nil {
			m.logger.Error("failed to export audit entry",
				zap.Int("worker", workerID),
				zap.String("entry_id", entry.ID),
				zap.String("action", string(entry.Action)),
				zap.Error(err))
			metrics.AuditSinkErrors.WithLabelValues(m.sink.Name(), "write").Inc()
			m.recordFailure()
		} else {
			m.processed.Add(1)
			metrics.AuditEntriesExported.Inc()
			m.consecutiveFails.Store(0)
		}
		cancel()
	}
}

// recordFailure counts a consecutive sink failure and opens the circuit
// at the configured threshold.
func (m *Manager) recordFailure() {
	fails := m.consecutiveFails.Add(1)
	if int(fails) >= m.config.CircuitBreakerThreshold {
		if m.circuitOpen.CompareAndSwap(false, true) {
			m.lastResetAttempt.Store(time.Now().Unix())
			m.logger.Warn("audit circuit breaker opened",
				zap.String("sink", m.sink.Name()),
				zap.Int32("consecutive_fails", fails))
		}
	}
}

// processBatchQueue handles entries from the async queue using batch writes.
func (m *Manager) processBatchQueue(workerID int) {
	defer m.wg.Done()

	batch := make([]*Entry, 0, m.config.BatchSize)
	ticker := time.NewTicker(m.config.BatchTimeout)
	defer ticker.Stop()

	flushBatch := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.config.WriteTimeout)
		if err := m.batchSink.WriteBatch(ctx, batch); err != nil {
			m.logger.Error("failed to export audit batch",
				zap.Int("worker", workerID),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			metrics.AuditSinkErrors.WithLabelValues(m.sink.Name(), "batch").Inc()
			m.recordFailure()
		} else {
			m.processed.Add(int64(len(batch)))
			metrics.AuditEntriesExported.Add(float64(len(batch)))
			m.consecutiveFails.Store(0)
		}
		cancel()

		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-m.asyncQueue:
			if !ok {
				flushBatch()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= m.config.BatchSize {
				flushBatch()
			}
		case <-ticker.C:
			flushBatch()
		}
	}
}

// Close drains the queue and shuts the manager down.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}

	close(m.asyncQueue)
	m.wg.Wait()

	m.logger.Info("audit manager stopped",
		zap.Int64("processed", m.processed.Load()),
		zap.Int64("dropped", m.dropped.Load()))

	return m.sink.Close()
}

// Stats returns current audit manager statistics.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		QueuedEntries:    m.queued.Load(),
		ProcessedEntries: m.processed.Load(),
		DroppedEntries:   m.dropped.Load(),
		QueueLength:      len(m.asyncQueue),
		QueueCapacity:    cap(m.asyncQueue),
		ConsecutiveFails: int(m.consecutiveFails.Load()),
		CircuitOpen:      m.circuitOpen.Load(),
	}
}

// ManagerStats contains audit manager statistics.
type ManagerStats struct {
	QueuedEntries    int64
	ProcessedEntries int64
	DroppedEntries   int64
	QueueLength      int
	QueueCapacity    int
	ConsecutiveFails int
	CircuitOpen      bool
}
