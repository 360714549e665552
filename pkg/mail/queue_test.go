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

package mail

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// MockSender simulates a mail sender with configurable behavior
type MockSender struct {
	successAfter  int
	attempts      int
	lastReceivers []string
	lastSubject   string
	lastBody      string
	host          string
}

func (m *MockSender) Send(receivers []string, subject, body string) error {
	m.attempts++
	m.lastReceivers = receivers
	m.lastSubject = subject
	m.lastBody = body

	if m.attempts > m.successAfter {
		return nil
	}
	return errors.New("simulated send failure")
}

func (m *MockSender) GetHost() string {
	return m.host
}

func (m *MockSender) GetPort() int {
	return 25
}

func TestQueue_Enqueue(t *testing.T) {
	logger, _ := zap.NewProduction()
	defer func() {
		if err := logger.Sync(); err != nil {
			t.Logf("failed to sync logger: %v", err)
		}
	}()
	sugar := logger.Sugar()

	sender := &MockSender{successAfter: 0, host: "test.example.com"}
	queue := NewQueue(sender, sugar, 3, 100, 10)
	queue.Start()
	defer func() {
		if err := queue.Stop(context.Background()); err != nil {
			t.Errorf("failed to stop queue: %v", err)
		}
	}()

	err := queue.Enqueue("esc-evt-1", []string{"dana@example.com"}, "Deadline escalated", "Body")
	assert.NoError(t, err)

	// Give worker time to process
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 1, sender.attempts)
	assert.Equal(t, "Deadline escalated", sender.lastSubject)
}

func TestQueue_EnqueueMultiple(t *testing.T) {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	sender := &MockSender{successAfter: 0, host: "test.example.com"}
	queue := NewQueue(sender, sugar, 3, 100, 100)
	queue.Start()
	defer func() {
		if err := queue.Stop(context.Background()); err != nil {
			t.Errorf("failed to stop queue: %v", err)
		}
	}()

	for i := 0; i < 5; i++ {
		err := queue.Enqueue(fmt.Sprintf("esc-evt-%d", i), []string{"dana@example.com"}, "Subject", "Body")
		assert.NoError(t, err)
	}

	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, 5, sender.attempts)
}

func TestQueue_RetryUntilSuccess(t *testing.T) {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	// Fail twice, succeed on the third attempt.
	sender := &MockSender{successAfter: 2, host: "test.example.com"}
	queue := NewQueue(sender, sugar, 5, 50, 10)
	queue.Start()
	defer func() {
		if err := queue.Stop(context.Background()); err != nil {
			t.Errorf("failed to stop queue: %v", err)
		}
	}()

	err := queue.Enqueue("esc-evt-retry", []string{"femi@example.com"}, "Retry me", "Body")
	assert.NoError(t, err)

	assert.Eventually(t, func() bool {
		return sender.attempts >= 3
	}, 2*time.Second, 20*time.Millisecond, "expected three attempts")
}

func TestQueue_EnqueueEmptyReceivers(t *testing.T) {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	sender := &MockSender{host: "test.example.com"}
	queue := NewQueue(sender, sugar, 3, 100, 10)

	err := queue.Enqueue("esc-evt-1", nil, "Subject", "Body")
	assert.Error(t, err)
}

func TestQueue_EnqueueAfterStop(t *testing.T) {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	sender := &MockSender{host: "test.example.com"}
	queue := NewQueue(sender, sugar, 3, 100, 10)
	queue.Start()

	if err := queue.Stop(context.Background()); err != nil {
		t.Fatalf("failed to stop queue: %v", err)
	}

	err := queue.Enqueue("esc-evt-1", []string{"dana@example.com"}, "Subject", "Body")
	assert.Error(t, err)
}
