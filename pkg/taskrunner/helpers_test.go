package taskrunner_test

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type manualClock struct {
	mutex   sync.Mutex
	current time.Time
}

func newManualClock() *manualClock {
	return &manualClock{current: time.Date(2024, time.March, 5, 14, 3, 7, 0, time.Local)}
}

func (clock *manualClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.current
}

func (clock *manualClock) Advance(duration time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.current = clock.current.Add(duration)
}

func (clock *manualClock) NewTicker(duration time.Duration) *time.Ticker {
	return time.NewTicker(duration)
}

func newObservedStatusLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, observedLogs := observer.New(zapcore.DebugLevel)
	return zap.New(core), observedLogs
}

func statusMessages(observedLogs *observer.ObservedLogs) []string {
	entries := observedLogs.All()
	messages := make([]string, 0, len(entries))
	for _, entry := range entries {
		messages = append(messages, entry.Message)
	}
	return messages
}

func indexOf(messages []string, target string) int {
	for index, message := range messages {
		if message == target {
			return index
		}
	}
	return -1
}
