package notify

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LogSink 通过结构化日志投递通知。
type LogSink struct {
	logger *zap.Logger
	name   string
}

func NewLogSink(name string, logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger, name: name}
}

func (s *LogSink) Send(n Notification) error {
	s.logger.Info("notification",
		zap.String("title", n.Title),
		zap.String("body", n.Body))
	return nil
}

func (s *LogSink) Name() string {
	return s.name
}

// ConsoleSink 控制台通知通道（彩色输出）。
type ConsoleSink struct {
	name string
}

func NewConsoleSink(name string) *ConsoleSink {
	return &ConsoleSink{name: name}
}

func (s *ConsoleSink) Send(n Notification) error {
	colorReset := "\033[0m"
	colorCode := "\033[33m" // 黄色
	fmt.Printf("%s[%s]%s %s - %s\n",
		colorCode,
		n.Title,
		colorReset,
		time.Now().Format("2006-01-02 15:04:05"),
		n.Body,
	)
	return nil
}

func (s *ConsoleSink) Name() string {
	return s.name
}

// MockSink 模拟通知通道（用于测试）。
type MockSink struct {
	mu        sync.Mutex
	name      string
	sent      []Notification
	shouldErr bool
}

func NewMockSink(name string) *MockSink {
	return &MockSink{name: name}
}

func (s *MockSink) Send(n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shouldErr {
		return fmt.Errorf("mock error")
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *MockSink) Name() string {
	return s.name
}

// Sent 返回所有收到的通知。
func (s *MockSink) Sent() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.sent))
	copy(out, s.sent)
	return out
}

// SetShouldError 设置是否返回错误。
func (s *MockSink) SetShouldError(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldErr = v
}

// Count 返回收到的通知数量。
func (s *MockSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
