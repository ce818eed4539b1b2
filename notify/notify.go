package notify

import (
	"go.uber.org/zap"
)

// Notification 一条待投递的本地通知。
type Notification struct {
	Title string
	Body  string
}

// Sink 通知投递通道接口。投递是尽力而为：权限被拒、通道故障
// 都不是致命错误，调用方照常继续。
type Sink interface {
	Send(n Notification) error
	Name() string
}

// Dispatcher 把一条通知扇出到所有通道。
// 故意不做限流去重：重复规则各自触发时必须各自送达一条。
type Dispatcher struct {
	sinks  []Sink
	logger *zap.Logger
}

func NewDispatcher(logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sinks: sinks, logger: logger}
}

// Dispatch 投递到所有通道；单个通道失败记日志后吞掉，
// 不影响其余通道，也不向上传播。返回失败通道数。
func (d *Dispatcher) Dispatch(n Notification) int {
	failed := 0
	for _, s := range d.sinks {
		if err := s.Send(n); err != nil {
			failed++
			d.logger.Warn("notification delivery failed",
				zap.String("sink", s.Name()),
				zap.String("title", n.Title),
				zap.Error(err))
		}
	}
	return failed
}

// Sinks 返回所有通道名。
func (d *Dispatcher) Sinks() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}
