// Package progress 记录流水线各阶段的状态与耗时
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"
)

// RunFile 保存在工作目录中的运行记录
const RunFile = "run.json"

// Status 阶段状态
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Stage 一个阶段的记录
type Stage struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Tracker 按顺序记录阶段，开始新阶段时结束上一个
type Tracker struct {
	mu     sync.Mutex
	logger *zap.Logger
	now    func() time.Time

	Input  string   `json:"input"`
	Output string   `json:"output"`
	Status Status   `json:"status"`
	Stages []*Stage `json:"stages"`
}

// NewTracker 创建跟踪器
func NewTracker(logger *zap.Logger, input, output string) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{logger: logger, now: time.Now, Input: input, Output: output, Status: StatusRunning}
}

// Begin 开始一个阶段
func (t *Tracker) Begin(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.closeLast(now, nil)
	t.Stages = append(t.Stages, &Stage{Name: name, Status: StatusRunning, Start: now})
	t.logger.Info("stage started", zap.String("stage", name))
}

// Finish 结束当前阶段与整个运行
func (t *Tracker) Finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closeLast(t.now(), err)
	t.Status = StatusCompleted
	if err != nil {
		t.Status = StatusFailed
	}
	t.logger.Info("run finished", zap.String("status", string(t.Status)), zap.Duration("duration", t.total()))
}

func (t *Tracker) closeLast(now time.Time, err error) {
	if len(t.Stages) == 0 {
		return
	}
	last := t.Stages[len(t.Stages)-1]
	if last.Status != StatusRunning {
		return
	}
	last.Duration = now.Sub(last.Start)
	last.Status = StatusCompleted
	if err != nil {
		last.Status = StatusFailed
		last.Error = err.Error()
	}
	t.logger.Debug("stage finished",
		zap.String("stage", last.Name),
		zap.String("status", string(last.Status)),
		zap.Duration("duration", last.Duration))
}

func (t *Tracker) total() time.Duration {
	var d time.Duration
	for _, s := range t.Stages {
		d += s.Duration
	}
	return d
}

// Total 所有阶段的耗时之和
func (t *Tracker) Total() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total()
}

// Save 把运行记录写入 path
func (t *Tracker) Save(path string) error {
	t.mu.Lock()
	data, err := json.MarshalIndent(t, "", "  ")
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}
	return nil
}

// Render 输出阶段耗时表
func (t *Tracker) Render(w io.Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"阶段", "状态", "耗时"})
	for _, s := range t.Stages {
		tw.AppendRow(table.Row{s.Name, s.Status, formatDuration(s.Duration)})
	}
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"总计", t.Status, formatDuration(t.total())})
	tw.SetStyle(table.StyleLight)
	tw.Render()
}

// formatDuration 毫秒精度
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(time.Millisecond).String()
}
