// Package threatlog 实现有界的威胁事件日志与统计
package threatlog

import (
	"sync"
	"time"

	"umbra/pkg/model"
	"umbra/pkg/rulespec"
)

// 日志容量
const (
	SecurityLogCap = 1000 // 广告/安全事件日志
	BlockedLogCap  = 100  // 被拦截请求日志
)

// ring 先进先出的有界环形缓冲
type ring struct {
	buf   []model.ThreatEvent
	head  int // 最旧条目位置
	count int
}

func newRing(cap int) *ring {
	return &ring{buf: make([]model.ThreatEvent, cap)}
}

// push 追加条目，超出容量时精确淘汰最旧条目
func (r *ring) push(e model.ThreatEvent) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
}

// snapshot 按从旧到新的顺序导出当前条目
func (r *ring) snapshot() []model.ThreatEvent {
	out := make([]model.ThreatEvent, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}

func (r *ring) clear() {
	r.head, r.count = 0, 0
}

// Log 双日志结构：安全事件日志与被拦截请求日志各自独立限界
type Log struct {
	mu       sync.Mutex
	security *ring
	blocked  *ring
}

// New 创建默认容量的威胁日志
func New() *Log {
	return NewWithCaps(SecurityLogCap, BlockedLogCap)
}

// NewWithCaps 创建指定容量的威胁日志，容量用于测试时收敛
func NewWithCaps(securityCap, blockedCap int) *Log {
	if securityCap <= 0 {
		securityCap = SecurityLogCap
	}
	if blockedCap <= 0 {
		blockedCap = BlockedLogCap
	}
	return &Log{security: newRing(securityCap), blocked: newRing(blockedCap)}
}

// Record 追加一条事件；追加与淘汰是单个逻辑步骤。
// 当前模型为单消费者事件驱动，此处加锁是为多协程运行时保留的临界区。
func (l *Log) Record(evt model.ThreatEvent) {
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.security.push(evt)
	if evt.Action == model.ActionBlockNav {
		l.blocked.push(evt)
	}
}

// Stats 按需汇总统计，淘汰后的条目不计入
func (l *Log) Stats() (byCategory map[model.Category]int64, total int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	byCategory = make(map[model.Category]int64)
	for _, e := range l.security.snapshot() {
		byCategory[e.Verdict.Category]++
		total++
	}
	return byCategory, total
}

// Events 导出安全事件快照，从旧到新
func (l *Log) Events() []model.ThreatEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.security.snapshot()
}

// BlockedEvents 导出被拦截请求快照，从旧到新
func (l *Log) BlockedEvents() []model.ThreatEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blocked.snapshot()
}

// Len 返回安全事件日志当前条目数
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.security.count
}

// Clear 清空两个日志
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.security.clear()
	l.blocked.clear()
}

// ExportSnapshot 构造内存导出结构；是否允许持久化由隐私控制器裁决
func (l *Log) ExportSnapshot(stats model.Statistics) rulespec.ExportedLog {
	return rulespec.ExportedLog{
		Version:   rulespec.ExportVersion,
		ExportID:  rulespec.NewExportID(),
		Timestamp: time.Now().UnixMilli(),
		Stats:     stats,
		Events:    l.Events(),
	}
}
