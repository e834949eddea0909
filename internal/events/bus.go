// Package events 提供组件间的类型化发布订阅通道
package events

import (
	"sync"

	"umbra/internal/logger"
)

// Topic 事件主题
type Topic string

const (
	TopicStateChanged Topic = "privacy.stateChanged" // 隐私状态切换
	TopicVerdict      Topic = "classify.verdict"     // 产生非干净判定
	TopicStorageWarn  Topic = "storage.warning"      // 存储层可恢复告警
)

// Handler 事件处理函数，返回错误不会中断后续订阅者
type Handler func(payload any) error

// Bus 进程内事件总线
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]Handler
	log  logger.Logger
}

// NewBus 创建事件总线
func NewBus(l logger.Logger) *Bus {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	return &Bus{subs: make(map[Topic][]Handler), log: l}
}

// Subscribe 订阅主题
func (b *Bus) Subscribe(topic Topic, h Handler) {
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], h)
	b.mu.Unlock()
}

// Publish 同步派发事件；首个订阅者出错不影响其余订阅者
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subs[topic]...)
	b.mu.RUnlock()
	for _, h := range handlers {
		if err := h(payload); err != nil {
			b.log.Err(err, "事件订阅者处理失败", "topic", string(topic))
		}
	}
}
