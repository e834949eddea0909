// Package privacy 实现隐私会话状态机与清除序列
package privacy

import (
	"sync"
	"time"

	"umbra/internal/events"
	"umbra/internal/logger"
	"umbra/pkg/model"
)

// SessionKeyPrefix 会话范围持久化键前缀，进入隐私模式时整体清除
const SessionKeyPrefix = "session:"

// 周期性清扫间隔
const sweepInterval = 60 * time.Second

// PersistentStore 抽象持久化能力；有限容量且可能失败
type PersistentStore interface {
	Get(key string) (string, bool, error)
	Put(key, value string, ttl time.Duration) error
	Remove(key string) error
	Clear() error
	ClearPrefix(prefix string) error
}

// ObserverControl 内容观察器的安装控制
type ObserverControl interface {
	Install()
}

// StateChange 状态切换事件载荷
type StateChange struct {
	From model.SessionMode
	To   model.SessionMode
}

// Controller 隐私会话状态机。默认模式为 Private，
// 持久化的 private_mode 设置在装配恢复时覆盖该默认值。
type Controller struct {
	mu          sync.Mutex
	mode        model.SessionMode
	sessionMap  map[string]string   // 隐私模式下替代会话存储
	trackers    map[string]struct{} // 本会话拦截的跟踪器域名
	purgeHooks  []func()            // 清除序列附加动作（如丢弃待持久化队列）
	store       PersistentStore
	observer    ObserverControl
	bus         *events.Bus
	clearOnExit func() bool // 独立的"退出时清除"设置，勿与隐私模式混同
	log         logger.Logger

	sweepStop chan struct{}
	sweepOnce sync.Once
	stopped   bool
}

// New 创建控制器，初始为隐私模式
func New(store PersistentStore, bus *events.Bus, clearOnExit func() bool, l logger.Logger) *Controller {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	if clearOnExit == nil {
		clearOnExit = func() bool { return false }
	}
	return &Controller{
		mode:        model.ModePrivate,
		sessionMap:  make(map[string]string),
		trackers:    make(map[string]struct{}),
		store:       store,
		bus:         bus,
		clearOnExit: clearOnExit,
		log:         l,
		sweepStop:   make(chan struct{}),
	}
}

// SetObserver 注入内容观察器控制端
func (c *Controller) SetObserver(o ObserverControl) {
	c.mu.Lock()
	c.observer = o
	c.mu.Unlock()
}

// RegisterPurgeHook 注册清除序列中的附加动作
func (c *Controller) RegisterPurgeHook(fn func()) {
	c.mu.Lock()
	c.purgeHooks = append(c.purgeHooks, fn)
	c.mu.Unlock()
}

// Mode 返回当前模式
func (c *Controller) Mode() model.SessionMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// IsPrivate 判断是否处于隐私模式
func (c *Controller) IsPrivate() bool { return c.Mode() == model.ModePrivate }

// PersistAllowed 隐私模式下任何数据不得到达持久化存储
func (c *Controller) PersistAllowed() bool { return !c.IsPrivate() }

// EnterPrivate 从任意状态进入隐私模式，副作用顺序固定
func (c *Controller) EnterPrivate() {
	c.mu.Lock()
	from := c.mode
	c.mode = model.ModePrivate

	// (a) 丢弃会话映射与跟踪器集合
	c.sessionMap = make(map[string]string)
	c.trackers = make(map[string]struct{})
	observer := c.observer
	hooks := append([]func(){}, c.purgeHooks...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}

	// (b) 清除会话范围的持久化存储
	if c.store != nil {
		if err := c.store.ClearPrefix(SessionKeyPrefix); err != nil {
			c.log.Err(err, "清除会话范围存储失败")
		}
		// (c) 仅当"退出时清除"设置同时开启才清除通用存储
		if c.clearOnExit() {
			if err := c.store.Clear(); err != nil {
				c.log.Err(err, "清除通用存储失败")
			}
		}
	}

	// (d) 安装内容观察器
	if observer != nil {
		observer.Install()
	}

	// (e) 发布状态切换事件
	if c.bus != nil {
		c.bus.Publish(events.TopicStateChanged, StateChange{From: from, To: model.ModePrivate})
	}
	c.log.Info("进入隐私模式", "from", string(from))
}

// ExitPrivate 退出隐私模式。不做强制清除：隐私期间的条目
// 本就从未持久化，之后的事件按普通模式规则处理
func (c *Controller) ExitPrivate() {
	c.mu.Lock()
	if c.mode != model.ModePrivate {
		c.mu.Unlock()
		return
	}
	c.mode = model.ModeNormal
	c.mu.Unlock()

	if c.bus != nil {
		c.bus.Publish(events.TopicStateChanged, StateChange{From: model.ModePrivate, To: model.ModeNormal})
	}
	c.log.Info("退出隐私模式")
}

// ========== 会话映射与跟踪器集合 ==========

// SessionPut 写入会话映射
func (c *Controller) SessionPut(key, value string) {
	c.mu.Lock()
	c.sessionMap[key] = value
	c.mu.Unlock()
}

// SessionGet 读取会话映射
func (c *Controller) SessionGet(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.sessionMap[key]
	return v, ok
}

// TrackBlocked 记录一次被拦截的跟踪器域名
func (c *Controller) TrackBlocked(host string) {
	c.mu.Lock()
	c.trackers[host] = struct{}{}
	c.mu.Unlock()
}

// TrackerCount 返回本会话拦截的跟踪器域名数量
func (c *Controller) TrackerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.trackers)
}

// ========== 自动清除触发 ==========

// Purge 执行易失数据清除：会话映射、跟踪器集合与待持久化队列
func (c *Controller) Purge() {
	c.mu.Lock()
	c.sessionMap = make(map[string]string)
	c.trackers = make(map[string]struct{})
	hooks := append([]func(){}, c.purgeHooks...)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	c.log.Debug("易失数据已清除")
}

// OnWindowHidden 窗口隐藏触发：仅隐私模式下执行清除
func (c *Controller) OnWindowHidden() {
	if c.IsPrivate() {
		c.Purge()
	}
}

// StartSweeper 启动周期清扫协程，仅隐私模式下生效
func (c *Controller) StartSweeper() {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.sweepStop:
				return
			case <-ticker.C:
				if c.IsPrivate() {
					c.Purge()
				}
			}
		}
	}()
}

// Teardown 进程/页面销毁：无条件清除并停止清扫，可重复调用
func (c *Controller) Teardown() {
	c.mu.Lock()
	alreadyStopped := c.stopped
	c.stopped = true
	c.mu.Unlock()
	if alreadyStopped {
		return
	}
	c.sweepOnce.Do(func() { close(c.sweepStop) })
	c.Purge()
	c.log.Info("隐私控制器已销毁")
}
