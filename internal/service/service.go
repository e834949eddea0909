// Package service 组装分类引擎并对外提供门面
package service

import (
	"encoding/json"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"umbra/internal/classify"
	"umbra/internal/events"
	"umbra/internal/logger"
	"umbra/internal/mitigate"
	"umbra/internal/obs"
	"umbra/internal/observe"
	"umbra/internal/privacy"
	"umbra/internal/rules"
	"umbra/internal/threatlog"
	"umbra/pkg/errx"
	"umbra/pkg/model"
	"umbra/pkg/rulespec"
)

// Options 引擎装配选项。Store/Repos 可为空（纯内存运行），
// Driver/Notifier 为空时副作用静默丢弃
type Options struct {
	Driver       mitigate.PageDriver
	Notifier     mitigate.Notifier
	Persister    rules.Persister
	EventSink    EventSink
	Persistent   privacy.PersistentStore
	ClearOnExit  func() bool
	RescanSource observe.RescanFunc
	RescanEvery  time.Duration
	Log          logger.Logger
}

// EventSink 事件落库端；隐私模式下不会被调用
type EventSink interface {
	Record(evt model.ThreatEvent)
	DiscardBuffer()
}

// Engine 分类引擎门面，显式持有全部组件，无环境全局状态
type Engine struct {
	store      *rules.Store
	classifier *classify.Classifier
	mitigator  *mitigate.Mitigator
	tlog       *threatlog.Log
	ctrl       *privacy.Controller
	observer   *observe.Observer
	bus        *events.Bus
	eventSink  EventSink
	persistent privacy.PersistentStore
	notifier   mitigate.Notifier
	log        logger.Logger

	trackingProt atomic.Bool
}

// New 装配引擎。内置规则注册失败视为打包缺陷，装配即失败
func New(opts Options) (*Engine, error) {
	l := opts.Log
	if l == nil {
		l = logger.NewNoopLogger()
	}

	bus := events.NewBus(l)
	store := rules.NewStore(opts.Persister, l)
	if err := store.RegisterBuiltin(rules.BuiltinRules()); err != nil {
		return nil, err
	}

	e := &Engine{
		store:      store,
		classifier: classify.New(store, l),
		tlog:       threatlog.New(),
		bus:        bus,
		eventSink:  opts.EventSink,
		persistent: opts.Persistent,
		notifier:   opts.Notifier,
		log:        l,
	}
	e.trackingProt.Store(true)

	e.mitigator = mitigate.New(opts.Driver, opts.Notifier, recorderFunc(e.record), l)
	e.ctrl = privacy.New(opts.Persistent, bus, opts.ClearOnExit, l)
	e.observer = observe.New(e.processElement, opts.RescanSource, opts.RescanEvery, l)
	e.ctrl.SetObserver(e.observer)
	if opts.EventSink != nil {
		e.ctrl.RegisterPurgeHook(opts.EventSink.DiscardBuffer)
	}
	e.ctrl.StartSweeper()
	e.observer.Install()
	return e, nil
}

type recorderFunc func(evt model.ThreatEvent)

func (f recorderFunc) Record(evt model.ThreatEvent) { f(evt) }

// record 日志写入的唯一入口：内存日志总是记录，
// 落库仅在非隐私模式下发生；日志失败绝不阻塞威胁处置
func (e *Engine) record(evt model.ThreatEvent) {
	e.tlog.Record(evt)
	if evt.Verdict.Category.IsThreat() {
		e.bus.Publish(events.TopicVerdict, evt.Verdict)
	}
	if evt.Verdict.Category == model.CategoryTracker {
		if host := hostnameOf(evt.Subject); host != "" {
			e.ctrl.TrackBlocked(host)
		}
	}
	if e.eventSink != nil && e.ctrl.PersistAllowed() {
		e.eventSink.Record(evt)
	}
}

// BeforeNavigate 导航前置裁决，引擎是返回 false 的唯一权威
func (e *Engine) BeforeNavigate(rawURL string) bool {
	v := e.classifier.ClassifyURL(rawURL)
	if v.Category == model.CategoryTracker && !e.trackingProt.Load() {
		return true
	}
	_, allow := e.mitigator.ApplyNavigation(v)
	if !allow {
		e.log.Info("导航被拦截", "url", e.maskIfPrivate(rawURL), "category", string(v.Category))
	}
	return allow
}

// ClassifyURL 暴露只读分类，不执行处置
func (e *Engine) ClassifyURL(rawURL string) model.Verdict {
	return e.classifier.ClassifyURL(rawURL)
}

// ClassifyElement 暴露元素只读分类，不执行处置
func (e *Engine) ClassifyElement(el model.ElementInput) model.Verdict {
	return e.classifier.ClassifyElement(el)
}

// SubmitMutations 接收协作方送入的一批新增 DOM 节点
func (e *Engine) SubmitMutations(batch model.MutationBatch) bool {
	return e.observer.Submit(batch)
}

// processElement 观察器消费回调：分类并处置单个元素
func (e *Engine) processElement(el model.ElementInput) {
	v := e.classifier.ClassifyElement(el)
	if v.Category == model.CategoryTracker {
		if !e.trackingProt.Load() {
			return
		}
		// 元素判定的 subject 是元素标识，跟踪器域名从属性里取
		if host := hostnameOf(el.Attr("src")); host != "" {
			e.ctrl.TrackBlocked(host)
		} else if host := hostnameOf(el.Attr("href")); host != "" {
			e.ctrl.TrackBlocked(host)
		}
	}
	e.mitigator.ApplyElement(v, el)
}

// ========== 用户控制面 ==========

// AddCustomFilter 新增自定义过滤规则
func (e *Engine) AddCustomFilter(pattern string, kind rulespec.RuleKind, category model.Category, description string) (rulespec.Rule, error) {
	return e.store.AddCustom(pattern, kind, category, description)
}

// RemoveCustomFilter 移除自定义过滤规则，不存在时为空操作
func (e *Engine) RemoveCustomFilter(id model.RuleID) { e.store.RemoveCustom(id) }

// AddToWhitelist 加入白名单
func (e *Engine) AddToWhitelist(domain string) { e.store.AddToWhitelist(domain) }

// RemoveFromWhitelist 移出白名单
func (e *Engine) RemoveFromWhitelist(domain string) { e.store.RemoveFromWhitelist(domain) }

// AddToBlocklist 加入黑名单
func (e *Engine) AddToBlocklist(domain string) { e.store.AddToBlocklist(domain) }

// RemoveFromBlocklist 移出黑名单
func (e *Engine) RemoveFromBlocklist(domain string) { e.store.RemoveFromBlocklist(domain) }

// SetAdBlock 切换广告拦截；关闭时显式恢复已隐藏元素
func (e *Engine) SetAdBlock(on bool) {
	e.classifier.SetAdBlock(on)
	if !on {
		e.mitigator.RestoreHidden()
	}
}

// SetSecurity 切换安全扫描
func (e *Engine) SetSecurity(on bool) { e.classifier.SetSecurity(on) }

// SetTrackingProtection 切换跟踪保护
func (e *Engine) SetTrackingProtection(on bool) { e.trackingProt.Store(on) }

// SetHTTPSUpgrade 切换 HTTPS 升级策略
func (e *Engine) SetHTTPSUpgrade(on bool) { e.mitigator.SetHTTPSUpgrade(on) }

// SetDryRun 测试用试运行模式
func (e *Engine) SetDryRun(on bool) { e.mitigator.SetDryRun(on) }

// ========== 统计与导出 ==========

// GetStatistics 汇总当前统计信息
func (e *Engine) GetStatistics() model.Statistics {
	byCat, total := e.tlog.Stats()
	return model.Statistics{
		Total:            total,
		BlockedAds:       byCat[model.CategoryAd],
		BlockedMalware:   byCat[model.CategoryMalware],
		BlockedPhishing:  byCat[model.CategoryPhishing],
		TrackersBlocked:  int64(e.ctrl.TrackerCount()),
		BlockedNavCount:  int64(len(e.tlog.BlockedEvents())),
		ByCategory:       byCat,
		AdBlockEnabled:   e.classifier.AdBlockEnabled(),
		SecurityEnabled:  e.classifier.SecurityEnabled(),
		PrivateMode:      e.ctrl.IsPrivate(),
		HTTPSUpgradeOn:   e.mitigator.HTTPSUpgradeEnabled(),
		TrackingProtOn:   e.trackingProt.Load(),
		CustomRuleCount:  len(e.store.CustomRules()),
		WhitelistEntries: len(e.store.WhitelistEntries()),
	}
}

// ExportLog 内存日志导出，任何模式下都允许用于界面展示
func (e *Engine) ExportLog() rulespec.ExportedLog {
	return e.tlog.ExportSnapshot(e.GetStatistics())
}

// ExportConfig 导出自定义规则与黑白名单
func (e *Engine) ExportConfig() rulespec.ExportedConfig {
	return rulespec.ExportedConfig{
		Version:     rulespec.ExportVersion,
		ExportID:    rulespec.NewExportID(),
		Timestamp:   time.Now().UnixMilli(),
		CustomRules: e.store.CustomRules(),
		Whitelist:   e.store.WhitelistEntries(),
		Blocklist:   e.store.BlocklistEntries(),
	}
}

// ImportConfig 导入配置，与 ExportConfig 构成往返；
// 任一规则非法时整体拒绝，不部分注册
func (e *Engine) ImportConfig(cfg rulespec.ExportedConfig) error {
	if err := e.store.LoadCustom(cfg.CustomRules); err != nil {
		return err
	}
	e.store.LoadLists(cfg.Whitelist, cfg.Blocklist)
	e.log.Info("配置导入完成",
		"rules", len(cfg.CustomRules), "whitelist", len(cfg.Whitelist), "blocklist", len(cfg.Blocklist))
	return nil
}

// PersistExportedLog 将完整日志快照序列化后落库；隐私模式下拒绝
func (e *Engine) PersistExportedLog(key string) error {
	if !e.ctrl.PersistAllowed() {
		return errx.New(errx.CodeSessionState, "隐私模式下禁止持久化导出")
	}
	snap := e.ExportLog()
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return e.PutArtifact(key, string(data), 0)
}

// PutArtifact 向持久化存储写入浏览产物（书签/历史等），
// 隐私模式下静默丢弃；配额不足时淘汰一批后重试一次
func (e *Engine) PutArtifact(key, value string, ttl time.Duration) error {
	if !e.ctrl.PersistAllowed() {
		return nil
	}
	if e.persistent == nil {
		return nil
	}
	err := e.persistent.Put(key, value, ttl)
	if err == nil {
		return nil
	}
	if !errx.Is(err, errx.CodeStorageQuota) {
		return err
	}

	// 配额不足：执行一次 LRU 清理后重试，再失败则上报
	if ev, ok := e.persistent.(interface{ EvictLRU() (int64, error) }); ok {
		if _, everr := ev.EvictLRU(); everr != nil {
			e.log.Err(everr, "LRU 淘汰失败")
		}
	}
	if err = e.persistent.Put(key, value, ttl); err != nil {
		e.bus.Publish(events.TopicStorageWarn, err)
		if e.notifier != nil {
			e.notifier.Notify("存储空间不足，数据未能保存", model.SeverityWarning)
		}
		return err
	}
	return nil
}

// ========== 隐私状态 ==========

// EnterPrivate 进入隐私模式
func (e *Engine) EnterPrivate() { e.ctrl.EnterPrivate() }

// ExitPrivate 退出隐私模式
func (e *Engine) ExitPrivate() { e.ctrl.ExitPrivate() }

// IsPrivate 是否处于隐私模式
func (e *Engine) IsPrivate() bool { return e.ctrl.IsPrivate() }

// OnWindowHidden 窗口隐藏回调
func (e *Engine) OnWindowHidden() { e.ctrl.OnWindowHidden() }

// SessionPut 隐私会话映射写入
func (e *Engine) SessionPut(key, value string) { e.ctrl.SessionPut(key, value) }

// SessionGet 隐私会话映射读取
func (e *Engine) SessionGet(key string) (string, bool) { return e.ctrl.SessionGet(key) }

// Bus 返回事件总线供协作方订阅
func (e *Engine) Bus() *events.Bus { return e.bus }

// Teardown 停止观察器并执行最终清除，可重复调用
func (e *Engine) Teardown() {
	e.observer.Stop()
	e.ctrl.Teardown()
}

// maskIfPrivate 隐私模式下对日志中的 URL 脱敏
func (e *Engine) maskIfPrivate(rawURL string) string {
	if e.ctrl.IsPrivate() {
		return obs.MaskURL(rawURL)
	}
	return rawURL
}

// hostnameOf 提取主机名，失败返回空串
func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
