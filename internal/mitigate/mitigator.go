// Package mitigate 将判定结果映射为页面处置动作
package mitigate

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"umbra/internal/logger"
	"umbra/pkg/model"
)

// PageDriver 页面副作用能力，由浏览 UI 协作方实现
type PageDriver interface {
	HideElement(id string) error    // 非破坏性隐藏并打上可恢复标记
	RestoreElement(id string) error // 恢复被隐藏的元素
	RemoveElement(id string) error  // 永久移除，不可恢复
	MarkPhishing(id string) error   // 标记钓鱼样式并拦截默认激活
	RewriteAttr(id, attr, value string) error
	Alert(message string)
}

// Notifier 通知接收端，只发不收
type Notifier interface {
	Notify(message string, severity model.Severity)
}

// Recorder 威胁日志写入端，持久化与否由隐私控制器裁决
type Recorder interface {
	Record(evt model.ThreatEvent)
}

// Mitigator 处置器
type Mitigator struct {
	driver   PageDriver
	notifier Notifier
	recorder Recorder
	log      logger.Logger

	upgrade atomic.Bool // HTTPS 升级策略开关
	dryRun  atomic.Bool // 测试用：不执行副作用、不写日志

	mu         sync.Mutex
	hidden     map[string]struct{} // 已隐藏元素，供显式恢复
	exclusions map[string]struct{} // HTTPS 升级排除域名
}

// NopDriver 空页面驱动，未接入真实页面时使用
type NopDriver struct{}

func (NopDriver) HideElement(string) error                 { return nil }
func (NopDriver) RestoreElement(string) error              { return nil }
func (NopDriver) RemoveElement(string) error               { return nil }
func (NopDriver) MarkPhishing(string) error                { return nil }
func (NopDriver) RewriteAttr(string, string, string) error { return nil }
func (NopDriver) Alert(string)                             {}

// New 创建处置器；driver 为空时使用空驱动
func New(driver PageDriver, notifier Notifier, recorder Recorder, l logger.Logger) *Mitigator {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	if driver == nil {
		driver = NopDriver{}
	}
	m := &Mitigator{
		driver:     driver,
		notifier:   notifier,
		recorder:   recorder,
		log:        l,
		hidden:     make(map[string]struct{}),
		exclusions: make(map[string]struct{}),
	}
	m.upgrade.Store(true)
	return m
}

// SetHTTPSUpgrade 切换 HTTPS 升级策略
func (m *Mitigator) SetHTTPSUpgrade(on bool) { m.upgrade.Store(on) }

// HTTPSUpgradeEnabled 返回升级策略开关状态
func (m *Mitigator) HTTPSUpgradeEnabled() bool { return m.upgrade.Load() }

// SetDryRun 切换试运行模式，仅测试使用
func (m *Mitigator) SetDryRun(on bool) { m.dryRun.Store(on) }

// AddUpgradeExclusion 将域名加入 HTTPS 升级排除名单
func (m *Mitigator) AddUpgradeExclusion(domain string) {
	m.mu.Lock()
	m.exclusions[strings.ToLower(domain)] = struct{}{}
	m.mu.Unlock()
}

func (m *Mitigator) excluded(host string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.exclusions[strings.ToLower(host)]
	return ok
}

// ApplyElement 对元素执行判定对应的处置动作
func (m *Mitigator) ApplyElement(v model.Verdict, el model.ElementInput) model.Action {
	// HTTPS 升级先于一切其他处置
	m.maybeUpgrade(el)

	var act model.Action
	switch v.Category {
	case model.CategoryClean, model.CategoryUnknown:
		return model.Action{Type: model.ActionAllow, Subject: v.Subject}

	case model.CategoryAd, model.CategoryTracker, model.CategoryBlocked:
		// 隐藏而非移除：用户关闭拦截后可恢复
		act = model.Action{Type: model.ActionHide, Subject: v.Subject}
		if !m.dryRun.Load() {
			if err := m.driver.HideElement(el.ID); err != nil {
				m.log.Err(err, "隐藏元素失败", "subject", v.Subject)
			} else {
				m.mu.Lock()
				m.hidden[el.ID] = struct{}{}
				m.mu.Unlock()
			}
		}

	case model.CategoryMalware:
		// 恶意脚本即使隐藏也不可留存，永久移除并弹出阻断提示
		act = model.Action{Type: model.ActionRemove, Subject: v.Subject}
		if !m.dryRun.Load() {
			if err := m.driver.RemoveElement(el.ID); err != nil {
				m.log.Err(err, "移除元素失败", "subject", v.Subject)
			}
			m.driver.Alert("检测到恶意内容，已移除: " + v.Description)
		}

	case model.CategoryPhishing:
		// 标记并拦截默认激活，进入确认页流程
		act = model.Action{Type: model.ActionInterstitial, Subject: v.Subject}
		if !m.dryRun.Load() {
			if err := m.driver.MarkPhishing(el.ID); err != nil {
				m.log.Err(err, "标记钓鱼元素失败", "subject", v.Subject)
			}
		}

	default:
		// 仿冒/可疑出现在元素上下文时按隐藏处理
		act = model.Action{Type: model.ActionHide, Subject: v.Subject}
		if !m.dryRun.Load() {
			if err := m.driver.HideElement(el.ID); err != nil {
				m.log.Err(err, "隐藏元素失败", "subject", v.Subject)
			}
		}
	}

	m.record(v, act.Type)
	return act
}

// ApplyNavigation 对导航目标执行裁决，返回是否放行
func (m *Mitigator) ApplyNavigation(v model.Verdict) (model.Action, bool) {
	switch v.Category {
	case model.CategoryClean, model.CategoryUnknown:
		return model.Action{Type: model.ActionAllow, Subject: v.Subject}, true
	}

	// 任何威胁类别的导航一律拦截，绝不静默放行
	act := model.Action{Type: model.ActionBlockNav, Subject: v.Subject}
	if !m.dryRun.Load() {
		switch v.Category {
		case model.CategoryMalware:
			m.driver.Alert("已阻止访问恶意站点: " + v.Subject)
		case model.CategoryPhishing:
			m.notify("已阻止疑似钓鱼站点，确认风险后方可继续", model.SeverityDanger)
		default:
			m.notify("已阻止可疑导航: "+v.Description, model.SeverityWarning)
		}
	}
	m.record(v, model.ActionBlockNav)
	return act, false
}

// maybeUpgrade 在升级策略开启时把 http 资源地址重写为 https
func (m *Mitigator) maybeUpgrade(el model.ElementInput) {
	if !m.upgrade.Load() || m.dryRun.Load() {
		return
	}
	for _, attr := range []string{"src", "href"} {
		v := el.Attr(attr)
		if !strings.HasPrefix(v, "http://") {
			continue
		}
		host := hostPart(v)
		if host == "" || m.excluded(host) {
			continue
		}
		upgraded := "https://" + strings.TrimPrefix(v, "http://")
		if err := m.driver.RewriteAttr(el.ID, attr, upgraded); err != nil {
			m.log.Err(err, "HTTPS 升级重写失败", "subject", v)
			continue
		}
		m.record(model.Verdict{
			Category:    model.CategoryClean,
			Description: "HTTPS 升级",
			Subject:     v,
		}, model.ActionRewrite)
	}
}

// RestoreHidden 恢复全部已隐藏元素；仅由显式关闭广告拦截触发
func (m *Mitigator) RestoreHidden() int {
	m.mu.Lock()
	ids := make([]string, 0, len(m.hidden))
	for id := range m.hidden {
		ids = append(ids, id)
	}
	m.hidden = make(map[string]struct{})
	m.mu.Unlock()

	restored := 0
	for _, id := range ids {
		if err := m.driver.RestoreElement(id); err != nil {
			m.log.Err(err, "恢复元素失败", "element", id)
			continue
		}
		restored++
	}
	m.log.Info("已恢复隐藏元素", "count", restored)
	return restored
}

// record 副作用总是伴随一次日志写入，试运行模式除外
func (m *Mitigator) record(v model.Verdict, action model.ActionType) {
	if m.dryRun.Load() || m.recorder == nil {
		return
	}
	m.recorder.Record(model.ThreatEvent{
		Timestamp: time.Now().UnixMilli(),
		Subject:   v.Subject,
		Verdict:   v,
		Action:    action,
	})
}

func (m *Mitigator) notify(msg string, sev model.Severity) {
	if m.notifier != nil {
		m.notifier.Notify(msg, sev)
	}
}

// hostPart 提取 http:// 地址中的主机名
func hostPart(raw string) string {
	rest := strings.TrimPrefix(raw, "http://")
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' || rest[i] == '?' || rest[i] == '#' || rest[i] == ':' {
			return rest[:i]
		}
	}
	return rest
}
