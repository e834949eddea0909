// Package classify 实现 URL 与元素的分类流水线
package classify

import (
	"net/url"
	"strings"
	"sync/atomic"

	"golang.org/x/net/publicsuffix"

	"umbra/internal/logger"
	"umbra/internal/rules"
	"umbra/pkg/model"
	"umbra/pkg/rulespec"
)

// 结构启发式常量
const (
	maxURLLength       = 2000 // 超长 URL 视为可疑
	maxSubdomainLabels = 5    // 子域层级上限
)

// Classifier 分类器。评估阶段顺序固定，首个命中即返回
type Classifier struct {
	store    *rules.Store
	log      logger.Logger
	adBlock  atomic.Bool // 广告/跟踪器分类开关
	security atomic.Bool // 安全扫描（恶意/钓鱼/仿冒/可疑）开关

	spoofVariants map[string]string // 仿冒变体 → 合法域名
	suspiciousTLD map[string]struct{}
}

// New 创建分类器并预计算仿冒变体表
func New(store *rules.Store, l logger.Logger) *Classifier {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	c := &Classifier{
		store:         store,
		log:           l,
		spoofVariants: buildSpoofVariants(rules.LegitDomains()),
		suspiciousTLD: make(map[string]struct{}),
	}
	for _, tld := range rules.SuspiciousTLDs() {
		c.suspiciousTLD[tld] = struct{}{}
	}
	c.adBlock.Store(true)
	c.security.Store(true)
	return c
}

// SetAdBlock 切换广告/跟踪器分类，下一次分类调用生效
func (c *Classifier) SetAdBlock(on bool) { c.adBlock.Store(on) }

// SetSecurity 切换安全扫描，下一次分类调用生效
func (c *Classifier) SetSecurity(on bool) { c.security.Store(on) }

// AdBlockEnabled 返回广告拦截开关状态
func (c *Classifier) AdBlockEnabled() bool { return c.adBlock.Load() }

// SecurityEnabled 返回安全扫描开关状态
func (c *Classifier) SecurityEnabled() bool { return c.security.Load() }

// ClassifyURL 对导航目标执行固定顺序的分类流水线
func (c *Classifier) ClassifyURL(rawURL string) model.Verdict {
	// 阶段1：解析失败本身即是信号，不静默视为干净
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		if c.security.Load() {
			return model.Verdict{
				Category:    model.CategorySuspicious,
				Description: "invalid URL",
				Subject:     rawURL,
			}
		}
		return clean(rawURL)
	}
	host := strings.ToLower(u.Hostname())

	// 阶段2：白名单优先于一切后续判定
	if c.store.IsWhitelisted(host) {
		return model.Verdict{
			Category:    model.CategoryClean,
			Description: "白名单域名",
			Subject:     rawURL,
		}
	}

	// 阶段3：域名字面量表 O(1) 精确查找 + 用户黑名单
	if r, ok := c.store.DomainLookup(host); ok {
		if c.categoryEnabled(r.Category) {
			rid := r.ID
			return model.Verdict{
				Category:    r.Category,
				Description: r.Description,
				MatchedRule: &rid,
				Subject:     rawURL,
			}
		}
	}
	if c.store.IsBlocklisted(host) {
		return model.Verdict{
			Category:    model.CategoryBlocked,
			Description: "用户黑名单域名",
			Subject:     rawURL,
		}
	}

	// 阶段4：按类别优先级有序扫描规则，首个命中生效
	if r, ok := c.scanEnabled(host, rawURL); ok {
		rid := r.ID
		return model.Verdict{
			Category:    r.Category,
			Description: r.Description,
			MatchedRule: &rid,
			Subject:     rawURL,
		}
	}

	if c.security.Load() {
		// 阶段5：域名仿冒启发式
		if legit, ok := c.spoofTarget(host); ok {
			return model.Verdict{
				Category:    model.CategorySpoofing,
				Description: "疑似仿冒域名: " + legit,
				Subject:     rawURL,
			}
		}

		// 阶段6：可疑顶级域
		if c.hasSuspiciousTLD(host) {
			return model.Verdict{
				Category:    model.CategorySuspicious,
				Description: "可疑顶级域",
				Subject:     rawURL,
			}
		}

		// 阶段7：结构启发式
		if v, ok := c.structural(rawURL, host); ok {
			return v
		}
	}

	// 阶段8：默认干净
	return clean(rawURL)
}

func clean(subject string) model.Verdict {
	return model.Verdict{Category: model.CategoryClean, Subject: subject}
}

// categoryEnabled 判断类别对应的子能力开关是否开启
func (c *Classifier) categoryEnabled(cat model.Category) bool {
	switch cat {
	case model.CategoryAd, model.CategoryTracker:
		return c.adBlock.Load()
	case model.CategoryMalware, model.CategoryPhishing, model.CategorySpoofing, model.CategorySuspicious:
		return c.security.Load()
	default:
		return true
	}
}

// scanEnabled 有序扫描，被开关关闭的类别整层跳过
func (c *Classifier) scanEnabled(host, rawURL string) (*rulespec.Rule, bool) {
	var cats []model.Category
	if c.adBlock.Load() {
		cats = append(cats, model.CategoryAd, model.CategoryTracker)
	}
	if c.security.Load() {
		cats = append(cats, model.CategoryMalware, model.CategoryPhishing)
	}
	if len(cats) == 0 {
		return nil, false
	}
	return c.store.ScanOrdered(host, rawURL, cats...)
}

// spoofTarget 仿冒判定：候选域名命中合法域名的替换变体且自身并非合法域名
func (c *Classifier) spoofTarget(host string) (string, bool) {
	cand := registeredDomain(host)
	legit, ok := c.spoofVariants[cand]
	if !ok || cand == legit {
		return "", false
	}
	return legit, true
}

// hasSuspiciousTLD 判断主机名是否以可疑顶级域结尾
func (c *Classifier) hasSuspiciousTLD(host string) bool {
	i := strings.LastIndex(host, ".")
	if i < 0 {
		return false
	}
	_, ok := c.suspiciousTLD[host[i:]]
	return ok
}

// structural 结构启发式：超长 URL、过深子域、解码后的脚本注入痕迹
func (c *Classifier) structural(rawURL, host string) (model.Verdict, bool) {
	if len(rawURL) > maxURLLength {
		return model.Verdict{
			Category:    model.CategorySuspicious,
			Description: "URL 长度超限",
			Subject:     rawURL,
		}, true
	}
	labels := strings.Split(host, ".")
	if len(labels) > maxSubdomainLabels+2 { // 子域层级，不含注册域与顶级域
		return model.Verdict{
			Category:    model.CategorySuspicious,
			Description: "子域层级过深",
			Subject:     rawURL,
		}, true
	}
	decoded := rawURL
	if d, err := url.QueryUnescape(rawURL); err == nil {
		decoded = d
	}
	lower := strings.ToLower(decoded)
	if strings.Contains(lower, "<script>") || strings.Contains(lower, "javascript:") {
		return model.Verdict{
			Category:    model.CategorySuspicious,
			Description: "XSS 注入痕迹",
			Subject:     rawURL,
		}, true
	}
	return model.Verdict{}, false
}

// registeredDomain 提取注册域（eTLD+1），失败时回退为原主机名
func registeredDomain(host string) string {
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// buildSpoofVariants 为合法域名清单预计算仿冒变体表
func buildSpoofVariants(legit []string) map[string]string {
	subs := []struct{ from, to string }{
		{"o", "0"},
		{"i", "1"},
		{"l", "1"},
		{"e", "3"},
	}
	out := make(map[string]string)
	for _, d := range legit {
		i := strings.Index(d, ".")
		if i <= 0 {
			continue
		}
		name, tld := d[:i], d[i:]

		// 字符替换变体
		for _, s := range subs {
			v := strings.ReplaceAll(name, s.from, s.to)
			if v != name {
				out[v+tld] = d
			}
		}

		// 连字符插入变体
		for p := 1; p < len(name); p++ {
			out[name[:p]+"-"+name[p:]+tld] = d
		}

		// 顶级域替换变体
		for _, swap := range []string{".net", ".org"} {
			if tld != swap {
				out[name+swap] = d
			}
		}
	}
	return out
}
