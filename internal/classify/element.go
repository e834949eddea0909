package classify

import (
	"net/url"
	"strconv"
	"strings"

	"umbra/internal/rules"
	"umbra/pkg/model"
	"umbra/pkg/rulespec"
)

// 横幅尺寸匹配容差，每轴 ±10px
const bannerTolerance = 10

// 属性评估顺序固定
var attrOrder = []string{"src", "href", "class", "id"}

// ClassifyElement 对元素描述符执行固定顺序的分类流水线
func (c *Classifier) ClassifyElement(el model.ElementInput) model.Verdict {
	subject := elementSubject(el)

	// 沙箱内容不可读：返回 Unknown，绝不声称"已验证安全"
	if el.Sandbox {
		return model.Verdict{
			Category:    model.CategoryUnknown,
			Description: "跨域内容不可读取",
			Subject:     subject,
		}
	}

	if c.adBlock.Load() {
		// 阶段1：属性值匹配广告/跟踪器规则
		for _, name := range attrOrder {
			v := el.Attr(name)
			if v == "" {
				continue
			}
			if r, ok := c.store.ScanOrdered(hostOf(v), v, model.CategoryAd, model.CategoryTracker); ok {
				rid := r.ID
				return model.Verdict{
					Category:    r.Category,
					Description: r.Description,
					MatchedRule: &rid,
					Subject:     subject,
				}
			}
		}
		if r, ok := c.selectorMatch(el); ok {
			rid := r.ID
			return model.Verdict{
				Category:    r.Category,
				Description: r.Description,
				MatchedRule: &rid,
				Subject:     subject,
			}
		}

		// 阶段2：文本关键词
		if kw, ok := containsAny(el.Text, rules.AdKeywords()); ok {
			return model.Verdict{
				Category:    model.CategoryAd,
				Description: "广告关键词: " + kw,
				Subject:     subject,
			}
		}

		// 阶段3：标准横幅尺寸
		if sz, ok := bannerMatch(el.Width, el.Height); ok {
			return model.Verdict{
				Category:    model.CategoryAd,
				Description: "标准广告横幅尺寸 " + sz,
				Subject:     subject,
			}
		}
	}

	if c.security.Load() {
		// 阶段4：脚本元素的恶意特征
		if strings.EqualFold(el.Tag, "script") {
			if v, ok := c.scriptThreat(el, subject); ok {
				return v
			}
		}

		// 阶段5：链接与文本的钓鱼特征
		if v, ok := c.phishingThreat(el, subject); ok {
			return v
		}
	}

	// 阶段6：默认干净
	return clean(subject)
}

// scriptThreat 脚本判定：src 域名命中恶意清单或内联内容含可疑 API
func (c *Classifier) scriptThreat(el model.ElementInput, subject string) (model.Verdict, bool) {
	if host := hostOf(el.Attr("src")); host != "" {
		if r, ok := c.store.DomainLookup(host); ok && r.Category == model.CategoryMalware {
			rid := r.ID
			return model.Verdict{
				Category:    model.CategoryMalware,
				Description: r.Description,
				MatchedRule: &rid,
				Subject:     subject,
			}, true
		}
	}
	for _, p := range rules.SuspiciousAPIPatterns() {
		if strings.Contains(el.Text, p) {
			return model.Verdict{
				Category:    model.CategoryMalware,
				Description: "内联脚本可疑 API: " + p,
				Subject:     subject,
			}, true
		}
	}
	for _, p := range rules.SuspiciousAPIRegexes() {
		if rules.MatchRegex(el.Text, p) {
			return model.Verdict{
				Category:    model.CategoryMalware,
				Description: "内联脚本可疑 API 组合",
				Subject:     subject,
			}, true
		}
	}
	return model.Verdict{}, false
}

// phishingThreat 钓鱼判定：href 域名命中钓鱼清单或文本含钓鱼关键词
func (c *Classifier) phishingThreat(el model.ElementInput, subject string) (model.Verdict, bool) {
	if host := hostOf(el.Attr("href")); host != "" {
		if r, ok := c.store.DomainLookup(host); ok && r.Category == model.CategoryPhishing {
			rid := r.ID
			return model.Verdict{
				Category:    model.CategoryPhishing,
				Description: r.Description,
				MatchedRule: &rid,
				Subject:     subject,
			}, true
		}
	}
	if kw, ok := containsAny(el.Text, rules.PhishingKeywords()); ok {
		return model.Verdict{
			Category:    model.CategoryPhishing,
			Description: "钓鱼关键词: " + kw,
			Subject:     subject,
		}, true
	}
	return model.Verdict{}, false
}

// selectorMatch 评估 CSS 选择器类规则，作用于 class 与 id 属性
func (c *Classifier) selectorMatch(el model.ElementInput) (*rulespec.Rule, bool) {
	all := c.store.AllRules(model.CategoryAd, model.CategoryTracker)
	for i := range all {
		r := &all[i]
		if r.Kind != rulespec.KindCSSSelector {
			continue
		}
		token := strings.TrimLeft(r.Pattern, ".#")
		if token == "" {
			continue
		}
		if hasToken(el.Attr("class"), token) || el.Attr("id") == token {
			return r, true
		}
	}
	return nil, false
}

// hasToken 判断空白分隔的属性值中是否含有给定令牌
func hasToken(attr, token string) bool {
	for _, f := range strings.Fields(attr) {
		if f == token {
			return true
		}
	}
	return false
}

// bannerMatch 尺寸匹配标准横幅表，每轴容差 ±10px
func bannerMatch(w, h int) (string, bool) {
	if w <= 0 || h <= 0 {
		return "", false
	}
	for _, sz := range rules.BannerSizes() {
		if abs(w-sz.W) <= bannerTolerance && abs(h-sz.H) <= bannerTolerance {
			return strconv.Itoa(sz.W) + "x" + strconv.Itoa(sz.H), true
		}
	}
	return "", false
}

// containsAny 返回文本命中的首个关键词，大小写不敏感
func containsAny(text string, keywords []string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return kw, true
		}
	}
	return "", false
}

// hostOf 提取属性值中的主机名，非 URL 形式时返回空串
func hostOf(v string) string {
	if v == "" {
		return ""
	}
	if strings.HasPrefix(v, "//") {
		v = "https:" + v
	}
	u, err := url.Parse(v)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// elementSubject 生成元素的日志标识
func elementSubject(el model.ElementInput) string {
	if el.ID != "" {
		return el.ID
	}
	if src := el.Attr("src"); src != "" {
		return "<" + el.Tag + " src=" + src + ">"
	}
	return "<" + el.Tag + ">"
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
