package rules

import (
	"fmt"

	"umbra/pkg/model"
	"umbra/pkg/rulespec"
)

// 内置规则数据。注册顺序即评估顺序：广告、跟踪器、恶意软件、钓鱼。

// adDomains 已知广告投放域名
var adDomains = []string{
	"googlesyndication.com",
	"doubleclick.net",
	"googleadservices.com",
	"adnxs.com",
	"adsrvr.org",
	"taboola.com",
	"outbrain.com",
	"criteo.com",
	"pubmatic.com",
	"rubiconproject.com",
}

// adPatterns 广告 URL 正则
var adPatterns = []string{
	`(^|\.)googlesyndication\.com(/|$)`,
	`(^|\.)doubleclick\.(net|com)(/|$)`,
	`/ads?/`,
	`/adserv(er|ice)?/`,
	`[?&]ad_?(id|unit|slot)=`,
	`/banners?/`,
	`/sponsor(ed)?/`,
	`/pop(up|under)s?/`,
}

// trackerDomains 已知跟踪器域名
var trackerDomains = []string{
	"google-analytics.com",
	"googletagmanager.com",
	"scorecardresearch.com",
	"quantserve.com",
	"hotjar.com",
	"mixpanel.com",
	"segment.io",
	"mouseflow.com",
	"crazyegg.com",
	"fullstory.com",
}

// trackerPatterns 跟踪器 URL 正则
var trackerPatterns = []string{
	`/analytics(\.js)?(/|$|\?)`,
	`/track(ing|er)?(/|\.)`,
	`/pixel(\.gif|\.png)?(\?|$)`,
	`/beacon(/|\.|\?|$)`,
	`/collect\?`,
	`[?&]utm_[a-z]+=`,
	`/telemetry/`,
	`/fingerprint`,
}

// malwareDomains 恶意软件投放域名
var malwareDomains = []string{
	"malware-delivery.net",
	"exploit-kit.org",
	"drive-by-download.com",
	"fake-update-flash.com",
	"trojan-dropper.net",
	"cryptominer-pool.xyz",
}

// malwarePatterns 恶意软件 URL 正则
var malwarePatterns = []string{
	`\.(exe|scr|bat|cmd|pif)(\?|$)`,
	`/payload/`,
	`/exploit/`,
	`/miner\.js`,
	`flash[-_]?update.*\.(exe|zip)`,
}

// phishingDomains 钓鱼域名字面量
var phishingDomains = []string{
	"secure-paypal-verification.com",
	"appleid-verify-account.com",
	"microsoft-account-security.net",
	"bank-login-confirm.com",
	"amazon-prize-winner.net",
	"account-suspended-verify.com",
}

// phishingPatterns 钓鱼 URL 正则
var phishingPatterns = []string{
	`(secure|verify|confirm|update)[-.](account|login|bank|pay)`,
	`(paypal|apple|amazon|microsoft)[a-z0-9-]*\.(tk|ml|ga|cf|xyz)`,
	`/login[-_.](verify|confirm|secure)`,
	`/webscr\?cmd=`,
}

// legitDomains 仿冒启发式对照的合法域名清单
var legitDomains = []string{
	"google.com",
	"facebook.com",
	"youtube.com",
	"amazon.com",
	"apple.com",
	"microsoft.com",
	"paypal.com",
	"netflix.com",
	"twitter.com",
	"instagram.com",
	"baidu.com",
	"taobao.com",
	"qq.com",
	"alipay.com",
}

// suspiciousTLDs 可疑顶级域集合
var suspiciousTLDs = []string{".tk", ".ml", ".ga", ".cf", ".click", ".download", ".work"}

// BannerSize 标准广告横幅尺寸
type BannerSize struct{ W, H int }

// bannerSizes 标准横幅尺寸表，匹配容差见 classify 包
var bannerSizes = []BannerSize{
	{728, 90},
	{300, 250},
	{336, 280},
	{320, 50},
	{468, 60},
	{120, 600},
	{160, 600},
}

// adKeywords 广告文本关键词（双语）
var adKeywords = []string{
	"advertisement", "sponsored", "promoted",
	"广告", "推广", "赞助",
}

// phishingKeywords 钓鱼文本关键词（双语）
var phishingKeywords = []string{
	"verify your account", "account suspended", "confirm your identity",
	"unusual activity", "claim your prize",
	"验证您的账户", "账户已冻结", "确认您的身份", "领取奖品",
}

// suspiciousAPIPatterns 内联脚本可疑 API 模式
var suspiciousAPIPatterns = []string{
	"eval(",
	"document.write(",
	"window.location=",
	"fromCharCode",
}

// suspiciousAPIRegexes 需要正则表达的可疑 API 模式
var suspiciousAPIRegexes = []string{
	`setTimeout\s*\([^)]*eval`,
}

// BuiltinRules 构造完整的内置规则清单，按类别优先级排列
func BuiltinRules() []rulespec.Rule {
	var out []rulespec.Rule
	add := func(kind rulespec.RuleKind, cat model.Category, desc string, patterns []string) {
		for i, p := range patterns {
			out = append(out, rulespec.Rule{
				ID:          builtinID(cat, kind, i),
				Kind:        kind,
				Pattern:     p,
				Category:    cat,
				Description: desc,
				Origin:      rulespec.OriginBuiltin,
			})
		}
	}
	add(rulespec.KindDomainLiteral, model.CategoryAd, "已知广告域名", adDomains)
	add(rulespec.KindURLRegex, model.CategoryAd, "广告地址特征", adPatterns)
	add(rulespec.KindDomainLiteral, model.CategoryTracker, "已知跟踪器域名", trackerDomains)
	add(rulespec.KindURLRegex, model.CategoryTracker, "跟踪器地址特征", trackerPatterns)
	add(rulespec.KindDomainLiteral, model.CategoryMalware, "恶意软件域名", malwareDomains)
	add(rulespec.KindURLRegex, model.CategoryMalware, "恶意软件地址特征", malwarePatterns)
	add(rulespec.KindDomainLiteral, model.CategoryPhishing, "钓鱼域名", phishingDomains)
	add(rulespec.KindURLRegex, model.CategoryPhishing, "钓鱼地址特征", phishingPatterns)
	return out
}

// builtinID 生成内置规则 ID，稳定可引用
func builtinID(cat model.Category, kind rulespec.RuleKind, i int) model.RuleID {
	return model.RuleID(fmt.Sprintf("%s-%s-%03d", cat, kind, i))
}

// LegitDomains 返回仿冒对照清单的拷贝
func LegitDomains() []string { return append([]string(nil), legitDomains...) }

// SuspiciousTLDs 返回可疑顶级域集合的拷贝
func SuspiciousTLDs() []string { return append([]string(nil), suspiciousTLDs...) }

// BannerSizes 返回标准横幅尺寸表的拷贝
func BannerSizes() []BannerSize { return append([]BannerSize(nil), bannerSizes...) }

// AdKeywords 返回广告关键词表
func AdKeywords() []string { return append([]string(nil), adKeywords...) }

// PhishingKeywords 返回钓鱼关键词表
func PhishingKeywords() []string { return append([]string(nil), phishingKeywords...) }

// SuspiciousAPIPatterns 返回可疑 API 子串模式
func SuspiciousAPIPatterns() []string { return append([]string(nil), suspiciousAPIPatterns...) }

// SuspiciousAPIRegexes 返回可疑 API 正则模式
func SuspiciousAPIRegexes() []string { return append([]string(nil), suspiciousAPIRegexes...) }
