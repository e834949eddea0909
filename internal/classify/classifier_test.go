package classify

import (
	"strings"
	"testing"

	"umbra/internal/rules"
	"umbra/pkg/model"
	"umbra/pkg/rulespec"
)

func newTestClassifier(t *testing.T) (*Classifier, *rules.Store) {
	t.Helper()
	store := rules.NewStore(nil, nil)
	if err := store.RegisterBuiltin(rules.BuiltinRules()); err != nil {
		t.Fatalf("注册内置规则失败: %v", err)
	}
	return New(store, nil), store
}

func TestClassifyURL(t *testing.T) {
	c, _ := newTestClassifier(t)

	tests := []struct {
		name string
		url  string
		want model.Category
	}{
		{"广告域名命中", "https://googlesyndication.com/pagead/js", model.CategoryAd},
		{"广告子路径正则", "https://cdn.example.com/ads/banner.js", model.CategoryAd},
		{"跟踪器域名", "https://scorecardresearch.com/beacon", model.CategoryTracker},
		{"钓鱼域名命中", "https://secure-paypal-verification.com/login", model.CategoryPhishing},
		{"仿冒域名字符替换", "https://g00gle.com/search", model.CategorySpoofing},
		{"仿冒域名连字符插入", "https://pay-pal.com/signin", model.CategorySpoofing},
		{"可疑顶级域", "https://free-gift.tk/claim", model.CategorySuspicious},
		{"无效URL", "ht!tp://%%%", model.CategorySuspicious},
		{"空主机名", "not-a-url", model.CategorySuspicious},
		{"普通站点", "https://example.com/page", model.CategoryClean},
		{"合法域名本身", "https://google.com/search", model.CategoryClean},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ClassifyURL(tt.url)
			if got.Category != tt.want {
				t.Fatalf("ClassifyURL(%q) = %s, want %s (%s)", tt.url, got.Category, tt.want, got.Description)
			}
		})
	}
}

func TestClassifyURLWhitelistPrecedence(t *testing.T) {
	c, store := newTestClassifier(t)

	// 白名单优先于任何内置规则命中
	url := "https://googlesyndication.com/pagead/js"
	if got := c.ClassifyURL(url); got.Category != model.CategoryAd {
		t.Fatalf("前置条件失败: 期望 ad, got %s", got.Category)
	}
	store.AddToWhitelist("googlesyndication.com")
	if got := c.ClassifyURL(url); got.Category != model.CategoryClean {
		t.Fatalf("白名单后仍判定为 %s", got.Category)
	}

	// 父域白名单覆盖子域
	store.AddToWhitelist("example.org")
	if got := c.ClassifyURL("https://ads.example.org/x"); got.Category != model.CategoryClean {
		t.Fatalf("父域白名单未覆盖子域: %s", got.Category)
	}
}

func TestClassifyURLBlocklist(t *testing.T) {
	c, store := newTestClassifier(t)
	store.AddToBlocklist("bad.example.com")
	got := c.ClassifyURL("https://bad.example.com/page")
	if got.Category != model.CategoryBlocked {
		t.Fatalf("黑名单域名判定为 %s", got.Category)
	}
}

func TestClassifyURLStructural(t *testing.T) {
	c, _ := newTestClassifier(t)

	long := "https://example.com/?q=" + strings.Repeat("a", maxURLLength)
	if got := c.ClassifyURL(long); got.Category != model.CategorySuspicious {
		t.Fatalf("超长 URL 判定为 %s", got.Category)
	}

	deep := "https://a.b.c.d.e.f.example.com/"
	if got := c.ClassifyURL(deep); got.Category != model.CategorySuspicious {
		t.Fatalf("过深子域判定为 %s", got.Category)
	}

	// 五级子域在限内
	ok := "https://a.b.c.d.e.example.com/"
	if got := c.ClassifyURL(ok); got.Category != model.CategoryClean {
		t.Fatalf("限内子域判定为 %s (%s)", got.Category, got.Description)
	}

	// URL 编码的注入痕迹解码后识别
	encoded := "https://example.com/?q=%3Cscript%3Ealert(1)%3C/script%3E"
	if got := c.ClassifyURL(encoded); got.Category != model.CategorySuspicious {
		t.Fatalf("编码注入痕迹判定为 %s", got.Category)
	}
}

func TestClassifyURLTogglesOff(t *testing.T) {
	c, _ := newTestClassifier(t)

	// 关闭广告拦截后广告域名不再命中，但安全类别仍然评估
	c.SetAdBlock(false)
	if got := c.ClassifyURL("https://googlesyndication.com/x"); got.Category != model.CategoryClean {
		t.Fatalf("广告拦截关闭后判定为 %s", got.Category)
	}
	if got := c.ClassifyURL("https://secure-paypal-verification.com/x"); got.Category != model.CategoryPhishing {
		t.Fatalf("广告拦截关闭影响了安全扫描: %s", got.Category)
	}

	// 关闭安全扫描后钓鱼/仿冒/结构启发式全部跳过
	c.SetAdBlock(true)
	c.SetSecurity(false)
	if got := c.ClassifyURL("https://secure-paypal-verification.com/x"); got.Category != model.CategoryClean {
		t.Fatalf("安全扫描关闭后判定为 %s", got.Category)
	}
	if got := c.ClassifyURL("https://g00gle.com/x"); got.Category != model.CategoryClean {
		t.Fatalf("安全扫描关闭后仿冒判定为 %s", got.Category)
	}
	if got := c.ClassifyURL("not-a-url"); got.Category != model.CategoryClean {
		t.Fatalf("安全扫描关闭后无效 URL 判定为 %s", got.Category)
	}
}

func TestClassifyURLIdempotent(t *testing.T) {
	c, _ := newTestClassifier(t)
	urls := []string{
		"https://googlesyndication.com/x",
		"https://g00gle.com/x",
		"https://example.com/page",
		"not-a-url",
	}
	for _, u := range urls {
		first := c.ClassifyURL(u)
		for i := 0; i < 3; i++ {
			again := c.ClassifyURL(u)
			if again.Category != first.Category || again.Description != first.Description {
				t.Fatalf("重复分类 %q 结果不一致: %v vs %v", u, first, again)
			}
		}
	}
}

func TestClassifyURLCustomRule(t *testing.T) {
	c, store := newTestClassifier(t)
	r, err := store.AddCustom(`example\.com/promo`, rulespec.KindURLRegex, model.CategoryAd, "自定义广告规则")
	if err != nil {
		t.Fatalf("添加自定义规则失败: %v", err)
	}
	got := c.ClassifyURL("https://example.com/promo/banner")
	if got.Category != model.CategoryAd {
		t.Fatalf("自定义规则未命中: %s", got.Category)
	}
	if got.MatchedRule == nil || *got.MatchedRule != r.ID {
		t.Fatalf("MatchedRule = %v, want %s", got.MatchedRule, r.ID)
	}

	store.RemoveCustom(r.ID)
	if got := c.ClassifyURL("https://example.com/promo/banner"); got.Category != model.CategoryClean {
		t.Fatalf("移除规则后判定为 %s", got.Category)
	}
}

func TestClassifyURLFileSignatureRule(t *testing.T) {
	c, store := newTestClassifier(t)
	r, err := store.AddCustom(".apk", rulespec.KindFileSignature, model.CategoryMalware, "可疑安装包后缀")
	if err != nil {
		t.Fatalf("添加文件签名规则失败: %v", err)
	}
	got := c.ClassifyURL("https://dl.example.com/app.apk?src=mail")
	if got.Category != model.CategoryMalware {
		t.Fatalf("文件签名规则未命中: %s (%s)", got.Category, got.Description)
	}
	if got.MatchedRule == nil || *got.MatchedRule != r.ID {
		t.Fatalf("MatchedRule = %v, want %s", got.MatchedRule, r.ID)
	}

	// 后缀只看路径，出现在查询参数里不算
	if got := c.ClassifyURL("https://dl.example.com/page?f=app.apk"); got.Category != model.CategoryClean {
		t.Fatalf("查询参数中的后缀被判定为 %s", got.Category)
	}
}

func TestDomainLiteralCategoryConsistency(t *testing.T) {
	// 域名字面量表命中与逐条扫描命中必须给出同一类别
	c, store := newTestClassifier(t)
	for _, host := range []string{"googlesyndication.com", "doubleclick.net", "scorecardresearch.com"} {
		r, ok := store.DomainLookup(host)
		if !ok {
			t.Fatalf("域名表缺少 %s", host)
		}
		v := c.ClassifyURL("https://" + host + "/x")
		if v.Category != r.Category {
			t.Fatalf("%s: 表查找类别 %s != 流水线类别 %s", host, r.Category, v.Category)
		}
	}
}

func TestSpoofTargetNotSelf(t *testing.T) {
	c, _ := newTestClassifier(t)
	// 合法域名自身绝不被判定为仿冒
	for _, d := range rules.LegitDomains() {
		v := c.ClassifyURL("https://" + d + "/")
		if v.Category == model.CategorySpoofing {
			t.Fatalf("合法域名 %s 被判定为仿冒", d)
		}
	}
}
