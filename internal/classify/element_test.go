package classify

import (
	"testing"

	"umbra/pkg/model"
	"umbra/pkg/rulespec"
)

func el(tag string, attrs map[string]string) model.ElementInput {
	return model.ElementInput{ID: "el-1", Tag: tag, Attrs: attrs}
}

func TestClassifyElementSandbox(t *testing.T) {
	c, _ := newTestClassifier(t)
	got := c.ClassifyElement(model.ElementInput{ID: "f1", Tag: "iframe", Sandbox: true})
	if got.Category != model.CategoryUnknown {
		t.Fatalf("沙箱元素判定为 %s, want unknown", got.Category)
	}
	if got.Category.Safety() != model.SafetyUnknown {
		t.Fatalf("沙箱元素三态判定为 %s", got.Category.Safety())
	}
}

func TestClassifyElementAdAttributes(t *testing.T) {
	c, _ := newTestClassifier(t)

	tests := []struct {
		name string
		in   model.ElementInput
		want model.Category
	}{
		{"广告域名 src", el("iframe", map[string]string{"src": "https://doubleclick.net/frame"}), model.CategoryAd},
		{"协议相对地址", el("img", map[string]string{"src": "//googlesyndication.com/pixel"}), model.CategoryAd},
		{"跟踪器 src", el("script", map[string]string{"src": "https://google-analytics.com/ga.js"}), model.CategoryTracker},
		{"无特征元素", el("div", map[string]string{"class": "content main"}), model.CategoryClean},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ClassifyElement(tt.in)
			if got.Category != tt.want {
				t.Fatalf("got %s, want %s (%s)", got.Category, tt.want, got.Description)
			}
		})
	}
}

func TestClassifyElementSelector(t *testing.T) {
	c, store := newTestClassifier(t)
	if _, err := store.AddCustom(".ad-banner", rulespec.KindCSSSelector, model.CategoryAd, "广告容器选择器"); err != nil {
		t.Fatalf("添加选择器规则失败: %v", err)
	}

	hit := el("div", map[string]string{"class": "wrap ad-banner large"})
	if got := c.ClassifyElement(hit); got.Category != model.CategoryAd {
		t.Fatalf("class 令牌未命中: %s", got.Category)
	}

	// 子串不构成令牌命中
	miss := el("div", map[string]string{"class": "my-ad-banner-like"})
	if got := c.ClassifyElement(miss); got.Category != model.CategoryClean {
		t.Fatalf("class 子串误命中: %s", got.Category)
	}

	byID := el("div", map[string]string{"id": "ad-banner"})
	if got := c.ClassifyElement(byID); got.Category != model.CategoryAd {
		t.Fatalf("id 未命中: %s", got.Category)
	}
}

func TestClassifyElementKeywordsAndBanner(t *testing.T) {
	c, _ := newTestClassifier(t)

	kw := model.ElementInput{ID: "t1", Tag: "div", Text: "Sponsored content here"}
	if got := c.ClassifyElement(kw); got.Category != model.CategoryAd {
		t.Fatalf("英文关键词未命中: %s", got.Category)
	}
	zh := model.ElementInput{ID: "t2", Tag: "div", Text: "这是一条推广信息"}
	if got := c.ClassifyElement(zh); got.Category != model.CategoryAd {
		t.Fatalf("中文关键词未命中: %s", got.Category)
	}

	tests := []struct {
		name string
		w, h int
		want model.Category
	}{
		{"标准中矩形", 300, 250, model.CategoryAd},
		{"容差内", 305, 245, model.CategoryAd},
		{"容差外", 300, 261, model.CategoryClean},
		{"零尺寸", 0, 0, model.CategoryClean},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ClassifyElement(model.ElementInput{ID: "b", Tag: "div", Width: tt.w, Height: tt.h})
			if got.Category != tt.want {
				t.Fatalf("%dx%d got %s, want %s", tt.w, tt.h, got.Category, tt.want)
			}
		})
	}
}

func TestClassifyElementScriptThreat(t *testing.T) {
	c, _ := newTestClassifier(t)

	srcHit := el("script", map[string]string{"src": "https://malware-delivery.net/payload.js"})
	if got := c.ClassifyElement(srcHit); got.Category != model.CategoryMalware {
		t.Fatalf("恶意 src 判定为 %s", got.Category)
	}

	tests := []struct {
		name string
		text string
		want model.Category
	}{
		{"eval 调用", `var x = eval(atob(data));`, model.CategoryMalware},
		{"document.write", `document.write('<img src=x>');`, model.CategoryMalware},
		{"fromCharCode 解码", `String.fromCharCode(104,97)`, model.CategoryMalware},
		{"setTimeout 包裹 eval", `setTimeout(function(){ eval(code) }, 10)`, model.CategoryMalware},
		{"普通脚本", `console.log("hello")`, model.CategoryClean},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ClassifyElement(model.ElementInput{ID: "s", Tag: "script", Text: tt.text})
			if got.Category != tt.want {
				t.Fatalf("got %s, want %s (%s)", got.Category, tt.want, got.Description)
			}
		})
	}

	// 非 script 标签不评估脚本特征
	div := model.ElementInput{ID: "d", Tag: "div", Text: `eval(code)`}
	if got := c.ClassifyElement(div); got.Category == model.CategoryMalware {
		t.Fatal("非脚本元素被判定为恶意")
	}
}

func TestClassifyElementPhishing(t *testing.T) {
	c, _ := newTestClassifier(t)

	href := el("a", map[string]string{"href": "https://secure-paypal-verification.com/login"})
	if got := c.ClassifyElement(href); got.Category != model.CategoryPhishing {
		t.Fatalf("钓鱼链接判定为 %s", got.Category)
	}

	text := model.ElementInput{ID: "p", Tag: "p", Text: "Please verify your account immediately"}
	if got := c.ClassifyElement(text); got.Category != model.CategoryPhishing {
		t.Fatalf("钓鱼关键词判定为 %s", got.Category)
	}
	zh := model.ElementInput{ID: "p2", Tag: "p", Text: "您的账户已冻结，请点击处理"}
	if got := c.ClassifyElement(zh); got.Category != model.CategoryPhishing {
		t.Fatalf("中文钓鱼关键词判定为 %s", got.Category)
	}
}

func TestClassifyElementTogglesOff(t *testing.T) {
	c, _ := newTestClassifier(t)

	c.SetAdBlock(false)
	banner := model.ElementInput{ID: "b", Tag: "div", Width: 728, Height: 90}
	if got := c.ClassifyElement(banner); got.Category != model.CategoryClean {
		t.Fatalf("广告拦截关闭后横幅判定为 %s", got.Category)
	}
	// 安全扫描不受广告开关影响
	script := model.ElementInput{ID: "s", Tag: "script", Text: "eval(x)"}
	if got := c.ClassifyElement(script); got.Category != model.CategoryMalware {
		t.Fatalf("广告拦截关闭影响安全扫描: %s", got.Category)
	}

	c.SetSecurity(false)
	if got := c.ClassifyElement(script); got.Category != model.CategoryClean {
		t.Fatalf("安全扫描关闭后判定为 %s", got.Category)
	}
}
