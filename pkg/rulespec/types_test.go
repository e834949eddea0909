package rulespec

import (
	"strings"
	"testing"

	"umbra/pkg/errx"
	"umbra/pkg/model"
)

func TestCompileInvalidPattern(t *testing.T) {
	r := Rule{Kind: KindURLRegex, Pattern: `[unclosed`}
	err := r.Compile()
	if err == nil {
		t.Fatal("非法正则未返回错误")
	}
	if !errx.Is(err, errx.CodeInvalidPattern) {
		t.Fatalf("错误码异常: %v", err)
	}

	// 非正则类型无需编译
	lit := Rule{Kind: KindDomainLiteral, Pattern: "[anything"}
	if err := lit.Compile(); err != nil {
		t.Fatalf("域名字面量被编译校验: %v", err)
	}
}

func TestMatches(t *testing.T) {
	lit := Rule{Kind: KindDomainLiteral, Pattern: "ads.example.com"}
	if !lit.Matches("ads.example.com", "https://ads.example.com/x") {
		t.Fatal("域名字面量未命中")
	}
	if lit.Matches("sub.ads.example.com", "https://sub.ads.example.com/x") {
		t.Fatal("域名字面量命中了子域（应为精确匹配）")
	}

	re := Rule{Kind: KindURLRegex, Pattern: `/banner/`}
	// 未编译的正则不命中
	if re.Matches("x.com", "https://x.com/banner/a") {
		t.Fatal("未编译正则命中")
	}
	if err := re.Compile(); err != nil {
		t.Fatalf("编译失败: %v", err)
	}
	if !re.Matches("x.com", "https://x.com/banner/a") {
		t.Fatal("编译后正则未命中")
	}

	// CSS 选择器不参与 URL 匹配
	sel := Rule{Kind: KindCSSSelector, Pattern: ".ad"}
	if sel.Matches(".ad", ".ad") {
		t.Fatal("选择器参与了 URL 匹配")
	}

	// 文件签名按路径后缀匹配，大小写不敏感，忽略查询与片段
	sig := Rule{Kind: KindFileSignature, Pattern: ".apk"}
	if !sig.Matches("dl.example.com", "https://dl.example.com/app.apk") {
		t.Fatal("文件签名未命中路径后缀")
	}
	if !sig.Matches("dl.example.com", "https://dl.example.com/APP.APK?token=1") {
		t.Fatal("文件签名未忽略大小写与查询串")
	}
	if sig.Matches("dl.example.com", "https://dl.example.com/page?f=app.apk") {
		t.Fatal("文件签名命中了查询参数")
	}
}

func TestNewCustomRule(t *testing.T) {
	r, err := NewCustomRule(`/promo/`, KindURLRegex, model.CategoryAd, "测试")
	if err != nil {
		t.Fatalf("创建失败: %v", err)
	}
	if !strings.HasPrefix(string(r.ID), "custom-") {
		t.Fatalf("ID 前缀异常: %s", r.ID)
	}
	if r.Origin != OriginCustom {
		t.Fatalf("来源 %s", r.Origin)
	}
	if r.Regexp() == nil {
		t.Fatal("创建时未编译")
	}

	if _, err := NewCustomRule(`[bad`, KindURLRegex, model.CategoryAd, ""); err == nil {
		t.Fatal("非法模式被接受")
	}
}

func TestNewExportID(t *testing.T) {
	id := NewExportID()
	if !strings.HasPrefix(id, "export-") {
		t.Fatalf("导出 ID 格式异常: %s", id)
	}
	if id == NewExportID() {
		t.Fatal("导出 ID 不唯一")
	}
}
