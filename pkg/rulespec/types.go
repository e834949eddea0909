// Package rulespec 定义分类规则的类型规范
package rulespec

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"umbra/pkg/errx"
	"umbra/pkg/model"
)

// 导出格式版本常量
const (
	ExportVersion = "1.0" // 配置/日志导出格式版本
)

// RuleKind 规则谓词类型
type RuleKind string

const (
	KindDomainLiteral RuleKind = "domainLiteral" // 域名字面量，精确匹配主机名
	KindURLRegex      RuleKind = "urlRegex"      // URL 正则
	KindCSSSelector   RuleKind = "cssSelector"   // CSS 选择器（作用于元素 class/id）
	KindFileSignature RuleKind = "fileSignature" // 文件签名字节序列
)

// Origin 规则来源
type Origin string

const (
	OriginBuiltin Origin = "builtin" // 内置规则，随进程注册
	OriginCustom  Origin = "custom"  // 用户自定义，可持久化、可移除
)

// Rule 单条分类规则
type Rule struct {
	ID          model.RuleID   `json:"id"`
	Kind        RuleKind       `json:"kind"`
	Pattern     string         `json:"pattern"`
	Category    model.Category `json:"category"`
	Description string         `json:"description"`
	Origin      Origin         `json:"origin"`

	compiled *regexp.Regexp // KindURLRegex 编译结果，注册时填充
}

// Compile 编译规则的正则部分，非法模式返回 INVALID_PATTERN
func (r *Rule) Compile() error {
	if r.Kind != KindURLRegex {
		return nil
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return errx.Wrap(errx.CodeInvalidPattern, err, fmt.Sprintf("正则无法编译: %q", r.Pattern))
	}
	r.compiled = re
	return nil
}

// Regexp 返回已编译的正则，未编译时为 nil
func (r *Rule) Regexp() *regexp.Regexp { return r.compiled }

// Matches 判断规则是否命中给定主机名与完整 URL
func (r *Rule) Matches(host, rawURL string) bool {
	switch r.Kind {
	case KindDomainLiteral:
		return host == r.Pattern
	case KindURLRegex:
		if r.compiled == nil {
			return false
		}
		return r.compiled.MatchString(rawURL)
	case KindFileSignature:
		// 文件签名按路径后缀匹配，忽略查询与片段
		path := rawURL
		if i := strings.IndexAny(path, "?#"); i >= 0 {
			path = path[:i]
		}
		return strings.HasSuffix(strings.ToLower(path), strings.ToLower(r.Pattern))
	default:
		return false
	}
}

// NewCustomRule 创建一条自定义规则并编译校验
func NewCustomRule(pattern string, kind RuleKind, category model.Category, description string) (Rule, error) {
	r := Rule{
		ID:          model.RuleID("custom-" + uuid.New().String()),
		Kind:        kind,
		Pattern:     pattern,
		Category:    category,
		Description: description,
		Origin:      OriginCustom,
	}
	if err := r.Compile(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// ExportedConfig 配置导出结构，importConfig 可据此完整恢复
type ExportedConfig struct {
	Version     string   `json:"version"`
	ExportID    string   `json:"exportId"`
	Timestamp   int64    `json:"timestamp"`
	CustomRules []Rule   `json:"customRules"`
	Whitelist   []string `json:"whitelist"`
	Blocklist   []string `json:"blocklist"`
}

// ExportedLog 日志导出结构
type ExportedLog struct {
	Version   string              `json:"version"`
	ExportID  string              `json:"exportId"`
	Timestamp int64               `json:"timestamp"`
	Stats     model.Statistics    `json:"stats"`
	Events    []model.ThreatEvent `json:"events"`
}

// NewExportID 生成导出快照 ID，格式：export-YYYYMMDD-uuid
func NewExportID() string {
	return fmt.Sprintf("export-%s-%s", time.Now().Format("20060102"), uuid.New().String()[:8])
}
