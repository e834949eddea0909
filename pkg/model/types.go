package model

// RuleID 规则ID
type RuleID string

// Category 分类结果类别
type Category string

const (
	CategoryAd         Category = "ad"         // 广告
	CategoryTracker    Category = "tracker"    // 跟踪器
	CategoryMalware    Category = "malware"    // 恶意软件
	CategoryPhishing   Category = "phishing"   // 钓鱼
	CategorySpoofing   Category = "spoofing"   // 域名仿冒
	CategorySuspicious Category = "suspicious" // 可疑结构
	CategoryBlocked    Category = "blocked"    // 已拦截
	CategoryClean      Category = "clean"      // 干净
	CategoryUnknown    Category = "unknown"    // 无法判定（跨域等场景，不等同于干净）
)

// IsThreat 判断类别是否为需要处置的威胁
func (c Category) IsThreat() bool {
	switch c {
	case CategoryAd, CategoryTracker, CategoryMalware, CategoryPhishing,
		CategorySpoofing, CategorySuspicious, CategoryBlocked:
		return true
	default:
		return false
	}
}

// SafetyState 三态安全判定，Unknown 不可折叠为 Clean
type SafetyState string

const (
	SafetyClean   SafetyState = "clean"
	SafetyFlagged SafetyState = "flagged"
	SafetyUnknown SafetyState = "unknown"
)

// Safety 返回类别对应的三态判定
func (c Category) Safety() SafetyState {
	switch c {
	case CategoryClean:
		return SafetyClean
	case CategoryUnknown:
		return SafetyUnknown
	default:
		return SafetyFlagged
	}
}

// Verdict 单次分类的判定结果，创建后不可变
type Verdict struct {
	Category    Category `json:"category"`
	Description string   `json:"description"`
	MatchedRule *RuleID  `json:"matchedRule,omitempty"` // Clean/Unknown 时为空
	Subject     string   `json:"subject"`               // URL 或元素标识
}

// ElementInput 元素分类输入（DOM 节点描述符）
type ElementInput struct {
	ID      string            `json:"id"` // 元素的不透明标识
	Tag     string            `json:"tag"`
	Attrs   map[string]string `json:"attrs"` // src/href/class/id 等关注属性
	Text    string            `json:"text"`
	Width   int               `json:"width"`
	Height  int               `json:"height"`
	Sandbox bool              `json:"sandbox"` // 跨域沙箱内容，属性与文本不可读
}

// Attr 读取元素属性，缺失时返回空串
func (e ElementInput) Attr(name string) string {
	if e.Attrs == nil {
		return ""
	}
	return e.Attrs[name]
}

// ActionType 处置动作类型
type ActionType string

const (
	ActionAllow        ActionType = "allow"        // 放行
	ActionBlockNav     ActionType = "blockNav"     // 阻止导航
	ActionHide         ActionType = "hide"         // 隐藏元素（可恢复）
	ActionRemove       ActionType = "remove"       // 移除元素（不可恢复）
	ActionInterstitial ActionType = "interstitial" // 标记并插入确认页
	ActionRewrite      ActionType = "rewrite"      // 重写为 HTTPS
)

// Action 处置结果
type Action struct {
	Type        ActionType `json:"type"`
	Subject     string     `json:"subject"`
	RewrittenTo string     `json:"rewrittenTo,omitempty"` // ActionRewrite 时的新地址
}

// ThreatEvent 威胁日志事件
type ThreatEvent struct {
	Timestamp int64      `json:"timestamp"` // UnixMilli
	Subject   string     `json:"subject"`
	Verdict   Verdict    `json:"verdict"`
	Action    ActionType `json:"action"`
}

// Statistics 对外暴露的统计信息
type Statistics struct {
	Total            int64              `json:"total"`
	BlockedAds       int64              `json:"blockedAds"`
	BlockedMalware   int64              `json:"blockedMalware"`
	BlockedPhishing  int64              `json:"blockedPhishing"`
	TrackersBlocked  int64              `json:"trackersBlocked"`
	BlockedNavCount  int64              `json:"blockedNavCount"`
	ByCategory       map[Category]int64 `json:"byCategory"`
	AdBlockEnabled   bool               `json:"adBlockEnabled"`
	SecurityEnabled  bool               `json:"securityEnabled"`
	PrivateMode      bool               `json:"privateMode"`
	HTTPSUpgradeOn   bool               `json:"httpsUpgradeOn"`
	TrackingProtOn   bool               `json:"trackingProtOn"`
	CustomRuleCount  int                `json:"customRuleCount"`
	WhitelistEntries int                `json:"whitelistEntries"`
}

// Severity 通知严重级别
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// SessionMode 隐私会话模式
type SessionMode string

const (
	ModeNormal  SessionMode = "normal"
	ModePrivate SessionMode = "private"
)

// MutationBatch 一批新出现的 DOM 节点描述符
type MutationBatch struct {
	Elements []ElementInput
}
