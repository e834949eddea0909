package storage

import (
	"time"
)

// Setting 用户设置表
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`  // 设置键
	Value     string    `gorm:"type:text" json:"value"` // 设置值
	UpdatedAt time.Time `json:"updatedAt"`              // 更新时间
}

// 预定义的设置 Key
const (
	SettingKeyAdBlock      = "ad_block"       // 广告拦截开关
	SettingKeyTrackingProt = "tracking_prot"  // 跟踪保护开关
	SettingKeySecurityScan = "security_scan"  // 安全扫描开关
	SettingKeyHTTPSUpgrade = "https_upgrade"  // HTTPS 升级开关
	SettingKeyClearOnExit  = "clear_on_exit"  // 退出时清除数据
	SettingKeyTheme        = "theme"          // 主题
	SettingKeySearchEngine = "search_engine"  // 搜索引擎
	SettingKeyPrivateMode  = "private_mode"   // 隐私模式（启动默认值）
)

// CustomRuleRecord 自定义规则表
type CustomRuleRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`               // 数据库主键
	RuleID      string    `gorm:"uniqueIndex;not null" json:"ruleId"` // 规则业务 ID
	Kind        string    `json:"kind"`                               // 规则谓词类型
	Pattern     string    `gorm:"type:text" json:"pattern"`           // 模式
	Category    string    `gorm:"index" json:"category"`              // 类别
	Description string    `json:"description"`                        // 描述
	CreatedAt   time.Time `json:"createdAt"`                          // 创建时间
}

// ListEntryRecord 黑白名单条目表
type ListEntryRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`                        // 主键
	List      string    `gorm:"index:idx_list_domain,unique" json:"list"`    // whitelist/blocklist
	Domain    string    `gorm:"index:idx_list_domain,unique" json:"domain"`  // 域名
	CreatedAt time.Time `json:"createdAt"`                                   // 创建时间
}

// ThreatEventRecord 威胁事件历史表
type ThreatEventRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`   // 主键
	Subject     string    `gorm:"type:text" json:"subject"`
	Category    string    `gorm:"index" json:"category"`  // 判定类别
	Description string    `json:"description"`            // 判定描述
	RuleID      *string   `json:"ruleId"`                 // 命中规则，启发式命中时为空
	Action      string    `json:"action"`                 // 处置动作
	Timestamp   int64     `gorm:"index" json:"timestamp"` // 事件时间戳
	CreatedAt   time.Time `json:"createdAt"`              // 入库时间
}

// KVRecord 通用键值存储表，带 TTL 与 LRU 淘汰支持
type KVRecord struct {
	Key       string     `gorm:"primaryKey" json:"key"`
	Value     string     `gorm:"type:text" json:"value"`
	ExpiresAt *time.Time `json:"expiresAt"`              // 为空表示不过期
	LastUsed  time.Time  `gorm:"index" json:"lastUsed"`  // LRU 淘汰依据
	UpdatedAt time.Time  `json:"updatedAt"`
}
