package storage

import (
	"time"

	"umbra/pkg/model"
	"umbra/pkg/rulespec"
)

// RulesRepo 自定义规则与黑白名单仓库，实现 rules.Persister
type RulesRepo struct {
	db *DB
}

// NewRulesRepo 创建规则仓库实例
func NewRulesRepo(db *DB) *RulesRepo {
	return &RulesRepo{db: db}
}

// SaveCustomRule 保存自定义规则（存在则更新）
func (r *RulesRepo) SaveCustomRule(rule rulespec.Rule) error {
	record := CustomRuleRecord{
		RuleID:      string(rule.ID),
		Kind:        string(rule.Kind),
		Pattern:     rule.Pattern,
		Category:    string(rule.Category),
		Description: rule.Description,
		CreatedAt:   time.Now(),
	}
	return r.db.GormDB().Save(&record).Error
}

// DeleteCustomRule 删除自定义规则
func (r *RulesRepo) DeleteCustomRule(id model.RuleID) error {
	return r.db.GormDB().Where("rule_id = ?", string(id)).Delete(&CustomRuleRecord{}).Error
}

// LoadCustomRules 加载全部自定义规则，按创建顺序
func (r *RulesRepo) LoadCustomRules() ([]rulespec.Rule, error) {
	var records []CustomRuleRecord
	if err := r.db.GormDB().Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]rulespec.Rule, 0, len(records))
	for _, rec := range records {
		out = append(out, rulespec.Rule{
			ID:          model.RuleID(rec.RuleID),
			Kind:        rulespec.RuleKind(rec.Kind),
			Pattern:     rec.Pattern,
			Category:    model.Category(rec.Category),
			Description: rec.Description,
			Origin:      rulespec.OriginCustom,
		})
	}
	return out, nil
}

// SaveListEntry 保存名单条目
func (r *RulesRepo) SaveListEntry(list, domain string) error {
	record := ListEntryRecord{List: list, Domain: domain, CreatedAt: time.Now()}
	// 复合唯一索引下重复插入视为成功
	err := r.db.GormDB().Where("list = ? AND domain = ?", list, domain).
		FirstOrCreate(&record).Error
	return err
}

// DeleteListEntry 删除名单条目
func (r *RulesRepo) DeleteListEntry(list, domain string) error {
	return r.db.GormDB().Where("list = ? AND domain = ?", list, domain).
		Delete(&ListEntryRecord{}).Error
}

// LoadList 加载指定名单的全部域名
func (r *RulesRepo) LoadList(list string) ([]string, error) {
	var records []ListEntryRecord
	if err := r.db.GormDB().Where("list = ?", list).Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Domain)
	}
	return out, nil
}
