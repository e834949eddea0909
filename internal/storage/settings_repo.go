package storage

import (
	"time"

	"gorm.io/gorm"
)

// SettingsRepo 设置仓库
type SettingsRepo struct {
	db *DB
}

// NewSettingsRepo 创建设置仓库实例
func NewSettingsRepo(db *DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// Get 获取设置值
func (r *SettingsRepo) Get(key string) (string, error) {
	var setting Setting
	result := r.db.GormDB().Where("key = ?", key).First(&setting)
	if result.Error != nil {
		return "", result.Error
	}
	return setting.Value, nil
}

// GetWithDefault 获取设置值，不存在时返回默认值
func (r *SettingsRepo) GetWithDefault(key, defaultValue string) string {
	val, err := r.Get(key)
	if err != nil {
		return defaultValue
	}
	return val
}

// Set 设置值（存在则更新，不存在则创建）
func (r *SettingsRepo) Set(key, value string) error {
	setting := Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return r.db.GormDB().Save(&setting).Error
}

// Delete 删除设置
func (r *SettingsRepo) Delete(key string) error {
	return r.db.GormDB().Delete(&Setting{}, "key = ?", key).Error
}

// GetAll 获取所有设置
func (r *SettingsRepo) GetAll() (map[string]string, error) {
	var settings []Setting
	if err := r.db.GormDB().Find(&settings).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, s := range settings {
		result[s.Key] = s.Value
	}
	return result, nil
}

// SetMultiple 批量设置
func (r *SettingsRepo) SetMultiple(kvs map[string]string) error {
	return r.db.GormDB().Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for key, value := range kvs {
			setting := Setting{
				Key:       key,
				Value:     value,
				UpdatedAt: now,
			}
			if err := tx.Save(&setting).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetBool 获取布尔设置，不存在时返回默认值
func (r *SettingsRepo) GetBool(key string, defaultValue bool) bool {
	def := "false"
	if defaultValue {
		def = "true"
	}
	return r.GetWithDefault(key, def) == "true"
}

// SetBool 设置布尔值
func (r *SettingsRepo) SetBool(key string, v bool) error {
	val := "false"
	if v {
		val = "true"
	}
	return r.Set(key, val)
}

// 便捷方法

// GetAdBlock 广告拦截开关，默认开启
func (r *SettingsRepo) GetAdBlock() bool { return r.GetBool(SettingKeyAdBlock, true) }

// GetTrackingProt 跟踪保护开关，默认开启
func (r *SettingsRepo) GetTrackingProt() bool { return r.GetBool(SettingKeyTrackingProt, true) }

// GetSecurityScan 安全扫描开关，默认开启
func (r *SettingsRepo) GetSecurityScan() bool { return r.GetBool(SettingKeySecurityScan, true) }

// GetHTTPSUpgrade HTTPS 升级开关，默认开启
func (r *SettingsRepo) GetHTTPSUpgrade() bool { return r.GetBool(SettingKeyHTTPSUpgrade, true) }

// GetClearOnExit 退出时清除开关，默认关闭；与隐私模式是独立设置
func (r *SettingsRepo) GetClearOnExit() bool { return r.GetBool(SettingKeyClearOnExit, false) }

// GetTheme 获取主题
func (r *SettingsRepo) GetTheme() string { return r.GetWithDefault(SettingKeyTheme, "system") }

// SetTheme 设置主题
func (r *SettingsRepo) SetTheme(theme string) error { return r.Set(SettingKeyTheme, theme) }

// GetSearchEngine 获取搜索引擎
func (r *SettingsRepo) GetSearchEngine() string {
	return r.GetWithDefault(SettingKeySearchEngine, "duckduckgo")
}
