package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"umbra/pkg/errx"
)

// 键值存储默认容量上限，超限时返回配额错误
const defaultKVCapacity = 4096

// LRU 淘汰单次清理的条目数
const evictSweepSize = 64

// KVStore 通用键值存储，实现 privacy.PersistentStore。
// 有限容量、写入可能因配额失败；淘汰策略为最久未使用优先
type KVStore struct {
	db       *DB
	capacity int64
}

// NewKVStore 创建键值存储实例
func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db, capacity: defaultKVCapacity}
}

// SetCapacity 调整容量上限，测试用
func (s *KVStore) SetCapacity(n int64) {
	if n > 0 {
		s.capacity = n
	}
}

// Get 读取键值；命中时刷新 LRU 时间戳，过期条目视为不存在
func (s *KVStore) Get(key string) (string, bool, error) {
	var rec KVRecord
	result := s.db.GormDB().Where("key = ?", key).First(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, result.Error
	}
	if rec.ExpiresAt != nil && time.Now().After(*rec.ExpiresAt) {
		_ = s.Remove(key)
		return "", false, nil
	}
	_ = s.db.GormDB().Model(&KVRecord{}).Where("key = ?", key).
		Update("last_used", time.Now()).Error
	return rec.Value, true, nil
}

// Put 写入键值；容量超限时返回 STORAGE_QUOTA，由上层触发淘汰后重试
func (s *KVStore) Put(key, value string, ttl time.Duration) error {
	var count int64
	if err := s.db.GormDB().Model(&KVRecord{}).Count(&count).Error; err != nil {
		return err
	}
	var exists int64
	if err := s.db.GormDB().Model(&KVRecord{}).Where("key = ?", key).Count(&exists).Error; err != nil {
		return err
	}
	if exists == 0 && count >= s.capacity {
		return errx.New(errx.CodeStorageQuota, "键值存储已达容量上限")
	}

	now := time.Now()
	rec := KVRecord{Key: key, Value: value, LastUsed: now, UpdatedAt: now}
	if ttl > 0 {
		exp := now.Add(ttl)
		rec.ExpiresAt = &exp
	}
	return s.db.GormDB().Save(&rec).Error
}

// Remove 删除键
func (s *KVStore) Remove(key string) error {
	return s.db.GormDB().Where("key = ?", key).Delete(&KVRecord{}).Error
}

// Clear 清空全部键值
func (s *KVStore) Clear() error {
	return s.db.GormDB().Where("1 = 1").Delete(&KVRecord{}).Error
}

// ClearPrefix 清除指定前缀的键，用于会话范围数据
func (s *KVStore) ClearPrefix(prefix string) error {
	return s.db.GormDB().Where("key LIKE ?", prefix+"%").Delete(&KVRecord{}).Error
}

// EvictLRU 按最久未使用淘汰一批条目，返回实际淘汰数
func (s *KVStore) EvictLRU() (int64, error) {
	var victims []KVRecord
	if err := s.db.GormDB().Order("last_used ASC").Limit(evictSweepSize).Find(&victims).Error; err != nil {
		return 0, err
	}
	if len(victims) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(victims))
	for _, v := range victims {
		keys = append(keys, v.Key)
	}
	result := s.db.GormDB().Where("key IN ?", keys).Delete(&KVRecord{})
	return result.RowsAffected, result.Error
}

// Count 返回当前条目数
func (s *KVStore) Count() (int64, error) {
	var n int64
	err := s.db.GormDB().Model(&KVRecord{}).Count(&n).Error
	return n, err
}
