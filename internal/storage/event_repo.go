package storage

import (
	"sync"
	"time"

	"umbra/pkg/model"
)

// EventRepo 威胁事件历史仓库。
// 写入是否允许由隐私控制器在调用方裁决，本仓库只负责落库
type EventRepo struct {
	db *DB
	// 异步写入缓冲
	buffer    []ThreatEventRecord
	bufferMu  sync.Mutex
	batchSize int
	flushCh   chan struct{}
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewEventRepo 创建事件仓库实例
func NewEventRepo(db *DB) *EventRepo {
	r := &EventRepo{
		db:        db,
		buffer:    make([]ThreatEventRecord, 0, 100),
		batchSize: 50,
		flushCh:   make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
	// 启动异步写入协程
	r.wg.Add(1)
	go r.asyncWriter()
	return r
}

// asyncWriter 异步批量写入协程
func (r *EventRepo) asyncWriter() {
	defer r.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			// 停止前刷新剩余数据
			r.flush()
			return
		case <-ticker.C:
			r.flush()
		case <-r.flushCh:
			r.flush()
		}
	}
}

// flush 刷新缓冲区到数据库
func (r *EventRepo) flush() {
	r.bufferMu.Lock()
	if len(r.buffer) == 0 {
		r.bufferMu.Unlock()
		return
	}
	toWrite := r.buffer
	r.buffer = make([]ThreatEventRecord, 0, 100)
	r.bufferMu.Unlock()

	// 批量插入，失败不阻塞分类主流程
	if err := r.db.GormDB().CreateInBatches(toWrite, 100).Error; err != nil {
		_ = err
	}
}

// DiscardBuffer 丢弃尚未落库的缓冲条目；隐私清除序列调用
func (r *EventRepo) DiscardBuffer() {
	r.bufferMu.Lock()
	r.buffer = r.buffer[:0]
	r.bufferMu.Unlock()
}

// Stop 停止异步写入
func (r *EventRepo) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

// Record 记录事件（异步）
func (r *EventRepo) Record(evt model.ThreatEvent) {
	record := ThreatEventRecord{
		Subject:     evt.Subject,
		Category:    string(evt.Verdict.Category),
		Description: evt.Verdict.Description,
		Action:      string(evt.Action),
		Timestamp:   evt.Timestamp,
		CreatedAt:   time.Now(),
	}
	if evt.Verdict.MatchedRule != nil {
		ruleID := string(*evt.Verdict.MatchedRule)
		record.RuleID = &ruleID
	}

	r.bufferMu.Lock()
	r.buffer = append(r.buffer, record)
	needFlush := len(r.buffer) >= r.batchSize
	r.bufferMu.Unlock()

	if needFlush {
		select {
		case r.flushCh <- struct{}{}:
		default:
		}
	}
}

// QueryOptions 查询选项
type QueryOptions struct {
	Category  string
	Subject   string
	StartTime int64
	EndTime   int64
	Offset    int
	Limit     int
}

// Query 查询事件历史
func (r *EventRepo) Query(opts QueryOptions) ([]ThreatEventRecord, int64, error) {
	query := r.db.GormDB().Model(&ThreatEventRecord{})

	// 应用过滤条件
	if opts.Category != "" {
		query = query.Where("category = ?", opts.Category)
	}
	if opts.Subject != "" {
		query = query.Where("subject LIKE ?", "%"+opts.Subject+"%")
	}
	if opts.StartTime > 0 {
		query = query.Where("timestamp >= ?", opts.StartTime)
	}
	if opts.EndTime > 0 {
		query = query.Where("timestamp <= ?", opts.EndTime)
	}

	// 计算总数
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}

	var records []ThreatEventRecord
	err := query.Order("timestamp DESC").
		Offset(opts.Offset).
		Limit(opts.Limit).
		Find(&records).Error

	return records, total, err
}

// CountAll 返回已落库事件总数
func (r *EventRepo) CountAll() (int64, error) {
	var total int64
	err := r.db.GormDB().Model(&ThreatEventRecord{}).Count(&total).Error
	return total, err
}

// DeleteOldEvents 删除旧事件（数据清理）
func (r *EventRepo) DeleteOldEvents(beforeTimestamp int64) (int64, error) {
	result := r.db.GormDB().Where("timestamp < ?", beforeTimestamp).Delete(&ThreatEventRecord{})
	return result.RowsAffected, result.Error
}

// CleanupOldEvents 根据保留天数清理旧事件
func (r *EventRepo) CleanupOldEvents(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = 7 // 默认保留 7 天
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays).UnixMilli()
	return r.DeleteOldEvents(cutoff)
}
