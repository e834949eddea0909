// Package observe 实现内容观察器：变更批次消费与周期兜底扫描
package observe

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"umbra/internal/logger"
	"umbra/pkg/model"
)

// 批次通道容量与单片处理大小
const (
	batchQueueCap = 64
	sliceSize     = 50 // 大批次按片处理，片间让出调度
)

// 默认兜底扫描间隔
const defaultRescanEvery = 30 * time.Second

// ProcessFunc 处理单个新出现的元素（分类并处置）
type ProcessFunc func(el model.ElementInput)

// RescanFunc 周期兜底扫描的元素来源，由协作方提供；可为 nil
type RescanFunc func() []model.ElementInput

// Observer 内容观察器。单消费者顺序消费变更批次，
// 周期扫描可取消，Stop 幂等且停止后不再产生任何分类
type Observer struct {
	process ProcessFunc
	rescan  RescanFunc
	every   time.Duration
	log     logger.Logger

	batches chan model.MutationBatch
	stopCh  chan struct{}
	stopped atomic.Bool
	startMu sync.Mutex
	started bool
	wg      sync.WaitGroup

	totalSubmit int64
	totalDrop   int64
	mu          sync.Mutex
}

// New 创建观察器
func New(process ProcessFunc, rescan RescanFunc, every time.Duration, l logger.Logger) *Observer {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	if every <= 0 {
		every = defaultRescanEvery
	}
	return &Observer{
		process: process,
		rescan:  rescan,
		every:   every,
		log:     l,
		batches: make(chan model.MutationBatch, batchQueueCap),
		stopCh:  make(chan struct{}),
	}
}

// Install 启动消费协程与周期扫描，可重复调用
func (o *Observer) Install() {
	o.startMu.Lock()
	defer o.startMu.Unlock()
	if o.started || o.stopped.Load() {
		return
	}
	o.started = true
	o.wg.Add(2)
	go o.consume()
	go o.rescanLoop()
	o.log.Info("内容观察器已安装", "rescanEvery", o.every.String())
}

// Submit 提交一批变更，非阻塞；队列满或已停止时丢弃并返回 false
func (o *Observer) Submit(batch model.MutationBatch) bool {
	if o.stopped.Load() {
		return false
	}
	o.mu.Lock()
	o.totalSubmit++
	o.mu.Unlock()
	select {
	case o.batches <- batch:
		return true
	default:
		o.mu.Lock()
		o.totalDrop++
		drop, submit := o.totalDrop, o.totalSubmit
		o.mu.Unlock()
		o.log.Warn("变更批次队列已满，批次被丢弃", "totalSubmit", submit, "totalDrop", drop)
		return false
	}
}

// Stop 停止消费与扫描并释放回调，可重复调用
func (o *Observer) Stop() {
	if o.stopped.Swap(true) {
		return
	}
	close(o.stopCh)
	o.wg.Wait()
	o.log.Info("内容观察器已停止")
}

// consume 单消费者循环，顺序消费批次
func (o *Observer) consume() {
	defer o.wg.Done()
	for {
		select {
		case <-o.stopCh:
			return
		case batch := <-o.batches:
			o.handleBatch(batch)
		}
	}
}

// handleBatch 按片处理大批次，片间让出调度避免长时间占用
func (o *Observer) handleBatch(batch model.MutationBatch) {
	for i, el := range batch.Elements {
		if o.stopped.Load() {
			return
		}
		o.process(el)
		if (i+1)%sliceSize == 0 {
			runtime.Gosched()
		}
	}
}

// rescanLoop 周期兜底扫描，状态销毁后静默退出
func (o *Observer) rescanLoop() {
	defer o.wg.Done()
	ticker := time.NewTicker(o.every)
	defer ticker.Stop()
	for {
		select {
		case <-o.stopCh:
			return
		case <-ticker.C:
			if o.rescan == nil {
				continue
			}
			els := o.rescan()
			if len(els) == 0 {
				continue
			}
			o.handleBatch(model.MutationBatch{Elements: els})
		}
	}
}

// Stats 返回提交与丢弃计数
func (o *Observer) Stats() (submitted, dropped int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.totalSubmit, o.totalDrop
}
