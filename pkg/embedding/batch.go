package embedding

import (
	"context"
	"errors"
	"sync"
	"time"

	"novel-ai-go/internal/config"
	"novel-ai-go/pkg/log"
)

// TaskStatus 是批量任务的终态。
type TaskStatus string

const (
	StatusPending TaskStatus = "pending"
	StatusSuccess TaskStatus = "success"
	StatusFailed  TaskStatus = "failed"
)

// BatchTask 是提交给批量处理器的一项向量化任务。
// Metadata 对处理器不透明，原样出现在对应结果中。
type BatchTask struct {
	ID       string
	Text     string
	Metadata map[string]interface{}
}

// BatchResult 是一项任务的处理结果。失败任务携带最后一次错误与尝试次数。
type BatchResult struct {
	Task     BatchTask
	Status   TaskStatus
	Vector   []float32
	Attempts int
	Err      error
}

// EmbedFunc 是批量处理器对单条文本的向量化回调。
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// BatchProcessor 用固定大小的 worker 池并发执行向量化任务。
// 每个 worker 各自持有一个限速器（自己的上次调用时间戳），
// 对远端 provider 的调用速率按 worker 独立限制，互不干扰。
type BatchProcessor struct {
	maxWorkers        int
	delayBetweenCalls time.Duration
	maxRetries        int
	retryDelay        time.Duration
	// sleep 可在测试中替换以避免真实等待
	sleep func(time.Duration)
}

// NewBatchProcessor 创建批量处理器，零值参数回落到默认配置。
func NewBatchProcessor(cfg config.BatchConfig) *BatchProcessor {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 3
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}
	return &BatchProcessor{
		maxWorkers:        maxWorkers,
		delayBetweenCalls: cfg.DelayBetweenCalls,
		maxRetries:        maxRetries,
		retryDelay:        retryDelay,
		sleep:             time.Sleep,
	}
}

// workerLimiter 是单个 worker 独占的调用限速器。
// 不查线程标识，构造时直接交给 worker 持有。
type workerLimiter struct {
	minInterval time.Duration
	lastCall    time.Time
	sleep       func(time.Duration)
}

// wait 在两次调用间隔不足 minInterval 时补足剩余等待时间。
func (l *workerLimiter) wait() {
	if l.minInterval <= 0 {
		return
	}
	if !l.lastCall.IsZero() {
		if remain := l.minInterval - time.Since(l.lastCall); remain > 0 {
			l.sleep(remain)
		}
	}
	l.lastCall = time.Now()
}

// ProcessBatch 并发处理全部任务，按提交顺序返回一一对应的结果切片。
// 单个任务失败只影响自身（重试耗尽后记为 failed），绝不中止整个批次；
// 本函数自身不返回错误。
func (p *BatchProcessor) ProcessBatch(ctx context.Context, tasks []BatchTask, embedFn EmbedFunc) []BatchResult {
	results := make([]BatchResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := p.maxWorkers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		limiter := &workerLimiter{minInterval: p.delayBetweenCalls, sleep: p.sleep}
		go func(limiter *workerLimiter) {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = p.runTask(ctx, tasks[idx], embedFn, limiter)
			}
		}(limiter)
	}

	for idx := range tasks {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Status == StatusSuccess {
			succeeded++
		}
	}
	log.Infof("[BatchProcessor] 批量向量化完成: 成功 %d/%d", succeeded, len(tasks))
	return results
}

// runTask 执行单个任务，含限速与按任务独立的退避重试。
func (p *BatchProcessor) runTask(ctx context.Context, task BatchTask, embedFn EmbedFunc, limiter *workerLimiter) BatchResult {
	result := BatchResult{Task: task, Status: StatusPending}

	for attempt := 0; attempt < p.maxRetries; attempt++ {
		result.Attempts = attempt + 1
		limiter.wait()

		vector, err := embedFn(ctx, task.Text)
		if err == nil {
			result.Status = StatusSuccess
			result.Vector = vector
			result.Err = nil
			return result
		}

		result.Err = err
		// 输入本身无效时重试没有意义
		if errors.Is(err, ErrInvalidInput) || ctx.Err() != nil {
			break
		}
		if attempt < p.maxRetries-1 {
			delay := time.Duration(attempt+1) * p.retryDelay
			log.Warnf("[BatchProcessor] 任务 %s 第 %d 次失败, %v 后重试: %v", task.ID, attempt+1, delay, err)
			p.sleep(delay)
		}
	}

	result.Status = StatusFailed
	log.Errorf("[BatchProcessor] 任务 %s 在 %d 次尝试后失败: %v", task.ID, result.Attempts, result.Err)
	return result
}
