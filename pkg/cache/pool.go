package cache

import (
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// RebuildPool 固定大小的后台重建协程池。
// 队列有界、提交永不阻塞：池子满时直接放弃这次重建机会，
// 反正缓存里还留着旧值，下一个读到过期数据的请求会再来。
type RebuildPool struct {
	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once

	submitted atomic.Int64
	dropped   atomic.Int64
}

// NewRebuildPool 启动 workers 个常驻协程，队列容量 queueSize。
// 参数不合法时回退到保守默认值。
func NewRebuildPool(workers, queueSize int) *RebuildPool {
	if workers <= 0 {
		workers = 10
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	p := &RebuildPool{tasks: make(chan func(), queueSize)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *RebuildPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

// run 单独包一层，保证任务 panic 不会杀死 worker。
func (p *RebuildPool) run(task func()) {
	defer func() {
		if e := recover(); e != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			logrus.Errorf("cache rebuild panic: %v: %s", e, buf)
		}
	}()
	task()
}

// Submit 尝试提交一个重建任务，池子饱和时返回 false，不阻塞调用方。
func (p *RebuildPool) Submit(task func()) bool {
	select {
	case p.tasks <- task:
		p.submitted.Inc()
		return true
	default:
		p.dropped.Inc()
		return false
	}
}

// Stats 返回累计提交数与丢弃数。
func (p *RebuildPool) Stats() (submitted, dropped int64) {
	return p.submitted.Load(), p.dropped.Load()
}

// Close 停止接收新任务并等待在途任务跑完。重复调用安全。
func (p *RebuildPool) Close() {
	p.once.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}
