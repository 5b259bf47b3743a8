package integration

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper 超时扫描器
// 周期驱动两件事: 在途请求的过期与升级,以及周期限额的重置。
// 两者都是幂等操作,多实例并发扫描通过版本号 CAS 和
// lastResetAt 判定避免重复生效。
type Sweeper struct {
	manager   RequestManager
	ledger    SpendingLedger
	interval  time.Duration
	batchSize int
	stop      chan struct{}
	wg        sync.WaitGroup
	logger    *logrus.Entry
}

// NewSweeper 创建超时扫描器
func NewSweeper(manager RequestManager, ledger SpendingLedger, interval time.Duration, batchSize int) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Sweeper{
		manager:   manager,
		ledger:    ledger,
		interval:  interval,
		batchSize: batchSize,
		stop:      make(chan struct{}),
		logger:    logrus.WithField("component", "sweeper"),
	}
}

// Start 启动扫描循环
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop 停止扫描循环,等待当前轮次结束
func (s *Sweeper) Stop() {
	close(s.stop)
	s.wg.Wait()
}

// loop 扫描循环
func (s *Sweeper) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(time.Now())
		case <-s.stop:
			return
		}
	}
}

// RunOnce 执行单轮扫描
// 供循环周期调用,也可在测试中同步驱动
func (s *Sweeper) RunOnce(now time.Time) {
	processed, err := s.manager.Sweep(now, s.batchSize)
	if err != nil {
		s.logger.WithError(err).Error("request sweep failed")
	} else if processed > 0 {
		s.logger.WithField("processed", processed).Info("swept overdue requests")
	}

	reset, err := s.ledger.ResetDueLimits(now)
	if err != nil {
		s.logger.WithError(err).Error("limit reset sweep failed")
	} else if reset > 0 {
		s.logger.WithField("reset", reset).Info("reset spending limits at period boundary")
	}
}
