package metrics

import (
	"sync"
	"time"

	"gorm.io/gorm"
)

// Collector 指标收集器
// 周期采样数据库连接池状态,暴露为 Prometheus 指标
type Collector struct {
	db       *gorm.DB
	interval time.Duration
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Collector{
		db:       db,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start 启动采样循环
func (c *Collector) Start() {
	c.wg.Add(1)
	go c.loop()
}

// Stop 停止采样循环
func (c *Collector) Stop() {
	close(c.stop)
	c.wg.Wait()
}

// loop 采样循环
func (c *Collector) loop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = UpdateDatabaseConnections(c.db)
		case <-c.stop:
			return
		}
	}
}
