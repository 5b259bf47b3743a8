package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jewelmart/approval-core/internal/metrics"
	"github.com/jewelmart/approval-core/internal/model"
	"github.com/jewelmart/approval-core/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EventDispatcher 决策事件分发器
// 轮询发件箱里的待投递事件,推送到请求登记的回调地址。
// 投递失败按次数重试,超过上限标记为 failed。
type EventDispatcher interface {
	Start()
	Stop()
	DispatchPending() (int, error)
}

// dbEventDispatcher 基于数据库发件箱的事件分发器
type dbEventDispatcher struct {
	db           *gorm.DB
	eventRepo    repository.EventRepository
	httpClient   *http.Client
	queue        chan *model.EventModel
	workers      int
	pollInterval time.Duration
	maxRetries   int
	stop         chan struct{}
	wg           sync.WaitGroup
	inflight     map[string]struct{}
	inflightMu   sync.Mutex
	logger       *logrus.Entry
}

// NewEventDispatcher 创建事件分发器
func NewEventDispatcher(db *gorm.DB, workers int, pollInterval time.Duration, maxRetries int) EventDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}

	return &dbEventDispatcher{
		db:           db,
		eventRepo:    repository.NewEventRepository(db),
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		queue:        make(chan *model.EventModel, 1000),
		workers:      workers,
		pollInterval: pollInterval,
		maxRetries:   maxRetries,
		stop:         make(chan struct{}),
		inflight:     make(map[string]struct{}),
		logger:       logrus.WithField("component", "event_dispatcher"),
	}
}

// Start 启动轮询器和投递 worker
func (d *dbEventDispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	d.wg.Add(1)
	go d.poller()
}

// Stop 停止分发器,等待在途投递完成
func (d *dbEventDispatcher) Stop() {
	close(d.stop)
	d.wg.Wait()
}

// DispatchPending 单轮入队待投递事件
// 供轮询器周期调用,也可在测试中同步驱动
func (d *dbEventDispatcher) DispatchPending() (int, error) {
	events, err := d.eventRepo.FindPending(100)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending events: %w", err)
	}

	queued := 0
	for _, event := range events {
		if !d.markInflight(event.ID) {
			continue
		}
		select {
		case d.queue <- event:
			queued++
		default:
			// 队列满时放回,下一轮重新入队
			d.clearInflight(event.ID)
			d.logger.WithField("event_id", event.ID).Warn("dispatch queue full, deferring event")
		}
	}
	return queued, nil
}

// poller 周期扫描发件箱
func (d *dbEventDispatcher) poller() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := d.DispatchPending(); err != nil {
				d.logger.WithError(err).Error("failed to poll pending events")
			}
		case <-d.stop:
			return
		}
	}
}

// worker 事件投递 worker
func (d *dbEventDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
			d.clearInflight(event.ID)
		case <-d.stop:
			return
		}
	}
}

// deliver 投递单个事件
func (d *dbEventDispatcher) deliver(event *model.EventModel) {
	callbackURL := d.callbackURL(event)
	if callbackURL == "" {
		// 没有回调地址,无需推送
		event.Status = "success"
		event.UpdatedAt = time.Now()
		if err := d.eventRepo.Save(event); err != nil {
			d.logger.WithError(err).WithField("event_id", event.ID).Error("failed to finalize event")
		}
		return
	}

	if err := d.post(callbackURL, event.Data); err != nil {
		event.RetryCount++
		event.UpdatedAt = time.Now()
		if event.RetryCount >= d.maxRetries {
			event.Status = "failed"
			metrics.RecordEventDelivery("failed")
			d.logger.WithError(err).WithFields(logrus.Fields{
				"event_id": event.ID,
				"type":     event.Type,
				"retries":  event.RetryCount,
			}).Error("event delivery failed permanently")
		} else {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"event_id": event.ID,
				"retry":    event.RetryCount,
			}).Warn("event delivery failed, will retry")
		}
		if err := d.eventRepo.Save(event); err != nil {
			d.logger.WithError(err).WithField("event_id", event.ID).Error("failed to record delivery attempt")
		}
		return
	}

	event.Status = "success"
	event.UpdatedAt = time.Now()
	metrics.RecordEventDelivery("success")
	if err := d.eventRepo.Save(event); err != nil {
		d.logger.WithError(err).WithField("event_id", event.ID).Error("failed to finalize event")
	}
}

// callbackURL 从事件负载中提取回调地址
func (d *dbEventDispatcher) callbackURL(event *model.EventModel) string {
	var payload struct {
		Request struct {
			CallbackURL string `json:"callback_url"`
		} `json:"request"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return ""
	}
	return payload.Request.CallbackURL
}

// post 发送回调请求
func (d *dbEventDispatcher) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status code: %d", resp.StatusCode)
	}
	return nil
}

// markInflight 标记事件在途,避免轮询周期间重复入队
func (d *dbEventDispatcher) markInflight(id string) bool {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	if _, ok := d.inflight[id]; ok {
		return false
	}
	d.inflight[id] = struct{}{}
	return true
}

// clearInflight 清除在途标记
func (d *dbEventDispatcher) clearInflight(id string) {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	delete(d.inflight, id)
}
